package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "audit.db")
	r, err := NewSQLiteRecorder(path, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	events := []*TickEvent{
		{Seq: 1, Symbol: "NVDA", Trigger: "timer", Outcome: OutcomeApplied, Bars: 390, LastClose: 120.5, Duration: 250 * time.Millisecond},
		{Seq: 2, Symbol: "ZZZZINVALID", Trigger: "symbol", Outcome: OutcomeDataUnavailable, Error: "data unavailable: ZZZZINVALID"},
		{Seq: 3, Symbol: "NVDA", Trigger: "timer", Outcome: OutcomeApplied, Bars: 391},
	}
	for _, e := range events {
		require.NoError(t, r.RecordTick(e))
	}
	require.NoError(t, r.RecordSymbolChange(&SymbolChange{From: "NVDA", To: "AAPL", At: time.Now()}))

	counts, err := r.OutcomeCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{OutcomeApplied: 2, OutcomeDataUnavailable: 1}, counts)

	var to string
	require.NoError(t, r.db.QueryRow(`SELECT to_symbol FROM symbol_changes`).Scan(&to))
	assert.Equal(t, "AAPL", to)
}

func TestSQLiteRecorderReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	r, err := NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.RecordTick(&TickEvent{Seq: 1, Symbol: "NVDA", Outcome: OutcomeApplied}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	defer r.Close()
	counts, err := r.OutcomeCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[OutcomeApplied])
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordTick(&TickEvent{}))
	assert.NoError(t, r.RecordSymbolChange(&SymbolChange{}))
	assert.NoError(t, r.Close())
}
