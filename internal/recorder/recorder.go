package recorder

import "time"

// Tick outcomes.
const (
	OutcomeApplied          = "applied"
	OutcomeStale            = "stale"
	OutcomeDataUnavailable  = "data_unavailable"
	OutcomeProviderError    = "provider_error"
	OutcomeComputationError = "computation_error"
)

// TickEvent describes one refresh cycle.
type TickEvent struct {
	Seq       uint64
	Symbol    string
	Trigger   string // "timer", "symbol" or "manual"
	Outcome   string
	Bars      int
	LastClose float64
	Duration  time.Duration
	Error     string
	At        time.Time
}

// SymbolChange records a user switching the displayed symbol.
type SymbolChange struct {
	From string
	To   string
	At   time.Time
}

// Recorder keeps an operational audit log of refresh activity.
// It never stores market data.
type Recorder interface {
	RecordTick(evt *TickEvent) error
	RecordSymbolChange(evt *SymbolChange) error
	Close() error
}
