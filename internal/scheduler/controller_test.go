package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LiveChart/internal/calculator"
	"LiveChart/internal/chart"
	"LiveChart/internal/collector"
	"LiveChart/internal/metrics"
	"LiveChart/internal/model"
	"LiveChart/internal/recorder"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDisplay struct {
	mu     sync.Mutex
	shown  []*model.ChartSpec
	titles []string
	errs   []error
}

func (d *fakeDisplay) Show(spec *model.ChartSpec, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, spec)
	d.titles = append(d.titles, title)
}

func (d *fakeDisplay) ShowError(_ string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *fakeDisplay) last() *model.ChartSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.shown) == 0 {
		return nil
	}
	return d.shown[len(d.shown)-1]
}

func (d *fakeDisplay) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown), len(d.errs)
}

type memRecorder struct {
	mu      sync.Mutex
	ticks   []recorder.TickEvent
	changes []recorder.SymbolChange
}

func (r *memRecorder) RecordTick(evt *recorder.TickEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, *evt)
	return nil
}

func (r *memRecorder) RecordSymbolChange(evt *recorder.SymbolChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, *evt)
	return nil
}

func (r *memRecorder) Close() error { return nil }

func (r *memRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ticks))
	for i, t := range r.ticks {
		out[i] = t.Outcome
	}
	return out
}

type memStore struct {
	mu     sync.Mutex
	symbol string
}

func (s *memStore) SaveSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol = symbol
	return nil
}

func (s *memStore) saved() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

// gatedFetcher blocks successive fetches of a symbol on its queued gates, one
// gate per fetch; fetches past the end of the queue run straight through.
type gatedFetcher struct {
	inner   collector.Fetcher
	entered chan string

	mu    sync.Mutex
	gates map[string][]chan struct{}
}

func (g *gatedFetcher) Name() string { return "gated" }

func (g *gatedFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	g.mu.Lock()
	var gate chan struct{}
	queue := g.gates[symbol]
	ok := len(queue) > 0
	if ok {
		gate, g.gates[symbol] = queue[0], queue[1:]
	}
	g.mu.Unlock()

	if g.entered != nil {
		g.entered <- symbol
	}
	if ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Fetch(ctx, symbol, period, interval)
}

func newMock() *collector.MockFetcher {
	return &collector.MockFetcher{
		Bars: map[string][]model.OHLCV{
			"NVDA": linearBars(100, 30),
			"AAPL": linearBars(200, 30),
		},
		Unknown: map[string]bool{"ZZZZINVALID": true},
	}
}

func linearBars(base float64, n int) []model.OHLCV {
	start := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := base + float64(i)
		bars[i] = model.OHLCV{Time: start.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func newController(t *testing.T, f collector.Fetcher, d Display, rec recorder.Recorder, m *metrics.Metrics, store SymbolStore) *Controller {
	t.Helper()
	col := collector.NewCollector(f, model.PeriodIntraday, time.Minute, time.UTC, zap.NewNop())
	return NewController(col, d, rec, m, store, Options{
		Symbol:       "NVDA",
		Interval:     time.Hour,
		FetchTimeout: 2 * time.Second,
		Params:       calculator.DefaultParams(),
		Chart:        chart.DefaultOptions(),
	}, zap.NewNop())
}

func TestTickAppliesChart(t *testing.T) {
	d := &fakeDisplay{}
	rec := &memRecorder{}
	m := metrics.NewMetrics(nil)
	c := newController(t, newMock(), d, rec, m, nil)

	var transitions []string
	c.OnTransition = func(_ uint64, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	c.Tick(context.Background(), TriggerManual)

	spec := d.last()
	require.NotNil(t, spec)
	assert.Equal(t, "NVDA", spec.Symbol)
	assert.Equal(t, "NVDA Live Price", d.titles[0])
	assert.Equal(t, []string{"idle>fetching", "fetching>rendering", "rendering>idle"}, transitions)

	st := c.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, uint64(1), st.AppliedSeq)
	assert.Equal(t, 30, st.Bars)
	assert.Equal(t, 129.0, st.LastClose)
	assert.Same(t, spec, c.LastChart())

	assert.Equal(t, []string{recorder.OutcomeApplied}, rec.outcomes())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("manual", "applied")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.Bars))
}

func TestSymbolChangeDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	f := &gatedFetcher{
		inner:   newMock(),
		gates:   map[string][]chan struct{}{"NVDA": {release}},
		entered: make(chan string, 4),
	}
	d := &fakeDisplay{}
	rec := &memRecorder{}
	m := metrics.NewMetrics(nil)
	store := &memStore{}
	c := newController(t, f, d, rec, m, store)

	nvdaDone := make(chan struct{})
	go func() {
		defer close(nvdaDone)
		c.Tick(context.Background(), TriggerTimer)
	}()
	require.Equal(t, "NVDA", <-f.entered)

	require.NoError(t, c.SetSymbol(" aapl "))
	require.Equal(t, "AAPL", <-f.entered)
	c.Wait()

	require.NotNil(t, d.last())
	assert.Equal(t, "AAPL", d.last().Symbol)

	close(release)
	<-nvdaDone

	shown, errs := d.counts()
	assert.Equal(t, 1, shown, "late NVDA result must not be shown")
	assert.Equal(t, 0, errs)
	assert.Equal(t, "AAPL", d.last().Symbol)
	assert.Equal(t, "AAPL", c.Symbol())
	assert.Equal(t, "AAPL", store.saved())
	assert.Equal(t, []string{recorder.OutcomeApplied, recorder.OutcomeStale}, rec.outcomes())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))
	require.Len(t, rec.changes, 1)
	assert.Equal(t, "NVDA", rec.changes[0].From)
	assert.Equal(t, "AAPL", rec.changes[0].To)
}

func TestOlderTickDiscardedForSameSymbol(t *testing.T) {
	release := make(chan struct{})
	slow := &gatedFetcher{inner: newMock(), gates: map[string][]chan struct{}{"NVDA": {release}}, entered: make(chan string, 2)}
	d := &fakeDisplay{}
	c := newController(t, slow, d, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Tick(context.Background(), TriggerTimer)
	}()
	<-slow.entered

	// a newer tick for the same symbol completes first
	c.Tick(context.Background(), TriggerTimer)
	close(release)
	<-done

	shown, _ := d.counts()
	assert.Equal(t, 1, shown)
	assert.Equal(t, uint64(2), c.Status().AppliedSeq)
}

func TestReselectedSymbolDiscardsTickFromEarlierSelection(t *testing.T) {
	first, aapl, second := make(chan struct{}), make(chan struct{}), make(chan struct{})
	f := &gatedFetcher{
		inner: newMock(),
		gates: map[string][]chan struct{}{
			"NVDA": {first, second},
			"AAPL": {aapl},
		},
		entered: make(chan string, 4),
	}
	d := &fakeDisplay{}
	rec := &memRecorder{}
	store := &memStore{}
	c := newController(t, f, d, rec, nil, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Tick(context.Background(), TriggerTimer)
	}()
	require.Equal(t, "NVDA", <-f.entered)

	require.NoError(t, c.SetSymbol("AAPL"))
	require.Equal(t, "AAPL", <-f.entered)
	require.NoError(t, c.SetSymbol("NVDA"))
	require.Equal(t, "NVDA", <-f.entered)

	// NVDA is selected again, but this tick began under the first selection
	close(first)
	<-done
	shown, errs := d.counts()
	assert.Equal(t, 0, shown)
	assert.Equal(t, 0, errs)
	assert.Empty(t, store.saved())

	close(aapl)
	close(second)
	c.Wait()

	shown, errs = d.counts()
	require.Equal(t, 1, shown)
	assert.Equal(t, 0, errs)
	assert.Equal(t, "NVDA", d.last().Symbol)
	assert.Equal(t, uint64(3), c.Status().AppliedSeq)
	assert.Equal(t, "NVDA", store.saved())
	outcomes := rec.outcomes()
	require.Len(t, outcomes, 3)
	assert.Equal(t, recorder.OutcomeStale, outcomes[0])
	assert.ElementsMatch(t, []string{recorder.OutcomeStale, recorder.OutcomeApplied}, outcomes[1:])
}

func TestSymbolPersistedOnlyAfterChartApplied(t *testing.T) {
	d := &fakeDisplay{}
	store := &memStore{}
	c := newController(t, newMock(), d, nil, nil, store)

	require.NoError(t, c.SetSymbol("ZZZZINVALID"))
	c.Wait()
	_, errs := d.counts()
	assert.Equal(t, 1, errs)
	assert.Empty(t, store.saved(), "unknown symbol must not be restored on restart")

	require.NoError(t, c.SetSymbol("aapl"))
	c.Wait()
	assert.Equal(t, "AAPL", store.saved())

	// later ticks for the same selection leave the store alone
	require.NoError(t, store.SaveSymbol("OTHER"))
	c.Tick(context.Background(), TriggerTimer)
	assert.Equal(t, "OTHER", store.saved())
}

func TestInvalidSymbolKeepsLastChart(t *testing.T) {
	d := &fakeDisplay{}
	rec := &memRecorder{}
	c := newController(t, newMock(), d, rec, nil, nil)

	c.Tick(context.Background(), TriggerTimer)
	good := d.last()
	require.NotNil(t, good)

	var transitions []string
	c.OnTransition = func(_ uint64, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	require.NoError(t, c.SetSymbol("ZZZZINVALID"))
	c.Wait()

	shown, errs := d.counts()
	assert.Equal(t, 1, shown)
	require.Equal(t, 1, errs)
	assert.True(t, collector.IsDataUnavailable(d.errs[0]))
	assert.Same(t, good, d.last(), "previous chart stays displayed")
	assert.Same(t, good, c.LastChart())
	assert.Equal(t, []string{"idle>fetching", "fetching>error", "error>idle"}, transitions)
	assert.NotEmpty(t, c.Status().LastError)

	// the loop keeps going
	require.NoError(t, c.SetSymbol("AAPL"))
	c.Wait()
	assert.Equal(t, "AAPL", d.last().Symbol)
	assert.Empty(t, c.Status().LastError)
	assert.Equal(t, []string{recorder.OutcomeApplied, recorder.OutcomeDataUnavailable, recorder.OutcomeApplied}, rec.outcomes())
}

func TestInvalidSymbolWithoutPriorChart(t *testing.T) {
	d := &fakeDisplay{}
	c := newController(t, newMock(), d, nil, nil, nil)
	require.NoError(t, c.SetSymbol("ZZZZINVALID"))
	c.Wait()

	shown, errs := d.counts()
	assert.Equal(t, 0, shown)
	assert.Equal(t, 1, errs)
	assert.Nil(t, c.LastChart())
}

func TestFetchTimeout(t *testing.T) {
	f := &gatedFetcher{inner: newMock(), gates: map[string][]chan struct{}{"NVDA": {make(chan struct{})}}}
	d := &fakeDisplay{}
	c := newController(t, f, d, nil, nil, nil)
	c.opts.FetchTimeout = 20 * time.Millisecond

	c.Tick(context.Background(), TriggerTimer)

	_, errs := d.counts()
	require.Equal(t, 1, errs)
	var pe *collector.ProviderError
	require.ErrorAs(t, d.errs[0], &pe)
	assert.Equal(t, "timeout", pe.Op)
	assert.Equal(t, "idle", c.Status().State)
}

type panicSource struct{}

func (panicSource) Collect(context.Context, string) (*model.Series, error) {
	panic("boom")
}

func TestPanicRecovered(t *testing.T) {
	d := &fakeDisplay{}
	rec := &memRecorder{}
	c := NewController(panicSource{}, d, rec, nil, nil, Options{Symbol: "NVDA", Interval: time.Hour}, zap.NewNop())

	assert.NotPanics(t, func() { c.Tick(context.Background(), TriggerManual) })
	_, errs := d.counts()
	require.Equal(t, 1, errs)
	assert.True(t, errors.Is(d.errs[0], ErrComputation))
	assert.Equal(t, []string{recorder.OutcomeComputationError}, rec.outcomes())
}

func TestSetSymbolRejectsEmpty(t *testing.T) {
	c := newController(t, newMock(), &fakeDisplay{}, nil, nil, nil)
	assert.ErrorIs(t, c.SetSymbol("   "), ErrEmptySymbol)
	assert.Equal(t, "NVDA", c.Symbol())
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	d := &fakeDisplay{}
	c := newController(t, newMock(), d, nil, nil, nil)
	require.NoError(t, c.Start(context.Background()))
	c.Wait()
	c.Stop()

	shown, _ := d.counts()
	assert.Equal(t, 1, shown)
}

func TestStartConcurrentWithSetSymbol(t *testing.T) {
	d := &fakeDisplay{}
	c := newController(t, newMock(), d, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan error, 1)
	go func() { started <- c.Start(ctx) }()
	require.NoError(t, c.SetSymbol("AAPL"))
	require.NoError(t, <-started)

	cancel()
	require.Eventually(t, func() bool { return c.ctx.Err() != nil }, time.Second, 5*time.Millisecond,
		"parent cancellation reaches in-flight ticks")
	c.Stop()
	assert.Equal(t, "AAPL", c.Symbol())
}

func TestStartRejectsZeroInterval(t *testing.T) {
	c := NewController(panicSource{}, &fakeDisplay{}, nil, nil, nil, Options{Symbol: "NVDA"}, nil)
	assert.Error(t, c.Start(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "rendering", StateRendering.String())
	assert.Equal(t, "error", StateError.String())
}
