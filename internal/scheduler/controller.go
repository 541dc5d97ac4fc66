package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"LiveChart/internal/calculator"
	"LiveChart/internal/chart"
	"LiveChart/internal/collector"
	"LiveChart/internal/metrics"
	"LiveChart/internal/model"
	"LiveChart/internal/recorder"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrComputation marks a defect inside indicator computation or chart assembly.
var ErrComputation = errors.New("computation error")

// ErrEmptySymbol is returned by SetSymbol for blank input.
var ErrEmptySymbol = errors.New("symbol must not be empty")

// State is the controller's position in the refresh cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateRendering
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateRendering:
		return "rendering"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger names what started a tick.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerSymbol Trigger = "symbol"
	TriggerManual Trigger = "manual"
)

// Source yields normalized series for a symbol. *collector.Collector implements it.
type Source interface {
	Collect(ctx context.Context, symbol string) (*model.Series, error)
}

// Display receives every applied chart and every surfaced error.
// A failed tick leaves the previously shown chart in place.
type Display interface {
	Show(spec *model.ChartSpec, title string)
	ShowError(symbol string, err error)
}

// SymbolStore persists the selected symbol across restarts.
type SymbolStore interface {
	SaveSymbol(symbol string) error
}

// Options configures a Controller.
type Options struct {
	Symbol       string
	Interval     time.Duration // timer period
	FetchTimeout time.Duration
	Params       calculator.Params
	Chart        chart.Options
}

// Status is a point-in-time view of the controller.
type Status struct {
	Symbol      string    `json:"symbol"`
	State       string    `json:"state"`
	StartedSeq  uint64    `json:"started_seq"`
	AppliedSeq  uint64    `json:"applied_seq"`
	Bars        int       `json:"bars"`
	LastClose   float64   `json:"last_close,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Interval    string    `json:"interval"`
}

// Controller runs the fetch, compute, assemble and display pipeline on every
// timer tick and symbol change. Ticks run concurrently; a result is applied
// only if it is newer than the last applied one and began after the current
// symbol was selected.
type Controller struct {
	source   Source
	display  Display
	recorder recorder.Recorder
	metrics  *metrics.Metrics
	store    SymbolStore
	logger   *zap.Logger
	opts     Options

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	symbol      string
	started     uint64
	applied     uint64
	selectedAt  uint64 // value of started when symbol was last selected
	unsaved     string // selected symbol awaiting its first applied chart
	state       State
	lastSpec    *model.ChartSpec
	lastBars    int
	lastClose   float64
	lastSuccess time.Time
	lastErr     error

	// OnTransition, when set, observes every state change of the newest tick.
	// It runs with the controller lock held.
	OnTransition func(seq uint64, from, to State)
}

// NewController creates a Controller. rec, m and store may be nil.
func NewController(src Source, display Display, rec recorder.Recorder, m *metrics.Metrics, store SymbolStore, opts Options, logger *zap.Logger) *Controller {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:   src,
		display:  display,
		recorder: rec,
		metrics:  m,
		store:    store,
		logger:   logger,
		opts:     opts,
		symbol:   strings.ToUpper(strings.TrimSpace(opts.Symbol)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the refresh timer and runs a first tick immediately.
func (c *Controller) Start(ctx context.Context) error {
	if c.opts.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.opts.Interval)
	}
	// c.ctx is fixed at construction; the parent only cancels it.
	context.AfterFunc(ctx, c.cancel)
	c.cron = cron.New(cron.WithSeconds())
	if _, err := c.cron.AddFunc("@every "+c.opts.Interval.String(), func() {
		c.Tick(c.ctx, TriggerTimer)
	}); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	c.cron.Start()
	c.logger.Info("refresh controller started",
		zap.String("symbol", c.Symbol()),
		zap.Duration("interval", c.opts.Interval))
	c.RunNow()
	return nil
}

// Stop halts the timer, cancels in-flight fetches and waits for running ticks.
func (c *Controller) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
	c.cancel()
	c.wg.Wait()
	c.logger.Info("refresh controller stopped")
}

// Wait blocks until every tick started by RunNow or SetSymbol has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// RunNow starts a tick in the background (manual trigger / startup).
func (c *Controller) RunNow() {
	c.spawn(TriggerManual)
}

func (c *Controller) spawn(trigger Trigger) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Tick(c.ctx, trigger)
	}()
}

// SetSymbol switches the displayed symbol and starts a tick for it. The input
// is free text; an unknown symbol surfaces as a display error from the fetch.
// Ticks started before the call are discarded, and the symbol is persisted
// only once a chart for it has been applied.
func (c *Controller) SetSymbol(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrEmptySymbol
	}

	c.mu.Lock()
	prev := c.symbol
	c.symbol = symbol
	c.selectedAt = c.started
	c.unsaved = symbol
	c.mu.Unlock()

	c.logger.Info("symbol changed", zap.String("from", prev), zap.String("to", symbol))
	if err := c.recorder.RecordSymbolChange(&recorder.SymbolChange{From: prev, To: symbol, At: time.Now()}); err != nil {
		c.logger.Warn("record symbol change", zap.Error(err))
	}
	c.spawn(TriggerSymbol)
	return nil
}

// Symbol returns the currently selected symbol.
func (c *Controller) Symbol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbol
}

// LastChart returns the most recently applied chart, or nil.
func (c *Controller) LastChart() *model.ChartSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSpec
}

// Status reports the controller's current view.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Symbol:      c.symbol,
		State:       c.state.String(),
		StartedSeq:  c.started,
		AppliedSeq:  c.applied,
		Bars:        c.lastBars,
		LastClose:   c.lastClose,
		LastSuccess: c.lastSuccess,
		Interval:    c.opts.Interval.String(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Tick runs one refresh cycle synchronously. It never panics and never
// returns an error; failures are surfaced to the display and recorded.
func (c *Controller) Tick(ctx context.Context, trigger Trigger) {
	c.mu.Lock()
	c.started++
	seq := c.started
	symbol := c.symbol
	c.transitionLocked(seq, StateFetching)
	c.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tick panicked",
				zap.Uint64("seq", seq),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			c.fail(seq, trigger, symbol, fmt.Errorf("%w: %v", ErrComputation, r), start)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	series, err := c.source.Collect(fetchCtx, symbol)
	cancel()
	if c.metrics != nil {
		c.metrics.ObserveFetch(time.Since(start))
	}
	if err != nil {
		c.fail(seq, trigger, symbol, err, start)
		return
	}

	c.mu.Lock()
	c.transitionLocked(seq, StateRendering)
	c.mu.Unlock()

	ind := calculator.Compute(series.Bars, c.opts.Params)
	spec := chart.Build(series, ind, c.opts.Chart)
	c.apply(seq, trigger, symbol, series, spec, start)
}

func (c *Controller) apply(seq uint64, trigger Trigger, symbol string, series *model.Series, spec *model.ChartSpec, start time.Time) {
	last, _ := series.Last()

	persist := false
	if !c.deliver(seq, symbol, func() {
		persist = c.unsaved == symbol
		if persist {
			c.unsaved = ""
		}
		c.applied = seq
		c.lastSpec = spec
		c.lastBars = series.Len()
		c.lastClose = last.Close
		c.lastSuccess = time.Now()
		c.lastErr = nil
		c.display.Show(spec, spec.Title)
	}) {
		c.logger.Debug("discarding stale result",
			zap.Uint64("seq", seq), zap.String("symbol", symbol))
		c.record(seq, trigger, symbol, recorder.OutcomeStale, series.Len(), last.Close, start, nil)
		return
	}

	if persist && c.store != nil {
		if err := c.store.SaveSymbol(symbol); err != nil {
			c.logger.Warn("persist symbol", zap.Error(err))
		}
	}
	if c.metrics != nil {
		c.metrics.Bars.Set(float64(series.Len()))
	}
	c.logger.Info("chart refreshed",
		zap.String("symbol", symbol),
		zap.String("trigger", string(trigger)),
		zap.Int("bars", series.Len()),
		zap.Float64("last_close", last.Close))
	c.record(seq, trigger, symbol, recorder.OutcomeApplied, series.Len(), last.Close, start, nil)
}

func (c *Controller) fail(seq uint64, trigger Trigger, symbol string, err error, start time.Time) {
	outcome := outcomeOf(err)

	if !c.deliver(seq, symbol, func() {
		c.lastErr = err
		c.transitionLocked(seq, StateError)
		c.display.ShowError(symbol, err)
	}) {
		c.logger.Debug("discarding stale error",
			zap.Uint64("seq", seq), zap.String("symbol", symbol), zap.Error(err))
		c.record(seq, trigger, symbol, recorder.OutcomeStale, 0, 0, start, err)
		return
	}

	if outcome == recorder.OutcomeComputationError {
		c.logger.Error("tick failed", zap.String("symbol", symbol), zap.Error(err))
	} else {
		c.logger.Warn("tick failed", zap.String("symbol", symbol), zap.String("outcome", outcome), zap.Error(err))
	}
	c.record(seq, trigger, symbol, outcome, 0, 0, start, err)
}

// deliver runs show under the lock unless the result for seq/symbol has been
// superseded, then returns the newest tick to Idle. Holding the lock while
// showing keeps display order identical to apply order.
func (c *Controller) deliver(seq uint64, symbol string, show func()) (delivered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.transitionLocked(seq, StateIdle)

	if c.staleLocked(seq, symbol) {
		if c.metrics != nil {
			c.metrics.StaleResults.Inc()
		}
		return false
	}
	show()
	return true
}

// staleLocked reports whether a result for seq/symbol has been superseded,
// either by a newer applied tick or by a symbol selection made after it began.
func (c *Controller) staleLocked(seq uint64, symbol string) bool {
	return seq <= c.applied || seq <= c.selectedAt || symbol != c.symbol
}

// transitionLocked moves to next only on behalf of the newest started tick.
func (c *Controller) transitionLocked(seq uint64, next State) {
	if seq != c.started || c.state == next {
		return
	}
	prev := c.state
	c.state = next
	if c.metrics != nil {
		c.metrics.State.Set(float64(next))
	}
	if c.OnTransition != nil {
		c.OnTransition(seq, prev, next)
	}
}

func (c *Controller) record(seq uint64, trigger Trigger, symbol, outcome string, bars int, lastClose float64, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.TicksTotal.WithLabelValues(string(trigger), outcome).Inc()
	}
	evt := &recorder.TickEvent{
		Seq:       seq,
		Symbol:    symbol,
		Trigger:   string(trigger),
		Outcome:   outcome,
		Bars:      bars,
		LastClose: lastClose,
		Duration:  time.Since(start),
		At:        time.Now(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	if rerr := c.recorder.RecordTick(evt); rerr != nil {
		c.logger.Warn("record tick", zap.Error(rerr))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrComputation):
		return recorder.OutcomeComputationError
	case collector.IsDataUnavailable(err):
		return recorder.OutcomeDataUnavailable
	default:
		return recorder.OutcomeProviderError
	}
}
