package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTick(_ *TickEvent) error             { return nil }
func (n *NoopRecorder) RecordSymbolChange(_ *SymbolChange) error { return nil }
func (n *NoopRecorder) Close() error                             { return nil }
