package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordWinRates(_ *WinRateRun) error    { return nil }
func (n *NoopRecorder) RecordTrailing(_ *TrailingRun) error   { return nil }
func (n *NoopRecorder) RecordFCF(_ *FCFRun) error             { return nil }
func (n *NoopRecorder) RecordReminder(_ *ReminderEvent) error { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
