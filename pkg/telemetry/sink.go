package telemetry

// Sink is the interface applications implement to receive decision events.
// Pass nil or NoopSink to disable recording.
type Sink interface {
	// Record stores one decision event. Implementations must be thread-safe
	// and must never fail in a way that is visible to the caller; admission
	// does not depend on recording.
	Record(event Event)
}

// NoopSink discards all events. Use when recording is disabled.
// NoopSink is safe for concurrent use and usable as a zero value.
type NoopSink struct{}

// Record discards the event.
func (NoopSink) Record(Event) {}

// Compile-time interface satisfaction check.
var _ Sink = NoopSink{}

// MultiSink sends events to multiple sinks. Useful when you want console
// output (via SlogSink) and a capture file (via FileSink) simultaneously.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink that sends events to all provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record sends the event to all configured sinks.
func (m *MultiSink) Record(event Event) {
	for _, s := range m.sinks {
		s.Record(event)
	}
}

// Compile-time interface satisfaction check.
var _ Sink = (*MultiSink)(nil)
