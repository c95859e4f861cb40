package telemetry

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleEvent(decision Decision, reason Reason) Event {
	return Event{
		Timestamp: time.Date(2026, 8, 23, 14, 30, 12, 123456789, time.UTC),
		RecordID:  "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Key:       "GET /v1/info",
		Channel:   ChannelREST,
		Category:  "info",
		Intent:    "system",
		Decision:  decision,
		Reason:    reason,
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	original := sampleEvent(DecisionBlock, ReasonCircuit)
	original.Error = "circuit breaker open"

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	decoded.Timestamp = original.Timestamp
	if decoded != original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestFileSinkAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.ulog")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	events := []Event{
		sampleEvent(DecisionExecute, ReasonNone),
		sampleEvent(DecisionCoalesce, ReasonNone),
		sampleEvent(DecisionDefer, ReasonBackoff),
	}
	for _, ev := range events {
		sink.Record(ev)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Record after close is silently ignored.
	sink.Record(sampleEvent(DecisionBlock, ReasonState))

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	var got []Event
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, ev)
	}

	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for i := range got {
		if got[i].Decision != events[i].Decision {
			t.Errorf("event %d decision = %v, want %v", i, got[i].Decision, events[i].Decision)
		}
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.ulog")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	sink.Record(sampleEvent(DecisionExecute, ReasonNone))
	sink.Record(sampleEvent(DecisionDefer, ReasonBackoff))
	sink.Record(sampleEvent(DecisionDefer, ReasonCooldown))
	sink.Close()

	deferDecision := DecisionDefer
	backoff := ReasonBackoff
	reader, err := NewFilteredReader(path, Filter{Decision: &deferDecision, Reason: &backoff})
	if err != nil {
		t.Fatalf("NewFilteredReader: %v", err)
	}
	defer reader.Close()

	ev, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Decision != DecisionDefer || ev.Reason != ReasonBackoff {
		t.Errorf("filtered event = %v/%v", ev.Decision, ev.Reason)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("second Next err = %v, want io.EOF", err)
	}
}

func TestMultiSink(t *testing.T) {
	var a, b recordingSink
	multi := NewMultiSink(&a, &b)
	multi.Record(sampleEvent(DecisionCache, ReasonNone))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("sinks received %d/%d events, want 1/1", len(a.events), len(b.events))
	}
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogSink(logger).Record(sampleEvent(DecisionBlock, ReasonState))

	out := buf.String()
	for _, want := range []string{"decision=BLOCK", "reason=STATE", "channel=REST"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

// recordingSink collects events in memory for assertions.
type recordingSink struct {
	events []Event
}

func (r *recordingSink) Record(event Event) {
	r.events = append(r.events, event)
}
