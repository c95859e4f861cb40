// Package telemetry records the admission decision the interaction guard
// makes for every device call.
//
// This is separate from operational logging (slog): the decision trace is a
// complete machine-readable record of why calls were executed, coalesced,
// served from cache, deferred, or blocked. It is the first thing to look at
// when a device misbehaves in the field.
//
// Applications configure recording by providing a Sink implementation:
//
//	// For development: decisions in the console via slog
//	cfg.Telemetry = telemetry.NewSlogSink(slog.Default())
//
//	// For diagnostics capture: binary file
//	cfg.Telemetry, _ = telemetry.NewFileSink("session.ulog")
//
//	// Both at once
//	cfg.Telemetry = telemetry.NewMultiSink(
//	    telemetry.NewSlogSink(slog.Default()),
//	    fileSink,
//	)
//
// A recording failure never affects admission: Record has no return value and
// implementations swallow their own errors.
//
// # File format
//
// Capture files use CBOR encoding with integer keys (.ulog extension by
// convention). Reader streams a capture back, optionally filtered.
package telemetry
