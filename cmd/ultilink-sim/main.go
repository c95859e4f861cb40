// Command ultilink-sim exercises the interaction guard against a synthetic
// flaky device.
//
// It wires a Guard to an in-process device simulator with a configurable
// failure rate and latency, then drops into an interactive console where
// calls can be fired by hand while watching the guard's decisions
// (coalescing, caching, backoff, circuit breaking) in real time.
//
// Usage:
//
//	ultilink-sim [flags]
//
// Flags:
//
//	-profile string   Safety profile: relaxed, balanced, conservative, troubleshooting (default "balanced")
//	-config string    Safety profile YAML file (overrides -profile)
//	-capture string   File path for decision capture (CBOR format)
//	-fail float       Initial simulated failure rate, 0..1 (default 0.3)
//	-latency duration Simulated device latency (default 150ms)
//	-log-level string Log level: debug, info, warn, error (default "debug")
//
// Examples:
//
//	# Watch the circuit breaker open against a very sick device
//	ultilink-sim -profile troubleshooting -fail 0.9
//
//	# Capture decisions for later inspection
//	ultilink-sim -capture session.ulog
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ultilink/ultilink-go/pkg/devstate"
	"github.com/ultilink/ultilink-go/pkg/guard"
	"github.com/ultilink/ultilink-go/pkg/safety"
	"github.com/ultilink/ultilink-go/pkg/telemetry"
)

func main() {
	var (
		profileName = flag.String("profile", "balanced", "Safety profile name")
		configPath  = flag.String("config", "", "Safety profile YAML file (overrides -profile)")
		capturePath = flag.String("capture", "", "Decision capture file (CBOR)")
		failRate    = flag.Float64("fail", 0.3, "Simulated failure rate, 0..1")
		latency     = flag.Duration("latency", 150*time.Millisecond, "Simulated device latency")
		logLevel    = flag.String("log-level", "debug", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))

	provider, err := buildProvider(*configPath, *profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sink := telemetry.Sink(telemetry.NewSlogSink(logger))
	if *capturePath != "" {
		fileSink, err := telemetry.NewFileSink(*capturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open capture file: %v\n", err)
			os.Exit(1)
		}
		defer fileSink.Close()
		sink = telemetry.NewMultiSink(sink, fileSink)
	}

	store := devstate.NewStoreWithConfig(devstate.Config{
		OnChange: func(snap devstate.Snapshot) {
			logger.Debug("device state",
				"state", snap.State.String(),
				"busy", snap.BusyCount,
				"last_error", snap.LastErrorMessage)
		},
	})

	g := guard.New(guard.Config{
		Safety:    provider,
		State:     store,
		Telemetry: sink,
		Logger:    logger,
	})

	device := newSimDevice(*failRate, *latency)

	console, err := newConsole(g, device, provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	console.run()
}

// buildProvider picks the config source: an explicit YAML file wins over a
// named profile.
func buildProvider(configPath, profileName string) (safety.Provider, error) {
	if configPath != "" {
		return safety.NewFileProvider(configPath)
	}
	profile, err := safety.ProfileByName(profileName)
	if err != nil {
		return nil, err
	}
	return safety.NewStaticProvider(safety.Profiles[profile]), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
