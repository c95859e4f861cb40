package ultilink_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ultilink/ultilink-go/pkg/devstate"
	"github.com/ultilink/ultilink-go/pkg/guard"
	"github.com/ultilink/ultilink-go/pkg/safety"
	"github.com/ultilink/ultilink-go/pkg/telemetry"
)

// flakyDevice fails a fixed number of calls before recovering.
type flakyDevice struct {
	mu        sync.Mutex
	failFirst int
	calls     int
}

func (d *flakyDevice) call(context.Context) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.failFirst {
		return nil, errors.New("Network timed out")
	}
	return "pong", nil
}

func (d *flakyDevice) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// TestE2E_CircuitLifecycle walks a guard through failure, circuit opening,
// fast-fail, cooldown expiry, and recovery, with the whole decision trail
// captured to a CBOR file and read back.
func TestE2E_CircuitLifecycle(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "session.ulog")
	sink, err := telemetry.NewFileSink(capture)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	cfg := safety.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	cfg.CircuitBreakerThreshold = 2
	cfg.CircuitBreakerCooldown = 50 * time.Millisecond
	cfg.AllowUserOverrideCircuit = false

	store := devstate.NewStore()
	g := guard.New(guard.Config{
		Safety:    safety.NewStaticProvider(cfg),
		State:     store,
		Telemetry: sink,
	})

	device := &flakyDevice{failFirst: 2}
	desc := guard.Descriptor{Key: guard.RESTKey("GET", "/v1/info"), Category: guard.CategoryInfo}

	ctx := context.Background()

	// Two failures open the circuit.
	for i := 0; i < 2; i++ {
		if _, err := g.Interact(ctx, desc, device.call); err == nil {
			t.Fatalf("call %d: expected failure", i+1)
		}
	}

	// The next call fails fast without touching the device.
	if _, err := g.Interact(ctx, desc, device.call); !errors.Is(err, guard.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if device.callCount() != 2 {
		t.Fatalf("device saw %d calls, want 2", device.callCount())
	}
	if store.Snapshot().State != devstate.StateError {
		t.Fatalf("store state = %v, want ERROR while circuit open", store.Snapshot().State)
	}

	// After the cooldown the device has recovered and the guard lets a
	// call through again.
	time.Sleep(60 * time.Millisecond)
	v, err := g.Interact(ctx, desc, device.call)
	if err != nil {
		t.Fatalf("post-cooldown call: %v", err)
	}
	if v != "pong" {
		t.Fatalf("post-cooldown value = %v, want pong", v)
	}
	if snap := store.Snapshot(); snap.State != devstate.StateReady {
		t.Fatalf("store state = %v, want READY after recovery", snap.State)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	// The capture file replays the decision trail.
	reader, err := telemetry.NewReader(capture)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	counts := make(map[telemetry.Decision]int)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reader.Next: %v", err)
		}
		counts[ev.Decision]++
	}

	if counts[telemetry.DecisionBlock] != 1 {
		t.Errorf("capture has %d block records, want 1", counts[telemetry.DecisionBlock])
	}
	// Call 1 executes; call 2 defers (backoff) then executes; call 4
	// executes after the circuit lapses.
	if counts[telemetry.DecisionExecute]+counts[telemetry.DecisionDefer] != 3 {
		t.Errorf("capture has %d execute+defer records, want 3 (got %v)",
			counts[telemetry.DecisionExecute]+counts[telemetry.DecisionDefer], counts)
	}
}

// TestE2E_BurstAgainstSlowDevice fires a mixed burst at a slow device and
// verifies the guard collapses it to a handful of physical calls while every
// caller still gets an answer.
func TestE2E_BurstAgainstSlowDevice(t *testing.T) {
	cfg := safety.DefaultConfig()
	cfg.RESTMaxConcurrency = 2
	cfg.InfoCacheTTL = time.Second

	g := guard.New(guard.Config{Safety: safety.NewStaticProvider(cfg)})

	var physical atomic.Int32
	infoExec := func(ctx context.Context) (any, error) {
		physical.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "info", nil
	}

	desc := guard.Descriptor{Key: guard.RESTKey("GET", "/v1/info"), Category: guard.CategoryInfo}

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Interact(context.Background(), desc, infoExec)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if n := physical.Load(); n != 1 {
		t.Errorf("device saw %d physical calls for a %d-caller burst, want 1", n, callers)
	}

	// A follow-up call within the TTL is a cache hit.
	if _, err := g.Interact(context.Background(), desc, infoExec); err != nil {
		t.Fatalf("cached call: %v", err)
	}
	if n := physical.Load(); n != 1 {
		t.Errorf("cached follow-up reached the device (%d calls)", n)
	}
}
