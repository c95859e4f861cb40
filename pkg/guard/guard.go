package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ultilink/ultilink-go/pkg/devstate"
	"github.com/ultilink/ultilink-go/pkg/safety"
	"github.com/ultilink/ultilink-go/pkg/telemetry"
)

// Executor performs the actual network I/O for one call. It is supplied
// fresh per call and must not have side effects beyond the network
// operation itself. Any returned error is treated as failure input to the
// backoff and circuit accounting and reaches the caller unmodified.
type Executor func(ctx context.Context) (any, error)

// Config holds Guard construction options. All fields are optional.
type Config struct {
	// Safety supplies the active thresholds. The guard re-reads it on
	// every call, so hot swaps apply immediately to newly admitted calls.
	// Default: a StaticProvider serving the Balanced profile.
	Safety safety.Provider

	// State is the device health store the guard reads and writes.
	// Default: a fresh store.
	State *devstate.Store

	// Telemetry receives one decision record per call.
	// Default: NoopSink.
	Telemetry telemetry.Sink

	// Logger receives operational logs (FTP failures, resets).
	// Default: a logger that discards everything.
	Logger *slog.Logger
}

// inflightEntry is one physical call shared by all coalesced callers.
type inflightEntry struct {
	done  chan struct{}
	value any
	err   error

	// gen is the guard generation the entry was admitted under. Entries
	// from before a Reset settle their callers but no longer touch the
	// cache, backoff, or circuit state.
	gen uint64
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// failureDomain accumulates consecutive failures per category. Different
// paths within a category share one backoff schedule: the failures indicate
// device health, not endpoint health.
type failureDomain struct {
	failures    int
	nextAllowed time.Time
}

// semSlot pairs a semaphore with the limit it was built for, so a config
// swap replaces the semaphore for future calls without resizing queues that
// are already waiting.
type semSlot struct {
	sem  *semaphore.Weighted
	size int64
}

// Guard is the admission-control layer for one device connection.
// All methods are safe for concurrent use.
type Guard struct {
	id     string
	safety safety.Provider
	state  *devstate.Store
	sink   telemetry.Sink
	logger *slog.Logger

	mu               sync.Mutex
	gen              uint64
	inflight         map[string]*inflightEntry
	cache            map[string]cacheEntry
	domains          map[Category]*failureDomain
	cooldowns        map[Category]time.Time
	circuitFailures  int
	circuitOpenUntil time.Time
	restSem          semSlot
	ftpSem           semSlot

	// Clock hooks, replaceable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Guard.
func New(cfg Config) *Guard {
	provider := cfg.Safety
	if provider == nil {
		provider = safety.NewStaticProvider(safety.DefaultConfig())
	}
	state := cfg.State
	if state == nil {
		state = devstate.NewStore()
	}
	sink := cfg.Telemetry
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Guard{
		id:        uuid.NewString(),
		safety:    provider,
		state:     state,
		sink:      sink,
		logger:    logger,
		inflight:  make(map[string]*inflightEntry),
		cache:     make(map[string]cacheEntry),
		domains:   make(map[Category]*failureDomain),
		cooldowns: make(map[Category]time.Time),
		now:       time.Now,
		sleep:     contextSleep,
	}
}

// ID returns the guard instance ID (useful to correlate telemetry captures).
func (g *Guard) ID() string { return g.id }

// State returns the device health store for read-only snapshot access.
func (g *Guard) State() *devstate.Store { return g.state }

// Interact admits one REST call described by desc and, if admitted, runs
// exec at most once no matter how many identical calls are in flight.
// See the package documentation for the admission pipeline.
func (g *Guard) Interact(ctx context.Context, desc Descriptor, exec Executor) (any, error) {
	return g.do(ctx, desc, telemetry.ChannelREST, "", "", exec)
}

// Interact is the typed variant of Guard.Interact for callers that know the
// executor's result type.
func Interact[T any](ctx context.Context, g *Guard, desc Descriptor, exec func(ctx context.Context) (T, error)) (T, error) {
	value, err := g.Interact(ctx, desc, func(ctx context.Context) (any, error) {
		return exec(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if value == nil {
		var zero T
		return zero, nil
	}
	result, ok := value.(T)
	if !ok {
		// Cached value written by a different executor type for the same
		// key. Treat as a miss would be kinder, but the keys are wrong:
		// surface it loudly instead of silently re-fetching.
		var zero T
		g.logger.Error("dedup key shared across result types", "key", desc.Key)
		return zero, ErrKeyTypeMismatch
	}
	return result, nil
}

// InteractFTP admits one FTP operation against path. FTP calls share the
// coalescing and concurrency machinery with REST but are never cached;
// directory listings carry the ftp-list cooldown. Failures are logged with
// operation and path context before being re-thrown, since FTP has no
// caller-visible trace layer elsewhere.
func (g *Guard) InteractFTP(ctx context.Context, op, path string, intent Intent, exec Executor) (any, error) {
	desc := Descriptor{
		Key:      FTPKey(op, path),
		Intent:   intent,
		Category: ftpCategory(op),
	}
	return g.do(ctx, desc, telemetry.ChannelFTP, op, path, exec)
}

// Reset discards all interaction bookkeeping: in-flight entries, cached
// responses, backoff schedules, and the circuit breaker. The active safety
// config is untouched. Used when the application reconnects to a (possibly
// different) device.
func (g *Guard) Reset(reason string) {
	g.mu.Lock()
	g.gen++
	g.inflight = make(map[string]*inflightEntry)
	g.cache = make(map[string]cacheEntry)
	g.domains = make(map[Category]*failureDomain)
	g.cooldowns = make(map[Category]time.Time)
	g.circuitFailures = 0
	g.circuitOpenUntil = time.Time{}
	g.mu.Unlock()

	g.state.Reset()
	g.logger.Info("interaction state reset", "reason", reason)
}

// do runs the admission pipeline for one call.
func (g *Guard) do(ctx context.Context, desc Descriptor, ch telemetry.Channel, op, fpath string, exec Executor) (any, error) {
	cfg := g.safety.Load()
	now := g.now()
	override := desc.Intent == IntentUser && cfg.AllowUserOverrideCircuit

	// 1. State guard. An ERROR forced by an open circuit is left to the
	// circuit guard so the caller learns the more specific reason.
	if snap := g.state.Snapshot(); snap.State == devstate.StateError && !snap.CircuitOpen(now) && !override {
		g.record(desc, ch, telemetry.DecisionBlock, telemetry.ReasonState, op, fpath, "")
		return nil, ErrDeviceNotReady
	}

	g.mu.Lock()

	// 2. Circuit guard. The deadline self-clears lazily once passed.
	if !g.circuitOpenUntil.IsZero() {
		if now.Before(g.circuitOpenUntil) {
			if !override {
				g.mu.Unlock()
				g.record(desc, ch, telemetry.DecisionBlock, telemetry.ReasonCircuit, op, fpath, "")
				return nil, ErrCircuitOpen
			}
		} else {
			g.circuitOpenUntil = time.Time{}
			g.circuitFailures = 0
		}
	}

	// 3. Coalescing: join an identical in-flight call.
	if entry, ok := g.inflight[desc.Key]; ok {
		g.mu.Unlock()
		g.record(desc, ch, telemetry.DecisionCoalesce, telemetry.ReasonNone, op, fpath, "")
		return g.await(ctx, entry)
	}

	// 4. Cache.
	if ce, ok := g.cache[desc.Key]; ok {
		if now.Before(ce.expiresAt) {
			g.mu.Unlock()
			g.record(desc, ch, telemetry.DecisionCache, telemetry.ReasonNone, op, fpath, "")
			return ce.value, nil
		}
		delete(g.cache, desc.Key)
	}

	// Admitted: register the shared entry before any waiting, so identical
	// calls arriving during the backoff delay or the semaphore queue
	// coalesce instead of piling up.
	entry := &inflightEntry{done: make(chan struct{}), gen: g.gen}
	g.inflight[desc.Key] = entry

	// 5. Deferral: the later of the category backoff and cooldown deadlines.
	var deferUntil time.Time
	reason := telemetry.ReasonNone
	if d := g.domains[desc.Category]; d != nil && d.nextAllowed.After(now) {
		deferUntil, reason = d.nextAllowed, telemetry.ReasonBackoff
	}
	if cd := g.cooldowns[desc.Category]; cd.After(now) && cd.After(deferUntil) {
		if reason == telemetry.ReasonNone {
			reason = telemetry.ReasonCooldown
		}
		deferUntil = cd
	}

	g.mu.Unlock()

	recorded := false
	if !deferUntil.IsZero() {
		g.record(desc, ch, telemetry.DecisionDefer, reason, op, fpath, "")
		recorded = true
		if err := g.sleep(ctx, deferUntil.Sub(now)); err != nil {
			g.settleEarly(desc.Key, entry, err)
			return nil, err
		}
	}

	// 6. Concurrency ceiling (FIFO). The semaphore reference is kept for
	// the release so a config swap mid-call cannot unbalance it.
	sem := g.semaphoreFor(ch, cfg)
	if err := sem.Acquire(ctx, 1); err != nil {
		g.settleEarly(desc.Key, entry, err)
		return nil, err
	}

	// 7. Execute.
	value, err := g.run(ctx, desc, cfg, entry, sem, exec)

	if !recorded {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		g.record(desc, ch, telemetry.DecisionExecute, telemetry.ReasonNone, op, fpath, errText)
	}
	if err != nil && ch == telemetry.ChannelFTP {
		g.logger.Error("ftp operation failed", "operation", op, "path", fpath, "error", err)
	}

	return value, err
}

// run executes the physical call. Settlement and the semaphore release are
// deferred so a panicking executor cannot strand coalescers on an unsettled
// entry or leak the slot; the panic is converted into a call failure.
func (g *Guard) run(ctx context.Context, desc Descriptor, cfg safety.Config, entry *inflightEntry, sem *semaphore.Weighted, exec Executor) (value any, err error) {
	g.state.MarkRequestStart()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
			g.logger.Error("executor panicked", "key", desc.Key, "panic", r)
			g.settle(desc, cfg, entry, nil, err)
		}
		sem.Release(1)
	}()

	value, err = exec(ctx)
	g.settle(desc, cfg, entry, value, err)
	return value, err
}

// await blocks until the shared entry settles and returns its outcome.
// Coalesced callers observe exactly the value or error of the physical call.
func (g *Guard) await(ctx context.Context, entry *inflightEntry) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-entry.done:
		return entry.value, entry.err
	}
}

// settle folds the executor outcome into cache, backoff, circuit, and
// health bookkeeping, removes the in-flight entry, and wakes coalescers.
// Entries admitted before a Reset skip the cache, backoff, and circuit
// bookkeeping; the health start/end pair is always balanced so an orphan
// cannot leave the reset store counting a request that already settled.
func (g *Guard) settle(desc Descriptor, cfg safety.Config, entry *inflightEntry, value any, err error) {
	now := g.now()

	g.mu.Lock()
	live := entry.gen == g.gen
	var openUntil time.Time
	clearCircuit := false
	if live {
		if cur, ok := g.inflight[desc.Key]; ok && cur == entry {
			delete(g.inflight, desc.Key)
		}

		if err == nil {
			if ttl := cacheTTLFor(cfg, desc.Category); ttl > 0 {
				g.cache[desc.Key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
			}
			if cd := cooldownFor(cfg, desc.Category); cd > 0 {
				g.cooldowns[desc.Category] = now.Add(cd)
			}
			if d := g.domains[desc.Category]; d != nil {
				d.failures = 0
				d.nextAllowed = time.Time{}
			}
			g.circuitFailures = 0
			if !g.circuitOpenUntil.IsZero() {
				g.circuitOpenUntil = time.Time{}
				clearCircuit = true
			}
		} else {
			d := g.domains[desc.Category]
			if d == nil {
				d = &failureDomain{}
				g.domains[desc.Category] = d
			}
			d.failures++
			d.nextAllowed = now.Add(backoffDelay(cfg, d.failures))

			g.circuitFailures++
			if g.circuitFailures >= cfg.CircuitBreakerThreshold {
				g.circuitOpenUntil = now.Add(cfg.CircuitBreakerCooldown)
				g.circuitFailures = 0
				openUntil = g.circuitOpenUntil
			}
		}
	}
	g.mu.Unlock()

	if live {
		if clearCircuit {
			g.state.ClearCircuit()
		}
		if !openUntil.IsZero() {
			g.state.SetCircuitOpenUntil(openUntil)
		}
	}
	g.state.MarkRequestEnd(err)

	entry.value = value
	entry.err = err
	close(entry.done)
}

// settleEarly removes an entry whose call never reached the executor
// (cancelled during deferral or while queued) and propagates err to any
// coalescers. No failure accounting: the device was never contacted.
func (g *Guard) settleEarly(key string, entry *inflightEntry, err error) {
	g.mu.Lock()
	if entry.gen == g.gen {
		if cur, ok := g.inflight[key]; ok && cur == entry {
			delete(g.inflight, key)
		}
	}
	g.mu.Unlock()

	entry.err = err
	close(entry.done)
}

// semaphoreFor returns the concurrency semaphore for the channel, rebuilt
// when the configured limit changed since the last call.
func (g *Guard) semaphoreFor(ch telemetry.Channel, cfg safety.Config) *semaphore.Weighted {
	limit := int64(cfg.RESTMaxConcurrency)
	slot := &g.restSem
	if ch == telemetry.ChannelFTP {
		limit = int64(cfg.FTPMaxConcurrency)
		slot = &g.ftpSem
	}
	if limit < 1 {
		limit = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if slot.sem == nil || slot.size != limit {
		slot.sem = semaphore.NewWeighted(limit)
		slot.size = limit
	}
	return slot.sem
}

func (g *Guard) record(desc Descriptor, ch telemetry.Channel, decision telemetry.Decision, reason telemetry.Reason, op, fpath, errText string) {
	g.sink.Record(telemetry.Event{
		Timestamp: g.now(),
		RecordID:  uuid.NewString(),
		Key:       desc.Key,
		Channel:   ch,
		Category:  desc.Category.String(),
		Intent:    desc.Intent.String(),
		Decision:  decision,
		Reason:    reason,
		Operation: op,
		Path:      fpath,
		Error:     errText,
	})
}

// cacheTTLFor returns the response-cache TTL for a category, or zero for
// categories that are never cached.
func cacheTTLFor(cfg safety.Config, c Category) time.Duration {
	switch c {
	case CategoryInfo:
		return cfg.InfoCacheTTL
	case CategoryConfigs:
		return cfg.ConfigsCacheTTL
	default:
		return 0
	}
}

// cooldownFor returns the minimum call spacing for a category, or zero.
func cooldownFor(cfg safety.Config, c Category) time.Duration {
	switch c {
	case CategoryConfigs:
		return cfg.ConfigsCooldown
	case CategoryDrives:
		return cfg.DrivesCooldown
	case CategoryFTPList:
		return cfg.FTPListCooldown
	default:
		return 0
	}
}
