package devstate

import (
	"sync"
	"time"
)

// DefaultErrorTolerance is the number of consecutive failures after which the
// device is marked ERROR.
const DefaultErrorTolerance = 3

// State represents the device health state.
type State uint8

const (
	// StateReady indicates the device is idle and believed healthy.
	StateReady State = iota

	// StateBusy indicates at least one request is in flight.
	StateBusy

	// StateError indicates repeated failures or an open circuit breaker.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateBusy:
		return "BUSY"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a point-in-time copy of the device health state.
type Snapshot struct {
	// State is the current health classification.
	State State

	// BusyCount is the number of requests currently in flight.
	BusyCount int

	// LastUpdated is when the snapshot last changed.
	LastUpdated time.Time

	// LastErrorMessage is the message of the most recent failure. Cleared on
	// success.
	LastErrorMessage string

	// LastSuccess is when a request last succeeded.
	LastSuccess time.Time

	// CircuitOpenUntil is the circuit-breaker deadline. Zero means closed.
	CircuitOpenUntil time.Time
}

// CircuitOpen reports whether the circuit breaker is open at t.
func (s Snapshot) CircuitOpen(t time.Time) bool {
	return !s.CircuitOpenUntil.IsZero() && t.Before(s.CircuitOpenUntil)
}

// Config holds Store construction options.
type Config struct {
	// ErrorTolerance is the consecutive-failure count that flips the state
	// to ERROR. Default: DefaultErrorTolerance.
	ErrorTolerance int

	// OnChange, if set, is called with a snapshot copy after every change.
	// It runs outside the store lock; implementations must not call back
	// into the store synchronously from other goroutines without expecting
	// interleaving.
	OnChange func(Snapshot)
}

// Store holds the mutable health snapshot for one device connection.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	failures  int
	tolerance int
	onChange  func(Snapshot)

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewStore creates a store with default settings.
func NewStore() *Store {
	return NewStoreWithConfig(Config{})
}

// NewStoreWithConfig creates a store with custom settings.
func NewStoreWithConfig(cfg Config) *Store {
	tolerance := cfg.ErrorTolerance
	if tolerance <= 0 {
		tolerance = DefaultErrorTolerance
	}
	return &Store{
		snap:      Snapshot{State: StateReady},
		tolerance: tolerance,
		onChange:  cfg.OnChange,
		now:       time.Now,
	}
}

// Snapshot returns a copy of the current state. An expired circuit deadline
// is cleared as a side effect, so the returned snapshot never reports a
// circuit that has already lapsed.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	changed := s.expireCircuitLocked(s.now())
	snap := s.snap
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return snap
}

// MarkRequestStart records that a request is entering execution.
func (s *Store) MarkRequestStart() {
	s.mu.Lock()
	now := s.now()
	s.expireCircuitLocked(now)
	s.snap.BusyCount++
	if s.snap.State != StateError {
		s.snap.State = StateBusy
	}
	s.snap.LastUpdated = now
	snap := s.snap
	s.mu.Unlock()

	s.notify(snap)
}

// MarkRequestEnd records the outcome of a request started via
// MarkRequestStart. A nil err is a success.
func (s *Store) MarkRequestEnd(err error) {
	s.mu.Lock()
	now := s.now()
	s.expireCircuitLocked(now)

	if s.snap.BusyCount > 0 {
		s.snap.BusyCount--
	}

	if err == nil {
		s.failures = 0
		s.snap.LastSuccess = now
		s.snap.LastErrorMessage = ""
		if s.snap.CircuitOpenUntil.IsZero() {
			if s.snap.BusyCount == 0 {
				s.snap.State = StateReady
			} else {
				s.snap.State = StateBusy
			}
		}
	} else {
		s.failures++
		s.snap.LastErrorMessage = err.Error()
		if s.failures >= s.tolerance {
			s.snap.State = StateError
		} else if s.snap.State != StateError {
			if s.snap.BusyCount == 0 {
				s.snap.State = StateReady
			} else {
				s.snap.State = StateBusy
			}
		}
	}

	s.snap.LastUpdated = now
	snap := s.snap
	s.mu.Unlock()

	s.notify(snap)
}

// SetCircuitOpenUntil records the circuit-breaker deadline and forces the
// state to ERROR until the deadline passes. A zero deadline closes the
// circuit immediately.
func (s *Store) SetCircuitOpenUntil(t time.Time) {
	s.mu.Lock()
	now := s.now()
	s.snap.CircuitOpenUntil = t
	if !t.IsZero() && now.Before(t) {
		s.snap.State = StateError
	} else {
		s.snap.CircuitOpenUntil = time.Time{}
		s.failures = 0
		s.recomputeIdleStateLocked()
	}
	s.snap.LastUpdated = now
	snap := s.snap
	s.mu.Unlock()

	s.notify(snap)
}

// ClearCircuit closes the circuit breaker and recovers the state.
func (s *Store) ClearCircuit() {
	s.SetCircuitOpenUntil(time.Time{})
}

// Reset restores the store to its initial state. Used when the client
// reconnects, possibly to a different device.
func (s *Store) Reset() {
	s.mu.Lock()
	s.snap = Snapshot{State: StateReady, LastUpdated: s.now()}
	s.failures = 0
	snap := s.snap
	s.mu.Unlock()

	s.notify(snap)
}

// expireCircuitLocked lazily clears a lapsed circuit deadline. Reports
// whether the snapshot changed.
func (s *Store) expireCircuitLocked(now time.Time) bool {
	if s.snap.CircuitOpenUntil.IsZero() || now.Before(s.snap.CircuitOpenUntil) {
		return false
	}
	s.snap.CircuitOpenUntil = time.Time{}
	s.failures = 0
	s.recomputeIdleStateLocked()
	s.snap.LastUpdated = now
	return true
}

func (s *Store) recomputeIdleStateLocked() {
	if s.snap.BusyCount == 0 {
		s.snap.State = StateReady
	} else {
		s.snap.State = StateBusy
	}
}

func (s *Store) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
