package guard

import "errors"

// Guard errors. Executor errors are never wrapped or transformed; these are
// the only errors the guard produces on its own.
var (
	// ErrDeviceNotReady is returned by the state guard while the device is
	// marked ERROR. Not retried by the guard; wait for the device to
	// recover or issue a user-intent call if the profile allows overrides.
	ErrDeviceNotReady = errors.New("device not ready")

	// ErrCircuitOpen is returned while the circuit breaker is open. The
	// call never reached the network; retry after the cooldown.
	ErrCircuitOpen = errors.New("device circuit breaker open")

	// ErrKeyTypeMismatch is returned by the typed Interact wrapper when a
	// dedup key is shared by executors with different result types.
	ErrKeyTypeMismatch = errors.New("dedup key shared across result types")
)
