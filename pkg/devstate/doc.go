// Package devstate tracks the health of a single Ultimate device as seen by
// the interaction guard.
//
// The Store holds one mutable snapshot per device connection. The guard is
// its only writer: it marks requests as they start and settle and records
// circuit-breaker deadlines. Everything else (UI, pollers) reads point-in-time
// copies via Snapshot.
//
// State transitions:
//
//   - READY -> BUSY while at least one request is in flight
//   - BUSY/READY -> ERROR once consecutive failures reach the error
//     tolerance, or immediately when the circuit breaker opens
//   - ERROR -> READY on the next success, or lazily once an open circuit
//     deadline has passed
package devstate
