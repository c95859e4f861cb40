// Package guard is the admission-control layer between an application and a
// single Ultimate device. Every REST and FTP call to the device goes through
// a Guard, which decides per call whether to execute, join an identical
// in-flight call, serve a cached response, delay, or fail fast.
//
// The device firmware cannot tolerate request floods: concurrent or
// rapid-fire calls cause timeouts, corrupted state, or hangs. The Guard
// protects it with five mechanisms, applied in a fixed order:
//
//  1. State guard: calls are rejected while the device is marked ERROR,
//     unless the call is user-initiated and the active profile allows the
//     override.
//  2. Circuit breaker: after repeated consecutive failures, all calls are
//     rejected for a cooldown period.
//  3. Coalescing: concurrent calls with the same dedup key share one
//     physical call and settle identically.
//  4. Response cache: categories with a configured TTL are served from cache
//     after a success.
//  5. Backoff and cooldown: failed categories wait out an exponential
//     backoff delay; chatty categories (configs, drives, FTP listings) keep
//     a minimum spacing between physical calls.
//
// Independently of all of the above, a counting semaphore per channel caps
// how many REST and FTP calls run at once; excess calls queue FIFO.
//
// The Guard never performs network I/O itself. The caller supplies a fresh
// Executor closure per call; its error, if any, reaches every coalesced
// caller unmodified. The Guard never retries on the caller's behalf; its
// only recovery behaviour is internal bookkeeping.
//
// Reset discards all bookkeeping (in-flight table, cache, backoff, circuit)
// when the application reconnects, so state from a previous device cannot
// leak across connections. Executors still running from before a Reset
// settle their callers but no longer touch the cache, backoff, or circuit
// state.
package guard
