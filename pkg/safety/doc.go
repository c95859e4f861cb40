// Package safety defines the tunable thresholds that govern how aggressively
// the interaction guard is allowed to talk to an Ultimate device.
//
// A Config is an immutable value: the guard re-reads its Provider on every
// call, so swapping the active config takes effect immediately for newly
// admitted calls. Swaps never reschedule backoff or cache deadlines that were
// computed under the previous config, and never resize queues that are
// already waiting.
//
// # Profiles
//
// Four named profiles cover the usual situations:
//
//   - Relaxed: fast local network, firmware known to be well-behaved
//   - Balanced: the default; sensible for most devices
//   - Conservative: flaky Wi-Fi bridges or early firmware
//   - Troubleshooting: near-serial access while diagnosing a sick device
//
// A profile can be used as-is or as the base of a YAML override file loaded
// through FileProvider.
package safety
