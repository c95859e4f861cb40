package telemetry

import (
	"time"
)

// Event is one admission decision made by the interaction guard.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the decision was made (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// RecordID uniquely identifies this record (UUID).
	RecordID string `cbor:"2,keyasint"`

	// Key is the dedup key of the call.
	Key string `cbor:"3,keyasint"`

	// Channel is the transport channel the call targets.
	Channel Channel `cbor:"4,keyasint"`

	// Category is the cache/cooldown category name of the call.
	Category string `cbor:"5,keyasint,omitempty"`

	// Intent is the caller-supplied classification (user/system/background).
	Intent string `cbor:"6,keyasint,omitempty"`

	// Decision is what the guard decided.
	Decision Decision `cbor:"7,keyasint"`

	// Reason qualifies block and defer decisions.
	Reason Reason `cbor:"8,keyasint,omitempty"`

	// Error is the failure message for calls that executed and failed.
	Error string `cbor:"9,keyasint,omitempty"`

	// Operation is the FTP operation name, for FTP calls only.
	Operation string `cbor:"10,keyasint,omitempty"`

	// Path is the FTP path, for FTP calls only.
	Path string `cbor:"11,keyasint,omitempty"`
}

// Channel identifies which transport channel a call targets.
type Channel uint8

const (
	// ChannelREST is the HTTP API channel.
	ChannelREST Channel = 0
	// ChannelFTP is the file-transfer channel.
	ChannelFTP Channel = 1
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelREST:
		return "REST"
	case ChannelFTP:
		return "FTP"
	default:
		return "UNKNOWN"
	}
}

// Decision is the admission outcome for one call.
type Decision uint8

const (
	// DecisionExecute indicates the call reached the transport executor.
	DecisionExecute Decision = 0
	// DecisionBlock indicates the call was rejected without executing.
	DecisionBlock Decision = 1
	// DecisionCoalesce indicates the call joined an identical in-flight call.
	DecisionCoalesce Decision = 2
	// DecisionCache indicates the call was served from the response cache.
	DecisionCache Decision = 3
	// DecisionDefer indicates the call was delayed before executing.
	DecisionDefer Decision = 4
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionExecute:
		return "EXECUTE"
	case DecisionBlock:
		return "BLOCK"
	case DecisionCoalesce:
		return "COALESCE"
	case DecisionCache:
		return "CACHE"
	case DecisionDefer:
		return "DEFER"
	default:
		return "UNKNOWN"
	}
}

// Reason qualifies a block or defer decision.
type Reason uint8

const (
	// ReasonNone is used for decisions that need no qualifier.
	ReasonNone Reason = 0
	// ReasonState indicates the device health state guard fired.
	ReasonState Reason = 1
	// ReasonCircuit indicates the circuit breaker was open.
	ReasonCircuit Reason = 2
	// ReasonBackoff indicates a post-failure backoff delay.
	ReasonBackoff Reason = 3
	// ReasonCooldown indicates a per-category minimum call spacing.
	ReasonCooldown Reason = 4
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonState:
		return "STATE"
	case ReasonCircuit:
		return "CIRCUIT"
	case ReasonBackoff:
		return "BACKOFF"
	case ReasonCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}
