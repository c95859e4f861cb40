package safety

import (
	"errors"
	"fmt"
	"time"
)

// Config errors.
var (
	ErrInvalidConcurrency = errors.New("concurrency limit must be at least 1")
	ErrInvalidBackoff     = errors.New("invalid backoff parameters")
	ErrInvalidCircuit     = errors.New("invalid circuit breaker parameters")
)

// Config holds the admission-control thresholds for one device connection.
// It is a plain value; copy it freely. The zero value is not usable; start
// from a profile (see Profiles) or DefaultConfig.
type Config struct {
	// RESTMaxConcurrency caps simultaneous REST calls to the device.
	RESTMaxConcurrency int `yaml:"rest_max_concurrency"`

	// FTPMaxConcurrency caps simultaneous FTP operations.
	FTPMaxConcurrency int `yaml:"ftp_max_concurrency"`

	// InfoCacheTTL is how long a successful device-info response is served
	// from cache.
	InfoCacheTTL time.Duration `yaml:"info_cache_ttl"`

	// ConfigsCacheTTL is how long a successful configuration read is served
	// from cache.
	ConfigsCacheTTL time.Duration `yaml:"configs_cache_ttl"`

	// ConfigsCooldown is the minimum spacing between physical configuration
	// reads.
	ConfigsCooldown time.Duration `yaml:"configs_cooldown"`

	// DrivesCooldown is the minimum spacing between drive enumeration calls.
	DrivesCooldown time.Duration `yaml:"drives_cooldown"`

	// FTPListCooldown is the minimum spacing between FTP directory listings.
	FTPListCooldown time.Duration `yaml:"ftp_list_cooldown"`

	// BackoffBase is the delay inserted before the first retry after a
	// failure.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMax caps the backoff delay.
	BackoffMax time.Duration `yaml:"backoff_max"`

	// BackoffFactor is the multiplier applied per consecutive failure.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// CircuitBreakerThreshold is the number of consecutive failures (across
	// the whole device) that opens the circuit.
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`

	// CircuitBreakerCooldown is how long the circuit stays open.
	CircuitBreakerCooldown time.Duration `yaml:"circuit_breaker_cooldown"`

	// AllowUserOverrideCircuit lets user-initiated calls through the state
	// and circuit guards while the device is marked unhealthy.
	AllowUserOverrideCircuit bool `yaml:"allow_user_override_circuit"`
}

// DefaultConfig returns the Balanced profile.
func DefaultConfig() Config {
	return Profiles[ProfileBalanced]
}

// Validate checks that the config is internally consistent.
func (c Config) Validate() error {
	if c.RESTMaxConcurrency < 1 {
		return fmt.Errorf("rest_max_concurrency: %w", ErrInvalidConcurrency)
	}
	if c.FTPMaxConcurrency < 1 {
		return fmt.Errorf("ftp_max_concurrency: %w", ErrInvalidConcurrency)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff_base must be positive: %w", ErrInvalidBackoff)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff_max below backoff_base: %w", ErrInvalidBackoff)
	}
	if c.BackoffFactor <= 1 {
		return fmt.Errorf("backoff_factor must exceed 1: %w", ErrInvalidBackoff)
	}
	if c.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit_breaker_threshold must be at least 1: %w", ErrInvalidCircuit)
	}
	if c.CircuitBreakerCooldown <= 0 {
		return fmt.Errorf("circuit_breaker_cooldown must be positive: %w", ErrInvalidCircuit)
	}
	return nil
}
