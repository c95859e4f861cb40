package safety

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownProfile is returned when a profile name does not match any
// built-in profile.
var ErrUnknownProfile = errors.New("unknown safety profile")

// Profile identifies one of the built-in threshold sets.
type Profile uint8

const (
	// ProfileRelaxed suits a reliable wired network and current firmware.
	ProfileRelaxed Profile = iota

	// ProfileBalanced is the default profile.
	ProfileBalanced

	// ProfileConservative slows everything down for flaky links.
	ProfileConservative

	// ProfileTroubleshooting serialises access while diagnosing a device.
	ProfileTroubleshooting
)

// String returns the profile name.
func (p Profile) String() string {
	switch p {
	case ProfileRelaxed:
		return "RELAXED"
	case ProfileBalanced:
		return "BALANCED"
	case ProfileConservative:
		return "CONSERVATIVE"
	case ProfileTroubleshooting:
		return "TROUBLESHOOTING"
	default:
		return "UNKNOWN"
	}
}

// Profiles maps each built-in profile to its thresholds.
var Profiles = map[Profile]Config{
	ProfileRelaxed: {
		RESTMaxConcurrency:       3,
		FTPMaxConcurrency:        2,
		InfoCacheTTL:             500 * time.Millisecond,
		ConfigsCacheTTL:          2 * time.Second,
		ConfigsCooldown:          250 * time.Millisecond,
		DrivesCooldown:           500 * time.Millisecond,
		FTPListCooldown:          250 * time.Millisecond,
		BackoffBase:              200 * time.Millisecond,
		BackoffMax:               3 * time.Second,
		BackoffFactor:            2,
		CircuitBreakerThreshold:  5,
		CircuitBreakerCooldown:   5 * time.Second,
		AllowUserOverrideCircuit: true,
	},
	ProfileBalanced: {
		RESTMaxConcurrency:       2,
		FTPMaxConcurrency:        1,
		InfoCacheTTL:             1 * time.Second,
		ConfigsCacheTTL:          5 * time.Second,
		ConfigsCooldown:          1 * time.Second,
		DrivesCooldown:           2 * time.Second,
		FTPListCooldown:          1 * time.Second,
		BackoffBase:              250 * time.Millisecond,
		BackoffMax:               5 * time.Second,
		BackoffFactor:            2,
		CircuitBreakerThreshold:  3,
		CircuitBreakerCooldown:   10 * time.Second,
		AllowUserOverrideCircuit: true,
	},
	ProfileConservative: {
		RESTMaxConcurrency:       1,
		FTPMaxConcurrency:        1,
		InfoCacheTTL:             3 * time.Second,
		ConfigsCacheTTL:          10 * time.Second,
		ConfigsCooldown:          3 * time.Second,
		DrivesCooldown:           5 * time.Second,
		FTPListCooldown:          3 * time.Second,
		BackoffBase:              500 * time.Millisecond,
		BackoffMax:               15 * time.Second,
		BackoffFactor:            2,
		CircuitBreakerThreshold:  3,
		CircuitBreakerCooldown:   30 * time.Second,
		AllowUserOverrideCircuit: true,
	},
	ProfileTroubleshooting: {
		RESTMaxConcurrency:       1,
		FTPMaxConcurrency:        1,
		InfoCacheTTL:             10 * time.Second,
		ConfigsCacheTTL:          30 * time.Second,
		ConfigsCooldown:          10 * time.Second,
		DrivesCooldown:           15 * time.Second,
		FTPListCooldown:          10 * time.Second,
		BackoffBase:              1 * time.Second,
		BackoffMax:               60 * time.Second,
		BackoffFactor:            2,
		CircuitBreakerThreshold:  2,
		CircuitBreakerCooldown:   60 * time.Second,
		AllowUserOverrideCircuit: false,
	},
}

// ProfileByName resolves a case-insensitive profile name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "RELAXED":
		return ProfileRelaxed, nil
	case "BALANCED":
		return ProfileBalanced, nil
	case "CONSERVATIVE":
		return ProfileConservative, nil
	case "TROUBLESHOOTING":
		return ProfileTroubleshooting, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}
