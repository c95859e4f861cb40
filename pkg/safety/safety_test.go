package safety

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Profile
		wantErr bool
	}{
		{"balanced", ProfileBalanced, false},
		{"BALANCED", ProfileBalanced, false},
		{" Relaxed ", ProfileRelaxed, false},
		{"conservative", ProfileConservative, false},
		{"troubleshooting", ProfileTroubleshooting, false},
		{"turbo", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProfileByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProfileByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnknownProfile) {
					t.Errorf("error = %v, want ErrUnknownProfile", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ProfileByName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestProfilesAreValid(t *testing.T) {
	for profile, cfg := range Profiles {
		if err := cfg.Validate(); err != nil {
			t.Errorf("profile %s invalid: %v", profile, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"Valid", func(*Config) {}, nil},
		{"ZeroRESTConcurrency", func(c *Config) { c.RESTMaxConcurrency = 0 }, ErrInvalidConcurrency},
		{"NegativeFTPConcurrency", func(c *Config) { c.FTPMaxConcurrency = -1 }, ErrInvalidConcurrency},
		{"ZeroBackoffBase", func(c *Config) { c.BackoffBase = 0 }, ErrInvalidBackoff},
		{"MaxBelowBase", func(c *Config) { c.BackoffMax = c.BackoffBase / 2 }, ErrInvalidBackoff},
		{"FactorOne", func(c *Config) { c.BackoffFactor = 1 }, ErrInvalidBackoff},
		{"ZeroThreshold", func(c *Config) { c.CircuitBreakerThreshold = 0 }, ErrInvalidCircuit},
		{"ZeroCircuitCooldown", func(c *Config) { c.CircuitBreakerCooldown = 0 }, ErrInvalidCircuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStaticProviderSetNotifiesSubscribers(t *testing.T) {
	p := NewStaticProvider(Profiles[ProfileBalanced])

	var got []Config
	cancel := p.Subscribe(func(cfg Config) {
		got = append(got, cfg)
	})

	next := Profiles[ProfileConservative]
	p.Set(next)

	if len(got) != 1 {
		t.Fatalf("subscriber called %d times, want 1", len(got))
	}
	if got[0] != next {
		t.Errorf("subscriber got %+v, want conservative profile", got[0])
	}
	if p.Load() != next {
		t.Errorf("Load() did not reflect Set")
	}

	cancel()
	p.Set(Profiles[ProfileRelaxed])
	if len(got) != 1 {
		t.Errorf("subscriber called after cancel")
	}
}

func TestStaticProviderZeroValue(t *testing.T) {
	var p StaticProvider
	if p.Load() != DefaultConfig() {
		t.Errorf("zero-value provider should serve the Balanced profile")
	}
}

func TestParseProfileFile(t *testing.T) {
	t.Run("ProfileOnly", func(t *testing.T) {
		cfg, err := ParseProfileFile([]byte("profile: conservative\n"))
		if err != nil {
			t.Fatalf("ParseProfileFile: %v", err)
		}
		if cfg != Profiles[ProfileConservative] {
			t.Errorf("got %+v, want conservative profile", cfg)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		doc := `
profile: balanced
overrides:
  rest_max_concurrency: 1
  backoff_base: 500ms
  circuit_breaker_cooldown: 1m
  allow_user_override_circuit: false
`
		cfg, err := ParseProfileFile([]byte(doc))
		if err != nil {
			t.Fatalf("ParseProfileFile: %v", err)
		}
		if cfg.RESTMaxConcurrency != 1 {
			t.Errorf("RESTMaxConcurrency = %d, want 1", cfg.RESTMaxConcurrency)
		}
		if cfg.BackoffBase != 500*time.Millisecond {
			t.Errorf("BackoffBase = %v, want 500ms", cfg.BackoffBase)
		}
		if cfg.CircuitBreakerCooldown != time.Minute {
			t.Errorf("CircuitBreakerCooldown = %v, want 1m", cfg.CircuitBreakerCooldown)
		}
		if cfg.AllowUserOverrideCircuit {
			t.Errorf("AllowUserOverrideCircuit = true, want false")
		}
		// Untouched fields keep the profile value.
		if cfg.FTPMaxConcurrency != Profiles[ProfileBalanced].FTPMaxConcurrency {
			t.Errorf("FTPMaxConcurrency changed without an override")
		}
	})

	t.Run("UnknownProfile", func(t *testing.T) {
		if _, err := ParseProfileFile([]byte("profile: warp\n")); !errors.Is(err, ErrUnknownProfile) {
			t.Errorf("error = %v, want ErrUnknownProfile", err)
		}
	})

	t.Run("InvalidDuration", func(t *testing.T) {
		if _, err := ParseProfileFile([]byte("overrides:\n  backoff_base: soon\n")); err == nil {
			t.Errorf("expected error for unparsable duration")
		}
	})

	t.Run("InvalidResult", func(t *testing.T) {
		if _, err := ParseProfileFile([]byte("overrides:\n  rest_max_concurrency: 0\n")); err == nil {
			t.Errorf("expected validation error")
		}
	})
}

func TestFileProviderReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safety.yaml")
	if err := os.WriteFile(path, []byte("profile: balanced\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	if p.Load() != Profiles[ProfileBalanced] {
		t.Fatalf("initial Load() = %+v, want balanced", p.Load())
	}

	var notified int
	p.Subscribe(func(Config) { notified++ })

	if err := os.WriteFile(path, []byte("profile: troubleshooting\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if p.Load() != Profiles[ProfileTroubleshooting] {
		t.Errorf("Load() after reload = %+v, want troubleshooting", p.Load())
	}
	if notified != 1 {
		t.Errorf("subscriber called %d times, want 1", notified)
	}

	// A broken file keeps the previous config active.
	if err := os.WriteFile(path, []byte("profile: warp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err == nil {
		t.Errorf("Reload should fail for an unknown profile")
	}
	if p.Load() != Profiles[ProfileTroubleshooting] {
		t.Errorf("failed reload replaced the active config")
	}
}
