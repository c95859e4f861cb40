package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileProvider serves a config loaded from a YAML profile file. The file
// names a built-in profile and may override individual thresholds:
//
//	profile: conservative
//	overrides:
//	  rest_max_concurrency: 1
//	  backoff_base: 500ms
//
// Reload re-reads the file on demand; Watch re-reads it whenever the file
// changes on disk. A file that fails to parse or validate leaves the
// previously loaded config active.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	cfg    Config
	nextID int
	subs   map[int]func(Config)
}

// fileDuration accepts Go duration strings ("250ms", "1m30s") in YAML.
type fileDuration time.Duration

func (d *fileDuration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = fileDuration(parsed)
	return nil
}

// fileOverrides mirrors Config with optional fields so absent keys keep the
// profile's value.
type fileOverrides struct {
	RESTMaxConcurrency       *int          `yaml:"rest_max_concurrency"`
	FTPMaxConcurrency        *int          `yaml:"ftp_max_concurrency"`
	InfoCacheTTL             *fileDuration `yaml:"info_cache_ttl"`
	ConfigsCacheTTL          *fileDuration `yaml:"configs_cache_ttl"`
	ConfigsCooldown          *fileDuration `yaml:"configs_cooldown"`
	DrivesCooldown           *fileDuration `yaml:"drives_cooldown"`
	FTPListCooldown          *fileDuration `yaml:"ftp_list_cooldown"`
	BackoffBase              *fileDuration `yaml:"backoff_base"`
	BackoffMax               *fileDuration `yaml:"backoff_max"`
	BackoffFactor            *float64      `yaml:"backoff_factor"`
	CircuitBreakerThreshold  *int          `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown   *fileDuration `yaml:"circuit_breaker_cooldown"`
	AllowUserOverrideCircuit *bool         `yaml:"allow_user_override_circuit"`
}

type profileFile struct {
	Profile   string        `yaml:"profile"`
	Overrides fileOverrides `yaml:"overrides"`
}

// ParseProfileFile parses a YAML profile document into a validated Config.
func ParseProfileFile(data []byte) (Config, error) {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return Config{}, fmt.Errorf("parse profile file: %w", err)
	}

	cfg := DefaultConfig()
	if pf.Profile != "" {
		profile, err := ProfileByName(pf.Profile)
		if err != nil {
			return Config{}, err
		}
		cfg = Profiles[profile]
	}

	applyOverrides(&cfg, pf.Overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, o fileOverrides) {
	if o.RESTMaxConcurrency != nil {
		cfg.RESTMaxConcurrency = *o.RESTMaxConcurrency
	}
	if o.FTPMaxConcurrency != nil {
		cfg.FTPMaxConcurrency = *o.FTPMaxConcurrency
	}
	if o.InfoCacheTTL != nil {
		cfg.InfoCacheTTL = time.Duration(*o.InfoCacheTTL)
	}
	if o.ConfigsCacheTTL != nil {
		cfg.ConfigsCacheTTL = time.Duration(*o.ConfigsCacheTTL)
	}
	if o.ConfigsCooldown != nil {
		cfg.ConfigsCooldown = time.Duration(*o.ConfigsCooldown)
	}
	if o.DrivesCooldown != nil {
		cfg.DrivesCooldown = time.Duration(*o.DrivesCooldown)
	}
	if o.FTPListCooldown != nil {
		cfg.FTPListCooldown = time.Duration(*o.FTPListCooldown)
	}
	if o.BackoffBase != nil {
		cfg.BackoffBase = time.Duration(*o.BackoffBase)
	}
	if o.BackoffMax != nil {
		cfg.BackoffMax = time.Duration(*o.BackoffMax)
	}
	if o.BackoffFactor != nil {
		cfg.BackoffFactor = *o.BackoffFactor
	}
	if o.CircuitBreakerThreshold != nil {
		cfg.CircuitBreakerThreshold = *o.CircuitBreakerThreshold
	}
	if o.CircuitBreakerCooldown != nil {
		cfg.CircuitBreakerCooldown = time.Duration(*o.CircuitBreakerCooldown)
	}
	if o.AllowUserOverrideCircuit != nil {
		cfg.AllowUserOverrideCircuit = *o.AllowUserOverrideCircuit
	}
}

// NewFileProvider loads path and returns a provider serving its config.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{
		path: path,
		cfg:  DefaultConfig(),
		subs: make(map[int]func(Config)),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load returns the most recently loaded config.
func (p *FileProvider) Load() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Reload re-reads the profile file and notifies subscribers on success.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read profile file: %w", err)
	}
	cfg, err := ParseProfileFile(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	subs := make([]func(Config), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

// Subscribe registers fn for change notifications.
func (p *FileProvider) Subscribe(fn func(Config)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Watch reloads the profile file whenever it changes on disk, until the stop
// channel closes. Parse failures keep the previous config; there is nothing
// useful to do with them here beyond skipping the swap.
//
// The parent directory is watched rather than the file itself so that
// editors that replace the file (write temp + rename) are still observed.
func (p *FileProvider) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Clean(p.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				_ = p.Reload()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Compile-time interface satisfaction check.
var _ Provider = (*FileProvider)(nil)
