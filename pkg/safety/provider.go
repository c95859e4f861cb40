package safety

import "sync"

// Provider supplies the active Config to the interaction guard. The guard
// calls Load on every admission decision, so implementations must be cheap
// and safe for concurrent use.
type Provider interface {
	// Load returns the currently active config.
	Load() Config

	// Subscribe registers a callback invoked after the active config
	// changes. The returned function cancels the subscription.
	Subscribe(fn func(Config)) (cancel func())
}

// StaticProvider holds a config in memory. Set swaps it at runtime and
// notifies subscribers. The zero value serves the Balanced profile.
type StaticProvider struct {
	mu     sync.RWMutex
	cfg    *Config
	nextID int
	subs   map[int]func(Config)
}

// NewStaticProvider creates a provider serving cfg.
func NewStaticProvider(cfg Config) *StaticProvider {
	return &StaticProvider{cfg: &cfg}
}

// Load returns the active config.
func (p *StaticProvider) Load() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg == nil {
		return DefaultConfig()
	}
	return *p.cfg
}

// Set swaps the active config and notifies subscribers. Callbacks run on the
// calling goroutine.
func (p *StaticProvider) Set(cfg Config) {
	p.mu.Lock()
	p.cfg = &cfg
	subs := make([]func(Config), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// Subscribe registers fn for change notifications.
func (p *StaticProvider) Subscribe(fn func(Config)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subs == nil {
		p.subs = make(map[int]func(Config))
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Compile-time interface satisfaction check.
var _ Provider = (*StaticProvider)(nil)
