package config

import "sync"

// ChangeListener is notified after the provider swaps in a new
// configuration. Listeners run on the swapping goroutine.
type ChangeListener func(previous, current *ServerConfig)

// Provider holds the daemon's current configuration and fans out change
// notifications on swap. Safe for concurrent use; notification happens in
// registration order, outside the lock, so listeners may call Current.
type Provider struct {
	mu        sync.RWMutex
	current   *ServerConfig
	listeners []ChangeListener
}

// NewProvider creates a provider seeded with the given configuration.
func NewProvider(cfg *ServerConfig) *Provider {
	return &Provider{current: cfg}
}

// Current returns the configuration in effect.
func (p *Provider) Current() *ServerConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Swap installs a new configuration and notifies listeners.
func (p *Provider) Swap(cfg *ServerConfig) {
	p.mu.Lock()
	previous := p.current
	p.current = cfg
	listeners := make([]ChangeListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(previous, cfg)
	}
}

// OnChange registers a listener for future swaps.
func (p *Provider) OnChange(listener ChangeListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}
