package config

import (
	"os"
	"sync"
	"time"
)

// Provider serves the current configuration and transparently reloads it
// when the backing file changes. The orchestrator asks for a fresh snapshot
// at the top of every cycle, so edits to config.json take effect without a
// restart.
type Provider struct {
	path string

	mu      sync.RWMutex
	current *Config
	modTime time.Time
}

// NewProvider creates a provider backed by the given file. The initial
// configuration must already have been loaded from that file.
func NewProvider(path string, initial *Config) *Provider {
	p := &Provider{path: path, current: initial}
	if info, err := os.Stat(path); err == nil {
		p.modTime = info.ModTime()
	}
	return p
}

// Current returns the latest configuration, reloading the file if it has
// changed on disk. A file that fails to reload leaves the previous
// configuration in place.
func (p *Provider) Current() *Config {
	info, err := os.Stat(p.path)
	if err != nil {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.current
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !info.ModTime().After(p.modTime) {
		return p.current
	}

	cfg, err := LoadFile(p.path)
	if err != nil {
		// Keep serving the last good config; the file may be mid-edit.
		p.modTime = info.ModTime()
		return p.current
	}

	p.current = cfg
	p.modTime = info.ModTime()
	return p.current
}
