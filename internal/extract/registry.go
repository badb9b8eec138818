package extract

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Strategy extracts links from one family of container sites.
type Strategy interface {
	Name() string
	Matches(host string) bool
	Extract(ctx context.Context, target *url.URL, password string) (*Result, error)
}

// Registry dispatches a host to the first matching strategy, in registration
// order, and falls back to a catch-all strategy otherwise.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	fallback   Strategy
}

// NewRegistry builds a registry with the given fallback.
func NewRegistry(fallback Strategy, strategies ...Strategy) *Registry {
	r := &Registry{fallback: fallback}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register appends a strategy.
func (r *Registry) Register(s Strategy) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.strategies = append(r.strategies, s)
	r.mu.Unlock()
}

// Lookup returns the strategy responsible for host.
func (r *Registry) Lookup(host string) Strategy {
	host = normalizeHost(host)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.Matches(host) {
			return s
		}
	}
	return r.fallback
}

// Names lists registered strategies followed by the fallback.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies)+1)
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	if r.fallback != nil {
		names = append(names, r.fallback.Name())
	}
	return names
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
