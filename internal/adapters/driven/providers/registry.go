// Package providers holds the per-platform OAuth adapters and the helpers they share.
package providers

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry resolves OAuth adapters by platform.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.Platform]driven.OAuthProvider
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(providers ...driven.OAuthProvider) *Registry {
	r := &Registry{
		providers: make(map[domain.Platform]driven.OAuthProvider, len(providers)),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(p driven.OAuthProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Platform()] = p
}

// Get returns the adapter for a platform.
func (r *Registry) Get(platform domain.Platform) (driven.OAuthProvider, error) {
	r.mu.RLock()
	p, ok := r.providers[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPlatform, platform)
	}
	return p, nil
}

// Platforms lists the registered platforms in display order.
func (r *Registry) Platforms() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Platform, 0, len(r.providers))
	for _, p := range domain.AllPlatforms() {
		if _, ok := r.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
