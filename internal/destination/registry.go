// Package destination implements delivery adapters for the supported chat
// platforms. Adapters consume opaque credential blobs and classify platform
// errors into the failure taxonomy; the relay core never sees raw SDK errors.
package destination

import (
	"sync"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
)

// Registry holds the delivery adapters keyed by platform.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Platform]domain.Destination
	log      *logging.Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		adapters: make(map[domain.Platform]domain.Destination),
		log:      log.Sub("destinations"),
	}
}

// Register adds an adapter. A second adapter for the same platform replaces
// the first.
func (r *Registry) Register(d domain.Destination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[d.Platform()] = d
	r.log.Info().Str("platform", string(d.Platform())).Msg("destination adapter registered")
}

// Get returns the adapter for a platform.
func (r *Registry) Get(p domain.Platform) (domain.Destination, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.adapters[p]
	return d, ok
}

// Platforms returns the registered platform keys.
func (r *Registry) Platforms() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}

// RegisterDefaults wires the real platform adapters.
func RegisterDefaults(r *Registry, log *logging.Logger) {
	r.Register(NewDiscord(log))
	r.Register(NewTelegram(log))
	r.Register(NewSlack(log))
}
