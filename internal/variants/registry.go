package variants

import (
	"sync"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
)

// Registry hands out one Cache per console scope so every purchasing form opened under the
// same organization and company shares memoized variants.
type Registry struct {
	source variantSource
	limit  int
	logg   *logger.Logger

	mu     sync.Mutex
	caches map[string]*Cache
}

// NewRegistry builds an empty registry.
func NewRegistry(source variantSource, limit int, logg *logger.Logger) *Registry {
	return &Registry{
		source: source,
		limit:  limit,
		logg:   logg,
		caches: map[string]*Cache{},
	}
}

// For returns the cache owned by the scope, creating it on first use.
func (r *Registry) For(scope backend.Scope) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := scope.Key()
	if cache, ok := r.caches[key]; ok {
		return cache
	}
	cache := NewCache(r.source, r.limit, r.logg)
	r.caches[key] = cache
	return cache
}
