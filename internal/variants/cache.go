package variants

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
)

// DefaultSearchLimit caps the number of variants returned by Search.
const DefaultSearchLimit = 20

// searchPageFactor widens the upstream page for non-empty terms so the local filter still finds
// matches when the backend ignores or loosens the search parameter.
const searchPageFactor = 5

type variantSource interface {
	ListVariants(ctx context.Context, scope backend.Scope, search string, limit int) ([]backend.Variant, error)
	GetVariantsByIDs(ctx context.Context, scope backend.Scope, ids []string) ([]backend.Variant, error)
}

// Cache resolves variants for search-as-you-type and memoizes every variant it has seen.
// Writes are additive and idempotent, entries are never evicted.
type Cache struct {
	source variantSource
	limit  int
	logg   *logger.Logger

	mu   sync.RWMutex
	byID map[string]backend.Variant
}

// NewCache builds an empty cache backed by source.
func NewCache(source variantSource, limit int, logg *logger.Logger) *Cache {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &Cache{
		source: source,
		limit:  limit,
		logg:   logg,
		byID:   map[string]backend.Variant{},
	}
}

// Search returns at most the configured limit of variants whose name or sku contains term,
// case-insensitively. An empty term lists the variants available to the scope.
func (c *Cache) Search(ctx context.Context, scope backend.Scope, term string) ([]backend.Variant, error) {
	term = strings.TrimSpace(term)
	page := c.limit
	if term != "" {
		page = c.limit * searchPageFactor
	}
	found, err := c.source.ListVariants(ctx, scope, term, page)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	results := make([]backend.Variant, 0, min(len(found), c.limit))
	for _, variant := range found {
		if len(results) == c.limit {
			break
		}
		if needle != "" && !matches(variant, needle) {
			continue
		}
		results = append(results, variant)
	}

	c.remember(results...)
	return results, nil
}

// GetByID is a synchronous in-memory lookup. It never reaches the backend.
func (c *Cache) GetByID(id string) (backend.Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	variant, ok := c.byID[id]
	return variant, ok
}

// Label returns the display label for a known id, or the id itself as a placeholder.
func (c *Cache) Label(id string) string {
	if variant, ok := c.GetByID(id); ok {
		if label := variant.Label(); label != "" {
			return label
		}
	}
	return id
}

// Resolve makes sure every id is cached, issuing one bulk lookup for the missing ones.
// Failures are soft: unresolved ids keep their placeholder label.
func (c *Cache) Resolve(ctx context.Context, scope backend.Scope, ids []string) error {
	missing := c.missing(ids)
	if len(missing) == 0 {
		return nil
	}

	found, err := c.source.GetVariantsByIDs(ctx, scope, missing)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "variant_ids", len(missing)), "variant label resolution failed")
		}
		return err
	}
	c.remember(found...)
	return nil
}

// Len reports how many variants are memoized.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Cache) missing(ids []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (c *Cache) remember(found ...backend.Variant) {
	if len(found) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, variant := range found {
		if variant.ID == "" {
			continue
		}
		c.byID[variant.ID] = variant
	}
}

func matches(variant backend.Variant, needle string) bool {
	if strings.Contains(strings.ToLower(variant.Name), needle) {
		return true
	}
	return variant.SKU != nil && strings.Contains(strings.ToLower(*variant.SKU), needle)
}
