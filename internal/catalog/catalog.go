package catalog

import (
	"sync"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
)

// Conflict lists the active overrides competing for one variant, in load order.
type Conflict struct {
	VariantID   string   `json:"variantId"`
	OverrideIDs []string `json:"overrideIds"`
}

// Catalog is the merged view of one supplier's base entries and overrides.
// Rows keep the order of the base-entry listing.
type Catalog struct {
	supplierID string

	mu        sync.RWMutex
	entries   []backend.SupplierProduct
	rows      []Row
	overrides map[string]backend.CatalogOverride
	// order holds override ids from least to most recently loaded or saved.
	order     []string
	byVariant map[string]string
}

func newCatalog(supplierID string, entries []backend.SupplierProduct, overrides []backend.CatalogOverride, labels Labeler) *Catalog {
	c := &Catalog{
		supplierID: supplierID,
		entries:    entries,
		rows:       make([]Row, 0, len(entries)),
		overrides:  make(map[string]backend.CatalogOverride, len(overrides)),
		byVariant:  make(map[string]string, len(overrides)),
	}
	for _, override := range overrides {
		c.index(override)
	}
	for _, entry := range entries {
		c.rows = append(c.rows, c.rowFor(entry, labelFor(labels, entry.VariantID)))
	}
	return c
}

// SupplierID is the supplier the catalog was built for.
func (c *Catalog) SupplierID() string {
	return c.supplierID
}

// Rows returns a copy of the effective rows.
func (c *Catalog) Rows() []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Row(nil), c.rows...)
}

// Row returns the effective row for a variant, if it has a base entry.
func (c *Catalog) Row(variantID string) (Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, row := range c.rows {
		if row.VariantID == variantID {
			return row, true
		}
	}
	return Row{}, false
}

// Override returns an override by id, including overrides for variants without a base entry.
func (c *Catalog) Override(id string) (backend.CatalogOverride, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	override, ok := c.overrides[id]
	return override, ok
}

// Overrides returns every known override in load order.
func (c *Catalog) Overrides() []backend.CatalogOverride {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overridesLocked()
}

// Conflicts lists variants with more than one active override.
func (c *Catalog) Conflicts() []Conflict {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var conflicts []Conflict
	seen := map[string]struct{}{}
	for _, id := range c.order {
		variantID := c.overrides[id].VariantID
		if _, done := seen[variantID]; done {
			continue
		}
		seen[variantID] = struct{}{}
		if active := c.activeFor(variantID, ""); len(active) > 1 {
			conflicts = append(conflicts, Conflict{VariantID: variantID, OverrideIDs: active})
		}
	}
	return conflicts
}

func (c *Catalog) overridesLocked() []backend.CatalogOverride {
	out := make([]backend.CatalogOverride, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.overrides[id])
	}
	return out
}

// upsert indexes a saved override as the most recent one and recomputes only the rows of the
// variants it touches. It returns the affected variant ids.
func (c *Catalog) upsert(saved backend.CatalogOverride) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	affected := []string{saved.VariantID}
	if previous, ok := c.overrides[saved.ID]; ok {
		if previous.VariantID != saved.VariantID {
			affected = append(affected, previous.VariantID)
		}
		c.removeFromOrder(saved.ID)
	}
	c.index(saved)
	for _, variantID := range affected {
		c.reindexVariant(variantID)
		c.refreshRows(variantID)
	}
	return affected
}

func (c *Catalog) index(override backend.CatalogOverride) {
	if override.ID == "" {
		return
	}
	if _, exists := c.overrides[override.ID]; exists {
		c.removeFromOrder(override.ID)
	}
	c.overrides[override.ID] = override
	c.order = append(c.order, override.ID)
	c.byVariant[override.VariantID] = override.ID
}

func (c *Catalog) removeFromOrder(id string) {
	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// reindexVariant points the variant at its most recently loaded override.
func (c *Catalog) reindexVariant(variantID string) {
	for i := len(c.order) - 1; i >= 0; i-- {
		if c.overrides[c.order[i]].VariantID == variantID {
			c.byVariant[variantID] = c.order[i]
			return
		}
	}
	delete(c.byVariant, variantID)
}

func (c *Catalog) refreshRows(variantID string) {
	for i, entry := range c.entries {
		if entry.VariantID != variantID {
			continue
		}
		c.rows[i] = c.rowFor(entry, c.rows[i].VariantLabel)
	}
}

func (c *Catalog) rowFor(entry backend.SupplierProduct, label string) Row {
	var override *backend.CatalogOverride
	if id, ok := c.byVariant[entry.VariantID]; ok {
		found := c.overrides[id]
		override = &found
	}
	conflict := len(c.activeFor(entry.VariantID, "")) > 1
	return resolveRow(entry, override, label, conflict)
}

// activeFor returns ids of active overrides for the variant, skipping exceptID.
func (c *Catalog) activeFor(variantID, exceptID string) []string {
	var ids []string
	for _, id := range c.order {
		if id == exceptID {
			continue
		}
		override := c.overrides[id]
		if override.VariantID == variantID && override.IsActive() {
			ids = append(ids, id)
		}
	}
	return ids
}

func variantIDs(entries []backend.SupplierProduct, overrides []backend.CatalogOverride) []string {
	seen := make(map[string]struct{}, len(entries)+len(overrides))
	ids := make([]string, 0, len(entries)+len(overrides))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, entry := range entries {
		add(entry.VariantID)
	}
	for _, override := range overrides {
		add(override.VariantID)
	}
	return ids
}

func labelFor(labels Labeler, variantID string) string {
	if labels == nil {
		return variantID
	}
	return labels.Label(variantID)
}
