package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/types"
)

type catalogSource interface {
	ListSupplierProducts(ctx context.Context, scope backend.Scope, supplierID string) ([]backend.SupplierProduct, error)
	ListSupplierCatalog(ctx context.Context, scope backend.Scope, supplierID string) ([]backend.CatalogOverride, error)
	CreateSupplierCatalog(ctx context.Context, scope backend.Scope, supplierID string, fields backend.OverrideFields) (*backend.CatalogOverride, error)
	UpdateSupplierCatalog(ctx context.Context, scope backend.Scope, overrideID string, fields backend.OverrideFields) (*backend.CatalogOverride, error)
}

// Labeler resolves display labels for variant ids.
type Labeler interface {
	Resolve(ctx context.Context, scope backend.Scope, ids []string) error
	Label(id string) string
}

// Engine merges a supplier's base product list with its catalog overrides.
type Engine struct {
	source catalogSource
	logg   *logger.Logger
}

func NewEngine(source catalogSource, logg *logger.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	return &Engine{source: source, logg: logg}, nil
}

// Load fetches base entries and overrides concurrently and merges them. A failed listing is
// cleared to empty and reported as a warning notice; only cancellation is returned as an error.
func (e *Engine) Load(ctx context.Context, scope backend.Scope, supplierID string, labels Labeler) (*Catalog, types.Notices, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	logCtx := ctx
	if e.logg != nil {
		logCtx = e.logg.WithSupplierID(ctx, supplierID)
	}

	var (
		entries      []backend.SupplierProduct
		overrides    []backend.CatalogOverride
		entriesErr   error
		overridesErr error
	)
	// No shared context: one failed listing must not cancel the other.
	var group errgroup.Group
	group.Go(func() error {
		entries, entriesErr = e.source.ListSupplierProducts(ctx, scope, supplierID)
		return entriesErr
	})
	group.Go(func() error {
		overrides, overridesErr = e.source.ListSupplierCatalog(ctx, scope, supplierID)
		return overridesErr
	})
	listErr := group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var notices types.Notices
	if listErr != nil {
		if entriesErr != nil {
			e.warn(logCtx, "supplier products unavailable", entriesErr)
			entries = nil
			notices = notices.Warn(enums.NoticeCodeSupplierProductsFail, "supplier products could not be loaded")
		}
		if overridesErr != nil {
			e.warn(logCtx, "supplier catalog unavailable", overridesErr)
			overrides = nil
			notices = notices.Warn(enums.NoticeCodeCatalogFail, "supplier catalog overrides could not be loaded")
		}
	}

	if labels != nil {
		if err := labels.Resolve(ctx, scope, variantIDs(entries, overrides)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			e.warn(logCtx, "variant labels unavailable", err)
		}
	}

	catalog := newCatalog(supplierID, entries, overrides, labels)
	if conflicts := catalog.Conflicts(); len(conflicts) > 0 {
		notices = notices.Warn(enums.NoticeCodeOverrideConflict, conflictMessage(conflicts))
	}
	return catalog, notices, nil
}

// BuildRows returns the effective rows for a supplier.
func (e *Engine) BuildRows(ctx context.Context, scope backend.Scope, supplierID string, labels Labeler) ([]Row, types.Notices, error) {
	catalog, notices, err := e.Load(ctx, scope, supplierID, labels)
	if err != nil {
		return nil, nil, err
	}
	return catalog.Rows(), notices, nil
}

// SaveOverride creates an override when overrideID is empty and patches it otherwise. Fields are
// validated before any request. The catalog is only updated once the backend accepted the write,
// and only the rows of the touched variants are recomputed.
func (e *Engine) SaveOverride(ctx context.Context, scope backend.Scope, catalog *Catalog, overrideID string, fields backend.OverrideFields) (*backend.CatalogOverride, error) {
	if catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a supplier first")
	}
	overrideID = strings.TrimSpace(overrideID)

	var existing *backend.CatalogOverride
	if overrideID != "" {
		if found, ok := catalog.Override(overrideID); ok {
			existing = &found
		} else {
			// Overrides outside the loaded catalog are still editable by id.
			existing = &backend.CatalogOverride{ID: overrideID}
		}
	}

	normalized, err := normalizeOverride(fields, existing)
	if err != nil {
		return nil, err
	}
	if err := checkActiveConflict(catalog, normalized, existing); err != nil {
		return nil, err
	}

	var saved *backend.CatalogOverride
	if existing == nil {
		saved, err = e.source.CreateSupplierCatalog(ctx, scope, catalog.SupplierID(), normalized)
	} else {
		saved, err = e.source.UpdateSupplierCatalog(ctx, scope, overrideID, normalized)
	}
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend returned no catalog override")
	}
	if saved.ID == "" && existing != nil {
		saved.ID = existing.ID
	}
	if saved.SupplierID == "" {
		saved.SupplierID = catalog.SupplierID()
	}

	catalog.upsert(*saved)
	if e.logg != nil {
		logCtx := e.logg.WithSupplierID(ctx, catalog.SupplierID())
		logCtx = e.logg.WithFields(logCtx, map[string]any{
			"override_id": saved.ID,
			"variant_id":  saved.VariantID,
		})
		e.logg.Info(logCtx, "catalog override saved")
	}
	return saved, nil
}

// checkActiveConflict rejects a write that would leave two active overrides on one variant.
func checkActiveConflict(catalog *Catalog, fields backend.OverrideFields, existing *backend.CatalogOverride) error {
	variantID := ""
	active := true
	exceptID := ""
	if existing != nil {
		moves := fields.VariantID != nil && *fields.VariantID != existing.VariantID
		activates := fields.Status != nil && *fields.Status == enums.CatalogStatusActive && !existing.IsActive()
		if !moves && !activates {
			return nil
		}
		variantID = existing.VariantID
		active = existing.IsActive()
		exceptID = existing.ID
	}
	if fields.VariantID != nil {
		variantID = *fields.VariantID
	}
	if fields.Status != nil {
		active = *fields.Status == enums.CatalogStatusActive
	}
	if !active || variantID == "" {
		return nil
	}

	catalog.mu.RLock()
	competing := catalog.activeFor(variantID, exceptID)
	catalog.mu.RUnlock()
	if len(competing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "an active override already exists for this variant").
		WithDetails(Conflict{VariantID: variantID, OverrideIDs: competing})
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	e.logg.Warn(e.logg.WithField(ctx, "reason", err.Error()), msg)
}

func conflictMessage(conflicts []Conflict) string {
	ids := make([]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		ids = append(ids, conflict.VariantID)
	}
	return fmt.Sprintf("multiple active overrides for %d variant(s): %s", len(conflicts), strings.Join(ids, ", "))
}
