package lastcost

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/metrics"
)

type costSource interface {
	GetLastCost(ctx context.Context, scope backend.Scope, supplierID, variantID string) (backend.LastCost, error)
}

// Result is the most recent recorded transaction cost. A zero Result means unknown.
type Result struct {
	LastCost       decimal.NullDecimal `json:"lastCost"`
	LastCurrency   *string             `json:"lastCurrency"`
	LastRecordedAt *time.Time          `json:"lastRecordedAt"`
}

// Known reports whether a cost was recorded for the pair.
func (r Result) Known() bool {
	return r.LastCost.Valid
}

// Resolver prefills unit costs from the last recorded transaction.
type Resolver struct {
	source  costSource
	logg    *logger.Logger
	metrics *metrics.DraftMetrics
}

func NewResolver(source costSource, logg *logger.Logger, m *metrics.DraftMetrics) *Resolver {
	return &Resolver{source: source, logg: logg, metrics: m}
}

// Resolve never fails. Any upstream error degrades to an unknown Result.
func (r *Resolver) Resolve(ctx context.Context, scope backend.Scope, supplierID, variantID string) Result {
	if r == nil || r.source == nil || supplierID == "" || variantID == "" {
		return Result{}
	}

	found, err := r.source.GetLastCost(ctx, scope, supplierID, variantID)
	if err != nil {
		r.metrics.Inc(metrics.DraftEventLastCostMiss)
		if r.logg != nil {
			logCtx := r.logg.WithSupplierID(ctx, supplierID)
			logCtx = r.logg.WithFields(logCtx, map[string]any{
				"variant_id": variantID,
				"reason":     err.Error(),
			})
			r.logg.Warn(logCtx, "last cost unavailable")
		}
		return Result{}
	}

	result := Result{
		LastCost:     found.LastCost,
		LastCurrency: found.LastCurrency,
	}
	if found.LastRecordedAt != nil && !found.LastRecordedAt.IsZero() {
		recorded := found.LastRecordedAt.UTC()
		result.LastRecordedAt = &recorded
	}
	return result
}
