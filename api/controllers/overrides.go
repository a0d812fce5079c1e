package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/api/responses"
	"github.com/angelmondragon/purchasing-console/api/validators"
	"github.com/angelmondragon/purchasing-console/internal/drafts"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
)

type overrideRequest struct {
	VariantID    *string              `json:"variantId,omitempty"`
	UnitCost     *decimal.Decimal     `json:"unitCost,omitempty"`
	Currency     *string              `json:"currency,omitempty"`
	FreightCost  *decimal.Decimal     `json:"freightCost,omitempty"`
	BonusType    *enums.BonusType     `json:"bonusType,omitempty"`
	BonusValue   *decimal.Decimal     `json:"bonusValue,omitempty"`
	MinQty       *decimal.Decimal     `json:"minQty,omitempty"`
	LeadTimeDays *int                 `json:"leadTimeDays,omitempty"`
	ValidFrom    *backend.Timestamp   `json:"validFrom,omitempty"`
	ValidTo      *backend.Timestamp   `json:"validTo,omitempty"`
	Status       *enums.CatalogStatus `json:"status,omitempty"`
}

// toFields leaves range and enum checks to the catalog engine so every rule is reported in one
// validation error.
func (p overrideRequest) toFields() backend.OverrideFields {
	fields := backend.OverrideFields{
		UnitCost:     p.UnitCost,
		Currency:     p.Currency,
		FreightCost:  p.FreightCost,
		BonusType:    p.BonusType,
		BonusValue:   p.BonusValue,
		MinQty:       p.MinQty,
		LeadTimeDays: p.LeadTimeDays,
		ValidFrom:    timestampPtr(p.ValidFrom),
		ValidTo:      timestampPtr(p.ValidTo),
		Status:       p.Status,
	}
	if p.VariantID != nil {
		trimmed := strings.TrimSpace(*p.VariantID)
		fields.VariantID = &trimmed
	}
	return fields
}

func timestampPtr(ts *backend.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	value := ts.Time
	return &value
}

// CreateOverride records a new supplier catalog override for the draft's supplier.
func CreateOverride(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return saveOverride(svc, logg, func(*http.Request) string { return "" }, http.StatusCreated)
}

// UpdateOverride patches an existing supplier catalog override.
func UpdateOverride(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return saveOverride(svc, logg, func(r *http.Request) string {
		return strings.TrimSpace(chi.URLParam(r, "overrideId"))
	}, http.StatusOK)
}

func saveOverride(svc drafts.Service, logg *logger.Logger, overrideID func(*http.Request) string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SaveOverride(r.Context(), scope, draftID(r), overrideID(r), payload.toFields())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
