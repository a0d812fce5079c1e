package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/api/middleware"
	"github.com/angelmondragon/purchasing-console/api/responses"
	"github.com/angelmondragon/purchasing-console/api/validators"
	"github.com/angelmondragon/purchasing-console/internal/drafts"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/types"
)

const maxSearchTermLength = 128

// OpenDraft starts a new purchase-order draft for the caller's company.
func OpenDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Open(r.Context(), scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func GetDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), scope, draftID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CloseDraft discards the draft without submitting it.
func CloseDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.Close(r.Context(), scope, draftID(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type selectSupplierRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
}

// SelectSupplier switches the draft to a supplier and loads its merged catalog.
func SelectSupplier(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		var payload selectSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSupplierID(ctx, payload.SupplierID)
		}
		view, err := svc.SelectSupplier(ctx, scope, draftID(r), payload.SupplierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func SearchVariants(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		term := validators.SanitizeString(r.URL.Query().Get("search"), maxSearchTermLength)
		found, err := svc.SearchVariants(r.Context(), scope, draftID(r), term)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if found == nil {
			found = []backend.Variant{}
		}
		responses.WriteSuccess(w, found)
	}
}

// LastCost reports the most recent recorded cost of a variant from the selected supplier.
func LastCost(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		result, err := svc.LastCost(r.Context(), scope, draftID(r), chi.URLParam(r, "variantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type addLineRequest struct {
	VariantID    string                `json:"variantId" validate:"required"`
	Qty          *decimal.Decimal      `json:"qty,omitempty"`
	UnitCost     types.NullableDecimal `json:"unitCost"`
	LastCost     types.NullableDecimal `json:"lastCost"`
	LastCurrency *string               `json:"lastCurrency,omitempty" validate:"omitempty,len=3"`
}

func (p addLineRequest) toInput() drafts.AddProductInput {
	return drafts.AddProductInput{
		VariantID:    strings.TrimSpace(p.VariantID),
		Qty:          p.Qty,
		UnitCost:     p.UnitCost.Clone(),
		LastCost:     p.LastCost.Clone(),
		LastCurrency: p.LastCurrency,
	}
}

// AddLine adds a variant to the draft, merging into the existing line for that variant.
func AddLine(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddProduct(r.Context(), scope, draftID(r), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type updateLineRequest struct {
	Qty      *decimal.Decimal      `json:"qty,omitempty"`
	UnitCost types.NullableDecimal `json:"unitCost"`
}

func UpdateLine(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateLine(r.Context(), scope, draftID(r), index, drafts.UpdateLineInput{
			Qty:      payload.Qty,
			UnitCost: payload.UnitCost.Clone(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func RemoveLine(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		index, err := validators.ParsePathIndex(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveLine(r.Context(), scope, draftID(r), index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type submitRequest struct {
	WarehouseID *string `json:"warehouseId,omitempty"`
}

// SubmitDraft turns the ordered lines into a purchase order and closes the draft on success.
func SubmitDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requireScope(w, r, svc, logg)
		if !ok {
			return
		}
		var payload submitRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Submit(r.Context(), scope, draftID(r), drafts.SubmitInput{WarehouseID: payload.WarehouseID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func draftID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "draftId"))
}

func requireScope(w http.ResponseWriter, r *http.Request, svc drafts.Service, logg *logger.Logger) (backend.Scope, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft service unavailable"))
		return backend.Scope{}, false
	}
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization and company context required"))
		return backend.Scope{}, false
	}
	return scope, true
}
