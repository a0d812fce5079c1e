package drafts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/internal/catalog"
	"github.com/angelmondragon/purchasing-console/internal/lastcost"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/metrics"
	"github.com/angelmondragon/purchasing-console/pkg/types"
)

type catalogEngine interface {
	Load(ctx context.Context, scope backend.Scope, supplierID string, labels catalog.Labeler) (*catalog.Catalog, types.Notices, error)
	SaveOverride(ctx context.Context, scope backend.Scope, cat *catalog.Catalog, overrideID string, fields backend.OverrideFields) (*backend.CatalogOverride, error)
}

type costResolver interface {
	Resolve(ctx context.Context, scope backend.Scope, supplierID, variantID string) lastcost.Result
}

type orderCreator interface {
	CreatePurchaseOrder(ctx context.Context, scope backend.Scope, input backend.CreateOrderInput) (*backend.PurchaseOrder, error)
}

// AddProductInput is an ad-hoc product addition. Absent cost fields are prefilled from the last
// recorded cost; an explicit null unit cost is kept as null.
type AddProductInput struct {
	VariantID    string
	Qty          *decimal.Decimal
	UnitCost     types.NullableDecimal
	LastCost     types.NullableDecimal
	LastCurrency *string
}

// UpdateLineInput edits the editable fields of one line. Absent fields are left untouched.
type UpdateLineInput struct {
	Qty      *decimal.Decimal
	UnitCost types.NullableDecimal
}

// SubmitInput carries the submit-time order fields.
type SubmitInput struct {
	WarehouseID *string
}

// OverrideView is the saved override together with the refreshed draft view.
type OverrideView struct {
	Override *backend.CatalogOverride `json:"override"`
	Draft    View                     `json:"draft"`
}

// Service drives draft sessions.
type Service interface {
	Open(ctx context.Context, scope backend.Scope) (View, error)
	Get(ctx context.Context, scope backend.Scope, draftID string) (View, error)
	Close(ctx context.Context, scope backend.Scope, draftID string) error
	SelectSupplier(ctx context.Context, scope backend.Scope, draftID, supplierID string) (View, error)
	SearchVariants(ctx context.Context, scope backend.Scope, draftID, term string) ([]backend.Variant, error)
	LastCost(ctx context.Context, scope backend.Scope, draftID, variantID string) (lastcost.Result, error)
	AddProduct(ctx context.Context, scope backend.Scope, draftID string, input AddProductInput) (View, error)
	UpdateLine(ctx context.Context, scope backend.Scope, draftID string, index int, input UpdateLineInput) (View, error)
	RemoveLine(ctx context.Context, scope backend.Scope, draftID string, index int) (View, error)
	SaveOverride(ctx context.Context, scope backend.Scope, draftID, overrideID string, fields backend.OverrideFields) (OverrideView, error)
	Submit(ctx context.Context, scope backend.Scope, draftID string, input SubmitInput) (*backend.PurchaseOrder, error)
}

// ServiceParams configure the draft service.
type ServiceParams struct {
	Store   *Store
	Catalog catalogEngine
	Costs   costResolver
	Orders  orderCreator
	Logger  *logger.Logger
	Metrics *metrics.DraftMetrics
	Now     func() time.Time
}

type service struct {
	store   *Store
	catalog catalogEngine
	costs   costResolver
	orders  orderCreator
	logg    *logger.Logger
	metrics *metrics.DraftMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog engine required")
	}
	if params.Costs == nil {
		return nil, fmt.Errorf("last cost resolver required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:   params.Store,
		catalog: params.Catalog,
		costs:   params.Costs,
		orders:  params.Orders,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) Open(ctx context.Context, scope backend.Scope) (View, error) {
	session := s.store.Open(scope)
	s.logg.Info(s.logg.WithDraftID(ctx, session.id), "draft opened")

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.viewLocked(nil), nil
}

func (s *service) Get(_ context.Context, scope backend.Scope, draftID string) (View, error) {
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return View{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	session.touchedAt = s.now()
	return session.viewLocked(nil), nil
}

func (s *service) Close(ctx context.Context, scope backend.Scope, draftID string) error {
	if _, err := s.store.Get(scope, draftID); err != nil {
		return err
	}
	if s.store.Discard(draftID) {
		s.metrics.Inc(metrics.DraftEventDiscarded)
		s.logg.Info(s.logg.WithDraftID(ctx, draftID), "draft discarded")
	}
	return nil
}

// SelectSupplier resets the draft and seeds it from the supplier's effective catalog. A newer
// selection on the same draft supersedes this one: its load is cancelled and its result dropped.
func (s *service) SelectSupplier(ctx context.Context, scope backend.Scope, draftID, supplierID string) (View, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return View{}, err
	}
	logCtx := s.logg.WithSupplierID(s.logg.WithDraftID(ctx, draftID), supplierID)

	session.mu.Lock()
	if session.submitting {
		session.mu.Unlock()
		return View{}, pkgerrors.New(pkgerrors.CodeStateConflict, "draft is being submitted")
	}
	loadCtx, gen := session.beginLoad(ctx, supplierID, s.now())
	session.mu.Unlock()

	var labels catalog.Labeler
	if session.variants != nil {
		labels = session.variants
	}
	cat, notices, loadErr := s.catalog.Load(loadCtx, scope, supplierID, labels)

	session.mu.Lock()
	defer session.mu.Unlock()
	if !session.finishLoad(gen) {
		s.metrics.Inc(metrics.DraftEventStaleDiscarded)
		s.logg.Info(logCtx, "superseded supplier load discarded")
		return View{}, pkgerrors.New(pkgerrors.CodeStateConflict, "supplier selection changed while loading")
	}
	if loadErr != nil {
		return View{}, loadErr
	}

	session.catalog = cat
	session.notices = notices
	session.draft.Reset(supplierID, cat.Rows())
	session.touchedAt = s.now()
	s.metrics.Inc(metrics.DraftEventSupplierSelected)
	s.logg.Info(s.logg.WithField(logCtx, "lines", session.draft.Len()), "draft seeded from supplier catalog")
	return session.viewLocked(nil), nil
}

func (s *service) SearchVariants(ctx context.Context, scope backend.Scope, draftID, term string) ([]backend.Variant, error) {
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return nil, err
	}
	if session.variants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "variant lookup not configured")
	}
	return session.variants.Search(ctx, scope, term)
}

func (s *service) LastCost(ctx context.Context, scope backend.Scope, draftID, variantID string) (lastcost.Result, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return lastcost.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return lastcost.Result{}, err
	}
	supplierID, _, err := currentSupplier(session)
	if err != nil {
		return lastcost.Result{}, err
	}
	return s.costs.Resolve(ctx, scope, supplierID, variantID), nil
}

func (s *service) AddProduct(ctx context.Context, scope backend.Scope, draftID string, input AddProductInput) (View, error) {
	input.VariantID = strings.TrimSpace(input.VariantID)
	if input.VariantID == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return View{}, err
	}
	supplierID, gen, err := currentSupplier(session)
	if err != nil {
		return View{}, err
	}

	add := AddInput{
		VariantID:    input.VariantID,
		Qty:          input.Qty,
		UnitCost:     input.UnitCost.NullDecimal(),
		LastCost:     input.LastCost.NullDecimal(),
		LastCurrency: input.LastCurrency,
	}
	if session.variants != nil {
		add.VariantLabel = session.variants.Label(input.VariantID)
	}
	if !input.LastCost.Valid {
		known := s.costs.Resolve(ctx, scope, supplierID, input.VariantID)
		add.LastCost = known.LastCost
		if add.LastCurrency == nil {
			add.LastCurrency = known.LastCurrency
		}
	}
	if !input.UnitCost.Valid {
		add.UnitCost = add.LastCost
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.generation != gen {
		return View{}, pkgerrors.New(pkgerrors.CodeStateConflict, "supplier selection changed")
	}
	result, err := session.draft.AddProduct(add)
	if err != nil {
		return View{}, err
	}
	session.touchedAt = s.now()

	var notices types.Notices
	if result.Merged {
		s.metrics.Inc(metrics.DraftEventLineMerged)
		notices = notices.Info(enums.NoticeCodeQuantityMerged,
			fmt.Sprintf("%s was already in the draft; quantity is now %s", result.Line.VariantLabel, result.Line.Qty.String()))
	} else {
		s.metrics.Inc(metrics.DraftEventLineAdded)
	}
	return session.viewLocked(notices), nil
}

func (s *service) UpdateLine(_ context.Context, scope backend.Scope, draftID string, index int, input UpdateLineInput) (View, error) {
	if input.Qty == nil && !input.UnitCost.Valid {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "qty or unitCost is required")
	}
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return View{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if err := session.draft.checkIndex(index); err != nil {
		return View{}, err
	}
	if input.Qty != nil && input.Qty.IsNegative() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "qty must be >= 0")
	}
	if input.UnitCost.Value != nil && input.UnitCost.Value.IsNegative() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must be >= 0")
	}
	// Both fields are checked up front so a rejected edit never applies half.
	if input.Qty != nil {
		if err := session.draft.SetQty(index, *input.Qty); err != nil {
			return View{}, err
		}
	}
	if input.UnitCost.Valid {
		if err := session.draft.SetUnitCost(index, input.UnitCost.NullDecimal()); err != nil {
			return View{}, err
		}
	}
	session.touchedAt = s.now()
	return session.viewLocked(nil), nil
}

func (s *service) RemoveLine(ctx context.Context, scope backend.Scope, draftID string, index int) (View, error) {
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return View{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	removed, err := session.draft.Remove(index)
	if err != nil {
		return View{}, err
	}
	session.touchedAt = s.now()
	s.metrics.Inc(metrics.DraftEventLineRemoved)
	s.logg.Debug(s.logg.WithFields(s.logg.WithDraftID(ctx, draftID), map[string]any{
		"variant_id": removed.VariantID,
		"index":      index,
	}), "draft line removed")
	return session.viewLocked(nil), nil
}

// SaveOverride writes an override for the draft's supplier. Only the affected catalog rows are
// recomputed; draft lines keep their in-flight edits.
func (s *service) SaveOverride(ctx context.Context, scope backend.Scope, draftID, overrideID string, fields backend.OverrideFields) (OverrideView, error) {
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return OverrideView{}, err
	}

	session.mu.Lock()
	cat := session.catalog
	session.mu.Unlock()
	if cat == nil {
		return OverrideView{}, pkgerrors.New(pkgerrors.CodeValidation, "select a supplier first")
	}

	saved, err := s.catalog.SaveOverride(ctx, scope, cat, overrideID, fields)
	if err != nil {
		return OverrideView{}, err
	}
	s.metrics.Inc(metrics.DraftEventOverrideSaved)

	session.mu.Lock()
	defer session.mu.Unlock()
	session.touchedAt = s.now()
	return OverrideView{Override: saved, Draft: session.viewLocked(nil)}, nil
}

// Submit creates the purchase order. The session is discarded only when the backend accepted it;
// on failure the draft is left exactly as it was.
func (s *service) Submit(ctx context.Context, scope backend.Scope, draftID string, input SubmitInput) (*backend.PurchaseOrder, error) {
	session, err := s.store.Get(scope, draftID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.loading != "" {
		session.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "supplier catalog is still loading")
	}
	if session.submitting {
		session.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "draft is already being submitted")
	}
	payload, err := session.draft.Payload(input.WarehouseID)
	if err != nil {
		session.mu.Unlock()
		return nil, err
	}
	session.submitting = true
	session.mu.Unlock()

	logCtx := s.logg.WithSupplierID(s.logg.WithDraftID(ctx, draftID), payload.SupplierID)
	order, err := s.orders.CreatePurchaseOrder(ctx, scope, payload)
	if err != nil {
		session.mu.Lock()
		session.submitting = false
		session.mu.Unlock()
		s.logg.Warn(s.logg.WithField(logCtx, "reason", err.Error()), "purchase order submission failed")
		return nil, err
	}

	s.store.Discard(draftID)
	s.metrics.Inc(metrics.DraftEventSubmitted)
	if order != nil {
		logCtx = s.logg.WithField(logCtx, "purchase_order_id", order.ID)
	}
	s.logg.Info(s.logg.WithField(logCtx, "lines", len(payload.Lines)), "purchase order submitted")
	return order, nil
}

func currentSupplier(session *Session) (string, uint64, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	supplierID := session.draft.SupplierID()
	if supplierID == "" || session.loading != "" {
		return "", 0, pkgerrors.New(pkgerrors.CodeValidation, "select a supplier first")
	}
	return supplierID, session.generation, nil
}
