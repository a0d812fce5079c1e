package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
)

type fakeSource struct {
	mu           sync.Mutex
	entries      []backend.SupplierProduct
	overrides    []backend.CatalogOverride
	entriesErr   error
	overridesErr error
	saveErr      error
	saved        *backend.CatalogOverride
	creates      int
	updates      int
	lastFields   backend.OverrideFields
	lastUpdateID string
}

func (f *fakeSource) ListSupplierProducts(context.Context, backend.Scope, string) ([]backend.SupplierProduct, error) {
	return f.entries, f.entriesErr
}

func (f *fakeSource) ListSupplierCatalog(context.Context, backend.Scope, string) ([]backend.CatalogOverride, error) {
	return f.overrides, f.overridesErr
}

func (f *fakeSource) CreateSupplierCatalog(_ context.Context, _ backend.Scope, _ string, fields backend.OverrideFields) (*backend.CatalogOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastFields = fields
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.saved, nil
}

func (f *fakeSource) UpdateSupplierCatalog(_ context.Context, _ backend.Scope, id string, fields backend.OverrideFields) (*backend.CatalogOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastUpdateID = id
	f.lastFields = fields
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.saved, nil
}

type fakeLabels struct {
	labels   map[string]string
	err      error
	resolved []string
}

func (f *fakeLabels) Resolve(_ context.Context, _ backend.Scope, ids []string) error {
	f.resolved = append(f.resolved, ids...)
	return f.err
}

func (f *fakeLabels) Label(id string) string {
	if label, ok := f.labels[id]; ok {
		return label
	}
	return id
}

var scope = backend.Scope{OrganizationID: "org", CompanyID: "co"}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func strPtr(v string) *string { return &v }

func nullDec(v string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(v)) }

func scenarioSource() *fakeSource {
	return &fakeSource{
		entries: []backend.SupplierProduct{
			{SupplierID: "S", VariantID: "A", Active: true, LastCost: nullDec("10"), LastCurrency: strPtr("USD")},
			{SupplierID: "S", VariantID: "B", Active: true, LastCost: nullDec("20"), LastCurrency: strPtr("USD")},
		},
		overrides: []backend.CatalogOverride{
			{
				ID:         "o-A",
				SupplierID: "S",
				VariantID:  "A",
				UnitCost:   dec("9"),
				BonusType:  enums.BonusTypeDiscountPercent,
				BonusValue: nullDec("5"),
				Status:     enums.CatalogStatusActive,
			},
		},
	}
}

func newTestEngine(t *testing.T, source *fakeSource) *Engine {
	t.Helper()
	engine, err := NewEngine(source, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestNewEngineRequiresSource(t *testing.T) {
	if _, err := NewEngine(nil, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestBuildRowsAppliesOverrides(t *testing.T) {
	labels := &fakeLabels{labels: map[string]string{"A": "Apple (A-1)"}}
	rows, notices, err := newTestEngine(t, scenarioSource()).BuildRows(context.Background(), scope, "S", labels)
	if err != nil {
		t.Fatalf("build rows: %v", err)
	}
	if len(notices) != 0 {
		t.Fatalf("expected no notices, got %+v", notices)
	}
	if len(rows) != 2 || rows[0].VariantID != "A" || rows[1].VariantID != "B" {
		t.Fatalf("expected rows in base order, got %+v", rows)
	}

	a := rows[0]
	if !a.UnitCost.Valid || !a.UnitCost.Decimal.Equal(dec("9")) {
		t.Fatalf("expected override unit cost 9, got %v", a.UnitCost)
	}
	if a.BonusType == nil || *a.BonusType != enums.BonusTypeDiscountPercent {
		t.Fatalf("expected discount_percent bonus, got %v", a.BonusType)
	}
	if a.BonusValue == nil || !a.BonusValue.Equal(dec("5")) {
		t.Fatalf("expected bonus value 5, got %v", a.BonusValue)
	}
	if !a.LastCost.Decimal.Equal(dec("10")) {
		t.Fatalf("expected last cost to stay 10, got %v", a.LastCost)
	}
	if a.VariantLabel != "Apple (A-1)" {
		t.Fatalf("unexpected label %q", a.VariantLabel)
	}

	b := rows[1]
	if !b.UnitCost.Decimal.Equal(dec("20")) {
		t.Fatalf("expected base unit cost 20, got %v", b.UnitCost)
	}
	if b.BonusType != nil || b.FreightCost != nil || b.HasOverride() {
		t.Fatalf("row without override must not expose override fields: %+v", b)
	}
	if b.VariantLabel != "B" {
		t.Fatalf("expected id placeholder label, got %q", b.VariantLabel)
	}
	if len(labels.resolved) != 2 {
		t.Fatalf("expected labels resolved for A and B, got %v", labels.resolved)
	}
}

func TestResolveRowPrecedence(t *testing.T) {
	recorded := &backend.Timestamp{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	cases := []struct {
		name     string
		entry    backend.SupplierProduct
		override *backend.CatalogOverride
		cost     decimal.NullDecimal
		currency string
		status   enums.CatalogStatus
	}{
		{
			name:     "base only",
			entry:    backend.SupplierProduct{VariantID: "v", Active: true, LastCost: nullDec("3"), LastCurrency: strPtr("EUR"), LastRecordedAt: recorded},
			cost:     nullDec("3"),
			currency: "EUR",
			status:   enums.CatalogStatusActive,
		},
		{
			name:   "inactive base without cost",
			entry:  backend.SupplierProduct{VariantID: "v", Active: false},
			status: enums.CatalogStatusInactive,
		},
		{
			name:     "override keeps base currency when absent",
			entry:    backend.SupplierProduct{VariantID: "v", Active: true, LastCost: nullDec("3"), LastCurrency: strPtr("EUR")},
			override: &backend.CatalogOverride{ID: "o", VariantID: "v", UnitCost: dec("2.5"), Status: enums.CatalogStatusInactive},
			cost:     nullDec("2.5"),
			currency: "EUR",
			status:   enums.CatalogStatusInactive,
		},
		{
			name:     "override currency wins",
			entry:    backend.SupplierProduct{VariantID: "v", Active: false, LastCurrency: strPtr("EUR")},
			override: &backend.CatalogOverride{ID: "o", VariantID: "v", UnitCost: dec("0"), Currency: strPtr("USD")},
			cost:     nullDec("0"),
			currency: "USD",
			status:   enums.CatalogStatusInactive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := resolveRow(tc.entry, tc.override, "label", false)
			if row.UnitCost.Valid != tc.cost.Valid || (tc.cost.Valid && !row.UnitCost.Decimal.Equal(tc.cost.Decimal)) {
				t.Fatalf("expected unit cost %v, got %v", tc.cost, row.UnitCost)
			}
			gotCurrency := ""
			if row.Currency != nil {
				gotCurrency = *row.Currency
			}
			if gotCurrency != tc.currency {
				t.Fatalf("expected currency %q, got %q", tc.currency, gotCurrency)
			}
			if row.Status != tc.status {
				t.Fatalf("expected status %s, got %s", tc.status, row.Status)
			}
			if (tc.override == nil) != (row.BonusType == nil) {
				t.Fatalf("bonus type presence must follow the override, got %v", row.BonusType)
			}
		})
	}
}

func TestOverrideWithoutBaseEntryIsRetainedNotSurfaced(t *testing.T) {
	source := scenarioSource()
	source.overrides = append(source.overrides, backend.CatalogOverride{ID: "o-Z", VariantID: "Z", UnitCost: dec("1")})

	catalog, _, err := newTestEngine(t, source).Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog.Rows()) != 2 {
		t.Fatalf("expected only base rows, got %d", len(catalog.Rows()))
	}
	if _, ok := catalog.Override("o-Z"); !ok {
		t.Fatal("expected orphan override to be retained")
	}
}

func TestLoadListFailuresDegradeToEmpty(t *testing.T) {
	t.Run("products", func(t *testing.T) {
		source := scenarioSource()
		source.entriesErr = errors.New("down")
		catalog, notices, err := newTestEngine(t, source).Load(context.Background(), scope, "S", nil)
		if err != nil {
			t.Fatalf("expected soft failure, got %v", err)
		}
		if len(catalog.Rows()) != 0 {
			t.Fatal("expected empty rows")
		}
		if len(catalog.Overrides()) != 1 {
			t.Fatal("overrides should still be indexed")
		}
		if len(notices) != 1 || notices[0].Code != enums.NoticeCodeSupplierProductsFail || notices[0].Level != enums.NoticeLevelWarning {
			t.Fatalf("unexpected notices %+v", notices)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		source := scenarioSource()
		source.overridesErr = errors.New("down")
		catalog, notices, err := newTestEngine(t, source).Load(context.Background(), scope, "S", nil)
		if err != nil {
			t.Fatalf("expected soft failure, got %v", err)
		}
		rows := catalog.Rows()
		if len(rows) != 2 || rows[0].HasOverride() || !rows[0].UnitCost.Decimal.Equal(dec("10")) {
			t.Fatalf("expected base-only rows, got %+v", rows)
		}
		if len(notices) != 1 || notices[0].Code != enums.NoticeCodeCatalogFail {
			t.Fatalf("unexpected notices %+v", notices)
		}
	})

	t.Run("both", func(t *testing.T) {
		source := scenarioSource()
		source.entriesErr = errors.New("down")
		source.overridesErr = errors.New("down")
		catalog, notices, err := newTestEngine(t, source).Load(context.Background(), scope, "S", nil)
		if err != nil {
			t.Fatalf("expected soft failure, got %v", err)
		}
		if len(catalog.Rows()) != 0 || len(catalog.Overrides()) != 0 {
			t.Fatal("expected empty catalog")
		}
		if len(notices) != 2 {
			t.Fatalf("expected one notice per failed listing, got %+v", notices)
		}
	})
}

func TestLoadLabelFailureIsSoft(t *testing.T) {
	labels := &fakeLabels{err: errors.New("down")}
	rows, notices, err := newTestEngine(t, scenarioSource()).BuildRows(context.Background(), scope, "S", labels)
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if len(notices) != 0 {
		t.Fatalf("label failures are not surfaced, got %+v", notices)
	}
	if rows[0].VariantLabel != "A" {
		t.Fatalf("expected placeholder label, got %q", rows[0].VariantLabel)
	}
}

func TestLoadReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := newTestEngine(t, scenarioSource()).Load(ctx, scope, "S", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadRequiresSupplier(t *testing.T) {
	_, _, err := newTestEngine(t, scenarioSource()).Load(context.Background(), scope, " ", nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadFlagsDuplicateActiveOverrides(t *testing.T) {
	source := scenarioSource()
	source.overrides = append(source.overrides,
		backend.CatalogOverride{ID: "o-A2", VariantID: "A", UnitCost: dec("8"), Status: enums.CatalogStatusActive},
		backend.CatalogOverride{ID: "o-B-old", VariantID: "B", UnitCost: dec("19"), Status: enums.CatalogStatusInactive},
	)

	catalog, notices, err := newTestEngine(t, source).Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	rows := catalog.Rows()
	if !rows[0].OverrideConflict || rows[0].OverrideID != "o-A2" || !rows[0].UnitCost.Decimal.Equal(dec("8")) {
		t.Fatalf("expected last loaded override to win and be flagged, got %+v", rows[0])
	}
	if rows[1].OverrideConflict {
		t.Fatal("inactive override must not be a conflict")
	}
	conflicts := catalog.Conflicts()
	if len(conflicts) != 1 || conflicts[0].VariantID != "A" || len(conflicts[0].OverrideIDs) != 2 {
		t.Fatalf("unexpected conflicts %+v", conflicts)
	}
	if len(notices) != 1 || notices[0].Code != enums.NoticeCodeOverrideConflict {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestSaveOverrideCreateRecomputesOnlyAffectedRow(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	before := catalog.Rows()

	source.saved = &backend.CatalogOverride{ID: "o-B", VariantID: "B", UnitCost: dec("18"), Currency: strPtr("USD"), Status: enums.CatalogStatusActive}
	saved, err := engine.SaveOverride(context.Background(), scope, catalog, "", backend.OverrideFields{
		VariantID: strPtr(" B "),
		UnitCost:  decPtr("18"),
		Currency:  strPtr("usd"),
	})
	if err != nil {
		t.Fatalf("save override: %v", err)
	}
	if saved.ID != "o-B" || source.creates != 1 {
		t.Fatalf("expected one create, got %d (%+v)", source.creates, saved)
	}
	if *source.lastFields.VariantID != "B" || *source.lastFields.Currency != "USD" {
		t.Fatalf("expected normalized fields, got variant=%q currency=%q", *source.lastFields.VariantID, *source.lastFields.Currency)
	}

	after := catalog.Rows()
	if after[1].OverrideID != "o-B" || !after[1].UnitCost.Decimal.Equal(dec("18")) {
		t.Fatalf("expected row B to reflect the new override, got %+v", after[1])
	}
	if after[0].OverrideID != before[0].OverrideID || !after[0].UnitCost.Decimal.Equal(before[0].UnitCost.Decimal) {
		t.Fatalf("row A must be untouched, got %+v", after[0])
	}
}

func TestSaveOverridePatchMovingVariantRecomputesBothRows(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	source.saved = &backend.CatalogOverride{ID: "o-A", VariantID: "B", UnitCost: dec("9"), BonusType: enums.BonusTypeDiscountPercent, BonusValue: nullDec("5")}
	if _, err := engine.SaveOverride(context.Background(), scope, catalog, "o-A", backend.OverrideFields{VariantID: strPtr("B")}); err != nil {
		t.Fatalf("save override: %v", err)
	}
	if source.updates != 1 || source.lastUpdateID != "o-A" {
		t.Fatalf("expected patch of o-A, got %d updates for %q", source.updates, source.lastUpdateID)
	}

	rows := catalog.Rows()
	if rows[0].HasOverride() || !rows[0].UnitCost.Decimal.Equal(dec("10")) {
		t.Fatalf("row A should fall back to base values, got %+v", rows[0])
	}
	if rows[1].OverrideID != "o-A" || !rows[1].UnitCost.Decimal.Equal(dec("9")) {
		t.Fatalf("row B should carry the moved override, got %+v", rows[1])
	}
}

func TestSaveOverrideRejectsSecondActiveOverride(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err = engine.SaveOverride(context.Background(), scope, catalog, "", backend.OverrideFields{
		VariantID: strPtr("A"),
		UnitCost:  decPtr("7"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if source.creates != 0 {
		t.Fatal("conflict must be caught before the backend call")
	}

	inactive := enums.CatalogStatusInactive
	source.saved = &backend.CatalogOverride{ID: "o-A-draft", VariantID: "A", UnitCost: dec("7"), Status: inactive}
	if _, err := engine.SaveOverride(context.Background(), scope, catalog, "", backend.OverrideFields{
		VariantID: strPtr("A"),
		UnitCost:  decPtr("7"),
		Status:    &inactive,
	}); err != nil {
		t.Fatalf("inactive override should be accepted, got %v", err)
	}
}

func TestSaveOverrideValidatesBeforeNetwork(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	bonus := enums.BonusTypeBonusQty
	lead := -1
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = engine.SaveOverride(context.Background(), scope, catalog, "", backend.OverrideFields{
		VariantID:    strPtr("Z"),
		UnitCost:     decPtr("-1"),
		FreightCost:  decPtr("-0.5"),
		BonusType:    &bonus,
		LeadTimeDays: &lead,
		ValidFrom:    &from,
		ValidTo:      &to,
		Currency:     strPtr("dollars"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"unitCost", "freightCost", "bonusValue", "leadTimeDays", "validFrom", "currency"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected %s in details %v", field, details)
		}
	}
	if source.creates != 0 {
		t.Fatal("validation must happen before the backend call")
	}
}

func TestSaveOverridePatchValidatesAgainstStoredValues(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	source.saved = &backend.CatalogOverride{ID: "o-A", VariantID: "A", UnitCost: dec("8.5"), BonusType: enums.BonusTypeDiscountPercent, BonusValue: nullDec("5")}
	if _, err := engine.SaveOverride(context.Background(), scope, catalog, "o-A", backend.OverrideFields{UnitCost: decPtr("8.5")}); err != nil {
		t.Fatalf("partial patch should rely on the stored bonus value, got %v", err)
	}
	if source.lastFields.BonusType != nil || source.lastFields.VariantID != nil {
		t.Fatal("patch must only send provided fields")
	}
	row, _ := catalog.Row("A")
	if !row.UnitCost.Decimal.Equal(dec("8.5")) {
		t.Fatalf("expected patched cost, got %v", row.UnitCost)
	}
}

func TestSaveOverrideFailureLeavesCatalogUnchanged(t *testing.T) {
	source := scenarioSource()
	engine := newTestEngine(t, source)
	catalog, _, err := engine.Load(context.Background(), scope, "S", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	source.saveErr = pkgerrors.New(pkgerrors.CodeDependency, "down")
	_, err = engine.SaveOverride(context.Background(), scope, catalog, "", backend.OverrideFields{
		VariantID: strPtr("B"),
		UnitCost:  decPtr("1"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	row, _ := catalog.Row("B")
	if row.HasOverride() || len(catalog.Overrides()) != 1 {
		t.Fatal("failed write must not mutate the catalog")
	}
}

func TestSaveOverrideRequiresCatalog(t *testing.T) {
	_, err := newTestEngine(t, scenarioSource()).SaveOverride(context.Background(), scope, nil, "", backend.OverrideFields{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
