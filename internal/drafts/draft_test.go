package drafts

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/internal/catalog"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func nullDec(v string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(v)) }

func strPtr(v string) *string { return &v }

func seededDraft() *Draft {
	d := NewDraft()
	d.Reset("S", []catalog.Row{
		{VariantID: "A", VariantLabel: "Apple", UnitCost: nullDec("9"), LastCost: nullDec("10"), LastCurrency: strPtr("USD")},
		{VariantID: "B", VariantLabel: "Banana", UnitCost: nullDec("20"), LastCost: nullDec("20"), LastCurrency: strPtr("USD")},
	})
	return d
}

func TestResetSeedsZeroQuantityLines(t *testing.T) {
	d := seededDraft()
	if d.SupplierID() != "S" || d.Len() != 2 {
		t.Fatalf("unexpected draft supplier=%q len=%d", d.SupplierID(), d.Len())
	}
	for _, line := range d.Lines() {
		if !line.Qty.IsZero() {
			t.Fatalf("expected zero qty for %s, got %s", line.VariantID, line.Qty)
		}
	}
	if got := d.Lines()[0].UnitCost; !got.Valid || !got.Decimal.Equal(dec("9")) {
		t.Fatalf("expected unit cost from row, got %v", got)
	}
}

func TestResetReplacesPreviousSupplierLines(t *testing.T) {
	d := seededDraft()
	if _, err := d.AddProduct(AddInput{VariantID: "X"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	d.Reset("T", []catalog.Row{{VariantID: "C"}, {VariantID: "D"}})

	if d.SupplierID() != "T" {
		t.Fatalf("expected supplier T, got %q", d.SupplierID())
	}
	allowed := map[string]bool{"C": true, "D": true}
	for _, line := range d.Lines() {
		if !allowed[line.VariantID] {
			t.Fatalf("line %s carried over from the previous supplier", line.VariantID)
		}
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", d.Len())
	}
}

func TestAddProductDefaultsAndMinimum(t *testing.T) {
	d := NewDraft()

	result, err := d.AddProduct(AddInput{VariantID: " V "})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if result.Merged || !result.Line.Qty.Equal(DefaultAddQty) || result.Line.VariantID != "V" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Line.VariantLabel != "V" {
		t.Fatalf("expected id placeholder label, got %q", result.Line.VariantLabel)
	}

	if _, err := d.AddProduct(AddInput{VariantID: "W", Qty: decPtr("0.01")}); err != nil {
		t.Fatalf("0.01 should be accepted: %v", err)
	}
	for _, qty := range []string{"0.005", "0", "-1"} {
		if _, err := d.AddProduct(AddInput{VariantID: "Z", Qty: decPtr(qty)}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("qty %s: expected validation error, got %v", qty, err)
		}
	}
	if _, err := d.AddProduct(AddInput{VariantID: ""}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty variant, got %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("rejected adds must not create lines, got %d", d.Len())
	}
}

func TestAddProductAggregatesDuplicates(t *testing.T) {
	d := NewDraft()
	if _, err := d.AddProduct(AddInput{VariantID: "V", Qty: decPtr("2"), UnitCost: nullDec("4")}); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := d.AddProduct(AddInput{VariantID: "V", Qty: decPtr("3"), UnitCost: nullDec("99")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !result.Merged || result.Index != 0 {
		t.Fatalf("expected merge into line 0, got %+v", result)
	}
	if d.Len() != 1 {
		t.Fatalf("expected one line, got %d", d.Len())
	}
	line := d.Lines()[0]
	if !line.Qty.Equal(dec("5")) {
		t.Fatalf("expected qty 5, got %s", line.Qty)
	}
	if !line.UnitCost.Decimal.Equal(dec("4")) {
		t.Fatalf("expected unit cost to stay 4, got %v", line.UnitCost)
	}
}

func TestAddProductNeverDuplicatesVariants(t *testing.T) {
	d := seededDraft()
	ids := []string{"A", "B", "C", "A", "C", "D", "B", "D", "A"}
	for i, id := range ids {
		if _, err := d.AddProduct(AddInput{VariantID: id, Qty: decPtr(fmt.Sprintf("%d", i+1))}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	seen := map[string]bool{}
	for _, line := range d.Lines() {
		if seen[line.VariantID] {
			t.Fatalf("variant %s appears twice", line.VariantID)
		}
		seen[line.VariantID] = true
	}
	if d.Len() != 4 {
		t.Fatalf("expected 4 distinct lines, got %d", d.Len())
	}
	// A was added at steps 1, 4 and 9.
	if got := d.Lines()[0].Qty; !got.Equal(dec("14")) {
		t.Fatalf("expected A qty 14, got %s", got)
	}
}

func TestSeededScenarioKeepsEditedUnitCost(t *testing.T) {
	d := seededDraft()
	if err := d.SetQty(0, dec("4")); err != nil {
		t.Fatalf("set qty: %v", err)
	}
	if err := d.SetUnitCost(0, nullDec("8.75")); err != nil {
		t.Fatalf("set unit cost: %v", err)
	}

	result, err := d.AddProduct(AddInput{VariantID: "A", Qty: decPtr("2"), UnitCost: nullDec("9")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !result.Merged {
		t.Fatal("expected merge")
	}
	line := d.Lines()[0]
	if !line.Qty.Equal(dec("6")) {
		t.Fatalf("expected qty 6, got %s", line.Qty)
	}
	if !line.UnitCost.Decimal.Equal(dec("8.75")) {
		t.Fatalf("expected unit cost 8.75, got %v", line.UnitCost)
	}
}

func TestEditsValidateIndexAndValues(t *testing.T) {
	d := seededDraft()
	if err := d.SetQty(5, dec("1")); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := d.SetQty(0, dec("-1")); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := d.SetUnitCost(0, nullDec("-0.01")); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := d.Remove(-1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveKeepsRemainingLinesAligned(t *testing.T) {
	d := seededDraft()
	if _, err := d.AddProduct(AddInput{VariantID: "C", Qty: decPtr("7"), UnitCost: nullDec("3")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := d.SetQty(1, dec("2")); err != nil {
		t.Fatalf("set qty: %v", err)
	}

	removed, err := d.Remove(0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.VariantID != "A" {
		t.Fatalf("expected A removed, got %s", removed.VariantID)
	}

	lines := d.Lines()
	flat := d.Flat()
	if len(lines) != 2 || len(flat) != 2 {
		t.Fatalf("expected 2 lines and 2 flat lines, got %d and %d", len(lines), len(flat))
	}
	if lines[0].VariantID != "B" || !lines[0].Qty.Equal(dec("2")) {
		t.Fatalf("expected B to keep its qty, got %+v", lines[0])
	}
	if lines[1].VariantID != "C" || !lines[1].Qty.Equal(dec("7")) || !lines[1].UnitCost.Decimal.Equal(dec("3")) {
		t.Fatalf("expected C to keep its fields, got %+v", lines[1])
	}
	for i := range lines {
		if flat[i].VariantID != lines[i].VariantID {
			t.Fatalf("flat line %d out of step with line list", i)
		}
	}
}

func TestFlatFallsBackToLastCost(t *testing.T) {
	d := NewDraft()
	if _, err := d.AddProduct(AddInput{VariantID: "V", LastCost: nullDec("11"), LastCurrency: strPtr("EUR")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	flat := d.Flat()[0]
	if !flat.UnitCost.Valid || !flat.UnitCost.Decimal.Equal(dec("11")) {
		t.Fatalf("expected fallback to last cost, got %v", flat.UnitCost)
	}
	if flat.Currency == nil || *flat.Currency != "EUR" {
		t.Fatalf("expected currency from last currency, got %v", flat.Currency)
	}

	if err := d.SetUnitCost(0, nullDec("12")); err != nil {
		t.Fatalf("set unit cost: %v", err)
	}
	if got := d.Flat()[0].UnitCost; !got.Decimal.Equal(dec("12")) {
		t.Fatalf("explicit unit cost must win, got %v", got)
	}
}

func TestPayloadExcludesUnorderedLines(t *testing.T) {
	d := seededDraft()
	if err := d.SetQty(1, dec("0.01")); err != nil {
		t.Fatalf("set qty: %v", err)
	}

	payload, err := d.Payload(strPtr("  "))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.SupplierID != "S" || payload.WarehouseID != nil {
		t.Fatalf("unexpected payload header %+v", payload)
	}
	if len(payload.Lines) != 1 || payload.Lines[0].VariantID != "B" {
		t.Fatalf("expected only B, got %+v", payload.Lines)
	}
	if !payload.Lines[0].Qty.Equal(dec("0.01")) || !payload.Lines[0].UnitCost.Equal(dec("20")) {
		t.Fatalf("unexpected line %+v", payload.Lines[0])
	}
	if payload.Lines[0].Currency == nil || *payload.Lines[0].Currency != "USD" {
		t.Fatalf("expected currency carried, got %v", payload.Lines[0].Currency)
	}
}

func TestPayloadUsesOverrideCurrency(t *testing.T) {
	d := NewDraft()
	d.Reset("S", []catalog.Row{{
		VariantID:    "A",
		UnitCost:     nullDec("9"),
		Currency:     strPtr("EUR"),
		LastCost:     nullDec("10"),
		LastCurrency: strPtr("USD"),
	}})
	if err := d.SetQty(0, dec("1")); err != nil {
		t.Fatalf("set qty: %v", err)
	}

	payload, err := d.Payload(nil)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	line := payload.Lines[0]
	if !line.UnitCost.Equal(dec("9")) || line.Currency == nil || *line.Currency != "EUR" {
		t.Fatalf("expected 9 EUR, got %s %v", line.UnitCost, line.Currency)
	}

	if err := d.SetUnitCost(0, decimal.NullDecimal{}); err != nil {
		t.Fatalf("clear unit cost: %v", err)
	}
	if flat := d.Flat()[0]; !flat.UnitCost.Decimal.Equal(dec("10")) || *flat.Currency != "USD" {
		t.Fatalf("expected fallback to 10 USD, got %s %v", flat.UnitCost.Decimal, flat.Currency)
	}
}

func TestPayloadRequiresOrderedLineWithCost(t *testing.T) {
	d := seededDraft()
	if _, err := d.Payload(nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without ordered lines, got %v", err)
	}

	if _, err := d.AddProduct(AddInput{VariantID: "N", Qty: decPtr("1")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := d.Payload(nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing cost, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if ids, _ := details["variantIds"].([]string); len(ids) != 1 || ids[0] != "N" {
		t.Fatalf("unexpected details %v", details)
	}

	if _, err := NewDraft().Payload(nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without supplier, got %v", err)
	}
}
