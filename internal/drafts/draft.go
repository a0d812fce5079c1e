package drafts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/internal/catalog"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
)

var (
	// DefaultAddQty is used when an ad-hoc add omits the quantity.
	DefaultAddQty = decimal.NewFromInt(1)
	// MinAddQty is the smallest quantity accepted by an ad-hoc add.
	MinAddQty = decimal.New(1, -2)
)

// Line is one order line. Display fields and editable fields live on the same record.
type Line struct {
	VariantID    string              `json:"variantId"`
	VariantLabel string              `json:"variantLabel"`
	Qty          decimal.Decimal     `json:"qty"`
	UnitCost     decimal.NullDecimal `json:"unitCost"`
	// Currency is the currency of UnitCost when it came from a catalog row.
	Currency     *string             `json:"currency"`
	LastCost     decimal.NullDecimal `json:"lastCost"`
	LastCurrency *string             `json:"lastCurrency"`
}

// FlatLine is the normalized line consumed at submission.
type FlatLine struct {
	VariantID string              `json:"variantId"`
	Qty       decimal.Decimal     `json:"qty"`
	UnitCost  decimal.NullDecimal `json:"unitCost"`
	Currency  *string             `json:"currency"`
}

// AddInput describes an ad-hoc product addition.
type AddInput struct {
	VariantID    string
	VariantLabel string
	// Qty defaults to DefaultAddQty when nil.
	Qty          *decimal.Decimal
	UnitCost     decimal.NullDecimal
	LastCost     decimal.NullDecimal
	LastCurrency *string
}

// AddResult reports where the product landed.
type AddResult struct {
	Index  int
	Merged bool
	Line   Line
}

// Draft is the unpersisted working set of order lines for one supplier.
// A variant appears on at most one line. Draft is not safe for concurrent use.
type Draft struct {
	supplierID string
	lines      []Line
}

func NewDraft() *Draft {
	return &Draft{}
}

// SupplierID is the supplier the draft was seeded for.
func (d *Draft) SupplierID() string {
	return d.supplierID
}

// Len is the number of lines.
func (d *Draft) Len() int {
	return len(d.lines)
}

// Lines returns a copy of the lines.
func (d *Draft) Lines() []Line {
	return append([]Line(nil), d.lines...)
}

// Clear drops every line and the supplier.
func (d *Draft) Clear() {
	d.supplierID = ""
	d.lines = nil
}

// Reset clears the draft and seeds one zero-quantity line per catalog row.
func (d *Draft) Reset(supplierID string, rows []catalog.Row) {
	d.supplierID = supplierID
	d.lines = make([]Line, 0, len(rows))
	for _, row := range rows {
		if d.indexOf(row.VariantID) >= 0 {
			continue
		}
		d.lines = append(d.lines, Line{
			VariantID:    row.VariantID,
			VariantLabel: row.VariantLabel,
			Qty:          decimal.Zero,
			UnitCost:     row.UnitCost,
			Currency:     row.Currency,
			LastCost:     row.LastCost,
			LastCurrency: row.LastCurrency,
		})
	}
}

// AddProduct appends a line, or aggregates the quantity into the existing line for the variant.
// The unit cost of an existing line is never overwritten by a re-add.
func (d *Draft) AddProduct(input AddInput) (AddResult, error) {
	variantID := strings.TrimSpace(input.VariantID)
	if variantID == "" {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	qty := DefaultAddQty
	if input.Qty != nil {
		qty = *input.Qty
	}
	if qty.LessThan(MinAddQty) {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "qty must be at least "+MinAddQty.String())
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must be >= 0")
	}

	if i := d.indexOf(variantID); i >= 0 {
		d.lines[i].Qty = d.lines[i].Qty.Add(qty)
		return AddResult{Index: i, Merged: true, Line: d.lines[i]}, nil
	}

	label := input.VariantLabel
	if label == "" {
		label = variantID
	}
	d.lines = append(d.lines, Line{
		VariantID:    variantID,
		VariantLabel: label,
		Qty:          qty,
		UnitCost:     input.UnitCost,
		LastCost:     input.LastCost,
		LastCurrency: input.LastCurrency,
	})
	last := len(d.lines) - 1
	return AddResult{Index: last, Line: d.lines[last]}, nil
}

// SetQty replaces the quantity of line i. Zero keeps the line but leaves it out of the order.
func (d *Draft) SetQty(i int, qty decimal.Decimal) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	if qty.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be >= 0")
	}
	d.lines[i].Qty = qty
	return nil
}

// SetUnitCost replaces the unit cost of line i. A null cost falls back to the last cost.
func (d *Draft) SetUnitCost(i int, cost decimal.NullDecimal) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	if cost.Valid && cost.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit cost must be >= 0")
	}
	d.lines[i].UnitCost = cost
	return nil
}

// Remove deletes line i.
func (d *Draft) Remove(i int) (Line, error) {
	if err := d.checkIndex(i); err != nil {
		return Line{}, err
	}
	removed := d.lines[i]
	d.lines = append(d.lines[:i], d.lines[i+1:]...)
	return removed, nil
}

// Flat zips each line with its editable fields. The unit cost falls back to the last cost, and
// the currency follows whichever cost was used.
func (d *Draft) Flat() []FlatLine {
	flat := make([]FlatLine, 0, len(d.lines))
	for _, line := range d.lines {
		cost, currency := line.UnitCost, line.Currency
		if !cost.Valid {
			cost = line.LastCost
			currency = line.LastCurrency
		}
		if currency == nil {
			currency = line.LastCurrency
		}
		flat = append(flat, FlatLine{
			VariantID: line.VariantID,
			Qty:       line.Qty,
			UnitCost:  cost,
			Currency:  currency,
		})
	}
	return flat
}

// Payload builds the purchase-order request. Lines with qty <= 0 are left out silently.
func (d *Draft) Payload(warehouseID *string) (backend.CreateOrderInput, error) {
	if d.supplierID == "" {
		return backend.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "select a supplier first")
	}

	var (
		lines   []backend.OrderLine
		missing []string
	)
	for _, line := range d.Flat() {
		if !line.Qty.IsPositive() {
			continue
		}
		if !line.UnitCost.Valid || line.UnitCost.Decimal.IsNegative() {
			missing = append(missing, line.VariantID)
			continue
		}
		lines = append(lines, backend.OrderLine{
			VariantID: line.VariantID,
			Qty:       line.Qty,
			UnitCost:  line.UnitCost.Decimal,
			Currency:  line.Currency,
		})
	}

	if len(missing) > 0 {
		return backend.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "ordered lines need a unit cost").
			WithDetails(map[string]any{"variantIds": missing})
	}
	if len(lines) == 0 {
		return backend.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one line needs qty > 0")
	}

	var warehouse *string
	if warehouseID != nil {
		if trimmed := strings.TrimSpace(*warehouseID); trimmed != "" {
			warehouse = &trimmed
		}
	}
	return backend.CreateOrderInput{
		SupplierID:  d.supplierID,
		WarehouseID: warehouse,
		Lines:       lines,
	}, nil
}

func (d *Draft) indexOf(variantID string) int {
	for i, line := range d.lines {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

func (d *Draft) checkIndex(i int) error {
	if i < 0 || i >= len(d.lines) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("line %d not found", i))
	}
	return nil
}
