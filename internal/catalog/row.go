package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
)

// Row is the effective catalog view of one base entry: override values take precedence over
// the base entry's last recorded values. Override-only fields are absent when no override applies.
type Row struct {
	VariantID    string              `json:"variantId"`
	VariantLabel string              `json:"variantLabel"`
	UnitCost     decimal.NullDecimal `json:"unitCost"`
	Currency     *string             `json:"currency"`
	Status       enums.CatalogStatus `json:"status"`

	OverrideID   string           `json:"overrideId,omitempty"`
	FreightCost  *decimal.Decimal `json:"freightCost,omitempty"`
	BonusType    *enums.BonusType `json:"bonusType,omitempty"`
	BonusValue   *decimal.Decimal `json:"bonusValue,omitempty"`
	MinQty       *decimal.Decimal `json:"minQty,omitempty"`
	LeadTimeDays *int             `json:"leadTimeDays,omitempty"`
	ValidFrom    *time.Time       `json:"validFrom,omitempty"`
	ValidTo      *time.Time       `json:"validTo,omitempty"`

	LastCost       decimal.NullDecimal `json:"lastCost"`
	LastCurrency   *string             `json:"lastCurrency"`
	LastRecordedAt *time.Time          `json:"lastRecordedAt"`

	// OverrideConflict is set when more than one active override exists for the variant.
	OverrideConflict bool `json:"overrideConflict,omitempty"`
}

// HasOverride reports whether an override contributed to the row.
func (r Row) HasOverride() bool {
	return r.OverrideID != ""
}

func resolveRow(entry backend.SupplierProduct, override *backend.CatalogOverride, label string, conflict bool) Row {
	row := Row{
		VariantID:        entry.VariantID,
		VariantLabel:     label,
		UnitCost:         entry.LastCost,
		Currency:         entry.LastCurrency,
		Status:           enums.CatalogStatusFromActive(entry.Active),
		LastCost:         entry.LastCost,
		LastCurrency:     entry.LastCurrency,
		LastRecordedAt:   timePtr(entry.LastRecordedAt),
		OverrideConflict: conflict,
	}
	if override == nil {
		return row
	}

	row.OverrideID = override.ID
	row.UnitCost = decimal.NewNullDecimal(override.UnitCost)
	if override.Currency != nil {
		row.Currency = override.Currency
	}
	if override.Status != "" {
		row.Status = override.Status
	}
	row.FreightCost = decimalPtr(override.FreightCost)
	bonusType := override.BonusType
	if bonusType == "" {
		bonusType = enums.BonusTypeNone
	}
	row.BonusType = &bonusType
	row.BonusValue = decimalPtr(override.BonusValue)
	row.MinQty = decimalPtr(override.MinQty)
	row.LeadTimeDays = override.LeadTimeDays
	row.ValidFrom = timePtr(override.ValidFrom)
	row.ValidTo = timePtr(override.ValidTo)
	return row
}

func decimalPtr(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	d := value.Decimal
	return &d
}

func timePtr(ts *backend.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.UTC()
	return &t
}
