package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchasing-console/pkg/enums"
)

// Scope is the tenant context every backend call is issued under.
type Scope struct {
	OrganizationID string
	CompanyID      string
	// Token is forwarded verbatim as the Authorization header when set.
	Token string
}

// Key identifies the scope for cache ownership.
func (s Scope) Key() string {
	return s.OrganizationID + "/" + s.CompanyID
}

// Variant is a purchasable unit of a product.
type Variant struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	SKU  *string `json:"sku,omitempty"`
}

// Label is the display label used by the console.
func (v Variant) Label() string {
	name := strings.TrimSpace(v.Name)
	if v.SKU == nil || strings.TrimSpace(*v.SKU) == "" {
		return name
	}
	if name == "" {
		return strings.TrimSpace(*v.SKU)
	}
	return fmt.Sprintf("%s (%s)", name, strings.TrimSpace(*v.SKU))
}

// SupplierProduct is a base catalog entry: a variant the supplier is known to have supplied.
type SupplierProduct struct {
	SupplierID     string              `json:"supplierId"`
	VariantID      string              `json:"variantId"`
	Active         bool                `json:"active"`
	LastCost       decimal.NullDecimal `json:"lastCost"`
	LastCurrency   *string             `json:"lastCurrency"`
	LastRecordedAt *Timestamp          `json:"lastRecordedAt"`
}

// LastCost is the most recent recorded transaction cost for a (supplier, variant) pair.
type LastCost struct {
	LastCost       decimal.NullDecimal `json:"lastCost"`
	LastCurrency   *string             `json:"lastCurrency"`
	LastRecordedAt *Timestamp          `json:"lastRecordedAt"`
}

// CatalogOverride is a supplier and variant specific pricing/terms record.
type CatalogOverride struct {
	ID           string              `json:"id"`
	SupplierID   string              `json:"supplierId"`
	VariantID    string              `json:"variantId"`
	UnitCost     decimal.Decimal     `json:"unitCost"`
	Currency     *string             `json:"currency,omitempty"`
	FreightCost  decimal.NullDecimal `json:"freightCost"`
	BonusType    enums.BonusType     `json:"bonusType"`
	BonusValue   decimal.NullDecimal `json:"bonusValue"`
	MinQty       decimal.NullDecimal `json:"minQty"`
	LeadTimeDays *int                `json:"leadTimeDays,omitempty"`
	ValidFrom    *Timestamp          `json:"validFrom,omitempty"`
	ValidTo      *Timestamp          `json:"validTo,omitempty"`
	Status       enums.CatalogStatus `json:"status"`
}

// IsActive reports whether the override is in force.
func (o CatalogOverride) IsActive() bool {
	return o.Status == "" || o.Status == enums.CatalogStatusActive
}

// OverrideFields carries the writable override fields. Nil members are left out of the request,
// which is what makes a PATCH partial.
type OverrideFields struct {
	VariantID    *string
	UnitCost     *decimal.Decimal
	Currency     *string
	FreightCost  *decimal.Decimal
	BonusType    *enums.BonusType
	BonusValue   *decimal.Decimal
	MinQty       *decimal.Decimal
	LeadTimeDays *int
	ValidFrom    *time.Time
	ValidTo      *time.Time
	Status       *enums.CatalogStatus
}

func (f OverrideFields) wire() map[string]any {
	body := map[string]any{}
	if f.VariantID != nil {
		body["variantId"] = *f.VariantID
	}
	if f.UnitCost != nil {
		body["unitCost"] = number(*f.UnitCost)
	}
	if f.Currency != nil {
		body["currency"] = *f.Currency
	}
	if f.FreightCost != nil {
		body["freightCost"] = number(*f.FreightCost)
	}
	if f.BonusType != nil {
		body["bonusType"] = string(*f.BonusType)
	}
	if f.BonusValue != nil {
		body["bonusValue"] = number(*f.BonusValue)
	}
	if f.MinQty != nil {
		body["minQty"] = number(*f.MinQty)
	}
	if f.LeadTimeDays != nil {
		body["leadTimeDays"] = *f.LeadTimeDays
	}
	if f.ValidFrom != nil {
		body["validFrom"] = f.ValidFrom.UTC().Format(time.RFC3339)
	}
	if f.ValidTo != nil {
		body["validTo"] = f.ValidTo.UTC().Format(time.RFC3339)
	}
	if f.Status != nil {
		body["status"] = string(*f.Status)
	}
	return body
}

// OrderLine is a purchase-order line as accepted by POST /purchases/orders.
type OrderLine struct {
	VariantID string
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	Currency  *string
}

// CreateOrderInput is the purchase-order creation payload.
type CreateOrderInput struct {
	SupplierID  string
	WarehouseID *string
	Lines       []OrderLine
}

type orderLineWire struct {
	VariantID string      `json:"variantId"`
	Qty       json.Number `json:"qty"`
	UnitCost  json.Number `json:"unitCost"`
	Currency  *string     `json:"currency,omitempty"`
}

type createOrderWire struct {
	OrganizationID string          `json:"OrganizationId"`
	CompanyID      string          `json:"companyId"`
	SupplierID     string          `json:"supplierId"`
	Lines          []orderLineWire `json:"lines"`
	WarehouseID    *string         `json:"warehouseId,omitempty"`
}

// PurchaseOrder is the created purchase order returned by the backend.
type PurchaseOrder struct {
	ID          string          `json:"id"`
	Number      string          `json:"number,omitempty"`
	SupplierID  string          `json:"supplierId"`
	WarehouseID *string         `json:"warehouseId,omitempty"`
	Status      string          `json:"status,omitempty"`
	Lines       json.RawMessage `json:"lines,omitempty"`
	CreatedAt   *Timestamp      `json:"createdAt,omitempty"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// Timestamp accepts both RFC3339 timestamps and bare dates from the backend.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
