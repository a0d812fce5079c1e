package enums

import "fmt"

// BonusType describes the commercial bonus attached to a supplier catalog override.
type BonusType string

const (
	BonusTypeNone            BonusType = "none"
	BonusTypeDiscountPercent BonusType = "discount_percent"
	BonusTypeBonusQty        BonusType = "bonus_qty"
)

var validBonusTypes = []BonusType{
	BonusTypeNone,
	BonusTypeDiscountPercent,
	BonusTypeBonusQty,
}

// String implements fmt.Stringer.
func (b BonusType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BonusType.
func (b BonusType) IsValid() bool {
	for _, candidate := range validBonusTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBonusType converts raw input into a BonusType.
func ParseBonusType(value string) (BonusType, error) {
	for _, candidate := range validBonusTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bonus type %q", value)
}
