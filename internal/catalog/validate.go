package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
)

type fieldError struct {
	Field   string
	Message string
}

func (e fieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// normalizeOverride validates override fields and returns them with trimmed and normalized values.
// existing is the stored override a patch applies to, nil for a create.
func normalizeOverride(fields backend.OverrideFields, existing *backend.CatalogOverride) (backend.OverrideFields, error) {
	var errs error

	if fields.VariantID != nil {
		trimmed := strings.TrimSpace(*fields.VariantID)
		fields.VariantID = &trimmed
	}
	if existing == nil {
		if fields.VariantID == nil || *fields.VariantID == "" {
			errs = multierr.Append(errs, fieldError{"variantId", "is required"})
		}
		if fields.UnitCost == nil {
			errs = multierr.Append(errs, fieldError{"unitCost", "is required"})
		}
	} else if fields.VariantID != nil && *fields.VariantID == "" {
		errs = multierr.Append(errs, fieldError{"variantId", "must not be empty"})
	}

	errs = multierr.Append(errs, nonNegative("unitCost", fields.UnitCost))
	errs = multierr.Append(errs, nonNegative("freightCost", fields.FreightCost))
	errs = multierr.Append(errs, nonNegative("bonusValue", fields.BonusValue))
	errs = multierr.Append(errs, nonNegative("minQty", fields.MinQty))
	if fields.LeadTimeDays != nil && *fields.LeadTimeDays < 0 {
		errs = multierr.Append(errs, fieldError{"leadTimeDays", "must be >= 0"})
	}

	if fields.Currency != nil {
		currency, err := enums.ParseCurrency(*fields.Currency)
		if err != nil {
			errs = multierr.Append(errs, fieldError{"currency", "must be a 3-letter code"})
		} else {
			normalized := currency.String()
			fields.Currency = &normalized
		}
	}
	if fields.BonusType != nil && !fields.BonusType.IsValid() {
		errs = multierr.Append(errs, fieldError{"bonusType", "must be one of none, discount_percent, bonus_qty"})
	}
	if fields.Status != nil && !fields.Status.IsValid() {
		errs = multierr.Append(errs, fieldError{"status", "must be active or inactive"})
	}

	bonusType, hasBonusValue := effectiveBonus(fields, existing)
	if bonusType != enums.BonusTypeNone && !hasBonusValue {
		errs = multierr.Append(errs, fieldError{"bonusValue", "is required when bonusType is " + bonusType.String()})
	}

	from, to := fields.ValidFrom, fields.ValidTo
	if existing != nil {
		if from == nil && existing.ValidFrom != nil {
			from = &existing.ValidFrom.Time
		}
		if to == nil && existing.ValidTo != nil {
			to = &existing.ValidTo.Time
		}
	}
	if from != nil && to != nil && from.After(*to) {
		errs = multierr.Append(errs, fieldError{"validFrom", "must not be after validTo"})
	}

	if errs == nil {
		return fields, nil
	}
	return fields, validationError(errs)
}

func effectiveBonus(fields backend.OverrideFields, existing *backend.CatalogOverride) (enums.BonusType, bool) {
	bonusType := enums.BonusTypeNone
	hasValue := false
	if existing != nil {
		if existing.BonusType != "" {
			bonusType = existing.BonusType
		}
		hasValue = existing.BonusValue.Valid
	}
	if fields.BonusType != nil {
		bonusType = *fields.BonusType
	}
	if fields.BonusValue != nil {
		hasValue = true
	}
	return bonusType, hasValue
}

func nonNegative(field string, value *decimal.Decimal) error {
	if value != nil && value.IsNegative() {
		return fieldError{field, "must be >= 0"}
	}
	return nil
}

func validationError(errs error) error {
	details := map[string]string{}
	for _, err := range multierr.Errors(errs) {
		if fe, ok := err.(fieldError); ok {
			details[fe.Field] = fe.Message
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "invalid catalog override").WithDetails(details)
}
