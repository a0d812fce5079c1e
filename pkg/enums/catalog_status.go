package enums

import "fmt"

// CatalogStatus is the availability of a supplier catalog entry or override.
type CatalogStatus string

const (
	CatalogStatusActive   CatalogStatus = "active"
	CatalogStatusInactive CatalogStatus = "inactive"
)

var validCatalogStatuses = []CatalogStatus{
	CatalogStatusActive,
	CatalogStatusInactive,
}

// String implements fmt.Stringer.
func (s CatalogStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CatalogStatus.
func (s CatalogStatus) IsValid() bool {
	for _, candidate := range validCatalogStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCatalogStatus converts raw input into a CatalogStatus.
func ParseCatalogStatus(value string) (CatalogStatus, error) {
	for _, candidate := range validCatalogStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid catalog status %q", value)
}

// CatalogStatusFromActive maps a base-entry active flag onto a CatalogStatus.
func CatalogStatusFromActive(active bool) CatalogStatus {
	if active {
		return CatalogStatusActive
	}
	return CatalogStatusInactive
}
