package enums

import "testing"

func TestParseBonusType(t *testing.T) {
	for _, raw := range []string{"none", "discount_percent", "bonus_qty"} {
		got, err := ParseBonusType(raw)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if !got.IsValid() || got.String() != raw {
			t.Fatalf("unexpected bonus type %q", got)
		}
	}
	if _, err := ParseBonusType("cashback"); err == nil {
		t.Fatal("expected unknown bonus type to fail")
	}
}

func TestCatalogStatus(t *testing.T) {
	if CatalogStatusFromActive(true) != CatalogStatusActive {
		t.Fatal("active flag should map to active status")
	}
	if CatalogStatusFromActive(false) != CatalogStatusInactive {
		t.Fatal("inactive flag should map to inactive status")
	}
	if _, err := ParseCatalogStatus("archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestParseCurrency(t *testing.T) {
	got, err := ParseCurrency(" dop ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "DOP" {
		t.Fatalf("expected normalized DOP, got %q", got)
	}
	for _, raw := range []string{"", "US", "USDT", "U$D"} {
		if _, err := ParseCurrency(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
