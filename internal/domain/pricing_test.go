package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRentalDays(t *testing.T) {
	pickup := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		dropoff time.Time
		want    int
	}{
		{"same instant", pickup, 1},
		{"exactly 24h", pickup.Add(24 * time.Hour), 1},
		{"24h plus one second", pickup.Add(24*time.Hour + time.Second), 2},
		{"four days", pickup.Add(4 * 24 * time.Hour), 4},
		{"three and a half days", pickup.Add(3*24*time.Hour + 12*time.Hour), 4},
		{"dropoff before pickup", pickup.Add(-time.Hour), 1},
	}

	for _, tc := range cases {
		if got := RentalDays(pickup, tc.dropoff); got != tc.want {
			t.Errorf("%s: RentalDays = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestPublicPrice(t *testing.T) {
	got := PublicPrice(d("100.00"), d("15.00"))
	if !got.Equal(d("115.00")) {
		t.Errorf("PublicPrice(100, 15%%) = %s, want 115.00", got)
	}

	// Zero markup is identity.
	if got := PublicPrice(d("123.45"), decimal.Zero); !got.Equal(d("123.45")) {
		t.Errorf("PublicPrice(123.45, 0) = %s, want 123.45", got)
	}

	// Half-up rounding: 10.005 → 10.01
	if got := PublicPrice(d("10.00"), d("0.05")); !got.Equal(d("10.01")) {
		t.Errorf("PublicPrice(10.00, 0.05%%) = %s, want 10.01", got)
	}
}

func TestCommission(t *testing.T) {
	if got := Commission(d("115.00"), d("100.00")); !got.Equal(d("15.00")) {
		t.Errorf("Commission = %s, want 15.00", got)
	}

	// Never negative, even when cost exceeds the public price.
	if got := Commission(d("90.00"), d("100.00")); !got.Equal(decimal.Zero) {
		t.Errorf("Commission = %s, want 0", got)
	}
}

func TestApplyDiscount_Percent(t *testing.T) {
	final, applied, err := ApplyDiscount(d("100.00"), DiscountPercent, d("10.00"), nil)
	if err != nil {
		t.Fatalf("ApplyDiscount error: %v", err)
	}
	if !final.Equal(d("90.00")) || !applied.Equal(d("10.00")) {
		t.Errorf("ApplyDiscount = (%s, %s), want (90.00, 10.00)", final, applied)
	}
}

func TestApplyDiscount_FixedAmount(t *testing.T) {
	final, applied, err := ApplyDiscount(d("100.00"), DiscountFixedAmount, d("25.00"), nil)
	if err != nil {
		t.Fatalf("ApplyDiscount error: %v", err)
	}
	if !final.Equal(d("75.00")) || !applied.Equal(d("25.00")) {
		t.Errorf("ApplyDiscount = (%s, %s), want (75.00, 25.00)", final, applied)
	}
}

func TestApplyDiscount_ClampedByMax(t *testing.T) {
	max := d("5.00")
	final, applied, err := ApplyDiscount(d("100.00"), DiscountPercent, d("10.00"), &max)
	if err != nil {
		t.Fatalf("ApplyDiscount error: %v", err)
	}
	if !applied.Equal(d("5.00")) || !final.Equal(d("95.00")) {
		t.Errorf("ApplyDiscount = (%s, %s), want (95.00, 5.00)", final, applied)
	}
}

func TestApplyDiscount_ClampedByPrice(t *testing.T) {
	final, applied, err := ApplyDiscount(d("20.00"), DiscountFixedAmount, d("50.00"), nil)
	if err != nil {
		t.Fatalf("ApplyDiscount error: %v", err)
	}
	if !applied.Equal(d("20.00")) || !final.Equal(decimal.Zero.Round(2)) {
		t.Errorf("ApplyDiscount = (%s, %s), want (0.00, 20.00)", final, applied)
	}
}

func TestApplyDiscount_InvalidKind(t *testing.T) {
	_, _, err := ApplyDiscount(d("100.00"), DiscountKind("BOGO"), d("10.00"), nil)
	if err != ErrInvalidDiscountKind {
		t.Errorf("error = %v, want ErrInvalidDiscountKind", err)
	}
}

func TestTaxes(t *testing.T) {
	if got := Taxes(d("100.00"), d("16.00")); !got.Equal(d("16.00")) {
		t.Errorf("Taxes(100, 16%%) = %s, want 16.00", got)
	}
	if got := Taxes(d("33.33"), d("16.00")); !got.Equal(d("5.33")) {
		t.Errorf("Taxes(33.33, 16%%) = %s, want 5.33", got)
	}
}

func TestTotalWithExtras(t *testing.T) {
	extras := []Extra{
		{UnitPrice: d("10.00"), Quantity: 2},
		{UnitPrice: d("5.00"), Quantity: 1},
	}
	if got := TotalWithExtras(d("100.00"), extras); !got.Equal(d("125.00")) {
		t.Errorf("TotalWithExtras = %s, want 125.00", got)
	}

	if got := TotalWithExtras(d("99.99"), nil); !got.Equal(d("99.99")) {
		t.Errorf("TotalWithExtras(99.99, nil) = %s, want 99.99", got)
	}
}
