package order

import (
	"errors"
	"testing"

	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func item(price string, qty int32) Item {
	return Item{UnitPrice: dec(price), Quantity: qty}
}

func TestCalculateTotals_Basic(t *testing.T) {
	// 2×650 + 1×300, 10% tax, no discount, no service charge.
	items := []Item{item("650", 2), item("300", 1)}

	got, err := CalculateTotals(enum.OrderTypeTakeaway, items, decimal.Zero, Rates{Tax: dec("0.10")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.Subtotal.Equal(dec("1600")) {
		t.Errorf("subtotal: got %s, want 1600", got.Subtotal)
	}
	if !got.Tax.Equal(dec("160")) {
		t.Errorf("tax: got %s, want 160", got.Tax)
	}
	if !got.Total.Equal(dec("1760")) {
		t.Errorf("total: got %s, want 1760", got.Total)
	}
}

func TestCalculateTotals_DiscountExceedsSubtotal(t *testing.T) {
	items := []Item{item("650", 2), item("300", 1)}

	got, err := CalculateTotals(enum.OrderTypeTakeaway, items, dec("2000"), Rates{Tax: dec("0.10")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Total.Equal(decimal.Zero) {
		t.Errorf("total: got %s, want 0 (clamped, never negative)", got.Total)
	}
	if !got.Subtotal.Equal(dec("1600")) {
		t.Errorf("subtotal: got %s, want 1600 (clamping only affects total)", got.Subtotal)
	}
}

func TestCalculateTotals_EmptyItems(t *testing.T) {
	got, err := CalculateTotals(enum.OrderTypeTakeaway, nil, dec("500"), Rates{Tax: dec("0.10")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Subtotal.IsZero() || !got.Tax.IsZero() || !got.Total.IsZero() {
		t.Errorf("empty order: got %+v, want all zeros", got)
	}
}

func TestCalculateTotals_ServiceChargeDineInOnly(t *testing.T) {
	items := []Item{item("1000", 1)}
	rates := Rates{Tax: dec("0.16"), ServiceCharge: dec("0.10")}

	dineIn, err := CalculateTotals(enum.OrderTypeDineIn, items, decimal.Zero, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dineIn.ServiceCharge.Equal(dec("100")) {
		t.Errorf("dine-in service charge: got %s, want 100", dineIn.ServiceCharge)
	}
	if !dineIn.Total.Equal(dec("1260")) {
		t.Errorf("dine-in total: got %s, want 1260", dineIn.Total)
	}

	takeaway, err := CalculateTotals(enum.OrderTypeTakeaway, items, decimal.Zero, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !takeaway.ServiceCharge.IsZero() {
		t.Errorf("takeaway service charge: got %s, want 0", takeaway.ServiceCharge)
	}
}

func TestCalculateTotals_Rounding(t *testing.T) {
	// 3×33.33 = 99.99; 16% tax = 15.9984, must round to 16.00.
	items := []Item{item("33.33", 3)}

	got, err := CalculateTotals(enum.OrderTypeTakeaway, items, decimal.Zero, Rates{Tax: dec("0.16")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Tax.Equal(dec("16.00")) {
		t.Errorf("tax: got %s, want 16.00", got.Tax)
	}
	if !got.Total.Equal(dec("115.99")) {
		t.Errorf("total: got %s, want 115.99", got.Total)
	}
}

func TestCalculateTotals_RejectsBadInputs(t *testing.T) {
	cases := []struct {
		name     string
		items    []Item
		discount decimal.Decimal
	}{
		{"zero quantity", []Item{item("100", 0)}, decimal.Zero},
		{"negative quantity", []Item{item("100", -2)}, decimal.Zero},
		{"negative price", []Item{item("-5", 1)}, decimal.Zero},
		{"negative discount", []Item{item("100", 1)}, dec("-10")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CalculateTotals(enum.OrderTypeTakeaway, tc.items, tc.discount, Rates{Tax: dec("0.10")})
			if !errors.Is(err, ErrInvalidMonetaryState) {
				t.Fatalf("expected ErrInvalidMonetaryState, got: %v", err)
			}
		})
	}
}
