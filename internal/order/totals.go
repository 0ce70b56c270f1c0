package order

import (
	"fmt"

	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/shopspring/decimal"
)

// CalculateTotals derives subtotal, tax, service charge and total from
// the item list and discount. Service charge applies to dine-in orders
// only. Tax, service charge and total are rounded to two decimals so
// receipts and payments agree.
//
// A discount larger than the subtotal clamps the total to zero rather
// than going negative; rejecting oversized discounts before they are
// stored is the mutation path's job (see Manager.ApplyDiscount).
func CalculateTotals(orderType enum.OrderType, items []Item, discount decimal.Decimal, rates Rates) (Totals, error) {
	if discount.IsNegative() {
		return Totals{}, fmt.Errorf("%w: discount is negative", ErrInvalidMonetaryState)
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return Totals{}, fmt.Errorf("items[%d]: %w: quantity %d", i, ErrInvalidMonetaryState, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("items[%d]: %w: negative unit price", i, ErrInvalidMonetaryState)
		}
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(rates.Tax).Round(2)

	service := decimal.Zero
	if orderType == enum.OrderTypeDineIn {
		service = subtotal.Mul(rates.ServiceCharge).Round(2)
	}

	total := subtotal.Add(tax).Add(service).Sub(discount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:      subtotal,
		Tax:           tax,
		ServiceCharge: service,
		Total:         total,
	}, nil
}

// applyTotals writes freshly computed totals onto the order.
func applyTotals(o *Order, t Totals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.ServiceCharge = t.ServiceCharge
	o.Total = t.Total
}
