package service

import (
	"github.com/shopspring/decimal"

	"github.com/evermart/cart/internal/config"
	"github.com/evermart/cart/internal/repository"
)

type CartTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// TotalsCalculator derives cart totals from the line items alone. The same
// items always produce the same totals, which is what makes recomputing after
// every mutation safe.
type TotalsCalculator struct {
	taxRate               decimal.Decimal
	freeShippingThreshold decimal.Decimal
	flatShippingFee       decimal.Decimal
	discountThreshold     decimal.Decimal
	discountRate          decimal.Decimal
}

func NewTotalsCalculator(cfg config.Pricing) TotalsCalculator {
	return TotalsCalculator{
		taxRate:               decimal.NewFromFloat(cfg.TaxRate),
		freeShippingThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold),
		flatShippingFee:       decimal.NewFromFloat(cfg.FlatShippingFee),
		discountThreshold:     decimal.NewFromFloat(cfg.DiscountThreshold),
		discountRate:          decimal.NewFromFloat(cfg.DiscountRate),
	}
}

// Calculate recomputes totals from unit price and quantity, never from the
// stored line totals. An empty cart is all zeros: no shipping fee applies
// when there is nothing to ship.
func (t TotalsCalculator) Calculate(items []repository.CartItem) CartTotals {
	if len(items) == 0 {
		return CartTotals{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Discount: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}

	tax := subtotal.Mul(t.taxRate).Round(2)

	shipping := t.flatShippingFee
	if subtotal.GreaterThanOrEqual(t.freeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if subtotal.GreaterThanOrEqual(t.discountThreshold) {
		discount = subtotal.Mul(t.discountRate).Round(2)
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return CartTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}
