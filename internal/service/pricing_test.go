package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/evermart/cart/internal/config"
	"github.com/evermart/cart/internal/repository"
)

func item(unitPrice string, quantity int32) repository.CartItem {
	return repository.CartItem{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(unitPrice),
	}
}

func TestCalculateTotals(t *testing.T) {
	calculator := NewTotalsCalculator(testPricing())

	tests := []struct {
		name     string
		items    []repository.CartItem
		subtotal string
		tax      string
		shipping string
		discount string
		total    string
	}{
		{
			name:     "empty cart is all zeros, no shipping fee",
			items:    nil,
			subtotal: "0", tax: "0", shipping: "0", discount: "0", total: "0",
		},
		{
			name:     "small cart pays tax and flat shipping",
			items:    []repository.CartItem{item("100", 2)},
			subtotal: "200", tax: "36", shipping: "100", discount: "0", total: "336",
		},
		{
			name:     "subtotal at free shipping threshold ships free",
			items:    []repository.CartItem{item("500", 2)},
			subtotal: "1000", tax: "180", shipping: "0", discount: "0", total: "1180",
		},
		{
			name:     "subtotal just below threshold still pays shipping",
			items:    []repository.CartItem{item("999.99", 1)},
			subtotal: "999.99", tax: "180", shipping: "100", discount: "0", total: "1279.99",
		},
		{
			name:     "subtotal at discount threshold earns the discount",
			items:    []repository.CartItem{item("1000", 2)},
			subtotal: "2000", tax: "360", shipping: "0", discount: "200", total: "2160",
		},
		{
			name: "multiple lines sum unit price times quantity",
			items: []repository.CartItem{
				item("250.50", 2),
				item("99.99", 3),
			},
			subtotal: "800.97", tax: "144.17", shipping: "100", discount: "0", total: "1045.14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := calculator.Calculate(tt.items)
			assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString(tt.subtotal)),
				"subtotal=%s want %s", totals.Subtotal, tt.subtotal)
			assert.True(t, totals.Tax.Equal(decimal.RequireFromString(tt.tax)),
				"tax=%s want %s", totals.Tax, tt.tax)
			assert.True(t, totals.Shipping.Equal(decimal.RequireFromString(tt.shipping)),
				"shipping=%s want %s", totals.Shipping, tt.shipping)
			assert.True(t, totals.Discount.Equal(decimal.RequireFromString(tt.discount)),
				"discount=%s want %s", totals.Discount, tt.discount)
			assert.True(t, totals.Total.Equal(decimal.RequireFromString(tt.total)),
				"total=%s want %s", totals.Total, tt.total)
		})
	}
}

func TestCalculateTotalsDeterministic(t *testing.T) {
	calculator := NewTotalsCalculator(testPricing())
	items := []repository.CartItem{
		item("123.45", 3),
		item("0.99", 17),
		item("2499.99", 1),
	}

	first := calculator.Calculate(items)
	for range 100 {
		again := calculator.Calculate(items)
		assert.True(t, first.Subtotal.Equal(again.Subtotal))
		assert.True(t, first.Tax.Equal(again.Tax))
		assert.True(t, first.Shipping.Equal(again.Shipping))
		assert.True(t, first.Discount.Equal(again.Discount))
		assert.True(t, first.Total.Equal(again.Total))
	}
}

func TestCalculateTotalsNeverNegative(t *testing.T) {
	// discount rate above 100% must not drive the total below zero
	calculator := NewTotalsCalculator(config.Pricing{
		TaxRate:               0,
		FreeShippingThreshold: 1000,
		FlatShippingFee:       0,
		DiscountThreshold:     0,
		DiscountRate:          1.5,
	})
	totals := calculator.Calculate([]repository.CartItem{item("100", 1)})
	assert.True(t, totals.Total.Equal(decimal.Zero), "total=%s want 0", totals.Total)
}
