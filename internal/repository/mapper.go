package repository

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/evermart/cart/pkg/response"
)

func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              d.Coefficient(),
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		NaN:              false,
		Valid:            true,
	}
}

func NumericFromDecimalPtr(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{Valid: false}
	}
	return NumericFromDecimal(*d)
}

func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// Response projects a cart row plus its live items into the API shape,
// computing itemCount, isExpired and isEmpty.
func (cart Cart) Response(items []CartItem) (response.Cart, error) {
	respItems := make([]response.CartItem, len(items))
	itemCount := int32(0)
	for i, item := range items {
		respItem, err := item.Response()
		if err != nil {
			return response.Cart{}, err
		}
		respItems[i] = respItem
		itemCount += item.Quantity
	}

	var address *response.ShippingAddress
	if len(cart.ShippingAddress) > 0 {
		address = &response.ShippingAddress{}
		if err := json.Unmarshal(cart.ShippingAddress, address); err != nil {
			return response.Cart{}, err
		}
	}

	metadata := map[string]string{}
	if len(cart.Metadata) > 0 {
		if err := json.Unmarshal(cart.Metadata, &metadata); err != nil {
			return response.Cart{}, err
		}
	}

	sessionId := ""
	if cart.SessionID != nil {
		sessionId = *cart.SessionID
	}

	coupons := cart.AppliedCoupons
	if coupons == nil {
		coupons = []string{}
	}

	return response.Cart{
		ID:              cart.ID,
		OwnerID:         cart.OwnerID,
		SessionID:       sessionId,
		Status:          string(cart.Status),
		Currency:        cart.Currency,
		Subtotal:        cart.Subtotal,
		Tax:             cart.Tax,
		Shipping:        cart.Shipping,
		Discount:        cart.Discount,
		Total:           cart.Total,
		AppliedCoupons:  coupons,
		ShippingAddress: address,
		Metadata:        metadata,
		Items:           respItems,
		ItemCount:       itemCount,
		IsExpired:       time.Now().After(cart.ExpiresAt),
		IsEmpty:         len(items) == 0,
		ExpiresAt:       cart.ExpiresAt,
		CreatedAt:       cart.CreatedAt,
		UpdatedAt:       cart.UpdatedAt,
	}, nil
}

func (item CartItem) Response() (response.CartItem, error) {
	attributes := map[string]string{}
	if len(item.Attributes) > 0 {
		if err := json.Unmarshal(item.Attributes, &attributes); err != nil {
			return response.CartItem{}, err
		}
	}
	return response.CartItem{
		ID:          item.ID,
		CartID:      item.CartID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Sku:         item.Sku,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
		Image:       item.Image,
		Attributes:  attributes,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}, nil
}
