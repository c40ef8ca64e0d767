package request

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateCart struct {
	Currency string            `validate:"omitempty,iso4217" json:"currency"`
	Metadata map[string]string `                             json:"metadata"`
}

type UpdateCart struct {
	Currency        *string           `validate:"omitnil,iso4217" json:"currency"`
	AppliedCoupons  []string          `validate:"omitempty,dive,min=1" json:"appliedCoupons"`
	ShippingAddress *ShippingAddress  `validate:"omitempty" json:"shippingAddress"`
	Metadata        map[string]string `json:"metadata"`
}

type ShippingAddress struct {
	Name       string `validate:"required" json:"name"`
	Line1      string `validate:"required" json:"line1"`
	Line2      string `json:"line2"`
	City       string `validate:"required" json:"city"`
	State      string `json:"state"`
	PostalCode string `validate:"required" json:"postalCode"`
	Country    string `validate:"required" json:"country"`
	Phone      string `json:"phone"`
}

type InsertCartItem struct {
	ProductId   uuid.UUID         `validate:"required"       json:"productId"`
	ProductName string            `validate:"required"       json:"productName"`
	Sku         string            `validate:"required"       json:"sku"`
	Quantity    int32             `validate:"required,gte=1" json:"quantity"`
	UnitPrice   decimal.Decimal   `validate:"gte=0"          json:"unitPrice"`
	Image       *string           `                          json:"image"`
	Attributes  map[string]string `                          json:"attributes"`
}

type UpdateCartItem struct {
	ProductName *string           `validate:"omitnil,min=1"  json:"productName"`
	Quantity    *int32            `validate:"omitnil,gte=1"  json:"quantity"`
	UnitPrice   *decimal.Decimal  `validate:"omitnil,gte=0"  json:"unitPrice"`
	Image       *string           `                            json:"image"`
	Attributes  map[string]string `                            json:"attributes"`
}

type MergeCart struct {
	SessionId string `validate:"required" json:"sessionId"`
}
