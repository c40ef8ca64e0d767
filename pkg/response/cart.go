package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         *uuid.UUID        `json:"ownerId,omitempty"`
	SessionID       string            `json:"sessionId,omitempty"`
	Status          string            `json:"status"`
	Currency        string            `json:"currency"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Tax             decimal.Decimal   `json:"tax"`
	Shipping        decimal.Decimal   `json:"shipping"`
	Discount        decimal.Decimal   `json:"discount"`
	Total           decimal.Decimal   `json:"total"`
	AppliedCoupons  []string          `json:"appliedCoupons"`
	ShippingAddress *ShippingAddress  `json:"shippingAddress,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Items           []CartItem        `json:"items"`
	ItemCount       int32             `json:"itemCount"`
	IsExpired       bool              `json:"isExpired"`
	IsEmpty         bool              `json:"isEmpty"`
	ExpiresAt       time.Time         `json:"expiresAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type CartItem struct {
	ID          uuid.UUID         `json:"id"`
	CartID      uuid.UUID         `json:"cartId"`
	ProductID   uuid.UUID         `json:"productId"`
	ProductName string            `json:"productName"`
	Sku         string            `json:"sku"`
	Quantity    int32             `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unitPrice"`
	TotalPrice  decimal.Decimal   `json:"totalPrice"`
	Image       *string           `json:"image,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type CartHistory struct {
	Carts []Cart `json:"carts"`
	Page  int32  `json:"page"`
	Limit int32  `json:"limit"`
	Total int64  `json:"total"`
}
