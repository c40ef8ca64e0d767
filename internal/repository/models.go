package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartStatusActive  CartStatus = "ACTIVE"
	CartStatusMerged  CartStatus = "MERGED"
	CartStatusExpired CartStatus = "EXPIRED"
)

// Cart is the durable aggregate root. Exactly one of OwnerID and SessionID is
// set: owner carts belong to an authenticated user, session carts to an
// anonymous guest.
type Cart struct {
	ID              uuid.UUID
	OwnerID         *uuid.UUID
	SessionID       *string
	Status          CartStatus
	Currency        string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	AppliedCoupons  []string
	ShippingAddress []byte
	ExpiresAt       time.Time
	Metadata        []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

type CartItem struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Sku         string
	Quantity    int32
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	Image       *string
	Attributes  []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

type InsertCartParams struct {
	ID        uuid.UUID
	OwnerID   *uuid.UUID
	SessionID *string
	Currency  string
	ExpiresAt time.Time
	Metadata  []byte
}

type UpdateCartParams struct {
	ID              uuid.UUID
	Currency        *string
	AppliedCoupons  []string
	ShippingAddress []byte
	Metadata        []byte
}

type UpdateCartTotalsParams struct {
	ID       uuid.UUID
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type UpsertCartItemParams struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Sku         string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Image       *string
	Attributes  []byte
}

type UpdateCartItemParams struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductName *string
	Quantity    *int32
	UnitPrice   *decimal.Decimal
	Image       *string
	Attributes  []byte
}
