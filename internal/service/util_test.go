package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evermart/cart/internal/config"
	inErrors "github.com/evermart/cart/internal/errors"
	"github.com/evermart/cart/internal/repository"
)

var errCacheMiss = errors.New("cache: key not found")

func keyForOwner(ownerId uuid.UUID) string {
	return fmt.Sprintf(cacheKeyCartByOwner, ownerId.String())
}

// fakeStore is an in-memory Store honoring the same semantics as the
// postgres implementation: soft deletes, idempotent active-cart insert and
// upsert increment per (cart, product).
type fakeStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]repository.Cart
	items map[uuid.UUID]repository.CartItem
	seq   int
	base  time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts: map[uuid.UUID]repository.Cart{},
		items: map[uuid.UUID]repository.CartItem{},
		base:  time.Now().Add(-time.Hour),
	}
}

func (f *fakeStore) nextTime() time.Time {
	f.seq++
	return f.base.Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeStore) InsertCart(
	_ context.Context,
	arg repository.InsertCartParams,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cart := range f.carts {
		if cart.Status != repository.CartStatusActive || cart.DeletedAt != nil {
			continue
		}
		if arg.OwnerID != nil && cart.OwnerID != nil && *cart.OwnerID == *arg.OwnerID {
			return cart, nil
		}
		if arg.SessionID != nil && cart.SessionID != nil && *cart.SessionID == *arg.SessionID {
			return cart, nil
		}
	}
	now := f.nextTime()
	cart := repository.Cart{
		ID:        arg.ID,
		OwnerID:   arg.OwnerID,
		SessionID: arg.SessionID,
		Status:    repository.CartStatusActive,
		Currency:  arg.Currency,
		Subtotal:  decimal.Zero,
		Tax:       decimal.Zero,
		Shipping:  decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
		ExpiresAt: arg.ExpiresAt,
		Metadata:  arg.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.carts[cart.ID] = cart
	return cart, nil
}

func (f *fakeStore) FindActiveCartByOwner(
	_ context.Context,
	ownerId uuid.UUID,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cart := range f.carts {
		if cart.OwnerID != nil && *cart.OwnerID == ownerId &&
			cart.Status == repository.CartStatusActive && cart.DeletedAt == nil {
			return cart, nil
		}
	}
	return repository.Cart{}, inErrors.ErrCartNotFound
}

func (f *fakeStore) FindCartByIdAndOwner(
	_ context.Context,
	id uuid.UUID,
	ownerId uuid.UUID,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[id]
	if !ok || cart.DeletedAt != nil || cart.OwnerID == nil || *cart.OwnerID != ownerId {
		return repository.Cart{}, inErrors.ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeStore) FindActiveCartBySession(
	_ context.Context,
	sessionId string,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cart := range f.carts {
		if cart.SessionID != nil && *cart.SessionID == sessionId &&
			cart.Status == repository.CartStatusActive && cart.DeletedAt == nil {
			return cart, nil
		}
	}
	return repository.Cart{}, inErrors.ErrSessionCartNotFound
}

func (f *fakeStore) FindCartsByOwner(
	_ context.Context,
	ownerId uuid.UUID,
	limit int32,
	offset int64,
) ([]repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	carts := []repository.Cart{}
	for _, cart := range f.carts {
		if cart.OwnerID != nil && *cart.OwnerID == ownerId && cart.DeletedAt == nil {
			carts = append(carts, cart)
		}
	}
	sort.Slice(carts, func(i, j int) bool {
		return carts[i].CreatedAt.After(carts[j].CreatedAt)
	})
	if offset >= int64(len(carts)) {
		return []repository.Cart{}, nil
	}
	carts = carts[offset:]
	if int(limit) < len(carts) {
		carts = carts[:limit]
	}
	return carts, nil
}

func (f *fakeStore) CountCartsByOwner(_ context.Context, ownerId uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := int64(0)
	for _, cart := range f.carts {
		if cart.OwnerID != nil && *cart.OwnerID == ownerId && cart.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateCart(
	_ context.Context,
	arg repository.UpdateCartParams,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[arg.ID]
	if !ok || cart.DeletedAt != nil {
		return repository.Cart{}, inErrors.ErrCartNotFound
	}
	if arg.Currency != nil {
		cart.Currency = *arg.Currency
	}
	if arg.AppliedCoupons != nil {
		cart.AppliedCoupons = arg.AppliedCoupons
	}
	if arg.ShippingAddress != nil {
		cart.ShippingAddress = arg.ShippingAddress
	}
	if arg.Metadata != nil {
		cart.Metadata = arg.Metadata
	}
	cart.UpdatedAt = f.nextTime()
	f.carts[arg.ID] = cart
	return cart, nil
}

func (f *fakeStore) UpdateCartTotals(
	_ context.Context,
	arg repository.UpdateCartTotalsParams,
) (repository.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[arg.ID]
	if !ok || cart.DeletedAt != nil {
		return repository.Cart{}, inErrors.ErrCartNotFound
	}
	cart.Subtotal = arg.Subtotal
	cart.Tax = arg.Tax
	cart.Shipping = arg.Shipping
	cart.Discount = arg.Discount
	cart.Total = arg.Total
	cart.UpdatedAt = f.nextTime()
	f.carts[arg.ID] = cart
	return cart, nil
}

func (f *fakeStore) UpdateCartStatus(
	_ context.Context,
	id uuid.UUID,
	status repository.CartStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[id]
	if !ok || cart.DeletedAt != nil || cart.Status != repository.CartStatusActive {
		return inErrors.ErrCartNotFound
	}
	cart.Status = status
	cart.UpdatedAt = f.nextTime()
	f.carts[id] = cart
	return nil
}

func (f *fakeStore) SoftDeleteCart(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[id]
	if !ok || cart.DeletedAt != nil {
		return inErrors.ErrCartNotFound
	}
	now := f.nextTime()
	cart.DeletedAt = &now
	cart.UpdatedAt = now
	f.carts[id] = cart
	return nil
}

func (f *fakeStore) FindCartItems(
	_ context.Context,
	cartId uuid.UUID,
) ([]repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []repository.CartItem{}
	for _, item := range f.items {
		if item.CartID == cartId && item.DeletedAt == nil {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (f *fakeStore) FindCartItemById(
	_ context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
) (repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemId]
	if !ok || item.CartID != cartId || item.DeletedAt != nil {
		return repository.CartItem{}, inErrors.ErrCartItemNotFound
	}
	return item, nil
}

func (f *fakeStore) UpsertCartItem(
	_ context.Context,
	arg repository.UpsertCartItemParams,
) (repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, item := range f.items {
		if item.CartID == arg.CartID && item.ProductID == arg.ProductID && item.DeletedAt == nil {
			item.Quantity += arg.Quantity
			item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
			item.UpdatedAt = f.nextTime()
			f.items[id] = item
			return item, nil
		}
	}
	now := f.nextTime()
	item := repository.CartItem{
		ID:          arg.ID,
		CartID:      arg.CartID,
		ProductID:   arg.ProductID,
		ProductName: arg.ProductName,
		Sku:         arg.Sku,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		TotalPrice:  arg.UnitPrice.Mul(decimal.NewFromInt32(arg.Quantity)),
		Image:       arg.Image,
		Attributes:  arg.Attributes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateCartItem(
	_ context.Context,
	arg repository.UpdateCartItemParams,
) (repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[arg.ID]
	if !ok || item.CartID != arg.CartID || item.DeletedAt != nil {
		return repository.CartItem{}, inErrors.ErrCartItemNotFound
	}
	if arg.ProductName != nil {
		item.ProductName = *arg.ProductName
	}
	if arg.Quantity != nil {
		item.Quantity = *arg.Quantity
	}
	if arg.UnitPrice != nil {
		item.UnitPrice = *arg.UnitPrice
	}
	if arg.Image != nil {
		item.Image = arg.Image
	}
	if arg.Attributes != nil {
		item.Attributes = arg.Attributes
	}
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
	item.UpdatedAt = f.nextTime()
	f.items[arg.ID] = item
	return item, nil
}

func (f *fakeStore) SoftDeleteCartItem(
	_ context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemId]
	if !ok || item.CartID != cartId || item.DeletedAt != nil {
		return inErrors.ErrCartItemNotFound
	}
	now := f.nextTime()
	item.DeletedAt = &now
	item.UpdatedAt = now
	f.items[itemId] = item
	return nil
}

func (f *fakeStore) SoftDeleteCartItems(_ context.Context, cartId uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.nextTime()
	for id, item := range f.items {
		if item.CartID == cartId && item.DeletedAt == nil {
			deleted := now
			item.DeletedAt = &deleted
			item.UpdatedAt = now
			f.items[id] = item
		}
	}
	return nil
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(f)
}

// fakeCache is a map-backed Cache recording every write and delete.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	sets    int
	dels    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	if !ok {
		return "", errCacheMiss
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	f.sets++
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
	}
	f.dels++
	return nil
}

// failingCache errors on every operation to verify the cache never sits on
// the critical path.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, error) {
	return "", errors.New("cache: connection refused")
}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache: connection refused")
}

func (failingCache) Del(context.Context, ...string) error {
	return errors.New("cache: connection refused")
}

func testPricing() config.Pricing {
	return config.Pricing{
		TaxRate:               0.18,
		FreeShippingThreshold: 1000,
		FlatShippingFee:       100,
		DiscountThreshold:     2000,
		DiscountRate:          0.10,
	}
}

func newTestService(cache Cache) (CartService, *fakeStore) {
	store := newFakeStore()
	return NewCartService(store, cache, NewTotalsCalculator(testPricing())), store
}

func seedSessionCart(store *fakeStore, sessionId string) repository.Cart {
	cart, _ := store.InsertCart(context.Background(), repository.InsertCartParams{
		ID:        uuid.New(),
		SessionID: &sessionId,
		Currency:  "INR",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	return cart
}
