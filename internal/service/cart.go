package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evermart/cart/internal/log"
	"github.com/evermart/cart/internal/otel"
	"github.com/evermart/cart/internal/repository"
	"github.com/evermart/cart/pkg/request"
	"github.com/evermart/cart/pkg/response"
)

const (
	cacheKeyCartByOwner = "carts:owner:%s"
	cacheTTL            = time.Hour
	cartLifetime        = 30 * 24 * time.Hour
	defaultCurrency     = "INR"

	historyDefaultLimit = 20
	historyMaxLimit     = 100
)

// Cache is the projection cache port. infra.RedisCache implements it; tests
// swap in an in-memory fake.
type Cache interface {
	Get(c context.Context, key string) (string, error)
	Set(c context.Context, key string, value string, ttl time.Duration) error
	Del(c context.Context, keys ...string) error
}

type CartService struct {
	store   repository.Store
	cache   Cache
	pricing TotalsCalculator
}

func NewCartService(store repository.Store, cache Cache, pricing TotalsCalculator) CartService {
	return CartService{store: store, cache: cache, pricing: pricing}
}

// CreateCart returns the owner's active cart, creating it when none exists.
// Calling it twice never yields two active carts.
func (s CartService) CreateCart(
	c context.Context,
	ownerId uuid.UUID,
	param request.CreateCart,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService CreateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CreateCart").
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	currency := param.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	var metadata []byte
	if len(param.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(param.Metadata)
		if err != nil {
			err = fmt.Errorf("failed marshaling metadata with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
	}

	logger = logger.With().Str(log.KeyProcess, "inserting cart to database").Logger()
	logger.Info().Msg("inserting cart to database")
	cart, err := s.store.InsertCart(c, repository.InsertCartParams{
		ID:        uuid.New(),
		OwnerID:   &ownerId,
		Currency:  currency,
		ExpiresAt: time.Now().Add(cartLifetime),
		Metadata:  metadata,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger = logger.With().Str(log.KeyCartID, cart.ID.String()).Logger()
	logger.Info().Msg("inserted cart to database")

	logger = logger.With().Str(log.KeyProcess, "finding cart items").Logger()
	logger.Info().Msg("finding cart items")
	items, err := s.store.FindCartItems(c, cart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart items")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// GetCart is the cache-aside read path: cache hit returns the cached
// projection, miss falls through to the database and fills the cache.
func (s CartService) GetCart(c context.Context, ownerId uuid.UUID) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService GetCart")
	defer span.End()

	cacheKey := fmt.Sprintf(cacheKeyCartByOwner, ownerId.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCart").
		Str(log.KeyOwnerID, ownerId.String()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Info().Msg("finding cart in cache")
	cached, err := s.cache.Get(c, cacheKey)
	if err == nil {
		cart := response.Cart{}
		if err := json.Unmarshal([]byte(cached), &cart); err == nil {
			logger.Info().Msg("found cart in cache")
			return cart, nil
		}
		logger.Info().Msg("cached cart is unreadable, falling through to database")
	} else {
		logger.Info().Err(err).Msg("cart not in cache, falling through to database")
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart in database").Logger()
	logger.Info().Msg("finding cart in database")
	cart, err := s.store.FindActiveCartByOwner(c, ownerId)
	if err != nil {
		err = fmt.Errorf("failed finding cart by ownerId=%s with error=%w", ownerId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	items, err := s.store.FindCartItems(c, cart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger = logger.With().Str(log.KeyCartID, cart.ID.String()).Logger()
	logger.Info().Msg("found cart in database")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// GetCartHistory lists the owner's carts newest first, any status, excluding
// soft-deleted ones. Page starts at 1, limit is clamped to [1, 100].
func (s CartService) GetCartHistory(
	c context.Context,
	ownerId uuid.UUID,
	page int32,
	limit int32,
) (response.CartHistory, error) {
	c, span := otel.Tracer.Start(c, "CartService GetCartHistory")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}
	// int64 so a page near MaxInt32 cannot overflow into a negative offset
	offset := (int64(page) - 1) * int64(limit)

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCartHistory").
		Str(log.KeyOwnerID, ownerId.String()).
		Int32("page", page).
		Int32("limit", limit).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding carts in database").Logger()
	logger.Info().Msg("finding carts in database")
	carts, err := s.store.FindCartsByOwner(c, ownerId, limit, offset)
	if err != nil {
		err = fmt.Errorf("failed finding carts by ownerId=%s with error=%w", ownerId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartHistory{}, err
	}
	total, err := s.store.CountCartsByOwner(c, ownerId)
	if err != nil {
		err = fmt.Errorf("failed counting carts by ownerId=%s with error=%w", ownerId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartHistory{}, err
	}
	logger.Info().Msgf("found %d of %d carts", len(carts), total)

	history := response.CartHistory{
		Carts: make([]response.Cart, len(carts)),
		Page:  page,
		Limit: limit,
		Total: total,
	}
	for i, cart := range carts {
		items, err := s.store.FindCartItems(c, cart.ID)
		if err != nil {
			err = fmt.Errorf("failed finding cart items with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CartHistory{}, err
		}
		history.Carts[i], err = cart.Response(items)
		if err != nil {
			err = fmt.Errorf("failed mapping cart with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CartHistory{}, err
		}
	}
	return history, nil
}

// UpdateCart patches cart-level fields only. Nil request fields keep the
// stored values; items and totals are untouched.
func (s CartService) UpdateCart(
	c context.Context,
	cartId uuid.UUID,
	ownerId uuid.UUID,
	param request.UpdateCart,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateCart").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	var address []byte
	if param.ShippingAddress != nil {
		var err error
		address, err = json.Marshal(param.ShippingAddress)
		if err != nil {
			err = fmt.Errorf("failed marshaling shipping address with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
	}
	var metadata []byte
	if param.Metadata != nil {
		var err error
		metadata, err = json.Marshal(param.Metadata)
		if err != nil {
			err = fmt.Errorf("failed marshaling metadata with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
	}

	logger = logger.With().Str(log.KeyProcess, "updating cart in database").Logger()
	logger.Info().Msg("updating cart in database")
	cart, err := s.store.UpdateCart(c, repository.UpdateCartParams{
		ID:              cartId,
		Currency:        param.Currency,
		AppliedCoupons:  param.AppliedCoupons,
		ShippingAddress: address,
		Metadata:        metadata,
	})
	if err != nil {
		err = fmt.Errorf("failed updating cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("updated cart in database")

	items, err := s.store.FindCartItems(c, cart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// DeleteCart soft-deletes the cart and its items, then purges the cache so
// the next read cannot serve the deleted cart.
func (s CartService) DeleteCart(c context.Context, cartId uuid.UUID, ownerId uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "CartService DeleteCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService DeleteCart").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	cart, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId)
	if err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("found cart by id")

	logger = logger.With().Str(log.KeyProcess, "deleting cart from database").Logger()
	logger.Info().Msg("deleting cart from database")
	err = s.store.WithinTx(c, func(store repository.Store) error {
		if err := store.SoftDeleteCartItems(c, cartId); err != nil {
			return err
		}
		return store.SoftDeleteCart(c, cartId)
	})
	if err != nil {
		err = fmt.Errorf("failed deleting cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("deleted cart from database")

	s.purgeCartCache(c, cart)
	return nil
}

// AddCartItem adds a line to the cart. Adding a product that is already in
// the cart increments the existing line and keeps its unit price.
func (s CartService) AddCartItem(
	c context.Context,
	cartId uuid.UUID,
	ownerId uuid.UUID,
	param request.InsertCartItem,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddCartItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddCartItem").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Str(log.KeyProductID, param.ProductId.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	var attributes []byte
	if len(param.Attributes) > 0 {
		var err error
		attributes, err = json.Marshal(param.Attributes)
		if err != nil {
			err = fmt.Errorf("failed marshaling attributes with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
	}

	logger = logger.With().Str(log.KeyProcess, "inserting cart item to database").Logger()
	logger.Info().Msg("inserting cart item to database")
	var cart repository.Cart
	var items []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		_, err := store.UpsertCartItem(c, repository.UpsertCartItemParams{
			ID:          uuid.New(),
			CartID:      cartId,
			ProductID:   param.ProductId,
			ProductName: param.ProductName,
			Sku:         param.Sku,
			Quantity:    param.Quantity,
			UnitPrice:   param.UnitPrice,
			Image:       param.Image,
			Attributes:  attributes,
		})
		if err != nil {
			return err
		}
		cart, items, err = s.recomputeTotals(c, store, cartId)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed inserting cart item with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("inserted cart item to database")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// UpdateCartItem patches a line. Nil request fields keep the stored values;
// the line total and cart totals are recomputed from the result.
func (s CartService) UpdateCartItem(
	c context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
	ownerId uuid.UUID,
	param request.UpdateCartItem,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateCartItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateCartItem").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyCartItemID, itemId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	var attributes []byte
	if param.Attributes != nil {
		var err error
		attributes, err = json.Marshal(param.Attributes)
		if err != nil {
			err = fmt.Errorf("failed marshaling attributes with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
	}

	logger = logger.With().Str(log.KeyProcess, "updating cart item in database").Logger()
	logger.Info().Msg("updating cart item in database")
	var cart repository.Cart
	var items []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		_, err := store.UpdateCartItem(c, repository.UpdateCartItemParams{
			ID:          itemId,
			CartID:      cartId,
			ProductName: param.ProductName,
			Quantity:    param.Quantity,
			UnitPrice:   param.UnitPrice,
			Image:       param.Image,
			Attributes:  attributes,
		})
		if err != nil {
			return err
		}
		cart, items, err = s.recomputeTotals(c, store, cartId)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed updating cartItemId=%s with error=%w", itemId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("updated cart item in database")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// RemoveCartItem soft-deletes one line and recomputes the totals.
func (s CartService) RemoveCartItem(
	c context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
	ownerId uuid.UUID,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveCartItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveCartItem").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyCartItemID, itemId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	logger = logger.With().Str(log.KeyProcess, "deleting cart item from database").Logger()
	logger.Info().Msg("deleting cart item from database")
	var cart repository.Cart
	var items []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		if err := store.SoftDeleteCartItem(c, cartId, itemId); err != nil {
			return err
		}
		var err error
		cart, items, err = s.recomputeTotals(c, store, cartId)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed deleting cartItemId=%s with error=%w", itemId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("deleted cart item from database")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// ClearCart soft-deletes every line, leaving an empty cart with zero totals.
func (s CartService) ClearCart(
	c context.Context,
	cartId uuid.UUID,
	ownerId uuid.UUID,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClearCart").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	logger = logger.With().Str(log.KeyProcess, "clearing cart items").Logger()
	logger.Info().Msg("clearing cart items")
	var cart repository.Cart
	var items []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		if err := store.SoftDeleteCartItems(c, cartId); err != nil {
			return err
		}
		var err error
		cart, items, err = s.recomputeTotals(c, store, cartId)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed clearing cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("cleared cart items")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// CalculateCart recomputes and persists the totals from the live items, then
// returns the fresh projection. The result is identical on repeat calls with
// unchanged items.
func (s CartService) CalculateCart(
	c context.Context,
	cartId uuid.UUID,
	ownerId uuid.UUID,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService CalculateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CalculateCart").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart by id").Logger()
	logger.Info().Msg("finding cart by id")
	if _, err := s.store.FindCartByIdAndOwner(c, cartId, ownerId); err != nil {
		err = fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart by id")

	logger = logger.With().Str(log.KeyProcess, "recomputing cart totals").Logger()
	logger.Info().Msg("recomputing cart totals")
	var cart repository.Cart
	var items []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		var err error
		cart, items, err = s.recomputeTotals(c, store, cartId)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed recomputing totals for cartId=%s with error=%w", cartId.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger = logger.With().
		Str(log.KeySubtotal, cart.Subtotal.String()).
		Str(log.KeyTotal, cart.Total.String()).
		Logger()
	logger.Info().Msg("recomputed cart totals")

	cartResponse, err := cart.Response(items)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, cart, cartResponse)
	return cartResponse, nil
}

// recomputeTotals reads the live items, runs the calculator and persists the
// result. Callers inside WithinTx pass the transaction-bound store.
func (s CartService) recomputeTotals(
	c context.Context,
	store repository.Store,
	cartId uuid.UUID,
) (repository.Cart, []repository.CartItem, error) {
	items, err := store.FindCartItems(c, cartId)
	if err != nil {
		return repository.Cart{}, nil, err
	}
	totals := s.pricing.Calculate(items)
	cart, err := store.UpdateCartTotals(c, repository.UpdateCartTotalsParams{
		ID:       cartId,
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Shipping: totals.Shipping,
		Discount: totals.Discount,
		Total:    totals.Total,
	})
	if err != nil {
		return repository.Cart{}, nil, err
	}
	return cart, items, nil
}

// writeCartCache refreshes the owner's cached projection after a successful
// read or mutation. Cache failures are logged and swallowed: the database
// already holds the truth. Only the active owner cart is cached, the key is
// per owner.
func (s CartService) writeCartCache(
	c context.Context,
	cart repository.Cart,
	cartResponse response.Cart,
) {
	if cart.OwnerID == nil || cart.Status != repository.CartStatusActive {
		return
	}
	cacheKey := fmt.Sprintf(cacheKeyCartByOwner, cart.OwnerID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService writeCartCache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	body, err := json.Marshal(cartResponse)
	if err != nil {
		logger.Warn().Err(err).Msg("failed marshaling cart for cache")
		return
	}
	if err := s.cache.Set(c, cacheKey, string(body), cacheTTL); err != nil {
		logger.Warn().Err(err).Msg("failed inserting cart to cache")
		return
	}
	logger.Info().Msg("inserted cart to cache")
}

// purgeCartCache drops the owner's cached projection after a delete or merge
// so a stale cart cannot be served. Failures are logged and swallowed.
func (s CartService) purgeCartCache(c context.Context, cart repository.Cart) {
	if cart.OwnerID == nil {
		return
	}
	cacheKey := fmt.Sprintf(cacheKeyCartByOwner, cart.OwnerID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService purgeCartCache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	if err := s.cache.Del(c, cacheKey); err != nil {
		logger.Warn().Err(err).Msg("failed deleting cart from cache")
		return
	}
	logger.Info().Msg("deleted cart from cache")
}
