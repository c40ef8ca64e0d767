package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"

	inErrors "github.com/evermart/cart/internal/errors"
)

func setupStore(t *testing.T, c context.Context) *CartStore {
	t.Helper()

	pgContainer, err := postgres.Run(
		c,
		"postgres:16.6-alpine3.21",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(
			filepath.Join("..", "..", "migrations", "000001_create_table_carts.up.sql"),
			filepath.Join("..", "..", "migrations", "000002_create_table_cart_items.up.sql"),
		),
	)
	if err != nil {
		t.Fatalf("failed running postgres container with error: %s", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(c, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed getting postgres connection string with error: %s", err)
	}

	pgConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed parsing pgx config with error: %s", err)
	}
	pgConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(c, pgConfig)
	if err != nil {
		t.Fatalf("failed creating pool with error: %s", err)
	}
	t.Cleanup(pool.Close)

	if err = pool.Ping(c); err != nil {
		t.Fatalf("failed pinging postgres with error: %s", err)
	}

	return NewCartStore(pool)
}

func TestCartStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	c := context.Background()
	store := setupStore(t, c)
	ownerId := uuid.New()

	t.Run("insert cart is idempotent per owner", func(t *testing.T) {
		first, err := store.InsertCart(c, InsertCartParams{
			ID:        uuid.New(),
			OwnerID:   &ownerId,
			Currency:  "INR",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, CartStatusActive, first.Status)
		assert.True(t, first.Subtotal.Equal(decimal.Zero))

		second, err := store.InsertCart(c, InsertCartParams{
			ID:        uuid.New(),
			OwnerID:   &ownerId,
			Currency:  "USD",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "conflicting insert must return the existing cart")
		assert.Equal(t, "INR", second.Currency)
	})

	var cartId uuid.UUID
	t.Run("find by id and owner enforces ownership", func(t *testing.T) {
		cart, err := store.FindActiveCartByOwner(c, ownerId)
		require.NoError(t, err)
		cartId = cart.ID

		_, err = store.FindCartByIdAndOwner(c, cartId, ownerId)
		require.NoError(t, err)

		_, err = store.FindCartByIdAndOwner(c, cartId, uuid.New())
		assert.ErrorIs(t, err, inErrors.ErrCartNotFound)
	})

	productId := uuid.New()
	t.Run("upsert increments existing line keeping unit price", func(t *testing.T) {
		first, err := store.UpsertCartItem(c, UpsertCartItemParams{
			ID:          uuid.New(),
			CartID:      cartId,
			ProductID:   productId,
			ProductName: "cable",
			Sku:         "CB-1",
			Quantity:    2,
			UnitPrice:   decimal.NewFromInt(100),
		})
		require.NoError(t, err)
		assert.Equal(t, int32(2), first.Quantity)
		assert.True(t, first.TotalPrice.Equal(decimal.NewFromInt(200)))

		second, err := store.UpsertCartItem(c, UpsertCartItemParams{
			ID:          uuid.New(),
			CartID:      cartId,
			ProductID:   productId,
			ProductName: "cable",
			Sku:         "CB-1",
			Quantity:    3,
			UnitPrice:   decimal.NewFromInt(999),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "same product must reuse the line")
		assert.Equal(t, int32(5), second.Quantity)
		assert.True(t, second.UnitPrice.Equal(decimal.NewFromInt(100)),
			"existing unit price must win, got %s", second.UnitPrice)
		assert.True(t, second.TotalPrice.Equal(decimal.NewFromInt(500)))
	})

	t.Run("update item patches and keeps line total consistent", func(t *testing.T) {
		items, err := store.FindCartItems(c, cartId)
		require.NoError(t, err)
		require.Len(t, items, 1)

		quantity := int32(4)
		updated, err := store.UpdateCartItem(c, UpdateCartItemParams{
			ID:       items[0].ID,
			CartID:   cartId,
			Quantity: &quantity,
		})
		require.NoError(t, err)
		assert.Equal(t, int32(4), updated.Quantity)
		assert.True(t, updated.UnitPrice.Equal(decimal.NewFromInt(100)))
		assert.True(t, updated.TotalPrice.Equal(decimal.NewFromInt(400)))
	})

	t.Run("soft deleted item never participates again", func(t *testing.T) {
		items, err := store.FindCartItems(c, cartId)
		require.NoError(t, err)
		require.Len(t, items, 1)

		require.NoError(t, store.SoftDeleteCartItem(c, cartId, items[0].ID))
		assert.ErrorIs(t, store.SoftDeleteCartItem(c, cartId, items[0].ID),
			inErrors.ErrCartItemNotFound)

		remaining, err := store.FindCartItems(c, cartId)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		// a fresh upsert for the same product starts a new line
		fresh, err := store.UpsertCartItem(c, UpsertCartItemParams{
			ID:          uuid.New(),
			CartID:      cartId,
			ProductID:   productId,
			ProductName: "cable",
			Sku:         "CB-1",
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(120),
		})
		require.NoError(t, err)
		assert.Equal(t, int32(1), fresh.Quantity)
		assert.True(t, fresh.UnitPrice.Equal(decimal.NewFromInt(120)))
	})

	t.Run("totals update round trips decimals", func(t *testing.T) {
		cart, err := store.UpdateCartTotals(c, UpdateCartTotalsParams{
			ID:       cartId,
			Subtotal: decimal.RequireFromString("120"),
			Tax:      decimal.RequireFromString("21.60"),
			Shipping: decimal.RequireFromString("100"),
			Discount: decimal.Zero,
			Total:    decimal.RequireFromString("241.60"),
		})
		require.NoError(t, err)
		assert.True(t, cart.Tax.Equal(decimal.RequireFromString("21.60")), "tax=%s", cart.Tax)
		assert.True(t, cart.Total.Equal(decimal.RequireFromString("241.60")))
	})

	t.Run("session cart lifecycle", func(t *testing.T) {
		sessionId := uuid.NewString()
		cart, err := store.InsertCart(c, InsertCartParams{
			ID:        uuid.New(),
			SessionID: &sessionId,
			Currency:  "INR",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)

		found, err := store.FindActiveCartBySession(c, sessionId)
		require.NoError(t, err)
		assert.Equal(t, cart.ID, found.ID)

		require.NoError(t, store.UpdateCartStatus(c, cart.ID, CartStatusMerged))
		_, err = store.FindActiveCartBySession(c, sessionId)
		assert.ErrorIs(t, err, inErrors.ErrSessionCartNotFound,
			"merged session cart must not be findable")

		assert.ErrorIs(t, store.UpdateCartStatus(c, cart.ID, CartStatusMerged),
			inErrors.ErrCartNotFound,
			"only an ACTIVE cart may transition, a second close must not apply")
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := store.WithinTx(c, func(tx Store) error {
			_, err := tx.UpsertCartItem(c, UpsertCartItemParams{
				ID:          uuid.New(),
				CartID:      cartId,
				ProductID:   uuid.New(),
				ProductName: "ghost",
				Sku:         "GH-1",
				Quantity:    1,
				UnitPrice:   decimal.NewFromInt(1),
			})
			if err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		items, err := store.FindCartItems(c, cartId)
		require.NoError(t, err)
		for _, item := range items {
			assert.NotEqual(t, "ghost", item.ProductName, "rolled back write must not persist")
		}
	})

	t.Run("soft delete cart hides it everywhere", func(t *testing.T) {
		require.NoError(t, store.SoftDeleteCart(c, cartId))
		_, err := store.FindCartByIdAndOwner(c, cartId, ownerId)
		assert.ErrorIs(t, err, inErrors.ErrCartNotFound)
		_, err = store.FindActiveCartByOwner(c, ownerId)
		assert.ErrorIs(t, err, inErrors.ErrCartNotFound)

		count, err := store.CountCartsByOwner(c, ownerId)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
