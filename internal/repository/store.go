package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	inErrors "github.com/evermart/cart/internal/errors"
)

// Store is the persistence port the cart service depends on. All finders
// exclude soft-deleted rows; "active" finders additionally filter to
// status=ACTIVE, and UpdateCartStatus only transitions carts still ACTIVE.
// WithinTx runs fn against a store bound to one transaction: fn returning an
// error rolls everything back.
type Store interface {
	InsertCart(c context.Context, arg InsertCartParams) (Cart, error)
	FindActiveCartByOwner(c context.Context, ownerId uuid.UUID) (Cart, error)
	FindCartByIdAndOwner(c context.Context, id uuid.UUID, ownerId uuid.UUID) (Cart, error)
	FindActiveCartBySession(c context.Context, sessionId string) (Cart, error)
	FindCartsByOwner(c context.Context, ownerId uuid.UUID, limit int32, offset int64) ([]Cart, error)
	CountCartsByOwner(c context.Context, ownerId uuid.UUID) (int64, error)
	UpdateCart(c context.Context, arg UpdateCartParams) (Cart, error)
	UpdateCartTotals(c context.Context, arg UpdateCartTotalsParams) (Cart, error)
	UpdateCartStatus(c context.Context, id uuid.UUID, status CartStatus) error
	SoftDeleteCart(c context.Context, id uuid.UUID) error
	FindCartItems(c context.Context, cartId uuid.UUID) ([]CartItem, error)
	FindCartItemById(c context.Context, cartId uuid.UUID, itemId uuid.UUID) (CartItem, error)
	UpsertCartItem(c context.Context, arg UpsertCartItemParams) (CartItem, error)
	UpdateCartItem(c context.Context, arg UpdateCartItemParams) (CartItem, error)
	SoftDeleteCartItem(c context.Context, cartId uuid.UUID, itemId uuid.UUID) error
	SoftDeleteCartItems(c context.Context, cartId uuid.UUID) error
	WithinTx(c context.Context, fn func(Store) error) error
}

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type CartStore struct {
	db   DBTX
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{db: pool, pool: pool}
}

func (s *CartStore) WithinTx(c context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already transaction-bound, join it
		return fn(s)
	}
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed beginning transaction with error=%w", err)
	}
	defer func() {
		_ = tx.Rollback(c)
	}()
	if err := fn(&CartStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(c); err != nil {
		return fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return nil
}

const cartColumns = `id, owner_id, session_id, status, currency, subtotal, tax, shipping, discount, total, applied_coupons, shipping_address, expires_at, metadata, created_at, updated_at, deleted_at`

const itemColumns = `id, cart_id, product_id, product_name, sku, quantity, unit_price, total_price, image, attributes, created_at, updated_at, deleted_at`

const insertCart = `
INSERT INTO carts (id, owner_id, session_id, status, currency, subtotal, tax, shipping, discount, total, applied_coupons, expires_at, metadata)
VALUES ($1, $2, $3, 'ACTIVE', $4, 0, 0, 0, 0, 0, '{}', $5, COALESCE($6, '{}'::jsonb))
ON CONFLICT (owner_id) WHERE status = 'ACTIVE' AND deleted_at IS NULL DO NOTHING
RETURNING ` + cartColumns

// InsertCart creates an ACTIVE cart. The partial unique index on owner_id
// makes this idempotent for owner carts: when a concurrent insert wins, the
// existing active cart is returned instead.
func (s *CartStore) InsertCart(c context.Context, arg InsertCartParams) (Cart, error) {
	row := s.db.QueryRow(
		c,
		insertCart,
		arg.ID,
		arg.OwnerID,
		arg.SessionID,
		arg.Currency,
		arg.ExpiresAt,
		arg.Metadata,
	)
	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) && arg.OwnerID != nil {
			return s.FindActiveCartByOwner(c, *arg.OwnerID)
		}
		return Cart{}, err
	}
	return cart, nil
}

const findActiveCartByOwner = `
SELECT ` + cartColumns + `
FROM carts
WHERE owner_id = $1 AND status = 'ACTIVE' AND deleted_at IS NULL`

func (s *CartStore) FindActiveCartByOwner(c context.Context, ownerId uuid.UUID) (Cart, error) {
	cart, err := scanCart(s.db.QueryRow(c, findActiveCartByOwner, ownerId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, inErrors.ErrCartNotFound
		}
		return Cart{}, err
	}
	return cart, nil
}

const findCartByIdAndOwner = `
SELECT ` + cartColumns + `
FROM carts
WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

func (s *CartStore) FindCartByIdAndOwner(
	c context.Context,
	id uuid.UUID,
	ownerId uuid.UUID,
) (Cart, error) {
	cart, err := scanCart(s.db.QueryRow(c, findCartByIdAndOwner, id, ownerId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, inErrors.ErrCartNotFound
		}
		return Cart{}, err
	}
	return cart, nil
}

const findActiveCartBySession = `
SELECT ` + cartColumns + `
FROM carts
WHERE session_id = $1 AND status = 'ACTIVE' AND deleted_at IS NULL`

func (s *CartStore) FindActiveCartBySession(c context.Context, sessionId string) (Cart, error) {
	cart, err := scanCart(s.db.QueryRow(c, findActiveCartBySession, sessionId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, inErrors.ErrSessionCartNotFound
		}
		return Cart{}, err
	}
	return cart, nil
}

const findCartsByOwner = `
SELECT ` + cartColumns + `
FROM carts
WHERE owner_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

func (s *CartStore) FindCartsByOwner(
	c context.Context,
	ownerId uuid.UUID,
	limit int32,
	offset int64,
) ([]Cart, error) {
	rows, err := s.db.Query(c, findCartsByOwner, ownerId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	carts := []Cart{}
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, cart)
	}
	return carts, rows.Err()
}

const countCartsByOwner = `
SELECT count(*) FROM carts WHERE owner_id = $1 AND deleted_at IS NULL`

func (s *CartStore) CountCartsByOwner(c context.Context, ownerId uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(c, countCartsByOwner, ownerId).Scan(&count)
	return count, err
}

const updateCart = `
UPDATE carts
SET currency         = COALESCE($2, currency),
    applied_coupons  = COALESCE($3, applied_coupons),
    shipping_address = COALESCE($4, shipping_address),
    metadata         = COALESCE($5, metadata),
    updated_at       = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + cartColumns

func (s *CartStore) UpdateCart(c context.Context, arg UpdateCartParams) (Cart, error) {
	row := s.db.QueryRow(
		c,
		updateCart,
		arg.ID,
		arg.Currency,
		arg.AppliedCoupons,
		arg.ShippingAddress,
		arg.Metadata,
	)
	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, inErrors.ErrCartNotFound
		}
		return Cart{}, err
	}
	return cart, nil
}

const updateCartTotals = `
UPDATE carts
SET subtotal = $2, tax = $3, shipping = $4, discount = $5, total = $6, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + cartColumns

func (s *CartStore) UpdateCartTotals(c context.Context, arg UpdateCartTotalsParams) (Cart, error) {
	row := s.db.QueryRow(
		c,
		updateCartTotals,
		arg.ID,
		NumericFromDecimal(arg.Subtotal),
		NumericFromDecimal(arg.Tax),
		NumericFromDecimal(arg.Shipping),
		NumericFromDecimal(arg.Discount),
		NumericFromDecimal(arg.Total),
	)
	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, inErrors.ErrCartNotFound
		}
		return Cart{}, err
	}
	return cart, nil
}

const updateCartStatus = `
UPDATE carts SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'ACTIVE' AND deleted_at IS NULL`

// UpdateCartStatus moves an ACTIVE cart into a terminal status. A cart that
// already left ACTIVE matches no row and reports ErrCartNotFound, so two
// transactions racing to close the same cart cannot both succeed.
func (s *CartStore) UpdateCartStatus(c context.Context, id uuid.UUID, status CartStatus) error {
	tag, err := s.db.Exec(c, updateCartStatus, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inErrors.ErrCartNotFound
	}
	return nil
}

const softDeleteCart = `
UPDATE carts SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

func (s *CartStore) SoftDeleteCart(c context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(c, softDeleteCart, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inErrors.ErrCartNotFound
	}
	return nil
}

const findCartItems = `
SELECT ` + itemColumns + `
FROM cart_items
WHERE cart_id = $1 AND deleted_at IS NULL
ORDER BY created_at, id`

func (s *CartStore) FindCartItems(c context.Context, cartId uuid.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(c, findCartItems, cartId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const findCartItemById = `
SELECT ` + itemColumns + `
FROM cart_items
WHERE id = $2 AND cart_id = $1 AND deleted_at IS NULL`

func (s *CartStore) FindCartItemById(
	c context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
) (CartItem, error) {
	item, err := scanCartItem(s.db.QueryRow(c, findCartItemById, cartId, itemId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartItem{}, inErrors.ErrCartItemNotFound
		}
		return CartItem{}, err
	}
	return item, nil
}

const upsertCartItem = `
INSERT INTO cart_items (id, cart_id, product_id, product_name, sku, quantity, unit_price, total_price, image, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, '{}'::jsonb))
ON CONFLICT (cart_id, product_id) WHERE deleted_at IS NULL
DO UPDATE SET
    quantity    = cart_items.quantity + EXCLUDED.quantity,
    total_price = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity),
    updated_at  = now()
RETURNING ` + itemColumns

// UpsertCartItem inserts a new line or, when a live line for the same product
// already exists, increments its quantity keeping the existing unit price.
// The partial unique index makes the check-then-act race safe.
func (s *CartStore) UpsertCartItem(c context.Context, arg UpsertCartItemParams) (CartItem, error) {
	totalPrice := arg.UnitPrice.Mul(decimal.NewFromInt32(arg.Quantity))
	row := s.db.QueryRow(
		c,
		upsertCartItem,
		arg.ID,
		arg.CartID,
		arg.ProductID,
		arg.ProductName,
		arg.Sku,
		arg.Quantity,
		NumericFromDecimal(arg.UnitPrice),
		NumericFromDecimal(totalPrice),
		arg.Image,
		arg.Attributes,
	)
	return scanCartItem(row)
}

const updateCartItem = `
UPDATE cart_items
SET product_name = COALESCE($3, product_name),
    quantity     = COALESCE($4, quantity),
    unit_price   = COALESCE($5, unit_price),
    total_price  = COALESCE($5, unit_price) * COALESCE($4, quantity),
    image        = COALESCE($6, image),
    attributes   = COALESCE($7, attributes),
    updated_at   = now()
WHERE id = $1 AND cart_id = $2 AND deleted_at IS NULL
RETURNING ` + itemColumns

func (s *CartStore) UpdateCartItem(c context.Context, arg UpdateCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(
		c,
		updateCartItem,
		arg.ID,
		arg.CartID,
		arg.ProductName,
		arg.Quantity,
		NumericFromDecimalPtr(arg.UnitPrice),
		arg.Image,
		arg.Attributes,
	)
	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartItem{}, inErrors.ErrCartItemNotFound
		}
		return CartItem{}, err
	}
	return item, nil
}

const softDeleteCartItem = `
UPDATE cart_items SET deleted_at = now(), updated_at = now()
WHERE id = $2 AND cart_id = $1 AND deleted_at IS NULL`

func (s *CartStore) SoftDeleteCartItem(
	c context.Context,
	cartId uuid.UUID,
	itemId uuid.UUID,
) error {
	tag, err := s.db.Exec(c, softDeleteCartItem, cartId, itemId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inErrors.ErrCartItemNotFound
	}
	return nil
}

const softDeleteCartItems = `
UPDATE cart_items SET deleted_at = now(), updated_at = now()
WHERE cart_id = $1 AND deleted_at IS NULL`

func (s *CartStore) SoftDeleteCartItems(c context.Context, cartId uuid.UUID) error {
	_, err := s.db.Exec(c, softDeleteCartItems, cartId)
	return err
}

func scanCart(row pgx.Row) (Cart, error) {
	var cart Cart
	var subtotal, tax, shipping, discount, total pgtype.Numeric
	err := row.Scan(
		&cart.ID,
		&cart.OwnerID,
		&cart.SessionID,
		&cart.Status,
		&cart.Currency,
		&subtotal,
		&tax,
		&shipping,
		&discount,
		&total,
		&cart.AppliedCoupons,
		&cart.ShippingAddress,
		&cart.ExpiresAt,
		&cart.Metadata,
		&cart.CreatedAt,
		&cart.UpdatedAt,
		&cart.DeletedAt,
	)
	if err != nil {
		return Cart{}, err
	}
	cart.Subtotal = DecimalFromNumeric(subtotal)
	cart.Tax = DecimalFromNumeric(tax)
	cart.Shipping = DecimalFromNumeric(shipping)
	cart.Discount = DecimalFromNumeric(discount)
	cart.Total = DecimalFromNumeric(total)
	return cart, nil
}

func scanCartItem(row pgx.Row) (CartItem, error) {
	var item CartItem
	var unitPrice, totalPrice pgtype.Numeric
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.ProductName,
		&item.Sku,
		&item.Quantity,
		&unitPrice,
		&totalPrice,
		&item.Image,
		&item.Attributes,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.DeletedAt,
	)
	if err != nil {
		return CartItem{}, err
	}
	item.UnitPrice = DecimalFromNumeric(unitPrice)
	item.TotalPrice = DecimalFromNumeric(totalPrice)
	return item, nil
}
