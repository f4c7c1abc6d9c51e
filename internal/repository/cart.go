package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the storage contract the cart service depends on. No method
// mutates more than one cart atomically; multi-cart flows (the sign-in merge)
// are sequenced by the service and must tolerate partial application.
type Querier interface {
	CreateCart(ctx context.Context, userID pgtype.Text) (Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error)
	GetCartByOwner(ctx context.Context, userID string) (Cart, error)
	DeleteCart(ctx context.Context, id pgtype.UUID) error
	ReassignCartOwner(ctx context.Context, arg ReassignCartOwnerParams) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartLineItem, error)
	CreateLineItem(ctx context.Context, arg CreateLineItemParams) (CartLineItem, error)
	UpdateLineItemQuantity(ctx context.Context, arg UpdateLineItemQuantityParams) error
	DeleteLineItem(ctx context.Context, id pgtype.UUID) error
}

var _ Querier = (*Queries)(nil)

const createCart = `
INSERT INTO carts (id, user_id)
VALUES (gen_random_uuid(), $1)
RETURNING id, user_id, created_at, updated_at
`

// CreateCart allocates a fresh cart. Pass an invalid (null) userID for an
// anonymous cart.
func (q *Queries) CreateCart(ctx context.Context, userID pgtype.Text) (Cart, error) {
	row := q.db.QueryRow(ctx, createCart, userID)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCartByID = `
SELECT id, user_id, created_at, updated_at
FROM carts
WHERE id = $1
`

func (q *Queries) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, getCartByID, id)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCartByOwner = `
SELECT id, user_id, created_at, updated_at
FROM carts
WHERE user_id = $1
`

// GetCartByOwner returns the single cart owned by userID. The partial unique
// index on carts.user_id guarantees at most one row.
func (q *Queries) GetCartByOwner(ctx context.Context, userID string) (Cart, error) {
	row := q.db.QueryRow(ctx, getCartByOwner, userID)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const deleteCart = `
DELETE FROM carts
WHERE id = $1
`

// DeleteCart removes a cart; line items go with it via ON DELETE CASCADE.
func (q *Queries) DeleteCart(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteCart, id)
	return err
}

type ReassignCartOwnerParams struct {
	ID     pgtype.UUID
	UserID string
}

const reassignCartOwner = `
UPDATE carts
SET user_id = $2, updated_at = now()
WHERE id = $1
`

// ReassignCartOwner attaches a user to a previously-anonymous cart.
func (q *Queries) ReassignCartOwner(ctx context.Context, arg ReassignCartOwnerParams) error {
	_, err := q.db.Exec(ctx, reassignCartOwner, arg.ID, arg.UserID)
	return err
}

const listCartItems = `
SELECT id, cart_id, product_id, title, price_cents, image_url, quantity, created_at, updated_at
FROM cart_line_items
WHERE cart_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartLineItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartLineItem
	for rows.Next() {
		var i CartLineItem
		if err := rows.Scan(
			&i.ID,
			&i.CartID,
			&i.ProductID,
			&i.Title,
			&i.PriceCents,
			&i.ImageUrl,
			&i.Quantity,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateLineItemParams struct {
	CartID     pgtype.UUID
	ProductID  string
	Title      string
	PriceCents int64
	ImageUrl   string
	Quantity   int64
}

const createLineItem = `
INSERT INTO cart_line_items (id, cart_id, product_id, title, price_cents, image_url, quantity)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
RETURNING id, cart_id, product_id, title, price_cents, image_url, quantity, created_at, updated_at
`

func (q *Queries) CreateLineItem(ctx context.Context, arg CreateLineItemParams) (CartLineItem, error) {
	row := q.db.QueryRow(ctx, createLineItem,
		arg.CartID,
		arg.ProductID,
		arg.Title,
		arg.PriceCents,
		arg.ImageUrl,
		arg.Quantity,
	)
	var i CartLineItem
	err := row.Scan(
		&i.ID,
		&i.CartID,
		&i.ProductID,
		&i.Title,
		&i.PriceCents,
		&i.ImageUrl,
		&i.Quantity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

type UpdateLineItemQuantityParams struct {
	ID       pgtype.UUID
	Quantity int64
}

const updateLineItemQuantity = `
UPDATE cart_line_items
SET quantity = $2, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateLineItemQuantity(ctx context.Context, arg UpdateLineItemQuantityParams) error {
	_, err := q.db.Exec(ctx, updateLineItemQuantity, arg.ID, arg.Quantity)
	return err
}

const deleteLineItem = `
DELETE FROM cart_line_items
WHERE id = $1
`

// DeleteLineItem removes one line. Deleting a line that is already gone is
// not an error.
func (q *Queries) DeleteLineItem(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteLineItem, id)
	return err
}
