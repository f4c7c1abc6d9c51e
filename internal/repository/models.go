package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Cart is a row in the carts table. UserID is null for anonymous carts; a
// partial unique index enforces at most one cart per owner.
type Cart struct {
	ID        pgtype.UUID
	UserID    pgtype.Text
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartLineItem is a row in the cart_line_items table. Title, price, and image
// are the add-time catalog snapshot. (cart_id, product_id) is unique.
type CartLineItem struct {
	ID         pgtype.UUID
	CartID     pgtype.UUID
	ProductID  string
	Title      string
	PriceCents int64
	ImageUrl   string
	Quantity   int64
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}
