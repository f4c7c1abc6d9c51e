package domain

import "context"

var ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}

// CatalogProduct is the slice of a catalog entry the cart engine cares about.
// It is copied onto a line item at add time and never refreshed afterwards.
type CatalogProduct struct {
	ID         string
	Title      string
	PriceCents int64
	ImageURL   string
}

// Catalog looks up product data in the external content store. Consulted only
// when constructing a new line item's snapshot.
type Catalog interface {
	Product(ctx context.Context, productID string) (*CatalogProduct, error)
}
