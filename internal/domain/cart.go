package domain

import (
	"context"
	"time"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrProductRequired  = &Error{Code: EINVALID, Message: "Product ID is required"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be a non-negative integer"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "Cart is empty"}
)

// Cart is one shopping session's contents. The repository is the source of
// truth; client-side mirrors are disposable projections.
type Cart struct {
	ID string `json:"id"`

	// OwnerUserID links the cart to an authenticated identity. Empty means
	// anonymous. At most one cart may be owned by a given user.
	OwnerUserID string `json:"ownerUserId,omitempty"`

	Items []CartItem `json:"items"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartItem is one product line in a cart. Title, price, and image are a
// snapshot of the catalog entry at add time and are never re-fetched for an
// existing line.
type CartItem struct {
	ID string `json:"id"`

	// ProductID references the catalog product. Unique within a cart: adding
	// the same product again updates quantity instead of creating a new row.
	ProductID string `json:"productId"`

	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
	ImageURL   string `json:"image"`

	// Quantity is >= 1 while the item exists; quantity 0 means deletion and
	// is never a stored state.
	Quantity int64 `json:"quantity"`
}

// ItemPatch is the partial update applied by CartService.UpdateCartItem.
// Quantity 0 deletes the line; a missing quantity on an existing line is a
// no-op. Title and PriceCents are required only when the patch creates a new
// line.
type ItemPatch struct {
	Title      *string `validate:"omitempty"`
	PriceCents *int64  `validate:"omitempty,gte=0"`
	ImageURL   *string `validate:"omitempty"`
	Quantity   *int64  `validate:"omitempty,gte=0"`
}

// CartService orchestrates cart storage and the anonymous/owned cart merge.
type CartService interface {
	// CreateCart allocates a fresh empty cart, owned by the current user when
	// one is authenticated.
	CreateCart(ctx context.Context) (*Cart, error)

	// GetCart loads a cart by id.
	GetCart(ctx context.Context, cartID string) (*Cart, error)

	// GetOrCreateCart resolves the active cart for the caller. An existing
	// cart owned by the authenticated user always wins over contextCartID;
	// otherwise contextCartID is looked up; otherwise a new cart is created.
	GetOrCreateCart(ctx context.Context, contextCartID string) (*Cart, error)

	// UpdateCartItem applies a single-line mutation to the cart identified by
	// cartID, keyed by catalog product id. Returns the freshly reloaded cart.
	UpdateCartItem(ctx context.Context, cartID, productID string, patch ItemPatch) (*Cart, error)

	// SyncCartWithUser folds an anonymous cart into the authenticated user's
	// cart on sign-in. Returns (nil, nil) when no user is authenticated.
	SyncCartWithUser(ctx context.Context, anonymousCartID string) (*Cart, error)

	// DeleteCart removes a cart and its lines. Deleting a cart that no longer
	// exists is a no-op.
	DeleteCart(ctx context.Context, cartID string) error
}

// TotalItems sums line quantities.
func (c *Cart) TotalItems() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPriceCents sums price x quantity over all lines.
func (c *Cart) TotalPriceCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceCents * item.Quantity
	}
	return total
}

// FindItemByProduct returns the line for a catalog product id, or nil.
func (c *Cart) FindItemByProduct(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
