package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/embla/internal/domain"
)

// CartHandler exposes the cart API. The client passes its cached cart id
// explicitly; resolution against the signed-in user's cart happens in the
// service layer.
type CartHandler struct {
	cartService domain.CartService
	logger      *slog.Logger
}

func NewCartHandler(cartService domain.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{
		cartService: cartService,
		logger:      logger.With("handler", "cart"),
	}
}

// Get handles GET /cart. The optional cart_id query parameter carries the
// client's cached id; a stale or missing id resolves to a fresh cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cart, err := h.cartService.GetOrCreateCart(ctx, r.URL.Query().Get("cart_id"))
	if err != nil {
		h.logger.Error("failed to resolve cart", "error", err)
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type updateItemRequest struct {
	CartID    string  `json:"cartId"`
	ProductID string  `json:"productId"`
	Title     *string `json:"title"`
	Price     *int64  `json:"priceCents"`
	Image     *string `json:"image"`
	Quantity  *int64  `json:"quantity"`
}

// UpdateItem handles POST /cart/items. One request mutates one line:
// quantity 0 removes it, a patch for an unknown product creates it.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.UpdateCartItem(ctx, req.CartID, req.ProductID, domain.ItemPatch{
		Title:      req.Title,
		PriceCents: req.Price,
		ImageURL:   req.Image,
		Quantity:   req.Quantity,
	})
	if err != nil {
		if domain.IsValidationError(err) {
			ValidationErrorResponse(w, r, err)
			return
		}
		h.logger.Error("failed to update cart item",
			"cart_id", req.CartID, "product_id", req.ProductID, "error", err)
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type syncRequest struct {
	CartID string `json:"cartId"`
}

// Sync handles POST /cart/sync, called once after sign-in. Requires an
// authenticated user; the body carries the anonymous cart id to fold in.
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.SyncCartWithUser(ctx, req.CartID)
	if err != nil {
		h.logger.Error("failed to sync cart", "cart_id", req.CartID, "error", err)
		ErrorResponse(w, r, err)
		return
	}
	if cart == nil {
		UnauthorizedResponse(w, r)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}
