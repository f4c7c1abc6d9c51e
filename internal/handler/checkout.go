package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/embla/internal/domain"
)

// CheckoutHandler starts the hosted checkout flow for a cart.
type CheckoutHandler struct {
	cartService domain.CartService
	provider    domain.CheckoutProvider
	identity    domain.IdentityProvider
	logger      *slog.Logger
}

func NewCheckoutHandler(cartService domain.CartService, provider domain.CheckoutProvider, identity domain.IdentityProvider, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		cartService: cartService,
		provider:    provider,
		identity:    identity,
		logger:      logger.With("handler", "checkout"),
	}
}

type checkoutRequest struct {
	CartID string `json:"cartId"`
	Email  string `json:"email"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// Create handles POST /checkout. The cart is re-resolved server side so a
// stale client id still checks out whatever cart the caller actually owns.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.GetOrCreateCart(ctx, req.CartID)
	if err != nil {
		h.logger.Error("failed to resolve cart for checkout", "cart_id", req.CartID, "error", err)
		ErrorResponse(w, r, err)
		return
	}

	userID, _ := h.identity.CurrentUserID(ctx)

	url, err := h.provider.CreateCheckoutSession(ctx, cart, userID, req.Email)
	if err != nil {
		h.logger.Error("failed to create checkout session", "cart_id", cart.ID, "error", err)
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}
