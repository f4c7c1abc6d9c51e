// Package webhook processes Stripe webhook events. Checkout completion is
// the end of a cart's lifecycle: the order is materialized in the content
// store, then the cart is deleted.
package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/embla/internal/domain"
	"github.com/dukerupert/embla/internal/events"
	"github.com/dukerupert/embla/internal/handler"
)

const maxPayloadBytes = 1 << 16

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard.
	WebhookSecret string
}

// StripeHandler handles Stripe webhook events.
type StripeHandler struct {
	cartService domain.CartService
	orders      domain.OrderWriter
	publisher   events.Publisher
	config      StripeWebhookConfig
	logger      *slog.Logger

	// constructEvent verifies the payload signature and parses the event.
	// Swapped out in tests.
	constructEvent func(payload []byte, header, secret string) (stripe.Event, error)
}

func NewStripeHandler(cartService domain.CartService, orders domain.OrderWriter, publisher events.Publisher, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		cartService:    cartService,
		orders:         orders,
		publisher:      publisher,
		config:         config,
		logger:         logger.With("handler", "stripe_webhook"),
		constructEvent: stripewebhook.ConstructEvent,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Method not allowed"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	event, err := h.constructEvent(payload, signature, h.config.WebhookSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid signature"))
		return
	}

	h.logger.Info("stripe webhook received", "event_type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(w, r, event)
	default:
		// Acknowledge unhandled events so Stripe stops retrying them.
		h.logger.Info("unhandled webhook event", "event_type", event.Type)
		writeReceived(w)
	}
}

// handleCheckoutCompleted materializes the order and deletes the source cart.
// A failure before the delete returns non-2xx so Stripe retries the event.
func (h *StripeHandler) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "event_id", event.ID, "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid checkout session payload"))
		return
	}

	cartID := session.Metadata["cart_id"]
	if cartID == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing cart id in session metadata"))
		return
	}
	userID := session.Metadata["user_id"]
	if userID == "_" {
		userID = ""
	}

	cart, err := h.cartService.GetCart(ctx, cartID)
	if err != nil {
		h.logger.Error("failed to load cart for completed checkout",
			"cart_id", cartID, "session_id", session.ID, "error", err)
		handler.ErrorResponse(w, r, err)
		return
	}

	order := h.buildOrder(cart, userID, &session)
	if err := h.orders.CreateOrder(ctx, order); err != nil {
		h.logger.Error("failed to create order",
			"cart_id", cartID, "session_id", session.ID, "error", err)
		handler.InternalErrorResponse(w, r, err)
		return
	}

	if err := h.cartService.DeleteCart(ctx, cartID); err != nil {
		h.logger.Error("failed to delete cart after checkout",
			"cart_id", cartID, "order_number", order.OrderNumber, "error", err)
		handler.InternalErrorResponse(w, r, err)
		return
	}

	if err := h.publisher.Publish(ctx, events.SubjectCartCheckedOut, events.CartCheckedOut{
		CartID:      cartID,
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		TotalCents:  order.TotalPriceCents,
		OccurredAt:  time.Now().UTC(),
	}); err != nil {
		h.logger.Warn("failed to publish checkout event", "cart_id", cartID, "error", err)
	}

	h.logger.Info("order created from completed checkout",
		"order_number", order.OrderNumber,
		"cart_id", cartID,
		"total_cents", order.TotalPriceCents)
	writeReceived(w)
}

func (h *StripeHandler) buildOrder(cart *domain.Cart, userID string, session *stripe.CheckoutSession) domain.Order {
	order := domain.Order{
		OrderNumber:       orderNumber(session.ID),
		OrderDate:         time.Now().UTC(),
		CustomerID:        userID,
		CheckoutSessionID: session.ID,
		TotalPriceCents:   session.AmountTotal,
		Status:            "PROCESSING",
	}

	if session.CustomerDetails != nil {
		order.CustomerEmail = session.CustomerDetails.Email
		order.CustomerName = session.CustomerDetails.Name
	}
	if session.PaymentIntent != nil {
		order.PaymentIntentID = session.PaymentIntent.ID
	}

	if info := session.CollectedInformation; info != nil && info.ShippingDetails != nil {
		order.ShippingAddress.Name = info.ShippingDetails.Name
		if addr := info.ShippingDetails.Address; addr != nil {
			order.ShippingAddress.Line1 = addr.Line1
			order.ShippingAddress.Line2 = addr.Line2
			order.ShippingAddress.City = addr.City
			order.ShippingAddress.State = addr.State
			order.ShippingAddress.PostalCode = addr.PostalCode
			order.ShippingAddress.Country = addr.Country
		}
	}

	for _, item := range cart.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	return order
}

// orderNumber derives a short human-readable order number from the checkout
// session id.
func orderNumber(sessionID string) string {
	if len(sessionID) > 8 {
		sessionID = sessionID[len(sessionID)-8:]
	}
	return strings.ToUpper(sessionID)
}

func writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
