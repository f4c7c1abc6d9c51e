package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/embla/internal/domain"
	"github.com/dukerupert/embla/internal/events"
)

// fakeCartService implements domain.CartService; only GetCart and DeleteCart
// matter for webhook handling.
type fakeCartService struct {
	carts map[string]*domain.Cart

	deleteErr      error
	deletedCartIDs []string
}

func (f *fakeCartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeCartService) GetOrCreateCart(ctx context.Context, contextCartID string) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCartService) UpdateCartItem(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCartService) SyncCartWithUser(ctx context.Context, anonymousCartID string) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCartService) DeleteCart(ctx context.Context, cartID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedCartIDs = append(f.deletedCartIDs, cartID)
	delete(f.carts, cartID)
	return nil
}

type fakeOrderWriter struct {
	createErr error
	orders    []domain.Order
}

func (f *fakeOrderWriter) CreateOrder(ctx context.Context, order domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.orders = append(f.orders, order)
	return nil
}

type capturePublisher struct {
	subjects []string
	events   []interface{}
}

func (c *capturePublisher) Publish(ctx context.Context, subject string, event interface{}) error {
	c.subjects = append(c.subjects, subject)
	c.events = append(c.events, event)
	return nil
}

func newTestHandler(svc *fakeCartService, orders *fakeOrderWriter, publisher events.Publisher) *StripeHandler {
	h := NewStripeHandler(svc, orders, publisher,
		StripeWebhookConfig{WebhookSecret: "whsec_test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Bypass signature verification; the payload is the event JSON.
	h.constructEvent = func(payload []byte, header, secret string) (stripe.Event, error) {
		var event stripe.Event
		err := json.Unmarshal(payload, &event)
		return event, err
	}
	return h
}

func seededCartService() *fakeCartService {
	return &fakeCartService{carts: map[string]*domain.Cart{
		"cart-1": {
			ID: "cart-1",
			Items: []domain.CartItem{
				{ID: "li-1", ProductID: "p1", Title: "Coffee", PriceCents: 1500, Quantity: 2},
				{ID: "li-2", ProductID: "p2", Title: "Tea", PriceCents: 900, Quantity: 1},
			},
		},
	}}
}

func checkoutCompletedPayload(t *testing.T, session map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{"object": session},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(h *StripeHandler, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=test")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	svc := seededCartService()
	orders := &fakeOrderWriter{}
	publisher := &capturePublisher{}
	h := newTestHandler(svc, orders, publisher)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id":           "cs_test_abcdefgh",
		"amount_total": 3900,
		"metadata":     map[string]string{"cart_id": "cart-1", "user_id": "user-1"},
		"customer_details": map[string]interface{}{
			"email": "buyer@example.com",
			"name":  "Buyer",
		},
	})

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	require.Len(t, orders.orders, 1)
	order := orders.orders[0]
	assert.Equal(t, "ABCDEFGH", order.OrderNumber)
	assert.Equal(t, "user-1", order.CustomerID)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)
	assert.Equal(t, "cs_test_abcdefgh", order.CheckoutSessionID)
	assert.Equal(t, int64(3900), order.TotalPriceCents)
	assert.Equal(t, "PROCESSING", order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "p1", order.Items[0].ProductID)
	assert.Equal(t, int64(2), order.Items[0].Quantity)

	// Cart is deleted only after the order is durably written.
	assert.Equal(t, []string{"cart-1"}, svc.deletedCartIDs)

	require.Len(t, publisher.subjects, 1)
	assert.Equal(t, events.SubjectCartCheckedOut, publisher.subjects[0])
	checkedOut := publisher.events[0].(events.CartCheckedOut)
	assert.Equal(t, "cart-1", checkedOut.CartID)
	assert.Equal(t, "ABCDEFGH", checkedOut.OrderNumber)
}

func TestHandleWebhook_AnonymousCheckout(t *testing.T) {
	svc := seededCartService()
	orders := &fakeOrderWriter{}
	h := newTestHandler(svc, orders, nil)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id":       "cs_test_xyz",
		"metadata": map[string]string{"cart_id": "cart-1", "user_id": "_"},
	})

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, orders.orders, 1)
	assert.Empty(t, orders.orders[0].CustomerID)
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	h := newTestHandler(seededCartService(), &fakeOrderWriter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h := newTestHandler(seededCartService(), &fakeOrderWriter{}, nil)
	h.constructEvent = func(payload []byte, header, secret string) (stripe.Event, error) {
		return stripe.Event{}, errors.New("signature mismatch")
	}

	rec := postWebhook(h, []byte(`{}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleWebhook_MissingCartID(t *testing.T) {
	orders := &fakeOrderWriter{}
	h := newTestHandler(seededCartService(), orders, nil)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id": "cs_test_xyz",
	})

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.orders)
}

func TestHandleWebhook_CartNotFound(t *testing.T) {
	orders := &fakeOrderWriter{}
	h := newTestHandler(&fakeCartService{carts: map[string]*domain.Cart{}}, orders, nil)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id":       "cs_test_xyz",
		"metadata": map[string]string{"cart_id": "cart-gone"},
	})

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, orders.orders)
}

func TestHandleWebhook_OrderCreationFails(t *testing.T) {
	svc := seededCartService()
	orders := &fakeOrderWriter{createErr: errors.New("content store down")}
	h := newTestHandler(svc, orders, nil)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id":       "cs_test_xyz",
		"metadata": map[string]string{"cart_id": "cart-1"},
	})

	rec := postWebhook(h, payload)

	// Non-2xx so Stripe retries; the cart survives for the retry.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, svc.deletedCartIDs)
	assert.Contains(t, svc.carts, "cart-1")
}

func TestHandleWebhook_CartDeleteFails(t *testing.T) {
	svc := seededCartService()
	svc.deleteErr = errors.New("db down")
	orders := &fakeOrderWriter{}
	h := newTestHandler(svc, orders, nil)

	payload := checkoutCompletedPayload(t, map[string]interface{}{
		"id":       "cs_test_xyz",
		"metadata": map[string]string{"cart_id": "cart-1"},
	})

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The order was written before the delete was attempted.
	assert.Len(t, orders.orders, 1)
}

func TestHandleWebhook_UnhandledEventType(t *testing.T) {
	svc := seededCartService()
	orders := &fakeOrderWriter{}
	h := newTestHandler(svc, orders, nil)

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_2",
		"type": "payment_intent.created",
		"data": map[string]interface{}{"object": map[string]interface{}{}},
	})
	require.NoError(t, err)

	rec := postWebhook(h, payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, orders.orders)
	assert.Empty(t, svc.deletedCartIDs)
}

func TestHandleWebhook_RejectsNonPost(t *testing.T) {
	h := newTestHandler(seededCartService(), &fakeOrderWriter{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderNumber(t *testing.T) {
	assert.Equal(t, "ABCDEFGH", orderNumber("cs_test_abcdefgh"))
	assert.Equal(t, "SHORT", orderNumber("short"))
}
