package handler

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

	"github.com/dukerupert/embla/internal/domain"
)

// mockCartService lets each test stub exactly the calls it expects.
type mockCartService struct {
	getOrCreateFunc func(ctx context.Context, contextCartID string) (*domain.Cart, error)
	updateItemFunc  func(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error)
	syncFunc        func(ctx context.Context, anonymousCartID string) (*domain.Cart, error)
}

func (m *mockCartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (m *mockCartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	return nil, errors.New("not implemented")
}

func (m *mockCartService) GetOrCreateCart(ctx context.Context, contextCartID string) (*domain.Cart, error) {
	return m.getOrCreateFunc(ctx, contextCartID)
}

func (m *mockCartService) UpdateCartItem(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error) {
	return m.updateItemFunc(ctx, cartID, productID, patch)
}

func (m *mockCartService) SyncCartWithUser(ctx context.Context, anonymousCartID string) (*domain.Cart, error) {
	return m.syncFunc(ctx, anonymousCartID)
}

func (m *mockCartService) DeleteCart(ctx context.Context, cartID string) error {
	return errors.New("not implemented")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCart() *domain.Cart {
	return &domain.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{
			{ID: "li-1", ProductID: "p1", Title: "Coffee", PriceCents: 1500, Quantity: 2},
		},
	}
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) domain.Cart {
	t.Helper()
	var cart domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	return cart
}

func TestCartGet_ResolvesCart(t *testing.T) {
	var gotContextID string
	svc := &mockCartService{
		getOrCreateFunc: func(ctx context.Context, contextCartID string) (*domain.Cart, error) {
			gotContextID = contextCartID
			return sampleCart(), nil
		},
	}
	h := NewCartHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/cart?cart_id=cart-cached", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cart-cached", gotContextID)
	cart := decodeCart(t, rec)
	assert.Equal(t, "cart-1", cart.ID)
	require.Len(t, cart.Items, 1)
}

func TestCartGet_ServiceError(t *testing.T) {
	svc := &mockCartService{
		getOrCreateFunc: func(ctx context.Context, contextCartID string) (*domain.Cart, error) {
			return nil, domain.Internal(errors.New("db down"), "cart.get_or_create", "failed to load cart")
		},
	}
	h := NewCartHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details never reach the client.
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestCartUpdateItem(t *testing.T) {
	var gotCartID, gotProductID string
	var gotPatch domain.ItemPatch
	svc := &mockCartService{
		updateItemFunc: func(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error) {
			gotCartID, gotProductID, gotPatch = cartID, productID, patch
			return sampleCart(), nil
		},
	}
	h := NewCartHandler(svc, discardLogger())

	body := `{"cartId":"cart-1","productId":"p1","title":"Coffee","priceCents":1500,"quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.UpdateItem(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cart-1", gotCartID)
	assert.Equal(t, "p1", gotProductID)
	require.NotNil(t, gotPatch.Title)
	assert.Equal(t, "Coffee", *gotPatch.Title)
	require.NotNil(t, gotPatch.Quantity)
	assert.Equal(t, int64(2), *gotPatch.Quantity)
	assert.Nil(t, gotPatch.ImageURL)
}

func TestCartUpdateItem_InvalidJSON(t *testing.T) {
	h := NewCartHandler(&mockCartService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.UpdateItem(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartUpdateItem_ValidationError(t *testing.T) {
	svc := &mockCartService{
		updateItemFunc: func(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error) {
			return nil, domain.NewValidationError("cart.update_item", "quantity", "quantity must be a non-negative integer")
		},
	}
	h := NewCartHandler(svc, discardLogger())

	body := `{"cartId":"cart-1","productId":"p1","quantity":-1}`
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.UpdateItem(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response struct {
		Error struct {
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Contains(t, response.Error.Fields, "quantity")
}

func TestCartSync_ReturnsMergedCart(t *testing.T) {
	var gotAnonID string
	svc := &mockCartService{
		syncFunc: func(ctx context.Context, anonymousCartID string) (*domain.Cart, error) {
			gotAnonID = anonymousCartID
			return sampleCart(), nil
		},
	}
	h := NewCartHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/cart/sync", bytes.NewBufferString(`{"cartId":"cart-anon"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cart-anon", gotAnonID)
	cart := decodeCart(t, rec)
	assert.Equal(t, "cart-1", cart.ID)
}

func TestCartSync_Unauthenticated(t *testing.T) {
	svc := &mockCartService{
		syncFunc: func(ctx context.Context, anonymousCartID string) (*domain.Cart, error) {
			return nil, nil
		},
	}
	h := NewCartHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/cart/sync", bytes.NewBufferString(`{"cartId":"cart-anon"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
