package checkout

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/embla/internal/domain"
)

func newTestProvider() *StripeProvider {
	return NewStripeProvider(Config{
		SecretKey: "sk_test_fake",
		BaseURL:   "https://shop.example.com",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateCheckoutSession_EmptyCart(t *testing.T) {
	provider := newTestProvider()

	_, err := provider.CreateCheckoutSession(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = provider.CreateCheckoutSession(context.Background(), &domain.Cart{ID: "cart-1"}, "", "")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCreateCheckoutSession_AllItemsInvalid(t *testing.T) {
	provider := newTestProvider()
	cart := &domain.Cart{
		ID: "cart-1",
		Items: []domain.CartItem{
			{ProductID: "p1", Title: "  ", PriceCents: 1000, Quantity: 1},
			{ProductID: "p2", Title: "Tea", PriceCents: -5, Quantity: 1},
			{ProductID: "p3", Title: "Mug", PriceCents: 1200, Quantity: 0},
		},
	}

	_, err := provider.CreateCheckoutSession(context.Background(), cart, "", "")
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestFilterValidItems(t *testing.T) {
	provider := newTestProvider()
	items := []domain.CartItem{
		{ProductID: "p1", Title: "Coffee", PriceCents: 1500, Quantity: 2},
		{ProductID: "p2", Title: "", PriceCents: 900, Quantity: 1},
		{ProductID: "p3", Title: "Tea", PriceCents: -1, Quantity: 1},
		{ProductID: "p4", Title: "Mug", PriceCents: 1200, Quantity: 0},
		{ProductID: "p5", Title: "Free Sticker", PriceCents: 0, Quantity: 1},
	}

	valid := provider.filterValidItems(items)

	require.Len(t, valid, 2)
	assert.Equal(t, "p1", valid[0].ProductID)
	assert.Equal(t, "p5", valid[1].ProductID)
}

func TestConfigDefaults(t *testing.T) {
	provider := newTestProvider()

	assert.Equal(t, int64(1500), provider.config.FreeShippingThresholdCents)
	assert.Equal(t, int64(500), provider.config.StandardShippingCents)
	assert.Equal(t, []string{"US"}, provider.config.AllowedCountries)
}
