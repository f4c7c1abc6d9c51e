// Package checkout creates Stripe Checkout sessions for cart purchases.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/dukerupert/embla/internal/domain"
)

// anonymousUserID marks sessions started without a signed-in user in the
// session metadata.
const anonymousUserID = "_"

type Config struct {
	SecretKey string

	// BaseURL is the storefront origin used to build success and cancel URLs.
	BaseURL string

	// FreeShippingThresholdCents is the cart subtotal at which shipping
	// becomes free. Below it the flat StandardShippingCents rate applies.
	FreeShippingThresholdCents int64
	StandardShippingCents      int64

	AllowedCountries []string
}

type StripeProvider struct {
	config Config
	logger *slog.Logger
}

var _ domain.CheckoutProvider = (*StripeProvider)(nil)

func NewStripeProvider(config Config, logger *slog.Logger) *StripeProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FreeShippingThresholdCents == 0 {
		config.FreeShippingThresholdCents = 1500
	}
	if config.StandardShippingCents == 0 {
		config.StandardShippingCents = 500
	}
	if len(config.AllowedCountries) == 0 {
		config.AllowedCountries = []string{"US"}
	}
	stripe.Key = config.SecretKey
	return &StripeProvider{
		config: config,
		logger: logger.With("provider", "stripe"),
	}
}

// CreateCheckoutSession builds a payment-mode Checkout session from the cart
// and returns the redirect URL. The cart id and user id travel in the session
// metadata so the completion webhook can materialize the order and delete the
// cart.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cart *domain.Cart, userID, customerEmail string) (string, error) {
	const op = "checkout.create_session"

	if cart == nil || len(cart.Items) == 0 {
		return "", domain.ErrEmptyCart
	}

	validItems := p.filterValidItems(cart.Items)
	if len(validItems) == 0 {
		return "", domain.Errorf(domain.EINVALID, op, "No valid items in cart")
	}

	var subtotal int64
	for _, item := range validItems {
		subtotal += item.PriceCents * item.Quantity
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(validItems))
	for _, item := range validItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Title),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.PriceCents),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	shippingCents := p.config.StandardShippingCents
	shippingName := "Standard Shipping"
	if subtotal >= p.config.FreeShippingThresholdCents {
		shippingCents = 0
		shippingName = "Free Shipping"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(p.config.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(p.config.BaseURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(p.config.AllowedCountries),
		},
		ShippingOptions: []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					Type: stripe.String("fixed_amount"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Currency: stripe.String(string(stripe.CurrencyUSD)),
						Amount:   stripe.Int64(shippingCents),
					},
					DisplayName: stripe.String(shippingName),
					DeliveryEstimate: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
						Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
							Unit:  stripe.String("business_day"),
							Value: stripe.Int64(3),
						},
						Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
							Unit:  stripe.String("business_day"),
							Value: stripe.Int64(5),
						},
					},
				},
			},
		},
	}

	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}
	if userID == "" {
		userID = anonymousUserID
	}
	params.AddMetadata("cart_id", cart.ID)
	params.AddMetadata("user_id", userID)
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	if sess.URL == "" {
		return "", domain.Errorf(domain.EINTERNAL, op, "Checkout session has no redirect URL")
	}

	p.logger.Info("checkout session created",
		"session_id", sess.ID,
		"cart_id", cart.ID,
		"subtotal_cents", subtotal,
		"line_items", len(validItems))
	return sess.URL, nil
}

// filterValidItems drops lines that cannot be priced. A cart that reaches
// checkout with a malformed line should still sell the rest.
func (p *StripeProvider) filterValidItems(items []domain.CartItem) []domain.CartItem {
	valid := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			p.logger.Warn("skipping cart item with empty title", "product_id", item.ProductID)
			continue
		}
		if item.PriceCents < 0 {
			p.logger.Warn("skipping cart item with negative price", "product_id", item.ProductID)
			continue
		}
		if item.Quantity < 1 {
			p.logger.Warn("skipping cart item with invalid quantity", "product_id", item.ProductID)
			continue
		}
		valid = append(valid, item)
	}
	return valid
}
