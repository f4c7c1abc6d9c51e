package domain

import "context"

// CheckoutProvider hands a cart snapshot to the external payment processor
// and returns the URL the shopper is redirected to. Completion is observed
// out-of-band through the provider's webhook; the cart id travels in the
// session metadata so the webhook can locate and delete the cart.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, cart *Cart, userID, customerEmail string) (string, error)
}
