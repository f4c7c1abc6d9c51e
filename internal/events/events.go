// Package events publishes cart lifecycle events for downstream consumers
// (analytics, fulfillment dashboards). Publishing is best-effort: cart state
// is never blocked on the message bus.
package events

import (
	"context"
	"time"
)

// Subjects for cart lifecycle events.
const (
	SubjectCartMerged     = "cart.merged"
	SubjectCartCheckedOut = "cart.checked_out"
)

// CartMerged is emitted after an anonymous cart has been folded into an
// owned cart on sign-in and the anonymous cart deleted.
type CartMerged struct {
	UserID          string    `json:"user_id"`
	OwnedCartID     string    `json:"owned_cart_id"`
	AnonymousCartID string    `json:"anonymous_cart_id"`
	ItemsMerged     int       `json:"items_merged"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// CartCheckedOut is emitted by the checkout webhook after the order document
// is written and the cart deleted.
type CartCheckedOut struct {
	CartID      string    `json:"cart_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id,omitempty"`
	TotalCents  int64     `json:"total_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers an event to a subject. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, event interface{}) error
}

// NoopPublisher discards events. Used when no message bus is configured and
// in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, event interface{}) error {
	return nil
}
