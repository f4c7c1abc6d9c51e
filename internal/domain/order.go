package domain

import (
	"context"
	"time"
)

// Order is the document materialized in the content store when checkout
// completes. Order creation is the end of the source cart's lifecycle: the
// webhook deletes the cart after the order is written.
type Order struct {
	OrderNumber       string
	OrderDate         time.Time
	CustomerID        string
	CustomerEmail     string
	CustomerName      string
	CheckoutSessionID string
	PaymentIntentID   string
	TotalPriceCents   int64
	ShippingAddress   ShippingAddress
	Items             []OrderItem
	Status            string
}

// OrderItem references the catalog product; quantity and price come from the
// cart line at checkout time.
type OrderItem struct {
	ProductID  string
	Quantity   int64
	PriceCents int64
}

// ShippingAddress is the address collected by the checkout provider.
type ShippingAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderWriter persists completed orders in the content store.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order Order) error
}
