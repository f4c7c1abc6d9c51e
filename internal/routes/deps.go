// Package routes wires handlers onto the router. Route registration is kept
// separate from handler construction so main stays a pure composition root.
package routes

import (
	"net/http"

	"github.com/dukerupert/embla/internal/handler"
	"github.com/dukerupert/embla/internal/router"
)

// CartDeps contains dependencies for the cart API routes
type CartDeps struct {
	CartHandler     *handler.CartHandler
	CheckoutHandler *handler.CheckoutHandler

	// CheckoutMiddleware is applied to the checkout route only, typically a
	// stricter rate limit.
	CheckoutMiddleware []router.Middleware
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
