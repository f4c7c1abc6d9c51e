package routes

import (
	"github.com/dukerupert/embla/internal/router"
)

// RegisterCartRoutes registers the cart and checkout API routes.
func RegisterCartRoutes(r *router.Router, deps CartDeps) {
	r.Get("/cart", deps.CartHandler.Get)
	r.Post("/cart/items", deps.CartHandler.UpdateItem)
	r.Post("/cart/sync", deps.CartHandler.Sync)
	r.Post("/checkout", deps.CheckoutHandler.Create, deps.CheckoutMiddleware...)
}
