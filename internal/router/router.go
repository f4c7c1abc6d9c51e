// Package router is a thin layer over http.ServeMux that adds middleware
// chaining and route groups. It relies on the mux's method-aware patterns.
package router

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router registers method-scoped routes, applying its middleware chain plus
// any route-specific middleware to each handler.
type Router struct {
	mux   *http.ServeMux
	chain []Middleware
}

// New builds a Router whose chain applies to every registered route.
func New(middleware ...Middleware) *Router {
	return &Router{mux: http.NewServeMux(), chain: middleware}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, middleware...)
}

func (r *Router) Post(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, middleware...)
}

func (r *Router) Put(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPut, pattern, handler, middleware...)
}

func (r *Router) Delete(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodDelete, pattern, handler, middleware...)
}

func (r *Router) Patch(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPatch, pattern, handler, middleware...)
}

// Handle registers handler for method and pattern with the combined
// middleware applied.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	r.mux.Handle(method+" "+pattern, wrap(handler, r.chain, middleware))
}

// Group derives a router sharing this router's mux with additional chain
// entries. Routes registered on the group see both chains.
func (r *Router) Group(middleware ...Middleware) *Router {
	chain := make([]Middleware, 0, len(r.chain)+len(middleware))
	chain = append(chain, r.chain...)
	chain = append(chain, middleware...)
	return &Router{mux: r.mux, chain: chain}
}

// wrap nests the handler inside global then route middleware so the first
// entry of the global chain runs outermost.
func wrap(handler http.Handler, global, route []Middleware) http.Handler {
	for i := len(route) - 1; i >= 0; i-- {
		handler = route[i](handler)
	}
	for i := len(global) - 1; i >= 0; i-- {
		handler = global[i](handler)
	}
	return handler
}
