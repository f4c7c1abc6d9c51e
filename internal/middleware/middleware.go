// Package middleware provides the HTTP middleware chain for the cart API:
// request ids, request-scoped logging, body limits, timeouts, and Prometheus
// metrics.
package middleware

// contextKey is a private type for context values set by this package.
type contextKey string
