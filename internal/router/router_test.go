package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_MethodRouting(t *testing.T) {
	r := New()

	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/cart/items", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"get cart", http.MethodGet, "/cart", http.StatusOK},
		{"post items", http.MethodPost, "/cart/items", http.StatusCreated},
		{"wrong method", http.MethodDelete, "/cart", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, "before "+name)
				next.ServeHTTP(w, req)
				order = append(order, "after "+name)
			})
		}
	}

	r := New(tag("global"))
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	}, tag("route"))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Global middleware wraps route middleware wraps the handler.
	require.Equal(t, []string{
		"before global", "before route", "handler", "after route", "after global",
	}, order)
}

func TestRouter_RouteMiddlewareIsScoped(t *testing.T) {
	limited := 0
	limiter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limited++
			next.ServeHTTP(w, req)
		})
	}

	r := New()
	r.Post("/checkout", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, limiter)
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, 0, limited, "cart route must not pass through the checkout middleware")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	assert.Equal(t, 1, limited)
}

func TestCORS(t *testing.T) {
	reached := false
	handler := CORS([]string{"https://shop.example.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		}))

	// A real preflight from an allowed origin is answered directly.
	preflight := httptest.NewRequest(http.MethodOptions, "/cart", nil)
	preflight.Header.Set("Origin", "https://shop.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, reached, "preflight must not reach the handler")

	// A preflight from a disallowed origin gets no CORS headers.
	preflight = httptest.NewRequest(http.MethodOptions, "/cart", nil)
	preflight.Header.Set("Origin", "https://evil.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, preflight)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// A plain OPTIONS request is not swallowed by the CORS layer.
	plain := httptest.NewRequest(http.MethodOptions, "/cart", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, plain)
	assert.True(t, reached, "plain OPTIONS must pass through")
	assert.Equal(t, http.StatusOK, w.Code)

	// Simple cross-origin requests get the allow headers and the response.
	reached = false
	get := httptest.NewRequest(http.MethodGet, "/cart", nil)
	get.Header.Set("Origin", "https://shop.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, get)
	assert.True(t, reached)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Group(t *testing.T) {
	globalCalled := false
	groupCalled := false

	mark := func(flag *bool) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				*flag = true
				next.ServeHTTP(w, req)
			})
		}
	}

	r := New(mark(&globalCalled))
	group := r.Group(mark(&groupCalled))
	group.Get("/cart/sync", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart/sync", nil))

	assert.True(t, globalCalled)
	assert.True(t, groupCalled)
}
