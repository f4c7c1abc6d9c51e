package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/embla/internal"
	"github.com/dukerupert/embla/internal/catalog"
	"github.com/dukerupert/embla/internal/checkout"
	"github.com/dukerupert/embla/internal/events"
	"github.com/dukerupert/embla/internal/handler"
	"github.com/dukerupert/embla/internal/handler/webhook"
	"github.com/dukerupert/embla/internal/identity"
	"github.com/dukerupert/embla/internal/middleware"
	"github.com/dukerupert/embla/internal/repository"
	"github.com/dukerupert/embla/internal/router"
	"github.com/dukerupert/embla/internal/routes"
	"github.com/dukerupert/embla/internal/service"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	repo := repository.New(pool)

	// Initialize event publisher (optional)
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Nats.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.Nats.URL)
		natsPublisher, err := events.NewNATSPublisher(cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS connection established")
	}

	// Verify the snapshot store backend if one is configured. The server
	// itself only needs it indirectly, but failing fast beats a dead cache.
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("Redis connection established", "addr", cfg.Redis.Addr)
	}

	// Initialize identity provider
	identityProvider := identity.ContextProvider{}

	// Initialize cart service
	cartService := service.NewCartService(repo, identityProvider, publisher, logger)

	// Initialize Sanity content store client
	sanityClient := catalog.NewSanityClient(catalog.Config{
		ProjectID:  cfg.Sanity.ProjectID,
		Dataset:    cfg.Sanity.Dataset,
		APIVersion: cfg.Sanity.APIVersion,
		WriteToken: cfg.Sanity.WriteToken,
	})

	// Initialize Stripe checkout provider
	checkoutProvider := checkout.NewStripeProvider(checkout.Config{
		SecretKey:                  cfg.Stripe.SecretKey,
		BaseURL:                    cfg.BaseURL,
		FreeShippingThresholdCents: cfg.Shipping.FreeThresholdCents,
		StandardShippingCents:      cfg.Shipping.StandardRateCents,
		AllowedCountries:           cfg.Shipping.AllowedCountries,
	}, logger)

	// Initialize handlers
	cartHandler := handler.NewCartHandler(cartService, logger)
	checkoutHandler := handler.NewCheckoutHandler(cartService, checkoutProvider, identityProvider, logger)
	stripeWebhookHandler := webhook.NewStripeHandler(cartService, sanityClient, publisher,
		webhook.StripeWebhookConfig{WebhookSecret: cfg.Stripe.WebhookSecret}, logger)

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("embla")

	// Configure security headers
	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	// Configure rate limiting
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	checkoutRateLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		rateLimiter.Middleware,
		identity.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterCartRoutes(r, routes.CartDeps{
		CartHandler:        cartHandler,
		CheckoutHandler:    checkoutHandler,
		CheckoutMiddleware: []router.Middleware{checkoutRateLimiter.Middleware},
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	})

	// CORS wraps the whole router so preflight OPTIONS requests are answered
	// even though routes register method-scoped patterns.
	root := router.CORS([]string{cfg.BaseURL})(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting cart server", "address", addr)

	if err := http.ListenAndServe(addr, root); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
