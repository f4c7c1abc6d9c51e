package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/embla/internal/domain"
)

// CartCache is a session-scoped, write-through mirror of one cart. Every
// mutation goes to the CartService first; local state changes only after the
// remote write succeeds, so the mirror can be thrown away and rebuilt from
// the repository at any time.
//
// Items are keyed by catalog product id. Adding a product that is already in
// the cart increments its quantity instead of creating a second line.
type CartCache struct {
	mu      sync.Mutex
	service domain.CartService
	catalog domain.Catalog
	store   Store
	key     string
	logger  *slog.Logger

	items  []domain.CartItem
	cartID string
	open   bool
	loaded bool
}

func New(service domain.CartService, catalog domain.Catalog, store Store, sessionKey string, logger *slog.Logger) *CartCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartCache{
		service: service,
		catalog: catalog,
		store:   store,
		key:     sessionKey,
		logger:  logger,
	}
}

// Load rehydrates items and cart id from the snapshot store. The open and
// loaded flags always start false; loaded flips only after SyncWithUser.
func (c *CartCache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.store.Load(ctx, c.key)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}
	c.items = append([]domain.CartItem(nil), snapshot.Items...)
	c.cartID = snapshot.CartID
	return nil
}

// AddItem adds quantity of an item to the cart. An existing line for the same
// product is incremented. A line whose product id differs but whose title and
// price match is treated as the same product under a stale id and incremented
// instead of duplicated.
func (c *CartCache) AddItem(ctx context.Context, item domain.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item.ProductID == "" {
		return domain.ErrProductRequired
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	if err := c.ensureCart(ctx); err != nil {
		return err
	}

	if existing := c.findByProduct(item.ProductID); existing != nil {
		return c.setQuantity(ctx, existing, existing.Quantity+item.Quantity)
	}
	if twin := c.findByTitleAndPrice(item.Title, item.PriceCents); twin != nil {
		return c.setQuantity(ctx, twin, twin.Quantity+item.Quantity)
	}

	cart, err := c.service.UpdateCartItem(ctx, c.cartID, item.ProductID, domain.ItemPatch{
		Title:      &item.Title,
		PriceCents: &item.PriceCents,
		ImageURL:   &item.ImageURL,
		Quantity:   &item.Quantity,
	})
	if err != nil {
		return err
	}

	c.cartID = cart.ID
	c.items = append(c.items, item)
	c.persist(ctx)
	return nil
}

// AddProduct looks the product up in the catalog and adds it with the
// snapshot title, price, and image taken at add time.
func (c *CartCache) AddProduct(ctx context.Context, productID string, quantity int64) error {
	product, err := c.catalog.Product(ctx, productID)
	if err != nil {
		return err
	}
	return c.AddItem(ctx, domain.CartItem{
		ProductID:  product.ID,
		Title:      product.Title,
		PriceCents: product.PriceCents,
		ImageURL:   product.ImageURL,
		Quantity:   quantity,
	})
}

// RemoveItem deletes the line for a product. Removing a product that is not
// in the cart is a no-op.
func (c *CartCache) RemoveItem(ctx context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.findByProduct(productID)
	if item == nil {
		return nil
	}
	return c.setQuantity(ctx, item, 0)
}

// UpdateQuantity sets the quantity for a product's line. Negative values
// clamp to zero, and zero removes the line.
func (c *CartCache) UpdateQuantity(ctx context.Context, productID string, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.findByProduct(productID)
	if item == nil {
		return domain.ErrCartItemNotFound
	}
	if quantity < 0 {
		quantity = 0
	}
	return c.setQuantity(ctx, item, quantity)
}

// SyncWithUser reconciles the cached cart with the signed-in user's cart and
// replaces local state wholesale with the result. When no user is signed in,
// or the sync fails, it falls back to resolving the cached cart id so the
// session always exits loaded with some valid cart.
func (c *CartCache) SyncWithUser(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cart, err := c.service.SyncCartWithUser(ctx, c.cartID)
	if err != nil {
		c.logger.Warn("cart sync failed, falling back to cached cart",
			"cart_id", c.cartID, "error", err)
	}
	if cart == nil {
		cart, err = c.service.GetOrCreateCart(ctx, c.cartID)
		if err != nil {
			c.loaded = true
			return err
		}
	}

	c.replace(ctx, cart)
	return nil
}

// Clear empties the local mirror. The server-side cart is left alone; it is
// deleted by checkout completion, not by the client.
func (c *CartCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.persist(ctx)
}

func (c *CartCache) Open()  { c.mu.Lock(); c.open = true; c.mu.Unlock() }
func (c *CartCache) Close() { c.mu.Lock(); c.open = false; c.mu.Unlock() }

func (c *CartCache) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *CartCache) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func (c *CartCache) CartID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartID
}

// Items returns a copy of the cached lines.
func (c *CartCache) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartItem(nil), c.items...)
}

func (c *CartCache) TotalItems() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

func (c *CartCache) TotalPriceCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, item := range c.items {
		total += item.PriceCents * item.Quantity
	}
	return total
}

// ensureCart resolves a cart id before the first remote write. Callers must
// hold the lock.
func (c *CartCache) ensureCart(ctx context.Context) error {
	if c.cartID != "" {
		return nil
	}
	cart, err := c.service.GetOrCreateCart(ctx, "")
	if err != nil {
		return err
	}
	c.cartID = cart.ID
	return nil
}

// setQuantity writes the new quantity through to the service, then mirrors
// the result locally. Quantity zero removes the line. Callers must hold the
// lock, and item must point into c.items.
func (c *CartCache) setQuantity(ctx context.Context, item *domain.CartItem, quantity int64) error {
	cart, err := c.service.UpdateCartItem(ctx, c.cartID, item.ProductID, domain.ItemPatch{
		Quantity: &quantity,
	})
	if err != nil {
		return err
	}

	c.cartID = cart.ID
	if quantity == 0 {
		c.removeLocal(item.ProductID)
	} else {
		item.Quantity = quantity
	}
	c.persist(ctx)
	return nil
}

func (c *CartCache) replace(ctx context.Context, cart *domain.Cart) {
	c.items = append([]domain.CartItem(nil), cart.Items...)
	c.cartID = cart.ID
	c.loaded = true
	c.persist(ctx)
}

func (c *CartCache) findByProduct(productID string) *domain.CartItem {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return &c.items[i]
		}
	}
	return nil
}

// findByTitleAndPrice matches a line by normalized title and exact price.
// This catches the same product reappearing under a regenerated id.
func (c *CartCache) findByTitleAndPrice(title string, priceCents int64) *domain.CartItem {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	for i := range c.items {
		if strings.EqualFold(strings.TrimSpace(c.items[i].Title), title) &&
			c.items[i].PriceCents == priceCents {
			return &c.items[i]
		}
	}
	return nil
}

func (c *CartCache) removeLocal(productID string) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// persist saves the snapshot best-effort. The repository holds the durable
// state, so a failed snapshot write is logged and otherwise ignored.
func (c *CartCache) persist(ctx context.Context) {
	snapshot := &Snapshot{Items: c.items, CartID: c.cartID}
	if err := c.store.Save(ctx, c.key, snapshot); err != nil {
		c.logger.Warn("failed to persist cart snapshot", "cart_id", c.cartID, "error", err)
	}
}
