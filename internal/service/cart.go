package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/embla/internal/domain"
	"github.com/dukerupert/embla/internal/events"
	"github.com/dukerupert/embla/internal/repository"
)

// ErrNewItemDataRequired rejects a patch that would create a line without a
// catalog snapshot to copy from.
var ErrNewItemDataRequired = domain.Errorf(domain.EINVALID, "", "Title and price are required for new items")

// cartService implements domain.CartService on top of the repository and the
// pure merge engine. The repository offers no cross-cart transactions, so the
// multi-step sign-in merge is sequenced here: merge writes first, source cart
// delete last. A failure in between leaves the anonymous cart intact and the
// whole sync safe to re-run.
type cartService struct {
	repo     repository.Querier
	identity domain.IdentityProvider
	events   events.Publisher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCartService creates a CartService. publisher may be a NoopPublisher when
// no message bus is configured.
func NewCartService(repo repository.Querier, identity domain.IdentityProvider, publisher events.Publisher, logger *slog.Logger) domain.CartService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &cartService{
		repo:     repo,
		identity: identity,
		events:   publisher,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCart allocates a fresh empty cart, linked to the current user when
// one is authenticated.
func (s *cartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	var owner pgtype.Text
	if userID, ok := s.identity.CurrentUserID(ctx); ok {
		owner = pgtype.Text{String: userID, Valid: true}
	}

	row, err := s.repo.CreateCart(ctx, owner)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.create", "failed to create cart")
	}

	return cartFromRow(row, nil), nil
}

// GetCart loads a cart and its items by id.
func (s *cartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cartUUID, err := parseUUID(cartID)
	if err != nil {
		return nil, domain.ErrCartNotFound
	}

	row, err := s.repo.GetCartByID(ctx, cartUUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.get", "failed to get cart")
	}

	return s.loadCart(ctx, row)
}

// GetOrCreateCart resolves the caller's active cart. A cart already owned by
// the authenticated user always wins, even when the caller still holds a
// stale anonymous context id; otherwise the context id is tried; otherwise a
// new cart is created.
func (s *cartService) GetOrCreateCart(ctx context.Context, contextCartID string) (*domain.Cart, error) {
	if userID, ok := s.identity.CurrentUserID(ctx); ok {
		row, err := s.repo.GetCartByOwner(ctx, userID)
		if err == nil {
			return s.loadCart(ctx, row)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.WrapError(err, domain.EINTERNAL, "cart.get_or_create", "failed to get cart by owner")
		}
	}

	if cartUUID, err := parseUUID(contextCartID); err == nil {
		row, err := s.repo.GetCartByID(ctx, cartUUID)
		if err == nil {
			return s.loadCart(ctx, row)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.WrapError(err, domain.EINTERNAL, "cart.get_or_create", "failed to get cart by ID")
		}
	}

	return s.CreateCart(ctx)
}

// itemOp is the resolved form of an ItemPatch against the cart's current
// state. Keeping the numeric quantity-0-deletes convenience on the wire while
// dispatching on an explicit tag avoids accidental silent deletions.
type itemOp int

const (
	opNone itemOp = iota
	opSetQuantity
	opRemove
	opCreate
)

// UpdateCartItem applies a single-line mutation. Validation happens before
// any repository call; each call touches at most one line item, so a failed
// call never leaves a partially applied quantity.
func (s *cartService) UpdateCartItem(ctx context.Context, cartID, productID string, patch domain.ItemPatch) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.ErrProductRequired
	}

	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return nil, domain.NewValidationError("cart.update_item", "title", "title must not be empty")
		}
		patch.Title = &trimmed
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, patchValidationError(err)
	}

	// The original flow tolerates a stale or missing cart id by falling back
	// to cart creation, so a mutation always lands somewhere real.
	cart, err := s.GetOrCreateCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	existing := cart.FindItemByProduct(productID)

	op := opNone
	switch {
	case existing != nil && patch.Quantity != nil && *patch.Quantity == 0:
		op = opRemove
	case existing != nil && patch.Quantity != nil:
		op = opSetQuantity
	case existing == nil && patch.Quantity != nil && *patch.Quantity > 0:
		op = opCreate
	}

	switch op {
	case opRemove:
		itemUUID, err := parseUUID(existing.ID)
		if err != nil {
			return nil, domain.Internal(err, "cart.update_item", "invalid line item ID")
		}
		if err := s.repo.DeleteLineItem(ctx, itemUUID); err != nil {
			return nil, wrapItemError(err, productID, "failed to delete cart item")
		}

	case opSetQuantity:
		// Title, price, and image on an existing line are the frozen add-time
		// snapshot; only quantity moves.
		itemUUID, err := parseUUID(existing.ID)
		if err != nil {
			return nil, domain.Internal(err, "cart.update_item", "invalid line item ID")
		}
		err = s.repo.UpdateLineItemQuantity(ctx, repository.UpdateLineItemQuantityParams{
			ID:       itemUUID,
			Quantity: *patch.Quantity,
		})
		if err != nil {
			return nil, wrapItemError(err, productID, "failed to update cart item quantity")
		}

	case opCreate:
		if patch.Title == nil || patch.PriceCents == nil {
			return nil, ErrNewItemDataRequired
		}
		cartUUID, err := parseUUID(cart.ID)
		if err != nil {
			return nil, domain.Internal(err, "cart.update_item", "invalid cart ID")
		}
		imageURL := ""
		if patch.ImageURL != nil {
			imageURL = strings.TrimSpace(*patch.ImageURL)
		}
		_, err = s.repo.CreateLineItem(ctx, repository.CreateLineItemParams{
			CartID:     cartUUID,
			ProductID:  productID,
			Title:      *patch.Title,
			PriceCents: *patch.PriceCents,
			ImageUrl:   imageURL,
			Quantity:   *patch.Quantity,
		})
		if err != nil {
			return nil, wrapItemError(err, productID, "failed to create cart item")
		}

	case opNone:
		// Unknown product with no positive quantity: nothing to do. Never
		// fabricate a line item from a remove request.
	}

	return s.GetCart(ctx, cart.ID)
}

// SyncCartWithUser reconciles the caller's anonymous cart with the
// authenticated user's cart on sign-in. The decision table, in order:
//
//  1. no authenticated user: nothing to sync, returns (nil, nil)
//  2. no anonymous id, owned cart exists: owned cart returned unchanged
//  3. no anonymous id, no owned cart: fresh owned cart
//  4. anonymous id resolves to nothing and no owned cart: fresh owned cart
//  5. owned cart is the anonymous cart: returned unchanged
//  6. anonymous cart only: reassigned to the user
//  7. both exist: anonymous items merged into the owned cart, then the
//     anonymous cart is deleted
//
// The owned cart, once it exists, is never deleted by a sync. In case 7 the
// merge writes are durably applied before the delete is issued; an
// interruption in between leaves the anonymous cart for the next sign-in,
// whose re-merge applies only the not-yet-applied items.
func (s *cartService) SyncCartWithUser(ctx context.Context, anonymousCartID string) (*domain.Cart, error) {
	userID, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		return nil, nil
	}

	var ownedRow repository.Cart
	ownedExists := false
	row, err := s.repo.GetCartByOwner(ctx, userID)
	if err == nil {
		ownedRow = row
		ownedExists = true
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to get cart by owner")
	}

	var anonRow repository.Cart
	anonExists := false
	if anonUUID, err := parseUUID(anonymousCartID); err == nil {
		row, err := s.repo.GetCartByID(ctx, anonUUID)
		if err == nil {
			anonRow = row
			anonExists = true
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to get anonymous cart")
		}
	}

	switch {
	case anonymousCartID == "" && ownedExists:
		return s.loadCart(ctx, ownedRow)

	case anonymousCartID == "":
		return s.CreateCart(ctx)

	case !anonExists && !ownedExists:
		return s.CreateCart(ctx)

	// Compare resolved rows, not id strings: the caller's spelling of a
	// UUID may be non-canonical and still resolve to the owned cart.
	case ownedExists && anonExists && ownedRow.ID.Bytes == anonRow.ID.Bytes:
		return s.loadCart(ctx, ownedRow)

	case !ownedExists:
		err := s.repo.ReassignCartOwner(ctx, repository.ReassignCartOwnerParams{
			ID:     anonRow.ID,
			UserID: userID,
		})
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to claim anonymous cart")
		}
		return s.GetCart(ctx, uuidString(anonRow.ID))

	case !anonExists:
		return s.loadCart(ctx, ownedRow)
	}

	return s.mergeCarts(ctx, userID, ownedRow, anonRow)
}

// mergeCarts folds the anonymous cart into the owned cart and deletes the
// anonymous cart. Write ordering is load-bearing: every planned update and
// create must be durable before the source delete is issued, otherwise an
// interruption could lose the anonymous cart's items.
func (s *cartService) mergeCarts(ctx context.Context, userID string, ownedRow, anonRow repository.Cart) (*domain.Cart, error) {
	targetItems, err := s.listItems(ctx, ownedRow.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to list owned cart items")
	}
	incomingItems, err := s.listItems(ctx, anonRow.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to list anonymous cart items")
	}

	plan := MergeItems(targetItems, incomingItems)

	for _, update := range plan.Updates {
		itemUUID, err := parseUUID(update.LineItemID)
		if err != nil {
			return nil, domain.Internal(err, "cart.sync", "invalid line item ID in merge plan")
		}
		err = s.repo.UpdateLineItemQuantity(ctx, repository.UpdateLineItemQuantityParams{
			ID:       itemUUID,
			Quantity: update.Quantity,
		})
		if err != nil {
			return nil, wrapItemError(err, update.LineItemID, "failed to merge cart item quantity")
		}
	}

	for _, create := range plan.Creates {
		_, err := s.repo.CreateLineItem(ctx, repository.CreateLineItemParams{
			CartID:     ownedRow.ID,
			ProductID:  create.ProductID,
			Title:      create.Title,
			PriceCents: create.PriceCents,
			ImageUrl:   create.ImageURL,
			Quantity:   create.Quantity,
		})
		if err != nil {
			return nil, wrapItemError(err, create.ProductID, "failed to merge cart item")
		}
	}

	if err := s.repo.DeleteCart(ctx, anonRow.ID); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.sync", "failed to delete merged anonymous cart")
	}

	merged := events.CartMerged{
		UserID:          userID,
		OwnedCartID:     uuidString(ownedRow.ID),
		AnonymousCartID: uuidString(anonRow.ID),
		ItemsMerged:     len(incomingItems),
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, events.SubjectCartMerged, merged); err != nil {
		s.logger.Warn("failed to publish cart.merged event",
			"owned_cart_id", merged.OwnedCartID,
			"error", err,
		)
	}

	return s.GetCart(ctx, uuidString(ownedRow.ID))
}

// DeleteCart removes a cart. Deleting a cart that no longer exists is a
// no-op; the webhook path may race a user clearing their own cart.
func (s *cartService) DeleteCart(ctx context.Context, cartID string) error {
	cartUUID, err := parseUUID(cartID)
	if err != nil {
		return nil
	}
	if err := s.repo.DeleteCart(ctx, cartUUID); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "cart.delete", "failed to delete cart")
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *cartService) loadCart(ctx context.Context, row repository.Cart) (*domain.Cart, error) {
	items, err := s.listItems(ctx, row.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.load", "failed to list cart items")
	}
	return cartFromRow(row, items), nil
}

func (s *cartService) listItems(ctx context.Context, cartID pgtype.UUID) ([]domain.CartItem, error) {
	rows, err := s.repo.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, len(rows))
	for i, row := range rows {
		items[i] = domain.CartItem{
			ID:         uuidString(row.ID),
			ProductID:  row.ProductID,
			Title:      row.Title,
			PriceCents: row.PriceCents,
			ImageURL:   row.ImageUrl,
			Quantity:   row.Quantity,
		}
	}
	return items, nil
}

func cartFromRow(row repository.Cart, items []domain.CartItem) *domain.Cart {
	if items == nil {
		items = []domain.CartItem{}
	}
	cart := &domain.Cart{
		ID:    uuidString(row.ID),
		Items: items,
	}
	if row.UserID.Valid {
		cart.OwnerUserID = row.UserID.String
	}
	if row.CreatedAt.Valid {
		cart.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		cart.UpdatedAt = row.UpdatedAt.Time
	}
	return cart
}

func parseUUID(id string) (pgtype.UUID, error) {
	var u pgtype.UUID
	if id == "" {
		return u, fmt.Errorf("empty ID")
	}
	if err := u.Scan(id); err != nil {
		return u, fmt.Errorf("invalid ID %q: %w", id, err)
	}
	return u, nil
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	v, err := u.Value()
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func wrapItemError(err error, itemRef, message string) error {
	return domain.WrapError(err, domain.EINTERNAL, "cart.update_item", fmt.Sprintf("%s (%s)", message, itemRef))
}

// patchValidationError converts validator output into a field-level domain
// validation error.
func patchValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Invalid("cart.update_item", "invalid item data")
	}

	var out error
	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "Quantity":
			out = domain.AddFieldError(out, "quantity", "quantity must be a non-negative integer")
		case "PriceCents":
			out = domain.AddFieldError(out, "price", "price must be non-negative")
		default:
			out = domain.AddFieldError(out, strings.ToLower(fe.Field()), "invalid value")
		}
	}
	if ve, ok := out.(*domain.ValidationError); ok {
		ve.Op = "cart.update_item"
	}
	return out
}
