package service

import (
	"github.com/dukerupert/embla/internal/domain"
)

// QuantityUpdate sets an existing line item to a new absolute quantity.
type QuantityUpdate struct {
	LineItemID string
	Quantity   int64
}

// MergePlan is the output of MergeItems: quantity updates against the target
// cart's existing lines plus new lines to create under the target cart. The
// plan never deletes target items; deleting the absorbed source cart is the
// caller's job, after the plan has been fully applied.
type MergePlan struct {
	Updates []QuantityUpdate
	Creates []domain.CartItem
}

// MergeItems reconciles an incoming item set into a target item set. For each
// incoming item: if the target already holds the same product, quantities are
// summed (merging two carts must not lose either side's quantity); otherwise
// the incoming item is scheduled for creation with its add-time snapshot
// preserved. Pure computation, no side effects; the result is independent of
// incoming item order.
func MergeItems(targetItems, incomingItems []domain.CartItem) MergePlan {
	byProduct := make(map[string]*domain.CartItem, len(targetItems))
	for i := range targetItems {
		byProduct[targetItems[i].ProductID] = &targetItems[i]
	}

	var plan MergePlan
	for _, incoming := range incomingItems {
		if existing, ok := byProduct[incoming.ProductID]; ok {
			plan.Updates = append(plan.Updates, QuantityUpdate{
				LineItemID: existing.ID,
				Quantity:   existing.Quantity + incoming.Quantity,
			})
			continue
		}
		plan.Creates = append(plan.Creates, domain.CartItem{
			ProductID:  incoming.ProductID,
			Title:      incoming.Title,
			PriceCents: incoming.PriceCents,
			ImageURL:   incoming.ImageURL,
			Quantity:   incoming.Quantity,
		})
	}
	return plan
}
