package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/embla/internal/domain"
)

func item(id, productID string, quantity int64) domain.CartItem {
	return domain.CartItem{
		ID:         id,
		ProductID:  productID,
		Title:      "Product " + productID,
		PriceCents: 1000,
		Quantity:   quantity,
	}
}

func TestMergeItems_QuantityAdditive(t *testing.T) {
	target := []domain.CartItem{item("li-1", "p1", 2)}
	incoming := []domain.CartItem{item("li-9", "p1", 3)}

	plan := MergeItems(target, incoming)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "li-1", plan.Updates[0].LineItemID)
	assert.Equal(t, int64(5), plan.Updates[0].Quantity)
	assert.Empty(t, plan.Creates)
}

func TestMergeItems_CreatesUnknownProducts(t *testing.T) {
	target := []domain.CartItem{item("li-1", "p1", 1)}
	incoming := []domain.CartItem{
		{ID: "li-8", ProductID: "p2", Title: "Widget", PriceCents: 250, ImageURL: "https://img/p2.jpg", Quantity: 4},
	}

	plan := MergeItems(target, incoming)

	assert.Empty(t, plan.Updates)
	require.Len(t, plan.Creates, 1)
	created := plan.Creates[0]
	assert.Equal(t, "p2", created.ProductID)
	assert.Equal(t, "Widget", created.Title)
	assert.Equal(t, int64(250), created.PriceCents)
	assert.Equal(t, "https://img/p2.jpg", created.ImageURL)
	assert.Equal(t, int64(4), created.Quantity)
}

func TestMergeItems_CommutativeOverIncomingOrder(t *testing.T) {
	target := []domain.CartItem{
		item("li-1", "p1", 2),
		item("li-2", "p2", 1),
	}
	a := item("li-7", "p1", 3)
	b := item("li-8", "p3", 5)

	planAB := MergeItems(target, []domain.CartItem{a, b})
	planBA := MergeItems(target, []domain.CartItem{b, a})

	// The resulting set is the same regardless of incoming order.
	assert.ElementsMatch(t, planAB.Updates, planBA.Updates)
	assert.ElementsMatch(t, planAB.Creates, planBA.Creates)
}

func TestMergeItems_NeverDeletesTargetItems(t *testing.T) {
	target := []domain.CartItem{
		item("li-1", "p1", 2),
		item("li-2", "p2", 1),
	}

	plan := MergeItems(target, nil)

	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Creates)
}

func TestMergeItems_EmptyTarget(t *testing.T) {
	incoming := []domain.CartItem{item("li-1", "p1", 2)}

	plan := MergeItems(nil, incoming)

	assert.Empty(t, plan.Updates)
	require.Len(t, plan.Creates, 1)
	assert.Equal(t, int64(2), plan.Creates[0].Quantity)
}
