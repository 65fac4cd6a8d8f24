package main

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/IlyushaZ/rental-store/pkg/database/memory"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateItem(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		item := generateItem(r, 3)

		require.NoError(t, item.Validate())
		assert.Contains(t, []string{"seller-1", "seller-2", "seller-3"}, item.SellerID)
		assert.Positive(t, item.TotalStock)

		if item.Kind.Purchasable() {
			assert.True(t, item.Price.IsPositive())
		} else {
			assert.True(t, item.Price.IsZero())
		}
		if item.Kind.Rentable() {
			assert.True(t, item.PricePerDay.IsPositive())
		}
	}
}

func TestGenerate(t *testing.T) {
	store := memory.New()

	require.NoError(t, generate(context.Background(), store, 25, 2))

	_, total, err := store.Items().GetPage(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	it, err := store.Items().Get(context.Background(), 25)
	require.NoError(t, err)
	assert.Contains(t, []model.ItemKind{model.KindPurchase, model.KindRental, model.KindBoth}, it.Kind)
}
