package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInventory(t *testing.T, db *testDB, code, label string, onHand, max int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := db.rawDB.Create(&InventoryEntity{
		UUID:         bid(id),
		Code:         code,
		Label:        label,
		UnitPrice:    250,
		StockOnHand:  onHand,
		MaximumStock: max,
	}).Error
	require.NoError(t, err)
	return id
}

func TestInventoryRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB)
	ctx := context.Background()

	seedInventory(t, db, "MED0001", "Paracetamol 500mg", 100, 200)
	seedInventory(t, db, "MED0002", "Amoxicillin 250mg", 50, 100)
	seedInventory(t, db, "SUP0001", "Surgical gloves", 10, 500)

	t.Run("matches label case-insensitively", func(t *testing.T) {
		items, err := repo.Search(ctx, model.InventorySearch{Text: "paraceta"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "MED0001", items[0].Code)
	})

	t.Run("matches code", func(t *testing.T) {
		items, err := repo.Search(ctx, model.InventorySearch{Text: "med00"})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("respects limit", func(t *testing.T) {
		items, err := repo.Search(ctx, model.InventorySearch{Text: "0", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("no match", func(t *testing.T) {
		items, err := repo.Search(ctx, model.InventorySearch{Text: "ibuprofen"})
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestInventoryRepository_Optimal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB)
	ctx := context.Background()

	low := seedInventory(t, db, "MED0001", "Paracetamol 500mg", 30, 200)
	seedInventory(t, db, "MED0002", "Amoxicillin 250mg", 100, 100)

	suggestions, err := repo.Optimal(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, low, suggestions[0].InventoryUUID)
	assert.Equal(t, int64(170), suggestions[0].SuggestedQuantity)
}

func TestInventoryRepository_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB)
	ctx := context.Background()

	id := seedInventory(t, db, "MED0001", "Paracetamol 500mg", 100, 200)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", got.Label)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}
