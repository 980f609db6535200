package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/queue"
	"github.com/openhims/finance-gateway/test/fixtures"
	"github.com/openhims/finance-gateway/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_PurchaseGridSubmit(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 40, 200)
	helpers.CreateTestInventory(t, env.DB, "PARACET", "Paracetamol 500mg", 50, 300, 300)

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())

	row := grid.AddRow()
	item := grid.SelectInventoryItem(row, "quinine")
	assert.Equal(t, "QUININE", item.Code)
	grid.AdjustQuantity(row, 100)

	order, status := grid.Submit()
	require.Equal(t, 201, status)
	assert.NotEqual(t, uuid.Nil, order.UUID)
	assert.Equal(t, fixtures.TestSessionCashier.ProjectID, order.ProjectID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(100), order.Items[0].Quantity)
	assert.Equal(t, int64(120), order.Items[0].UnitPrice)
	// totals come from the server, never from the submitted draft
	assert.Equal(t, int64(12000), order.Items[0].Total)
	assert.Equal(t, int64(12000), order.Total)
}

func TestE2E_PurchaseGridAdjustments(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 40, 200)
	helpers.CreateTestInventory(t, env.DB, "PARACET", "Paracetamol 500mg", 50, 100, 300)

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())
	grid.AddRows(2)

	grid.SelectInventoryItem(0, "quinine")
	grid.AdjustQuantity(0, 10)
	grid.AdjustPrice(0, 110) // negotiated below catalogue

	grid.SelectInventoryItem(1, "paracet")
	grid.AdjustQuantity(1, 20)

	order, status := grid.Submit()
	require.Equal(t, 201, status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(10*110+20*50), order.Total)
}

func TestE2E_PurchaseGridOptimalPurchase(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	// one understocked, one full
	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 30, 200)
	helpers.CreateTestInventory(t, env.DB, "PARACET", "Paracetamol 500mg", 50, 300, 300)

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())
	grid.SetOptimalPurchase()

	order, status := grid.Submit()
	require.Equal(t, 201, status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(170), order.Items[0].Quantity)
	assert.Equal(t, int64(170*120), order.Total)
}

func TestE2E_PurchaseGridEmptySubmitRejected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())

	order, status := grid.Submit()
	assert.Equal(t, 400, status)
	assert.Nil(t, order)
}

func TestE2E_PurchaseGridResetDiscardsRows(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 40, 200)

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())
	row := grid.AddRow()
	grid.SelectInventoryItem(row, "quinine")
	grid.AdjustQuantity(row, 5)

	grid.Reset()

	order, status := grid.Submit()
	assert.Equal(t, 400, status)
	assert.Nil(t, order)
}

func TestE2E_PurchaseGridWithoutSession(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	grid := newPurchaseGrid(t, env, nil, uuid.New())
	grid.AddRow()
	grid.AdjustQuantity(0, 1)

	order, status := grid.Submit()
	assert.Equal(t, 401, status)
	assert.Nil(t, order)
}

func TestE2E_PurchaseEventPublished(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 40, 200)

	grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, uuid.New())
	row := grid.AddRow()
	grid.SelectInventoryItem(row, "quinine")
	grid.AdjustQuantity(row, 10)

	order, status := grid.Submit()
	require.Equal(t, 201, status)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var event model.FinanceEvent
		err := json.Unmarshal(qMsg.Data, &event)
		assert.NoError(t, err)
		assert.Equal(t, model.EventCreate, event.Event)
		assert.Equal(t, model.EntityPurchaseOrder, event.Entity)
		assert.Equal(t, order.UUID.String(), event.UUID)
		received <- true
		return nil
	}

	err := env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("purchase event not consumed within timeout")
	}

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMessages)
}

func TestE2E_PurchaseRegistryList(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	helpers.CreateTestInventory(t, env.DB, "QUININE", "Quinine sulphate 500mg", 120, 40, 200)

	supplier := uuid.New()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		grid := newPurchaseGrid(t, env, &fixtures.TestSessionCashier, supplier)
		row := grid.AddRow()
		grid.SelectInventoryItem(row, "quinine")
		grid.AdjustQuantity(row, int64(i+1))
		_, status := grid.Submit()
		require.Equal(t, 201, status)
	}

	orders, total, err := env.PurchaseService.List(ctx, fixtures.PurchaseFilterBySupplier(supplier))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)
}
