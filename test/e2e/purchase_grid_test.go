package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	xhttp "github.com/openhims/finance-gateway/pkg/http"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

// purchaseGrid drives the purchase endpoints the way the grid frontend
// does: rows are composed locally, inventory items are picked through the
// typeahead search, and the whole order goes out in a single submit. The
// driver holds nothing but the draft being composed.
type purchaseGrid struct {
	t       *testing.T
	env     *TestEnvironment
	session *model.Session

	supplier uuid.UUID
	date     time.Time
	note     string
	rows     []model.PurchaseItemCreateRequest
}

func newPurchaseGrid(t *testing.T, env *TestEnvironment, session *model.Session, supplier uuid.UUID) *purchaseGrid {
	return &purchaseGrid{
		t:        t,
		env:      env,
		session:  session,
		supplier: supplier,
		date:     time.Now(),
	}
}

func (g *purchaseGrid) do(method, uri string, body []byte, handle func(*xhttp.RequestCtx)) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		req.SetBody(body)
	}
	ctx := &fasthttp.RequestCtx{}
	// Init attaches the ctx to fasthttp's fake server so that using it as a
	// context.Context (ctx.Done) does not dereference a nil server.
	ctx.Init(&req, nil, nil)
	if g.session != nil {
		ctx.SetUserValue("session", g.session)
	}
	handle(ctx)
	return ctx
}

// AddRow appends an empty row and returns its index.
func (g *purchaseGrid) AddRow() int {
	g.rows = append(g.rows, model.PurchaseItemCreateRequest{})
	return len(g.rows) - 1
}

// AddRows appends n empty rows.
func (g *purchaseGrid) AddRows(n int) {
	for i := 0; i < n; i++ {
		g.AddRow()
	}
}

// SelectInventoryItem fills a row from the first typeahead match for text,
// carrying over the item's catalogue unit price.
func (g *purchaseGrid) SelectInventoryItem(row int, text string) *model.InventoryItem {
	ctx := g.do("GET", "/api/v1/inventory/search?text="+text, nil, g.env.PurchaseHandler.SearchInventory)
	require.Equal(g.t, 200, ctx.Response.StatusCode())

	var resp struct {
		Items []*model.InventoryItem `json:"items"`
	}
	require.NoError(g.t, json.Unmarshal(ctx.Response.Body(), &resp))
	require.NotEmpty(g.t, resp.Items, "typeahead found nothing for %q", text)

	item := resp.Items[0]
	g.rows[row].InventoryUUID = item.UUID
	g.rows[row].UnitPrice = item.UnitPrice
	return item
}

func (g *purchaseGrid) AdjustQuantity(row int, quantity int64) {
	g.rows[row].Quantity = quantity
}

func (g *purchaseGrid) AdjustPrice(row int, unitPrice int64) {
	g.rows[row].UnitPrice = unitPrice
}

// SetOptimalPurchase replaces the draft rows with the server's suggested
// order quantities, one row per understocked item.
func (g *purchaseGrid) SetOptimalPurchase() {
	ctx := g.do("GET", "/api/v1/purchases/optimal", nil, g.env.PurchaseHandler.OptimalPurchase)
	require.Equal(g.t, 200, ctx.Response.StatusCode())

	var resp struct {
		Items []*model.OptimalPurchase `json:"items"`
	}
	require.NoError(g.t, json.Unmarshal(ctx.Response.Body(), &resp))

	g.rows = g.rows[:0]
	for _, s := range resp.Items {
		g.rows = append(g.rows, model.PurchaseItemCreateRequest{
			InventoryUUID: s.InventoryUUID,
			Quantity:      s.SuggestedQuantity,
			UnitPrice:     s.UnitPrice,
		})
	}
}

// Submit posts the draft order. It returns the created order on 201, or
// nil with the response status for the caller to assert on.
func (g *purchaseGrid) Submit() (*model.PurchaseOrder, int) {
	body, err := json.Marshal(model.PurchaseCreateRequest{
		SupplierUUID: g.supplier,
		Date:         g.date,
		Note:         g.note,
		Items:        g.rows,
	})
	require.NoError(g.t, err)

	ctx := g.do("POST", "/api/v1/purchases", body, g.env.PurchaseHandler.CreatePurchase)
	status := ctx.Response.StatusCode()
	if status != 201 {
		return nil, status
	}

	var order model.PurchaseOrder
	require.NoError(g.t, json.Unmarshal(ctx.Response.Body(), &order))
	return &order, status
}

// Reset discards the draft, like dismissing the grid modal.
func (g *purchaseGrid) Reset() {
	g.rows = nil
	g.note = ""
}
