package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/services"
	xhttp "github.com/openhims/finance-gateway/pkg/http"
)

type PurchaseService interface {
	Create(ctx context.Context, session *model.Session, req model.PurchaseCreateRequest) (*model.PurchaseOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, f model.PurchaseFilter) ([]*model.PurchaseOrder, int64, error)
	Optimal(ctx context.Context) ([]*model.OptimalPurchase, error)
	SearchInventory(ctx context.Context, q model.InventorySearch) ([]*model.InventoryItem, error)
}

type PurchaseHandler struct {
	svc PurchaseService
}

func RegisterPurchaseRoutes(e *router.Group, h *PurchaseHandler) {
	e.POST("/purchases", h.CreatePurchase)
	e.GET("/purchases", h.ListPurchases)
	e.GET("/purchases/optimal", h.OptimalPurchase)
	e.GET("/purchases/{uuid}", h.GetPurchase)
	e.GET("/inventory/search", h.SearchInventory)
}

func NewPurchaseHandler(purchaseService PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		svc: purchaseService,
	}
}

type purchaseListResponse struct {
	Items []*model.PurchaseOrder `json:"items"`
	Total int64                  `json:"total"`
}

type optimalResponse struct {
	Items []*model.OptimalPurchase `json:"items"`
}

type inventorySearchResponse struct {
	Items []*model.InventoryItem `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PurchaseHandler) CreatePurchase(ctx *xhttp.RequestCtx) {
	session := sessionFrom(ctx)
	if session == nil {
		writeError(ctx, 401, "no session")
		return
	}

	var req model.PurchaseCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	order, err := h.svc.Create(ctx, session, req)
	if err != nil {
		if services.IsClientError(err) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, "could not record purchase order")
		return
	}
	writeJSON(ctx, 201, order)
}

func (h *PurchaseHandler) GetPurchase(ctx *xhttp.RequestCtx) {
	id, err := uuid.Parse(param(ctx, "uuid"))
	if err != nil {
		writeError(ctx, 400, "invalid uuid")
		return
	}

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "purchase order not found")
			return
		}
		writeError(ctx, 500, "could not load purchase order")
		return
	}
	writeJSON(ctx, 200, order)
}

func (h *PurchaseHandler) ListPurchases(ctx *xhttp.RequestCtx) {
	var f model.PurchaseFilter

	if v := query(ctx, "supplier_uuid"); v != "" {
		if id, e := uuid.Parse(v); e == nil {
			f.SupplierUUID = &id
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, purchaseListResponse{Items: items, Total: total})
}

func (h *PurchaseHandler) OptimalPurchase(ctx *xhttp.RequestCtx) {
	items, err := h.svc.Optimal(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, optimalResponse{Items: items})
}

func (h *PurchaseHandler) SearchInventory(ctx *xhttp.RequestCtx) {
	q := model.InventorySearch{Text: query(ctx, "text")}
	if q.Text == "" {
		writeError(ctx, 400, "text is required")
		return
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			q.Limit = n
		}
	}

	items, err := h.svc.SearchInventory(ctx, q)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, inventorySearchResponse{Items: items})
}
