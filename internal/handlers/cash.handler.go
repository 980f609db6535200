package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/services"
	xhttp "github.com/openhims/finance-gateway/pkg/http"
)

type CashService interface {
	Create(ctx context.Context, session *model.Session, req model.CashCreateRequest) (*model.CashPayment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.CashPayment, error)
	List(ctx context.Context, f model.CashFilter) ([]*model.CashPayment, int64, error)
}

type CashHandler struct {
	svc CashService
}

func RegisterCashRoutes(e *router.Group, h *CashHandler) {
	e.POST("/cash", h.CreateCash)
	e.GET("/cash", h.ListCash)
	e.GET("/cash/{uuid}", h.GetCash)
}

func NewCashHandler(cashService CashService) *CashHandler {
	return &CashHandler{
		svc: cashService,
	}
}

type cashListResponse struct {
	Items []*model.CashPayment `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CashHandler) CreateCash(ctx *xhttp.RequestCtx) {
	session := sessionFrom(ctx)
	if session == nil {
		writeError(ctx, 401, "no session")
		return
	}

	var req model.CashCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	payment, err := h.svc.Create(ctx, session, req)
	if err != nil {
		if services.IsClientError(err) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, "could not record payment")
		return
	}
	writeJSON(ctx, 201, payment)
}

func (h *CashHandler) GetCash(ctx *xhttp.RequestCtx) {
	id, err := uuid.Parse(param(ctx, "uuid"))
	if err != nil {
		writeError(ctx, 400, "invalid uuid")
		return
	}

	payment, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "payment not found")
			return
		}
		writeError(ctx, 500, "could not load payment")
		return
	}
	writeJSON(ctx, 200, payment)
}

func (h *CashHandler) ListCash(ctx *xhttp.RequestCtx) {
	var f model.CashFilter

	if v := query(ctx, "cashbox_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CashboxID = &id
		}
	}
	if v := query(ctx, "debtor_uuid"); v != "" {
		if id, e := uuid.Parse(v); e == nil {
			f.DebtorUUID = &id
		}
	}
	if v := query(ctx, "is_caution"); v != "" {
		caution := v == "1" || strings.EqualFold(v, "true")
		f.IsCaution = &caution
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
	writeJSON(ctx, 200, cashListResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func param(ctx *xhttp.RequestCtx, key string) string {
	if v, ok := ctx.UserValue(key).(string); ok {
		return v
	}
	return ""
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
