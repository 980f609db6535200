package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/repository"
	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/openhims/finance-gateway/pkg/prom"
)

var (
	ErrEmptyOrder      = errors.New("purchase order requires at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidPrice    = errors.New("item unit price cannot be negative")
)

type PurchaseRepository interface {
	Create(ctx context.Context, p *model.PurchaseOrder) error
	Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, f model.PurchaseFilter) ([]*model.PurchaseOrder, int64, error)
}

type InventoryRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error)
	Search(ctx context.Context, s model.InventorySearch) ([]*model.InventoryItem, error)
	Optimal(ctx context.Context) ([]*model.OptimalPurchase, error)
}

type PurchaseService struct {
	purchaseRepo  PurchaseRepository
	inventoryRepo InventoryRepository
	publisher     FinancePublisher
}

func NewPurchaseService(purchaseRepo PurchaseRepository, inventoryRepo InventoryRepository, publisher FinancePublisher) *PurchaseService {
	return &PurchaseService{
		purchaseRepo:  purchaseRepo,
		inventoryRepo: inventoryRepo,
		publisher:     publisher,
	}
}

// Create builds the order from the request, totals each row server-side
// and announces it on the finance channel. Rows with zero quantity are
// rejected rather than silently dropped so the grid surfaces the mistake.
func (s *PurchaseService) Create(ctx context.Context, session *model.Session, req model.PurchaseCreateRequest) (*model.PurchaseOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrValidation, err)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	p := &model.PurchaseOrder{
		UUID:         uuid.New(),
		ProjectID:    session.ProjectID,
		SupplierUUID: req.SupplierUUID,
		UserID:       session.UserID,
		Date:         req.Date,
		Note:         req.Note,
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidPrice
		}
		rowTotal := it.Quantity * it.UnitPrice
		p.Items = append(p.Items, &model.PurchaseItem{
			UUID:          uuid.New(),
			OrderUUID:     p.UUID,
			InventoryUUID: it.InventoryUUID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Total:         rowTotal,
		})
		p.Total += rowTotal
	}

	if err := s.purchaseRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}

	prom.IncPurchasesCreated()
	s.publish(ctx, p)

	return p, nil
}

func (s *PurchaseService) publish(ctx context.Context, p *model.PurchaseOrder) {
	if s.publisher == nil {
		return
	}
	event := &model.FinanceEvent{
		Event:  model.EventCreate,
		Entity: model.EntityPurchaseOrder,
		UserID: p.UserID,
		UUID:   p.UUID.String(),
		At:     time.Now().UTC(),
	}
	metadata := map[string]string{"channel": model.ChannelFinance}
	if _, err := s.publisher.PublishJSON(ctx, event, metadata); err != nil {
		logger.Warn("purchase: event publish failed", "uuid", event.UUID, "error", err)
	}
}

func (s *PurchaseService) Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	p, err := s.purchaseRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPurchaseNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PurchaseService) List(ctx context.Context, f model.PurchaseFilter) ([]*model.PurchaseOrder, int64, error) {
	return s.purchaseRepo.List(ctx, f)
}

// Optimal suggests refill quantities for understocked inventory, the data
// behind the grid's optimal purchase action.
func (s *PurchaseService) Optimal(ctx context.Context) ([]*model.OptimalPurchase, error) {
	return s.inventoryRepo.Optimal(ctx)
}

// SearchInventory backs the grid's typeahead item selector.
func (s *PurchaseService) SearchInventory(ctx context.Context, q model.InventorySearch) ([]*model.InventoryItem, error) {
	return s.inventoryRepo.Search(ctx, q)
}
