package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrInventoryNotFound = errors.New("inventory item not found")

type InventoryEntity struct {
	UUID         []byte `gorm:"column:uuid;primaryKey"`
	Code         string `gorm:"column:code"`
	Label        string `gorm:"column:label"`
	UnitPrice    int64  `gorm:"column:unit_price"`
	StockOnHand  int64  `gorm:"column:stock_on_hand"`
	MaximumStock int64  `gorm:"column:maximum_stock"`
}

func (InventoryEntity) TableName() string {
	return "inventory"
}

func toInventoryModel(e *InventoryEntity) *model.InventoryItem {
	return &model.InventoryItem{
		UUID:         fromBid(e.UUID),
		Code:         e.Code,
		Label:        e.Label,
		UnitPrice:    e.UnitPrice,
		StockOnHand:  e.StockOnHand,
		MaximumStock: e.MaximumStock,
	}
}

type InventoryRepository struct {
	*pg.DB
}

func NewInventoryRepository(db *pg.DB) *InventoryRepository {
	return &InventoryRepository{db}
}

func (r *InventoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	var entity InventoryEntity
	err := r.Read(ctx).Where("uuid = ?", bid(id)).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInventoryNotFound
		}
		return nil, err
	}
	return toInventoryModel(&entity), nil
}

// Search matches code and label case-insensitively, prefix matches on code
// first so scanning a code in the typeahead ranks exact articles on top.
func (r *InventoryRepository) Search(ctx context.Context, s model.InventorySearch) ([]*model.InventoryItem, error) {
	limit := s.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	pattern := "%" + strings.ToLower(s.Text) + "%"
	var entities []*InventoryEntity
	err := r.Read(ctx).
		Where("LOWER(code) LIKE ? OR LOWER(label) LIKE ?", pattern, pattern).
		Order("code").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	items := make([]*model.InventoryItem, 0, len(entities))
	for _, e := range entities {
		items = append(items, toInventoryModel(e))
	}
	return items, nil
}

// Optimal lists items below their maximum stock level with the quantity
// that would refill them.
func (r *InventoryRepository) Optimal(ctx context.Context) ([]*model.OptimalPurchase, error) {
	var entities []*InventoryEntity
	err := r.Read(ctx).
		Where("stock_on_hand < maximum_stock").
		Order("code").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	suggestions := make([]*model.OptimalPurchase, 0, len(entities))
	for _, e := range entities {
		suggestions = append(suggestions, &model.OptimalPurchase{
			InventoryUUID:     fromBid(e.UUID),
			Code:              e.Code,
			Label:             e.Label,
			UnitPrice:         e.UnitPrice,
			StockOnHand:       e.StockOnHand,
			MaximumStock:      e.MaximumStock,
			SuggestedQuantity: e.MaximumStock - e.StockOnHand,
		})
	}
	return suggestions, nil
}
