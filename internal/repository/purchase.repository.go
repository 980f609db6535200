package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrPurchaseNotFound = errors.New("purchase order not found")

type PurchaseRepository struct {
	*pg.DB
}

func NewPurchaseRepository(db *pg.DB) *PurchaseRepository {
	return &PurchaseRepository{db}
}

// Create writes the order header and its rows in one transaction.
func (r *PurchaseRepository) Create(ctx context.Context, p *model.PurchaseOrder) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).Create(toPurchaseEntity(p)).Error; err != nil {
			return err
		}
		for _, it := range p.Items {
			if err := r.Write(ctx).Create(toPurchaseItemEntity(it)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PurchaseRepository) Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var entity PurchaseEntity
	err := r.Read(ctx).Where("uuid = ?", bid(id)).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	order := toPurchaseModel(&entity)

	var items []*PurchaseItemEntity
	if err := r.Read(ctx).Where("purchase_uuid = ?", bid(id)).Order("uuid").Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		order.Items = append(order.Items, toPurchaseItemModel(it))
	}

	return order, nil
}

func (r *PurchaseRepository) List(ctx context.Context, f model.PurchaseFilter) ([]*model.PurchaseOrder, int64, error) {
	q := r.Read(ctx).Model(&PurchaseEntity{})

	if f.SupplierUUID != nil {
		q = q.Where("supplier_uuid = ?", bid(*f.SupplierUUID))
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "date"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*PurchaseEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPurchaseModels(entities), total, nil
}
