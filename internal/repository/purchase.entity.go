package repository

import (
	"time"

	"github.com/openhims/finance-gateway/internal/model"
)

type PurchaseEntity struct {
	UUID         []byte    `gorm:"column:uuid;primaryKey"`
	ProjectID    int64     `gorm:"column:project_id"`
	SupplierUUID []byte    `gorm:"column:supplier_uuid"`
	UserID       int64     `gorm:"column:user_id"`
	Date         time.Time `gorm:"column:date"`
	Total        int64     `gorm:"column:total"`
	Note         string    `gorm:"column:note"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (PurchaseEntity) TableName() string {
	return "purchase"
}

type PurchaseItemEntity struct {
	UUID          []byte `gorm:"column:uuid;primaryKey"`
	PurchaseUUID  []byte `gorm:"column:purchase_uuid"`
	InventoryUUID []byte `gorm:"column:inventory_uuid"`
	Quantity      int64  `gorm:"column:quantity"`
	UnitPrice     int64  `gorm:"column:unit_price"`
	Total         int64  `gorm:"column:total"`
}

func (PurchaseItemEntity) TableName() string {
	return "purchase_item"
}

func toPurchaseEntity(p *model.PurchaseOrder) *PurchaseEntity {
	return &PurchaseEntity{
		UUID:         bid(p.UUID),
		ProjectID:    p.ProjectID,
		SupplierUUID: bid(p.SupplierUUID),
		UserID:       p.UserID,
		Date:         p.Date,
		Total:        p.Total,
		Note:         p.Note,
		CreatedAt:    p.CreatedAt,
	}
}

func toPurchaseItemEntity(it *model.PurchaseItem) *PurchaseItemEntity {
	return &PurchaseItemEntity{
		UUID:          bid(it.UUID),
		PurchaseUUID:  bid(it.OrderUUID),
		InventoryUUID: bid(it.InventoryUUID),
		Quantity:      it.Quantity,
		UnitPrice:     it.UnitPrice,
		Total:         it.Total,
	}
}

func toPurchaseModel(e *PurchaseEntity) *model.PurchaseOrder {
	return &model.PurchaseOrder{
		UUID:         fromBid(e.UUID),
		ProjectID:    e.ProjectID,
		SupplierUUID: fromBid(e.SupplierUUID),
		UserID:       e.UserID,
		Date:         e.Date,
		Total:        e.Total,
		Note:         e.Note,
		CreatedAt:    e.CreatedAt,
	}
}

func toPurchaseModels(entities []*PurchaseEntity) []*model.PurchaseOrder {
	orders := make([]*model.PurchaseOrder, 0, len(entities))
	for _, e := range entities {
		orders = append(orders, toPurchaseModel(e))
	}
	return orders
}

func toPurchaseItemModel(e *PurchaseItemEntity) *model.PurchaseItem {
	return &model.PurchaseItem{
		UUID:          fromBid(e.UUID),
		OrderUUID:     fromBid(e.PurchaseUUID),
		InventoryUUID: fromBid(e.InventoryUUID),
		Quantity:      e.Quantity,
		UnitPrice:     e.UnitPrice,
		Total:         e.Total,
	}
}
