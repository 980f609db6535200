package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PurchaseOrder is an order of inventory items from a supplier. The grid
// frontend drives this through the purchase endpoints.
type PurchaseOrder struct {
	UUID         uuid.UUID       `json:"uuid"`
	ProjectID    int64           `json:"project_id"`
	SupplierUUID uuid.UUID       `json:"supplier_uuid"`
	UserID       int64           `json:"user_id"`
	Date         time.Time       `json:"date"`
	Total        int64           `json:"total"`
	Note         string          `json:"note,omitempty"`
	Items        []*PurchaseItem `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PurchaseItem struct {
	UUID          uuid.UUID `json:"uuid"`
	OrderUUID     uuid.UUID `json:"order_uuid"`
	InventoryUUID uuid.UUID `json:"inventory_uuid"`
	Quantity      int64     `json:"quantity"`
	UnitPrice     int64     `json:"unit_price"`
	Total         int64     `json:"total"`
}

type PurchaseCreateRequest struct {
	UUID         *uuid.UUID                  `json:"uuid,omitempty"`
	SupplierUUID uuid.UUID                   `json:"supplier_uuid"`
	Date         time.Time                   `json:"date"`
	Note         string                      `json:"note,omitempty"`
	Items        []PurchaseItemCreateRequest `json:"items"`
}

type PurchaseItemCreateRequest struct {
	InventoryUUID uuid.UUID `json:"inventory_uuid"`
	Quantity      int64     `json:"quantity"`
	UnitPrice     int64     `json:"unit_price"`
}

func (p PurchaseCreateRequest) Validate() error {
	if p.SupplierUUID == uuid.Nil {
		return errors.New("supplier_uuid is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

type PurchaseFilter struct {
	SupplierUUID *uuid.UUID
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
	Desc         bool
}

// OptimalPurchase is the suggested order quantity for one inventory item,
// the data behind the purchase grid's "optimal purchase" action.
type OptimalPurchase struct {
	InventoryUUID     uuid.UUID `json:"inventory_uuid"`
	Code              string    `json:"code"`
	Label             string    `json:"label"`
	UnitPrice         int64     `json:"unit_price"`
	StockOnHand       int64     `json:"stock_on_hand"`
	MaximumStock      int64     `json:"maximum_stock"`
	SuggestedQuantity int64     `json:"suggested_quantity"`
}
