package model

import (
	"github.com/google/uuid"
)

// InventoryItem is a stocked article the purchase grid can order.
type InventoryItem struct {
	UUID         uuid.UUID `json:"uuid"`
	Code         string    `json:"code"`
	Label        string    `json:"label"`
	UnitPrice    int64     `json:"unit_price"`
	StockOnHand  int64     `json:"stock_on_hand"`
	MaximumStock int64     `json:"maximum_stock"`
}

// InventorySearch is a bounded typeahead query over code and label.
type InventorySearch struct {
	Text  string
	Limit int
}
