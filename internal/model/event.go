package model

import "time"

// ChannelFinance is the stream every finance domain event is published on.
const ChannelFinance = "finance"

const (
	EventCreate = "create"

	EntityCashPayment   = "cash_payment"
	EntityPurchaseOrder = "purchase_order"
)

// FinanceEvent announces a domain change on the finance channel so other
// subsystems (reporting, dashboards) can react without polling.
type FinanceEvent struct {
	Event  string    `json:"event"`
	Entity string    `json:"entity"`
	UserID int64     `json:"user_id"`
	UUID   string    `json:"uuid"`
	At     time.Time `json:"at"`
}
