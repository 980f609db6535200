package model

import "time"

const (
	DispatchStatusDelivered = "delivered"
	DispatchStatusFailed    = "failed"
)

// DispatchLog records one webhook delivery attempt for a finance event.
type DispatchLog struct {
	ID          int64      `json:"id"`
	EventUUID   string     `json:"event_uuid"`
	Entity      string     `json:"entity"`
	Endpoint    string     `json:"endpoint"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
