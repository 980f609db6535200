package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrValidation wraps every request validation failure so transports can
// map the whole family to a single client error status.
var ErrValidation = errors.New("validation failed")

// CashPayment is money received at a cashbox, either settling prior
// invoices or held as a standalone caution deposit. Posting and balance
// arithmetic happen inside the database's stored procedures; this record
// only carries what those procedures need.
type CashPayment struct {
	UUID        uuid.UUID   `json:"uuid"`
	ProjectID   int64       `json:"project_id"`
	Reference   string      `json:"reference,omitempty"`
	Amount      int64       `json:"amount"`
	CurrencyID  int         `json:"currency_id"`
	CashboxID   int64       `json:"cashbox_id"`
	DebtorUUID  uuid.UUID   `json:"debtor_uuid"`
	UserID      int64       `json:"user_id"`
	Date        time.Time   `json:"date"`
	IsCaution   bool        `json:"is_caution"`
	Description string      `json:"description"`
	Items       []*CashItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CashItem links a payment to one invoice it settles in part or full.
type CashItem struct {
	UUID        uuid.UUID  `json:"uuid"`
	PaymentUUID uuid.UUID  `json:"payment_uuid"`
	InvoiceUUID *uuid.UUID `json:"invoice_uuid,omitempty"`
	Amount      int64      `json:"amount"`
}

// Type reports the payment kind used in event payloads and metrics.
func (p *CashPayment) Type() string {
	if p.IsCaution {
		return "caution"
	}
	return "invoice"
}

// CashCreateRequest is the input for creating a cash payment. Project and
// user are deliberately absent: they come from the authenticated session,
// never from the client.
type CashCreateRequest struct {
	UUID        *uuid.UUID              `json:"uuid,omitempty"`
	Amount      int64                   `json:"amount"`
	CurrencyID  int                     `json:"currency_id"`
	CashboxID   int64                   `json:"cashbox_id"`
	DebtorUUID  uuid.UUID               `json:"debtor_uuid"`
	Date        time.Time               `json:"date"`
	IsCaution   bool                    `json:"is_caution"`
	Description string                  `json:"description"`
	Items       []CashItemCreateRequest `json:"items"`
}

type CashItemCreateRequest struct {
	UUID        *uuid.UUID `json:"uuid,omitempty"`
	InvoiceUUID *uuid.UUID `json:"invoice_uuid,omitempty"`
	Amount      int64      `json:"amount"`
}

func (p CashCreateRequest) Validate() error {
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if p.CurrencyID == 0 {
		return errors.New("currency_id is required")
	}
	if p.CashboxID == 0 {
		return errors.New("cashbox_id is required")
	}
	if p.DebtorUUID == uuid.Nil {
		return errors.New("debtor_uuid is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

// CashFilter controls registry queries.
type CashFilter struct {
	CashboxID  *int64
	DebtorUUID *uuid.UUID
	IsCaution  *bool
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
