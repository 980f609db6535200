package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
)

// bid converts an identifier to the 16-byte binary form the database
// stores and the stored procedures expect.
func bid(u uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, u[:])
	return b
}

// bidPtr is bid for optional identifiers; nil stays nil so the database
// sees NULL.
func bidPtr(u *uuid.UUID) interface{} {
	if u == nil {
		return nil
	}
	return bid(*u)
}

func fromBid(b []byte) uuid.UUID {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil
	}
	return u
}

// The stored procedures take positional arguments in a fixed order. These
// shapers are the single place that order is encoded.

func stageCashArgs(p *model.CashPayment) []interface{} {
	return []interface{}{
		bid(p.UUID),
		p.ProjectID,
		p.Amount,
		p.CurrencyID,
		p.CashboxID,
		bid(p.DebtorUUID),
		p.UserID,
		p.Date,
		p.IsCaution,
		p.Description,
	}
}

func stageCashItemArgs(it *model.CashItem) []interface{} {
	return []interface{}{
		bid(it.UUID),
		bid(it.PaymentUUID),
		it.Amount,
		bidPtr(it.InvoiceUUID),
	}
}

// CashEntity maps the cash table for registry reads. Writes never go
// through this entity; the posting procedures own them.
type CashEntity struct {
	UUID        []byte    `db:"uuid"        gorm:"primaryKey;column:uuid"`
	ProjectID   int64     `db:"project_id"  gorm:"column:project_id;not null;index"`
	Reference   string    `db:"reference"   gorm:"column:reference"`
	Amount      int64     `db:"amount"      gorm:"column:amount;not null"`
	CurrencyID  int       `db:"currency_id" gorm:"column:currency_id;not null"`
	CashboxID   int64     `db:"cashbox_id"  gorm:"column:cashbox_id;not null;index"`
	DebtorUUID  []byte    `db:"debtor_uuid" gorm:"column:debtor_uuid;not null;index"`
	UserID      int64     `db:"user_id"     gorm:"column:user_id;not null"`
	Date        time.Time `db:"date"        gorm:"column:date;not null"`
	IsCaution   bool      `db:"is_caution"  gorm:"column:is_caution;not null"`
	Description string    `db:"description" gorm:"column:description"`
	CreatedAt   time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (CashEntity) TableName() string { return "cash" }

type CashItemEntity struct {
	UUID        []byte `db:"uuid"         gorm:"primaryKey;column:uuid"`
	CashUUID    []byte `db:"cash_uuid"    gorm:"column:cash_uuid;not null;index"`
	InvoiceUUID []byte `db:"invoice_uuid" gorm:"column:invoice_uuid"`
	Amount      int64  `db:"amount"       gorm:"column:amount;not null"`
}

func (CashItemEntity) TableName() string { return "cash_item" }

func toCashModel(e *CashEntity) *model.CashPayment {
	if e == nil {
		return nil
	}
	return &model.CashPayment{
		UUID:        fromBid(e.UUID),
		ProjectID:   e.ProjectID,
		Reference:   e.Reference,
		Amount:      e.Amount,
		CurrencyID:  e.CurrencyID,
		CashboxID:   e.CashboxID,
		DebtorUUID:  fromBid(e.DebtorUUID),
		UserID:      e.UserID,
		Date:        e.Date,
		IsCaution:   e.IsCaution,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func toCashModels(entities []*CashEntity) []*model.CashPayment {
	if entities == nil {
		return nil
	}
	models := make([]*model.CashPayment, len(entities))
	for i, e := range entities {
		models[i] = toCashModel(e)
	}
	return models
}

func toCashItemModel(e *CashItemEntity) *model.CashItem {
	if e == nil {
		return nil
	}
	it := &model.CashItem{
		UUID:        fromBid(e.UUID),
		PaymentUUID: fromBid(e.CashUUID),
		Amount:      e.Amount,
	}
	if len(e.InvoiceUUID) > 0 {
		inv := fromBid(e.InvoiceUUID)
		it.InvoiceUUID = &inv
	}
	return it
}
