package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCashNotFound is returned when a payment does not exist.
	ErrCashNotFound = errors.New("cash payment not found")
)

// The posting pipeline. Each statement is one stored procedure; the
// procedures hold the balance and posting rules, the application only
// sequences them.
const (
	callStageCash     = "CALL stage_cash(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	callStageCashItem = "CALL stage_cash_item(?, ?, ?, ?)"
	callCalcBalances  = "CALL calculate_cash_invoice_balances(?)"
	callWriteCash     = "CALL write_cash(?)"
	callWriteItems    = "CALL write_cash_items(?)"
	callPostCash      = "CALL post_cash(?)"
)

type CashRepository struct {
	*pg.DB
}

func NewCashRepository(db *pg.DB) *CashRepository {
	return &CashRepository{db}
}

// Create runs the full posting pipeline inside one transaction: stage the
// payment, stage each item, recalculate invoice balances, write the
// payment and its items, then post. Any failure rolls the whole payment
// back.
func (r *CashRepository) Create(ctx context.Context, p *model.CashPayment) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).Exec(callStageCash, stageCashArgs(p)...).Error; err != nil {
			return err
		}

		for _, it := range p.Items {
			if err := r.Write(ctx).Exec(callStageCashItem, stageCashItemArgs(it)...).Error; err != nil {
				return err
			}
		}

		id := bid(p.UUID)
		if err := r.Write(ctx).Exec(callCalcBalances, id).Error; err != nil {
			return err
		}
		if err := r.Write(ctx).Exec(callWriteCash, id).Error; err != nil {
			return err
		}
		if err := r.Write(ctx).Exec(callWriteItems, id).Error; err != nil {
			return err
		}
		return r.Write(ctx).Exec(callPostCash, id).Error
	})
}

func (r *CashRepository) Get(ctx context.Context, id uuid.UUID) (*model.CashPayment, error) {
	var entity CashEntity
	err := r.Read(ctx).Where("uuid = ?", bid(id)).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCashNotFound
		}
		return nil, err
	}

	payment := toCashModel(&entity)

	var items []*CashItemEntity
	if err := r.Read(ctx).Where("cash_uuid = ?", bid(id)).Order("uuid").Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		payment.Items = append(payment.Items, toCashItemModel(it))
	}

	return payment, nil
}

func (r *CashRepository) List(ctx context.Context, f model.CashFilter) ([]*model.CashPayment, int64, error) {
	q := r.Read(ctx).Model(&CashEntity{})

	if f.CashboxID != nil {
		q = q.Where("cashbox_id = ?", *f.CashboxID)
	}
	if f.DebtorUUID != nil {
		q = q.Where("debtor_uuid = ?", bid(*f.DebtorUUID))
	}
	if f.IsCaution != nil {
		q = q.Where("is_caution = ?", *f.IsCaution)
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

	var entities []*CashEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCashModels(entities), total, nil
}
