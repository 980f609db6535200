package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
)

var (
	TestSessionCashier = model.Session{
		UserID:    1,
		ProjectID: 1,
	}

	TestSessionOtherProject = model.Session{
		UserID:    2,
		ProjectID: 9,
	}
)

func NewCashCreateRequest(debtor uuid.UUID, amount int64, items ...model.CashItemCreateRequest) model.CashCreateRequest {
	return model.CashCreateRequest{
		Amount:      amount,
		CurrencyID:  2,
		CashboxID:   1,
		DebtorUUID:  debtor,
		Date:        time.Now(),
		IsCaution:   false,
		Description: "test invoice payment",
		Items:       items,
	}
}

func NewCautionCreateRequest(debtor uuid.UUID, amount int64) model.CashCreateRequest {
	return model.CashCreateRequest{
		Amount:      amount,
		CurrencyID:  2,
		CashboxID:   1,
		DebtorUUID:  debtor,
		Date:        time.Now(),
		IsCaution:   true,
		Description: "test caution deposit",
	}
}

func NewCashItem(invoice uuid.UUID, amount int64) model.CashItemCreateRequest {
	return model.CashItemCreateRequest{
		InvoiceUUID: &invoice,
		Amount:      amount,
	}
}

func NewPurchaseCreateRequest(supplier uuid.UUID, items ...model.PurchaseItemCreateRequest) model.PurchaseCreateRequest {
	return model.PurchaseCreateRequest{
		SupplierUUID: supplier,
		Date:         time.Now(),
		Note:         "test purchase order",
		Items:        items,
	}
}

func NewPurchaseItem(inventory uuid.UUID, quantity, unitPrice int64) model.PurchaseItemCreateRequest {
	return model.PurchaseItemCreateRequest{
		InventoryUUID: inventory,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
	}
}

func CashFilterByCashbox(cashboxID int64) model.CashFilter {
	return model.CashFilter{
		CashboxID: &cashboxID,
		Limit:     50,
		Offset:    0,
		Desc:      false,
	}
}

func CashFilterByTimeRange(from, to time.Time) model.CashFilter {
	return model.CashFilter{
		From:   &from,
		To:     &to,
		Limit:  50,
		Offset: 0,
	}
}

func PurchaseFilterBySupplier(supplier uuid.UUID) model.PurchaseFilter {
	return model.PurchaseFilter{
		SupplierUUID: &supplier,
		Limit:        50,
		Offset:       0,
	}
}

var InvalidCashAmounts = []int64{0, -1, -5000}

func InventorySearchQuery(text string) model.InventorySearch {
	return model.InventorySearch{Text: text, Limit: 10}
}
