package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/repository"
	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/openhims/finance-gateway/pkg/prom"
)

var (
	ErrMissingItems     = errors.New("invoice payment requires at least one item")
	ErrCautionWithItems = errors.New("caution payment cannot carry items")
	ErrNotFound         = errors.New("error notfound")
)

// IsClientError reports whether err is the caller's fault and should map
// to a 400 rather than a 500.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingItems) ||
		errors.Is(err, ErrCautionWithItems) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, model.ErrValidation)
}

type CashRepository interface {
	Create(ctx context.Context, p *model.CashPayment) error
	Get(ctx context.Context, id uuid.UUID) (*model.CashPayment, error)
	List(ctx context.Context, f model.CashFilter) ([]*model.CashPayment, int64, error)
}

// FinancePublisher announces domain changes on the finance channel.
type FinancePublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type CashService struct {
	cashRepo  CashRepository
	publisher FinancePublisher
}

func NewCashService(cashRepo CashRepository, publisher FinancePublisher) *CashService {
	return &CashService{
		cashRepo:  cashRepo,
		publisher: publisher,
	}
}

// Create validates the request, assigns server-side identifiers, stamps
// the session's project and user, runs the posting pipeline and announces
// the new payment. The payment type decides the item rule: invoice
// payments settle at least one invoice, cautions settle none.
func (s *CashService) Create(ctx context.Context, session *model.Session, req model.CashCreateRequest) (*model.CashPayment, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrValidation, err)
	}
	if req.IsCaution && len(req.Items) > 0 {
		return nil, ErrCautionWithItems
	}
	if !req.IsCaution && len(req.Items) == 0 {
		return nil, ErrMissingItems
	}

	// Identifiers are always assigned here. A client-supplied uuid is
	// ignored rather than rejected so retried submissions cannot forge
	// record identity.
	p := &model.CashPayment{
		UUID:        uuid.New(),
		ProjectID:   session.ProjectID,
		Amount:      req.Amount,
		CurrencyID:  req.CurrencyID,
		CashboxID:   req.CashboxID,
		DebtorUUID:  req.DebtorUUID,
		UserID:      session.UserID,
		Date:        req.Date,
		IsCaution:   req.IsCaution,
		Description: req.Description,
	}
	for _, it := range req.Items {
		p.Items = append(p.Items, &model.CashItem{
			UUID:        uuid.New(),
			PaymentUUID: p.UUID,
			InvoiceUUID: it.InvoiceUUID,
			Amount:      it.Amount,
		})
	}

	if err := s.cashRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create cash payment: %w", err)
	}

	created, err := s.cashRepo.Get(ctx, p.UUID)
	if err != nil {
		return nil, fmt.Errorf("read back cash payment: %w", err)
	}

	prom.IncPaymentsCreated(created.Type())
	s.publish(ctx, created)

	return created, nil
}

// publish announces the payment after the transaction has committed. A
// failed publish never fails the request; the payment is already posted.
func (s *CashService) publish(ctx context.Context, p *model.CashPayment) {
	if s.publisher == nil {
		return
	}
	event := &model.FinanceEvent{
		Event:  model.EventCreate,
		Entity: model.EntityCashPayment,
		UserID: p.UserID,
		UUID:   p.UUID.String(),
		At:     time.Now().UTC(),
	}
	metadata := map[string]string{"channel": model.ChannelFinance}
	if _, err := s.publisher.PublishJSON(ctx, event, metadata); err != nil {
		logger.Warn("cash: event publish failed", "uuid", event.UUID, "error", err)
	}
}

func (s *CashService) Get(ctx context.Context, id uuid.UUID) (*model.CashPayment, error) {
	p, err := s.cashRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCashNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *CashService) List(ctx context.Context, f model.CashFilter) ([]*model.CashPayment, int64, error) {
	return s.cashRepo.List(ctx, f)
}
