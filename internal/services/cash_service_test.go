package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCashRepository struct {
	mock.Mock
}

func (m *MockCashRepository) Create(ctx context.Context, p *model.CashPayment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockCashRepository) Get(ctx context.Context, id uuid.UUID) (*model.CashPayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashPayment), args.Error(1)
}

func (m *MockCashRepository) List(ctx context.Context, f model.CashFilter) ([]*model.CashPayment, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.CashPayment), args.Get(1).(int64), args.Error(2)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func validInvoiceRequest() model.CashCreateRequest {
	invoiceID := uuid.New()
	return model.CashCreateRequest{
		Amount:     2500,
		CurrencyID: 2,
		CashboxID:  7,
		DebtorUUID: uuid.New(),
		Date:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Items: []model.CashItemCreateRequest{
			{InvoiceUUID: &invoiceID, Amount: 2500},
		},
	}
}

func testSession() *model.Session {
	return &model.Session{UserID: 3, ProjectID: 1}
}

func TestCashService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns identifiers and stamps session", func(t *testing.T) {
		repo := new(MockCashRepository)
		pub := new(MockPublisher)
		svc := NewCashService(repo, pub)

		var stored *model.CashPayment
		repo.On("Create", ctx, mock.AnythingOfType("*model.CashPayment")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*model.CashPayment)
			}).
			Return(nil)
		repo.On("Get", ctx, mock.AnythingOfType("uuid.UUID")).
			Return(&model.CashPayment{Reference: "CP.TPA.1"}, nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).Return("1-0", nil)

		req := validInvoiceRequest()
		forged := uuid.New()
		req.UUID = &forged

		created, err := svc.Create(ctx, testSession(), req)
		require.NoError(t, err)
		assert.Equal(t, "CP.TPA.1", created.Reference)

		require.NotNil(t, stored)
		assert.NotEqual(t, uuid.Nil, stored.UUID)
		assert.NotEqual(t, forged, stored.UUID, "client-supplied identifier must be ignored")
		assert.Equal(t, int64(1), stored.ProjectID)
		assert.Equal(t, int64(3), stored.UserID)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, stored.UUID, stored.Items[0].PaymentUUID)
		assert.NotEqual(t, uuid.Nil, stored.Items[0].UUID)
	})

	t.Run("invoice payment without items is rejected", func(t *testing.T) {
		repo := new(MockCashRepository)
		svc := NewCashService(repo, nil)

		req := validInvoiceRequest()
		req.Items = nil

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, ErrMissingItems)
		assert.True(t, IsClientError(err))
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("caution with items is rejected", func(t *testing.T) {
		repo := new(MockCashRepository)
		svc := NewCashService(repo, nil)

		req := validInvoiceRequest()
		req.IsCaution = true

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, ErrCautionWithItems)
		assert.True(t, IsClientError(err))
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("caution without items succeeds", func(t *testing.T) {
		repo := new(MockCashRepository)
		pub := new(MockPublisher)
		svc := NewCashService(repo, pub)

		repo.On("Create", ctx, mock.AnythingOfType("*model.CashPayment")).Return(nil)
		repo.On("Get", ctx, mock.AnythingOfType("uuid.UUID")).
			Return(&model.CashPayment{Reference: "CP.TPA.2", IsCaution: true}, nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).Return("1-0", nil)

		req := validInvoiceRequest()
		req.IsCaution = true
		req.Items = nil

		created, err := svc.Create(ctx, testSession(), req)
		require.NoError(t, err)
		assert.Equal(t, "caution", created.Type())
	})

	t.Run("validation failure maps to client error", func(t *testing.T) {
		svc := NewCashService(new(MockCashRepository), nil)

		req := validInvoiceRequest()
		req.Amount = 0

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, model.ErrValidation)
		assert.True(t, IsClientError(err))
	})

	t.Run("publishes exactly one event per payment", func(t *testing.T) {
		repo := new(MockCashRepository)
		pub := new(MockPublisher)
		svc := NewCashService(repo, pub)

		repo.On("Create", ctx, mock.AnythingOfType("*model.CashPayment")).Return(nil)
		repo.On("Get", ctx, mock.AnythingOfType("uuid.UUID")).
			Return(&model.CashPayment{UUID: uuid.New(), UserID: 3}, nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).Return("1-0", nil)

		_, err := svc.Create(ctx, testSession(), validInvoiceRequest())
		require.NoError(t, err)

		pub.AssertNumberOfCalls(t, "PublishJSON", 1)
		event := pub.Calls[0].Arguments.Get(1).(*model.FinanceEvent)
		assert.Equal(t, model.EventCreate, event.Event)
		assert.Equal(t, model.EntityCashPayment, event.Entity)
		assert.Equal(t, int64(3), event.UserID)
		assert.NotEmpty(t, event.UUID)
		assert.False(t, event.At.IsZero())
	})

	t.Run("repository failure publishes nothing", func(t *testing.T) {
		repo := new(MockCashRepository)
		pub := new(MockPublisher)
		svc := NewCashService(repo, pub)

		repo.On("Create", ctx, mock.AnythingOfType("*model.CashPayment")).
			Return(errors.New("deadlock"))

		_, err := svc.Create(ctx, testSession(), validInvoiceRequest())
		require.Error(t, err)
		assert.False(t, IsClientError(err))
		pub.AssertNotCalled(t, "PublishJSON")
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		repo := new(MockCashRepository)
		pub := new(MockPublisher)
		svc := NewCashService(repo, pub)

		repo.On("Create", ctx, mock.AnythingOfType("*model.CashPayment")).Return(nil)
		repo.On("Get", ctx, mock.AnythingOfType("uuid.UUID")).
			Return(&model.CashPayment{Reference: "CP.TPA.3"}, nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).
			Return("", errors.New("stream down"))

		created, err := svc.Create(ctx, testSession(), validInvoiceRequest())
		require.NoError(t, err)
		assert.Equal(t, "CP.TPA.3", created.Reference)
	})
}

func TestCashService_Get(t *testing.T) {
	t.Run("unknown id maps to not found", func(t *testing.T) {
		repo := new(MockCashRepository)
		svc := NewCashService(repo, nil)
		id := uuid.New()
		repo.On("Get", mock.Anything, id).Return(nil, repository.ErrCashNotFound)

		p, err := svc.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, p)
	})

	t.Run("repository failure is passed through", func(t *testing.T) {
		repo := new(MockCashRepository)
		svc := NewCashService(repo, nil)
		id := uuid.New()
		dbErr := errors.New("connection refused")
		repo.On("Get", mock.Anything, id).Return(nil, dbErr)

		_, err := svc.Get(context.Background(), id)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestCashService_List(t *testing.T) {
	repo := new(MockCashRepository)
	svc := NewCashService(repo, nil)
	ctx := context.Background()

	filter := model.CashFilter{Limit: 10}
	repo.On("List", ctx, filter).
		Return([]*model.CashPayment{{Reference: "CP.TPA.1"}}, int64(1), nil)

	payments, total, err := svc.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, payments, 1)
}
