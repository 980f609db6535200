package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, p *model.PurchaseOrder) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPurchaseRepository) Get(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseRepository) List(ctx context.Context, f model.PurchaseFilter) ([]*model.PurchaseOrder, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.PurchaseOrder), args.Get(1).(int64), args.Error(2)
}

type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventoryItem), args.Error(1)
}

func (m *MockInventoryRepository) Search(ctx context.Context, s model.InventorySearch) ([]*model.InventoryItem, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InventoryItem), args.Error(1)
}

func (m *MockInventoryRepository) Optimal(ctx context.Context) ([]*model.OptimalPurchase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OptimalPurchase), args.Error(1)
}

func validPurchaseRequest() model.PurchaseCreateRequest {
	return model.PurchaseCreateRequest{
		SupplierUUID: uuid.New(),
		Date:         time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Items: []model.PurchaseItemCreateRequest{
			{InventoryUUID: uuid.New(), Quantity: 40, UnitPrice: 300},
			{InventoryUUID: uuid.New(), Quantity: 10, UnitPrice: 150},
		},
	}
}

func TestPurchaseService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("totals rows server-side", func(t *testing.T) {
		repo := new(MockPurchaseRepository)
		pub := new(MockPublisher)
		svc := NewPurchaseService(repo, new(MockInventoryRepository), pub)

		var stored *model.PurchaseOrder
		repo.On("Create", ctx, mock.AnythingOfType("*model.PurchaseOrder")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*model.PurchaseOrder)
			}).
			Return(nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).Return("1-0", nil)

		created, err := svc.Create(ctx, testSession(), validPurchaseRequest())
		require.NoError(t, err)
		assert.Equal(t, int64(40*300+10*150), created.Total)

		require.NotNil(t, stored)
		assert.Equal(t, int64(1), stored.ProjectID)
		assert.Equal(t, int64(3), stored.UserID)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, int64(12000), stored.Items[0].Total)
		assert.Equal(t, stored.UUID, stored.Items[0].OrderUUID)
	})

	t.Run("empty order is rejected", func(t *testing.T) {
		svc := NewPurchaseService(new(MockPurchaseRepository), new(MockInventoryRepository), nil)

		req := validPurchaseRequest()
		req.Items = nil

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, ErrEmptyOrder)
		assert.True(t, IsClientError(err))
	})

	t.Run("zero quantity is rejected", func(t *testing.T) {
		svc := NewPurchaseService(new(MockPurchaseRepository), new(MockInventoryRepository), nil)

		req := validPurchaseRequest()
		req.Items[0].Quantity = 0

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		svc := NewPurchaseService(new(MockPurchaseRepository), new(MockInventoryRepository), nil)

		req := validPurchaseRequest()
		req.Items[1].UnitPrice = -5

		_, err := svc.Create(ctx, testSession(), req)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("publishes one purchase event", func(t *testing.T) {
		repo := new(MockPurchaseRepository)
		pub := new(MockPublisher)
		svc := NewPurchaseService(repo, new(MockInventoryRepository), pub)

		repo.On("Create", ctx, mock.AnythingOfType("*model.PurchaseOrder")).Return(nil)
		pub.On("PublishJSON", ctx, mock.Anything, map[string]string{"channel": model.ChannelFinance}).Return("1-0", nil)

		_, err := svc.Create(ctx, testSession(), validPurchaseRequest())
		require.NoError(t, err)

		pub.AssertNumberOfCalls(t, "PublishJSON", 1)
		event := pub.Calls[0].Arguments.Get(1).(*model.FinanceEvent)
		assert.Equal(t, model.EntityPurchaseOrder, event.Entity)
	})
}

func TestPurchaseService_Get(t *testing.T) {
	repo := new(MockPurchaseRepository)
	svc := NewPurchaseService(repo, new(MockInventoryRepository), nil)
	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(nil, repository.ErrPurchaseNotFound)

	order, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, order)
}

func TestPurchaseService_Optimal(t *testing.T) {
	inv := new(MockInventoryRepository)
	svc := NewPurchaseService(new(MockPurchaseRepository), inv, nil)
	ctx := context.Background()

	inv.On("Optimal", ctx).Return([]*model.OptimalPurchase{
		{Code: "MED0001", SuggestedQuantity: 170},
	}, nil)

	suggestions, err := svc.Optimal(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, int64(170), suggestions[0].SuggestedQuantity)
}

func TestPurchaseService_SearchInventory(t *testing.T) {
	inv := new(MockInventoryRepository)
	svc := NewPurchaseService(new(MockPurchaseRepository), inv, nil)
	ctx := context.Background()

	query := model.InventorySearch{Text: "para", Limit: 5}
	inv.On("Search", ctx, query).Return([]*model.InventoryItem{
		{Code: "MED0001", Label: "Paracetamol 500mg"},
	}, nil)

	items, err := svc.SearchInventory(ctx, query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "MED0001", items[0].Code)
}
