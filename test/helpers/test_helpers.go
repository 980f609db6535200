package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/openhims/finance-gateway/internal/repository"
	"github.com/openhims/finance-gateway/pkg/pg"
	"github.com/openhims/finance-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.InventoryEntity{},
		&repository.CashEntity{},
		&repository.CashItemEntity{},
		&repository.PurchaseEntity{},
		&repository.PurchaseItemEntity{},
		&repository.DispatchLogEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, id, projectID int64) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		ID:          id,
		DisplayName: "Test Cashier",
		APIKey:      RandomAPIKey(),
		ProjectID:   projectID,
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestInventory(t *testing.T, db *pg.DB, code, label string, unitPrice, stockOnHand, maximumStock int64) *repository.InventoryEntity {
	ctx := context.Background()
	id := uuid.New()
	item := &repository.InventoryEntity{
		UUID:         id[:],
		Code:         code,
		Label:        label,
		UnitPrice:    unitPrice,
		StockOnHand:  stockOnHand,
		MaximumStock: maximumStock,
	}
	err := db.Write(ctx).Create(item).Error
	require.NoError(t, err)
	return item
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomAPIKey() string {
	return "test-api-key-" + uuid.New().String()
}

func Ptr[T any](v T) *T {
	return &v
}
