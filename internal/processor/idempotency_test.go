package processor

import (
	"context"
	"testing"
	"time"

	"github.com/openhims/finance-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory stand-in for the Redis adapter.
type mockRedisAdapter struct {
	data map[string][]byte
	ttls map[string]time.Time
}

func newMockRedisAdapter() *mockRedisAdapter {
	return &mockRedisAdapter{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Time),
	}
}

func (m *mockRedisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (m *mockRedisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *mockRedisAdapter) Get(key string) ([]byte, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return nil, redis.NilError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, redis.NilError
}

func (m *mockRedisAdapter) Del(key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *mockRedisAdapter) Exist(key string) (int64, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return 0, nil
	}
	if _, ok := m.data[key]; ok {
		return 1, nil
	}
	return 0, nil
}

// Stream methods are unused by the idempotency service.
func (m *mockRedisAdapter) Client() goredis.UniversalClient { return nil }
func (m *mockRedisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XAddWithID(key string, id string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]redis.StreamMessage, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XAck(key, group string, ids ...string) error         { return nil }
func (m *mockRedisAdapter) XGroupCreateMkStream(key, group, start string) error { return nil }
func (m *mockRedisAdapter) XLen(key string) (int64, error)                      { return 0, nil }
func (m *mockRedisAdapter) XDel(key string, ids ...string) error                { return nil }
func (m *mockRedisAdapter) XTrimApprox(key string, maxLen int64) error          { return nil }
func (m *mockRedisAdapter) XPending(key, group string) (*goredis.XPending, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.StreamMessage, error) {
	return nil, nil
}

func TestIdempotencyService_AcquireDispatchLock_FirstAttempt(t *testing.T) {
	service := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := service.AcquireDispatchLock(ctx, "event-1")
	require.NoError(t, err)
	require.NotNil(t, dc)
	assert.Equal(t, "event-1", dc.EventUUID)
	assert.Equal(t, 0, dc.RetryCount)
	assert.False(t, dc.IsRetry)
	assert.True(t, dc.lockAcquired)
}

func TestIdempotencyService_AcquireDispatchLock_Concurrent(t *testing.T) {
	service := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	ctx := context.Background()

	dc1, err := service.AcquireDispatchLock(ctx, "event-2")
	require.NoError(t, err)

	dc2, err := service.AcquireDispatchLock(ctx, "event-2")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, dc2)

	// after release the second consumer can pick it up
	require.NoError(t, service.ReleaseLock(ctx, dc1))
	dc3, err := service.AcquireDispatchLock(ctx, "event-2")
	require.NoError(t, err)
	assert.NotNil(t, dc3)
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	service := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := service.AcquireDispatchLock(ctx, "event-3")
	require.NoError(t, err)

	require.NoError(t, service.MarkSuccess(ctx, dc))
	assert.False(t, dc.lockAcquired)

	dispatched, err := service.IsDispatched(ctx, "event-3")
	require.NoError(t, err)
	assert.True(t, dispatched)

	// redelivery of the same event is refused
	_, err = service.AcquireDispatchLock(ctx, "event-3")
	assert.ErrorIs(t, err, ErrAlreadyDispatched)
}

func TestIdempotencyService_MarkFailure_IncrementsRetries(t *testing.T) {
	service := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := service.AcquireDispatchLock(ctx, "event-4")
	require.NoError(t, err)

	require.NoError(t, service.MarkFailure(ctx, dc, assert.AnError))

	count, err := service.GetRetryCount(ctx, "event-4")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// the lock is gone so the next attempt can acquire it
	dc2, err := service.AcquireDispatchLock(ctx, "event-4")
	require.NoError(t, err)
	assert.Equal(t, 1, dc2.RetryCount)
	assert.True(t, dc2.IsRetry)
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 2
	service := NewIdempotencyService(newMockRedisAdapter(), config)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		dc, err := service.AcquireDispatchLock(ctx, "event-5")
		require.NoError(t, err)
		require.NoError(t, service.MarkFailure(ctx, dc, assert.AnError))
	}

	_, err := service.AcquireDispatchLock(ctx, "event-5")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotencyService_GetRetryCount_Unknown(t *testing.T) {
	service := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())

	count, err := service.GetRetryCount(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
