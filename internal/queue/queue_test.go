package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// unique connection name per test; the adapter registry is global
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func financeQueueConfig(name string) QueueConfig {
	return QueueConfig{
		Name:              name,
		ConsumerGroup:     "dispatch",
		ConsumerName:      "dispatch-test",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, financeQueueConfig(model.ChannelFinance))
	require.NoError(t, err)

	ctx := context.Background()
	event := model.FinanceEvent{
		Event:  model.EventCreate,
		Entity: model.EntityCashPayment,
		UserID: 3,
		UUID:   "7b0c2d1e",
		At:     time.Now().UTC(),
	}

	_, err = q.PublishJSON(ctx, event, map[string]string{"channel": model.ChannelFinance})
	require.NoError(t, err)

	received := make(chan model.FinanceEvent, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var got model.FinanceEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			return err
		}
		assert.Equal(t, model.ChannelFinance, msg.Metadata["channel"])
		received <- got
		return nil
	}

	require.NoError(t, q.Consume(handler))

	select {
	case got := <-received:
		assert.Equal(t, model.EventCreate, got.Event)
		assert.Equal(t, model.EntityCashPayment, got.Entity)
		assert.Equal(t, "7b0c2d1e", got.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	q.Stop(time.Second)
}

func TestQueue_PublishAddsTimestamp(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, financeQueueConfig("finance:ts"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	before := time.Now().Add(-time.Second)
	_, err = q.Publish(context.Background(), []byte(`{"event":"create"}`), nil)
	require.NoError(t, err)

	received := make(chan *Message, 1)
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	}))

	select {
	case msg := <-received:
		assert.True(t, msg.Timestamp.After(before))
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestQueue_FailedHandlerLeavesMessagePending(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := financeQueueConfig("finance:retry")
	config.VisibilityTimeout = time.Second

	q, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	_, err = q.Publish(context.Background(), []byte(`{"event":"create"}`), nil)
	require.NoError(t, err)

	attempts := make(chan int, 10)
	count := 0
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		count++
		attempts <- count
		return assert.AnError
	}))

	select {
	case <-attempts:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.PendingMessages, int64(0))
}

func TestQueue_StopWhileIdle(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, financeQueueConfig("finance:idle"))
	require.NoError(t, err)

	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		return nil
	}))

	// let the consumer settle into polling the empty stream
	time.Sleep(250 * time.Millisecond)

	start := time.Now()
	err = q.Stop(2 * time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second,
		"consumer must not park in XREADGROUP on an idle stream")
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, financeQueueConfig("finance:stats"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := q.Publish(ctx, []byte(`{"event":"create"}`), nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMessages)
}
