package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/openhims/finance-gateway/pkg/redis"
)

var (
	ErrAlreadyDispatched  = errors.New("event already dispatched")
	ErrLockAcquireFailed  = errors.New("failed to acquire dispatch lock")
	ErrMaxRetriesExceeded = errors.New("maximum dispatch retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	DispatchedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	DispatchedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:             30 * time.Second,
		DispatchedTTL:       24 * time.Hour,
		MaxRetries:          3,
		RetryKeyPrefix:      "dispatch:retry:",
		LockKeyPrefix:       "dispatch:lock:",
		DispatchedKeyPrefix: "dispatch:done:",
	}
}

// IdempotencyService guarantees each finance event is delivered downstream
// at most once even when consumers crash or the stream redelivers.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type DispatchContext struct {
	EventUUID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) AcquireDispatchLock(ctx context.Context, eventUUID string) (*DispatchContext, error) {
	// already delivered within the marker window?
	dispatchedKey := s.config.DispatchedKeyPrefix + eventUUID
	exists, err := s.redis.Exist(dispatchedKey)
	if err != nil {
		logger.Warn("failed to check dispatched marker", "event_uuid", eventUUID, "error", err)
		// a duplicate delivery is preferable to a stalled dispatcher
	} else if exists > 0 {
		return nil, ErrAlreadyDispatched
	}

	retryKey := s.config.RetryKeyPrefix + eventUUID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("max dispatch retries exceeded", "event_uuid", eventUUID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: event_uuid=%s, retries=%d", ErrMaxRetriesExceeded, eventUUID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + eventUUID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire dispatch lock", "event_uuid", eventUUID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	return &DispatchContext{
		EventUUID:    eventUUID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, dc *DispatchContext) error {
	eventUUID := dc.EventUUID

	dispatchedKey := s.config.DispatchedKeyPrefix + eventUUID
	err := s.redis.Set(dispatchedKey, []byte("1"), s.config.DispatchedTTL)
	if err != nil {
		logger.Error("failed to set dispatched marker", "event_uuid", eventUUID, "error", err)
		return fmt.Errorf("failed to mark as dispatched: %w", err)
	}

	s.cleanup(ctx, dc)
	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DispatchContext, reason error) error {
	eventUUID := dc.EventUUID

	retryKey := s.config.RetryKeyPrefix + eventUUID
	newRetryCount := dc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// the counter outlives the lock so retries are tracked across crashes
	if err := s.redis.Set(retryKey, retryValue, s.config.DispatchedTTL); err != nil {
		logger.Error("failed to increment retry counter", "event_uuid", eventUUID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + eventUUID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to remove dispatch lock", "event_uuid", eventUUID, "error", err)
	}

	logger.Warn("event dispatch failed, will retry",
		"event_uuid", eventUUID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DispatchContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.EventUUID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to release dispatch lock", "event_uuid", dc.EventUUID, "error", err)
		return err
	}

	dc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, dc *DispatchContext) {
	eventUUID := dc.EventUUID

	lockKey := s.config.LockKeyPrefix + eventUUID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to cleanup dispatch lock", "event_uuid", eventUUID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + eventUUID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("failed to cleanup retry counter", "event_uuid", eventUUID, "error", err)
	}

	dc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, eventUUID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + eventUUID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDispatched(ctx context.Context, eventUUID string) (bool, error) {
	dispatchedKey := s.config.DispatchedKeyPrefix + eventUUID
	exists, err := s.redis.Exist(dispatchedKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
