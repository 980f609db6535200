package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gateway "github.com/openhims/finance-gateway/internal/gateways"
	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/internal/queue"
	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/openhims/finance-gateway/pkg/prom"
)

type DispatchLogRepository interface {
	Create(ctx context.Context, l *model.DispatchLog) error
}

// EventDispatchProcessor forwards finance events from the stream to the
// reporting sinks and records each outcome in the dispatch log.
type EventDispatchProcessor struct {
	client          *gateway.ReportClient
	dispatchLogRepo DispatchLogRepository
	idempotency     *IdempotencyService
}

func NewEventDispatchProcessor(client *gateway.ReportClient, dispatchLogRepo DispatchLogRepository, idempotency *IdempotencyService) *EventDispatchProcessor {
	return &EventDispatchProcessor{
		client:          client,
		dispatchLogRepo: dispatchLogRepo,
		idempotency:     idempotency,
	}
}

func (p *EventDispatchProcessor) GetType() string {
	return "finance-event"
}

// Process delivers one event with at-most-once semantics. Returning nil
// acks the stream message; returning an error leaves it pending for retry.
func (p *EventDispatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var event model.FinanceEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("failed to unmarshal finance event", "error", err)
		prom.IncEventDeliveryFailed("unmarshal")
		return err // malformed payload goes to the DLQ
	}

	dc, err := p.idempotency.AcquireDispatchLock(ctx, event.UUID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			logger.Info("event already dispatched, skipping", "event_uuid", event.UUID)
			prom.IncEventDeliverySkipped()
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("dispatch retries exhausted", "event_uuid", event.UUID)
			p.logOutcome(ctx, &event, "", model.DispatchStatusFailed, dc)
			prom.IncEventDeliveryFailed("retries_exhausted")
			return nil // ack; the DLQ copy keeps the payload
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("dispatch lock held by another consumer")
		}
		return err
	}

	defer func() {
		if dc.lockAcquired {
			p.idempotency.ReleaseLock(ctx, dc)
		}
	}()

	logger.Info("dispatching event",
		"event_uuid", event.UUID,
		"entity", event.Entity,
		"retry_count", dc.RetryCount,
		"is_retry", dc.IsRetry)

	receipt, err := p.client.Deliver(ctx, &event)
	if err != nil {
		logger.Error("failed to deliver event", "event_uuid", event.UUID, "error", err)
		prom.IncEventDeliveryFailed("delivery")
		if markErr := p.idempotency.MarkFailure(ctx, dc, err); markErr != nil {
			logger.Error("failed to mark dispatch failure", "event_uuid", event.UUID, "error", markErr)
		}
		return err // nack for retry
	}

	if !receipt.Accepted {
		logger.Warn("sink rejected event", "event_uuid", event.UUID, "endpoint", receipt.Endpoint)
		prom.IncEventDeliveryFailed("rejected")
		if markErr := p.idempotency.MarkFailure(ctx, dc, errors.New("sink rejected event")); markErr != nil {
			logger.Error("failed to mark dispatch failure", "event_uuid", event.UUID, "error", markErr)
		}
		return errors.New("sink rejected event")
	}

	prom.AddEventDeliveryDuration(time.Since(event.At).Seconds(), receipt.Endpoint)
	p.logOutcome(ctx, &event, receipt.Endpoint, model.DispatchStatusDelivered, dc)

	if markErr := p.idempotency.MarkSuccess(ctx, dc); markErr != nil {
		// delivery already happened; a stale marker only risks one
		// duplicate within the retry window
		logger.Error("failed to mark dispatch success", "event_uuid", event.UUID, "error", markErr)
	}

	return nil
}

func (p *EventDispatchProcessor) logOutcome(ctx context.Context, event *model.FinanceEvent, endpoint, status string, dc *DispatchContext) {
	attempts := 1
	if dc != nil {
		attempts = dc.RetryCount + 1
	}
	entry := &model.DispatchLog{
		EventUUID: event.UUID,
		Entity:    event.Entity,
		Endpoint:  endpoint,
		Status:    status,
		Attempts:  attempts,
	}
	if status == model.DispatchStatusDelivered {
		now := time.Now().UTC()
		entry.DeliveredAt = &now
	}
	if err := p.dispatchLogRepo.Create(ctx, entry); err != nil {
		// log-only failure must not trigger a redelivery
		logger.Error("failed to save dispatch log", "event_uuid", event.UUID, "error", err)
	}
}
