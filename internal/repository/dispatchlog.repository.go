package repository

import (
	"context"
	"time"

	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/pg"
)

type DispatchLogEntity struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventUUID   string     `gorm:"column:event_uuid"`
	Entity      string     `gorm:"column:entity"`
	Endpoint    string     `gorm:"column:endpoint"`
	Status      string     `gorm:"column:status"`
	Attempts    int        `gorm:"column:attempts"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (DispatchLogEntity) TableName() string {
	return "dispatch_log"
}

func toDispatchLogEntity(l *model.DispatchLog) *DispatchLogEntity {
	return &DispatchLogEntity{
		ID:          l.ID,
		EventUUID:   l.EventUUID,
		Entity:      l.Entity,
		Endpoint:    l.Endpoint,
		Status:      l.Status,
		Attempts:    l.Attempts,
		DeliveredAt: l.DeliveredAt,
		CreatedAt:   l.CreatedAt,
	}
}

func toDispatchLogModel(e *DispatchLogEntity) *model.DispatchLog {
	return &model.DispatchLog{
		ID:          e.ID,
		EventUUID:   e.EventUUID,
		Entity:      e.Entity,
		Endpoint:    e.Endpoint,
		Status:      e.Status,
		Attempts:    e.Attempts,
		DeliveredAt: e.DeliveredAt,
		CreatedAt:   e.CreatedAt,
	}
}

type DispatchLogRepository struct {
	*pg.DB
}

func NewDispatchLogRepository(db *pg.DB) *DispatchLogRepository {
	return &DispatchLogRepository{db}
}

func (r *DispatchLogRepository) Create(ctx context.Context, l *model.DispatchLog) error {
	entity := toDispatchLogEntity(l)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return err
	}
	l.ID = entity.ID
	return nil
}

func (r *DispatchLogRepository) ListByEvent(ctx context.Context, eventUUID string) ([]*model.DispatchLog, error) {
	var entities []*DispatchLogEntity
	err := r.Read(ctx).
		Where("event_uuid = ?", eventUUID).
		Order("id").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	logs := make([]*model.DispatchLog, 0, len(entities))
	for _, e := range entities {
		logs = append(logs, toDispatchLogModel(e))
	}
	return logs, nil
}
