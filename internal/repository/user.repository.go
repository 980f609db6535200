package repository

import (
	"context"
	"errors"

	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserEntity struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	DisplayName string `gorm:"column:display_name"`
	APIKey      string `gorm:"column:api_key"`
	ProjectID   int64  `gorm:"column:project_id"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserModel(e *UserEntity) *model.User {
	return &model.User{
		ID:          e.ID,
		DisplayName: e.DisplayName,
		APIKey:      e.APIKey,
		ProjectID:   e.ProjectID,
	}
}

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{db}
}

func (r *UserRepository) FindByAPIKey(ctx context.Context, key string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).Where("api_key = ?", key).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}
