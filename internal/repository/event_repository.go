package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/internal/model"
)

type EventRepository interface {
	FindByCode(code string) (*model.Event, error)
	Create(event *model.Event) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) FindByCode(code string) (*model.Event, error) {
	var event model.Event
	if err := r.db.Where("event_code = ?", code).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) Create(event *model.Event) error {
	return r.db.Create(event).Error
}
