package repository

import (
	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(event *models.Event) error {
	return r.db.Create(event).Error
}

func (r *eventRepository) GetByID(id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetByUUID(uuid string) (*models.Event, error) {
	var event models.Event
	if err := r.db.Where("uuid = ?", uuid).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) ListByCustomer(customerID uint, offset, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.Where("customer_id = ?", customerID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) CountByCustomer(customerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Event{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}
