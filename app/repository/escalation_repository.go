package repository

import (
	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// reviewRepository implements the ReviewRepository interface
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review item repository instance
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(item *models.ReviewItem) error {
	return r.db.Create(item).Error
}

func (r *reviewRepository) ListPendingByCustomer(customerID uint, offset, limit int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	err := r.db.Where("customer_id = ? AND status = ?", customerID, models.ReviewStatusPending).
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *reviewRepository) CountPendingByCustomer(customerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ReviewItem{}).
		Where("customer_id = ? AND status = ?", customerID, models.ReviewStatusPending).
		Count(&count).Error
	return count, err
}

// escalationRepository implements the EscalationRepository interface
type escalationRepository struct {
	db *gorm.DB
}

// NewEscalationRepository creates a new escalation repository instance
func NewEscalationRepository(db *gorm.DB) EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Create(escalation *models.Escalation) error {
	return r.db.Create(escalation).Error
}

func (r *escalationRepository) ListUnacknowledgedByCustomer(customerID uint, offset, limit int) ([]models.Escalation, error) {
	var escalations []models.Escalation
	err := r.db.Where("customer_id = ? AND acknowledged = ?", customerID, false).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&escalations).Error
	return escalations, err
}
