package repository

import (
	"time"

	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// executionLogRepository implements the ExecutionLogRepository interface.
// The audit trail is append-only: this type exposes Create and reads only,
// and nothing else in the codebase touches the table.
type executionLogRepository struct {
	db *gorm.DB
}

// NewExecutionLogRepository creates a new execution log repository instance
func NewExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

func (r *executionLogRepository) Create(entry *models.ExecutionLog) error {
	return r.db.Create(entry).Error
}

func (r *executionLogRepository) ListByCustomer(customerID uint, offset, limit int) ([]models.ExecutionLog, error) {
	var entries []models.ExecutionLog
	err := r.db.Where("customer_id = ?", customerID).
		Order("executed_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *executionLogRepository) CountByCustomer(customerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ExecutionLog{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}

// ListExecutedBefore pages old audit rows by ascending id for archive export.
func (r *executionLogRepository) ListExecutedBefore(cutoff time.Time, afterID uint, limit int) ([]models.ExecutionLog, error) {
	var entries []models.ExecutionLog
	err := r.db.Where("executed_at < ? AND id > ?", cutoff, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
