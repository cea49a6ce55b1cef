package repository

import (
	"time"

	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// webhookEndpointRepository implements the WebhookEndpointRepository interface
type webhookEndpointRepository struct {
	db *gorm.DB
}

// NewWebhookEndpointRepository creates a new webhook endpoint repository instance
func NewWebhookEndpointRepository(db *gorm.DB) WebhookEndpointRepository {
	return &webhookEndpointRepository{db: db}
}

func (r *webhookEndpointRepository) Create(endpoint *models.WebhookEndpoint) error {
	return r.db.Create(endpoint).Error
}

func (r *webhookEndpointRepository) GetByID(id uint) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	if err := r.db.First(&endpoint, id).Error; err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// ListActiveSubscribed filters subscriptions in Go because the subscription
// list lives in a JSON column; the candidate set per customer is small.
func (r *webhookEndpointRepository) ListActiveSubscribed(customerID uint, eventType string) ([]models.WebhookEndpoint, error) {
	var endpoints []models.WebhookEndpoint
	err := r.db.Where("customer_id = ? AND active = ?", customerID, true).
		Order("id ASC").
		Find(&endpoints).Error
	if err != nil {
		return nil, err
	}

	subscribed := endpoints[:0]
	for _, endpoint := range endpoints {
		if endpoint.SubscribedTo(eventType) {
			subscribed = append(subscribed, endpoint)
		}
	}
	return subscribed, nil
}

func (r *webhookEndpointRepository) Update(endpoint *models.WebhookEndpoint) error {
	return r.db.Save(endpoint).Error
}

// webhookDeliveryRepository implements the WebhookDeliveryRepository interface
type webhookDeliveryRepository struct {
	db *gorm.DB
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository instance
func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &webhookDeliveryRepository{db: db}
}

func (r *webhookDeliveryRepository) Create(delivery *models.WebhookDelivery) error {
	return r.db.Create(delivery).Error
}

func (r *webhookDeliveryRepository) GetByID(id uint) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	if err := r.db.Preload("Endpoint").First(&delivery, id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *webhookDeliveryRepository) GetByRequestID(requestID string) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	if err := r.db.Where("request_id = ?", requestID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

// ListDue preloads the endpoint so the worker can send without a second
// round trip per delivery.
func (r *webhookDeliveryRepository) ListDue(now time.Time, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.Preload("Endpoint").
		Where("status = ? OR (status = ? AND next_attempt_at <= ?)",
			models.DeliveryStatusPending, models.DeliveryStatusRetrying, now).
		Order("next_attempt_at ASC, id ASC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// Claim performs the atomic conditional update that gives one worker
// exclusive ownership of an attempt. RowsAffected == 0 means another worker
// already moved the row, or rescheduled it past now; the caller must not
// send. The due-ness predicate is part of the claim so a worker holding a
// stale batch cannot attempt a freshly rescheduled delivery early.
func (r *webhookDeliveryRepository) Claim(id uint, now time.Time) (bool, error) {
	res := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND (status = ? OR (status = ? AND next_attempt_at <= ?))",
			id, models.DeliveryStatusPending, models.DeliveryStatusRetrying, now).
		Updates(map[string]any{
			"status":     models.DeliveryStatusSending,
			"claimed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *webhookDeliveryRepository) Update(delivery *models.WebhookDelivery) error {
	return r.db.Save(delivery).Error
}

// ReleaseStuckSending recovers deliveries whose worker died between claim
// and status write. They go back to retrying as immediately due.
func (r *webhookDeliveryRepository) ReleaseStuckSending(maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge)
	res := r.db.Model(&models.WebhookDelivery{}).
		Where("status = ? AND claimed_at < ?", models.DeliveryStatusSending, cutoff).
		Updates(map[string]any{
			"status":          models.DeliveryStatusRetrying,
			"next_attempt_at": now,
			"last_error":      "released after stuck claim",
		})
	return res.RowsAffected, res.Error
}

func (r *webhookDeliveryRepository) CountByStatus(status models.DeliveryStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookDelivery{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
