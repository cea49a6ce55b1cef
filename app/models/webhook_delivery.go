package models

import (
	"time"
)

// DeliveryStatus is the state of an outbound webhook delivery.
type DeliveryStatus string

const (
	// DeliveryStatusPending marks a delivery that has never been attempted.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusSending marks a delivery claimed by a worker. The claim
	// is taken with a conditional update so exactly one worker sends.
	DeliveryStatusSending DeliveryStatus = "sending"
	// DeliveryStatusRetrying marks a failed attempt waiting for its backoff.
	DeliveryStatusRetrying DeliveryStatus = "retrying"
	// DeliveryStatusDelivered is terminal success.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed is terminal failure after exhausting attempts.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DefaultMaxDeliveryAttempts bounds the retry sequence of one delivery.
const DefaultMaxDeliveryAttempts = 5

// WebhookDelivery tracks the full lifecycle of one outbound notification to
// one endpoint. RequestID is the idempotency key: it is generated once at
// dispatch and stays stable across every retry, so receivers can de-dupe.
// Terminal rows are retained for audit, never deleted.
type WebhookDelivery struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	EndpointID     uint            `gorm:"not null;index" json:"endpoint_id"`
	Endpoint       WebhookEndpoint `gorm:"foreignKey:EndpointID" json:"-"`
	CustomerID     uint            `gorm:"not null;index" json:"customer_id"`
	EventType      string          `gorm:"type:varchar(50);not null" json:"event_type"`
	PayloadJSON    string          `gorm:"type:longtext;not null" json:"payload_json"`
	Signature      string          `gorm:"type:char(64);not null" json:"signature"`
	Status         DeliveryStatus  `gorm:"type:varchar(20);not null;default:'pending';index:idx_deliveries_status_due,priority:1" json:"status"`
	AttemptCount   int             `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts    int             `gorm:"not null;default:5" json:"max_attempts"`
	NextAttemptAt  *time.Time      `gorm:"index:idx_deliveries_status_due,priority:2" json:"next_attempt_at,omitempty"`
	RequestID      string          `gorm:"type:char(36);uniqueIndex;not null" json:"request_id"`
	LastError      string          `gorm:"type:text" json:"last_error"`
	LastHTTPStatus *int            `json:"last_http_status,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the delivery reached a final state.
func (d *WebhookDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusDelivered || d.Status == DeliveryStatusFailed
}

// IsDue reports whether a worker should pick the delivery up at the given time.
func (d *WebhookDelivery) IsDue(now time.Time) bool {
	switch d.Status {
	case DeliveryStatusPending:
		return true
	case DeliveryStatusRetrying:
		return d.NextAttemptAt != nil && !d.NextAttemptAt.After(now)
	}
	return false
}

// MarkDelivered records terminal success.
func (d *WebhookDelivery) MarkDelivered(httpStatus int, now time.Time) {
	d.Status = DeliveryStatusDelivered
	d.LastHTTPStatus = &httpStatus
	d.LastError = ""
	d.NextAttemptAt = nil
	d.DeliveredAt = &now
}

// MarkAttemptFailed records one failed attempt and either schedules the next
// one or, when attempts are exhausted, transitions to the terminal failed
// state. The caller supplies the backoff delay for the next attempt.
func (d *WebhookDelivery) MarkAttemptFailed(errMsg string, httpStatus *int, nextDelay time.Duration, now time.Time) {
	d.AttemptCount++
	d.LastError = errMsg
	d.LastHTTPStatus = httpStatus
	if d.AttemptCount >= d.MaxAttempts {
		d.Status = DeliveryStatusFailed
		d.NextAttemptAt = nil
		return
	}
	next := now.Add(nextDelay)
	d.Status = DeliveryStatusRetrying
	d.NextAttemptAt = &next
}
