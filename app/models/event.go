package models

import (
	"encoding/json"
	"time"
)

// Event types recognized by the automation core. Inbound EHR webhooks and
// internal claim processing both produce these.
const (
	EventTypeClaimSubmitted        = "claim_submitted"
	EventTypeClaimDenied           = "claim_denied"
	EventTypeAuthorizationExpiring = "authorization_expiring"
	EventTypeDenialRiskDetected    = "denial_risk_detected"
	EventTypePaymentReceived       = "payment_received"
)

// Event sources.
const (
	EventSourceInternal       = "internal"
	EventSourceInboundWebhook = "inbound_webhook"
)

// Event is a decision trigger evaluated by the rules engine. Rows are
// immutable once created; there is deliberately no update path for them.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	CustomerID  uint      `gorm:"not null;index:idx_events_customer_type,priority:1" json:"customer_id"`
	EventType   string    `gorm:"type:varchar(50);not null;index:idx_events_customer_type,priority:2" json:"event_type"`
	PayloadJSON string    `gorm:"type:longtext;not null" json:"payload_json"`
	Source      string    `gorm:"type:varchar(30);not null;default:'internal'" json:"source"`
	OccurredAt  time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Payload decodes the stored payload into a key-value map. A missing or
// malformed payload yields an empty map so rule evaluation can fail closed
// on absent fields instead of erroring.
func (e *Event) Payload() map[string]any {
	if e.PayloadJSON == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(e.PayloadJSON), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// SetPayload serializes the given map into the stored payload column.
func (e *Event) SetPayload(payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.PayloadJSON = string(data)
	return nil
}

// IsKnownEventType reports whether the given type is one the core evaluates.
func IsKnownEventType(eventType string) bool {
	switch eventType {
	case EventTypeClaimSubmitted, EventTypeClaimDenied, EventTypeAuthorizationExpiring,
		EventTypeDenialRiskDetected, EventTypePaymentReceived:
		return true
	}
	return false
}
