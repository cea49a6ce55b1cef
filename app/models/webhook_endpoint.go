package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// WebhookEndpoint is a customer-configured destination for outbound event
// notifications. The secret is used to HMAC-sign every delivery payload.
type WebhookEndpoint struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`
	CustomerID               uint           `gorm:"not null;index:idx_endpoints_customer_active,priority:1" json:"customer_id"`
	Customer                 Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	URL                      string         `gorm:"type:varchar(2048);not null" json:"url"`
	Secret                   string         `gorm:"type:varchar(191);not null" json:"-"`
	Active                   bool           `gorm:"default:true;index:idx_endpoints_customer_active,priority:2" json:"active"`
	SubscribedEventTypesJSON string         `gorm:"type:text;not null;default:'[]'" json:"subscribed_event_types_json"`
	CreatedAt                time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"-"`
}

// SubscribedEventTypes decodes the stored subscription list. A malformed
// column reads as "subscribed to nothing" so a broken row cannot fan out.
func (e *WebhookEndpoint) SubscribedEventTypes() []string {
	if e.SubscribedEventTypesJSON == "" {
		return nil
	}
	var types []string
	if err := json.Unmarshal([]byte(e.SubscribedEventTypesJSON), &types); err != nil {
		return nil
	}
	return types
}

// SetSubscribedEventTypes serializes the subscription list.
func (e *WebhookEndpoint) SetSubscribedEventTypes(types []string) error {
	if types == nil {
		types = []string{}
	}
	data, err := json.Marshal(types)
	if err != nil {
		return err
	}
	e.SubscribedEventTypesJSON = string(data)
	return nil
}

// SubscribedTo reports whether the endpoint wants the given event type.
func (e *WebhookEndpoint) SubscribedTo(eventType string) bool {
	for _, t := range e.SubscribedEventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}
