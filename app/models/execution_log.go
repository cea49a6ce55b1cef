package models

import (
	"encoding/json"
	"time"
)

// Execution results recorded in the audit trail.
const (
	ExecutionResultSuccess   = "success"
	ExecutionResultFailed    = "failed"
	ExecutionResultEscalated = "escalated"
)

// ExecutionLog is the immutable compliance audit record. Exactly one row is
// written per executed action, whatever the outcome. Rows are append-only:
// no repository or service exposes an update or delete for them.
type ExecutionLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CustomerID       uint      `gorm:"not null;index:idx_execlogs_customer_time,priority:1" json:"customer_id"`
	RuleID           *uint     `gorm:"index" json:"rule_id,omitempty"`
	TriggerEventJSON string    `gorm:"type:longtext;not null" json:"trigger_event_json"`
	ActionTaken      string    `gorm:"type:varchar(100);not null" json:"action_taken"`
	Result           string    `gorm:"type:varchar(20);not null;index" json:"result"`
	DetailsJSON      string    `gorm:"type:text;not null;default:'{}'" json:"details_json"`
	ExecutionTimeMS  int64     `gorm:"not null;default:0" json:"execution_time_ms"`
	ExecutedAt       time.Time `gorm:"not null;index:idx_execlogs_customer_time,priority:2" json:"executed_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Details decodes the structured details column.
func (l *ExecutionLog) Details() map[string]any {
	if l.DetailsJSON == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(l.DetailsJSON), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// SetDetails serializes the structured details column.
func (l *ExecutionLog) SetDetails(details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		// Details are diagnostic; never let them block the audit write.
		l.DetailsJSON = `{"details_error":"unserializable"}`
		return
	}
	l.DetailsJSON = string(data)
}
