package models

import (
	"time"
)

// Escalation severities.
const (
	EscalationSeverityWarning  = "warning"
	EscalationSeverityCritical = "critical"
)

// Escalation reasons written by the core.
const (
	EscalationReasonRedLine          = "compliance_red_line"
	EscalationReasonTierThreshold    = "tier_threshold"
	EscalationReasonActionFailed     = "action_failed"
	EscalationReasonProfileViolation = "profile_invariant_violation"
)

// Escalation is a human-visible alert record, the tier-3 outcome. The core's
// contract with the alerting side is fire-and-forget: it creates the row and
// moves on; acknowledgement belongs to the operator UI.
type Escalation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerID   uint      `gorm:"not null;index:idx_escalations_customer_ack,priority:1" json:"customer_id"`
	RuleID       *uint     `gorm:"index" json:"rule_id,omitempty"`
	Reason       string    `gorm:"type:varchar(50);not null" json:"reason"`
	Severity     string    `gorm:"type:varchar(20);not null;default:'warning'" json:"severity"`
	Message      string    `gorm:"type:text" json:"message"`
	EventJSON    string    `gorm:"type:longtext" json:"event_json"`
	Acknowledged bool      `gorm:"default:false;index:idx_escalations_customer_ack,priority:2" json:"acknowledged"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
