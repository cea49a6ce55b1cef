package models

import (
	"time"
)

// Review item states.
const (
	ReviewStatusPending   = "pending_review"
	ReviewStatusApproved  = "approved"
	ReviewStatusRejected  = "rejected"
	ReviewStatusCancelled = "cancelled"
)

// ReviewItem is the tier-2 outcome: an action the engine matched but that
// must be confirmed by a human before any side effect runs. The core only
// creates these; the review UI owns their further lifecycle.
type ReviewItem struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CustomerID       uint      `gorm:"not null;index:idx_reviews_customer_status,priority:1" json:"customer_id"`
	RuleID           *uint     `gorm:"index" json:"rule_id,omitempty"`
	EventJSON        string    `gorm:"type:longtext;not null" json:"event_json"`
	ActionType       string    `gorm:"type:varchar(100);not null" json:"action_type"`
	ActionParamsJSON string    `gorm:"type:text;not null;default:'{}'" json:"action_params_json"`
	Status           string    `gorm:"type:varchar(30);not null;default:'pending_review';index:idx_reviews_customer_status,priority:2" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
