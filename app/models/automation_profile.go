package models

import (
	"time"
)

// Automation stages. Shadow computes decisions without executing them;
// assisted never auto-executes; supervised and autonomous apply the
// configured thresholds as-is.
const (
	AutomationStageShadow     = "shadow"
	AutomationStageAssisted   = "assisted"
	AutomationStageSupervised = "supervised"
	AutomationStageAutonomous = "autonomous"
)

// AutomationProfile holds the per-customer thresholds that govern the
// three-tier decision model (auto-execute / queue for review / escalate).
type AutomationProfile struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	CustomerID               uint      `gorm:"uniqueIndex;not null" json:"customer_id"`
	Customer                 Customer  `gorm:"foreignKey:CustomerID" json:"-"`
	AutoExecuteMinConfidence float64   `gorm:"not null;default:0.95" json:"auto_execute_min_confidence"`
	AutoExecuteMaxAmount     float64   `gorm:"not null;default:1000" json:"auto_execute_max_amount"`
	QueueReviewMinConfidence float64   `gorm:"not null;default:0.70" json:"queue_review_min_confidence"`
	EscalateMinAmount        float64   `gorm:"not null;default:10000" json:"escalate_min_amount"`
	AutomationStage          string    `gorm:"type:varchar(20);not null;default:'shadow'" json:"automation_stage"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Valid reports whether the threshold configuration is internally
// consistent. A profile where the auto-execute bar is below the review bar
// would auto-execute actions a human was supposed to see, so evaluation
// fails closed (everything escalates) until it is corrected.
func (p *AutomationProfile) Valid() bool {
	return p.AutoExecuteMinConfidence >= p.QueueReviewMinConfidence
}

// IsKnownStage reports whether the given automation stage is recognized.
func IsKnownStage(stage string) bool {
	switch stage {
	case AutomationStageShadow, AutomationStageAssisted, AutomationStageSupervised, AutomationStageAutonomous:
		return true
	}
	return false
}

// DefaultProfile returns the conservative profile applied when a customer
// has not configured one yet: shadow stage, nothing auto-executes.
func DefaultProfile(customerID uint) *AutomationProfile {
	return &AutomationProfile{
		CustomerID:               customerID,
		AutoExecuteMinConfidence: 0.95,
		AutoExecuteMaxAmount:     1000,
		QueueReviewMinConfidence: 0.70,
		EscalateMinAmount:        10000,
		AutomationStage:          AutomationStageShadow,
	}
}
