package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// AutomationRule is customer-scoped automation configuration. Rules are
// created and edited through the operator settings UI; the automation core
// only ever reads them.
type AutomationRule struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CustomerID       uint           `gorm:"not null;index:idx_rules_customer_enabled,priority:1" json:"customer_id"`
	Customer         Customer       `gorm:"foreignKey:CustomerID" json:"-"`
	Name             string         `gorm:"type:varchar(191);not null" json:"name"`
	ConditionSetJSON string         `gorm:"type:text;not null;default:'{}'" json:"condition_set_json"`
	ActionType       string         `gorm:"type:varchar(100);not null" json:"action_type"`
	ActionParamsJSON string         `gorm:"type:text;not null;default:'{}'" json:"action_params_json"`
	Enabled          bool           `gorm:"default:true;index:idx_rules_customer_enabled,priority:2" json:"enabled"`
	EscalateOnError  bool           `gorm:"default:false" json:"escalate_on_error"`
	Priority         int            `gorm:"default:0;index" json:"priority"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// RawConditionSet decodes the stored condition set into its raw JSON shape:
// field name -> {"op": ..., "value": ...}. The error is surfaced so the
// engine can treat a malformed set as non-matching and log it.
func (r *AutomationRule) RawConditionSet() (map[string]json.RawMessage, error) {
	if r.ConditionSetJSON == "" {
		return map[string]json.RawMessage{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(r.ConditionSetJSON), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

// ActionParams decodes the stored action parameters. Malformed params
// degrade to an empty map; params are advisory inputs to action handlers.
func (r *AutomationRule) ActionParams() map[string]any {
	if r.ActionParamsJSON == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(r.ActionParamsJSON), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
