package rules

import (
	"github.com/revflowhq/revflow/app/models"
)

// Tier is the automation confidence classification of a matched action.
type Tier int

const (
	// TierAutoExecute runs the side effect immediately.
	TierAutoExecute Tier = 1
	// TierQueueReview parks the action for human confirmation.
	TierQueueReview Tier = 2
	// TierEscalate routes the action to the escalation sink.
	TierEscalate Tier = 3
)

// String returns the tier name used in audit details.
func (t Tier) String() string {
	switch t {
	case TierAutoExecute:
		return "auto_execute"
	case TierQueueReview:
		return "queue_review"
	case TierEscalate:
		return "escalate"
	}
	return "unknown"
}

// Action is a matched rule's proposed side effect, classified by tier. It is
// transient: only its execution outcome is persisted, as an ExecutionLog row.
type Action struct {
	RuleID       *uint
	RuleName     string
	Event        models.Event
	ActionType   string
	ActionParams map[string]any
	Tier         Tier
	// RedLineReason is non-empty when a compliance red-line forced tier 3.
	// Red-lines are a hard override, never bypassable by configuration.
	RedLineReason   string
	EscalateOnError bool
	// Stage is the customer's automation stage at evaluation time. Shadow
	// suppresses side effects at execution.
	Stage string
}
