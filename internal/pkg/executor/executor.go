package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/rules"
)

// Handler performs the real side effect of a tier-1 action. It returns
// structured details merged into the audit record. Handlers may fail or even
// panic; the executor converts both into failed results.
type Handler func(ctx context.Context, action rules.Action) (map[string]any, error)

// Executor carries out classified actions and writes the audit trail.
// Exactly one ExecutionLog row is appended per action, whatever happens.
// The executor never retries; callers that want a retry submit a new event.
type Executor struct {
	logs        repository.ExecutionLogRepository
	reviews     repository.ReviewRepository
	escalations repository.EscalationRepository
	handlers    map[string]Handler
}

// New creates an executor. Handlers are registered during wiring, before any
// Execute call; the map is read-only afterwards so concurrent executions of
// different actions are safe.
func New(logs repository.ExecutionLogRepository, reviews repository.ReviewRepository, escalations repository.EscalationRepository) *Executor {
	return &Executor{
		logs:        logs,
		reviews:     reviews,
		escalations: escalations,
		handlers:    make(map[string]Handler),
	}
}

// RegisterHandler binds an action type to its side effect.
func (x *Executor) RegisterHandler(actionType string, h Handler) {
	x.handlers[actionType] = h
}

// Execute runs each action according to its tier and returns the audit rows
// written. Failures are converted to result values; this method never
// returns an error and never lets a handler panic escape.
func (x *Executor) Execute(ctx context.Context, actions []rules.Action) []models.ExecutionLog {
	results := make([]models.ExecutionLog, 0, len(actions))
	for _, action := range actions {
		results = append(results, x.executeOne(ctx, action))
	}
	return results
}

func (x *Executor) executeOne(ctx context.Context, action rules.Action) models.ExecutionLog {
	start := time.Now()

	entry := models.ExecutionLog{
		CustomerID:       action.Event.CustomerID,
		RuleID:           action.RuleID,
		TriggerEventJSON: serializeEvent(&action.Event),
		ActionTaken:      action.ActionType,
		ExecutedAt:       start,
	}

	details := map[string]any{
		"tier":  action.Tier.String(),
		"stage": action.Stage,
	}
	if action.RedLineReason != "" {
		details["red_line"] = action.RedLineReason
	}

	switch {
	case action.Stage == models.AutomationStageShadow:
		// Shadow mode: the decision is computed and audited, but no side
		// effect runs. Used to validate rule accuracy before going live.
		details["shadow"] = true
		entry.Result = models.ExecutionResultSuccess

	case action.Tier == rules.TierEscalate:
		x.submitEscalation(action, escalationReason(action), models.EscalationSeverityCritical,
			fmt.Sprintf("action %q escalated for human review", action.ActionType))
		entry.Result = models.ExecutionResultEscalated

	case action.Tier == rules.TierQueueReview:
		if err := x.queueForReview(action); err != nil {
			log.Errorf("[ActionExecutor] customer %d: failed to queue review item: %v", action.Event.CustomerID, err)
			details["error"] = err.Error()
			entry.Result = models.ExecutionResultFailed
			break
		}
		details["queued"] = true
		entry.Result = models.ExecutionResultSuccess

	default: // tier 1: perform the side effect now
		handlerDetails, err := x.runHandler(ctx, action)
		if err != nil {
			details["error"] = err.Error()
			entry.Result = models.ExecutionResultFailed
			// The escalation on error is a second, distinct side effect.
			// It must run even though the primary action failed.
			if action.EscalateOnError {
				x.submitEscalation(action, models.EscalationReasonActionFailed, models.EscalationSeverityWarning,
					fmt.Sprintf("action %q failed: %v", action.ActionType, err))
				details["escalated_on_error"] = true
			}
			break
		}
		for k, v := range handlerDetails {
			details[k] = v
		}
		entry.Result = models.ExecutionResultSuccess
	}

	entry.SetDetails(details)
	entry.ExecutionTimeMS = time.Since(start).Milliseconds()

	if err := x.logs.Create(&entry); err != nil {
		// The audit row is a compliance requirement; a failed write is the
		// loudest thing this component can log.
		log.Errorf("[ActionExecutor] customer %d: FAILED TO WRITE AUDIT LOG for action %q: %v",
			action.Event.CustomerID, action.ActionType, err)
	}

	return entry
}

// runHandler invokes the registered side effect, converting a missing
// handler, an error return, or a panic into a plain error.
func (x *Executor) runHandler(ctx context.Context, action rules.Action) (details map[string]any, err error) {
	handler, ok := x.handlers[action.ActionType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for action type %q", action.ActionType)
	}

	defer func() {
		if r := recover(); r != nil {
			details = nil
			err = fmt.Errorf("action handler panicked: %v", r)
		}
	}()

	return handler(ctx, action)
}

func (x *Executor) queueForReview(action rules.Action) error {
	params, err := json.Marshal(action.ActionParams)
	if err != nil {
		params = []byte("{}")
	}
	return x.reviews.Create(&models.ReviewItem{
		CustomerID:       action.Event.CustomerID,
		RuleID:           action.RuleID,
		EventJSON:        serializeEvent(&action.Event),
		ActionType:       action.ActionType,
		ActionParamsJSON: string(params),
		Status:           models.ReviewStatusPending,
	})
}

// submitEscalation is fire-and-forget: a failed write is logged and the
// execution result is still recorded.
func (x *Executor) submitEscalation(action rules.Action, reason, severity, message string) {
	err := x.escalations.Create(&models.Escalation{
		CustomerID: action.Event.CustomerID,
		RuleID:     action.RuleID,
		Reason:     reason,
		Severity:   severity,
		Message:    message,
		EventJSON:  serializeEvent(&action.Event),
	})
	if err != nil {
		log.Errorf("[ActionExecutor] customer %d: failed to submit escalation: %v", action.Event.CustomerID, err)
	}
}

func escalationReason(action rules.Action) string {
	if action.RedLineReason != "" {
		return action.RedLineReason
	}
	return models.EscalationReasonTierThreshold
}

func serializeEvent(event *models.Event) string {
	data, err := json.Marshal(event)
	if err != nil {
		return "{}"
	}
	return string(data)
}
