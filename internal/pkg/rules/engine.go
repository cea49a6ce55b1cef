package rules

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
)

// Red-line thresholds. Payloads carrying these markers always escalate to a
// human, regardless of confidence, amount or customer configuration.
const (
	redLineFieldHumanReview    = "requires_human_review"
	redLineFieldFraudRisk      = "fraud_risk_score"
	redLineFieldComplianceRisk = "compliance_risk_score"
	redLineRiskScoreThreshold  = 0.7
)

// Engine evaluates events against a customer's enabled automation rules and
// classifies each matched action into the three-tier model. Repositories are
// injected; the engine keeps no mutable state between calls, so concurrent
// evaluations of different events are safe.
type Engine struct {
	rules    repository.RuleRepository
	profiles repository.ProfileRepository
}

// NewEngine creates a rules engine over the given repositories.
func NewEngine(rules repository.RuleRepository, profiles repository.ProfileRepository) *Engine {
	return &Engine{rules: rules, profiles: profiles}
}

// Evaluate returns the ordered list of matched actions for the event. It
// never returns an error: repository failures and malformed configuration
// degrade to fewer (or escalated) actions, and are logged for operators.
// Ordering is deterministic: rule priority descending, rule id ascending.
func (e *Engine) Evaluate(ctx context.Context, event *models.Event) []Action {
	_ = ctx

	profile, err := e.profiles.GetByCustomer(event.CustomerID)
	if err != nil {
		// Without a readable profile nothing may auto-execute. Use the
		// shadow default, which caps everything at escalate/review.
		log.Errorf("[RulesEngine] customer %d: failed to load profile: %v", event.CustomerID, err)
		profile = models.DefaultProfile(event.CustomerID)
	}

	invariantViolated := !profile.Valid()
	if invariantViolated {
		log.Errorf("[RulesEngine] customer %d: profile invariant violated (auto_execute_min_confidence=%.3f < queue_review_min_confidence=%.3f); failing closed to escalate",
			event.CustomerID, profile.AutoExecuteMinConfidence, profile.QueueReviewMinConfidence)
	}

	ruleSet, err := e.rules.ListEnabledByCustomer(event.CustomerID)
	if err != nil {
		log.Errorf("[RulesEngine] customer %d: failed to load rules: %v", event.CustomerID, err)
		return nil
	}

	payload := event.Payload()
	actions := make([]Action, 0, len(ruleSet))

	for i := range ruleSet {
		rule := &ruleSet[i]
		if !e.ruleMatches(rule, payload) {
			continue
		}

		ruleID := rule.ID
		action := Action{
			RuleID:          &ruleID,
			RuleName:        rule.Name,
			Event:           *event,
			ActionType:      rule.ActionType,
			ActionParams:    rule.ActionParams(),
			EscalateOnError: rule.EscalateOnError,
			Stage:           profile.AutomationStage,
		}
		action.Tier, action.RedLineReason = classify(payload, profile, invariantViolated)
		actions = append(actions, action)
	}

	return actions
}

// ruleMatches evaluates the rule's condition set against the payload. All
// conditions must hold. A malformed condition set or an absent payload field
// makes the rule non-matching, never an error.
func (e *Engine) ruleMatches(rule *models.AutomationRule, payload map[string]any) bool {
	raw, err := rule.RawConditionSet()
	if err != nil {
		log.Warnf("[RulesEngine] rule %d (%s): malformed condition set, treating as non-matching: %v", rule.ID, rule.Name, err)
		return false
	}

	for field, rawCond := range raw {
		cond, err := parseCondition(rawCond)
		if err != nil {
			log.Warnf("[RulesEngine] rule %d (%s): malformed condition on field %q, treating as non-matching: %v", rule.ID, rule.Name, field, err)
			return false
		}
		value, ok := payload[field]
		if !ok {
			return false
		}
		if !cond.Matches(value) {
			return false
		}
	}

	return true
}

// classify computes the action tier from the payload's confidence and amount
// against the profile thresholds. The red-line check runs first and wins
// unconditionally; the profile invariant failure forces escalate next.
func classify(payload map[string]any, profile *models.AutomationProfile, invariantViolated bool) (Tier, string) {
	if reason := redLineReason(payload); reason != "" {
		return TierEscalate, reason
	}
	if invariantViolated {
		return TierEscalate, models.EscalationReasonProfileViolation
	}

	confidence, hasConfidence := payloadFloat(payload, "confidence")
	if !hasConfidence {
		confidence, _ = payloadFloat(payload, "risk_score")
	}
	amount, _ := payloadFloat(payload, "amount")

	if amount >= profile.EscalateMinAmount {
		return TierEscalate, ""
	}

	tier := TierEscalate
	switch {
	case confidence >= profile.AutoExecuteMinConfidence && amount <= profile.AutoExecuteMaxAmount:
		tier = TierAutoExecute
	case confidence >= profile.QueueReviewMinConfidence:
		tier = TierQueueReview
	}

	// Assisted stage never auto-executes; everything gets at least a review.
	if profile.AutomationStage == models.AutomationStageAssisted && tier == TierAutoExecute {
		tier = TierQueueReview
	}

	return tier, ""
}

// redLineReason checks the compliance red-line fields. These are a hard
// override: any hit escalates regardless of every other signal.
func redLineReason(payload map[string]any) string {
	if v, ok := payload[redLineFieldHumanReview]; ok {
		if b, isBool := v.(bool); isBool && b {
			return models.EscalationReasonRedLine
		}
	}
	if v, ok := payloadFloat(payload, redLineFieldFraudRisk); ok && v > redLineRiskScoreThreshold {
		return models.EscalationReasonRedLine
	}
	if v, ok := payloadFloat(payload, redLineFieldComplianceRisk); ok && v > redLineRiskScoreThreshold {
		return models.EscalationReasonRedLine
	}
	return ""
}

func payloadFloat(payload map[string]any, field string) (float64, bool) {
	v, ok := payload[field]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
