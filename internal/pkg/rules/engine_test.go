package rules

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revflowhq/revflow/app/models"
)

// fakeRuleRepo serves rules the way the GORM repository does: enabled only,
// priority descending, id ascending.
type fakeRuleRepo struct {
	rules []models.AutomationRule
}

func (f *fakeRuleRepo) GetByID(id uint) (*models.AutomationRule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			return &f.rules[i], nil
		}
	}
	return nil, assert.AnError
}

func (f *fakeRuleRepo) ListEnabledByCustomer(customerID uint) ([]models.AutomationRule, error) {
	var out []models.AutomationRule
	for _, r := range f.rules {
		if r.CustomerID == customerID && r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRuleRepo) Create(rule *models.AutomationRule) error { return nil }
func (f *fakeRuleRepo) Update(rule *models.AutomationRule) error { return nil }

type fakeProfileRepo struct {
	profile *models.AutomationProfile
	err     error
}

func (f *fakeProfileRepo) GetByCustomer(customerID uint) (*models.AutomationProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return models.DefaultProfile(customerID), nil
	}
	return f.profile, nil
}

func (f *fakeProfileRepo) Save(profile *models.AutomationProfile) error { return nil }

func supervisedProfile() *models.AutomationProfile {
	return &models.AutomationProfile{
		CustomerID:               42,
		AutoExecuteMinConfidence: 90,
		AutoExecuteMaxAmount:     1000,
		QueueReviewMinConfidence: 60,
		EscalateMinAmount:        10000,
		AutomationStage:          models.AutomationStageSupervised,
	}
}

func newTestEvent(t *testing.T, customerID uint, payload map[string]any) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:         1,
		UUID:       "11111111-2222-3333-4444-555555555555",
		CustomerID: customerID,
		EventType:  models.EventTypeClaimSubmitted,
	}
	require.NoError(t, event.SetPayload(payload))
	return event
}

func TestEvaluateMatchingRule(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{
			ID:               1,
			CustomerID:       42,
			Name:             "high risk review",
			ConditionSetJSON: `{"risk_score":{"op":"gt","value":70}}`,
			ActionType:       "escalate_review",
			Priority:         10,
			Enabled:          true,
		},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 75}))

	require.Len(t, actions, 1)
	assert.Equal(t, "escalate_review", actions[0].ActionType)
	require.NotNil(t, actions[0].RuleID)
	assert.Equal(t, uint(1), *actions[0].RuleID)
}

func TestEvaluateNonMatchingRule(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{
			ID:               1,
			CustomerID:       42,
			ConditionSetJSON: `{"risk_score":{"op":"gt","value":70}}`,
			ActionType:       "escalate_review",
			Enabled:          true,
		},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 50}))
	assert.Empty(t, actions)
}

func TestEvaluateOrderingByPriority(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 3, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "third", Priority: 5, Enabled: true},
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "first", Priority: 10, Enabled: true},
		{ID: 4, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "fourth", Priority: 5, Enabled: true},
		{ID: 2, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "second", Priority: 10, Enabled: true},
		{ID: 5, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "disabled", Priority: 99, Enabled: false},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{}))

	require.Len(t, actions, 4)
	var got []string
	for _, a := range actions {
		got = append(got, a.ActionType)
	}
	// Priority desc, id asc on ties; disabled rules never evaluated.
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, got)
}

func TestEvaluateAbsentFieldIsNonMatch(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{"denial_code":{"op":"eq","value":"CO-97"}}`, ActionType: "resubmit", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 99}))
	assert.Empty(t, actions)
}

func TestEvaluateEmptyConditionSetAlwaysMatches(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "notify", Enabled: true},
		{ID: 2, CustomerID: 42, ConditionSetJSON: ``, ActionType: "notify_too", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{}))
	assert.Len(t, actions, 2)
}

func TestEvaluateMalformedConditionsFailClosed(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `not json at all`, ActionType: "broken_set", Enabled: true},
		{ID: 2, CustomerID: 42, ConditionSetJSON: `{"risk_score":{"op":"between","value":5}}`, ActionType: "broken_op", Enabled: true},
		{ID: 3, CustomerID: 42, ConditionSetJSON: `{"risk_score":{"op":"gt","value":70}}`, ActionType: "healthy", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 80}))

	// Malformed rules are skipped, not fatal: the healthy rule still fires.
	require.Len(t, actions, 1)
	assert.Equal(t, "healthy", actions[0].ActionType)
}

func TestRedLineOverridesConfidence(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"requires_human_review", map[string]any{"risk_score": 95, "amount": 200, "requires_human_review": true}},
		{"fraud_risk_score", map[string]any{"risk_score": 95, "amount": 200, "fraud_risk_score": 0.71}},
		{"compliance_risk_score", map[string]any{"risk_score": 95, "amount": 200, "compliance_risk_score": 0.9}},
	}

	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", Enabled: true},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})
			actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, tt.payload))

			require.Len(t, actions, 1)
			assert.Equal(t, TierEscalate, actions[0].Tier)
			assert.Equal(t, models.EscalationReasonRedLine, actions[0].RedLineReason)
		})
	}
}

func TestRedLineBelowThresholdDoesNotOverride(t *testing.T) {
	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{
		"risk_score":            95,
		"amount":                200,
		"fraud_risk_score":      0.7,
		"requires_human_review": false,
	}))

	require.Len(t, actions, 1)
	assert.Equal(t, TierAutoExecute, actions[0].Tier)
	assert.Empty(t, actions[0].RedLineReason)
}

func TestTierClassification(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Tier
	}{
		{"high confidence small amount", map[string]any{"risk_score": 95, "amount": 200}, TierAutoExecute},
		{"confidence field preferred", map[string]any{"confidence": 95, "risk_score": 5, "amount": 200}, TierAutoExecute},
		{"high confidence large amount", map[string]any{"risk_score": 95, "amount": 5000}, TierQueueReview},
		{"medium confidence", map[string]any{"risk_score": 70, "amount": 200}, TierQueueReview},
		{"low confidence", map[string]any{"risk_score": 10, "amount": 200}, TierEscalate},
		{"no confidence at all", map[string]any{"amount": 200}, TierEscalate},
		{"amount at escalate threshold", map[string]any{"risk_score": 95, "amount": 10000}, TierEscalate},
	}

	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", Enabled: true},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(rules, &fakeProfileRepo{profile: supervisedProfile()})
			actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, tt.payload))

			require.Len(t, actions, 1)
			assert.Equal(t, tt.want, actions[0].Tier)
		})
	}
}

func TestAssistedStageNeverAutoExecutes(t *testing.T) {
	profile := supervisedProfile()
	profile.AutomationStage = models.AutomationStageAssisted

	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: profile})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 99, "amount": 10}))

	require.Len(t, actions, 1)
	assert.Equal(t, TierQueueReview, actions[0].Tier)
}

func TestProfileInvariantViolationFailsClosed(t *testing.T) {
	profile := supervisedProfile()
	profile.AutoExecuteMinConfidence = 50
	profile.QueueReviewMinConfidence = 80 // invalid: auto bar below review bar

	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: profile})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 99, "amount": 10}))

	require.Len(t, actions, 1)
	assert.Equal(t, TierEscalate, actions[0].Tier)
	assert.Equal(t, models.EscalationReasonProfileViolation, actions[0].RedLineReason)
}

func TestEvaluateCarriesStageAndEscalateOnError(t *testing.T) {
	profile := supervisedProfile()
	profile.AutomationStage = models.AutomationStageShadow

	rules := &fakeRuleRepo{rules: []models.AutomationRule{
		{ID: 1, CustomerID: 42, ConditionSetJSON: `{}`, ActionType: "auto_adjust", EscalateOnError: true, Enabled: true},
	}}
	engine := NewEngine(rules, &fakeProfileRepo{profile: profile})

	actions := engine.Evaluate(context.Background(), newTestEvent(t, 42, map[string]any{"risk_score": 99}))

	require.Len(t, actions, 1)
	assert.Equal(t, models.AutomationStageShadow, actions[0].Stage)
	assert.True(t, actions[0].EscalateOnError)
}
