package rules

import (
	"encoding/json"
	"fmt"
)

// Operator is the comparison operator of a rule condition. Conditions are
// data, not code: the operator set is closed and dispatch is typed, so a
// typo in stored configuration can only ever fail to match, never execute
// something unintended.
type Operator string

const (
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpEq  Operator = "eq"
)

// ParseOperator validates a stored operator string.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpGt, OpGte, OpLt, OpLte, OpEq:
		return Operator(s), nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Condition is one field comparison inside a rule's condition set.
type Condition struct {
	Op    Operator
	Value any
}

// conditionJSON is the stored wire shape of a condition.
type conditionJSON struct {
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// parseCondition decodes and validates one stored condition entry.
func parseCondition(raw json.RawMessage) (Condition, error) {
	var cj conditionJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return Condition{}, err
	}
	op, err := ParseOperator(cj.Op)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Op: op, Value: cj.Value}, nil
}

// Matches evaluates the condition against a payload field value. A field
// value of the wrong type for the operator evaluates to false, never to an
// error: rule evaluation fails closed.
func (c Condition) Matches(fieldValue any) bool {
	switch c.Op {
	case OpGt, OpGte, OpLt, OpLte:
		left, lok := toFloat(fieldValue)
		right, rok := toFloat(c.Value)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case OpGt:
			return left > right
		case OpGte:
			return left >= right
		case OpLt:
			return left < right
		default:
			return left <= right
		}
	case OpEq:
		return equals(fieldValue, c.Value)
	}
	return false
}

// equals compares two payload values: numerically when both sides are
// numeric, otherwise by matching concrete type.
func equals(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// toFloat coerces the numeric types JSON decoding and Go callers produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
