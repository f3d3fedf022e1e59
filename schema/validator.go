package schema

import (
	"fmt"
	"sort"
	"strconv"
)

// Validator evaluates a rule set against candidate configuration
// snapshots. It is immutable after construction and safe for
// concurrent use.
type Validator struct {
	rules map[string]Rule
	keys  []string // Sorted rule keys, fixing violation order
}

// NewValidator creates a validator for the given rule set.
func NewValidator(rules map[string]Rule) *Validator {
	keys := make([]string, 0, len(rules))
	for key := range rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	copied := make(map[string]Rule, len(rules))
	for key, rule := range rules {
		copied[key] = rule
	}

	return &Validator{rules: copied, keys: keys}
}

// RuleCount returns the number of declared rules.
func (v *Validator) RuleCount() int {
	return len(v.rules)
}

// Rule returns the rule for a key, if one is declared.
func (v *Validator) Rule(key string) (Rule, bool) {
	rule, ok := v.rules[key]
	return rule, ok
}

// Validate evaluates every rule against the snapshot and returns the
// complete list of violations. An empty list means the snapshot is valid.
func (v *Validator) Validate(snapshot map[string]any) Violations {
	var violations Violations

	for _, key := range v.keys {
		rule := v.rules[key]
		value, present := snapshot[key]

		if absentOrEmpty(value, present) {
			if rule.Required {
				violations = append(violations, Violation{
					Key:     key,
					Message: fmt.Sprintf("%s is required", key),
					Code:    CodeRequired,
				})
			}
			continue
		}

		violations = append(violations, v.checkValue(key, value, rule)...)
	}

	return violations
}

// checkValue applies type, bounds, and enum checks to a present value.
func (v *Validator) checkValue(key string, value any, rule Rule) Violations {
	var violations Violations

	switch rule.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return Violations{typeViolation(key, "a string", value)}
		}
		if rule.MinLength != nil && len(s) < *rule.MinLength {
			violations = append(violations, Violation{
				Key:     key,
				Message: fmt.Sprintf("%s must be at least %d characters", key, *rule.MinLength),
				Code:    CodeLength,
				Value:   value,
			})
		}
		if rule.MaxLength != nil && len(s) > *rule.MaxLength {
			violations = append(violations, Violation{
				Key:     key,
				Message: fmt.Sprintf("%s must be at most %d characters", key, *rule.MaxLength),
				Code:    CodeLength,
				Value:   value,
			})
		}
		if len(rule.Enum) > 0 && !contains(rule.Enum, s) {
			violations = append(violations, Violation{
				Key:     key,
				Message: fmt.Sprintf("%s must be one of %v", key, rule.Enum),
				Code:    CodeEnum,
				Value:   value,
			})
		}

	case TypeNumber:
		f, ok := toNumber(value)
		if !ok {
			return Violations{typeViolation(key, "a number", value)}
		}
		if rule.Minimum != nil && f < *rule.Minimum {
			violations = append(violations, Violation{
				Key:     key,
				Message: fmt.Sprintf("%s must be at least %s", key, formatNumber(*rule.Minimum)),
				Code:    CodeRange,
				Value:   value,
			})
		}
		if rule.Maximum != nil && f > *rule.Maximum {
			violations = append(violations, Violation{
				Key:     key,
				Message: fmt.Sprintf("%s must be at most %s", key, formatNumber(*rule.Maximum)),
				Code:    CodeRange,
				Value:   value,
			})
		}

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return Violations{typeViolation(key, "a boolean", value)}
		}
	}

	return violations
}

func typeViolation(key, expected string, value any) Violation {
	return Violation{
		Key:     key,
		Message: fmt.Sprintf("%s must be %s, got %T", key, expected, value),
		Code:    CodeType,
		Value:   value,
	}
}

// absentOrEmpty reports whether a value counts as missing for the
// purposes of a required check.
func absentOrEmpty(value any, present bool) bool {
	if !present || value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// formatNumber renders bounds without a trailing ".0" for whole numbers.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
