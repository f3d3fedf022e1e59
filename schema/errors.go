package schema

import (
	"fmt"
	"strings"
)

// Code categorizes a validation violation.
type Code uint8

const (
	// CodeRequired indicates a required key is absent or empty.
	CodeRequired Code = iota
	// CodeType indicates the value type does not match the rule.
	CodeType
	// CodeRange indicates a numeric value is out of bounds.
	CodeRange
	// CodeLength indicates a string length is out of bounds.
	CodeLength
	// CodeEnum indicates the value is not in the allowed set.
	CodeEnum
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case CodeRequired:
		return "required_missing"
	case CodeType:
		return "type_mismatch"
	case CodeRange:
		return "out_of_range"
	case CodeLength:
		return "length_out_of_range"
	case CodeEnum:
		return "invalid_enum"
	default:
		return "unknown"
	}
}

// Violation describes a single validation failure.
type Violation struct {
	// Key is the configuration key that failed validation.
	Key string

	// Message is the caller-facing description, including the key.
	Message string

	// Code categorizes the failure.
	Code Code

	// Value is the offending value (nil when the key was absent).
	Value any
}

// Error implements the error interface.
func (v Violation) Error() string {
	return v.Message
}

// Violations is the aggregated, non-empty list of violations raised by
// a failed validation. An empty list is never returned as an error.
type Violations []Violation

// Error implements the error interface.
func (vs Violations) Error() string {
	switch len(vs) {
	case 0:
		return "no validation violations"
	case 1:
		return vs[0].Message
	}

	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("%d validation violations: %s", len(vs), strings.Join(msgs, "; "))
}

// AsError returns nil when the list is empty, otherwise the list itself.
func (vs Violations) AsError() error {
	if len(vs) == 0 {
		return nil
	}
	return vs
}

// HasCode reports whether any violation carries the given code.
func (vs Violations) HasCode(code Code) bool {
	for _, v := range vs {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ForKey returns all violations recorded for a specific key.
func (vs Violations) ForKey(key string) Violations {
	var result Violations
	for _, v := range vs {
		if v.Key == key {
			result = append(result, v)
		}
	}
	return result
}
