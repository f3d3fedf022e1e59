// Package schema provides declarative validation for configuration
// snapshots.
//
// Each rule constrains a single configuration key: value type, required
// presence, numeric bounds, string length bounds, and enumerated values.
// Validation never stops at the first failure; every violation across
// every rule is collected so callers can report a complete diagnostic.
package schema

// ValueType is the declared type of a configuration value.
type ValueType string

const (
	// TypeString requires a string value.
	TypeString ValueType = "string"
	// TypeNumber requires a numeric value (integer or float).
	TypeNumber ValueType = "number"
	// TypeBoolean requires a boolean value.
	TypeBoolean ValueType = "boolean"
)

// Rule constrains a single configuration key.
// A key with no rule is unconstrained. Zero-valued fields are not checked.
type Rule struct {
	// Type is the expected value type.
	Type ValueType

	// Required fails validation when the value is absent or empty.
	Required bool

	// Minimum is the inclusive lower bound for numeric values.
	Minimum *float64

	// Maximum is the inclusive upper bound for numeric values.
	Maximum *float64

	// MinLength is the inclusive lower bound on string length.
	MinLength *int

	// MaxLength is the inclusive upper bound on string length.
	MaxLength *int

	// Enum is the closed set of allowed string values.
	Enum []string
}

// Float returns a pointer to f, for use in rule literals.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i, for use in rule literals.
func Int(i int) *int { return &i }
