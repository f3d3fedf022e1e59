package botconfig

import (
	"errors"
	"fmt"
)

// Errors returned by registry operations.
var (
	// ErrNotInitialized indicates a mutation was attempted before
	// Initialize succeeded.
	ErrNotInitialized = errors.New("configuration registry not initialized")

	// ErrAlreadyInitialized indicates Initialize was called twice.
	ErrAlreadyInitialized = errors.New("configuration registry already initialized")

	// ErrKeyNotFound indicates the configuration key doesn't exist.
	ErrKeyNotFound = errors.New("configuration key not found")

	// ErrTypeMismatch indicates the value type doesn't match the
	// accessor's expected type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// TypeError is returned when a typed accessor finds a value of the
// wrong dynamic type.
type TypeError struct {
	// Key is the configuration key.
	Key string
	// Expected is the expected type name.
	Expected string
	// Actual is the actual type name.
	Actual string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return "unknown"
	}
}
