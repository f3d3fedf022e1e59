// Package loader extracts configuration overrides from environment
// variables.
//
// Overrides are matched against an allow-list of known configuration
// keys rather than minting arbitrary keys from variable names. Matching
// is normalization-based (case and separators ignored) but always
// resolves to the canonical key spelling, so VOXMIND_TICK_RATE and
// VOXMIND_TICKRATE both land on "tickRate" instead of silently missing
// the camel-cased key its validation rule is declared under.
//
// Each allowed key carries a declared Kind, and the raw value is
// coerced to that kind. A host named "123" stays a string because host
// is declared a string; shape-based guessing applies only to extension
// keys declared KindAny.
package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Environ is a point-in-time snapshot of environment variables.
// Working from a snapshot keeps extraction a pure function of its input.
type Environ map[string]string

// OSEnviron captures the current process environment.
func OSEnviron() Environ {
	env := make(Environ)
	for _, entry := range os.Environ() {
		if name, value, ok := strings.Cut(entry, "="); ok {
			env[name] = value
		}
	}
	return env
}

// Lookup returns the first set value among the given variable names.
func (e Environ) Lookup(names ...string) (string, bool) {
	for _, name := range names {
		if value, ok := e[name]; ok {
			return value, true
		}
	}
	return "", false
}

// Kind declares the target type an environment value is coerced to.
type Kind uint8

const (
	// KindAny parses by value shape (see ParseScalar). Used for
	// extension keys with no declared type.
	KindAny Kind = iota

	// KindString keeps the trimmed value verbatim.
	KindString

	// KindInt requires a base-10 integer.
	KindInt

	// KindFloat requires a decimal number.
	KindFloat

	// KindBool requires the literal true or false, case-insensitive.
	KindBool

	// KindStringList accepts a JSON array of strings or a
	// comma-separated list.
	KindStringList
)

// EnvLoader maps prefixed environment variables onto configuration keys.
type EnvLoader struct {
	prefix    string
	canonical map[string]string // Normalized name -> canonical key
	kinds     map[string]Kind   // Canonical key -> declared kind
	logger    *zap.Logger
}

// NewEnvLoader creates a loader that recognizes variables starting with
// prefix (including the trailing underscore, e.g. "VOXMIND_") and maps
// them onto the allowed configuration keys, coercing each value to its
// declared kind. A nil logger disables output for skipped variables.
func NewEnvLoader(prefix string, keys map[string]Kind, logger *zap.Logger) *EnvLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &EnvLoader{
		prefix:    prefix,
		canonical: make(map[string]string, len(keys)),
		kinds:     make(map[string]Kind, len(keys)),
		logger:    logger,
	}
	l.AddKeys(keys)
	return l
}

// AddKeys extends the allow-list with additional canonical keys.
func (l *EnvLoader) AddKeys(keys map[string]Kind) {
	for key, kind := range keys {
		l.canonical[normalize(key)] = key
		l.kinds[key] = kind
	}
}

// Extract scans the environment snapshot and returns the sparse set of
// recognized overrides, keyed by canonical configuration key. Variables
// with the prefix but no matching key are skipped, as are values that
// cannot represent the key's declared kind.
func (l *EnvLoader) Extract(env Environ) map[string]any {
	overrides := make(map[string]any)

	for name, value := range env {
		if !strings.HasPrefix(name, l.prefix) {
			continue
		}

		key, ok := l.canonical[normalize(strings.TrimPrefix(name, l.prefix))]
		if !ok {
			l.logger.Debug("ignoring unrecognized configuration variable",
				zap.String("name", name))
			continue
		}

		coerced, ok := Coerce(value, l.kinds[key])
		if !ok {
			l.logger.Warn("ignoring environment override with invalid value",
				zap.String("name", name),
				zap.String("key", key))
			continue
		}
		overrides[key] = coerced
	}

	return overrides
}

// normalize lowercases a name and strips separators so that
// TICK_RATE, tick-rate, and tickRate all compare equal.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c == '_' || c == '-' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Coerce converts a raw environment value to the declared kind. It
// reports false when the value cannot represent that kind; callers
// treat such input as unset rather than inject a wrongly typed value.
func Coerce(raw string, kind Kind) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	switch kind {
	case KindString:
		return raw, true

	case KindInt:
		i, err := strconv.Atoi(raw)
		return i, err == nil

	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil

	case KindBool:
		if strings.EqualFold(raw, "true") {
			return true, true
		}
		if strings.EqualFold(raw, "false") {
			return false, true
		}
		return nil, false

	case KindStringList:
		list, ok := ParseStringList(raw)
		return list, ok

	default:
		return ParseScalar(raw), true
	}
}

// ParseStringList accepts either a JSON array of strings or a
// comma-separated list.
func ParseStringList(raw string) ([]string, bool) {
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, false
		}
		return list, true
	}

	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list, true
}

// ParseScalar converts an environment value into an appropriate
// configuration type by shape: boolean, integer, float, JSON array or
// object, or a plain trimmed string.
func ParseScalar(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i)
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}
