// Package layer provides priority-ordered configuration layers.
//
// Each source of configuration values (built-in defaults, the persisted
// file, environment overrides, explicit overrides, session mutations)
// contributes one layer. Higher priority layers override values from
// lower priority layers during merging.
package layer

import (
	"time"
)

// Layer represents a single configuration layer.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "file", "environment").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Source indicates where this layer was loaded from.
	Source Source

	// Data holds the configuration values.
	Data map[string]any

	// ModTime is when the layer was last replaced.
	ModTime time.Time
}

// New creates an empty configuration layer.
func New(name string, source Source, priority int) *Layer {
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: priority,
		Data:     make(map[string]any),
		ModTime:  time.Now(),
	}
}

// NewWithData creates a layer with initial data.
func NewWithData(name string, source Source, priority int, data map[string]any) *Layer {
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: priority,
		Data:     data,
		ModTime:  time.Now(),
	}
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	return &Layer{
		Name:     l.Name,
		Priority: l.Priority,
		Source:   l.Source,
		Data:     CloneMap(l.Data),
		ModTime:  l.ModTime,
	}
}

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin represents built-in default values.
	SourceBuiltin Source = iota
	// SourceFile represents the persisted configuration file.
	SourceFile
	// SourceEnv represents environment variable overrides.
	SourceEnv
	// SourceOverrides represents explicit caller-supplied overrides.
	SourceOverrides
	// SourceSession represents in-memory mutations made after startup.
	SourceSession
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "defaults"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "environment"
	case SourceOverrides:
		return "overrides"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}

// Standard priority levels for configuration layers. Higher values
// override lower values during merging.
const (
	// PriorityBuiltin is the lowest priority, for built-in defaults.
	PriorityBuiltin = 0

	// PriorityFile is for values loaded from the persisted file.
	PriorityFile = 100

	// PriorityEnv is for environment variable overrides.
	PriorityEnv = 200

	// PriorityOverrides is for explicit caller-supplied overrides.
	PriorityOverrides = 300

	// PrioritySession is the highest priority, for runtime mutations.
	PrioritySession = 400
)

// DefaultPriority returns the standard priority for a source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceBuiltin:
		return PriorityBuiltin
	case SourceFile:
		return PriorityFile
	case SourceEnv:
		return PriorityEnv
	case SourceOverrides:
		return PriorityOverrides
	case SourceSession:
		return PrioritySession
	default:
		return PriorityBuiltin
	}
}

// CloneMap creates a deep copy of a configuration map.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}

	return dst
}

// cloneSlice creates a deep copy of a slice.
func cloneSlice(src []any) []any {
	if src == nil {
		return nil
	}

	dst := make([]any, len(src))
	for i, val := range src {
		dst[i] = cloneValue(val)
	}

	return dst
}

// cloneValue creates a deep copy of a single value.
func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return CloneMap(v)
	case []any:
		return cloneSlice(v)
	case []string:
		dst := make([]string, len(v))
		copy(dst, v)
		return dst
	default:
		return val
	}
}
