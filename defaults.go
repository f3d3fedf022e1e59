package botconfig

import (
	"github.com/voxmind/botconfig/loader"
	"github.com/voxmind/botconfig/schema"
)

// EnvPrefix is the recognized prefix for configuration override
// variables (e.g. VOXMIND_TICK_RATE).
const EnvPrefix = "VOXMIND_"

// defaultSpec declares one baseline configuration key: the environment
// variable name(s) consulted (first set wins), the declared kind, and
// the hard-coded fallback used when the input is absent, empty, or
// unparseable.
type defaultSpec struct {
	key      string
	kind     loader.Kind
	env      []string
	fallback any
}

func defaultSpecs() []defaultSpec {
	return []defaultSpec{
		// Connection
		{"host", loader.KindString, []string{"VOXMIND_HOST"}, "localhost"},
		{"port", loader.KindInt, []string{"VOXMIND_PORT"}, 19132},
		{"username", loader.KindString, []string{"VOXMIND_USERNAME"}, "VoxMind"},
		{"protocolVersion", loader.KindString, []string{"VOXMIND_PROTOCOL_VERSION"}, "1.21.0"},

		// AI provider
		{"geminiApiKey", loader.KindString, []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "VOXMIND_GEMINI_API_KEY"}, ""},
		{"model", loader.KindString, []string{"VOXMIND_MODEL"}, "gemini-2.0-flash"},
		{"maxTokens", loader.KindInt, []string{"VOXMIND_MAX_TOKENS"}, 1024},
		{"temperature", loader.KindFloat, []string{"VOXMIND_TEMPERATURE"}, 0.7},
		{"topP", loader.KindFloat, []string{"VOXMIND_TOP_P"}, 0.95},

		// Behavior
		{"autoRespond", loader.KindBool, []string{"VOXMIND_AUTO_RESPOND"}, true},
		{"learningEnabled", loader.KindBool, []string{"VOXMIND_LEARNING_ENABLED"}, true},
		{"aggressiveness", loader.KindFloat, []string{"VOXMIND_AGGRESSIVENESS"}, 0.3},

		// Missions
		{"missionTimeout", loader.KindInt, []string{"VOXMIND_MISSION_TIMEOUT"}, 300},
		{"teamSize", loader.KindInt, []string{"VOXMIND_TEAM_SIZE"}, 1},

		// Combat and navigation
		{"combatRange", loader.KindFloat, []string{"VOXMIND_COMBAT_RANGE"}, 3.5},
		{"pathfindingTimeout", loader.KindInt, []string{"VOXMIND_PATHFINDING_TIMEOUT"}, 5000},

		// Inventory and crafting
		{"autoEat", loader.KindBool, []string{"VOXMIND_AUTO_EAT"}, true},
		{"autoCraft", loader.KindBool, []string{"VOXMIND_AUTO_CRAFT"}, false},

		// Diagnostics
		{"logLevel", loader.KindString, []string{"VOXMIND_LOG_LEVEL"}, "info"},
		{"debugMode", loader.KindBool, []string{"VOXMIND_DEBUG_MODE"}, false},

		// Performance
		{"tickRate", loader.KindInt, []string{"VOXMIND_TICK_RATE"}, 20},
		{"memoryLimitMb", loader.KindInt, []string{"VOXMIND_MEMORY_LIMIT_MB"}, 512},

		// Learning store
		{"learningStorePath", loader.KindString, []string{"VOXMIND_LEARNING_STORE_PATH"}, "data/learning.json"},
		{"learningMaxEntries", loader.KindInt, []string{"VOXMIND_LEARNING_MAX_ENTRIES"}, 1000},

		// Security
		{"allowedCommands", loader.KindStringList, []string{"VOXMIND_ALLOWED_COMMANDS"}, []string{"come", "follow", "mine", "stop"}},
		{"adminUsers", loader.KindStringList, []string{"VOXMIND_ADMIN_USERS"}, []string{}},
		{"commandRateLimit", loader.KindInt, []string{"VOXMIND_COMMAND_RATE_LIMIT"}, 10},
		{"webhookUrl", loader.KindString, []string{"VOXMIND_WEBHOOK_URL"}, ""},
	}
}

// ComputeDefaults builds the baseline configuration from an environment
// snapshot. Each declared key reads its environment input, coerces it
// to the declared kind, and falls back to the hard-coded default when
// the input is absent, empty, or unparseable. It never fails, and
// repeated calls with the same snapshot produce identical output.
func ComputeDefaults(env loader.Environ) map[string]any {
	defaults := make(map[string]any)
	for _, spec := range defaultSpecs() {
		defaults[spec.key] = spec.resolve(env)
	}
	return defaults
}

// DefaultKeys returns the declared default keys.
func DefaultKeys() []string {
	specs := defaultSpecs()
	keys := make([]string, len(specs))
	for i, spec := range specs {
		keys[i] = spec.key
	}
	return keys
}

// DefaultEnvKinds returns the declared default keys with their kinds,
// forming the base allow-list for environment override extraction.
func DefaultEnvKinds() map[string]loader.Kind {
	specs := defaultSpecs()
	kinds := make(map[string]loader.Kind, len(specs))
	for _, spec := range specs {
		kinds[spec.key] = spec.kind
	}
	return kinds
}

// DefaultSecretFields lists the keys that must never reach durable
// storage or the redacted accessor.
func DefaultSecretFields() []string {
	return []string{"geminiApiKey", "webhookUrl", "adminUsers"}
}

// DefaultRules returns the standard validation rule set.
func DefaultRules() map[string]schema.Rule {
	return map[string]schema.Rule{
		"host":             {Type: schema.TypeString, Required: true, MinLength: schema.Int(1)},
		"port":             {Type: schema.TypeNumber, Required: true, Minimum: schema.Float(1), Maximum: schema.Float(65535)},
		"username":         {Type: schema.TypeString, Required: true, MinLength: schema.Int(1), MaxLength: schema.Int(32)},
		"maxTokens":        {Type: schema.TypeNumber, Minimum: schema.Float(1), Maximum: schema.Float(8192)},
		"temperature":      {Type: schema.TypeNumber, Minimum: schema.Float(0), Maximum: schema.Float(2)},
		"topP":             {Type: schema.TypeNumber, Minimum: schema.Float(0), Maximum: schema.Float(1)},
		"aggressiveness":   {Type: schema.TypeNumber, Minimum: schema.Float(0), Maximum: schema.Float(1)},
		"missionTimeout":   {Type: schema.TypeNumber, Minimum: schema.Float(1), Maximum: schema.Float(86400)},
		"teamSize":         {Type: schema.TypeNumber, Minimum: schema.Float(1), Maximum: schema.Float(16)},
		"logLevel":         {Type: schema.TypeString, Enum: []string{"debug", "info", "warn", "error"}},
		"tickRate":         {Type: schema.TypeNumber, Minimum: schema.Float(1), Maximum: schema.Float(100)},
		"memoryLimitMb":    {Type: schema.TypeNumber, Minimum: schema.Float(64), Maximum: schema.Float(8192)},
		"commandRateLimit": {Type: schema.TypeNumber, Minimum: schema.Float(1), Maximum: schema.Float(1000)},
		"debugMode":        {Type: schema.TypeBoolean},
		"autoRespond":      {Type: schema.TypeBoolean},
	}
}

// resolve reads and coerces the spec's environment input, falling back
// to the declared default.
func (d defaultSpec) resolve(env loader.Environ) any {
	raw, ok := env.Lookup(d.env...)
	if !ok {
		return d.fallback
	}
	value, ok := loader.Coerce(raw, d.kind)
	if !ok {
		return d.fallback
	}
	return value
}
