package botconfig

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxmind/botconfig/layer"
	"github.com/voxmind/botconfig/loader"
	"github.com/voxmind/botconfig/notify"
	"github.com/voxmind/botconfig/schema"
	"github.com/voxmind/botconfig/store"
	"github.com/voxmind/botconfig/watcher"
)

// DefaultPath is the default location of the persisted configuration
// file, relative to the working directory.
const DefaultPath = "config/config.json"

// StartupPolicy controls how Initialize responds to a validation
// failure of the merged startup configuration.
type StartupPolicy uint8

const (
	// StartupAbort surfaces the violation list to the caller and
	// leaves the registry uninitialized. This is the default.
	StartupAbort StartupPolicy = iota

	// StartupFallbackDefaults logs the violations, discards the file,
	// environment, and explicit override contributions, and starts
	// from the computed defaults alone.
	StartupFallbackDefaults
)

// Registry owns the single authoritative configuration snapshot.
//
// It orchestrates merge order (defaults, persisted file, environment
// overrides, explicit overrides), validation, best-effort asynchronous
// persistence, and watcher notification. All methods are safe for
// concurrent use; mutations are serialized by a single writer lock.
type Registry struct {
	mu sync.RWMutex

	// Layered sources of the merged configuration
	layers *layer.Manager

	// Declarative per-key validation
	validator *schema.Validator

	// Per-key change observers
	notifier *notify.Notifier

	// Durable storage and its fire-and-forget write queue
	store     *store.Store
	persister *store.Persister

	// Optional live reload of the persisted file
	fileWatcher *watcher.Watcher

	// Environment override extraction
	envLoader *loader.EnvLoader

	logger *zap.Logger

	// Active snapshot. Replaced wholesale on every successful
	// mutation, never modified in place.
	active map[string]any
	ready  bool

	// Environment snapshot captured at Initialize, reused by Reset.
	env loader.Environ

	// Options
	path          string
	prefix        string
	rules         map[string]schema.Rule
	secrets       []string
	extensionKeys []string
	startupPolicy StartupPolicy
	saveTimeout   time.Duration
	liveReload    bool
	fixedEnv      loader.Environ
}

// Option configures a Registry instance.
type Option func(*Registry)

// WithPath sets the persisted configuration file location.
func WithPath(path string) Option {
	return func(r *Registry) {
		r.path = path
	}
}

// WithLogger sets the logger for persistence warnings and watcher
// failures. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithStartupPolicy sets the response to startup validation failure.
func WithStartupPolicy(policy StartupPolicy) Option {
	return func(r *Registry) {
		r.startupPolicy = policy
	}
}

// WithRule declares or replaces the validation rule for a key.
func WithRule(key string, rule schema.Rule) Option {
	return func(r *Registry) {
		r.rules[key] = rule
	}
}

// WithSecretFields replaces the set of keys stripped from persisted
// documents and the redacted accessor.
func WithSecretFields(keys ...string) Option {
	return func(r *Registry) {
		r.secrets = append([]string(nil), keys...)
	}
}

// WithExtensionKeys declares additional keys accepted from prefixed
// environment variables beyond the built-in default set.
func WithExtensionKeys(keys ...string) Option {
	return func(r *Registry) {
		r.extensionKeys = append(r.extensionKeys, keys...)
	}
}

// WithEnvPrefix sets the recognized environment variable prefix,
// including the trailing separator.
func WithEnvPrefix(prefix string) Option {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

// WithEnviron fixes the environment snapshot instead of capturing the
// process environment at Initialize.
func WithEnviron(env loader.Environ) Option {
	return func(r *Registry) {
		r.fixedEnv = env
	}
}

// WithSaveTimeout bounds each asynchronous configuration write.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.saveTimeout = timeout
	}
}

// WithLiveReload enables reloading the persisted file when it is
// modified outside the registry.
func WithLiveReload(enable bool) Option {
	return func(r *Registry) {
		r.liveReload = enable
	}
}

// New creates a new Registry with the given options. The registry is
// not usable for mutation until Initialize succeeds.
func New(opts ...Option) *Registry {
	r := &Registry{
		layers:  layer.NewManager(),
		path:    DefaultPath,
		prefix:  EnvPrefix,
		rules:   DefaultRules(),
		secrets: DefaultSecretFields(),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.validator = schema.NewValidator(r.rules)
	r.notifier = notify.New(r.logger)
	r.store = store.New(r.path, r.secrets, r.logger)
	r.persister = store.NewPersister(r.store, r.saveTimeout, r.logger)

	// Environment allow-list: every declared key with its coercion kind.
	// Rule-only keys derive a kind from the rule type; extension keys
	// parse by shape.
	allowed := DefaultEnvKinds()
	for key, rule := range r.rules {
		if _, ok := allowed[key]; ok {
			continue
		}
		allowed[key] = envKind(rule.Type)
	}
	for _, key := range r.extensionKeys {
		if _, ok := allowed[key]; !ok {
			allowed[key] = loader.KindAny
		}
	}
	r.envLoader = loader.NewEnvLoader(r.prefix, allowed, r.logger)

	return r
}

// envKind maps a rule type to the coercion kind for environment input.
func envKind(t schema.ValueType) loader.Kind {
	switch t {
	case schema.TypeString:
		return loader.KindString
	case schema.TypeNumber:
		return loader.KindFloat
	case schema.TypeBoolean:
		return loader.KindBool
	default:
		return loader.KindAny
	}
}

// newSourceLayer builds a layer named after its source at the standard
// priority for that source.
func newSourceLayer(source layer.Source, data map[string]any) *layer.Layer {
	return layer.NewWithData(source.String(), source, layer.DefaultPriority(source), data)
}

// Initialize computes defaults, loads the persisted snapshot, extracts
// environment overrides, merges everything with the caller's explicit
// overrides (later sources win per key), and validates the result.
//
// On success the merged snapshot becomes active, a persist is queued,
// and the registry becomes Ready. On validation failure the behavior
// follows the configured StartupPolicy.
func (r *Registry) Initialize(_ context.Context, overrides map[string]any) error {
	r.mu.Lock()

	if r.ready {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}

	r.env = r.fixedEnv
	if r.env == nil {
		r.env = loader.OSEnviron()
	}

	r.layers.Clear()
	r.layers.Add(newSourceLayer(layer.SourceBuiltin, ComputeDefaults(r.env)))
	r.layers.Add(newSourceLayer(layer.SourceFile, r.store.Load()))
	r.layers.Add(newSourceLayer(layer.SourceEnv, r.envLoader.Extract(r.env)))
	r.layers.Add(newSourceLayer(layer.SourceOverrides, layer.CloneMap(overrides)))
	r.layers.Add(layer.New("session", layer.SourceSession, layer.DefaultPriority(layer.SourceSession)))

	merged := r.layers.Merge()
	if violations := r.validator.Validate(merged); len(violations) > 0 {
		if r.startupPolicy == StartupAbort {
			r.mu.Unlock()
			return violations
		}

		r.logger.Warn("startup configuration invalid, falling back to defaults",
			zap.Int("violations", len(violations)),
			zap.String("detail", violations.Error()))

		for _, name := range []string{"file", "environment", "overrides"} {
			_ = r.layers.Replace(name, map[string]any{})
		}
		merged = r.layers.Merge()
		if violations := r.validator.Validate(merged); len(violations) > 0 {
			r.mu.Unlock()
			return violations
		}
	}

	r.active = merged
	r.ready = true
	r.persister.Enqueue(r.active)
	r.mu.Unlock()

	if r.liveReload {
		r.startFileWatcher()
	}

	return nil
}

// Get returns the current value for key, or fallback if the key is
// absent. It never fails.
func (r *Registry) Get(key string, fallback any) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if value, ok := r.active[key]; ok {
		return value
	}
	return fallback
}

// Has reports whether key is present in the active snapshot.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.active[key]
	return ok
}

// GetString returns a string value for key.
func (r *Registry) GetString(key string) (string, error) {
	v, ok := r.lookup(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Key: key, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value for key. Whole float values loaded
// from the persisted JSON document are converted; a fractional value
// is a type mismatch, never a silent truncation.
func (r *Registry) GetInt(key string) (int, error) {
	v, ok := r.lookup(key)
	if !ok {
		return 0, ErrKeyNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, &TypeError{Key: key, Expected: "int", Actual: typeName(v)}
		}
		return int(val), nil
	default:
		return 0, &TypeError{Key: key, Expected: "int", Actual: typeName(v)}
	}
}

// GetFloat returns a float64 value for key.
func (r *Registry) GetFloat(key string) (float64, error) {
	v, ok := r.lookup(key)
	if !ok {
		return 0, ErrKeyNotFound
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return 0, &TypeError{Key: key, Expected: "float64", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value for key.
func (r *Registry) GetBool(key string) (bool, error) {
	v, ok := r.lookup(key)
	if !ok {
		return false, ErrKeyNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Key: key, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetStringSlice returns a string slice for key.
func (r *Registry) GetStringSlice(key string) ([]string, error) {
	v, ok := r.lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}

	switch val := v.(type) {
	case []string:
		result := make([]string, len(val))
		copy(result, val)
		return result, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Key: key, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	default:
		return nil, &TypeError{Key: key, Expected: "[]string", Actual: typeName(v)}
	}
}

// Set validates and applies a single key update.
func (r *Registry) Set(key string, value any) error {
	return r.apply(map[string]any{key: value}, "set")
}

// Update validates and applies a batch of key updates atomically:
// either every update takes effect or none do.
func (r *Registry) Update(updates map[string]any) error {
	return r.apply(updates, "update")
}

// apply builds a candidate snapshot, validates it, and on success
// swaps it in wholesale, queues a persist, and notifies watchers of
// each changed key. On failure the active snapshot is untouched.
func (r *Registry) apply(updates map[string]any, source string) error {
	r.mu.Lock()

	if !r.ready {
		r.mu.Unlock()
		return ErrNotInitialized
	}

	updates = layer.CloneMap(updates)
	candidate := layer.CloneMap(r.active)
	for key, value := range updates {
		candidate[key] = value
	}

	if violations := r.validator.Validate(candidate); len(violations) > 0 {
		r.mu.Unlock()
		return violations
	}

	// Record the mutation in the session layer so a live reload of the
	// file layer re-merges on top of it rather than clobbering it.
	session := r.layers.Get("session")
	for key, value := range updates {
		session.Data[key] = value
	}
	r.layers.Invalidate()

	old := r.active
	r.active = candidate
	r.persister.Enqueue(r.active)
	r.mu.Unlock()

	r.notifyChanged(old, candidate, source)
	return nil
}

// Reset replaces the active snapshot with a fresh copy of the computed
// defaults, notifying watchers only for keys whose value actually
// changed. Resetting twice in a row produces no notifications.
func (r *Registry) Reset() error {
	r.mu.Lock()

	if !r.ready {
		r.mu.Unlock()
		return ErrNotInitialized
	}

	defaults := ComputeDefaults(r.env)
	if violations := r.validator.Validate(defaults); len(violations) > 0 {
		r.mu.Unlock()
		return violations
	}

	_ = r.layers.Replace("defaults", defaults)
	for _, name := range []string{"file", "environment", "overrides", "session"} {
		_ = r.layers.Replace(name, map[string]any{})
	}

	old := r.active
	fresh := r.layers.Merge()
	r.active = fresh
	r.persister.Enqueue(r.active)
	r.mu.Unlock()

	r.notifyChanged(old, fresh, "reset")
	return nil
}

// Watch registers an observer invoked synchronously, in registration
// order, whenever key's value changes. The returned subscription's
// Unsubscribe removes this specific registration.
func (r *Registry) Watch(key string, observer notify.Observer) *notify.Subscription {
	return r.notifier.Subscribe(key, observer)
}

// Config returns a deep copy of the full, unredacted active snapshot.
// For trusted internal use only.
func (r *Registry) Config() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return layer.CloneMap(r.active)
}

// PublicConfig returns the active snapshot with every secret field
// removed. Safe for external exposure.
func (r *Registry) PublicConfig() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	public := layer.CloneMap(r.active)
	for _, key := range r.secrets {
		delete(public, key)
	}
	return public
}

// Stats summarizes the registry state.
type Stats struct {
	// Keys is the number of keys in the active snapshot.
	Keys int

	// Watchers is the number of active observer registrations.
	Watchers int

	// Rules is the number of declared validation rules.
	Rules int

	// Ready reports whether Initialize has succeeded.
	Ready bool
}

// Stats returns counts of keys, active watchers, and validation rules.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Keys:     len(r.active),
		Watchers: r.notifier.Count(),
		Rules:    r.validator.RuleCount(),
		Ready:    r.ready,
	}
}

// Close flushes pending persistence and shuts down the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	w := r.fileWatcher
	r.fileWatcher = nil
	r.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	r.persister.Close()
	r.notifier.Close()
}

// notifyChanged delivers per-key change notifications for every key
// whose value differs between the two snapshots. Keys are visited in
// sorted order so delivery is deterministic.
func (r *Registry) notifyChanged(old, new map[string]any, source string) {
	changed := layer.Diff(old, new)
	sort.Strings(changed)

	for _, key := range changed {
		r.notifier.Notify(notify.Change{
			Key:      key,
			OldValue: old[key],
			NewValue: new[key],
			Source:   source,
		})
	}
}

// lookup fetches a value from the active snapshot.
func (r *Registry) lookup(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.active[key]
	return v, ok
}

// startFileWatcher begins monitoring the persisted file for external
// edits. Failure to start is a warning, not an error; live reload is
// an optional convenience.
func (r *Registry) startFileWatcher() {
	w, err := watcher.New(r.store.Path(), 0, r.logger)
	if err != nil {
		r.logger.Warn("could not create configuration file watcher", zap.Error(err))
		return
	}
	if err := w.Start(r.reloadFromDisk); err != nil {
		r.logger.Warn("could not start configuration file watcher", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.fileWatcher = w
	r.mu.Unlock()
}

// reloadFromDisk re-reads the persisted file into the file layer. If
// the re-merged configuration fails validation, the previous file
// layer is restored and the active snapshot is kept.
func (r *Registry) reloadFromDisk() {
	r.mu.Lock()

	if !r.ready {
		r.mu.Unlock()
		return
	}

	fileLayer := r.layers.Get("file")
	previous := layer.CloneMap(fileLayer.Data)

	_ = r.layers.Replace("file", r.store.Load())
	candidate := r.layers.Merge()

	if violations := r.validator.Validate(candidate); len(violations) > 0 {
		_ = r.layers.Replace("file", previous)
		r.mu.Unlock()
		r.logger.Warn("reloaded configuration file is invalid, keeping current snapshot",
			zap.String("detail", violations.Error()))
		return
	}

	old := r.active
	r.active = candidate
	r.mu.Unlock()

	r.notifyChanged(old, candidate, "reload")
}
