// Package botconfig provides the configuration core for the VoxMind
// agent.
//
// The package reconciles configuration values from multiple sources of
// differing precedence, enforces a declarative validation schema,
// persists a redacted snapshot to disk, supports point-in-time
// backup/restore, and notifies observers of per-key value changes.
//
// # Architecture
//
// Configuration is organized in layers with higher layers overriding
// lower:
//
//	┌─────────────────────────────┐
//	│  5. Session Mutations       │  ← Highest priority (Set/Update)
//	├─────────────────────────────┤
//	│  4. Explicit Overrides      │  ← Initialize(ctx, overrides)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← VOXMIND_* (allow-listed)
//	├─────────────────────────────┤
//	│  2. Persisted File          │  ← config/config.json
//	├─────────────────────────────┤
//	│  1. Computed Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - layer: Layer management, deep merging, snapshot diffing
//   - schema: Declarative per-key validation rules
//   - loader: Environment override extraction
//   - notify: Change notification and observer registrations
//   - store: Redacted JSON persistence with asynchronous writes
//   - backup: Timestamped snapshot export and restore
//   - watcher: File watching for live reload
//
// # Basic Usage
//
// Create and initialize a registry:
//
//	reg := botconfig.New(
//		botconfig.WithPath("config/config.json"),
//		botconfig.WithLogger(logger),
//	)
//	defer reg.Close()
//
//	if err := reg.Initialize(ctx, nil); err != nil {
//		// err carries the complete list of validation violations
//	}
//
// Read and mutate values:
//
//	port, _ := reg.GetInt("port")
//	if err := reg.Set("tickRate", 10); err != nil {
//		// rejected; active snapshot unchanged
//	}
//
// Watch a key for changes:
//
//	sub := reg.Watch("logLevel", func(c notify.Change) {
//		level.Set(c.NewValue.(string))
//	})
//	defer sub.Unsubscribe()
//
// The active snapshot always satisfies every declared validation rule:
// a mutation whose candidate snapshot fails validation is rejected in
// full and leaves the previous snapshot untouched. Keys in the secret
// field set never appear in the persisted document or in
// PublicConfig, regardless of how they were set.
package botconfig
