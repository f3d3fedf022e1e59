// Package backup exports and restores point-in-time configuration
// snapshots.
//
// Each backup captures the registry's redacted configuration, tags it
// with a creation timestamp, and writes it to a new artifact file.
// A prior backup is never overwritten. Restores are routed through the
// registry's normal update path, so an invalid or corrupt artifact is
// rejected with the usual validation failure and leaves the live
// configuration untouched.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

// ErrArtifactNotFound indicates the named backup artifact doesn't
// exist.
var ErrArtifactNotFound = errors.New("backup artifact not found")

// ErrInvalidArtifact indicates the artifact file is not a valid
// backup document.
var ErrInvalidArtifact = errors.New("invalid backup artifact")

// Registry is the part of the configuration registry the backup
// manager depends on.
type Registry interface {
	// PublicConfig returns the redacted active snapshot.
	PublicConfig() map[string]any

	// Update validates and applies a batch of key updates.
	Update(updates map[string]any) error
}

// Artifact describes one stored backup.
type Artifact struct {
	// ID is the artifact identifier, usable with Restore.
	ID string

	// Path is the artifact file location.
	Path string

	// CreatedAt is when the backup was taken.
	CreatedAt time.Time
}

// envelope is the on-disk artifact document.
type envelope struct {
	CreatedAt time.Time      `json:"createdAt"`
	Config    map[string]any `json:"config"`
}

// Manager creates and restores backup artifacts in a directory
// distinct from the live configuration file.
type Manager struct {
	dir      string
	registry Registry
	logger   *zap.Logger
}

// New creates a backup manager writing artifacts under dir.
// A nil logger disables logging.
func New(dir string, registry Registry, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dir:      dir,
		registry: registry,
		logger:   logger,
	}
}

// Backup captures the redacted configuration at this point in time and
// persists it to a new artifact. It returns the artifact identifier.
func (m *Manager) Backup() (string, error) {
	env := envelope{
		CreatedAt: time.Now().UTC(),
		Config:    m.registry.PublicConfig(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("serializing backup: %w", err)
	}
	data = pretty.Pretty(data)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	id := artifactID(env.CreatedAt)
	path := filepath.Join(m.dir, id+".json")

	// O_EXCL guarantees a backup never replaces a prior artifact.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating backup artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing backup artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing backup artifact: %w", err)
	}

	m.logger.Info("configuration backup created", zap.String("artifact", id))
	return id, nil
}

// Restore loads the named artifact and feeds its configuration through
// the registry's update path. A corrupt or invalid artifact is
// rejected without touching the live configuration.
func (m *Manager) Restore(id string) error {
	// Identifiers are bare file stems; refuse anything that could
	// escape the backup directory.
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrArtifactNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(m.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrArtifactNotFound, id)
		}
		return fmt.Errorf("reading backup artifact: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: %q is not valid JSON", ErrInvalidArtifact, id)
	}
	config := gjson.GetBytes(data, "config")
	if !config.IsObject() {
		return fmt.Errorf("%w: %q has no configuration object", ErrInvalidArtifact, id)
	}

	values, ok := config.Value().(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %q has no configuration object", ErrInvalidArtifact, id)
	}

	if err := m.registry.Update(values); err != nil {
		return fmt.Errorf("restoring %q: %w", id, err)
	}

	m.logger.Info("configuration restored from backup", zap.String("artifact", id))
	return nil
}

// List enumerates stored artifacts, newest first.
func (m *Manager) List() ([]Artifact, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backup artifacts: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "backup-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			ID:        strings.TrimSuffix(name, ".json"),
			Path:      filepath.Join(m.dir, name),
			CreatedAt: info.ModTime(),
		})
	}

	// Artifact IDs embed the creation timestamp, so the lexical order
	// of IDs is chronological.
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].ID > artifacts[j].ID
	})
	return artifacts, nil
}

// artifactID builds a filesystem-safe, collision-resistant identifier:
// an RFC 3339 timestamp with ':' and '.' replaced, plus a short random
// suffix for backups taken within the same instant.
func artifactID(ts time.Time) string {
	stamp := ts.Format(time.RFC3339Nano)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("backup-%s-%s", stamp, uuid.NewString()[:8])
}
