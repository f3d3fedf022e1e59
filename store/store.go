// Package store persists redacted configuration snapshots to a JSON
// document on disk.
//
// Persistence is best-effort by design: a missing file on load is an
// empty contribution, and every other I/O or parse failure degrades to
// a logged warning rather than an error. Secret keys are stripped from
// the serialized document before it ever reaches disk.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// Store reads and writes the configuration document at a fixed path.
type Store struct {
	path    string
	secrets []string
	logger  *zap.Logger

	// Write generation bookkeeping. A slow write that finishes after
	// a newer one has committed is discarded instead of renamed, so
	// the on-disk document always reflects the latest issued save.
	mu        sync.Mutex
	nextGen   uint64
	committed uint64

	// Called between the temp write and the commit, when set. Lets
	// tests hold a write open while a newer one commits.
	beforeCommit func()
}

// New creates a store for the given file path. Keys listed in secrets
// are removed from every document written. A nil logger disables
// warning output.
func New(path string, secrets []string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    path,
		secrets: append([]string(nil), secrets...),
		logger:  logger,
	}
}

// Path returns the configured file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the stored document.
//
// A missing file yields an empty map and no error. An unreadable or
// malformed file yields an empty map and a logged warning; a corrupt
// file must never block startup.
func (s *Store) Load() map[string]any {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("could not create configuration directory",
			zap.String("path", s.path), zap.Error(err))
		return map[string]any{}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read configuration file",
				zap.String("path", s.path), zap.Error(err))
		}
		return map[string]any{}
	}

	if !gjson.ValidBytes(data) {
		s.logger.Warn("configuration file is not valid JSON, ignoring",
			zap.String("path", s.path))
		return map[string]any{}
	}

	parsed, ok := gjson.ParseBytes(data).Value().(map[string]any)
	if !ok {
		s.logger.Warn("configuration file is not a JSON object, ignoring",
			zap.String("path", s.path))
		return map[string]any{}
	}

	return parsed
}

// Save serializes the snapshot, strips every secret key, and writes
// the pretty-printed result over any prior content. The write goes to
// a temporary file first and is committed with an atomic rename.
func (s *Store) Save(snapshot map[string]any) error {
	s.mu.Lock()
	s.nextGen++
	gen := s.nextGen
	s.mu.Unlock()

	data, err := Redact(snapshot, s.secrets)
	if err != nil {
		return fmt.Errorf("serializing configuration: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.committed {
		// A newer snapshot already hit the disk; this one is stale.
		os.Remove(tmpName)
		return nil
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing configuration: %w", err)
	}
	s.committed = gen
	return nil
}

// Redact serializes a snapshot to pretty-printed JSON with every
// secret key removed.
func Redact(snapshot map[string]any, secrets []string) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	for _, key := range secrets {
		data, err = sjson.DeleteBytes(data, key)
		if err != nil {
			return nil, err
		}
	}

	return pretty.Pretty(data), nil
}
