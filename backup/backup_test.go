package backup

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRegistry records updates and serves a fixed public snapshot.
type fakeRegistry struct {
	public    map[string]any
	updates   []map[string]any
	updateErr error
}

func (f *fakeRegistry) PublicConfig() map[string]any {
	out := make(map[string]any, len(f.public))
	for k, v := range f.public {
		out[k] = v
	}
	return out
}

func (f *fakeRegistry) Update(updates map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, updates)
	return nil
}

func TestBackupCreatesArtifact(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{public: map[string]any{
		"host":     "localhost",
		"port":     float64(19132),
		"tickRate": float64(20),
	}}
	mgr := New(dir, reg, nil)

	id, err := mgr.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !strings.HasPrefix(id, "backup-") {
		t.Errorf("artifact id %q missing backup- prefix", id)
	}

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}

	var env struct {
		CreatedAt time.Time      `json:"createdAt"`
		Config    map[string]any `json:"config"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if env.CreatedAt.IsZero() {
		t.Error("artifact createdAt is zero")
	}
	if env.Config["host"] != "localhost" {
		t.Errorf("artifact host = %v, want localhost", env.Config["host"])
	}
	if env.Config["port"] != float64(19132) {
		t.Errorf("artifact port = %v, want 19132", env.Config["port"])
	}
}

func TestBackupNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{public: map[string]any{"host": "localhost"}}
	mgr := New(dir, reg, nil)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id, err := mgr.Backup()
		if err != nil {
			t.Fatalf("Backup() #%d error = %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate artifact id %q", id)
		}
		seen[id] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Errorf("artifact count = %d, want 5", len(entries))
	}
}

func TestRestoreFeedsUpdate(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{public: map[string]any{
		"host":     "localhost",
		"tickRate": float64(20),
	}}
	mgr := New(dir, reg, nil)

	id, err := mgr.Backup()
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.Restore(id); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(reg.updates) != 1 {
		t.Fatalf("updates applied = %d, want 1", len(reg.updates))
	}
	if reg.updates[0]["tickRate"] != float64(20) {
		t.Errorf("restored tickRate = %v, want 20", reg.updates[0]["tickRate"])
	}
}

func TestRestoreMissingArtifact(t *testing.T) {
	mgr := New(t.TempDir(), &fakeRegistry{}, nil)

	err := mgr.Restore("backup-2026-01-01T00-00-00Z-deadbeef")
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Restore() error = %v, want ErrArtifactNotFound", err)
	}
}

func TestRestoreRejectsPathEscape(t *testing.T) {
	mgr := New(t.TempDir(), &fakeRegistry{}, nil)

	for _, id := range []string{"", "../etc/passwd", `..\secrets`} {
		if err := mgr.Restore(id); !errors.Is(err, ErrArtifactNotFound) {
			t.Errorf("Restore(%q) error = %v, want ErrArtifactNotFound", id, err)
		}
	}
}

func TestRestoreRejectsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{}
	mgr := New(dir, reg, nil)

	if err := os.WriteFile(filepath.Join(dir, "backup-bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Restore("backup-bad"); !errors.Is(err, ErrInvalidArtifact) {
		t.Errorf("Restore() error = %v, want ErrInvalidArtifact", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "backup-noconf.json"), []byte(`{"createdAt":"2026-01-01T00:00:00Z"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Restore("backup-noconf"); !errors.Is(err, ErrInvalidArtifact) {
		t.Errorf("Restore() error = %v, want ErrInvalidArtifact", err)
	}

	if len(reg.updates) != 0 {
		t.Errorf("corrupt restore applied %d updates, want 0", len(reg.updates))
	}
}

func TestRestorePropagatesUpdateError(t *testing.T) {
	dir := t.TempDir()
	wantErr := errors.New("validation failed")
	reg := &fakeRegistry{
		public:    map[string]any{"port": float64(19132)},
		updateErr: wantErr,
	}
	mgr := New(dir, reg, nil)

	id, err := mgr.Backup()
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Restore(id); !errors.Is(err, wantErr) {
		t.Errorf("Restore() error = %v, want %v", err, wantErr)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistry{public: map[string]any{"host": "localhost"}}
	mgr := New(dir, reg, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := mgr.Backup()
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	artifacts, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("List() returned %d artifacts, want 3", len(artifacts))
	}
	for i := 0; i < len(artifacts)-1; i++ {
		if artifacts[i].ID < artifacts[i+1].ID {
			t.Errorf("artifacts out of order: %q before %q", artifacts[i].ID, artifacts[i+1].ID)
		}
	}
	if artifacts[0].ID != ids[len(ids)-1] {
		t.Errorf("newest artifact = %q, want %q", artifacts[0].ID, ids[len(ids)-1])
	}
}

func TestListEmptyDirectory(t *testing.T) {
	mgr := New(filepath.Join(t.TempDir(), "absent"), &fakeRegistry{}, nil)

	artifacts, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 0 {
		t.Errorf("List() returned %d artifacts, want 0", len(artifacts))
	}
}
