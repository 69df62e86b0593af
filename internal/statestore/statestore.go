// Package statestore persists ContainerState records to disk, one JSON
// file per container UUID. It follows the marshal/unmarshal shape of
// this repo's devcontainer-lock.json handling, hardened with an
// atomic write-temp-then-rename so a crash mid-write can never leave a
// half-written state record behind.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/devc/devc/internal/errs"
	"github.com/devc/devc/internal/ui"
)

// Status is the lifecycle status recorded for a container.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// ContainerState is the durable record devc keeps for a managed
// container. Exactly one record exists per UUID, stored at
// containers/<uuid>.json under the state directory.
type ContainerState struct {
	ID                 string            `json:"id"`
	WorkspaceHash      string            `json:"workspace_hash"`
	WorkspacePath      string            `json:"workspace_path"`
	ConfigHash         string            `json:"config_hash"`
	FeatureDigests     map[string]string `json:"feature_digests,omitempty"`
	ProviderContainerID string           `json:"provider_container_id,omitempty"`
	Status             Status            `json:"status"`
	ErrorReason        string            `json:"error_reason,omitempty"`
	OnCreateDone       bool              `json:"on_create_done"`
	PostCreateDone     bool              `json:"post_create_done"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Store manages ContainerState records under a root directory
// (typically $DEVC_STATE_DIR/containers).
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.Io, err, "create state directory").WithPath(dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads a single ContainerState by id. A missing file is reported
// as (nil, nil), matching the "absent" meaning of no persisted record.
// A record that fails to parse is quarantined by renaming it to a
// ".bad" suffix and treated as absent, rather than crashing the caller.
func (s *Store) Load(id string) (*ContainerState, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Io, err, "read state").WithPath(id)
	}

	var st ContainerState
	if err := json.Unmarshal(data, &st); err != nil {
		s.quarantine(id, err)
		return nil, nil
	}
	return &st, nil
}

// quarantine renames a record that failed to deserialize out of the
// active namespace (errs.StateCorrupted, spec §7) and warns, so the
// caller can keep treating the id as absent without losing the
// original bytes for forensic inspection.
func (s *Store) quarantine(id string, cause error) {
	if err := os.Rename(s.path(id), s.path(id)+".bad"); err == nil {
		ui.Warning("%v", errs.Wrap(errs.StateCorrupted, cause, "quarantined unreadable state record").WithPath(id).
			WithHint("inspect the .bad file; delete it to drop the record permanently"))
	}
}

// Save atomically persists a ContainerState: write to a temp file in
// the same directory, then rename over the target. Rename is atomic on
// a POSIX filesystem, so a reader never observes a partially written
// record.
func (s *Store) Save(st *ContainerState) error {
	st.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Io, err, "marshal state").WithPath(st.ID)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, st.ID+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.Io, err, "create temp state file").WithPath(st.ID)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, err, "write temp state file").WithPath(st.ID)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, err, "close temp state file").WithPath(st.ID)
	}

	if err := os.Rename(tmpPath, s.path(st.ID)); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, err, "rename state file").WithPath(st.ID)
	}
	return nil
}

// Delete removes a container's persisted state record. Deleting a
// record that doesn't exist is not an error.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, err, "remove state").WithPath(id)
	}
	return nil
}

// List returns every ContainerState currently persisted, skipping
// quarantined (".bad") and otherwise unreadable entries.
func (s *Store) List() ([]*ContainerState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "read state directory").WithPath(s.dir)
	}

	var states []*ContainerState
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id := name[:len(name)-len(".json")]
		st, err := s.Load(id)
		if err != nil || st == nil {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}
