package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("entitycleaner.state")

// fsStore is the envelope the host wraps every .storage file in.
type fsStore[T any] struct {
	Version      int    `json:"version"`
	MinorVersion int    `json:"minor_version"`
	Key          string `json:"key"`
	Data         T      `json:"data"`
}

type fsEntityRegistry struct {
	Entities []fsEntity `json:"entities"`
}

type fsEntity struct {
	EntityID     string  `json:"entity_id"`
	Name         *string `json:"name"`
	OriginalName *string `json:"original_name"`
	Platform     string  `json:"platform"`
	DisabledBy   *string `json:"disabled_by"`
}

type fsRestoredState struct {
	State struct {
		EntityID    string         `json:"entity_id"`
		State       string         `json:"state"`
		Attributes  map[string]any `json:"attributes"`
		LastChanged *time.Time     `json:"last_changed"`
	} `json:"state"`
	LastSeen *time.Time `json:"last_seen"`
}

// FilesystemReader reads the snapshot from the host's on-disk stores. The
// restore-state store stands in for the live state cache, so results reflect
// the host's last save rather than this instant.
type FilesystemReader struct {
	ConfigDir string // the host config dir holding .storage/
}

// Read implements Reader using filesystem access.
func (r *FilesystemReader) Read(ctx context.Context) (*Snapshot, error) {
	if r.ConfigDir == "" {
		return nil, fmt.Errorf("no host config directory given")
	}
	if _, err := os.Stat(r.ConfigDir); err != nil {
		return nil, fmt.Errorf("failed to open host config directory: %w", err)
	}

	snap := &Snapshot{
		States: make(map[string]LiveState),
	}

	if err := r.readRegistry(snap); err != nil {
		logger.Warningf("could not read entity registry: %v", err)
	}

	if err := r.readStates(snap); err != nil {
		logger.Warningf("could not read restore state: %v", err)
	}

	return snap, nil
}

func (r *FilesystemReader) storagePath(name string) string {
	return filepath.Join(r.ConfigDir, ".storage", name)
}

func (r *FilesystemReader) readRegistry(snap *Snapshot) error {
	data, err := os.ReadFile(r.storagePath("core.entity_registry"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No registry file is okay
		}
		return err
	}

	var store fsStore[fsEntityRegistry]
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to parse core.entity_registry: %w", err)
	}

	for _, e := range store.Data.Entities {
		snap.Entries = append(snap.Entries, RegistryEntry{
			EntityID:     e.EntityID,
			Name:         deref(e.Name),
			OriginalName: deref(e.OriginalName),
			Platform:     e.Platform,
			DisabledBy:   deref(e.DisabledBy),
		})
	}

	return nil
}

func (r *FilesystemReader) readStates(snap *Snapshot) error {
	data, err := os.ReadFile(r.storagePath("core.restore_state"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No restore state file is okay
		}
		return err
	}

	var store fsStore[[]fsRestoredState]
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to parse core.restore_state: %w", err)
	}

	for _, s := range store.Data {
		if s.State.EntityID == "" {
			continue
		}
		snap.States[s.State.EntityID] = LiveState{
			EntityID:    s.State.EntityID,
			State:       s.State.State,
			LastChanged: s.State.LastChanged,
			Attributes:  s.State.Attributes,
		}
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
