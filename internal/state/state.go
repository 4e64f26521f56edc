// Package state reads a point-in-time snapshot of the host's entity registry
// and live state cache.
package state

import (
	"context"
	"time"
)

// Snapshot is the host's registry and live states read together.
type Snapshot struct {
	Entries []RegistryEntry
	States  map[string]LiveState
}

// State returns the live state of entityID, if the host has one.
func (s *Snapshot) State(entityID string) (LiveState, bool) {
	st, ok := s.States[entityID]
	return st, ok
}

// RegistryEntry is one entity registry record.
type RegistryEntry struct {
	EntityID     string
	Name         string
	OriginalName string
	Platform     string
	DisabledBy   string
}

// Disabled reports whether the entry was explicitly disabled.
func (e RegistryEntry) Disabled() bool {
	return e.DisabledBy != ""
}

// DisplayName resolves the name shown to users.
func (e RegistryEntry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.OriginalName != "" {
		return e.OriginalName
	}
	return e.EntityID
}

// LiveState is the host's current value for one entity.
type LiveState struct {
	EntityID    string
	State       string
	LastChanged *time.Time
	Attributes  map[string]any
}

// Reader defines the interface for reading a snapshot.
type Reader interface {
	Read(ctx context.Context) (*Snapshot, error)
}
