package state

import (
	"context"
	"fmt"

	"github.com/adamancini/entity-cleaner/internal/hass"
)

// HostAPI is the part of the host client HostReader needs.
type HostAPI interface {
	ListEntities(ctx context.Context) ([]hass.Entity, error)
	GetStates(ctx context.Context) ([]hass.State, error)
}

// HostReader reads the snapshot from a running host.
type HostReader struct {
	Host HostAPI
}

// Read implements Reader using the host's websocket API.
func (r *HostReader) Read(ctx context.Context) (*Snapshot, error) {
	entities, err := r.Host.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity registry: %w", err)
	}

	states, err := r.Host.GetStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read states: %w", err)
	}

	snap := &Snapshot{
		Entries: make([]RegistryEntry, 0, len(entities)),
		States:  make(map[string]LiveState, len(states)),
	}

	for _, e := range entities {
		snap.Entries = append(snap.Entries, RegistryEntry{
			EntityID:     e.EntityID,
			Name:         e.Name,
			OriginalName: e.OriginalName,
			Platform:     e.Platform,
			DisabledBy:   e.DisabledBy,
		})
	}

	for _, s := range states {
		snap.States[s.EntityID] = LiveState{
			EntityID:    s.EntityID,
			State:       s.State,
			LastChanged: s.LastChanged,
			Attributes:  s.Attributes,
		}
	}

	return snap, nil
}
