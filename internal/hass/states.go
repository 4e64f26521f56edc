package hass

import (
	"context"
	"time"

	"github.com/juju/errors"
)

// State is the live state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged *time.Time     `json:"last_changed"`
	LastUpdated *time.Time     `json:"last_updated"`
}

// GetStates returns the live state of every entity.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.Call(ctx, "get_states", nil, &states); err != nil {
		return nil, errors.Annotate(err, "getting states")
	}
	return states, nil
}

// GetState returns the live state of entityID. The host has no single-entity
// query, so this filters the full state list.
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	states, err := c.GetStates(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for i := range states {
		if states[i].EntityID == entityID {
			return &states[i], nil
		}
	}
	return nil, errors.NotFoundf("state for %q", entityID)
}
