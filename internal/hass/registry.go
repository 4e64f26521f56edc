package hass

import (
	"context"

	"github.com/juju/errors"
)

// Entity is an entity registry entry as returned by the host.
type Entity struct {
	EntityID     string `json:"entity_id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	Platform     string `json:"platform"`
	DisabledBy   string `json:"disabled_by"`
	DeviceID     string `json:"device_id"`
	ConfigEntry  string `json:"config_entry_id"`
}

// ListEntities returns every entity registry entry.
func (c *Client) ListEntities(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	if err := c.Call(ctx, "config/entity_registry/list", nil, &entities); err != nil {
		return nil, errors.Annotate(err, "listing entity registry")
	}
	return entities, nil
}

// GetEntity returns a single registry entry. A missing entry satisfies
// errors.Is(err, errors.NotFound).
func (c *Client) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	var entity Entity
	err := c.Call(ctx, "config/entity_registry/get", map[string]any{"entity_id": entityID}, &entity)
	if HasCode(err, CodeNotFound) {
		return nil, errors.NotFoundf("entity %q", entityID)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "getting entity %q", entityID)
	}
	return &entity, nil
}

// RemoveEntity removes an entry from the entity registry.
func (c *Client) RemoveEntity(ctx context.Context, entityID string) error {
	err := c.Call(ctx, "config/entity_registry/remove", map[string]any{"entity_id": entityID}, nil)
	if HasCode(err, CodeNotFound) {
		return errors.NotFoundf("entity %q", entityID)
	}
	return errors.Annotatef(err, "removing entity %q", entityID)
}

// Registry adapts a Client to registry lookups and removal by entity id.
type Registry struct {
	Client *Client
}

// IsRegistered reports whether entityID has a registry entry.
func (r Registry) IsRegistered(ctx context.Context, entityID string) (bool, error) {
	_, err := r.Client.GetEntity(ctx, entityID)
	if errors.Is(err, errors.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Remove deletes entityID from the registry.
func (r Registry) Remove(ctx context.Context, entityID string) error {
	return r.Client.RemoveEntity(ctx, entityID)
}
