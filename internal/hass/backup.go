package hass

import (
	"context"

	"github.com/juju/errors"
)

// BackupInfo returns the core backup manager's info payload, decoded
// generically because its shape differs between host versions.
func (c *Client) BackupInfo(ctx context.Context) (any, error) {
	var info any
	if err := c.Call(ctx, "backup/info", nil, &info); err != nil {
		return nil, errors.Annotate(err, "getting backup info")
	}
	return info, nil
}

// SupervisorAPI proxies a request to the supervisor through the host.
func (c *Client) SupervisorAPI(ctx context.Context, endpoint, method string) (any, error) {
	params := map[string]any{
		"endpoint": endpoint,
		"method":   method,
	}
	var result any
	if err := c.Call(ctx, "supervisor/api", params, &result); err != nil {
		return nil, errors.Annotatef(err, "supervisor %s %s", method, endpoint)
	}
	return result, nil
}
