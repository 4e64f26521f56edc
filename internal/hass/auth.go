package hass

import (
	"context"

	"github.com/juju/errors"
)

// User is the host user a connection authenticated as.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`
}

// CurrentUser returns the user this connection authenticated as.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.Call(ctx, "auth/current_user", nil, &user); err != nil {
		return nil, errors.Annotate(err, "getting current user")
	}
	return &user, nil
}
