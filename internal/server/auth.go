package server

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/plugin"
)

// Authenticator maps an access token to a user. An invalid token yields an
// error satisfying errors.Is(err, errors.Unauthorized).
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (plugin.User, error)
}

// TokenAuthenticator accepts a fixed set of tokens, each granting admin.
type TokenAuthenticator struct {
	Tokens []string
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (plugin.User, error) {
	if token == "" {
		return plugin.User{}, errors.Unauthorizedf("missing access token")
	}
	for i, t := range a.Tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return plugin.User{
				ID:      fmt.Sprintf("token-%d", i),
				Name:    "admin",
				IsAdmin: true,
			}, nil
		}
	}
	return plugin.User{}, errors.Unauthorizedf("invalid access token")
}

// UserLookup is a host connection able to report who it is logged in as.
type UserLookup interface {
	CurrentUser(ctx context.Context) (*hass.User, error)
	Close() error
}

// HostAuthenticator checks tokens by logging in to the host with them.
type HostAuthenticator struct {
	URL string
	// Dial opens a host connection; nil means hass.Dial.
	Dial func(ctx context.Context, url, token string) (UserLookup, error)
}

func (a *HostAuthenticator) Authenticate(ctx context.Context, token string) (plugin.User, error) {
	if token == "" {
		return plugin.User{}, errors.Unauthorizedf("missing access token")
	}

	dial := a.Dial
	if dial == nil {
		dial = func(ctx context.Context, url, token string) (UserLookup, error) {
			return hass.Dial(ctx, url, token)
		}
	}

	conn, err := dial(ctx, a.URL, token)
	if err != nil {
		if errors.Is(err, errors.Unauthorized) {
			return plugin.User{}, err
		}
		return plugin.User{}, errors.Annotate(err, "verifying token with host")
	}
	defer conn.Close()

	u, err := conn.CurrentUser(ctx)
	if err != nil {
		return plugin.User{}, errors.Trace(err)
	}
	return plugin.User{ID: u.ID, Name: u.Name, IsAdmin: u.IsAdmin || u.IsOwner}, nil
}

// ChainAuthenticator tries each authenticator in turn. The first to accept the
// token wins; an error other than Unauthorized stops the chain.
type ChainAuthenticator []Authenticator

func (c ChainAuthenticator) Authenticate(ctx context.Context, token string) (plugin.User, error) {
	err := errors.Unauthorizedf("no authenticator configured")
	for _, a := range c {
		var user plugin.User
		user, err = a.Authenticate(ctx, token)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, errors.Unauthorized) {
			return plugin.User{}, err
		}
	}
	return plugin.User{}, err
}
