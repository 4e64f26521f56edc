package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	jujuerrors "github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/plugin"
)

const adminToken = "secret-admin-token"

// userAuth grants admin to adminToken and a plain user to "user-token".
type userAuth struct{}

func (userAuth) Authenticate(ctx context.Context, token string) (plugin.User, error) {
	switch token {
	case adminToken:
		return plugin.User{ID: "1", Name: "admin", IsAdmin: true}, nil
	case "user-token":
		return plugin.User{ID: "2", Name: "guest"}, nil
	}
	return plugin.User{}, jujuerrors.Unauthorizedf("bad token")
}

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	reg := NewRegistry()

	reg.RegisterCommandIfAbsent(plugin.Command{
		Type:         "test/echo",
		RequireAdmin: true,
		Handler: func(ctx context.Context, req *plugin.Request) (any, error) {
			return map[string]any{"user": req.User.Name, "id": req.ID}, nil
		},
	})
	reg.RegisterCommandIfAbsent(plugin.Command{
		Type: "test/open",
		Handler: func(ctx context.Context, req *plugin.Request) (any, error) {
			return "ok", nil
		},
	})
	reg.RegisterCommandIfAbsent(plugin.Command{
		Type: "test/fail",
		Handler: func(ctx context.Context, req *plugin.Request) (any, error) {
			return nil, &plugin.CommandError{Code: "no_backup_service", Message: "none"}
		},
	})
	reg.RegisterCommandIfAbsent(plugin.Command{
		Type: "test/crash",
		Handler: func(ctx context.Context, req *plugin.Request) (any, error) {
			return nil, errors.New("kaboom")
		},
	})

	cfg := DefaultConfig()
	cfg.Version = "2024.1.0"
	srv := New(cfg, reg, userAuth{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func login(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn := dial(t, ts)

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "auth_required", hello["type"])
	require.Equal(t, "2024.1.0", hello["ha_version"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "access_token": token}))
	var ok map[string]any
	require.NoError(t, conn.ReadJSON(&ok))
	require.Equal(t, "auth_ok", ok["type"])
	return conn
}

type result struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, conn *websocket.Conn, msg map[string]any) result {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var res result
	require.NoError(t, conn.ReadJSON(&res))
	return res
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, body["commands"], 4)
}

func TestAuthInvalid(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "access_token": "nope"}))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "auth_invalid", msg["type"])

	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed")
}

func TestAuthWrongMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_states", "id": 1}))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "auth_invalid", msg["type"])
}

func TestDispatch(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := login(t, ts, adminToken)

	res := call(t, conn, map[string]any{"id": 1, "type": "test/echo"})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ID)
	assert.Equal(t, "result", res.Type)
	assert.JSONEq(t, `{"user":"admin","id":1}`, string(res.Result))

	res = call(t, conn, map[string]any{"id": 2, "type": "test/fail"})
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "no_backup_service", res.Error.Code)
	assert.Equal(t, "none", res.Error.Message)

	res = call(t, conn, map[string]any{"id": 3, "type": "test/crash"})
	require.NotNil(t, res.Error)
	assert.Equal(t, plugin.CodeUnknownError, res.Error.Code)
	assert.Equal(t, "kaboom", res.Error.Message)

	res = call(t, conn, map[string]any{"id": 4, "type": "test/missing"})
	require.NotNil(t, res.Error)
	assert.Equal(t, plugin.CodeUnknownCommand, res.Error.Code)
}

func TestDispatchRequiresAdmin(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := login(t, ts, "user-token")

	res := call(t, conn, map[string]any{"id": 1, "type": "test/echo"})
	require.NotNil(t, res.Error)
	assert.Equal(t, plugin.CodeUnauthorized, res.Error.Code)

	res = call(t, conn, map[string]any{"id": 2, "type": "test/open"})
	assert.True(t, res.Success)
}

func TestDispatchInvalidMessages(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := login(t, ts, adminToken)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	var res result
	require.NoError(t, conn.ReadJSON(&res))
	require.NotNil(t, res.Error)
	assert.Equal(t, plugin.CodeInvalidFormat, res.Error.Code)

	res = call(t, conn, map[string]any{"id": 5, "type": "ping"})
	assert.Equal(t, "pong", res.Type)

	res = call(t, conn, map[string]any{"id": 5, "type": "test/open"})
	require.NotNil(t, res.Error)
	assert.Equal(t, codeIDReuse, res.Error.Code)

	// The connection stays usable.
	res = call(t, conn, map[string]any{"id": 6, "type": "test/open"})
	assert.True(t, res.Success)
}

func TestPanels(t *testing.T) {
	ts, reg := newTestServer(t)
	reg.RegisterPanelIfAbsent(plugin.Panel{URLPath: "entity-cleaner", Title: "Entity Cleaner", RequireAdmin: true})
	reg.RegisterPanelIfAbsent(plugin.Panel{URLPath: "map", Title: "Map"})

	get := func(token string) (int, map[string]any) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/panels", nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	status, body := get("")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body, 1)
	assert.Contains(t, body, "map")

	status, body = get(adminToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body, 2)

	status, _ = get("bogus")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStaticPath(t *testing.T) {
	ts, reg := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("customElements.define()"), 0644))

	assert.True(t, reg.RegisterStaticPathIfAbsent("/entity_cleaner_files", dir))
	assert.False(t, reg.RegisterStaticPathIfAbsent("/entity_cleaner_files/", t.TempDir()))

	resp, err := http.Get(ts.URL + "/entity_cleaner_files/main.js?v=12")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	resp2, err := http.Get(ts.URL + "/other/main.js")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRegistryIfAbsent(t *testing.T) {
	reg := NewRegistry()
	cmd := plugin.Command{Type: "a/b"}

	assert.True(t, reg.RegisterCommandIfAbsent(cmd))
	assert.False(t, reg.RegisterCommandIfAbsent(cmd))
	assert.Equal(t, []string{"a/b"}, reg.CommandTypes())

	p := plugin.Panel{URLPath: "x"}
	assert.True(t, reg.RegisterPanelIfAbsent(p))
	assert.False(t, reg.RegisterPanelIfAbsent(p))
	assert.True(t, reg.RemovePanel("x"))
	assert.False(t, reg.RemovePanel("x"))
	assert.True(t, reg.RegisterPanelIfAbsent(p))
}

func TestStartShutsDownOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv := New(cfg, NewRegistry(), userAuth{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestTokenAuthenticator(t *testing.T) {
	auth := &TokenAuthenticator{Tokens: []string{"a", "b"}}

	u, err := auth.Authenticate(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, "token-1", u.ID)

	_, err = auth.Authenticate(context.Background(), "c")
	assert.True(t, jujuerrors.Is(err, jujuerrors.Unauthorized))
	_, err = auth.Authenticate(context.Background(), "")
	assert.True(t, jujuerrors.Is(err, jujuerrors.Unauthorized))
}

type fakeLookup struct {
	user   *hass.User
	closed bool
}

func (f *fakeLookup) CurrentUser(ctx context.Context) (*hass.User, error) { return f.user, nil }
func (f *fakeLookup) Close() error                                        { f.closed = true; return nil }

func TestHostAuthenticator(t *testing.T) {
	lookup := &fakeLookup{user: &hass.User{ID: "u1", Name: "Owner", IsOwner: true}}
	auth := &HostAuthenticator{
		URL: "http://host:8123",
		Dial: func(ctx context.Context, url, token string) (UserLookup, error) {
			if token != "good" {
				return nil, jujuerrors.Unauthorizedf("host rejected token")
			}
			return lookup, nil
		},
	}

	u, err := auth.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, plugin.User{ID: "u1", Name: "Owner", IsAdmin: true}, u)
	assert.True(t, lookup.closed)

	_, err = auth.Authenticate(context.Background(), "bad")
	assert.True(t, jujuerrors.Is(err, jujuerrors.Unauthorized))
}

func TestChainAuthenticator(t *testing.T) {
	static := &TokenAuthenticator{Tokens: []string{"local"}}
	host := &HostAuthenticator{
		Dial: func(ctx context.Context, url, token string) (UserLookup, error) {
			switch token {
			case "remote":
				return &fakeLookup{user: &hass.User{ID: "u2", Name: "Guest"}}, nil
			case "broken":
				return nil, jujuerrors.New("connection refused")
			}
			return nil, jujuerrors.Unauthorizedf("host rejected token")
		},
	}
	chain := ChainAuthenticator{static, host}

	u, err := chain.Authenticate(context.Background(), "local")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	u, err = chain.Authenticate(context.Background(), "remote")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)
	assert.False(t, u.IsAdmin)

	_, err = chain.Authenticate(context.Background(), "nope")
	assert.True(t, jujuerrors.Is(err, jujuerrors.Unauthorized))

	_, err = chain.Authenticate(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, jujuerrors.Is(err, jujuerrors.Unauthorized))

	_, err = ChainAuthenticator{}.Authenticate(context.Background(), "local")
	assert.True(t, jujuerrors.Is(err, jujuerrors.Unauthorized))
}
