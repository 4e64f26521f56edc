// Package hass is a client for the home-automation host's websocket API.
//
// A Client holds one authenticated connection. Requests are written under a
// mutex and matched to responses by id in a single reader goroutine, so a
// Client is safe for concurrent use.
package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("entitycleaner.hass")

const (
	websocketPath    = "/api/websocket"
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Error is an error result returned by the host.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes the host uses that callers care about.
const (
	CodeNotFound       = "not_found"
	CodeUnknownCommand = "unknown_command"
	CodeUnauthorized   = "unauthorized"
)

// HasCode reports whether err is a host error carrying code.
func HasCode(err error, code string) bool {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Code == code
	}
	return false
}

type message struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	Version string          `json:"ha_version"`
	Message string          `json:"message"`
}

// Client is an authenticated websocket connection to the host.
type Client struct {
	conn    *websocket.Conn
	version string

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int
	pending map[int]chan message
	err     error
	done    chan struct{}
}

// WebsocketURL turns a host base URL into its websocket endpoint.
func WebsocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", errors.Annotatef(err, "parsing host url %q", base)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.NotValidf("host url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, websocketPath) {
		u.Path += websocketPath
	}
	return u.String(), nil
}

// Dial connects to the host at baseURL and authenticates with token.
func Dial(ctx context.Context, baseURL, token string) (*Client, error) {
	wsURL, err := WebsocketURL(baseURL)
	if err != nil {
		return nil, errors.Trace(err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s", wsURL)
	}

	c := &Client{
		conn:    conn,
		nextID:  1,
		pending: make(map[int]chan message),
		done:    make(chan struct{}),
	}
	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}

	logger.Debugf("connected to %s (host version %s)", wsURL, c.version)
	go c.readLoop()
	return c, nil
}

func (c *Client) authenticate(ctx context.Context, token string) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	var msg message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return errors.Annotate(err, "reading auth request")
	}
	if msg.Type != "auth_required" {
		return errors.Errorf("unexpected message %q before auth", msg.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": token}
	if err := c.conn.WriteJSON(auth); err != nil {
		return errors.Annotate(err, "sending auth")
	}

	msg = message{}
	if err := c.conn.ReadJSON(&msg); err != nil {
		return errors.Annotate(err, "reading auth response")
	}
	switch msg.Type {
	case "auth_ok":
		c.version = msg.Version
		return nil
	case "auth_invalid":
		return errors.Unauthorizedf("host rejected token: %s", msg.Message)
	default:
		return errors.Errorf("unexpected auth response %q", msg.Type)
	}
}

// Version returns the host version reported during auth.
func (c *Client) Version() string {
	return c.version
}

func (c *Client) readLoop() {
	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(errors.Annotate(err, "reading from host"))
			return
		}
		if msg.Type != "result" {
			logger.Tracef("ignoring %q message for id %d", msg.Type, msg.ID)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()

		if !ok {
			logger.Debugf("no pending request for id %d", msg.ID)
			continue
		}
		ch <- msg
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, if it has.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.fail(errors.New("client closed"))
	return err
}

// Call sends a command of msgType with params and decodes its result into
// out, which may be nil. It blocks until the host answers or ctx is done.
func (c *Client) Call(ctx context.Context, msgType string, params map[string]any, out any) error {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return errors.Annotatef(err, "calling %s", msgType)
	}
	id := c.nextID
	c.nextID++
	ch := make(chan message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload := make(map[string]any, len(params)+2)
	for k, v := range params {
		payload[k] = v
	}
	payload["id"] = id
	payload["type"] = msgType

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return errors.Annotatef(err, "sending %s", msgType)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return errors.Trace(ctx.Err())
	case <-c.done:
		c.forget(id)
		return errors.Annotatef(c.Err(), "calling %s", msgType)
	case msg := <-ch:
		if !msg.Success {
			if msg.Error == nil {
				return errors.Errorf("%s failed without error detail", msgType)
			}
			return msg.Error
		}
		if out == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return errors.Annotatef(err, "decoding %s result", msgType)
		}
		return nil
	}
}

func (c *Client) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
