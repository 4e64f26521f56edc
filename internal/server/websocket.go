package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/plugin"
)

const (
	authTimeout = 10 * time.Second
	writeWait   = 10 * time.Second
	// maxMessageSize bounds a single inbound message.
	maxMessageSize = 4 << 20
)

// codeIDReuse is sent when a message id does not increase.
const codeIDReuse = "id_reuse"

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type envelope struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type resultMessage struct {
	ID      int                  `json:"id"`
	Type    string               `json:"type"`
	Success bool                 `json:"success"`
	Result  any                  `json:"result"`
	Error   *plugin.CommandError `json:"error,omitempty"`
}

// session is one authenticated websocket client. Messages are handled one
// at a time in arrival order.
type session struct {
	id      string
	conn    *websocket.Conn
	reg     *Registry
	auth    Authenticator
	version string
	user    plugin.User
	lastID  int
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("problem initiating websocket: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		reg:     s.registry,
		auth:    s.auth,
		version: s.version,
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := sess.handshake(ctx); err != nil {
		logger.Infof("[%s] authentication failed: %v", sess.id, err)
		return
	}
	logger.Debugf("[%s] connected as %q (admin=%v)", sess.id, sess.user.Name, sess.user.IsAdmin)

	if err := sess.serve(ctx); err != nil {
		logger.Debugf("[%s] closed: %v", sess.id, err)
	}
}

func (s *session) handshake(ctx context.Context) error {
	if err := s.send(map[string]any{"type": "auth_required", "ha_version": s.version}); err != nil {
		return errors.Trace(err)
	}

	s.conn.SetReadDeadline(time.Now().Add(authTimeout))
	var msg authMessage
	err := s.conn.ReadJSON(&msg)
	s.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return errors.Annotate(err, "reading auth message")
	}

	if msg.Type != "auth" {
		s.send(map[string]any{"type": "auth_invalid", "message": "Auth message incorrectly formatted"})
		return errors.NotValidf("auth message type %q", msg.Type)
	}

	user, err := s.auth.Authenticate(ctx, msg.AccessToken)
	if err != nil {
		message := "Invalid access token or password"
		if !errors.Is(err, errors.Unauthorized) {
			logger.Errorf("[%s] authenticator failed: %v", s.id, err)
			message = "Unable to verify access token"
		}
		s.send(map[string]any{"type": "auth_invalid", "message": message})
		return errors.Trace(err)
	}
	s.user = user

	return errors.Trace(s.send(map[string]any{"type": "auth_ok", "ha_version": s.version}))
}

func (s *session) serve(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handle(ctx, data); err != nil {
			return err
		}
	}
}

// handle answers one message. Only write failures are returned.
func (s *session) handle(ctx context.Context, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return s.sendError(env.ID, plugin.CodeInvalidFormat, "Message incorrectly formatted.")
	}

	if env.ID <= s.lastID {
		return s.sendError(env.ID, codeIDReuse, "Identifier values have to increase.")
	}
	s.lastID = env.ID

	if env.Type == "ping" {
		return s.send(map[string]any{"id": env.ID, "type": "pong"})
	}

	cmd, ok := s.reg.Command(env.Type)
	if !ok {
		return s.sendError(env.ID, plugin.CodeUnknownCommand, "Unknown command.")
	}
	if cmd.RequireAdmin && !s.user.IsAdmin {
		return s.sendError(env.ID, plugin.CodeUnauthorized, "Unauthorized")
	}

	req := &plugin.Request{ID: env.ID, Type: env.Type, User: s.user, Payload: data}
	result, err := cmd.Handler(ctx, req)
	if err != nil {
		var cerr *plugin.CommandError
		if errors.As(err, &cerr) {
			return s.sendError(env.ID, cerr.Code, cerr.Message)
		}
		logger.Errorf("[%s] %s failed: %v", s.id, env.Type, err)
		return s.sendError(env.ID, plugin.CodeUnknownError, err.Error())
	}

	return s.send(resultMessage{ID: env.ID, Type: "result", Success: true, Result: result})
}

func (s *session) sendError(id int, code, message string) error {
	return s.send(resultMessage{
		ID:    id,
		Type:  "result",
		Error: &plugin.CommandError{Code: code, Message: message},
	})
}

func (s *session) send(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
