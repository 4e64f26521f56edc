// Package plugin registers the entity cleaner's panel, static assets and
// websocket commands with a host.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/config"
)

var logger = loggo.GetLogger("entitycleaner.plugin")

// PanelElement is the custom element the front end defines.
const PanelElement = "entity-cleaner-panel"

// Host accepts registrations. Each Register method returns false, and
// changes nothing, when the path or type is already taken.
type Host interface {
	RegisterStaticPathIfAbsent(mountPath, dir string) bool
	RegisterPanelIfAbsent(panel Panel) bool
	RemovePanel(urlPath string) bool
	RegisterCommandIfAbsent(cmd Command) bool
}

// Panel is a sidebar entry backed by a custom element.
type Panel struct {
	ComponentName string      `json:"component_name"`
	URLPath       string      `json:"url_path"`
	Title         string      `json:"title"`
	Icon          string      `json:"icon"`
	RequireAdmin  bool        `json:"require_admin"`
	Config        PanelConfig `json:"config"`
}

// PanelConfig holds the custom panel settings.
type PanelConfig struct {
	Custom CustomPanel `json:"_panel_custom"`
}

// CustomPanel tells the front end which module to load for the panel.
type CustomPanel struct {
	Name          string `json:"name"`
	EmbedIframe   bool   `json:"embed_iframe"`
	TrustExternal bool   `json:"trust_external"`
	ModuleURL     string `json:"js_url"`
}

// User is the authenticated caller of a command.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Request is one decoded command message.
type Request struct {
	ID   int
	Type string
	User User
	// Payload is the whole message, including id and type.
	Payload json.RawMessage
}

// Handler runs a command. A returned *CommandError is sent to the caller as
// is; any other error is reported as unknown_error.
type Handler func(ctx context.Context, req *Request) (any, error)

// Command is a websocket message type and its handler.
type Command struct {
	Type         string
	RequireAdmin bool
	Handler      Handler
}

// Error codes sent in failed command results.
const (
	CodeInvalidFormat  = "invalid_format"
	CodeUnknownCommand = "unknown_command"
	CodeUnauthorized   = "unauthorized"
	CodeUnknownError   = "unknown_error"
)

// CommandError is a failed command result.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Candidates lists removal candidates.
type Candidates interface {
	Candidates(ctx context.Context, days int) ([]cleaner.Candidate, error)
}

// Deleter removes registry entries.
type Deleter interface {
	Delete(ctx context.Context, entityIDs []string) *cleaner.DeletionResult
}

// BackupTrigger starts a host backup.
type BackupTrigger interface {
	Run(ctx context.Context, requestedBy string) error
}

// BackupInfo looks up the most recent backups.
type BackupInfo interface {
	LastBackups(ctx context.Context) backup.Info
}

// Deps are the components the commands delegate to.
type Deps struct {
	Candidates Candidates
	Deleter    Deleter
	Backup     BackupTrigger
	Info       BackupInfo
}

func (d Deps) validate() error {
	switch {
	case d.Candidates == nil:
		return errors.NotValidf("missing candidate scanner")
	case d.Deleter == nil:
		return errors.NotValidf("missing deleter")
	case d.Backup == nil:
		return errors.NotValidf("missing backup trigger")
	case d.Info == nil:
		return errors.NotValidf("missing backup info resolver")
	}
	return nil
}

// NewPanel builds the sidebar panel described by cfg.
func NewPanel(cfg config.FrontendConfig) Panel {
	return Panel{
		ComponentName: "custom",
		URLPath:       cfg.URLPath,
		Title:         cfg.Title,
		Icon:          cfg.Icon,
		RequireAdmin:  cfg.AdminOnly(),
		Config: PanelConfig{Custom: CustomPanel{
			Name:      PanelElement,
			ModuleURL: fmt.Sprintf("%s/main.js?v=%d", cfg.MountPath, cfg.JSVersion),
		}},
	}
}

// Setup registers the static path, the panel and every command. Anything
// already registered, for example by an earlier Setup, is left in place.
func Setup(host Host, cfg config.FrontendConfig, deps Deps) error {
	if err := deps.validate(); err != nil {
		return errors.Trace(err)
	}

	if cfg.StaticDir == "" {
		logger.Warningf("no static_dir configured, panel assets will not be served")
	} else if !host.RegisterStaticPathIfAbsent(cfg.MountPath, cfg.StaticDir) {
		logger.Debugf("static path %s already registered", cfg.MountPath)
	}

	panel := NewPanel(cfg)
	if host.RegisterPanelIfAbsent(panel) {
		logger.Infof("registered panel %q at /%s", panel.Title, panel.URLPath)
	} else {
		logger.Debugf("panel %s already registered", panel.URLPath)
	}

	for _, cmd := range Commands(deps) {
		if !host.RegisterCommandIfAbsent(cmd) {
			logger.Debugf("command %s already registered", cmd.Type)
		}
	}
	return nil
}

// Unload removes the panel. Commands and static paths stay registered.
func Unload(host Host, cfg config.FrontendConfig) {
	if !host.RemovePanel(cfg.URLPath) {
		logger.Debugf("panel %s was not registered", cfg.URLPath)
	}
}
