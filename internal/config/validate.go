package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/juju/loggo"
)

// maxDepthLimit bounds backup.max_depth.
const maxDepthLimit = 64

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
func Validate(c *Config) error {
	var errors []string

	if err := validateHost(c.Host); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "listen.port",
			Message: fmt.Sprintf("port %d out of range", c.Listen.Port),
		}.Error())
	}

	if err := validateFrontend(c.Frontend); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validateBackup(c.Backup); err != nil {
		errors = append(errors, err.Error())
	}

	for i, token := range c.Auth.AdminTokens {
		if strings.TrimSpace(token) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("auth.admin_tokens[%d]", i),
				Message: "token cannot be empty",
			}.Error())
		}
	}

	if c.LogLevel != "" {
		if _, ok := loggo.ParseLevel(c.LogLevel); !ok {
			errors = append(errors, ValidationError{
				Field:   "log_level",
				Message: fmt.Sprintf("unknown level '%s'", c.LogLevel),
			}.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// RequireHost checks that enough is configured to talk to the host.
func RequireHost(c *Config) error {
	if c.Host.URL == "" {
		return ValidationError{Field: "host.url", Message: "host url is required"}
	}
	if c.Host.Token == "" {
		return ValidationError{Field: "host.token", Message: "host token is required"}
	}
	return nil
}

func validateHost(h HostConfig) error {
	if h.URL == "" {
		// Host is optional for offline scans of the storage directory.
		return nil
	}

	u, err := url.Parse(h.URL)
	if err != nil {
		return ValidationError{Field: "host.url", Message: err.Error()}
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return ValidationError{
			Field:   "host.url",
			Message: fmt.Sprintf("unsupported scheme '%s' (must be http, https, ws, or wss)", u.Scheme),
		}
	}

	if u.Host == "" {
		return ValidationError{Field: "host.url", Message: "host is missing"}
	}

	if h.Token == "" {
		return ValidationError{Field: "host.token", Message: "token is required when url is set"}
	}

	return nil
}

func validateFrontend(f FrontendConfig) error {
	if !strings.HasPrefix(f.MountPath, "/") {
		return ValidationError{
			Field:   "frontend.mount_path",
			Message: fmt.Sprintf("mount path '%s' must start with /", f.MountPath),
		}
	}

	if strings.Contains(f.URLPath, "/") {
		return ValidationError{
			Field:   "frontend.url_path",
			Message: fmt.Sprintf("url path '%s' must not contain /", f.URLPath),
		}
	}

	if f.JSVersion < 0 {
		return ValidationError{Field: "frontend.js_version", Message: "must be non-negative"}
	}

	return nil
}

func validateBackup(b BackupConfig) error {
	if _, err := b.SourceKinds(); err != nil {
		return ValidationError{Field: "backup.sources", Message: err.Error()}
	}

	if b.MaxDepth < 1 || b.MaxDepth > maxDepthLimit {
		return ValidationError{
			Field:   "backup.max_depth",
			Message: fmt.Sprintf("must be between 1 and %d", maxDepthLimit),
		}
	}

	if !strings.Contains(b.SensorEntity, ".") {
		return ValidationError{
			Field:   "backup.sensor_entity",
			Message: fmt.Sprintf("invalid entity id '%s'", b.SensorEntity),
		}
	}

	if strings.TrimSpace(b.Name) == "" {
		return ValidationError{Field: "backup.name", Message: "name cannot be blank"}
	}

	return nil
}
