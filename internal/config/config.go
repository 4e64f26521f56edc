// Package config handles entity-cleaner config file parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/entity-cleaner/internal/types"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultListenHost   = "0.0.0.0"
	DefaultListenPort   = 8124
	DefaultMountPath    = "/entity_cleaner_files"
	DefaultURLPath      = "entity-cleaner"
	DefaultTitle        = "Entity Cleaner"
	DefaultIcon         = "hass:broom"
	DefaultJSVersion    = 12
	DefaultSensorEntity = "sensor.backup_state"
	DefaultMaxDepth     = 8
	DefaultLogLevel     = "INFO"
)

// Config represents the parsed configuration file.
type Config struct {
	Version    int            `yaml:"version" toml:"version" json:"version"`
	Host       HostConfig     `yaml:"host" toml:"host" json:"host"`
	Listen     ListenConfig   `yaml:"listen" toml:"listen" json:"listen"`
	Frontend   FrontendConfig `yaml:"frontend" toml:"frontend" json:"frontend"`
	Auth       AuthConfig     `yaml:"auth" toml:"auth" json:"auth"`
	Backup     BackupConfig   `yaml:"backup" toml:"backup" json:"backup"`
	LogLevel   string         `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty"`
	StorageDir string         `yaml:"storage_dir,omitempty" toml:"storage_dir,omitempty" json:"storage_dir,omitempty"` // host config dir holding .storage/
}

// HostConfig describes how to reach the home-automation host.
type HostConfig struct {
	URL   string `yaml:"url" toml:"url" json:"url"`
	Token string `yaml:"token" toml:"token" json:"token"`
}

// ListenConfig is the address the panel server binds to.
type ListenConfig struct {
	Host string `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" toml:"port,omitempty" json:"port,omitempty"`
}

// FrontendConfig describes the static assets and the sidebar panel.
type FrontendConfig struct {
	StaticDir    string `yaml:"static_dir,omitempty" toml:"static_dir,omitempty" json:"static_dir,omitempty"`
	MountPath    string `yaml:"mount_path,omitempty" toml:"mount_path,omitempty" json:"mount_path,omitempty"`
	URLPath      string `yaml:"url_path,omitempty" toml:"url_path,omitempty" json:"url_path,omitempty"`
	Title        string `yaml:"title,omitempty" toml:"title,omitempty" json:"title,omitempty"`
	Icon         string `yaml:"icon,omitempty" toml:"icon,omitempty" json:"icon,omitempty"`
	JSVersion    int    `yaml:"js_version,omitempty" toml:"js_version,omitempty" json:"js_version,omitempty"`
	RequireAdmin *bool  `yaml:"require_admin,omitempty" toml:"require_admin,omitempty" json:"require_admin,omitempty"`
}

// AdminOnly reports whether the panel is restricted to administrators.
func (f FrontendConfig) AdminOnly() bool {
	return f.RequireAdmin == nil || *f.RequireAdmin
}

// AuthConfig controls how websocket clients are authenticated.
type AuthConfig struct {
	AdminTokens []string `yaml:"admin_tokens,omitempty" toml:"admin_tokens,omitempty" json:"admin_tokens,omitempty"`
	UseHost     bool     `yaml:"use_host,omitempty" toml:"use_host,omitempty" json:"use_host,omitempty"` // verify tokens against the host
}

// BackupConfig controls backup triggering and lookup.
type BackupConfig struct {
	Name         string   `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Sources      []string `yaml:"sources,omitempty" toml:"sources,omitempty" json:"sources,omitempty"`
	SensorEntity string   `yaml:"sensor_entity,omitempty" toml:"sensor_entity,omitempty" json:"sensor_entity,omitempty"`
	MaxDepth     int      `yaml:"max_depth,omitempty" toml:"max_depth,omitempty" json:"max_depth,omitempty"`
}

// SourceKinds returns the configured backup sources, or nil to auto-detect.
func (b BackupConfig) SourceKinds() ([]types.SourceKind, error) {
	if len(b.Sources) == 0 {
		return nil, nil
	}
	kinds := make([]types.SourceKind, 0, len(b.Sources))
	for _, s := range b.Sources {
		kind, err := types.ParseSourceKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Default returns a config with every default applied and no host set.
func Default() *Config {
	cfg := &Config{Version: 1}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = DefaultListenHost
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultListenPort
	}
	if c.Frontend.MountPath == "" {
		c.Frontend.MountPath = DefaultMountPath
	}
	if c.Frontend.URLPath == "" {
		c.Frontend.URLPath = DefaultURLPath
	}
	if c.Frontend.Title == "" {
		c.Frontend.Title = DefaultTitle
	}
	if c.Frontend.Icon == "" {
		c.Frontend.Icon = DefaultIcon
	}
	if c.Frontend.JSVersion == 0 {
		c.Frontend.JSVersion = DefaultJSVersion
	}
	if c.Backup.Name == "" {
		c.Backup.Name = types.AutoBackupName
	}
	if c.Backup.SensorEntity == "" {
		c.Backup.SensorEntity = DefaultSensorEntity
	}
	if c.Backup.MaxDepth == 0 {
		c.Backup.MaxDepth = DefaultMaxDepth
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// configNames are the file names searched in every config directory.
var configNames = []string{
	"entity-cleaner.yaml",
	"entity-cleaner.yml",
	"entity-cleaner.toml",
	"entity-cleaner.json",
	".entity-cleaner.yaml",
	".entity-cleaner.yml",
	".entity-cleaner.toml",
	".entity-cleaner.json",
}

// FindConfig searches for a config file in the standard locations.
// Returns the path to the first config file found, or an error if none exists.
func FindConfig(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv("ENTITY_CLEANER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	for _, dir := range searchDirs(home) {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no config file found in standard locations")
}

// DefaultPath returns where `init` writes a new config file.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(searchDirs(home)[0], "entity-cleaner.yaml"), nil
}

func searchDirs(home string) []string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return []string{
		filepath.Join(xdgConfig, "entity-cleaner"),
		filepath.Join(home, ".entity-cleaner"),
		home,
	}
}

// Load reads, parses, defaults and validates a config file from the given path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(path, content)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes config content and applies defaults without validating.
// name is used only to pick the format by extension.
func Parse(name string, content []byte) (*Config, error) {
	format := detectFormat(name, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", name)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
