package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		expected Format
	}{
		{"yaml extension", "entity-cleaner.yaml", "", FormatYAML},
		{"yml extension", "entity-cleaner.yml", "", FormatYAML},
		{"toml extension", "entity-cleaner.toml", "", FormatTOML},
		{"json extension", "entity-cleaner.json", "", FormatJSON},
		{"json content", "config", `{"version": 1}`, FormatJSON},
		{"yaml content", "config", `version: 1`, FormatYAML},
		{"toml content", "config", `version = 1`, FormatTOML},
		{"toml section", "config", "# comment\n[host]\nurl = \"http://x\"", FormatTOML},
		{"empty content", "config", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFormat(tt.path, []byte(tt.content))
			if got != tt.expected {
				t.Errorf("detectFormat() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "${TEST_VAR}", "test_value"},
		{"var with default", "${MISSING_VAR:-default_value}", "default_value"},
		{"existing var ignores default", "${TEST_VAR:-default_value}", "test_value"},
		{"empty var uses default", "${EMPTY_VAR:-default_value}", "default_value"},
		{"no var", "plain text", "plain text"},
		{"mixed content", "prefix ${TEST_VAR} suffix", "prefix test_value suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(expandEnvVars([]byte(tt.input)))
			if got != tt.expected {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	t.Setenv("HASS_TOKEN_TEST", "secret")

	content := []byte(`
version: 1
host:
  url: http://homeassistant.local:8123
  token: ${HASS_TOKEN_TEST}
listen:
  port: 9000
frontend:
  static_dir: /srv/entity-cleaner
  require_admin: false
auth:
  admin_tokens: [abc]
backup:
  sources: [manager, sensor]
  max_depth: 4
`)

	cfg, err := parse(content, FormatYAML)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Host.URL != "http://homeassistant.local:8123" {
		t.Errorf("Host.URL = %q", cfg.Host.URL)
	}
	if cfg.Host.Token != "secret" {
		t.Errorf("Host.Token = %q, want expanded env value", cfg.Host.Token)
	}
	if cfg.Listen.Port != 9000 {
		t.Errorf("Listen.Port = %d, want 9000", cfg.Listen.Port)
	}
	if cfg.Frontend.AdminOnly() {
		t.Error("Frontend.AdminOnly() = true, want false")
	}
	if len(cfg.Auth.AdminTokens) != 1 {
		t.Errorf("Auth.AdminTokens = %v", cfg.Auth.AdminTokens)
	}
	kinds, err := cfg.Backup.SourceKinds()
	if err != nil {
		t.Fatalf("SourceKinds() error = %v", err)
	}
	if len(kinds) != 2 || kinds[0] != "manager" || kinds[1] != "sensor" {
		t.Errorf("SourceKinds() = %v", kinds)
	}
	if cfg.Backup.MaxDepth != 4 {
		t.Errorf("Backup.MaxDepth = %d, want 4", cfg.Backup.MaxDepth)
	}
}

func TestParseTOML(t *testing.T) {
	content := []byte(`
version = 1
log_level = "DEBUG"

[host]
url = "https://ha.example.com"
token = "tok"

[frontend]
js_version = 3
`)

	cfg, err := parse(content, FormatTOML)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if cfg.Host.URL != "https://ha.example.com" {
		t.Errorf("Host.URL = %q", cfg.Host.URL)
	}
	if cfg.Frontend.JSVersion != 3 {
		t.Errorf("Frontend.JSVersion = %d, want 3", cfg.Frontend.JSVersion)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
}

func TestParseJSON(t *testing.T) {
	content := []byte(`{"version": 1, "host": {"url": "ws://localhost:8123", "token": "t"}}`)

	cfg, err := parse(content, FormatJSON)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.Host.URL != "ws://localhost:8123" {
		t.Errorf("Host.URL = %q", cfg.Host.URL)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := parse([]byte("host: [unclosed"), FormatYAML); err == nil {
		t.Error("parse() expected YAML error")
	}
	if _, err := parse([]byte("{"), FormatJSON); err == nil {
		t.Error("parse() expected JSON error")
	}
	if _, err := parse([]byte("x"), FormatUnknown); err == nil {
		t.Error("parse() expected unknown format error")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entity-cleaner.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen.Port != DefaultListenPort {
		t.Errorf("Listen.Port = %d, want %d", cfg.Listen.Port, DefaultListenPort)
	}
	if cfg.Frontend.MountPath != DefaultMountPath {
		t.Errorf("Frontend.MountPath = %q", cfg.Frontend.MountPath)
	}
	if cfg.Backup.Name != "Entity Cleaner Auto-Backup" {
		t.Errorf("Backup.Name = %q", cfg.Backup.Name)
	}
	if !cfg.Frontend.AdminOnly() {
		t.Error("Frontend.AdminOnly() = false, want true by default")
	}
}

func TestFindConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("ENTITY_CLEANER_CONFIG", "")

	if _, err := FindConfig(""); err == nil {
		t.Error("FindConfig() expected error with no config present")
	}

	dir := filepath.Join(home, ".config", "entity-cleaner")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "entity-cleaner.toml")
	if err := os.WriteFile(want, []byte("version = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if got != want {
		t.Errorf("FindConfig() = %q, want %q", got, want)
	}

	if _, err := FindConfig(filepath.Join(home, "missing.yaml")); err == nil {
		t.Error("FindConfig() expected error for missing explicit path")
	}
}

func TestFindConfigEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENTITY_CLEANER_CONFIG", path)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if got != path {
		t.Errorf("FindConfig() = %q, want %q", got, path)
	}
}
