package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/output"
	"github.com/adamancini/entity-cleaner/internal/state"
)

// loadConfig finds and loads the config file. Without one, defaults are used
// with the host taken from HASS_URL and HASS_TOKEN. --host-url overrides
// whatever the file says.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	path, findErr := config.FindConfig(configPath)
	switch {
	case findErr == nil:
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg = loaded
		logger.Debugf("using config %s", path)
	case configPath != "":
		return nil, findErr
	default:
		cfg = config.Default()
		cfg.Host.URL = os.Getenv("HASS_URL")
		cfg.Host.Token = os.Getenv("HASS_TOKEN")
		logger.Debugf("no config file found, using defaults")
	}

	if hostURL != "" {
		cfg.Host.URL = hostURL
	}

	if err := configureLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connect dials the host configured in cfg.
func connect(ctx context.Context, cfg *config.Config) (*hass.Client, error) {
	if err := config.RequireHost(cfg); err != nil {
		return nil, err
	}
	client, err := hass.Dial(ctx, cfg.Host.URL, cfg.Host.Token)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s", cfg.Host.URL)
	}
	logger.Debugf("connected to host version %s", client.Version())
	return client, nil
}

// newWriter returns an output writer for the --output flag.
func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// stateReaderOptions selects where candidate scans read host state from.
type stateReaderOptions struct {
	filesystem bool
	storageDir string
}

// getStateReader returns the reader the options select. The filesystem
// reader needs no host connection, so client may be nil for it.
func getStateReader(cfg *config.Config, client *hass.Client, opts stateReaderOptions) (state.Reader, error) {
	if opts.filesystem {
		dir := opts.storageDir
		if dir == "" {
			dir = cfg.StorageDir
		}
		if dir == "" {
			return nil, fmt.Errorf("--filesystem needs --storage-dir or storage_dir in the config file")
		}
		return &state.FilesystemReader{ConfigDir: dir}, nil
	}
	if client == nil {
		return nil, fmt.Errorf("no host connection")
	}
	return &state.HostReader{Host: client}, nil
}

// backupSources detects the backup sources configured in cfg.
func backupSources(ctx context.Context, cfg *config.Config, client *hass.Client) ([]backup.Source, error) {
	kinds, err := cfg.Backup.SourceKinds()
	if err != nil {
		return nil, err
	}
	return backup.DetectSources(ctx, client, backup.SourceOptions{
		Kinds:        kinds,
		SensorEntity: cfg.Backup.SensorEntity,
		MaxDepth:     cfg.Backup.MaxDepth,
	})
}

// currentUserName returns the name the host knows the client's token by.
func currentUserName(ctx context.Context, client *hass.Client) string {
	user, err := client.CurrentUser(ctx)
	if err != nil {
		logger.Debugf("could not look up current user: %v", err)
		return ""
	}
	return user.Name
}
