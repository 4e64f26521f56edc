package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/plugin"
	"github.com/adamancini/entity-cleaner/internal/server"
	"github.com/adamancini/entity-cleaner/internal/state"
)

func newServeCmd() *cobra.Command {
	var (
		listenHost string
		listenPort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the panel and its websocket commands",
		Long: `Serve connects to the host, detects which backup subsystem it offers, and
serves the Entity Cleaner panel:

  /entity_cleaner_files/   panel assets (static_dir)
  /api/panels              registered sidebar panels
  /api/websocket           entity_cleaner/get_candidates, delete, backup, get_info

Serve runs until interrupted. It exits with an error if the host connection
is lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen-host") {
				cfg.Listen.Host = listenHost
			}
			if cmd.Flags().Changed("port") {
				cfg.Listen.Port = listenPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listenHost, "listen-host", config.DefaultListenHost, "Address to listen on")
	cmd.Flags().IntVarP(&listenPort, "port", "p", config.DefaultListenPort, "Port to listen on")

	return cmd
}

// runServe serves until ctx is cancelled or the host connection drops.
func runServe(ctx context.Context, cfg *config.Config) error {
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	logger.Infof("entity-cleaner %s connected to host %s", appVersion, client.Version())

	sources, err := backupSources(ctx, cfg, client)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		logger.Warningf("no backup source found; get_info will report no backups")
	}

	deps := plugin.Deps{
		Candidates: cleaner.NewScanner(&state.HostReader{Host: client}, clock.WallClock),
		Deleter:    cleaner.NewDeleter(&hass.Registry{Client: client}),
		Backup:     backup.NewTrigger(client, cfg.Backup.Name),
		Info:       backup.NewResolver(sources, cfg.Backup.Name),
	}

	registry := server.NewRegistry()
	if err := plugin.Setup(registry, cfg.Frontend, deps); err != nil {
		return errors.Annotate(err, "registering panel")
	}
	defer plugin.Unload(registry, cfg.Frontend)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Listen.Host
	srvCfg.Port = cfg.Listen.Port
	srvCfg.Version = client.Version()
	srv := server.New(srvCfg, registry, authenticator(cfg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-client.Done():
			return fmt.Errorf("lost connection to host: %w", client.Err())
		}
	})

	return g.Wait()
}

// authenticator picks how websocket clients are verified. Static tokens are
// checked first; with none configured, tokens are checked against the host.
func authenticator(cfg *config.Config) server.Authenticator {
	hostAuth := &server.HostAuthenticator{URL: cfg.Host.URL}
	if len(cfg.Auth.AdminTokens) == 0 {
		return hostAuth
	}
	static := &server.TokenAuthenticator{Tokens: cfg.Auth.AdminTokens}
	if !cfg.Auth.UseHost {
		return static
	}
	return server.ChainAuthenticator{static, hostAuth}
}
