package cmd

import (
	"context"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/output"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the most recent backups",
		Long: `Info shows the newest automatic and manual backups the host knows about.

A backup is automatic when its name matches backup.name in the config file.
Backups are read from every configured source: the backup integration, the
supervisor and the backup state sensor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			sources, err := backupSources(cmd.Context(), cfg, client)
			if err != nil {
				return err
			}
			return runInfo(cmd.Context(), cmd.OutOrStdout(), cfg, sources, clock.WallClock)
		},
	}
}

func runInfo(ctx context.Context, stdout io.Writer, cfg *config.Config, sources []backup.Source, clk clock.Clock) error {
	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	for _, src := range sources {
		logger.Debugf("reading backups from %s", src.Kind())
	}
	info := backup.NewResolver(sources, cfg.Backup.Name).LastBackups(ctx)

	return writer.Render(info, func(w io.Writer) error {
		return output.WriteBackupInfo(w, info, clk.Now().Round(time.Second))
	})
}
