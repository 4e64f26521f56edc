package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/config"
)

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Start a full host backup",
		Long: `Backup starts a full backup on the host using the first service it offers:

  hassio.backup_full     supervisor installs
  backup.create          core installs with the backup integration
  hassio.backup_partial  older supervisors (includes host config)

Backups started here are named after backup.name in the config file, so
'entity-cleaner info' reports them as automatic. The host is also sent a
persistent notification saying which service was used.`,
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

			requestedBy := currentUserName(cmd.Context(), client)
			return runBackup(cmd.Context(), cmd.OutOrStdout(), cfg, client, requestedBy)
		},
	}
}

func runBackup(ctx context.Context, stdout io.Writer, cfg *config.Config, host backup.ServiceCaller, requestedBy string) error {
	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	if err := backup.NewTrigger(host, cfg.Backup.Name).Run(ctx, requestedBy); err != nil {
		return err
	}

	return writer.Render(map[string]bool{"success": true}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Backup %q started.\n", cfg.Backup.Name)
		return err
	})
}
