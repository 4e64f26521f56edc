package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/interactive"
	"github.com/adamancini/entity-cleaner/internal/output"
	"github.com/adamancini/entity-cleaner/internal/state"
)

// deleteOptions holds the delete command's flags.
type deleteOptions struct {
	stale    bool
	days     int
	backup   bool
	yes      bool
	prompter *interactive.Prompter
}

func newDeleteCmd() *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:     "delete [entity_id...]",
		Aliases: []string{"rm"},
		Short:   "Remove entities from the registry",
		Long: `Delete removes entities from the entity registry. Name them as arguments,
or pass --stale to pick from the current candidates.

With --stale each candidate is confirmed in turn:
  y  remove it
  n  keep it
  a  remove it and every remaining one
  q  stop without removing anything

Named entities are confirmed together.

Pass --backup to run a full backup before anything is removed. Deletion
is skipped entirely if the backup fails.

Examples:
  entity-cleaner delete sensor.old_plug switch.gone
  entity-cleaner delete --stale --days 30
  entity-cleaner delete --stale --backup --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.stale {
				return fmt.Errorf("name entities to delete or pass --stale")
			}
			if len(args) > 0 && opts.stale {
				return fmt.Errorf("--stale cannot be combined with entity arguments")
			}
			if !opts.yes {
				if !interactive.IsTerminal() {
					return fmt.Errorf("confirmation needs a terminal; pass --yes to delete without prompting")
				}
				opts.prompter = interactive.NewPrompter()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			return runDelete(cmd.Context(), cmd.OutOrStdout(), cfg, client, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.stale, "stale", false, "Delete from the current candidates")
	cmd.Flags().IntVarP(&opts.days, "days", "d", 0, "Minimum days unavailable or unknown (with --stale)")
	cmd.Flags().BoolVar(&opts.backup, "backup", false, "Start a full backup first")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompts")

	return cmd
}

// deleteHost is what the delete command needs from a host connection.
type deleteHost interface {
	state.HostAPI
	cleaner.Registry
	backup.ServiceCaller
}

// hostClient lets a *hass.Client serve as a deleteHost.
type hostClient struct {
	*hass.Client
	hass.Registry
}

func newHostClient(c *hass.Client) hostClient {
	return hostClient{Client: c, Registry: hass.Registry{Client: c}}
}

func runDelete(ctx context.Context, stdout io.Writer, cfg *config.Config, client *hass.Client, ids []string, opts deleteOptions) error {
	requestedBy := currentUserName(ctx, client)
	return deleteEntities(ctx, stdout, cfg, newHostClient(client), requestedBy, ids, opts)
}

func deleteEntities(ctx context.Context, stdout io.Writer, cfg *config.Config, host deleteHost, requestedBy string, ids []string, opts deleteOptions) error {
	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	if opts.stale {
		cands, err := cleaner.NewScanner(&state.HostReader{Host: host}, clock.WallClock).Candidates(ctx, opts.days)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			_, _ = fmt.Fprintln(stdout, "No stale entities found.")
			return nil
		}
		if opts.prompter != nil {
			selected, proceed := opts.prompter.SelectForDeletion(cands)
			if !proceed {
				return nil
			}
			ids = selected
		} else {
			ids = make([]string, 0, len(cands))
			for _, c := range cands {
				ids = append(ids, c.EntityID)
			}
		}
	} else if opts.prompter != nil {
		question := fmt.Sprintf("Remove %d entities from the registry?", len(ids))
		if !opts.prompter.Confirm(question) {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if opts.backup {
		stderrf("Starting backup...\n")
		if err := backup.NewTrigger(host, cfg.Backup.Name).Run(ctx, requestedBy); err != nil {
			return fmt.Errorf("backup failed, nothing removed: %w", err)
		}
	}

	res := cleaner.NewDeleter(host).Delete(ctx, ids)
	if err := writer.Render(res, func(w io.Writer) error {
		return output.WriteDeletion(w, res)
	}); err != nil {
		return err
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%d of %d removals failed", len(res.Errors), len(ids))
	}
	return nil
}
