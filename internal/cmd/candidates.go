package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/config"
	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/output"
)

func newCandidatesCmd() *cobra.Command {
	var (
		days int
		opts stateReaderOptions
	)

	cmd := &cobra.Command{
		Use:     "candidates",
		Aliases: []string{"list", "ls"},
		Short:   "List stale entities",
		Long: `Candidates lists registry entries eligible for cleanup:

  orphaned     registered but with no live state at all
  unavailable  stuck unavailable for at least --days days
  unknown      stuck unknown for at least --days days

Orphaned entities are always listed. The oldest entries come first.

With --filesystem the host's .storage files are read directly instead of
asking the running host. Their states reflect the host's last save.

Examples:
  entity-cleaner candidates
  entity-cleaner candidates --days 30 -o json
  entity-cleaner candidates --filesystem --storage-dir /config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runCandidates(cmd.Context(), cmd.OutOrStdout(), cfg, days, opts, clock.WallClock)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Minimum days unavailable or unknown")
	addStateReaderFlags(cmd, &opts)

	return cmd
}

func addStateReaderFlags(cmd *cobra.Command, opts *stateReaderOptions) {
	cmd.Flags().BoolVar(&opts.filesystem, "filesystem", false, "Read the host's .storage files instead of the running host")
	cmd.Flags().StringVar(&opts.storageDir, "storage-dir", "", "Host config directory holding .storage/ (with --filesystem)")
}

// runCandidates scans and prints candidates.
func runCandidates(ctx context.Context, stdout io.Writer, cfg *config.Config, days int, opts stateReaderOptions, clk clock.Clock) error {
	if days < 0 {
		return fmt.Errorf("--days must not be negative")
	}

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	cands, err := scanCandidates(ctx, cfg, days, opts, clk)
	if err != nil {
		return err
	}

	return writer.Render(map[string]any{"candidates": cands}, func(w io.Writer) error {
		return output.WriteCandidates(w, cands, clk.Now())
	})
}

// scanCandidates connects only when the host is the state source.
func scanCandidates(ctx context.Context, cfg *config.Config, days int, opts stateReaderOptions, clk clock.Clock) ([]cleaner.Candidate, error) {
	var client *hass.Client
	if !opts.filesystem {
		c, err := connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		client = c
	}

	reader, err := getStateReader(cfg, client, opts)
	if err != nil {
		return nil, err
	}
	return cleaner.NewScanner(reader, clk).Candidates(ctx, days)
}

// stderrf writes a status line unless --quiet is set.
func stderrf(format string, args ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}
