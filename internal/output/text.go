package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/cleaner"
	"github.com/adamancini/entity-cleaner/internal/types"
)

// WriteCandidates prints candidates as a table, oldest first as given.
func WriteCandidates(w io.Writer, candidates []cleaner.Candidate, now time.Time) error {
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(w, "No stale entities found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ENTITY\tSTATUS\tPLATFORM\tSINCE\tNAME")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.EntityID, c.Status, dash(c.Platform), since(c, now), c.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s candidates\n", humanize.Comma(int64(len(candidates))))
	return err
}

func since(c cleaner.Candidate, now time.Time) string {
	if c.Status == types.StatusOrphaned {
		return "no state"
	}
	if c.LastChanged == nil {
		return "unknown"
	}
	t, _, err := backup.ParseTime(*c.LastChanged)
	if err != nil {
		return *c.LastChanged
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// WriteDeletion prints a deletion result.
func WriteDeletion(w io.Writer, res *cleaner.DeletionResult) error {
	for _, id := range res.Deleted {
		_, _ = fmt.Fprintf(w, "  %s %s\n", removedSymbol, id)
	}
	for _, msg := range res.Errors {
		_, _ = fmt.Fprintf(w, "  %s %s\n", failedSymbol, msg)
	}
	_, err := fmt.Fprintf(w, "\nRemoved %d, failed %d.\n", len(res.Deleted), len(res.Errors))
	return err
}

// WriteBackupInfo prints the last automatic and manual backups.
func WriteBackupInfo(w io.Writer, info backup.Info, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Last automatic backup:\t%s\n", describeBackup(info.LastBackupAuto, now))
	_, _ = fmt.Fprintf(tw, "Last manual backup:\t%s\n", describeBackup(info.LastBackupManual, now))
	return tw.Flush()
}

func describeBackup(ts *string, now time.Time) string {
	if ts == nil {
		return "none found"
	}
	t, _, err := backup.ParseTime(*ts)
	if err != nil {
		return *ts
	}
	return fmt.Sprintf("%s (%s)", *ts, humanize.RelTime(t, now, "ago", "from now"))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

const (
	removedSymbol = "-"
	failedSymbol  = "!"
)
