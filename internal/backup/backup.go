// Package backup reports and triggers host backups.
//
// The host's backup subsystem has had several incompatible shapes. Each
// known shape is a Source; the Resolver merges their records into the most
// recent automatic and manual backup, and the Trigger starts a new one
// through whichever backup service the host offers.
package backup

import (
	"context"
	"sort"
	"time"

	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"

	"github.com/adamancini/entity-cleaner/internal/types"
)

var logger = loggo.GetLogger("entitycleaner.backup")

// Record is one backup as reported by a source.
type Record struct {
	Name string
	// Date is zero when the source's date value could not be parsed.
	Date time.Time
	// Naive is set when the source date carried no zone.
	Naive  bool
	Raw    string
	Source types.SourceKind
}

// Timestamp renders the record date the way the host prints it. Dates that
// could not be parsed are returned verbatim.
func (r Record) Timestamp() string {
	if r.Date.IsZero() {
		return r.Raw
	}
	return isoformat(r.Date, r.Naive)
}

// Info is the answer to a last-backup lookup. Either field is nil when no
// matching backup was found.
type Info struct {
	LastBackupAuto   *string `json:"last_backup_auto" yaml:"last_backup_auto"`
	LastBackupManual *string `json:"last_backup_manual" yaml:"last_backup_manual"`
}

// Resolver answers last-backup lookups over a fixed set of sources.
type Resolver struct {
	sources  []Source
	autoName string
}

// NewResolver creates a resolver. Backups named autoName are treated as
// automatic; every other backup is manual.
func NewResolver(sources []Source, autoName string) *Resolver {
	if autoName == "" {
		autoName = types.AutoBackupName
	}
	return &Resolver{sources: sources, autoName: autoName}
}

// Sources returns the sources the resolver reads.
func (r *Resolver) Sources() []Source {
	return r.sources
}

// LastBackups returns the newest automatic and the newest manual backup.
// Lookup failures are logged and reported as unknown.
func (r *Resolver) LastBackups(ctx context.Context) Info {
	records, err := r.gather(ctx)
	if err != nil {
		logger.Errorf("failed to look up backups: %v", err)
		return Info{}
	}
	logger.Infof("found %d backups across %d sources", len(records), len(r.sources))
	return pick(records, r.autoName)
}

func (r *Resolver) gather(ctx context.Context) ([]Record, error) {
	perSource := make([][]Record, len(r.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			recs, err := src.Backups(gctx)
			if err != nil {
				return err
			}
			perSource[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Record
	for _, recs := range perSource {
		all = append(all, recs...)
	}
	return all, nil
}

func pick(records []Record, autoName string) Info {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortNewestFirst(sorted)

	var info Info
	for _, rec := range sorted {
		ts := rec.Timestamp()
		if rec.Name == autoName {
			if info.LastBackupAuto == nil {
				info.LastBackupAuto = &ts
			}
		} else if info.LastBackupManual == nil {
			info.LastBackupManual = &ts
		}

		if info.LastBackupAuto != nil && info.LastBackupManual != nil {
			break
		}
	}
	return info
}

// sortNewestFirst orders records by date, newest first. Undated records go
// last and keep their relative order.
func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Date, records[j].Date
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}
