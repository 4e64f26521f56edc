// Package cleaner finds stale entity registry entries and removes them.
package cleaner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"

	"github.com/adamancini/entity-cleaner/internal/state"
	"github.com/adamancini/entity-cleaner/internal/types"
)

var logger = loggo.GetLogger("entitycleaner.cleaner")

// Candidate is a registry entry eligible for removal.
type Candidate struct {
	EntityID        string             `json:"entity_id" yaml:"entity_id"`
	Name            string             `json:"name" yaml:"name"`
	Platform        string             `json:"platform" yaml:"platform"`
	Status          types.EntityStatus `json:"status" yaml:"status"`
	LastChanged     *string            `json:"last_changed" yaml:"last_changed"`
	DaysUnavailable int                `json:"days_unavailable" yaml:"days_unavailable"`
}

// Scanner classifies registry entries against the live state cache.
type Scanner struct {
	reader state.Reader
	clock  clock.Clock
}

// NewScanner creates a scanner reading from reader. A nil clock means the
// wall clock.
func NewScanner(reader state.Reader, clk clock.Clock) *Scanner {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scanner{reader: reader, clock: clk}
}

// Candidates returns every enabled registry entry that is orphaned, or whose
// state has been unavailable or unknown for at least days days, oldest first.
// A negative days counts as 0.
func (s *Scanner) Candidates(ctx context.Context, days int) ([]Candidate, error) {
	if days < 0 {
		days = 0
	}

	snap, err := s.reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host state: %w", err)
	}

	now := s.clock.Now()
	candidates := []Candidate{}

	for _, entry := range snap.Entries {
		if entry.Disabled() {
			continue
		}

		if c, ok := classify(entry, snap, now, days); ok {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DaysUnavailable > candidates[j].DaysUnavailable
	})

	logger.Debugf("%d of %d registry entries are candidates (threshold %d days)",
		len(candidates), len(snap.Entries), days)
	return candidates, nil
}

func classify(entry state.RegistryEntry, snap *state.Snapshot, now time.Time, days int) (Candidate, bool) {
	c := Candidate{
		EntityID:        entry.EntityID,
		Name:            entry.DisplayName(),
		Platform:        entry.Platform,
		Status:          types.StatusActive,
		DaysUnavailable: types.NotEvaluatedAge,
	}

	live, ok := snap.State(entry.EntityID)
	if !ok {
		c.Status = types.StatusOrphaned
		c.DaysUnavailable = types.OrphanedAge
		return c, true
	}

	c.Status = types.StatusFromState(live.State)
	if !c.Status.IsStale() {
		return c, false
	}

	if live.LastChanged == nil {
		return c, true
	}

	changed := FormatTime(*live.LastChanged)
	c.LastChanged = &changed
	c.DaysUnavailable = AgeInDays(now, *live.LastChanged)
	return c, c.DaysUnavailable >= days
}

// AgeInDays returns the whole days elapsed between since and now, floored.
func AgeInDays(now, since time.Time) int {
	return int(math.Floor(now.Sub(since).Hours() / 24))
}

// FormatTime renders t as ISO-8601 with a numeric offset, microsecond
// precision when non-zero, matching the host's own timestamps.
func FormatTime(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}
