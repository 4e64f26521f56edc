package backup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adamancini/entity-cleaner/internal/types"
)

// DefaultMaxDepth bounds how far Normalize descends into nested data.
const DefaultMaxDepth = 8

// dateKeys are checked in order; the first non-empty one dates the record.
var dateKeys = []string{"date", "created", "created_at"}

// Normalize extracts backup records from decoded host data. Any object with
// a non-empty date field is a record; other objects and lists are searched
// up to maxDepth levels deep.
func Normalize(v any, source types.SourceKind, maxDepth int) []Record {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var records []Record
	walk(v, source, 0, maxDepth, &records)
	return records
}

func walk(v any, source types.SourceKind, depth, maxDepth int, out *[]Record) {
	if depth > maxDepth {
		logger.Debugf("%s: not descending past depth %d", source, maxDepth)
		return
	}

	switch node := v.(type) {
	case map[string]any:
		if rec, ok := recordFrom(node, source); ok {
			*out = append(*out, rec)
			return
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(node[k], source, depth+1, maxDepth, out)
		}
	case []any:
		for _, item := range node {
			walk(item, source, depth+1, maxDepth, out)
		}
	}
}

func recordFrom(obj map[string]any, source types.SourceKind) (Record, bool) {
	for _, key := range dateKeys {
		val, ok := obj[key]
		if !ok || isEmpty(val) {
			continue
		}

		rec := Record{Source: source}
		if name, ok := obj["name"].(string); ok {
			rec.Name = name
		}

		switch d := val.(type) {
		case time.Time:
			rec.Date = d
			rec.Raw = isoformat(d, false)
		case string:
			rec.Raw = d
			rec.Date, rec.Naive, _ = ParseTime(d)
		default:
			rec.Raw = fmt.Sprint(d)
		}
		return rec, true
	}
	return Record{}, false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case time.Time:
		return x.IsZero()
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// ParseTime parses the timestamp formats the host and supervisor emit.
// Naive timestamps are returned in UTC with naive set.
func ParseTime(s string) (t time.Time, naive bool, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

func isoformat(t time.Time, naive bool) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/1000 != 0 {
		layout += ".000000"
	}
	if !naive {
		layout += "-07:00"
	}
	return t.Format(layout)
}
