package store

import (
	"fmt"
	"time"
)

// updatedAtLayouts covers what the mvpd_cache.updated_at column holds: the
// driver's _time_format=sqlite output and rows touched by SQLite's own
// datetime functions. Values without a zone are UTC.
var updatedAtLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// parseUpdatedAt reads an updated_at value as text. An empty value is the
// zero time.
func parseUpdatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range updatedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised updated_at %q", s)
}
