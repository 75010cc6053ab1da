// Package timespec parses the --since and --until values used to filter nodes
// by when their state last changed.
package timespec

import (
	"fmt"
	"strconv"
	"time"
)

// Parse parses a time specification into a Unix timestamp (milliseconds).
// Supports three formats:
//   - Go duration format: "30s", "5m", "1h30m", taken as that long before now
//   - RFC3339 timestamps: "2026-10-17T13:00:00Z"
//   - Unix milliseconds, as mirrored in the updated_at field
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	if ms, err := strconv.ParseInt(spec, 10, 64); err == nil && ms > 0 {
		return ms, nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '5m', RFC3339 like '2026-10-17T13:00:00Z', or Unix milliseconds)", spec)
}

// ParseRange parses both --since and --until flags into a time range.
// Zero values indicate "no bound" for that end of the range.
func ParseRange(since, until string, now time.Time) (sinceMs int64, untilMs int64, err error) {
	if since != "" {
		sinceMs, err = Parse(since, now)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilMs, err = Parse(until, now)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMs > 0 && untilMs > 0 && sinceMs >= untilMs {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMs, untilMs, nil
}
