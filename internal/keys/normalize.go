// Package keys canonicalizes producer-supplied row keys so that values written
// by different producers (and by older versions of this program) compare equal.
//
// Most keys are calendar dates. Producers disagree wildly on formatting:
// Garmin emits ISO dates, Intervals.icu truncates RFC3339 timestamps, CSV
// exports use locale long forms ("January 2, 2024") or slash dates. Normalize
// folds all of those into one fixed YYYY-MM-DD representation.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical textual form emitted for date-like keys.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. Order matters: the RFC3339 variants must be
// attempted before the bare date layout would reject them.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	DateLayout,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"20060102",
}

// Normalize converts a raw key into its canonical form.
//
// When to use:
//   - On every key column cell, both when loading existing rows and when
//     accepting incoming batch rows. Keys must never be compared unnormalized.
//
// Edge cases:
//   - Unparseable input is returned trimmed but otherwise unchanged, so
//     non-date keys (composite nutrition ids) and corrupted legacy cells stay
//     usable instead of failing the pass.
//   - Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
//     The canonical form itself parses under DateLayout and re-emits itself.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Format(DateLayout)
	}
	return s
}

// NormalizeAny converts an arbitrary scalar key to its canonical string form.
//
// Backends and producers must not assume a particular underlying type for
// keys; this helper keeps lookups consistent when a cell arrives as a number
// or raw bytes rather than a string.
func NormalizeAny(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Normalize(t)
	case []byte:
		return Normalize(string(t))
	case int:
		return Normalize(strconv.Itoa(t))
	case int64:
		return Normalize(strconv.FormatInt(t, 10))
	case float64:
		// 'f' keeps compact dates like 20240305 out of scientific notation
		// so Normalize can still recognize them.
		return Normalize(strconv.FormatFloat(t, 'f', -1, 64))
	case time.Time:
		return t.Format(DateLayout)
	default:
		return Normalize(fmt.Sprint(v))
	}
}

// ParseDate reports whether s is a canonical or recognizable date, and the
// parsed value when it is. Used by the snapshot sort comparator.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
