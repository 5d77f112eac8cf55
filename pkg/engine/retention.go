package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetentionKind distinguishes duration-based from count-based retention.
type RetentionKind string

const (
	RetentionDuration RetentionKind = "duration"
	RetentionCount    RetentionKind = "count"
)

// Retention is a backup retention policy: keep backups for a duration ("30d") or keep
// a number of backups ("keep-last=7", or a bare count "7").
type Retention struct {
	Raw      string
	Kind     RetentionKind
	Duration time.Duration
	Count    int
}

var (
	durationRetention = regexp.MustCompile(`^(\d+)\s*([hdwmy])$`)
	countRetention    = regexp.MustCompile(`^(?:keep-last\s*=\s*)?(\d+)$`)
)

var retentionUnits = map[string]time.Duration{
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"m": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

// ParseRetention parses a retention expression.
func ParseRetention(raw string) (Retention, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Retention{}, fmt.Errorf("retention is empty")
	}

	if m := durationRetention.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Retention{}, fmt.Errorf("invalid retention %q: amount must be positive", raw)
		}
		unit := retentionUnits[m[2]]
		if int64(n) > math.MaxInt64/int64(unit) {
			return Retention{}, fmt.Errorf("invalid retention %q: amount is too large", raw)
		}
		return Retention{
			Raw:      strings.TrimSpace(raw),
			Kind:     RetentionDuration,
			Duration: time.Duration(n) * unit,
		}, nil
	}

	if m := countRetention.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Retention{}, fmt.Errorf("invalid retention %q: count must be positive", raw)
		}
		return Retention{
			Raw:   strings.TrimSpace(raw),
			Kind:  RetentionCount,
			Count: n,
		}, nil
	}

	return Retention{}, fmt.Errorf("invalid retention %q: expected a duration like 30d or a count like keep-last=7", raw)
}

// IsZero reports whether no retention is set.
func (r Retention) IsZero() bool {
	return r.Kind == ""
}

// String returns the retention as written.
func (r Retention) String() string {
	return r.Raw
}

// MarshalText renders the retention as written.
func (r Retention) MarshalText() ([]byte, error) {
	return []byte(r.Raw), nil
}

// UnmarshalText parses a retention expression.
func (r *Retention) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*r = Retention{}
		return nil
	}
	parsed, err := ParseRetention(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Satisfies reports whether actual retention keeps at least as much as r expects.
// When it does not, the returned reason explains the mismatch.
func (r Retention) Satisfies(actual Retention) (bool, string) {
	if actual.Kind != r.Kind {
		return false, fmt.Sprintf("expected %s retention %s, found %s retention %s", r.Kind, r.Raw, actual.Kind, actual.Raw)
	}
	switch r.Kind {
	case RetentionDuration:
		if actual.Duration < r.Duration {
			return false, fmt.Sprintf("retention %s is shorter than expected %s", actual.Raw, r.Raw)
		}
	case RetentionCount:
		if actual.Count < r.Count {
			return false, fmt.Sprintf("retention %s keeps fewer backups than expected %s", actual.Raw, r.Raw)
		}
	}
	return true, ""
}
