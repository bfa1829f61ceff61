package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/the-cloud-source/scenes/pkg/data"
)

// Interval is a resolved query step, in both the string form datasources
// expect and the parsed duration.
type Interval struct {
	Text     string
	Duration time.Duration
}

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

var intervalPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w|y)$`)

var intervalUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  day,
	"w":  week,
	"y":  year,
}

// ParseInterval parses interval strings like "30s", "5m" or "1d". A week is
// seven days, a year 365.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	return time.Duration(n) * intervalUnits[m[2]], nil
}

// intervalLadder holds the canonical steps raw intervals are rounded down
// to.
var intervalLadder = []time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	20 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	15 * time.Second,
	20 * time.Second,
	30 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	15 * time.Minute,
	20 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	3 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	day,
	2 * day,
	week,
	30 * day,
	year,
}

// CalculateInterval derives the query step for a time range: range duration
// over maxDataPoints, floored by minInterval, rounded down to the canonical
// ladder. A zero maxDataPoints falls back to DefaultMaxDataPoints. Errors
// only when minInterval does not parse.
func CalculateInterval(tr data.TimeRange, maxDataPoints int64, minInterval string) (Interval, error) {
	points := maxDataPoints
	if points <= 0 {
		points = DefaultMaxDataPoints
	}

	raw := tr.Duration() / time.Duration(points)

	var floor time.Duration
	if minInterval != "" {
		var err error
		floor, err = ParseInterval(minInterval)
		if err != nil {
			return Interval{}, fmt.Errorf("failed to parse min interval: %w", err)
		}
	}
	if raw < floor {
		raw = floor
	}

	rounded := roundInterval(raw)
	if rounded < floor {
		rounded = floor
	}

	return Interval{Text: FormatDuration(rounded), Duration: rounded}, nil
}

func roundInterval(d time.Duration) time.Duration {
	for i := len(intervalLadder) - 1; i >= 0; i-- {
		if intervalLadder[i] <= d {
			return intervalLadder[i]
		}
	}
	return intervalLadder[0]
}

var formatUnits = []struct {
	d      time.Duration
	suffix string
}{
	{year, "y"},
	{week, "w"},
	{day, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
	{time.Millisecond, "ms"},
}

// FormatDuration renders d in the largest unit that divides it evenly,
// matching the interval grammar ("30s", "2m", "1h").
func FormatDuration(d time.Duration) string {
	for _, u := range formatUnits {
		if d >= u.d && d%u.d == 0 {
			return strconv.FormatInt(int64(d/u.d), 10) + u.suffix
		}
	}
	return d.String()
}
