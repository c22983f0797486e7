// Package timeparsing parses the time expressions accepted by filters such as
// export --modified-since.
//
// Parsing is layered; the first layer that accepts the input wins:
//  1. Compact duration (+6h, -1d, -2w)
//  2. Absolute timestamp (date-only, RFC3339)
//  3. Natural language (yesterday, 2 weeks ago, last monday)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Units: h hours, d days, w weeks, m months, y years.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration applies a compact duration ("+6h", "-1d", "3m") to now.
// No sign means forward.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	sign, amount, unit, ok := splitCompact(s)
	if !ok {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	if sign == "-" {
		amount = -amount
	}
	return applyDuration(now, amount, unit), nil
}

// IsCompactDuration reports whether s matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

func splitCompact(s string) (sign string, amount int, unit string, ok bool) {
	m := compactDurationRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], n, m[3], true
}

func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	}
	return base
}

// Since parses a lower bound for a "modified since" filter. An unsigned
// compact duration counts back from now ("2w" is two weeks ago), and the
// result may not lie in the future.
func Since(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if sign, amount, unit, ok := splitCompact(s); ok && sign == "" {
		return applyDuration(now, -amount, unit), nil
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%q is in the future (%s)", s, t.Format(time.RFC3339))
	}
	return t, nil
}
