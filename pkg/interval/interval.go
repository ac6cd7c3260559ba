// Package interval parses rotation interval expressions and
// renders the time left until the next rotation.
//
// Grammar (case-insensitive, surrounding space ignored):
//
//	daily | weekly | monthly | disabled
//	[<int>d][<int>h][<int>m]
//
// Compound tokens appear in that order, each at most once, and
// must sum to a positive duration.
package interval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day and the literal periods.
const (
	Day     = 24 * time.Hour
	Week    = 7 * Day
	Month   = 30 * Day
	Literal = "disabled"
)

// Never is returned by time-remaining queries when rotation is
// disabled.
const Never time.Duration = -1

var (
	// ErrInvalid is returned for any expression outside the
	// grammar.
	ErrInvalid = errors.New("invalid rotation interval")

	// ErrDisabled is returned when the expression is the
	// disabled literal.
	ErrDisabled = errors.New("rotation disabled")
)

var compound = regexp.MustCompile(
	`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?$`,
)

var literals = map[string]time.Duration{
	"daily":   Day,
	"weekly":  Week,
	"monthly": Month,
}

// testingLiterals shorten the literal periods so rotations can
// be watched live.
var testingLiterals = map[string]time.Duration{
	"daily":   2 * time.Minute,
	"weekly":  5 * time.Minute,
	"monthly": 10 * time.Minute,
}

func normalize(expr string) string {
	return strings.ToLower(strings.TrimSpace(expr))
}

// IsDisabled reports whether expr is the disabled literal.
func IsDisabled(expr string) bool {
	return normalize(expr) == Literal
}

// Parse converts expr to a duration.
func Parse(expr string) (time.Duration, error) {
	s := normalize(expr)
	if s == Literal {
		return 0, ErrDisabled
	}
	if d, ok := literals[s]; ok {
		return d, nil
	}
	return parseCompound(s, expr)
}

// ParseTesting is Parse with testing-mode scaling: the literals
// become 2m, 5m and 10m, and a compound expression is scaled so
// that one day lasts one second.
func ParseTesting(expr string) (time.Duration, error) {
	s := normalize(expr)
	if d, ok := testingLiterals[s]; ok {
		return d, nil
	}
	d, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	scaled := d / (Day / time.Second)
	if scaled <= 0 {
		scaled = time.Millisecond
	}
	return scaled, nil
}

func parseCompound(s, raw string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrInvalid)
	}
	m := compound.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, raw)
	}

	units := [3]time.Duration{Day, time.Hour, time.Minute}
	var total time.Duration
	for i, unit := range units {
		group := m[i+1]
		if group == "" {
			continue
		}
		n, err := strconv.ParseInt(group, 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalid, raw)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalid, raw)
		}
		total += part
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalid, raw)
	}
	return total, nil
}

// Format renders a time-until-rotation value. Never renders as
// "Disabled", zero as "Ready to rotate", and anything else as
// "Xd Xh Xm" where days are omitted when zero and hours are
// omitted when both days and hours are zero.
func Format(remaining time.Duration) string {
	if remaining < 0 {
		return "Disabled"
	}
	if remaining == 0 {
		return "Ready to rotate"
	}

	days := remaining / Day
	hours := (remaining % Day) / time.Hour
	minutes := (remaining % time.Hour) / time.Minute

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	fmt.Fprintf(&b, "%dm", minutes)
	return b.String()
}
