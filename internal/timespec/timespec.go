package timespec

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	cronPattern   = regexp.MustCompile(`^cron\(\s*(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s*\)$`)
	oncePattern   = regexp.MustCompile(`^once\((.*)\)$`)
	periodPattern = regexp.MustCompile(`^period\(([^,]*),([^,]*)(?:,([^,]*))?\)$`)
	rangePattern  = regexp.MustCompile(`^range\(([^,]*),(.*)\)$`)
)

func parseCron(s string) (cronSpec, bool) {
	m := cronPattern.FindStringSubmatch(s)
	if m == nil {
		return cronSpec{}, false
	}
	var c cronSpec
	copy(c[:], m[1:6])
	if validateCron(c) != nil {
		return cronSpec{}, false
	}
	return c, true
}

// IsActive reports whether now satisfies a list of cron() and range()
// entries. Entries may be negated with a "not" prefix. The list is active
// when any positive entry matches and no negative entry does; an empty
// list, or one with only negative entries, is always active.
func IsActive(specs []string, now time.Time, sun SunProvider) bool {
	positive, anyPositive := false, false
	for _, spec := range specs {
		s := strings.TrimSpace(spec)
		negated := false
		if rest, ok := strings.CutPrefix(s, "not"); ok {
			negated = true
			s = strings.TrimSpace(rest)
		} else {
			anyPositive = true
		}

		match := false
		if c, ok := parseCron(s); ok {
			match = c.active(now)
		} else if m := rangePattern.FindStringSubmatch(s); m != nil {
			start := ParseDateTime(m[1], 0, now, sun)
			end := ParseDateTime(m[2], 0, start, sun)
			if start.Before(end) {
				match = !now.Before(start) && !now.After(end)
			} else {
				match = !now.Before(start) || !now.After(end)
			}
		}

		if negated && match {
			return false
		}
		positive = positive || (!negated && match)
	}
	return positive || !anyPositive
}

// Next returns the earliest instant strictly after now produced by any of
// the cron(), once() or period() entries. ok is false when no entry will
// fire again.
func Next(specs []string, now time.Time, sun SunProvider) (next time.Time, ok bool) {
	consider := func(t time.Time) {
		if t.After(now) && (!ok || t.Before(next)) {
			next, ok = t, true
		}
	}
	for _, spec := range specs {
		s := strings.TrimSpace(spec)
		if c, valid := parseCron(s); valid {
			if t, found := c.next(now); found {
				consider(t)
			}
			continue
		}
		if m := oncePattern.FindStringSubmatch(s); m != nil {
			t := ParseDateTime(m[1], 0, now, sun)
			if !t.After(now) {
				t = ParseDateTime(m[1], 1, now, sun)
			}
			consider(t)
			continue
		}
		if m := periodPattern.FindStringSubmatch(s); m != nil {
			nextPeriod(m[1], m[2], m[3], now, sun, consider)
		}
	}
	return next, ok
}

// nextPeriod offers the next tick of period(start, interval[, end]). Ticks
// run from start every interval and, when end is given, stop at end; after
// that the next candidate is tomorrow's start.
func nextPeriod(startSpec, intervalSpec, endSpec string, now time.Time, sun SunProvider, consider func(time.Time)) {
	start := ParseDateTime(startSpec, 0, now, sun)
	if now.Before(start) {
		consider(start)
		return
	}
	interval := ParseOffset(intervalSpec)
	if interval <= 0 {
		return
	}
	tick := start.Add((now.Sub(start)/interval + 1) * interval)
	if strings.TrimSpace(endSpec) == "" {
		consider(tick)
		return
	}
	end := ParseDateTime(endSpec, 0, now, sun)
	if end.Before(start) {
		end = ParseDateTime(endSpec, 1, now, sun)
	}
	if tick.After(now) && !tick.After(end) {
		consider(tick)
		return
	}
	consider(ParseDateTime(startSpec, 1, now, sun))
}

// ValidateTrigger checks one time trigger entry: cron(), once() or
// period().
func ValidateTrigger(spec string) error {
	s := strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(s, "cron("):
		return validateCronEntry(s)
	case oncePattern.MatchString(s):
		return nil
	case strings.HasPrefix(s, "period("):
		m := periodPattern.FindStringSubmatch(s)
		if m == nil {
			return fmt.Errorf("%w: %q", ErrInvalidSpec, spec)
		}
		if ParseOffset(m[2]) <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidInterval, strings.TrimSpace(m[2]))
		}
		return nil
	case strings.HasPrefix(s, "range("):
		return fmt.Errorf("%w: range() only applies to time_active", ErrNotAllowed)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSpec, spec)
}

// ValidateActive checks one time-active entry: cron() or range(),
// optionally prefixed with "not".
func ValidateActive(spec string) error {
	s := strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(s, "not"); ok {
		s = strings.TrimSpace(rest)
	}
	switch {
	case strings.HasPrefix(s, "cron("):
		return validateCronEntry(s)
	case rangePattern.MatchString(s):
		return nil
	case strings.HasPrefix(s, "once("), strings.HasPrefix(s, "period("):
		return fmt.Errorf("%w: %q only applies to time_trigger", ErrNotAllowed, s)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSpec, spec)
}

func validateCronEntry(s string) error {
	m := cronPattern.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: %q needs five fields", ErrInvalidSpec, s)
	}
	var c cronSpec
	copy(c[:], m[1:6])
	return validateCron(c)
}
