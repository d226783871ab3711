package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron field positions.
const (
	fieldMinute = iota
	fieldHour
	fieldDay
	fieldMonth
	fieldWeekday
)

// fieldBounds holds the legal range of each cron field.
var fieldBounds = [5]struct{ lo, hi int }{
	{0, 59},
	{0, 23},
	{1, 31},
	{1, 12},
	{0, 6},
}

// maxCronSteps bounds the search for schedules that can never fire, such
// as 30 February.
const maxCronSteps = 20000

// CronFieldMatch returns the smallest value >= current that satisfies one
// cron field, or the smallest value in the field when none is >= current.
// A field is "*", an integer, an a-b range or a comma list of those. A
// range with a > b wraps, so 23-2 covers 23, 0, 1 and 2. Unparsable
// elements match anything.
func CronFieldMatch(field string, current int) int {
	if field == "*" {
		return current
	}
	minGE, minAll := -1, -1
	consider := func(v int) {
		if minAll < 0 || v < minAll {
			minAll = v
		}
		if v >= current && (minGE < 0 || v < minGE) {
			minGE = v
		}
	}
	for _, elt := range strings.Split(field, ",") {
		a, b, err := parseElement(elt)
		if err != nil {
			return current
		}
		// Outside a wrapping range current lies strictly between b and a,
		// so a is the next match.
		if a > b {
			if current >= a || current <= b {
				return current
			}
			consider(a)
			continue
		}
		if a <= current && current <= b {
			return current
		}
		consider(a)
	}
	if minGE >= 0 {
		return minGE
	}
	return minAll
}

func parseElement(elt string) (lo, hi int, err error) {
	elt = strings.TrimSpace(elt)
	if a, b, ok := strings.Cut(elt, "-"); ok {
		if lo, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
			return 0, 0, err
		}
		hi, err = strconv.Atoi(strings.TrimSpace(b))
		return lo, hi, err
	}
	lo, err = strconv.Atoi(elt)
	return lo, lo, err
}

func validateCron(fields [5]string) error {
	for i, f := range fields {
		if f == "*" {
			continue
		}
		bounds := fieldBounds[i]
		for _, elt := range strings.Split(f, ",") {
			a, b, err := parseElement(elt)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidCron, f)
			}
			for _, v := range []int{a, b} {
				if v < bounds.lo || v > bounds.hi {
					return fmt.Errorf("%w: %d outside %d-%d in %q", ErrInvalidCron, v, bounds.lo, bounds.hi, f)
				}
			}
		}
	}
	return nil
}

type cronSpec [5]string

func (c cronSpec) matches(field, v int) bool {
	return CronFieldMatch(c[field], v) == v
}

// dayMatches combines the two day constraints: when one is "*" the other
// decides, when both are set either may match.
func (c cronSpec) dayMatches(t time.Time) bool {
	dom := c.matches(fieldDay, t.Day())
	dow := c.matches(fieldWeekday, int(t.Weekday()))
	switch {
	case c[fieldDay] == "*" && c[fieldWeekday] == "*":
		return true
	case c[fieldDay] == "*":
		return dow
	case c[fieldWeekday] == "*":
		return dom
	}
	return dom || dow
}

// active reports whether the minute containing now satisfies the spec.
func (c cronSpec) active(now time.Time) bool {
	return c.matches(fieldMonth, int(now.Month())) &&
		c.dayMatches(now) &&
		c.matches(fieldHour, now.Hour()) &&
		c.matches(fieldMinute, now.Minute())
}

// next returns the first whole minute strictly after now's minute that
// satisfies the spec. Each mismatching level carries into the next larger
// unit and resets the smaller ones, so month lengths and leap years fall
// out of time.Date normalisation.
func (c cronSpec) next(now time.Time) (time.Time, bool) {
	loc := now.Location()
	t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute()+1, 0, 0, loc)

	for range maxCronSteps {
		if !c.matches(fieldMonth, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !c.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if h := CronFieldMatch(c[fieldHour], t.Hour()); h != t.Hour() {
			if h < t.Hour() {
				t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, loc)
			}
			continue
		}
		if m := CronFieldMatch(c[fieldMinute], t.Minute()); m != t.Minute() {
			if m < t.Minute() {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), m, 0, 0, loc)
			}
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
