package timespec

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	datePattern   = regexp.MustCompile(`^(\d+)[-/](\d+)(?:[-/](\d+))?`)
	clockPattern  = regexp.MustCompile(`^(\d+):(\d+)(?::(\d*\.?\d+))?`)
	wordPattern   = regexp.MustCompile(`^\w+`)
	offsetPattern = regexp.MustCompile(`([-+]?\s*\d*\.?\d+(?:[eE][-+]?\d+)?)\s*(\w*)`)
)

// weekdays maps full and abbreviated English day names to time.Weekday.
var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// offsetUnits maps offset unit words to their length. Unknown units are
// seconds.
var offsetUnits = map[string]time.Duration{
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ParseOffset parses a signed number followed by an optional unit, such as
// "+30 min", "-1.5h" or "90". The string must hold exactly one number;
// anything else yields zero.
func ParseOffset(s string) time.Duration {
	m := offsetPattern.FindAllStringSubmatch(s, -1)
	if len(m) != 1 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[0][1], " ", ""), 64)
	if err != nil {
		return 0
	}
	unit, ok := offsetUnits[m[0][2]]
	if !ok {
		unit = time.Second
	}
	return time.Duration(math.Round(value * float64(unit)))
}

// ParseDateTime resolves a datetime phrase relative to now, in now's
// location. dayOffset shifts phrases without an explicit date by that many
// days; a weekday name resolves to the first such day at least dayOffset
// days ahead. A phrase with no time of day means midnight. When sunrise or
// sunset does not occur on that day, the result lies 100 days in the past
// so that it never schedules anything.
func ParseDateTime(s string, dayOffset int, now time.Time, sun SunProvider) time.Time {
	loc := now.Location()
	year, month, day := now.Date()
	s = strings.ToLower(strings.TrimSpace(s))

	if m := datePattern.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			c, _ := strconv.Atoi(m[3])
			year, month, day = a, time.Month(b), c
		} else {
			month, day = time.Month(a), b
		}
		dayOffset = 0
		s = strings.TrimSpace(s[len(m[0]):])
	} else if word := wordPattern.FindString(s); word != "" {
		dated := true
		switch word {
		case "today":
			dayOffset = 0
		case "tomorrow":
			dayOffset = 1
		default:
			if dow, ok := weekdays[word]; ok {
				ahead := (int(dow) - int(now.Weekday()) + 7) % 7
				for ahead < dayOffset {
					ahead += 7
				}
				dayOffset = ahead
			} else {
				dated = false
			}
		}
		if dated {
			s = strings.TrimSpace(s[len(word):])
		}
	}
	date := time.Date(year, month, day+dayOffset, 0, 0, 0, 0, loc)

	hour, minute := 0, 0
	var sec float64
	if m := clockPattern.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			sec, _ = strconv.ParseFloat(m[3], 64)
		}
		s = s[len(m[0]):]
	} else {
		switch word := wordPattern.FindString(s); word {
		case "sunrise", "sunset":
			t, ok := sunTime(sun, date, word == "sunrise")
			if !ok {
				return date.AddDate(0, 0, -100)
			}
			hour, minute, sec = t.Hour(), t.Minute(), float64(t.Second())
			s = s[len(word):]
		case "noon":
			hour = 12
			s = s[len(word):]
		case "midnight":
			s = s[len(word):]
		}
	}
	t := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc).
		Add(time.Duration(sec * float64(time.Second)))

	if s = strings.TrimSpace(s); s != "" && (s[0] == '+' || s[0] == '-') {
		t = t.Add(ParseOffset(s))
	}
	return t
}

func sunTime(sun SunProvider, day time.Time, rise bool) (time.Time, bool) {
	if sun == nil {
		return time.Time{}, false
	}
	r, s, ok := sun.SunTimes(day)
	if !ok {
		return time.Time{}, false
	}
	if rise {
		return r.In(day.Location()), true
	}
	return s.In(day.Location()), true
}
