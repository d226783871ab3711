package eval

import (
	"strings"
	"time"
)

// Now is the clock behind datetime.now and friends. Tests replace it.
var Now = time.Now

var dateTimeFieldNames = []string{"year", "month", "day", "hour", "minute", "second", "microsecond"}

func newDateTimeType() *Builtin {
	return &Builtin{
		Name:     "datetime",
		TypeName: "datetime",
		Fn:       dateTimeCtor,
		Attrs: map[string]Value{
			"now": fn("now", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				return DateTime{T: Now()}, arity("now", args, 0, 1)
			}),
			"today": fn("today", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				return DateTime{T: Now()}, arity("today", args, 0, 0)
			}),
			"fromtimestamp": fn("fromtimestamp", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				if err := arity("fromtimestamp", args, 1, 2); err != nil {
					return nil, err
				}
				ts, err := floatArg("fromtimestamp", args[0])
				if err != nil {
					return nil, err
				}
				sec := int64(ts)
				return DateTime{T: time.Unix(sec, int64((ts-float64(sec))*1e9)).Round(time.Microsecond)}, nil
			}),
			"fromisoformat": fn("fromisoformat", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				if err := arity("fromisoformat", args, 1, 1); err != nil {
					return nil, err
				}
				s, err := strArg("fromisoformat", args[0])
				if err != nil {
					return nil, err
				}
				t, ok := ParseISO(s)
				if !ok {
					return nil, errorf(ValueError, "Invalid isoformat string: %s", quote(s))
				}
				return DateTime{T: t}, nil
			}),
			"strptime": fn("strptime", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				if err := arity("strptime", args, 2, 2); err != nil {
					return nil, err
				}
				s, err := strArg("strptime", args[0])
				if err != nil {
					return nil, err
				}
				layout, err := strArg("strptime", args[1])
				if err != nil {
					return nil, err
				}
				t, err := time.ParseInLocation(goLayout(layout), s, time.Local)
				if err != nil {
					return nil, errorf(ValueError, "time data %s does not match format %s", quote(s), quote(layout))
				}
				return DateTime{T: t}, nil
			}),
		},
	}
}

func dateTimeCtor(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("datetime", args, 3, 7); err != nil {
		return nil, err
	}
	f := make([]int, len(dateTimeFieldNames))
	for i, name := range dateTimeFieldNames {
		v := optArg(args, i, kwargs, name, int64(0))
		n, ok := toInt(v)
		if !ok {
			return nil, errorf(TypeError, "an integer is required (got type %s)", TypeName(v))
		}
		f[i] = int(n)
	}
	switch {
	case f[1] < 1 || f[1] > 12:
		return nil, errorf(ValueError, "month must be in 1..12")
	case f[2] < 1 || f[2] > daysIn(time.Month(f[1]), f[0]):
		return nil, errorf(ValueError, "day is out of range for month")
	case f[3] < 0 || f[3] > 23:
		return nil, errorf(ValueError, "hour must be in 0..23")
	case f[4] < 0 || f[4] > 59:
		return nil, errorf(ValueError, "minute must be in 0..59")
	case f[5] < 0 || f[5] > 59:
		return nil, errorf(ValueError, "second must be in 0..59")
	}
	return DateTime{T: time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6]*1000, time.Local)}, nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var timeDeltaArgs = []struct {
	name string
	unit time.Duration
}{
	{"days", 24 * time.Hour},
	{"seconds", time.Second},
	{"microseconds", time.Microsecond},
	{"milliseconds", time.Millisecond},
	{"minutes", time.Minute},
	{"hours", time.Hour},
	{"weeks", 7 * 24 * time.Hour},
}

func newTimeDeltaType() *Builtin {
	return &Builtin{
		Name:     "timedelta",
		TypeName: "timedelta",
		Fn: func(_ *Context, args []Value, kwargs *Dict) (Value, error) {
			if err := arity("timedelta", args, 0, len(timeDeltaArgs)); err != nil {
				return nil, err
			}
			var d float64
			for i, a := range timeDeltaArgs {
				v := optArg(args, i, kwargs, a.name, int64(0))
				f, ok := toFloat(v)
				if !ok {
					return nil, errorf(TypeError, "unsupported type for timedelta %s component: %s", a.name, TypeName(v))
				}
				d += f * float64(a.unit)
			}
			return TimeDelta{D: time.Duration(d).Round(time.Microsecond)}, nil
		},
	}
}

func datetimeModule() *Object {
	dt := typeObjects["datetime"]
	return module("datetime", map[string]Value{
		"datetime":  dt,
		"timedelta": typeObjects["timedelta"],
		"date": &Builtin{
			Name: "date",
			Fn: func(c *Context, args []Value, kwargs *Dict) (Value, error) {
				if err := arity("date", args, 3, 3); err != nil {
					return nil, err
				}
				return dateTimeCtor(c, args, kwargs)
			},
			Attrs: map[string]Value{
				"today": fn("today", func(_ *Context, args []Value, _ *Dict) (Value, error) {
					t := Now()
					return DateTime{T: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}, arity("today", args, 0, 0)
				}),
			},
		},
		"MINYEAR": int64(1),
		"MAXYEAR": int64(9999),
	})
}

var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseISO parses an ISO 8601 date or date-time. Times without a zone are
// local.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var strptimeDirectives = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03", 'M': "04",
	'S': "05", 'p': "PM", 'b': "Jan", 'B': "January", 'a': "Mon", 'A': "Monday",
	'z': "-0700", 'Z': "MST", 'j': "002", 'f': "000000", '%': "%",
}

// goLayout converts strptime directives into a time.Parse layout.
func goLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if l, ok := strptimeDirectives[format[i+1]]; ok {
				b.WriteString(l)
				i++
				continue
			}
		}
		b.WriteByte(format[i])
	}
	return b.String()
}
