package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Str returns the str() form of v.
func Str(v Value) string {
	switch v := v.(type) {
	case string:
		return v
	case DateTime:
		return formatDateTime(v)
	case TimeDelta:
		return formatTimeDelta(v)
	}
	return Repr(v)
}

// Repr returns the repr() form of v.
func Repr(v Value) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return FormatFloat(v)
	case string:
		return quote(v)
	case *List:
		return "[" + joinRepr(v.Elems) + "]"
	case Tuple:
		if len(v) == 1 {
			return "(" + Repr(v[0]) + ",)"
		}
		return "(" + joinRepr(v) + ")"
	case *Dict:
		var b strings.Builder
		b.WriteByte('{')
		i := 0
		v.Items(func(k, val Value) bool {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Repr(k))
			b.WriteString(": ")
			b.WriteString(Repr(val))
			i++
			return true
		})
		b.WriteByte('}')
		return b.String()
	case *Set:
		if v.Len() == 0 {
			return "set()"
		}
		return "{" + joinRepr(v.Items()) + "}"
	case *Range:
		if v.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", v.Start, v.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", v.Start, v.Stop, v.Step)
	case *Function:
		return fmt.Sprintf("<function %s>", v.Name)
	case *Builtin:
		if v.TypeName != "" {
			return fmt.Sprintf("<class '%s'>", v.TypeName)
		}
		return fmt.Sprintf("<built-in function %s>", v.Name)
	case *Object:
		if r, ok := v.Attrs["__repr__"].(string); ok {
			return r
		}
		return fmt.Sprintf("<%s '%s'>", v.Kind, v.Name)
	case DateTime:
		return reprDateTime(v)
	case TimeDelta:
		return reprTimeDelta(v)
	case *Name:
		return v.ID
	}
	return fmt.Sprintf("<%T>", v)
}

func joinRepr(vals []Value) string {
	parts := make([]string, len(vals))
	for i, e := range vals {
		parts[i] = Repr(e)
	}
	return strings.Join(parts, ", ")
}

// FormatFloat renders f the way repr(float) does: the shortest string that
// round-trips, always with a decimal point or exponent.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// quote produces a single-quoted string literal, switching to double quotes
// when the text contains single quotes but no double quotes.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r > 0x7f:
			if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func formatDateTime(d DateTime) string {
	s := d.T.Format("2006-01-02 15:04:05")
	if us := d.T.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

func reprDateTime(d DateTime) string {
	t := d.T
	parts := []string{
		strconv.Itoa(t.Year()), strconv.Itoa(int(t.Month())), strconv.Itoa(t.Day()),
		strconv.Itoa(t.Hour()), strconv.Itoa(t.Minute()),
	}
	if us := t.Nanosecond() / 1000; us != 0 {
		parts = append(parts, strconv.Itoa(t.Second()), strconv.Itoa(us))
	} else if t.Second() != 0 {
		parts = append(parts, strconv.Itoa(t.Second()))
	}
	return "datetime.datetime(" + strings.Join(parts, ", ") + ")"
}

// tdParts splits a duration into days, seconds and microseconds with the
// sign carried by days, as timedelta normalises them.
func tdParts(d TimeDelta) (days, secs, usecs int64) {
	us := int64(d.D / 1000)
	const usPerDay = 86400 * 1_000_000
	days = us / usPerDay
	rem := us % usPerDay
	if rem < 0 {
		rem += usPerDay
		days--
	}
	return days, rem / 1_000_000, rem % 1_000_000
}

func formatTimeDelta(d TimeDelta) string {
	days, secs, us := tdParts(d)
	s := fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	if us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	switch {
	case days == 1 || days == -1:
		s = fmt.Sprintf("%d day, %s", days, s)
	case days != 0:
		s = fmt.Sprintf("%d days, %s", days, s)
	}
	return s
}

func reprTimeDelta(d TimeDelta) string {
	days, secs, us := tdParts(d)
	var parts []string
	if days != 0 {
		parts = append(parts, fmt.Sprintf("days=%d", days))
	}
	if secs != 0 {
		parts = append(parts, fmt.Sprintf("seconds=%d", secs))
	}
	if us != 0 {
		parts = append(parts, fmt.Sprintf("microseconds=%d", us))
	}
	if len(parts) == 0 {
		return "datetime.timedelta(0)"
	}
	return "datetime.timedelta(" + strings.Join(parts, ", ") + ")"
}
