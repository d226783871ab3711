package eval

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// fmtSpec is a parsed format specification:
//
//	[[fill]align][sign][#][0][width][,|_][.precision][type]
type fmtSpec struct {
	fill  rune
	align byte
	sign  byte
	alt   bool
	width int
	group byte
	prec  int
	typ   byte
}

func parseSpec(spec string) (fmtSpec, error) {
	sp := fmtSpec{fill: ' ', prec: -1}
	rs := []rune(spec)
	i := 0
	isAlign := func(r rune) bool { return r == '<' || r == '>' || r == '=' || r == '^' }
	switch {
	case len(rs) >= 2 && isAlign(rs[1]):
		sp.fill, sp.align = rs[0], byte(rs[1])
		i = 2
	case len(rs) >= 1 && isAlign(rs[0]):
		sp.align = byte(rs[0])
		i = 1
	}
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-' || rs[i] == ' ') {
		sp.sign = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '#' {
		sp.alt = true
		i++
	}
	if i < len(rs) && rs[i] == '0' {
		if sp.align == 0 {
			sp.fill, sp.align = '0', '='
		}
		i++
	}
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		sp.width = sp.width*10 + int(rs[i]-'0')
		i++
	}
	if i < len(rs) && (rs[i] == ',' || rs[i] == '_') {
		sp.group = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '.' {
		i++
		start := i
		sp.prec = 0
		for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
			sp.prec = sp.prec*10 + int(rs[i]-'0')
			i++
		}
		if i == start {
			return sp, errorf(ValueError, "Format specifier missing precision")
		}
	}
	if i < len(rs) {
		sp.typ = byte(rs[i])
		i++
	}
	if i != len(rs) {
		return sp, errorf(ValueError, "Invalid format specifier '%s'", spec)
	}
	return sp, nil
}

// FormatValue implements format(v, spec) and the :spec part of f-strings
// and str.format.
func FormatValue(v Value, spec string) (string, error) {
	if d, ok := v.(DateTime); ok {
		if spec == "" {
			return Str(d), nil
		}
		return strftime(d.T, spec), nil
	}
	if spec == "" {
		return Str(v), nil
	}
	sp, err := parseSpec(spec)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case bool:
		if sp.typ == 0 || sp.typ == 's' {
			return pad(Str(v), sp, '<'), nil
		}
		return formatInt(btoi(v), sp)
	case int64:
		return formatInt(v, sp)
	case float64:
		return formatFloat(v, sp)
	case string:
		if sp.typ != 0 && sp.typ != 's' {
			return "", errorf(ValueError, "Unknown format code '%c' for object of type 'str'", sp.typ)
		}
		if sp.prec >= 0 && utf8.RuneCountInString(v) > sp.prec {
			v = string([]rune(v)[:sp.prec])
		}
		return pad(v, sp, '<'), nil
	}
	if sp.typ != 0 && sp.typ != 's' {
		return "", errorf(TypeError, "unsupported format string passed to %s.__format__", TypeName(v))
	}
	return pad(Str(v), sp, '<'), nil
}

func btoi(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// pad aligns s within the spec's width.
func pad(s string, sp fmtSpec, defAlign byte) string {
	n := sp.width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	align := sp.align
	if align == 0 || align == '=' {
		align = defAlign
	}
	fill := strings.Repeat(string(sp.fill), n)
	switch align {
	case '<':
		return s + fill
	case '^':
		left := strings.Repeat(string(sp.fill), n/2)
		right := strings.Repeat(string(sp.fill), n-n/2)
		return left + s + right
	}
	return fill + s
}

// padNumber aligns a number, placing '=' padding between sign and digits.
func padNumber(sign, body string, sp fmtSpec) string {
	if sp.align == '=' {
		n := sp.width - utf8.RuneCountInString(sign) - utf8.RuneCountInString(body)
		if n > 0 {
			return sign + strings.Repeat(string(sp.fill), n) + body
		}
		return sign + body
	}
	return pad(sign+body, sp, '>')
}

func signOf(neg bool, sp fmtSpec) string {
	switch {
	case neg:
		return "-"
	case sp.sign == '+':
		return "+"
	case sp.sign == ' ':
		return " "
	}
	return ""
}

func group(digits string, sep byte, every int) string {
	if sep == 0 || len(digits) <= every {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % every
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += every {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+every])
	}
	return b.String()
}

func formatInt(i int64, sp fmtSpec) (string, error) {
	neg := i < 0
	u := uint64(i)
	if neg {
		u = uint64(-i)
	}
	var body, prefix string
	every := 3
	switch sp.typ {
	case 0, 'd', 'n':
		body = strconv.FormatUint(u, 10)
	case 'b':
		body, prefix, every = strconv.FormatUint(u, 2), "0b", 4
	case 'o':
		body, prefix, every = strconv.FormatUint(u, 8), "0o", 4
	case 'x':
		body, prefix, every = strconv.FormatUint(u, 16), "0x", 4
	case 'X':
		body, prefix, every = strings.ToUpper(strconv.FormatUint(u, 16)), "0X", 4
	case 'c':
		return pad(string(rune(i)), sp, '<'), nil
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return formatFloat(float64(i), sp)
	default:
		return "", errorf(ValueError, "Unknown format code '%c' for object of type 'int'", sp.typ)
	}
	body = group(body, sp.group, every)
	if sp.alt {
		body = prefix + body
	}
	return padNumber(signOf(neg, sp), body, sp), nil
}

func formatFloat(f float64, sp fmtSpec) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)
	prec := sp.prec
	var body string
	switch {
	case math.IsInf(a, 0):
		body = "inf"
	case math.IsNaN(a):
		body = "nan"
	}
	if body == "" {
		switch sp.typ {
		case 'f', 'F':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a, 'f', prec, 64)
		case '%':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a*100, 'f', prec, 64)
		case 'e', 'E':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a, 'e', prec, 64)
		case 'g', 'G':
			if prec < 0 {
				prec = 6
			} else if prec == 0 {
				prec = 1
			}
			body = strconv.FormatFloat(a, 'g', prec, 64)
		case 0:
			if prec < 0 {
				body = FormatFloat(a)
				break
			}
			if prec == 0 {
				prec = 1
			}
			body = strconv.FormatFloat(a, 'g', prec, 64)
			if !strings.ContainsAny(body, ".e") {
				body += ".0"
			}
		case 'n':
			body = strconv.FormatFloat(a, 'g', -1, 64)
		default:
			return "", errorf(ValueError, "Unknown format code '%c' for object of type 'float'", sp.typ)
		}
		if sp.group != 0 {
			intPart, frac, hasDot := strings.Cut(body, ".")
			if !strings.Contains(intPart, "e") {
				body = group(intPart, sp.group, 3)
				if hasDot {
					body += "." + frac
				}
			}
		}
		if sp.typ == '%' {
			body += "%"
		}
	}
	if sp.typ == 'E' || sp.typ == 'F' || sp.typ == 'G' {
		body = strings.ToUpper(body)
	}
	return padNumber(signOf(neg, sp), body, sp), nil
}

var (
	shortDays   = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	shortMonths = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// strftime renders t using C strftime directives.
func strftime(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); i++ {
		ch := layout[i]
		if ch != '%' || i+1 == len(layout) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch layout[i] {
		case 'Y':
			b.WriteString(strconv.Itoa(t.Year()))
		case 'y':
			b.WriteString(twoDigit(t.Year() % 100))
		case 'm':
			b.WriteString(twoDigit(int(t.Month())))
		case 'd':
			b.WriteString(twoDigit(t.Day()))
		case 'e':
			b.WriteString(pad(strconv.Itoa(t.Day()), fmtSpec{fill: ' ', width: 2}, '>'))
		case 'H':
			b.WriteString(twoDigit(t.Hour()))
		case 'I':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			b.WriteString(twoDigit(h))
		case 'M':
			b.WriteString(twoDigit(t.Minute()))
		case 'S':
			b.WriteString(twoDigit(t.Second()))
		case 'f':
			b.WriteString(strconv.Itoa(1000000 + t.Nanosecond()/1000)[1:])
		case 'p':
			if t.Hour() < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case 'a':
			b.WriteString(shortDays[t.Weekday()])
		case 'A':
			b.WriteString(t.Weekday().String())
		case 'b', 'h':
			b.WriteString(shortMonths[t.Month()-1])
		case 'B':
			b.WriteString(t.Month().String())
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'u':
			wd := int(t.Weekday())
			if wd == 0 {
				wd = 7
			}
			b.WriteString(strconv.Itoa(wd))
		case 'j':
			b.WriteString(strconv.Itoa(1000 + t.YearDay())[1:])
		case 'Z':
			name, _ := t.Zone()
			b.WriteString(name)
		case 'z':
			b.WriteString(t.Format("-0700"))
		case 'c':
			b.WriteString(t.Format("Mon Jan _2 15:04:05 2006"))
		case 'x':
			b.WriteString(t.Format("01/02/06"))
		case 'X':
			b.WriteString(t.Format("15:04:05"))
		case 'F':
			b.WriteString(t.Format("2006-01-02"))
		case 'T':
			b.WriteString(t.Format("15:04:05"))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(layout[i])
		}
	}
	return b.String()
}

func twoDigit(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// percentFormat implements `format % args`.
func percentFormat(format string, arg Value) (Value, error) {
	var (
		args  []Value
		named *Dict
	)
	switch a := arg.(type) {
	case Tuple:
		args = a
	case *Dict:
		named = a
		args = []Value{a}
	default:
		args = []Value{arg}
	}
	next := 0
	take := func() (Value, error) {
		if next >= len(args) {
			return nil, errorf(TypeError, "not enough arguments for format string")
		}
		v := args[next]
		next++
		return v, nil
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(format) {
			return nil, errorf(ValueError, "incomplete format")
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}

		var (
			val    Value
			hasVal bool
		)
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return nil, errorf(ValueError, "incomplete format key")
			}
			if named == nil {
				return nil, errorf(TypeError, "format requires a mapping")
			}
			key := format[i+1 : i+end]
			v, ok := named.GetStr(key)
			if !ok {
				return nil, errorf(KeyError, "%s", quote(key))
			}
			val, hasVal = v, true
			i += end + 1
		}

		sp := fmtSpec{fill: ' ', align: '>', prec: -1}
		for ; i < len(format); i++ {
			switch format[i] {
			case '-':
				sp.align, sp.fill = '<', ' '
				continue
			case '+', ' ':
				sp.sign = format[i]
				continue
			case '#':
				sp.alt = true
				continue
			case '0':
				if sp.align != '<' {
					sp.fill, sp.align = '0', '='
				}
				continue
			}
			break
		}
		if i < len(format) && format[i] == '*' {
			w, err := take()
			if err != nil {
				return nil, err
			}
			n, _ := toInt(w)
			sp.width = int(n)
			i++
		}
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			sp.width = sp.width*10 + int(format[i]-'0')
			i++
		}
		if i < len(format) && format[i] == '.' {
			i++
			sp.prec = 0
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				sp.prec = sp.prec*10 + int(format[i]-'0')
				i++
			}
		}
		if i >= len(format) {
			return nil, errorf(ValueError, "incomplete format")
		}
		conv := format[i]
		if !hasVal {
			v, err := take()
			if err != nil {
				return nil, err
			}
			val = v
		}

		var (
			s   string
			err error
		)
		switch conv {
		case 's', 'r', 'a':
			if conv == 's' {
				s = Str(val)
			} else {
				s = Repr(val)
			}
			if sp.prec >= 0 && utf8.RuneCountInString(s) > sp.prec {
				s = string([]rune(s)[:sp.prec])
			}
			if sp.align == '=' {
				sp.align, sp.fill = '>', ' '
			}
			s = pad(s, sp, '>')
		case 'd', 'i', 'u', 'x', 'X', 'o':
			n, ok := toInt(val)
			if !ok {
				f, isF := val.(float64)
				if !isF {
					return nil, errorf(TypeError, "%%%c format: a number is required, not %s", conv, TypeName(val))
				}
				n = int64(f)
			}
			sp.typ = conv
			if conv == 'i' || conv == 'u' {
				sp.typ = 'd'
			}
			sp.prec = -1
			s, err = formatInt(n, sp)
		case 'f', 'F', 'e', 'E', 'g', 'G':
			f, ok := toFloat(val)
			if !ok {
				return nil, errorf(TypeError, "must be real number, not %s", TypeName(val))
			}
			sp.typ = conv
			s, err = formatFloat(f, sp)
		case 'c':
			switch v := val.(type) {
			case string:
				s = v
			default:
				n, ok := toInt(v)
				if !ok {
					return nil, errorf(TypeError, "%%c requires int or char")
				}
				s = string(rune(n))
			}
			s = pad(s, sp, '>')
		default:
			return nil, errorf(ValueError, "unsupported format character '%c'", conv)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	if named == nil && next < len(args) {
		return nil, errorf(TypeError, "not all arguments converted during string formatting")
	}
	return b.String(), nil
}

// strFormat implements str.format.
func strFormat(c *Context, format string, args []Value, kwargs *Dict) (string, error) {
	auto := 0
	var render func(string, int) (string, error)
	render = func(format string, depth int) (string, error) {
		var b strings.Builder
		for i := 0; i < len(format); i++ {
			ch := format[i]
			switch {
			case ch == '{' && i+1 < len(format) && format[i+1] == '{':
				b.WriteByte('{')
				i++
				continue
			case ch == '}' && i+1 < len(format) && format[i+1] == '}':
				b.WriteByte('}')
				i++
				continue
			case ch == '}':
				return "", errorf(ValueError, "Single '}' encountered in format string")
			case ch != '{':
				b.WriteByte(ch)
				continue
			}

			level, end := 1, -1
			for j := i + 1; j < len(format); j++ {
				if format[j] == '{' {
					level++
				} else if format[j] == '}' {
					level--
					if level == 0 {
						end = j
						break
					}
				}
			}
			if end < 0 {
				return "", errorf(ValueError, "Single '{' encountered in format string")
			}
			field := format[i+1 : end]
			i = end

			spec := ""
			if k := strings.IndexByte(field, ':'); k >= 0 {
				field, spec = field[:k], field[k+1:]
			}
			conv := byte(0)
			if k := strings.IndexByte(field, '!'); k >= 0 {
				if k+2 != len(field) {
					return "", errorf(ValueError, "expected ':' after conversion specifier")
				}
				conv = field[k+1]
				field = field[:k]
			}
			if strings.Contains(spec, "{") {
				if depth > 0 {
					return "", errorf(ValueError, "Max string recursion exceeded")
				}
				var err error
				if spec, err = render(spec, depth+1); err != nil {
					return "", err
				}
			}

			v, err := c.formatField(field, &auto, args, kwargs)
			if err != nil {
				return "", err
			}
			switch conv {
			case 0:
			case 'r', 'a':
				v = Repr(v)
			case 's':
				v = Str(v)
			default:
				return "", errorf(ValueError, "Unknown conversion specifier %c", conv)
			}
			s, err := FormatValue(v, spec)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}
	return render(format, 0)
}

// formatField resolves a replacement field name such as "", "0", "name",
// "0.attr" or "name[key]".
func (c *Context) formatField(field string, auto *int, args []Value, kwargs *Dict) (Value, error) {
	end := strings.IndexAny(field, ".[")
	head, rest := field, ""
	if end >= 0 {
		head, rest = field[:end], field[end:]
	}

	var v Value
	switch n, err := strconv.Atoi(head); {
	case head == "":
		if *auto >= len(args) {
			return nil, errorf(IndexError, "Replacement index %d out of range for positional args tuple", *auto)
		}
		v = args[*auto]
		*auto++
	case err == nil:
		if n >= len(args) {
			return nil, errorf(IndexError, "Replacement index %d out of range for positional args tuple", n)
		}
		v = args[n]
	default:
		val, ok := kwargs.GetStr(head)
		if !ok {
			return nil, errorf(KeyError, "%s", quote(head))
		}
		v = val
	}

	for rest != "" {
		var err error
		switch rest[0] {
		case '.':
			name := rest[1:]
			if k := strings.IndexAny(name, ".["); k >= 0 {
				name, rest = name[:k], name[k:]
			} else {
				rest = ""
			}
			v, err = GetAttr(v, name)
		case '[':
			k := strings.IndexByte(rest, ']')
			if k < 0 {
				return nil, errorf(ValueError, "Missing ']' in format string")
			}
			var key Value = rest[1:k]
			if n, err := strconv.ParseInt(rest[1:k], 10, 64); err == nil {
				key = n
			}
			rest = rest[k+1:]
			v, err = getItem(v, key)
		default:
			return nil, errorf(ValueError, "Only '.' or '[' may follow ']' in format field specifier")
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}
