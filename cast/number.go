package cast

import (
	"math"
	"strconv"
	"strings"
)

// isSpace matches the whitespace and line terminator set the runtime trims.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x00A0, 0x1680, 0x2028, 0x2029,
		0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// scanDecimal returns the end of the longest decimal literal starting at
// s[i:], or i if there is none. The grammar is
// digits [ "." [digits] ] [exponent] | "." digits [exponent].
func scanDecimal(s string, i int) int {
	start := i
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return start
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseDecimal parses text already validated by scanDecimal. Overflow
// saturates to infinity.
func parseDecimal(text string) float64 {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// parseFloatPrefix reads the longest numeric prefix after leading
// whitespace, returning NaN if there is none.
func parseFloatPrefix(s string) float64 {
	s = strings.TrimLeftFunc(s, isSpace)
	sign := 1.0
	body := s
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	if strings.HasPrefix(body, "Infinity") {
		return math.Inf(int(sign))
	}
	end := scanDecimal(body, 0)
	if end == 0 {
		return math.NaN()
	}
	return sign * parseDecimal(body[:end])
}

// strictNumber converts a value the way numeric comparison does: the whole
// string must be a number, the empty string is 0, and anything else is NaN.
func strictNumber(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case nil:
		return 0
	case string:
		return parseStrict(x)
	default:
		return math.NaN()
	}
}

func parseStrict(s string) float64 {
	s = trimSpace(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseRadix(s[2:], base)
		}
	}

	sign := 1.0
	body := s
	if body[0] == '+' || body[0] == '-' {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	if body == "Infinity" {
		return math.Inf(int(sign))
	}
	end := scanDecimal(body, 0)
	if end == 0 || end != len(body) {
		return math.NaN()
	}
	return sign * parseDecimal(body)
}

func parseRadix(digits string, base int) float64 {
	if digits == "" {
		return math.NaN()
	}
	n := 0.0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'f':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int(c-'A') + 10
		default:
			return math.NaN()
		}
		if d >= base {
			return math.NaN()
		}
		n = n*float64(base) + float64(d)
	}
	return n
}

// NumberToString formats a number the way the runtime displays it: shortest
// round-trip digits, plain notation for exponents in [-7, 21), exponent
// notation ("1e+21", "1.5e-7") outside.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	neg := f < 0
	if neg {
		f = -f
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expText, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expText)
	k := len(digits)
	n := exp + 1

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	switch {
	case k <= n && n <= 21:
		sb.WriteString(digits)
		sb.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		sb.WriteString(digits[:n])
		sb.WriteByte('.')
		sb.WriteString(digits[n:])
	case -6 < n && n <= 0:
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", -n))
		sb.WriteString(digits)
	default:
		sb.WriteByte(digits[0])
		if k > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		sb.WriteByte('e')
		if n-1 >= 0 {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
		x := n - 1
		if x < 0 {
			x = -x
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}

// IsNumeric reports whether s reads fully as a finite or infinite number.
func IsNumeric(s string) bool {
	if trimSpace(s) == "" {
		return false
	}
	return !math.IsNaN(parseStrict(s))
}
