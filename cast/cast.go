// Package cast implements the value coercion rules of the interpreted block
// runtime. Values are float64, string or bool.
//
// The compiler folds constants with these functions and the JavaScript
// helpers it emits mirror them, so compiled and interpreted execution agree.
package cast

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"unicode/utf16"
)

// List index sentinels returned by ToListIndex.
const (
	ListInvalid = 0
	ListAll     = -1
)

// ListItemLimit is the maximum number of items a list may hold.
const ListItemLimit = 200000

// ToNumber converts a value to a number. Strings are read by their longest
// numeric prefix, so "3.14abc" is 3.14. Anything that does not start with a
// number, including the empty string, is 0. NaN becomes 0.
func ToNumber(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0
		}
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
	case string:
		n := parseFloatPrefix(x)
		if math.IsNaN(n) {
			return 0
		}
		return n
	default:
		return 0
	}
}

// ToString converts a value to its display string.
func ToString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return NumberToString(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// ToBoolean converts a value to a boolean. The strings "", "0" and "false"
// (any case) are false, as are 0 and NaN.
func ToBoolean(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return !(x == "" || x == "0" || strings.ToLower(x) == "false")
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return false
	}
}

// IsWhiteSpace reports whether v is nil or a string of only whitespace.
func IsWhiteSpace(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return trimSpace(x) == ""
	default:
		return false
	}
}

// Compare orders two values: -1, 0 or 1. When both sides read fully as
// numbers they compare numerically, otherwise as case-insensitive strings.
// "10" is greater than "9".
func Compare(v1, v2 interface{}) int {
	n1 := strictNumber(v1)
	n2 := strictNumber(v2)
	if n1 == 0 && IsWhiteSpace(v1) {
		n1 = math.NaN()
	} else if n2 == 0 && IsWhiteSpace(v2) {
		n2 = math.NaN()
	}

	if math.IsNaN(n1) || math.IsNaN(n2) {
		return compareUnits(strings.ToLower(ToString(v1)), strings.ToLower(ToString(v2)))
	}

	if (math.IsInf(n1, 1) && math.IsInf(n2, 1)) || (math.IsInf(n1, -1) && math.IsInf(n2, -1)) {
		return 0
	}
	d := n1 - n2
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

// Equals reports whether Compare(a, b) is 0.
func Equals(a, b interface{}) bool { return Compare(a, b) == 0 }

// IsInt reports whether a value should be treated as an integer when picking
// a random number. Strings count as integers unless they contain a dot.
func IsInt(v interface{}) bool {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return true
		}
		if math.IsInf(x, 0) || math.Abs(x) >= 1e21 {
			return false
		}
		return x == math.Trunc(x)
	case int, int64, bool:
		return true
	case string:
		return !strings.Contains(x, ".")
	default:
		return false
	}
}

// ToListIndex resolves a list index argument against a list of the given
// length. It accepts numbers and the words "last", "random", "any" and,
// when acceptAll is set, "all". Out-of-range indexes are ListInvalid.
func ToListIndex(index interface{}, length int, acceptAll bool) int {
	return ResolveListIndex(index, length, acceptAll, rand.Float64)
}

// ResolveListIndex is ToListIndex with the random source for "random" and
// "any" supplied by the caller. rnd returns a number in [0, 1).
func ResolveListIndex(index interface{}, length int, acceptAll bool, rnd func() float64) int {
	if s, ok := index.(string); ok {
		switch s {
		case "all":
			if acceptAll {
				return ListAll
			}
			return ListInvalid
		case "last":
			if length > 0 {
				return length
			}
			return ListInvalid
		case "random", "any":
			if length > 0 {
				return 1 + int(math.Floor(rnd()*float64(length)))
			}
			return ListInvalid
		}
	}
	n := math.Floor(ToNumber(index))
	if n < 1 || n > float64(length) {
		return ListInvalid
	}
	return int(n)
}

// ---------------------------------------------------------------------------
// Arithmetic shared by folding and the interpreter
// ---------------------------------------------------------------------------

// Round rounds half up, toward positive infinity.
func Round(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return n
	}
	r := math.Floor(n)
	if n-r >= 0.5 {
		r++
	}
	if r == 0 && n < 0 {
		return math.Copysign(0, -1)
	}
	return r
}

// compareUnits orders strings by UTF-16 code unit, so characters outside
// the basic plane sort by their surrogates.
func compareUnits(s1, s2 string) int {
	u1 := utf16.Encode([]rune(s1))
	u2 := utf16.Encode([]rune(s2))
	for i := 0; i < len(u1) && i < len(u2); i++ {
		switch {
		case u1[i] < u2[i]:
			return -1
		case u1[i] > u2[i]:
			return 1
		}
	}
	switch {
	case len(u1) < len(u2):
		return -1
	case len(u1) > len(u2):
		return 1
	}
	return 0
}

// Mod is the floored modulo: the result takes the sign of the divisor.
func Mod(n, m float64) float64 {
	r := math.Mod(n, m)
	if r/m < 0 {
		r += m
	}
	return r
}

// Mathop applies a named math operation. Unknown operations yield 0.
func Mathop(op string, n float64) float64 {
	switch op {
	case "abs":
		return math.Abs(n)
	case "floor":
		return math.Floor(n)
	case "ceiling":
		return math.Ceil(n)
	case "sqrt":
		return math.Sqrt(n)
	case "sin":
		return toFixed10(math.Sin(math.Pi * n / 180))
	case "cos":
		return toFixed10(math.Cos(math.Pi * n / 180))
	case "tan":
		return Tan(n)
	case "asin":
		return math.Asin(n) * 180 / math.Pi
	case "acos":
		return math.Acos(n) * 180 / math.Pi
	case "atan":
		return math.Atan(n) * 180 / math.Pi
	case "ln":
		return math.Log(n)
	case "log":
		return math.Log(n) / math.Ln10
	case "e ^":
		return math.Exp(n)
	case "10 ^":
		return math.Pow(10, n)
	default:
		return 0
	}
}

// Tan is tangent in degrees, with exact infinities at the poles.
func Tan(angle float64) float64 {
	angle = math.Mod(angle, 360)
	switch angle {
	case -270, 90:
		return math.Inf(1)
	case -90, 270:
		return math.Inf(-1)
	}
	return toFixed10(math.Tan(math.Pi * angle / 180))
}

func toFixed10(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 10, 64), 64)
	return f
}

// LetterOf returns the 1-based letter of s, counted in UTF-16 code units,
// or "" when out of range.
func LetterOf(s string, index float64) string {
	units := utf16.Encode([]rune(s))
	i := index - 1
	if i < 0 || i >= float64(len(units)) {
		return ""
	}
	k := int(math.Trunc(i))
	return string(utf16.Decode(units[k : k+1]))
}

// Length returns the length of s in UTF-16 code units.
func Length(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// Contains is a case-insensitive substring test.
func Contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Random picks a number between from and to using r in [0, 1). Both bounds
// are inclusive for integers.
func Random(from, to interface{}, r float64) float64 {
	nFrom, nTo := ToNumber(from), ToNumber(to)
	low, high := nFrom, nTo
	if nFrom > nTo {
		low, high = nTo, nFrom
	}
	if low == high {
		return low
	}
	if IsInt(from) && IsInt(to) {
		return low + math.Floor(r*((high+1)-low))
	}
	// The conversion stops the compiler from fusing the multiply-add,
	// which would round differently from JavaScript.
	return float64(r*(high-low)) + low
}

// ListContents renders a list the way the list reporter does: items joined
// with no separator if every item is a single letter, with spaces otherwise.
func ListContents(items []interface{}) string {
	single := true
	for _, item := range items {
		s, ok := item.(string)
		if !ok || Length(s) != 1 {
			single = false
			break
		}
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = ToString(item)
	}
	if single {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, " ")
}

// ListContains reports whether any item compares equal to v.
func ListContains(items []interface{}, v interface{}) bool {
	for _, item := range items {
		if Compare(item, v) == 0 {
			return true
		}
	}
	return false
}
