package cast

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"empty string", "", 0},
		{"numeric prefix", "3.14abc", 3.14},
		{"true", true, 1},
		{"false", false, 0},
		{"plain integer", "42", 42},
		{"leading whitespace", "  12", 12},
		{"non-numeric", "abc", 0},
		{"negative", "-7.5", -7.5},
		{"leading dot", ".5", 0.5},
		{"trailing dot", "5.", 5},
		{"exponent", "1e3", 1000},
		{"dangling exponent", "2e", 2},
		{"infinity", "Infinity", math.Inf(1)},
		{"negative infinity", "-Infinity", math.Inf(-1)},
		{"hex is not a prefix number", "0x10", 0},
		{"NaN float", math.NaN(), 0},
		{"float passthrough", 2.5, 2.5},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNumber(tt.in)
			if got != tt.want {
				t.Errorf("ToNumber(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNumberToString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{7, "7"},
		{-3.5, "-3.5"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e21, "1e+21"},
		{123456789012345680000, "123456789012345680000"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := NumberToString(tt.in); got != tt.want {
			t.Errorf("NumberToString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToBoolean(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
	}{
		{"", false},
		{"0", false},
		{"false", false},
		{"FALSE", false},
		{"no", true},
		{"0.0", true},
		{0.0, false},
		{math.NaN(), false},
		{-1.0, true},
		{true, true},
	}
	for _, tt := range tests {
		if got := ToBoolean(tt.in); got != tt.want {
			t.Errorf("ToBoolean(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"numeric strings compare as numbers", "10", "9", 1},
		{"case-insensitive strings", "abc", "ABC", 0},
		{"lexical fallback", "apple", "banana", -1},
		{"number vs numeric string", 5.0, "5", 0},
		{"whitespace is not zero", " ", 0.0, -1},
		{"empty string vs zero", "", 0.0, -1},
		{"booleans are numbers", true, 1.0, 0},
		{"infinities", math.Inf(1), "Infinity", 0},
		{"prefix numbers do not count", "3.14abc", 3.14, 1},
		{"hex strings are numbers", "0x10", 16.0, 0},
		{"astral sorts by surrogate", "\uFF61", "\U0001F600", 1},
		{"astral vs private use", "\U00010000", "\uE000", -1},
		{"shorter prefix first", "ab", "abc", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%#v, %#v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := map[float64]float64{
		2.5:                 3,
		-2.5:                -2,
		0.49999999999999994: 0,
		-0.4:                0,
		7:                   7,
	}
	for in, want := range tests {
		if got := Round(in); got != want {
			t.Errorf("Round(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestRoundKeepsNegativeZero(t *testing.T) {
	for _, in := range []float64{-0.2, -0.4, -0.5, math.Copysign(0, -1)} {
		if got := Round(in); got != 0 || !math.Signbit(got) {
			t.Errorf("Round(%v) = %v, want -0", in, got)
		}
	}
	for _, in := range []float64{0, 0.3, 0.49} {
		if got := Round(in); math.Signbit(got) {
			t.Errorf("Round(%v) = -0, want 0", in)
		}
	}
	if got := 1 / Round(-0.2); !math.IsInf(got, -1) {
		t.Errorf("1 / Round(-0.2) = %v, want -Inf", got)
	}
}

func TestModTakesDivisorSign(t *testing.T) {
	if got := Mod(-1, 3); got != 2 {
		t.Errorf("Mod(-1, 3) = %v, want 2", got)
	}
	if got := Mod(5, -3); got != -1 {
		t.Errorf("Mod(5, -3) = %v, want -1", got)
	}
	if got := Mod(1, 0); !math.IsNaN(got) {
		t.Errorf("Mod(1, 0) = %v, want NaN", got)
	}
}

func TestMathop(t *testing.T) {
	if got := Mathop("sin", 30); got != 0.5 {
		t.Errorf("sin 30 = %v, want 0.5", got)
	}
	if got := Mathop("cos", 90); got != 0 {
		t.Errorf("cos 90 = %v, want 0", got)
	}
	if got := Mathop("tan", 90); !math.IsInf(got, 1) {
		t.Errorf("tan 90 = %v, want +Inf", got)
	}
	if got := Mathop("tan", -90); !math.IsInf(got, -1) {
		t.Errorf("tan -90 = %v, want -Inf", got)
	}
	if got := Mathop("log", 1000); math.Abs(got-3) > 1e-12 {
		t.Errorf("log 1000 = %v, want 3", got)
	}
	if got := Mathop("bogus", 1); got != 0 {
		t.Errorf("unknown op = %v, want 0", got)
	}
}

func TestIsInt(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
	}{
		{1.0, true},
		{1.5, false},
		{"1", true},
		{"1.0", false},
		{true, true},
		{math.NaN(), true},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := IsInt(tt.in); got != tt.want {
			t.Errorf("IsInt(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToListIndex(t *testing.T) {
	if got := ToListIndex("last", 3, false); got != 3 {
		t.Errorf("last = %d, want 3", got)
	}
	if got := ToListIndex("all", 3, true); got != ListAll {
		t.Errorf("all = %d, want ListAll", got)
	}
	if got := ToListIndex("all", 3, false); got != ListInvalid {
		t.Errorf("all without acceptAll = %d, want ListInvalid", got)
	}
	if got := ToListIndex(2.7, 3, false); got != 2 {
		t.Errorf("2.7 = %d, want 2", got)
	}
	if got := ToListIndex("4", 3, false); got != ListInvalid {
		t.Errorf("out of range = %d, want ListInvalid", got)
	}
	if got := ToListIndex("random", 0, false); got != ListInvalid {
		t.Errorf("random on empty = %d, want ListInvalid", got)
	}
}

func TestLetterOfCountsCodeUnits(t *testing.T) {
	if got := LetterOf("hello", 2); got != "e" {
		t.Errorf("LetterOf(hello, 2) = %q", got)
	}
	if got := LetterOf("hello", 0); got != "" {
		t.Errorf("LetterOf(hello, 0) = %q, want empty", got)
	}
	if got := LetterOf("hello", 1.9); got != "h" {
		t.Errorf("LetterOf(hello, 1.9) = %q, want h", got)
	}
	if got := Length("héllo"); got != 5 {
		t.Errorf("Length = %d, want 5", got)
	}
}

func TestListContents(t *testing.T) {
	if got := ListContents([]interface{}{"a", "b", "c"}); got != "abc" {
		t.Errorf("single letters = %q, want abc", got)
	}
	if got := ListContents([]interface{}{"a", 1.0, "c"}); got != "a 1 c" {
		t.Errorf("mixed = %q, want %q", got, "a 1 c")
	}
	if got := ListContents(nil); got != "" {
		t.Errorf("empty = %q", got)
	}
}

func TestNumberStringRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("ToNumber(NumberToString(f)) == f", prop.ForAll(
		func(f float64) bool {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return true
			}
			return ToNumber(NumberToString(f)) == f
		},
		gen.Float64(),
	))

	properties.Property("Compare is antisymmetric on numbers", prop.ForAll(
		func(a, b float64) bool {
			return Compare(a, b) == -Compare(b, a)
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
