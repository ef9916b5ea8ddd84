package compiler

import (
	"math"

	json "github.com/goccy/go-json"

	"github.com/chazu/blockjit/cast"
)

// ---------------------------------------------------------------------------
// Typed inputs
// ---------------------------------------------------------------------------

// TypedInput is a source fragment together with the kind of value it
// yields. The As methods return the fragment coerced to a kind using the
// same rules as the cast package.
type TypedInput interface {
	Kind() ValueKind
	AsNumber() string
	AsString() string
	AsBoolean() string
	AsUnknown() string
}

// ConstantInput is a literal. Its fragments are side-effect free and may
// be emitted any number of times.
type ConstantInput struct {
	Value interface{}
}

// ConstantOf returns a ConstantInput for v.
func ConstantOf(v interface{}) *ConstantInput {
	return &ConstantInput{Value: literalValue(v)}
}

func (c *ConstantInput) Kind() ValueKind   { return literalKind(c.Value) }
func (c *ConstantInput) AsNumber() string  { return jsNumber(cast.ToNumber(c.Value)) }
func (c *ConstantInput) AsString() string  { return jsString(cast.ToString(c.Value)) }
func (c *ConstantInput) AsBoolean() string { return jsBool(cast.ToBoolean(c.Value)) }

func (c *ConstantInput) AsUnknown() string {
	switch v := c.Value.(type) {
	case float64:
		return jsNumber(v)
	case bool:
		return jsBool(v)
	default:
		return jsString(cast.ToString(v))
	}
}

// Number returns the constant read as a number.
func (c *ConstantInput) Number() float64 { return cast.ToNumber(c.Value) }

// isNaN reports a float NaN literal, which cannot be compared
// with native operators.
func (c *ConstantInput) isNaN() bool {
	f, ok := c.Value.(float64)
	return ok && math.IsNaN(f)
}

// DynamicInput is an arbitrary expression. It must be evaluated at most
// once; reuse goes through Unit.Hoist.
type DynamicInput struct {
	Source string
	Type   ValueKind
	// MaybeNaN marks number expressions that can produce NaN, such as
	// division. Numeric reads replace NaN with 0.
	MaybeNaN bool

	u *Unit
}

// Dynamic returns a DynamicInput bound to u.
func (u *Unit) Dynamic(source string, kind ValueKind) *DynamicInput {
	return &DynamicInput{Source: source, Type: kind, u: u}
}

// DynamicNaN returns a number DynamicInput that may evaluate to NaN.
func (u *Unit) DynamicNaN(source string) *DynamicInput {
	return &DynamicInput{Source: source, Type: ValueNumber, MaybeNaN: true, u: u}
}

func (d *DynamicInput) Kind() ValueKind { return d.Type }

func (d *DynamicInput) AsNumber() string {
	switch d.Type {
	case ValueNumber:
		if d.MaybeNaN {
			return "(" + d.Source + " || 0)"
		}
		return d.Source
	case ValueBoolean:
		return "(+" + d.Source + ")"
	default:
		return d.u.UseHelper("castNumber") + "(" + d.Source + ")"
	}
}

func (d *DynamicInput) AsString() string {
	switch d.Type {
	case ValueString:
		return d.Source
	case ValueNumber, ValueBoolean:
		return `("" + ` + d.Source + ")"
	default:
		return d.u.UseHelper("castString") + "(" + d.Source + ")"
	}
}

func (d *DynamicInput) AsBoolean() string {
	if d.Type == ValueBoolean {
		return d.Source
	}
	return d.u.UseHelper("castBoolean") + "(" + d.Source + ")"
}

func (d *DynamicInput) AsUnknown() string { return d.Source }

// safeNumber reports whether in is a number that native comparison
// operators handle exactly like the cast rules.
func safeNumber(in TypedInput) bool {
	switch x := in.(type) {
	case *ConstantInput:
		return x.Kind() == ValueNumber && !x.isNaN()
	case *DynamicInput:
		return x.Type == ValueNumber && !x.MaybeNaN
	}
	return false
}

// ---------------------------------------------------------------------------
// Literal emission
// ---------------------------------------------------------------------------

func jsNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "(-Infinity)"
	case f == 0 && math.Signbit(f):
		return "(-0)"
	case f < 0:
		return "(" + cast.NumberToString(f) + ")"
	}
	return cast.NumberToString(f)
}

func jsString(s string) string {
	// JSON string syntax is valid JavaScript.
	b, _ := json.Marshal(s)
	return string(b)
}

func jsBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
