package cond

import (
	"fmt"
	"strconv"
)

type kind int

const (
	kindUnset kind = iota
	kindBool
	kindNumber
	kindString
)

// value is a resolved operand. Unset is a first-class state: a key missing
// from the snapshot resolves to it, and it is never conflated with zero,
// false or the empty string.
type value struct {
	kind kind
	num  float64
	str  string
	b    bool
}

var unsetValue = value{kind: kindUnset}

func boolValue(b bool) value      { return value{kind: kindBool, b: b} }
func numberValue(n float64) value { return value{kind: kindNumber, num: n} }
func stringValue(s string) value  { return value{kind: kindString, str: s} }

// fromState converts a raw snapshot value into an operand value. Integers
// show up as float64 after a JSON round trip, but values set in-process may
// still be typed ints.
func fromState(v any) value {
	switch t := v.(type) {
	case nil:
		return unsetValue
	case bool:
		return boolValue(t)
	case float64:
		return numberValue(t)
	case float32:
		return numberValue(float64(t))
	case int:
		return numberValue(float64(t))
	case int32:
		return numberValue(float64(t))
	case int64:
		return numberValue(float64(t))
	case string:
		return stringValue(t)
	default:
		return stringValue(fmt.Sprint(t))
	}
}

// truthy reports the boolean coercion of a value: unset is false, numbers
// are true when non-zero, strings when non-empty.
func (v value) truthy() bool {
	switch v.kind {
	case kindUnset:
		return false
	case kindBool:
		return v.b
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str != ""
	}
	return false
}

// stringForm renders a value for mixed-type comparison.
func (v value) stringForm() string {
	switch v.kind {
	case kindUnset:
		return ""
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// equals implements == over operands. Two unset operands are equal; unset
// never equals a defined value. Same-kind comparisons are native, mixed
// kinds compare string forms.
func (v value) equals(o value) bool {
	if v.kind == kindUnset || o.kind == kindUnset {
		return v.kind == o.kind
	}
	if v.kind == o.kind {
		switch v.kind {
		case kindBool:
			return v.b == o.b
		case kindNumber:
			return v.num == o.num
		case kindString:
			return v.str == o.str
		}
	}
	return v.stringForm() == o.stringForm()
}

// ordering implements the relational operators. Any comparison involving an
// unset operand is false. Number vs number compares numerically; everything
// else compares string forms lexicographically.
func ordering(op tokenType, a, b value) bool {
	if a.kind == kindUnset || b.kind == kindUnset {
		return false
	}
	if a.kind == kindNumber && b.kind == kindNumber {
		switch op {
		case tokenGT:
			return a.num > b.num
		case tokenGTE:
			return a.num >= b.num
		case tokenLT:
			return a.num < b.num
		case tokenLTE:
			return a.num <= b.num
		}
		return false
	}
	as, bs := a.stringForm(), b.stringForm()
	switch op {
	case tokenGT:
		return as > bs
	case tokenGTE:
		return as >= bs
	case tokenLT:
		return as < bs
	case tokenLTE:
		return as <= bs
	}
	return false
}
