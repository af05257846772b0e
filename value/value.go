package value

import (
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Type identifies the declared scalar type of a model property.
type Type string

const (
	TypeString Type = "string"
	TypeNumber Type = "number"
	TypeBool   Type = "bool"
)

// Value is a sealed interface representing a stored scalar value.
// Only String, Number, Bool, and Null implement it. Entities never hold
// richer types: relation properties are stored as references, not values.
type Value interface {
	scalarValue() // Sealed - only types in this package implement it
}

// String represents a text value. Comparisons normalize to NFC first so
// that visually identical strings produced by different sources compare equal.
type String string

func (String) scalarValue() {}

// Number represents a numeric value. All numbers are float64 internally,
// matching the loosely typed inputs test fixtures are written with.
type Number float64

func (Number) scalarValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) scalarValue() {}

// Null represents the absence of a value on a nullable property.
type Null struct{}

func (Null) scalarValue() {}

// TypeOf returns the declared type a value satisfies.
// Null satisfies no type; the second return is false.
func TypeOf(v Value) (Type, bool) {
	switch v.(type) {
	case String:
		return TypeString, true
	case Number:
		return TypeNumber, true
	case Bool:
		return TypeBool, true
	default:
		return "", false
	}
}

// FromAny coerces a raw Go scalar into a Value.
//
// Accepted inputs: string, bool, all integer widths, float32/float64, and
// nil (which becomes Null). Anything else is a configuration mistake by the
// caller and returns an error.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Number(v), nil
	case int8:
		return Number(v), nil
	case int16:
		return Number(v), nil
	case int32:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case uint:
		return Number(v), nil
	case uint8:
		return Number(v), nil
	case uint16:
		return Number(v), nil
	case uint32:
		return Number(v), nil
	case uint64:
		return Number(v), nil
	case float32:
		return Number(v), nil
	case float64:
		return Number(v), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", raw)
	}
}

// ToAny converts a Value back to its plain Go representation for callers
// that serialize entities (string, float64, bool, or nil).
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// Key returns the canonical string form of a value, used as the map key for
// primary keys inside a store. The form is prefixed with a type tag so that
// String("1") and Number(1) never collide.
func Key(v Value) string {
	switch val := v.(type) {
	case String:
		return "s:" + norm.NFC.String(string(val))
	case Number:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return "b:" + strconv.FormatBool(bool(val))
	default:
		return "null"
	}
}

// Equal reports whether two values are equal. Strings are NFC-normalized
// before comparison. Null equals only Null.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		if !ok {
			return false
		}
		return norm.NFC.String(string(av)) == norm.NFC.String(string(bv))
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return false
	}
}

// Normalize returns the NFC form of a string operand.
func Normalize(s string) string {
	return norm.NFC.String(s)
}
