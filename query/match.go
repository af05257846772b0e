package query

import (
	"fmt"
	"strings"

	"github.com/roach88/mirage/value"
)

// EntityView is the evaluator's window onto one entity. The engine supplies
// an implementation whose Relation method resolves references against the
// current store state, so relation predicates are as current as direct reads.
type EntityView interface {
	// Scalar returns the stored value of the named scalar property together
	// with the property's declared type. The declared type lets the evaluator
	// reject a mismatched operator family even when the stored value is Null.
	// It returns an error wrapping ErrUnknownProperty for undeclared
	// properties and ErrTypeMismatch when the property is a relation.
	Scalar(property string) (value.Value, value.Type, error)

	// Relation returns the resolved targets of the named relation property
	// in insertion order. An unset relation yields an empty slice rather
	// than an error, so predicates over unset relations are non-matches.
	// It returns an error wrapping ErrUnknownProperty for undeclared
	// properties and ErrTypeMismatch when the property is a scalar.
	Relation(property string) ([]EntityView, error)
}

// Match evaluates a predicate tree against one entity.
//
// An empty Where matches every entity. Errors are never swallowed: a broken
// reference during relation resolution or a condition/type mismatch aborts
// the evaluation instead of reporting a false non-match.
func Match(w Where, e EntityView) (bool, error) {
	for prop, cond := range w {
		ok, err := matchCondition(prop, cond, e)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(prop string, cond Condition, e EntityView) (bool, error) {
	switch c := cond.(type) {
	case Rel:
		views, err := e.Relation(prop)
		if err != nil {
			return false, err
		}
		for _, v := range views {
			ok, err := Match(Where(c), v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case StringWhere:
		v, typ, err := e.Scalar(prop)
		if err != nil {
			return false, err
		}
		if typ != value.TypeString {
			return false, fmt.Errorf("%w: string operators on %s property %q",
				ErrTypeMismatch, typ, prop)
		}
		return matchString(c, v), nil

	case NumberWhere:
		v, typ, err := e.Scalar(prop)
		if err != nil {
			return false, err
		}
		if typ != value.TypeNumber {
			return false, fmt.Errorf("%w: number operators on %s property %q",
				ErrTypeMismatch, typ, prop)
		}
		return matchNumber(c, v), nil

	case BoolWhere:
		v, typ, err := e.Scalar(prop)
		if err != nil {
			return false, err
		}
		if typ != value.TypeBool {
			return false, fmt.Errorf("%w: boolean operators on %s property %q",
				ErrTypeMismatch, typ, prop)
		}
		return matchBool(c, v), nil

	case nil:
		return false, fmt.Errorf("%w: nil condition for property %q", ErrTypeMismatch, prop)

	default:
		return false, fmt.Errorf("%w: unknown condition type %T for property %q", ErrTypeMismatch, cond, prop)
	}
}

// The per-type matchers run after the declared type has been checked, so the
// stored value is either Null or of the declared type. Null never matches.

func matchString(c StringWhere, v value.Value) bool {
	s, ok := v.(value.String)
	if !ok {
		return false
	}
	got := value.Normalize(string(s))

	if c.Equals != nil && got != value.Normalize(*c.Equals) {
		return false
	}
	if c.NotEquals != nil && got == value.Normalize(*c.NotEquals) {
		return false
	}
	if c.Contains != nil && !strings.Contains(got, value.Normalize(*c.Contains)) {
		return false
	}
	if c.NotContains != nil && strings.Contains(got, value.Normalize(*c.NotContains)) {
		return false
	}
	if c.In != nil && !containsString(c.In, got) {
		return false
	}
	if c.NotIn != nil && containsString(c.NotIn, got) {
		return false
	}
	return true
}

func matchNumber(c NumberWhere, v value.Value) bool {
	n, ok := v.(value.Number)
	if !ok {
		return false
	}
	got := float64(n)

	if c.Equals != nil && got != *c.Equals {
		return false
	}
	if c.NotEquals != nil && got == *c.NotEquals {
		return false
	}
	if c.Gt != nil && !(got > *c.Gt) {
		return false
	}
	if c.Gte != nil && !(got >= *c.Gte) {
		return false
	}
	if c.Lt != nil && !(got < *c.Lt) {
		return false
	}
	if c.Lte != nil && !(got <= *c.Lte) {
		return false
	}
	if c.Between != nil && !(got >= c.Between[0] && got <= c.Between[1]) {
		return false
	}
	if c.NotBetween != nil && got >= c.NotBetween[0] && got <= c.NotBetween[1] {
		return false
	}
	if c.In != nil && !containsNumber(c.In, got) {
		return false
	}
	if c.NotIn != nil && containsNumber(c.NotIn, got) {
		return false
	}
	return true
}

func matchBool(c BoolWhere, v value.Value) bool {
	b, ok := v.(value.Bool)
	if !ok {
		return false
	}
	got := bool(b)

	if c.Equals != nil && got != *c.Equals {
		return false
	}
	if c.NotEquals != nil && got == *c.NotEquals {
		return false
	}
	return true
}

func containsString(set []string, s string) bool {
	for _, candidate := range set {
		if value.Normalize(candidate) == s {
			return true
		}
	}
	return false
}

func containsNumber(set []float64, n float64) bool {
	for _, candidate := range set {
		if candidate == n {
			return true
		}
	}
	return false
}
