package query

import "errors"

// Where maps property names to conditions. Every entry must hold for an
// entity to match (implicit AND).
type Where map[string]Condition

// Condition is a sealed interface over the predicate variants.
//
// Condition types:
//   - StringWhere: operators over string properties
//   - NumberWhere: operators over numeric properties
//   - BoolWhere:   operators over boolean properties
//   - Rel:         nested Where applied to a resolved relation
type Condition interface {
	condition() // Marker method - seals the interface to this package
}

// StringWhere matches a string property. Every set field must hold.
// Operands and stored values are NFC-normalized before comparison.
type StringWhere struct {
	Equals      *string
	NotEquals   *string
	Contains    *string
	NotContains *string
	In          []string
	NotIn       []string
}

func (StringWhere) condition() {}

// NumberWhere matches a numeric property. Every set field must hold.
// Between and NotBetween are inclusive on both bounds.
type NumberWhere struct {
	Equals     *float64
	NotEquals  *float64
	Gt         *float64
	Gte        *float64
	Lt         *float64
	Lte        *float64
	Between    *[2]float64
	NotBetween *[2]float64
	In         []float64
	NotIn      []float64
}

func (NumberWhere) condition() {}

// BoolWhere matches a boolean property.
type BoolWhere struct {
	Equals    *bool
	NotEquals *bool
}

func (BoolWhere) condition() {}

// Rel is a nested predicate applied to the resolved value of a relation
// property. For a to-one relation the clause is evaluated against the single
// resolved entity and is false when the relation is unset. For a to-many
// relation the clause holds when any resolved entity satisfies it.
type Rel Where

func (Rel) condition() {}

// Sentinel errors surfaced by Match. Callers classify them with errors.Is
// and map them onto their own error taxonomy.
var (
	// ErrUnknownProperty reports a condition on a property the model does
	// not declare.
	ErrUnknownProperty = errors.New("query: unknown property")

	// ErrTypeMismatch reports an operator set applied to a property of a
	// different declared type, or a scalar condition on a relation property.
	ErrTypeMismatch = errors.New("query: condition type does not match property type")
)

// Ptr returns a pointer to v. Convenience for building condition literals.
func Ptr[T any](v T) *T {
	return &v
}
