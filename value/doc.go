// Package value defines the scalar value types a model property can hold
// and the comparison predicates the query language is built on.
//
// Values are constrained to strings, numbers, and booleans, plus an explicit
// Null for nullable properties. The sealed Value interface keeps the set
// closed so matchers and serializers can type-switch exhaustively.
package value
