// Package schema declares model shapes for registration.
//
// A Model maps property names to property specs. A spec is one of three
// sealed variants: Key (the primary key, exactly one per model), Scalar
// (a typed attribute with an optional default producer), or Relation
// (a declared link to another model). The variant is inspected once at
// registration; the engine never re-dispatches per access.
package schema

import (
	"github.com/google/uuid"

	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// Models is a named set of model declarations registered together.
// Two independently registered sets never share state.
type Models map[string]Model

// Model maps property names to their declarations.
type Model map[string]PropertySpec

// PropertySpec is a sealed interface over the three property variants.
type PropertySpec interface {
	propertySpec() // Sealed - only Key, Scalar, and Relation implement it
}

// Scalar declares a typed attribute.
//
// Default, when non-nil, produces the value used by create when the caller
// supplies none. A scalar with no default and no supplied value stores Null.
type Scalar struct {
	Type    value.Type
	Default func() value.Value
}

func (Scalar) propertySpec() {}

// Key declares the primary-key property. Its values must be unique within
// the model's store for the store's lifetime.
type Key struct {
	Type    value.Type
	Default func() value.Value
}

func (Key) propertySpec() {}

// Relation declares a link to another model.
type Relation struct {
	relation.Descriptor
}

func (Relation) propertySpec() {}

// PrimaryKey marks a scalar declaration as the model's primary key.
func PrimaryKey(s Scalar) Key {
	return Key{Type: s.Type, Default: s.Default}
}

// String declares a string attribute with a fixed default.
func String(def string) Scalar {
	return Scalar{Type: value.TypeString, Default: func() value.Value { return value.String(def) }}
}

// StringFn declares a string attribute whose default is produced per entity.
func StringFn(fn func() string) Scalar {
	return Scalar{Type: value.TypeString, Default: func() value.Value { return value.String(fn()) }}
}

// Number declares a numeric attribute with a fixed default.
func Number(def float64) Scalar {
	return Scalar{Type: value.TypeNumber, Default: func() value.Value { return value.Number(def) }}
}

// NumberFn declares a numeric attribute whose default is produced per entity.
func NumberFn(fn func() float64) Scalar {
	return Scalar{Type: value.TypeNumber, Default: func() value.Value { return value.Number(fn()) }}
}

// Bool declares a boolean attribute with a fixed default.
func Bool(def bool) Scalar {
	return Scalar{Type: value.TypeBool, Default: func() value.Value { return value.Bool(def) }}
}

// OptionalString declares a string attribute with no default; unset values
// store Null.
func OptionalString() Scalar {
	return Scalar{Type: value.TypeString}
}

// OptionalNumber declares a numeric attribute with no default.
func OptionalNumber() Scalar {
	return Scalar{Type: value.TypeNumber}
}

// OptionalBool declares a boolean attribute with no default.
func OptionalBool() Scalar {
	return Scalar{Type: value.TypeBool}
}

// UUID declares a string attribute defaulting to a fresh UUIDv7.
//
// UUIDv7 embeds a timestamp in the most significant bits, so keys generated
// in sequence sort by creation time. Panics only if the system entropy
// source fails, which does not happen in practice.
func UUID() Scalar {
	return StringFn(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})
}

// OneOf declares a to-one relation property targeting the named model.
func OneOf(target string) Relation {
	return Relation{Descriptor: relation.OneOf(target)}
}

// ManyOf declares a to-many relation property targeting the named model.
func ManyOf(target string) Relation {
	return Relation{Descriptor: relation.ManyOf(target)}
}

// Nullable wraps a relation property so an unset reference resolves to
// nil or an empty collection instead of failing.
func Nullable(r Relation) Relation {
	return Relation{Descriptor: relation.Nullable(r.Descriptor)}
}
