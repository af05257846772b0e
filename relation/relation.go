// Package relation declares typed links between models.
//
// A Descriptor is pure shape: it names the target model and the cardinality
// of the link, and never holds a reference to any living entity. Descriptors
// are attached to model schemas at registration time and interpreted by the
// engine when relations are written or resolved.
package relation

// Kind is the cardinality of a relation.
type Kind string

const (
	// KindOne links a property to a single target entity.
	KindOne Kind = "oneOf"

	// KindMany links a property to an ordered collection of target entities.
	KindMany Kind = "manyOf"
)

// Descriptor declares a relation from one model to another.
//
// Nullable affects resolution only: a nullable relation with no peer resolves
// to nil (or an empty collection) instead of failing.
type Descriptor struct {
	Kind     Kind
	Target   string
	Nullable bool
}

// OneOf declares a to-one relation targeting the named model.
func OneOf(target string) Descriptor {
	return Descriptor{Kind: KindOne, Target: target}
}

// ManyOf declares a to-many relation targeting the named model.
func ManyOf(target string) Descriptor {
	return Descriptor{Kind: KindMany, Target: target}
}

// Nullable returns a copy of d that tolerates an unset reference.
func Nullable(d Descriptor) Descriptor {
	d.Nullable = true
	return d
}
