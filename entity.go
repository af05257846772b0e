package mirage

import (
	"fmt"

	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// Entity is a handle onto one stored record. It carries its owning model
// name and primary-key property, and resolves properties lazily: every Get
// re-reads the current store state, so mutations made elsewhere are visible
// immediately and nothing is ever served from a stale copy.
type Entity struct {
	db     *DB
	t      *table
	key    string
	keyVal value.Value
}

func (db *DB) entity(t *table, rec *record) *Entity {
	return &Entity{db: db, t: t, key: rec.key, keyVal: rec.attrs[t.keyProp]}
}

// ModelName returns the name of the model this entity belongs to.
func (e *Entity) ModelName() string {
	return e.t.model
}

// PrimaryKey returns the name of the model's primary-key property.
func (e *Entity) PrimaryKey() string {
	return e.t.keyProp
}

// Key returns the entity's primary-key value.
func (e *Entity) Key() value.Value {
	return e.keyVal
}

// Get resolves a property against the current store state.
//
// Scalar properties return their plain Go value (string, float64, bool, or
// nil for Null). A to-one relation returns *Entity, or an untyped nil when
// nullable and unset, so the result compares equal to nil without a type
// assertion. A to-many relation returns []*Entity in insertion order.
//
// Get fails with a broken-reference error if the entity itself has been
// deleted since the handle was obtained, with an unresolved-relation error
// for a non-nullable relation with no reference, and with a configuration
// error for an undeclared property.
func (e *Entity) Get(property string) (any, error) {
	rec, ok := e.t.get(e.key)
	if !ok {
		return nil, newBrokenReferenceError(e.t.model, "", e.key)
	}

	spec, declared := e.t.props[property]
	if !declared {
		return nil, newConfigurationError(e.t.model, property, "property is not declared")
	}

	if spec.scalar != nil {
		return value.ToAny(rec.attrs[property]), nil
	}

	entities, err := e.db.resolveRelation(e.t, rec, property, spec.rel)
	if err != nil {
		return nil, err
	}
	if spec.rel.Kind == relation.KindOne {
		if len(entities) == 0 {
			return nil, nil
		}
		return entities[0], nil
	}
	if entities == nil {
		entities = []*Entity{}
	}
	return entities, nil
}

// One resolves a to-one relation property. It returns nil for a nullable
// unset relation.
func (e *Entity) One(property string) (*Entity, error) {
	spec, declared := e.t.props[property]
	if !declared || spec.rel == nil || spec.rel.Kind != relation.KindOne {
		return nil, newConfigurationError(e.t.model, property, "property is not a oneOf relation")
	}
	v, err := e.Get(property)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*Entity), nil
}

// Many resolves a to-many relation property in insertion order.
func (e *Entity) Many(property string) ([]*Entity, error) {
	v, err := e.Get(property)
	if err != nil {
		return nil, err
	}
	targets, ok := v.([]*Entity)
	if !ok {
		return nil, newConfigurationError(e.t.model, property, "property is not a manyOf relation")
	}
	return targets, nil
}

// MustGet is Get for tests and seed scripts; it panics on error.
func (e *Entity) MustGet(property string) any {
	v, err := e.Get(property)
	if err != nil {
		panic(fmt.Sprintf("mirage: get %s.%s: %v", e.t.model, property, err))
	}
	return v
}
