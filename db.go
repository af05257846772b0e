package mirage

import (
	"sort"
	"strings"

	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/schema"
)

// DB is one registered model set: a table per model, the precomputed
// inverse-relation index, and the injected observer.
//
// A DB is single-threaded by contract. Operations run to completion before
// the next is observable; callers invoking from multiple goroutines must
// serialize externally. Two independently constructed DBs share no state.
type DB struct {
	tables  map[string]*table
	inverse map[slotRef]slotRef
	obs     Observer
}

// slotRef names one relation slot in the schema: a (model, property) pair.
type slotRef struct {
	model    string
	property string
}

// Option configures a DB at construction.
type Option func(*DB)

// WithObserver injects callbacks invoked on resolve and apply events.
// The default observer is a no-op.
func WithObserver(obs Observer) Option {
	return func(db *DB) {
		db.obs = obs
	}
}

// New compiles a model set into a live, empty DB.
//
// Registration fails fast with a configuration error on a malformed schema:
// a model without exactly one primary key, a relation targeting an
// undeclared model, or a reserved property name. The inverse-relation index
// is built here, once, so writes never re-scan schemas.
func New(models schema.Models, opts ...Option) (*DB, error) {
	db := &DB{
		tables:  make(map[string]*table, len(models)),
		inverse: make(map[slotRef]slotRef),
	}
	for _, opt := range opts {
		opt(db)
	}

	for name, model := range models {
		t, err := compileModel(name, model)
		if err != nil {
			return nil, err
		}
		db.tables[name] = t
	}

	// Relation targets can only be checked once every table exists.
	for name, t := range db.tables {
		for prop, spec := range t.props {
			if spec.rel == nil {
				continue
			}
			if _, ok := db.tables[spec.rel.Target]; !ok {
				return nil, newConfigurationError(name, prop,
					"relation targets undeclared model %q", spec.rel.Target)
			}
		}
	}

	db.buildInverseIndex()
	return db, nil
}

// Model returns the handle for a registered model, or a configuration error
// if the name is unknown.
func (db *DB) Model(name string) (*ModelHandle, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, newConfigurationError(name, "", "model is not registered")
	}
	return &ModelHandle{db: db, t: t}, nil
}

// Models returns the registered model names in sorted order.
func (db *DB) Models() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compileModel(name string, model schema.Model) (*table, error) {
	if len(model) == 0 {
		return nil, newConfigurationError(name, "", "model declares no properties")
	}

	props := make(map[string]compiledProp, len(model))
	keyProp := ""

	for prop, spec := range model {
		if strings.HasPrefix(prop, "__") {
			return nil, newConfigurationError(name, prop,
				"property names starting with __ are reserved for entity metadata")
		}

		switch s := spec.(type) {
		case schema.Key:
			if keyProp != "" {
				return nil, newConfigurationError(name, prop,
					"model declares a second primary key (already %q)", keyProp)
			}
			keyProp = prop
			props[prop] = compiledProp{scalar: &scalarProp{typ: s.Type, def: s.Default, key: true}}

		case schema.Scalar:
			props[prop] = compiledProp{scalar: &scalarProp{typ: s.Type, def: s.Default}}

		case schema.Relation:
			desc := s.Descriptor
			props[prop] = compiledProp{rel: &desc}

		default:
			return nil, newConfigurationError(name, prop, "unknown property spec %T", spec)
		}
	}

	if keyProp == "" {
		return nil, newConfigurationError(name, "", "model declares no primary key")
	}
	return newTable(name, keyProp, props), nil
}

// buildInverseIndex pairs relation slots with their declared inverses.
//
// Two slots are inverses when each targets the other's model. Pairing is
// greedy over slots in sorted order so registration is deterministic when a
// model declares several back-references to the same peer. A slot on a
// self-referencing model may pair with itself (a symmetric to-one relation
// such as user.partner).
func (db *DB) buildInverseIndex() {
	slots := make([]slotRef, 0)
	for name, t := range db.tables {
		for prop, spec := range t.props {
			if spec.rel != nil {
				slots = append(slots, slotRef{model: name, property: prop})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].model != slots[j].model {
			return slots[i].model < slots[j].model
		}
		return slots[i].property < slots[j].property
	})

	paired := make(map[slotRef]bool, len(slots))
	for _, slot := range slots {
		if paired[slot] {
			continue
		}
		desc := db.tables[slot.model].props[slot.property].rel

		for _, candidate := range slots {
			if paired[candidate] && candidate != slot {
				continue
			}
			if candidate.model != desc.Target {
				continue
			}
			back := db.tables[candidate.model].props[candidate.property].rel
			if back.Target != slot.model {
				continue
			}
			// A self-referencing slot pairs with itself only for to-one
			// relations; a manyOf cannot mirror into its own collection.
			if candidate == slot && desc.Kind != relation.KindOne {
				continue
			}
			db.inverse[slot] = candidate
			db.inverse[candidate] = slot
			paired[slot] = true
			paired[candidate] = true
			break
		}
	}
}

func (db *DB) inverseOf(model, property string) (slotRef, bool) {
	inv, ok := db.inverse[slotRef{model: model, property: property}]
	return inv, ok
}
