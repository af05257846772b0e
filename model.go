package mirage

import (
	"github.com/roach88/mirage/query"
	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// ModelHandle exposes the operations of one model's store.
type ModelHandle struct {
	db *DB
	t  *table
}

// Name returns the model name this handle operates on.
func (h *ModelHandle) Name() string {
	return h.t.model
}

type queryOptions struct {
	strict bool
}

// QueryOption tunes read, update, and delete operations.
type QueryOption func(*queryOptions)

// Strict makes zero matches a not-found error instead of a nil or empty
// result.
func Strict() QueryOption {
	return func(o *queryOptions) {
		o.strict = true
	}
}

func applyOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// pendingRelation is a validated relation write staged before any mutation,
// so a failing input never leaves a half-written entity behind.
type pendingRelation struct {
	prop  string
	desc  *relation.Descriptor
	keys  []string
	unset bool
}

// Create inserts a new entity.
//
// Each declared property takes the supplied value, else its declared
// default, else Null. The primary key must come from the caller or a
// default; otherwise Create fails with a missing-primary-key error. A key
// already present in the store fails with a duplicate-primary-key error.
// Relation values are validated (cardinality, nullability, target
// existence) before anything is written.
func (h *ModelHandle) Create(values map[string]any) (*Entity, error) {
	t := h.t

	for prop := range values {
		if _, declared := t.props[prop]; !declared {
			return nil, newConfigurationError(t.model, prop, "property is not declared")
		}
	}

	attrs := make(map[string]value.Value, len(t.props))
	for prop, spec := range t.props {
		if spec.scalar == nil {
			continue
		}
		v, err := h.scalarValue(prop, spec.scalar, values)
		if err != nil {
			return nil, err
		}
		attrs[prop] = v
	}

	keyVal := attrs[t.keyProp]
	if _, isNull := keyVal.(value.Null); isNull {
		return nil, newMissingKeyError(t.model, t.keyProp)
	}
	key := value.Key(keyVal)
	if _, exists := t.get(key); exists {
		return nil, newDuplicateKeyError(t.model, key)
	}

	pending := make([]pendingRelation, 0)
	for prop, spec := range t.props {
		if spec.rel == nil {
			continue
		}
		raw, supplied := values[prop]
		if !supplied {
			continue
		}
		keys, unset, err := h.db.normalizeRelationInput(t.model, prop, spec.rel, raw)
		if err != nil {
			return nil, err
		}
		pending = append(pending, pendingRelation{prop: prop, desc: spec.rel, keys: keys, unset: unset})
	}

	rec := &record{key: key, attrs: attrs, refs: make(map[string]*reference)}
	t.insert(rec)
	for _, p := range pending {
		h.db.applyRelation(t, rec, p.prop, p.desc, p.keys, p.unset)
	}
	return h.db.entity(t, rec), nil
}

func (h *ModelHandle) scalarValue(prop string, spec *scalarProp, values map[string]any) (value.Value, error) {
	raw, supplied := values[prop]
	if !supplied {
		if spec.def != nil {
			return spec.def(), nil
		}
		if spec.key {
			return nil, newMissingKeyError(h.t.model, prop)
		}
		return value.Null{}, nil
	}

	v, err := value.FromAny(raw)
	if err != nil {
		return nil, newConfigurationError(h.t.model, prop, "%v", err)
	}
	if typ, typed := value.TypeOf(v); typed && typ != spec.typ {
		return nil, newConfigurationError(h.t.model, prop,
			"declared %s, got %s", spec.typ, typ)
	}
	return v, nil
}

// FindFirst returns the first entity matching the predicate in creation
// order. With no match it returns nil, or a not-found error under Strict.
func (h *ModelHandle) FindFirst(w query.Where, opts ...QueryOption) (*Entity, error) {
	o := applyOptions(opts)

	var found *record
	err := h.t.scan(func(rec *record) (bool, error) {
		ok, err := h.db.matchRecord(h.t, rec, w)
		if err != nil {
			return false, err
		}
		if ok {
			found = rec
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		if o.strict {
			return nil, newNotFoundError(h.t.model)
		}
		return nil, nil
	}
	return h.db.entity(h.t, found), nil
}

// FindMany returns every entity matching the predicate in creation order.
// With no matches it returns an empty slice, or a not-found error under
// Strict.
func (h *ModelHandle) FindMany(w query.Where, opts ...QueryOption) ([]*Entity, error) {
	o := applyOptions(opts)

	recs, err := h.matching(w)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 && o.strict {
		return nil, newNotFoundError(h.t.model)
	}
	return h.entities(recs), nil
}

// GetAll returns every entity in creation order, unfiltered.
func (h *ModelHandle) GetAll() []*Entity {
	out := make([]*Entity, 0, len(h.t.order))
	_ = h.t.scan(func(rec *record) (bool, error) {
		out = append(out, h.db.entity(h.t, rec))
		return true, nil
	})
	return out
}

// Count returns the number of stored entities.
func (h *ModelHandle) Count() int {
	return len(h.t.records)
}

// Update merges values into the first matching entity. Unspecified
// properties retain their prior values; scalars are overwritten and
// relations are routed through the resolver so inverse sides stay in step.
// The primary key cannot be updated.
func (h *ModelHandle) Update(w query.Where, values map[string]any, opts ...QueryOption) (*Entity, error) {
	o := applyOptions(opts)

	found, err := h.FindFirst(w)
	if err != nil {
		return nil, err
	}
	if found == nil {
		if o.strict {
			return nil, newNotFoundError(h.t.model)
		}
		return nil, nil
	}

	rec, _ := h.t.get(found.key)
	scalars, rels, err := h.stageUpdate(values)
	if err != nil {
		return nil, err
	}
	h.applyUpdate(rec, scalars, rels)
	return h.db.entity(h.t, rec), nil
}

// UpdateMany merges values into every matching entity and returns them in
// creation order. The matched set is fixed at invocation time; validation
// happens before any entity is touched, so a bad value aborts the whole
// batch rather than leaving it half-applied.
func (h *ModelHandle) UpdateMany(w query.Where, values map[string]any, opts ...QueryOption) ([]*Entity, error) {
	o := applyOptions(opts)

	recs, err := h.matching(w)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		if o.strict {
			return nil, newNotFoundError(h.t.model)
		}
		return []*Entity{}, nil
	}

	scalars, rels, err := h.stageUpdate(values)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		h.applyUpdate(rec, scalars, rels)
	}
	return h.entities(recs), nil
}

// Delete removes the first matching entity and clears every inverse
// reference other entities held to it. Referencing entities survive; only
// their references are cleared. The returned handle is detached: its key
// and model remain readable, but property access fails.
func (h *ModelHandle) Delete(w query.Where, opts ...QueryOption) (*Entity, error) {
	o := applyOptions(opts)

	found, err := h.FindFirst(w)
	if err != nil {
		return nil, err
	}
	if found == nil {
		if o.strict {
			return nil, newNotFoundError(h.t.model)
		}
		return nil, nil
	}

	rec, _ := h.t.get(found.key)
	h.db.deleteRecord(h.t, rec)
	return found, nil
}

// DeleteMany removes every matching entity, with the same reference-cascade
// behavior as Delete. The matched set is fixed at invocation time.
func (h *ModelHandle) DeleteMany(w query.Where, opts ...QueryOption) ([]*Entity, error) {
	o := applyOptions(opts)

	recs, err := h.matching(w)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		if o.strict {
			return nil, newNotFoundError(h.t.model)
		}
		return []*Entity{}, nil
	}

	out := h.entities(recs)
	for _, rec := range recs {
		h.db.deleteRecord(h.t, rec)
	}
	return out, nil
}

func (h *ModelHandle) matching(w query.Where) ([]*record, error) {
	var recs []*record
	err := h.t.scan(func(rec *record) (bool, error) {
		ok, err := h.db.matchRecord(h.t, rec, w)
		if err != nil {
			return false, err
		}
		if ok {
			recs = append(recs, rec)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (h *ModelHandle) entities(recs []*record) []*Entity {
	out := make([]*Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.db.entity(h.t, rec))
	}
	return out
}

func (h *ModelHandle) stageUpdate(values map[string]any) (map[string]value.Value, []pendingRelation, error) {
	t := h.t
	scalars := make(map[string]value.Value)
	var rels []pendingRelation

	for prop, raw := range values {
		spec, declared := t.props[prop]
		if !declared {
			return nil, nil, newConfigurationError(t.model, prop, "property is not declared")
		}

		if spec.scalar != nil {
			if spec.scalar.key {
				return nil, nil, newConfigurationError(t.model, prop, "primary key cannot be updated")
			}
			v, err := value.FromAny(raw)
			if err != nil {
				return nil, nil, newConfigurationError(t.model, prop, "%v", err)
			}
			if typ, typed := value.TypeOf(v); typed && typ != spec.scalar.typ {
				return nil, nil, newConfigurationError(t.model, prop,
					"declared %s, got %s", spec.scalar.typ, typ)
			}
			scalars[prop] = v
			continue
		}

		keys, unset, err := h.db.normalizeRelationInput(t.model, prop, spec.rel, raw)
		if err != nil {
			return nil, nil, err
		}
		rels = append(rels, pendingRelation{prop: prop, desc: spec.rel, keys: keys, unset: unset})
	}
	return scalars, rels, nil
}

func (h *ModelHandle) applyUpdate(rec *record, scalars map[string]value.Value, rels []pendingRelation) {
	for prop, v := range scalars {
		rec.attrs[prop] = v
	}
	for _, p := range rels {
		h.db.applyRelation(h.t, rec, p.prop, p.desc, p.keys, p.unset)
	}
}

// deleteRecord removes one record and scrubs every reference involving it:
// incoming references (via the inverse map) are cleared or shrunk on the
// holders, and the record's own outgoing references are unregistered from
// the target tables' inverse maps. No other entity is deleted.
func (db *DB) deleteRecord(t *table, rec *record) {
	for _, site := range t.incoming(rec.key) {
		holder := db.tables[site.model]
		hrec, ok := holder.get(site.key)
		if !ok {
			continue
		}
		spec := holder.props[site.property]
		ref := hrec.refs[site.property]
		if ref == nil {
			continue
		}
		if spec.rel.Kind == relation.KindOne {
			db.setRef(holder, hrec, site.property, t, nil, true)
			continue
		}
		kept := make([]string, 0, len(ref.keys))
		for _, k := range ref.keys {
			if k != rec.key {
				kept = append(kept, k)
			}
		}
		db.setRef(holder, hrec, site.property, t, kept, false)
	}

	for prop, spec := range t.props {
		if spec.rel == nil {
			continue
		}
		if _, stored := rec.refs[prop]; stored {
			db.setRef(t, rec, prop, db.tables[spec.rel.Target], nil, true)
		}
	}

	t.remove(rec.key)
}
