package mirage

import (
	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// setRef stores a reference and keeps the target table's inverse map in
// step. It is the only place references change, so the referencedBy sets
// cannot drift from the stored keys.
//
// keys == nil with unset == true removes the reference entirely; a non-nil
// empty slice stores an emptied to-many collection.
func (db *DB) setRef(t *table, rec *record, prop string, target *table, keys []string, unset bool) {
	site := refSite{model: t.model, property: prop, key: rec.key}

	var oldKeys []string
	if old, ok := rec.refs[prop]; ok {
		oldKeys = old.keys
	}

	newSet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		newSet[k] = struct{}{}
	}
	oldSet := make(map[string]struct{}, len(oldKeys))
	for _, k := range oldKeys {
		oldSet[k] = struct{}{}
	}

	for _, k := range oldKeys {
		if _, kept := newSet[k]; !kept {
			target.dropIncoming(k, site)
		}
	}
	for _, k := range keys {
		if _, had := oldSet[k]; !had {
			target.addIncoming(k, site)
		}
	}

	if unset {
		delete(rec.refs, prop)
		return
	}
	rec.refs[prop] = &reference{keys: keys}
}

// applyRelation writes a validated reference and updates the declared
// inverse side, if one exists, within the same operation.
//
// Inverse updates are reference-level and one step deep: setting
// post.author = user adds the post to user.posts, but does not re-propagate
// from user.posts onward. Reassignment removes the source from the old
// target's inverse before adding it to the new one, so no inverse entry
// survives a reassignment. Writing the to-many side of a paired relation
// can displace a to-one inverse (u2.posts = [p1] steals p1 from its old
// author); the displaced holder's own slot is shrunk as part of the same
// write, so both sides of the old pair come apart together.
func (db *DB) applyRelation(t *table, rec *record, prop string, desc *relation.Descriptor, keys []string, unset bool) {
	target := db.tables[desc.Target]

	var oldKeys []string
	if old, ok := rec.refs[prop]; ok {
		oldKeys = append(oldKeys, old.keys...)
	}

	db.setRef(t, rec, prop, target, keys, unset)

	if inv, ok := db.inverseOf(t.model, prop); ok {
		invDesc := target.props[inv.property].rel

		newSet := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			newSet[k] = struct{}{}
		}
		for _, k := range oldKeys {
			if _, kept := newSet[k]; kept {
				continue
			}
			trec, found := target.get(k)
			if !found {
				continue
			}
			db.dropInverseEntry(target, trec, inv.property, invDesc, t, rec.key)
		}

		oldSet := make(map[string]struct{}, len(oldKeys))
		for _, k := range oldKeys {
			oldSet[k] = struct{}{}
		}
		for _, k := range keys {
			if _, had := oldSet[k]; had {
				continue
			}
			trec, found := target.get(k)
			if !found {
				continue
			}
			db.addInverseEntry(target, trec, inv.property, invDesc, t, rec.key)
		}
	}

	db.obs.apply(ApplyEvent{
		Model:      t.model,
		Property:   prop,
		Key:        rec.key,
		TargetKeys: copyKeys(keys),
		Unset:      unset,
	})
}

// copyKeys snapshots a key slice for an event. Observers may retain events
// beyond the operation, so they never get the live backing array.
func copyKeys(keys []string) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// addInverseEntry makes srcKey visible on the inverse slot of one target.
// Overwriting a to-one inverse displaces its previous holder; the displaced
// holder's forward slot is shrunk too, so the old pair never ends half-linked
// (one side cleared, the other still pointing).
func (db *DB) addInverseEntry(target *table, trec *record, invProp string, invDesc *relation.Descriptor, src *table, srcKey string) {
	if invDesc.Kind == relation.KindOne {
		if old, ok := trec.refs[invProp]; ok {
			if fwd, paired := db.inverseOf(target.model, invProp); paired {
				fwdDesc := src.props[fwd.property].rel
				for _, displaced := range old.keys {
					if displaced == srcKey {
						continue
					}
					holder, found := src.get(displaced)
					if !found {
						continue
					}
					db.dropInverseEntry(src, holder, fwd.property, fwdDesc, target, trec.key)
				}
			}
		}
		db.setRef(target, trec, invProp, src, []string{srcKey}, false)
		return
	}
	if ref, ok := trec.refs[invProp]; ok {
		if ref.contains(srcKey) {
			return
		}
		db.setRef(target, trec, invProp, src, append(append([]string{}, ref.keys...), srcKey), false)
		return
	}
	db.setRef(target, trec, invProp, src, []string{srcKey}, false)
}

// dropInverseEntry removes srcKey from the inverse slot of one target.
// A to-one inverse is cleared only if it still points at srcKey; it may
// have been reassigned since.
func (db *DB) dropInverseEntry(target *table, trec *record, invProp string, invDesc *relation.Descriptor, src *table, srcKey string) {
	ref, ok := trec.refs[invProp]
	if !ok || !ref.contains(srcKey) {
		return
	}
	if invDesc.Kind == relation.KindOne {
		db.setRef(target, trec, invProp, src, nil, true)
		return
	}
	kept := make([]string, 0, len(ref.keys))
	for _, k := range ref.keys {
		if k != srcKey {
			kept = append(kept, k)
		}
	}
	db.setRef(target, trec, invProp, src, kept, false)
}

// resolveRelation computes the live value of a relation property from the
// stored reference and the current target store. Nothing is memoized; each
// call re-reads the target table, so intervening mutations are visible.
//
// Failure policy: a nullable relation with no reference resolves to an
// empty slice (the caller renders nil or an empty collection). A
// non-nullable relation with no reference fails with an unresolved-relation
// error. A stored key absent from the target store fails with a
// broken-reference error regardless of nullability.
func (db *DB) resolveRelation(t *table, rec *record, prop string, desc *relation.Descriptor) ([]*Entity, error) {
	target := db.tables[desc.Target]

	ref, ok := rec.refs[prop]
	if !ok {
		if desc.Nullable {
			db.obs.resolve(ResolveEvent{Model: t.model, Property: prop, Key: rec.key})
			return nil, nil
		}
		return nil, newUnresolvedRelationError(t.model, prop)
	}

	out := make([]*Entity, 0, len(ref.keys))
	for _, k := range ref.keys {
		trec, found := target.get(k)
		if !found {
			return nil, newBrokenReferenceError(t.model, prop, k)
		}
		out = append(out, db.entity(target, trec))
	}
	db.obs.resolve(ResolveEvent{Model: t.model, Property: prop, Key: rec.key, TargetKeys: copyKeys(ref.keys)})
	return out, nil
}

// normalizeRelationInput converts a caller-supplied relation value into
// canonical target keys, validating cardinality, nullability, model
// identity, and target existence. Dangling references are rejected here,
// at write time, never deferred to reads.
func (db *DB) normalizeRelationInput(model, prop string, desc *relation.Descriptor, raw any) (keys []string, unset bool, err error) {
	target := db.tables[desc.Target]

	if raw == nil {
		if !desc.Nullable {
			return nil, false, newConfigurationError(model, prop,
				"nil assigned to a non-nullable relation")
		}
		return nil, true, nil
	}

	switch v := raw.(type) {
	case *Entity:
		if v == nil {
			return db.normalizeRelationInput(model, prop, desc, nil)
		}
		if desc.Kind != relation.KindOne {
			return nil, false, newConfigurationError(model, prop,
				"single entity assigned to a manyOf relation")
		}
		k, err := db.entityKey(model, prop, target, v)
		if err != nil {
			return nil, false, err
		}
		return []string{k}, false, nil

	case []*Entity:
		if desc.Kind != relation.KindMany {
			return nil, false, newConfigurationError(model, prop,
				"entity list assigned to a oneOf relation")
		}
		if len(v) == 0 && !desc.Nullable {
			return nil, false, newConfigurationError(model, prop,
				"empty list assigned to a non-nullable relation")
		}
		keys = make([]string, 0, len(v))
		for _, e := range v {
			k, err := db.entityKey(model, prop, target, e)
			if err != nil {
				return nil, false, err
			}
			keys = append(keys, k)
		}
		return keys, false, nil

	case []any:
		if desc.Kind != relation.KindMany {
			return nil, false, newConfigurationError(model, prop,
				"value list assigned to a oneOf relation")
		}
		if len(v) == 0 && !desc.Nullable {
			return nil, false, newConfigurationError(model, prop,
				"empty list assigned to a non-nullable relation")
		}
		keys = make([]string, 0, len(v))
		for _, elem := range v {
			k, err := db.rawKey(model, prop, target, elem)
			if err != nil {
				return nil, false, err
			}
			keys = append(keys, k)
		}
		return keys, false, nil

	default:
		// A bare scalar names the target by primary key. Seed fixtures and
		// transport layers write relations this way.
		if desc.Kind != relation.KindOne {
			return nil, false, newConfigurationError(model, prop,
				"single key assigned to a manyOf relation")
		}
		k, err := db.rawKey(model, prop, target, raw)
		if err != nil {
			return nil, false, err
		}
		return []string{k}, false, nil
	}
}

func (db *DB) entityKey(model, prop string, target *table, e *Entity) (string, error) {
	if e == nil {
		return "", newConfigurationError(model, prop, "nil entity in relation value")
	}
	if e.t.model != target.model {
		return "", newConfigurationError(model, prop,
			"relation expects model %q, got entity of model %q", target.model, e.t.model)
	}
	if _, found := target.get(e.key); !found {
		return "", newBrokenReferenceError(model, prop, e.key)
	}
	return e.key, nil
}

func (db *DB) rawKey(model, prop string, target *table, raw any) (string, error) {
	if e, ok := raw.(*Entity); ok {
		return db.entityKey(model, prop, target, e)
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return "", newConfigurationError(model, prop, "relation key: %v", err)
	}
	k := value.Key(v)
	if _, found := target.get(k); !found {
		return "", newBrokenReferenceError(model, prop, k)
	}
	return k, nil
}
