package mirage

import (
	"github.com/roach88/mirage/relation"
	"github.com/roach88/mirage/value"
)

// compiledProp is the registration-time form of a property declaration.
// Exactly one of scalar or rel is set; the variant is decided once when the
// model set is compiled, never re-inspected per access.
type compiledProp struct {
	scalar *scalarProp
	rel    *relation.Descriptor
}

type scalarProp struct {
	typ value.Type
	def func() value.Value
	key bool
}

// refSite identifies one relation slot on one entity: the holder of an
// outgoing reference. Inverse maps are sets of refSites per target key.
type refSite struct {
	model    string
	property string
	key      string
}

// reference is the stored link for one relation property: the canonical
// primary-key forms of the targets, in insertion order. A to-one reference
// holds at most one key. An absent reference (no map entry) means unset;
// a present reference with zero keys is an emptied to-many collection.
type reference struct {
	keys []string
}

func (r *reference) contains(key string) bool {
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (r *reference) remove(key string) {
	kept := r.keys[:0]
	for _, k := range r.keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	r.keys = kept
}

// record is one stored entity: raw attribute values plus relation references.
// Relation targets are stored by primary key, never as embedded copies, so
// reads always reflect the current target store.
type record struct {
	key   string
	attrs map[string]value.Value
	refs  map[string]*reference
}

// table is the authoritative store for one model.
//
// Iteration order is creation order, maintained in order. referencedBy is
// the inverse map: for every entity in this table, the set of relation slots
// elsewhere that currently point at it. Delete uses it to clear incoming
// references without scanning every store.
type table struct {
	model   string
	keyProp string
	props   map[string]compiledProp

	order        []string
	records      map[string]*record
	referencedBy map[string]map[refSite]struct{}
}

func newTable(model, keyProp string, props map[string]compiledProp) *table {
	return &table{
		model:        model,
		keyProp:      keyProp,
		props:        props,
		records:      make(map[string]*record),
		referencedBy: make(map[string]map[refSite]struct{}),
	}
}

func (t *table) get(key string) (*record, bool) {
	rec, ok := t.records[key]
	return rec, ok
}

func (t *table) insert(rec *record) {
	t.records[rec.key] = rec
	t.order = append(t.order, rec.key)
}

func (t *table) remove(key string) {
	delete(t.records, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	delete(t.referencedBy, key)
}

// scan visits records in creation order. The visitor returns false to stop.
func (t *table) scan(visit func(*record) (bool, error)) error {
	for _, key := range t.order {
		rec, ok := t.records[key]
		if !ok {
			continue
		}
		more, err := visit(rec)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (t *table) addIncoming(targetKey string, site refSite) {
	sites, ok := t.referencedBy[targetKey]
	if !ok {
		sites = make(map[refSite]struct{})
		t.referencedBy[targetKey] = sites
	}
	sites[site] = struct{}{}
}

func (t *table) dropIncoming(targetKey string, site refSite) {
	if sites, ok := t.referencedBy[targetKey]; ok {
		delete(sites, site)
		if len(sites) == 0 {
			delete(t.referencedBy, targetKey)
		}
	}
}

// incoming returns a snapshot of the relation slots pointing at targetKey.
// A copy is returned because callers mutate the underlying sets while
// iterating (delete cascade).
func (t *table) incoming(targetKey string) []refSite {
	sites := t.referencedBy[targetKey]
	out := make([]refSite, 0, len(sites))
	for site := range sites {
		out = append(out, site)
	}
	return out
}
