package mirage

import (
	"errors"
	"fmt"

	"github.com/roach88/mirage/query"
	"github.com/roach88/mirage/value"
)

// entityView adapts one stored record to the query evaluator. Relation
// lookups go through the current store state, so relation predicates see
// exactly what a direct read would.
type entityView struct {
	db  *DB
	t   *table
	rec *record
}

func (v entityView) Scalar(property string) (value.Value, value.Type, error) {
	spec, ok := v.t.props[property]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s.%s", query.ErrUnknownProperty, v.t.model, property)
	}
	if spec.scalar == nil {
		return nil, "", fmt.Errorf("%w: %s.%s is a relation, scalar operators given",
			query.ErrTypeMismatch, v.t.model, property)
	}
	return v.rec.attrs[property], spec.scalar.typ, nil
}

func (v entityView) Relation(property string) ([]query.EntityView, error) {
	spec, ok := v.t.props[property]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", query.ErrUnknownProperty, v.t.model, property)
	}
	if spec.rel == nil {
		return nil, fmt.Errorf("%w: %s.%s is a scalar, relation predicate given",
			query.ErrTypeMismatch, v.t.model, property)
	}

	// An unset relation is a non-match for predicates, not a failure, even
	// when the relation is non-nullable. Dangling keys still fail loudly.
	ref, stored := v.rec.refs[property]
	if !stored {
		return nil, nil
	}

	target := v.db.tables[spec.rel.Target]
	views := make([]query.EntityView, 0, len(ref.keys))
	for _, k := range ref.keys {
		trec, found := target.get(k)
		if !found {
			return nil, newBrokenReferenceError(v.t.model, property, k)
		}
		views = append(views, entityView{db: v.db, t: target, rec: trec})
	}
	return views, nil
}

// matchRecord evaluates a where clause against one record. Query sentinel
// errors become configuration errors; engine errors pass through unchanged.
func (db *DB) matchRecord(t *table, rec *record, w query.Where) (bool, error) {
	ok, err := query.Match(w, entityView{db: db, t: t, rec: rec})
	if err != nil {
		if errors.Is(err, query.ErrUnknownProperty) || errors.Is(err, query.ErrTypeMismatch) {
			return false, &Error{Code: ErrCodeConfiguration, Message: err.Error(), Model: t.model}
		}
		return false, err
	}
	return ok, nil
}
