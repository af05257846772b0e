// Package query defines the predicate language used to match entities.
//
// A Where clause maps property names to conditions. Scalar conditions carry
// per-type operator sets (StringWhere, NumberWhere, BoolWhere); relation
// properties take a nested Rel clause evaluated against the resolved target
// entity or, for to-many relations, satisfied when any resolved entity
// matches. All top-level conditions are AND-ed; the language has no OR.
//
// Condition is a sealed interface so the evaluator can type-switch
// exhaustively. An operator applied to a property of the wrong declared
// type is a configuration error, surfaced at first use rather than treated
// as a silent non-match.
package query
