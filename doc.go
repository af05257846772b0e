// Package mirage is an in-memory entity store with declarative relations
// and a query language, built for seeding and querying mock data in tests.
//
// A model set is registered once with New, producing a store per model.
// Relations are declared as shape (oneOf, manyOf, nullable) and stored as
// primary-key references, never as embedded copies. Resolution is lazy:
// every read derives the related entities from the current store state.
// When two relation slots are declared as inverses of each other, writing
// one side updates the other within the same operation.
//
//	db, err := mirage.New(schema.Models{
//		"user": schema.Model{
//			"id":      schema.PrimaryKey(schema.UUID()),
//			"name":    schema.String(""),
//			"partner": schema.Nullable(schema.OneOf("user")),
//		},
//	})
//
// The engine is single-threaded and synchronous. Callers invoking
// operations from multiple goroutines must serialize externally; the
// library does not lock.
package mirage
