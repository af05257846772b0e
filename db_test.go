package mirage

import (
	"reflect"
	"testing"

	"github.com/roach88/mirage/schema"
)

func mustDB(t *testing.T, models schema.Models, opts ...Option) *DB {
	t.Helper()
	db, err := New(models, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return db
}

func mustModel(t *testing.T, db *DB, name string) *ModelHandle {
	t.Helper()
	h, err := db.Model(name)
	if err != nil {
		t.Fatalf("Model(%q): %v", name, err)
	}
	return h
}

func mustCreate(t *testing.T, h *ModelHandle, values map[string]any) *Entity {
	t.Helper()
	e, err := h.Create(values)
	if err != nil {
		t.Fatalf("Create(%s): %v", h.Name(), err)
	}
	return e
}

func userModels() schema.Models {
	return schema.Models{
		"user": schema.Model{
			"id":     schema.PrimaryKey(schema.OptionalString()),
			"name":   schema.String("anonymous"),
			"age":    schema.OptionalNumber(),
			"active": schema.Bool(true),
		},
	}
}

func TestNewRejectsModelWithoutPrimaryKey(t *testing.T) {
	_, err := New(schema.Models{
		"user": schema.Model{
			"name": schema.String(""),
		},
	})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestNewRejectsSecondPrimaryKey(t *testing.T) {
	_, err := New(schema.Models{
		"user": schema.Model{
			"id":    schema.PrimaryKey(schema.OptionalString()),
			"email": schema.PrimaryKey(schema.OptionalString()),
		},
	})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestNewRejectsEmptyModel(t *testing.T) {
	_, err := New(schema.Models{"user": schema.Model{}})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestNewRejectsUndeclaredRelationTarget(t *testing.T) {
	_, err := New(schema.Models{
		"post": schema.Model{
			"id":     schema.PrimaryKey(schema.OptionalString()),
			"author": schema.OneOf("user"),
		},
	})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestNewRejectsReservedPropertyName(t *testing.T) {
	_, err := New(schema.Models{
		"user": schema.Model{
			"id":      schema.PrimaryKey(schema.OptionalString()),
			"__model": schema.String(""),
		},
	})
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestModelUnknownName(t *testing.T) {
	db := mustDB(t, userModels())
	_, err := db.Model("ghost")
	if !IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestModelsSorted(t *testing.T) {
	db := mustDB(t, schema.Models{
		"user": schema.Model{"id": schema.PrimaryKey(schema.OptionalString())},
		"post": schema.Model{"id": schema.PrimaryKey(schema.OptionalString())},
		"tag":  schema.Model{"id": schema.PrimaryKey(schema.OptionalString())},
	})
	got := db.Models()
	want := []string{"post", "tag", "user"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Models() = %v, want %v", got, want)
	}
}

func TestIndependentDBsShareNoState(t *testing.T) {
	a := mustDB(t, userModels())
	b := mustDB(t, userModels())

	mustCreate(t, mustModel(t, a, "user"), map[string]any{"id": "u1"})

	if n := mustModel(t, b, "user").Count(); n != 0 {
		t.Fatalf("second DB sees %d entities, want 0", n)
	}
}
