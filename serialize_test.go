package mirage

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mirage/schema"
)

func flattenModels() schema.Models {
	return schema.Models{
		"user": schema.Model{
			"id":   schema.PrimaryKey(schema.OptionalString()),
			"name": schema.OptionalString(),
		},
		"post": schema.Model{
			"id":        schema.PrimaryKey(schema.OptionalString()),
			"title":     schema.OptionalString(),
			"published": schema.Bool(false),
			"views":     schema.Number(0),
			"author":    schema.Nullable(schema.OneOf("user")),
		},
	}
}

func TestFlattenGolden(t *testing.T) {
	db := mustDB(t, flattenModels())
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1", "name": "Kate"})
	p := mustCreate(t, posts, map[string]any{
		"id": "p1", "title": "Hello", "published": true, "views": 42, "author": kate,
	})

	flat, err := p.Flatten()
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	data, err := MarshalDeterministic(flat)
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "flatten_post", data)
}

func TestFlattenUnsetNullableRelations(t *testing.T) {
	db := mustDB(t, blogModels())
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1", "name": "Kate"})
	p := mustCreate(t, posts, map[string]any{"id": "p1"})

	flatPost, err := p.Flatten()
	if err != nil {
		t.Fatalf("Flatten(post): %v", err)
	}
	if flatPost["author"] != nil {
		t.Fatalf("unset oneOf flattens to %v, want nil", flatPost["author"])
	}

	flatUser, err := kate.Flatten()
	if err != nil {
		t.Fatalf("Flatten(user): %v", err)
	}
	list, ok := flatUser["posts"].([]any)
	if !ok || len(list) != 0 {
		t.Fatalf("unset manyOf flattens to %v, want an empty list", flatUser["posts"])
	}
}

func TestFlattenIsOneLevelDeep(t *testing.T) {
	db := mustDB(t, blogModels())
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1", "name": "Kate"})
	mustCreate(t, posts, map[string]any{"id": "p1", "author": kate})

	flat, err := kate.Flatten()
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	list := flat["posts"].([]any)
	if len(list) != 1 {
		t.Fatalf("kate.posts flattened to %d entries", len(list))
	}
	// The embedded post renders its own relations as keys, not entities.
	embedded := list[0].(map[string]any)
	if embedded["author"] != "u1" {
		t.Fatalf("embedded relation = %v, want the bare primary key", embedded["author"])
	}
}

func TestMarshalDeterministicStable(t *testing.T) {
	in := map[string]any{
		"zeta":  1.0,
		"alpha": "x",
		"mid":   []any{true, nil, "s"},
	}
	a, err := MarshalDeterministic(in)
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	b, err := MarshalDeterministic(in)
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("two encodings differ:\n%s\n%s", a, b)
	}
	want := `{"alpha":"x","mid":[true,null,"s"],"zeta":1}`
	if string(a) != want {
		t.Fatalf("encoding = %s, want %s", a, want)
	}
}

func TestMarshalDeterministicUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00, which sorts before
	// U+FFFD in UTF-16 code units even though its UTF-8 bytes sort after.
	in := map[string]any{
		"\U0001F600": 1,
		"�":     2,
	}
	got, err := MarshalDeterministic(in)
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	want := "{\"\U0001F600\":1,\"�\":2}"
	if string(got) != want {
		t.Fatalf("encoding = %s, want %s", got, want)
	}
}

func TestMarshalDeterministicNoHTMLEscaping(t *testing.T) {
	got, err := MarshalDeterministic(map[string]any{"html": "<a> & </a>"})
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	want := `{"html":"<a> & </a>"}`
	if string(got) != want {
		t.Fatalf("encoding = %s, want %s", got, want)
	}
}

func TestMarshalDeterministicNFCStrings(t *testing.T) {
	composed := "café"
	decomposed := "café"
	a, err := MarshalDeterministic(map[string]any{"k": composed})
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	b, err := MarshalDeterministic(map[string]any{"k": decomposed})
	if err != nil {
		t.Fatalf("MarshalDeterministic: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("NFC forms encode differently:\n%s\n%s", a, b)
	}
}
