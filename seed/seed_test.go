package seed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirage"
	"github.com/roach88/mirage/schema"
)

func blogDB(t *testing.T) *mirage.DB {
	t.Helper()
	db, err := mirage.New(schema.Models{
		"user": schema.Model{
			"id":    schema.PrimaryKey(schema.OptionalString()),
			"name":  schema.String("anonymous"),
			"posts": schema.Nullable(schema.ManyOf("post")),
		},
		"post": schema.Model{
			"id":     schema.PrimaryKey(schema.OptionalString()),
			"title":  schema.OptionalString(),
			"author": schema.Nullable(schema.OneOf("user")),
		},
	})
	require.NoError(t, err)
	return db
}

func TestLoadMultiDocument(t *testing.T) {
	db := blogDB(t)

	src := `
model: user
entities:
  - id: u1
    name: Kate
  - id: u2
---
model: post
entities:
  - id: p1
    title: Hello
    author: u1
`
	require.NoError(t, Load(db, strings.NewReader(src)))

	users, err := db.Model("user")
	require.NoError(t, err)
	assert.Equal(t, 2, users.Count())

	posts, err := db.Model("post")
	require.NoError(t, err)
	require.Equal(t, 1, posts.Count())

	p := posts.GetAll()[0]
	author, err := p.One("author")
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "Kate", author.MustGet("name"))

	// The inverse collection filled in while seeding.
	u1 := users.GetAll()[0]
	authored, err := u1.Many("posts")
	require.NoError(t, err)
	assert.Len(t, authored, 1)
}

func TestLoadDefaultsApply(t *testing.T) {
	db := blogDB(t)

	src := "model: user\nentities:\n  - id: u1\n"
	require.NoError(t, Load(db, strings.NewReader(src)))

	users, err := db.Model("user")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", users.GetAll()[0].MustGet("name"))
}

func TestLoadUnknownModel(t *testing.T) {
	db := blogDB(t)

	err := Load(db, strings.NewReader("model: ghost\nentities:\n  - id: x\n"))
	require.Error(t, err)
	assert.True(t, mirage.IsConfiguration(err))
}

func TestLoadMissingModelName(t *testing.T) {
	err := Load(blogDB(t), strings.NewReader("entities:\n  - id: x\n"))
	assert.Error(t, err)
}

func TestLoadForwardReferenceFails(t *testing.T) {
	db := blogDB(t)

	src := `
model: post
entities:
  - id: p1
    author: u1
`
	err := Load(db, strings.NewReader(src))
	require.Error(t, err)
	assert.True(t, mirage.IsBrokenReference(err), "references must name already-seeded entities")
}

func TestLoadMalformedYAML(t *testing.T) {
	err := Load(blogDB(t), strings.NewReader("model: [unclosed"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	db := blogDB(t)
	require.NoError(t, LoadDir(db, "testdata/blog"))

	users, err := db.Model("user")
	require.NoError(t, err)
	assert.Equal(t, 2, users.Count())

	posts, err := db.Model("post")
	require.NoError(t, err)
	require.Equal(t, 2, posts.Count())

	p := posts.GetAll()[0]
	author, err := p.One("author")
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "u1", author.MustGet("id"))
}

func TestLoadDirMissing(t *testing.T) {
	assert.Error(t, LoadDir(blogDB(t), "testdata/nope"))
}

func TestLoadFileMissing(t *testing.T) {
	assert.Error(t, LoadFile(blogDB(t), "testdata/nope.yaml"))
}
