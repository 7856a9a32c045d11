package firemock

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	err := c.LoadJSON(strings.NewReader(`{
		"users": {
			"alice": {"age": 30, "score": 1.5, "tags": ["a", 2], "posts": {"p1": {"likes": 7}}},
			"bob": null
		}
	}`))
	require.NoError(t, err)

	snap, err := c.Doc("users/alice").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), snap.Data()["age"])
	assert.Equal(t, 1.5, snap.Data()["score"])
	assert.Equal(t, []any{"a", int64(2)}, snap.Data()["tags"])

	post, err := c.Doc("users/alice/posts/p1").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"likes": int64(7)}, post.Data())

	bob, err := c.Doc("users/bob").Get(ctx)
	require.NoError(t, err)
	assert.False(t, bob.Exists())

	assert.Equal(t, []string{"alice"}, ids(t, c.Collection("users").Where("age", ">", 18).Documents(ctx)))
}

func TestLoadYAML(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	err := c.LoadYAML(strings.NewReader(`
users:
  alice:
    age: 30
    score: 1.5
    address:
      city: Paris
  bob:
    age: 25
`))
	require.NoError(t, err)

	assert.Equal(t, []map[string]any{
		{"age": int64(30), "score": 1.5, "address": map[string]any{"city": "Paris"}},
		{"age": int64(25)},
	}, docs(t, c.Collection("users").Documents(ctx)))
}

func TestLoadFixtureReplacesStore(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"old": map[string]any{"x": map[string]any{"v": 1}},
	})
	require.NoError(t, c.LoadJSON(strings.NewReader(`{"new": {"y": {"v": 2}}}`)))

	colls, err := c.Collections(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, "new", colls[0].ID)
}

func TestLoadFixtureErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"syntax", `{"users": `},
		{"root", `[1, 2]`},
		{"collection", `{"users": 5}`},
		{"document", `{"users": {"alice": "x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setup(t, map[string]any{
				"keep": map[string]any{"x": map[string]any{"v": 1}},
			})
			err := c.LoadJSON(strings.NewReader(tt.json))
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, c.Data(), "keep")
		})
	}

	c := setup(t, nil)
	assert.ErrorIs(t, c.LoadYAML(strings.NewReader("users: [1, 2]")), ErrInvalidArgument)
}

func TestNormalizeFixture(t *testing.T) {
	v, err := normalizeFixture(map[any]any{1: map[string]any{"n": 3}}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": map[string]any{"n": int64(3)}}, v)
}
