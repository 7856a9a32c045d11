package firemock

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDocumentGet(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1}},
	})

	snap, err := c.Collection("foo").Doc("first").Get(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Exists())
	assert.Equal(t, "first", snap.ID())
	assert.Equal(t, "foo/first", snap.Ref.Path)
	assert.Equal(t, map[string]any{"id": 1}, snap.Data())
	assert.Equal(t, testTime, snap.CreateTime)
	assert.Equal(t, testTime, snap.UpdateTime)
	assert.Equal(t, testTime, snap.ReadTime)

	missing, err := c.Collection("foo").Doc("second").Get(ctx)
	require.NoError(t, err)
	assert.False(t, missing.Exists())
	assert.Nil(t, missing.Data())
}

func TestDocumentSetAndIsolation(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Collection("foo").Doc("first")

	payload := map[string]any{"id": 1, "nested": map[string]any{"list": []any{1, 2}}}
	_, err := ref.Set(ctx, payload)
	require.NoError(t, err)

	payload["id"] = 100
	payload["nested"].(map[string]any)["list"].([]any)[0] = 100

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	data := snap.Data()
	assert.Equal(t, map[string]any{"id": 1, "nested": map[string]any{"list": []any{1, 2}}}, data)

	data["id"] = 200
	data["nested"].(map[string]any)["list"] = nil
	assert.Equal(t, 1, snap.Data()["id"])
	assert.Equal(t, []any{1, 2}, snap.Data()["nested"].(map[string]any)["list"])

	again, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Data()["id"])
}

func TestDocumentSetIsolatesStructValues(t *testing.T) {
	type inner struct {
		L    []int
		note string
	}
	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Doc("foo/first")

	in := inner{L: []int{1, 2}, note: "n"}
	_, err := ref.Set(ctx, map[string]any{"s": in})
	require.NoError(t, err)
	in.L[0] = 99

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, inner{L: []int{1, 2}, note: "n"}, snap.Data()["s"])
	snap.Data()["s"].(inner).L[1] = 77

	again, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, inner{L: []int{1, 2}, note: "n"}, again.Data()["s"])
}

func TestDocumentSetOverwrites(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1, "other": "x"}},
	})
	ref := c.Doc("foo/first")

	_, err := ref.Set(ctx, map[string]any{"id": 2})
	require.NoError(t, err)
	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 2}, snap.Data())
}

func TestDocumentSetMerge(t *testing.T) {
	ctx := context.Background()

	t.Run("existing", func(t *testing.T) {
		c := setup(t, map[string]any{
			"foo": map[string]any{"first": map[string]any{"id": 1, "nested": map[string]any{"a": 1}}},
		})
		ref := c.Doc("foo/first")
		_, err := ref.Set(ctx, map[string]any{"updated": true, "nested.b": 2}, MergeAll)
		require.NoError(t, err)
		snap, err := ref.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"id":      1,
			"updated": true,
			"nested":  map[string]any{"a": 1, "b": 2},
		}, snap.Data())
	})

	t.Run("missing", func(t *testing.T) {
		c := setup(t, nil)
		ref := c.Collection("foo").Doc("first")
		_, err := ref.Set(ctx, map[string]any{"updated": true}, MergeAll)
		require.NoError(t, err)
		snap, err := ref.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"updated": true}, snap.Data())
	})

	t.Run("missing with delete", func(t *testing.T) {
		c := setup(t, nil)
		ref := c.Doc("foo/first")
		_, err := ref.Set(ctx, map[string]any{"keep": 1, "gone": Delete}, MergeAll)
		require.NoError(t, err)
		snap, err := ref.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"keep": 1}, snap.Data())
	})
}

func TestDocumentSetResolvesTransforms(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Doc("foo/first")

	_, err := ref.Set(ctx, map[string]any{
		"count": Increment(5),
		"tags":  ArrayUnion("a", "b"),
		"gone":  ArrayRemove("x"),
		"at":    ServerTimestamp,
	})
	require.NoError(t, err)
	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"count": 5,
		"tags":  []any{"a", "b"},
		"gone":  []any{},
		"at":    testTime,
	}, snap.Data())

	_, err = ref.Set(ctx, map[string]any{"x": Delete})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDocumentUpdate(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1, "nested": map[string]any{"a": 1}}},
	})
	ref := c.Doc("foo/first")

	_, err := ref.Update(ctx, map[string]any{"test": "hello", "nested.b": 2})
	require.NoError(t, err)
	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":     1,
		"test":   "hello",
		"nested": map[string]any{"a": 1, "b": 2},
	}, snap.Data())
}

func TestDocumentUpdateMissing(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Doc("foo/first")

	_, err := ref.Update(ctx, map[string]any{"id": 1})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.True(t, strings.HasPrefix(err.Error(), "404 No document to update: foo/first"), err.Error())

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestDocumentUpdateIsolation(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1}},
	})
	ref := c.Doc("foo/first")

	nested := map[string]any{"a": 1}
	_, err := ref.Update(ctx, map[string]any{"nested": nested})
	require.NoError(t, err)
	nested["a"] = 100

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, snap.Data()["nested"])
}

func TestDocumentUpdateFailureLeavesDocument(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1}},
	})
	ref := c.Doc("foo/first")

	_, err := ref.Update(ctx, map[string]any{"id": 2, "missing": Delete})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNoField)

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1}, snap.Data())
}

func TestDocumentCreate(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Doc("foo/first")

	_, err := ref.Create(ctx, map[string]any{"id": 1})
	require.NoError(t, err)

	_, err = ref.Create(ctx, map[string]any{"id": 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.True(t, IsConflict(err))

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1}, snap.Data())
}

func TestDocumentDelete(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{
			"first": map[string]any{"id": 1, "sub": map[string]any{"x": map[string]any{"y": 1}}},
		},
	})
	ref := c.Doc("foo/first")

	_, err := ref.Delete(ctx)
	require.NoError(t, err)
	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
	assert.NotContains(t, c.Data()["foo"], "first")

	_, err = ref.Delete(ctx)
	require.NoError(t, err)

	_, err = c.Doc("nowhere/nothing").Delete(ctx)
	require.NoError(t, err)
}

func TestDocumentSubcollection(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1}},
	})
	doc := c.Doc("foo/first")

	sub := doc.Collection("bar")
	assert.Same(t, doc, sub.Parent)
	assert.Equal(t, "foo/first/bar", sub.Path)
	assert.Equal(t, map[string]any{"id": 1, "bar": map[string]any{}}, c.Data()["foo"].(map[string]any)["first"])

	_, err := sub.Doc("x").Set(ctx, map[string]any{"v": true})
	require.NoError(t, err)

	snaps, err := sub.Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "foo/first/bar/x", snaps[0].Ref.Path)
	assert.Same(t, sub, snaps[0].Ref.Parent)

	colls, err := doc.Collections(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, "bar", colls[0].ID)

	// an existing field is left alone
	again := doc.Collection("bar")
	snaps, err = again.Documents(ctx).GetAll()
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestDocumentSubcollectionOnScalarField(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"bar": 5}},
	})

	_, err := c.Doc("foo/first").Collection("bar").Documents(ctx).GetAll()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 5, c.Data()["foo"].(map[string]any)["first"].(map[string]any)["bar"])
}

func TestDocumentStructs(t *testing.T) {
	type Address struct {
		City string `firestore:"city"`
	}
	type User struct {
		Name    string   `firestore:"name"`
		Age     int      `firestore:"age"`
		Tags    []string `firestore:"tags"`
		Address Address  `firestore:"address"`
	}

	ctx := context.Background()
	c := setup(t, nil)
	ref := c.Doc("users/alice")

	_, err := ref.Set(ctx, &User{Name: "Alice", Age: 30, Tags: []string{"a"}, Address: Address{City: "Paris"}})
	require.NoError(t, err)

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":    "Alice",
		"age":     int64(30),
		"tags":    []any{"a"},
		"address": map[string]any{"city": "Paris"},
	}, snap.Data())

	var u User
	require.NoError(t, snap.DataTo(&u))
	assert.Equal(t, User{Name: "Alice", Age: 30, Tags: []string{"a"}, Address: Address{City: "Paris"}}, u)

	_, err = ref.Set(ctx, 42)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSnapshotFieldAccess(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"a": map[string]any{"b": []any{1}}}},
	})
	snap, err := c.Doc("foo/first").Get(ctx)
	require.NoError(t, err)

	v, err := snap.DataAt("a.b")
	require.NoError(t, err)
	assert.Equal(t, []any{1}, v)
	v.([]any)[0] = 100
	assert.Equal(t, []any{1}, snap.Value("a.b"))

	_, err = snap.DataAt("a.c")
	assert.ErrorIs(t, err, ErrNoField)
	_, err = snap.DataAt("x.y")
	assert.ErrorIs(t, err, ErrNoField)
	assert.Nil(t, snap.Value("x.y"))

	missing, err := c.Doc("foo/second").Get(ctx)
	require.NoError(t, err)
	v, err = missing.DataAt("a")
	assert.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, IsNotFound(missing.DataTo(&map[string]any{})))
}
