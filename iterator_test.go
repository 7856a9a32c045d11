package firemock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

func TestIteratorNext(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{
			"a": map[string]any{"v": 1},
			"b": map[string]any{"v": 2},
		},
	})

	it := c.Collection("foo").Documents(ctx)
	snap, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", snap.ID())

	rest, err := it.GetAll()
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].ID())

	_, err = it.Next()
	assert.Equal(t, iterator.Done, err)
	_, err = it.Next()
	assert.Equal(t, iterator.Done, err)
}

func TestIteratorStop(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"a": map[string]any{"v": 1}},
	})
	it := c.Collection("foo").Documents(ctx)
	it.Stop()
	_, err := it.Next()
	assert.Equal(t, iterator.Done, err)
}

func TestIteratorAll(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{
			"a": map[string]any{"v": 1},
			"b": map[string]any{"v": 2},
			"c": map[string]any{"v": 3},
		},
	})

	var got []string
	for snap, err := range c.Collection("foo").Documents(ctx).All() {
		require.NoError(t, err)
		got = append(got, snap.ID())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)

	var errs []error
	for _, err := range c.Collection("foo").Where("v", "??", 1).Documents(ctx).All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidArgument)
}

func TestIteratorError(t *testing.T) {
	it := &DocumentRefIterator{err: invalidArgf("", "bad")}
	_, err := it.Next()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = it.GetAll()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
