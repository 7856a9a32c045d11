package firemock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCommit(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{
			"first": map[string]any{"id": 1, "n": 1},
			"gone":  map[string]any{"id": 9},
		},
	})

	results, err := c.Batch().
		Create(c.Doc("foo/second"), map[string]any{"id": 2}).
		Set(c.Doc("foo/third"), map[string]any{"id": 3}).
		Set(c.Doc("foo/first"), map[string]any{"extra": true}, MergeAll).
		Update(c.Doc("foo/first"), map[string]any{"n": Increment(1)}).
		Delete(c.Doc("foo/gone")).
		Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	for _, wr := range results {
		assert.Equal(t, testTime, wr.UpdateTime)
	}

	assert.Equal(t, []map[string]any{
		{"id": 1, "n": 2, "extra": true},
		{"id": 2},
		{"id": 3},
	}, docs(t, c.Collection("foo").Documents(ctx)))
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"id": 1}},
	})

	_, err := c.Batch().
		Set(c.Doc("foo/second"), map[string]any{"id": 2}).
		Create(c.Doc("foo/first"), map[string]any{"id": 100}).
		Commit(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	assert.Equal(t, []string{"first"}, ids(t, c.Collection("foo").Documents(ctx)))
}

func TestBatchErrors(t *testing.T) {
	ctx := context.Background()
	c := setup(t, nil)

	_, err := c.Batch().Commit(ctx)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// the first queueing error is reported by Commit
	b := c.Batch().Set(c.Doc("foo"), map[string]any{"id": 1}).Set(c.Doc("foo/x"), map[string]any{"id": 2})
	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	snap, err := c.Doc("foo/x").Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	b = c.Batch().Set(c.Doc("foo/x"), map[string]any{"id": 1})
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriteOpReplayUsesFreshPayload(t *testing.T) {
	ctx := context.Background()
	c := setup(t, map[string]any{
		"foo": map[string]any{"first": map[string]any{"n": 1}},
	})
	op, err := newWriteOp(opUpdate, c.Doc("foo/first"), map[string]any{"n": Increment(1)}, nil)
	require.NoError(t, err)

	for range 3 {
		_, err := c.applyWrites(ctx, []writeOp{op})
		require.NoError(t, err)
	}
	snap, err := c.Doc("foo/first").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Data()["n"])
	assert.Equal(t, "update", op.kind.String())
}
