package firemock

import (
	"context"
	"log/slog"
	"maps"
)

type opKind int

const (
	opCreate opKind = iota
	opSet
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opSet:
		return "set"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// writeOp is a deferred write. The payload is converted and copied when the
// op is queued, so later changes to the caller's data do not leak in.
type writeOp struct {
	kind   opKind
	ref    *DocumentRef
	fields map[string]any
	merge  bool
}

func newWriteOp(kind opKind, dr *DocumentRef, data any, opts []SetOption) (writeOp, error) {
	if err := dr.check(context.Background()); err != nil {
		return writeOp{}, err
	}
	op := writeOp{kind: kind, ref: dr, merge: isMerge(opts)}
	if kind != opDelete {
		fields, err := toFields(dr.Path, data)
		if err != nil {
			return writeOp{}, err
		}
		op.fields = fields
	}
	return op, nil
}

func (op writeOp) apply(ctx context.Context) (*WriteResult, error) {
	// the engine consumes payloads, so each replay gets its own copy
	fields, err := cloneDoc(op.fields)
	if err != nil {
		return nil, err
	}
	switch op.kind {
	case opCreate:
		return op.ref.create(ctx, fields)
	case opSet:
		return op.ref.set(ctx, fields, op.merge)
	case opUpdate:
		return op.ref.update(ctx, fields)
	case opDelete:
		return op.ref.delete(ctx)
	default:
		panic("unknown write op")
	}
}

// applyWrites replays ops in order. If one fails, the store is put back the
// way it was before the first op and the error is returned. The root map
// keeps its identity across the restore, so Data() stays valid.
func (c *Client) applyWrites(ctx context.Context, ops []writeOp) ([]*WriteResult, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	backup, err := cloneDoc(c.data)
	if err != nil {
		return nil, err
	}
	results := make([]*WriteResult, 0, len(ops))
	for i, op := range ops {
		wr, err := op.apply(ctx)
		if err != nil {
			clear(c.data)
			maps.Copy(c.data, backup)
			c.debugf(ctx, "firemock: commit failed, store restored", slog.Int("op", i), slog.String("kind", op.kind.String()), slog.String("path", op.ref.Path), slog.Any("err", err))
			return nil, err
		}
		results = append(results, wr)
	}
	return results, nil
}

// WriteBatch collects writes and applies them together on Commit. Errors in
// the queued calls are reported by Commit.
type WriteBatch struct {
	c         *Client
	writes    []writeOp
	committed bool
	err       error
}

func (c *Client) Batch() *WriteBatch {
	return &WriteBatch{c: c}
}

func (b *WriteBatch) add(kind opKind, dr *DocumentRef, data any, opts []SetOption) *WriteBatch {
	if b.err != nil {
		return b
	}
	op, err := newWriteOp(kind, dr, data, opts)
	if err != nil {
		b.err = err
		return b
	}
	b.writes = append(b.writes, op)
	return b
}

func (b *WriteBatch) Create(dr *DocumentRef, data any) *WriteBatch {
	return b.add(opCreate, dr, data, nil)
}

func (b *WriteBatch) Set(dr *DocumentRef, data any, opts ...SetOption) *WriteBatch {
	return b.add(opSet, dr, data, opts)
}

func (b *WriteBatch) Update(dr *DocumentRef, data map[string]any) *WriteBatch {
	return b.add(opUpdate, dr, data, nil)
}

func (b *WriteBatch) Delete(dr *DocumentRef) *WriteBatch {
	return b.add(opDelete, dr, nil, nil)
}

// Commit applies the queued writes in order, all or nothing. A batch can be
// committed once.
func (b *WriteBatch) Commit(ctx context.Context) ([]*WriteResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.committed {
		return nil, invalidArgf("", "write batch already committed")
	}
	if len(b.writes) == 0 {
		return nil, invalidArgf("", "write batch is empty")
	}
	results, err := b.c.applyWrites(ctx, b.writes)
	if err != nil {
		return nil, err
	}
	b.committed = true
	b.writes = nil
	return results, nil
}
