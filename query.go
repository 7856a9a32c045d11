package firemock

import (
	"context"
	"log/slog"
	"slices"
)

// Direction is the sort order of an OrderBy clause.
type Direction int32

const (
	Asc Direction = iota + 1
	Desc
)

func (d Direction) String() string {
	switch d {
	case Asc:
		return "ASCENDING"
	case Desc:
		return "DESCENDING"
	default:
		return "UNSPECIFIED"
	}
}

// Query is an immutable query builder. Every method returns a modified copy
// and leaves the receiver unchanged, so a base query can be shared and
// extended freely.
//
// Errors made while building a query (an unknown operator, too many cursor
// values) are kept and reported by Documents.
type Query struct {
	c     *Client
	path  string
	coll  *CollectionRef
	group string

	filters []filter
	orders  []order
	limit   int
	offset  int
	start   *cursor
	end     *cursor

	err error
}

type filter struct {
	field string
	path  []string
	op    string
	value any
}

type order struct {
	field string
	path  []string
	dir   Direction
}

type cursor struct {
	snap      *DocumentSnapshot
	fields    map[string]any
	values    []any
	inclusive bool
}

// Queryer is satisfied by Query and by the types that embed it.
type Queryer interface {
	query() *Query
}

func (q Query) query() *Query {
	return &q
}

var knownOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true, "not-in": true,
	"array_contains": true, "array-contains": true,
	"array_contains_any": true, "array-contains-any": true,
}

// Where returns a query that keeps only documents whose field at the dotted
// path satisfies op against value. Supported operators are ==, !=, <, <=, >,
// >=, in, not-in, array-contains and array-contains-any (the last two also
// in their underscore spellings). Documents lacking the field never match.
func (q Query) Where(path, op string, value any) Query {
	if q.err != nil {
		return q
	}
	if !knownOps[op] {
		q.err = invalidArgf(q.path, "unsupported filter operator %q", op)
		return q
	}
	if path == "" {
		q.err = invalidArgf(q.path, "empty field path in Where")
		return q
	}
	switch op {
	case "in", "not-in", "array_contains_any", "array-contains-any":
		if _, ok := asList(value); !ok {
			q.err = invalidArgf(q.path, "operator %s needs a list value, got %T", op, value)
			return q
		}
	}
	q.filters = append(slices.Clip(q.filters), filter{path, splitField(path), op, value})
	return q
}

// OrderBy returns a query sorted by the field at the dotted path. Several
// OrderBy calls combine, the first one being the primary key. Documents
// without the field are left out of ordered results.
func (q Query) OrderBy(path string, dir Direction) Query {
	if q.err != nil {
		return q
	}
	if dir != Asc && dir != Desc {
		q.err = invalidArgf(q.path, "invalid direction %d in OrderBy(%q)", dir, path)
		return q
	}
	q.orders = append(slices.Clip(q.orders), order{path, splitField(path), dir})
	return q
}

// Limit caps the number of results. Zero or less means no limit.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// Offset skips the first n results. Zero or less skips nothing.
func (q Query) Offset(n int) Query {
	q.offset = n
	return q
}

// StartAt begins results at the first document matching the cursor,
// inclusive. The cursor is either a *DocumentSnapshot (matched by ID), a
// single map[string]any of field values (all must be equal), or one value
// per OrderBy clause.
func (q Query) StartAt(docSnapshotOrFieldValues ...any) Query {
	q.start, q.err = q.cursor(docSnapshotOrFieldValues, true)
	return q
}

// StartAfter is like StartAt but excludes the matching document.
func (q Query) StartAfter(docSnapshotOrFieldValues ...any) Query {
	q.start, q.err = q.cursor(docSnapshotOrFieldValues, false)
	return q
}

// EndAt ends results at the first document matching the cursor, inclusive.
func (q Query) EndAt(docSnapshotOrFieldValues ...any) Query {
	q.end, q.err = q.cursor(docSnapshotOrFieldValues, true)
	return q
}

// EndBefore is like EndAt but excludes the matching document.
func (q Query) EndBefore(docSnapshotOrFieldValues ...any) Query {
	q.end, q.err = q.cursor(docSnapshotOrFieldValues, false)
	return q
}

func (q Query) cursor(args []any, inclusive bool) (*cursor, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(args) == 0 {
		return nil, invalidArgf(q.path, "cursor needs a snapshot or field values")
	}
	if len(args) == 1 {
		switch v := args[0].(type) {
		case *DocumentSnapshot:
			if v == nil {
				return nil, invalidArgf(q.path, "nil snapshot used as a cursor")
			}
			return &cursor{snap: v, inclusive: inclusive}, nil
		case map[string]any:
			return &cursor{fields: v, inclusive: inclusive}, nil
		}
	}
	return &cursor{values: args, inclusive: inclusive}, nil
}

// Documents runs the query against the current store state. Repeated calls
// re-evaluate; nothing is cached.
func (q Query) Documents(ctx context.Context) *DocumentIterator {
	snaps, err := q.run(ctx)
	return &DocumentIterator{items: snaps, err: err}
}

// Get returns every result at once.
//
// Deprecated: use Documents(ctx).GetAll().
func (q Query) Get(ctx context.Context) ([]*DocumentSnapshot, error) {
	if q.c != nil {
		q.c.debugf(ctx, "firemock: Query.Get is deprecated, use Documents", slog.String("path", q.path))
	}
	return q.Documents(ctx).GetAll()
}

func (q Query) run(ctx context.Context) ([]*DocumentSnapshot, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.c == nil {
		return nil, invalidArgf("", "query is not bound to a collection")
	}
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var snaps []*DocumentSnapshot
	var err error
	if q.group != "" {
		snaps, err = q.c.collectionGroupSnapshots(q.group)
	} else {
		snaps, err = q.coll.snapshots()
	}
	if err != nil {
		return nil, err
	}

	for _, f := range q.filters {
		snaps = slices.DeleteFunc(snaps, func(s *DocumentSnapshot) bool {
			return !f.matches(s)
		})
	}

	if len(q.orders) > 0 {
		snaps = slices.DeleteFunc(snaps, func(s *DocumentSnapshot) bool {
			for _, o := range q.orders {
				if _, ok := s.field(o.path); !ok {
					return true
				}
			}
			return false
		})
		slices.SortStableFunc(snaps, q.compareDocs)
	}

	if q.start != nil {
		if snaps, err = q.applyCursor(snaps, q.start, true); err != nil {
			return nil, err
		}
	}
	if q.end != nil {
		if snaps, err = q.applyCursor(snaps, q.end, false); err != nil {
			return nil, err
		}
	}

	if q.offset > 0 {
		snaps = snaps[min(q.offset, len(snaps)):]
	}
	if q.limit > 0 && len(snaps) > q.limit {
		snaps = snaps[:q.limit]
	}
	return snaps, nil
}

func (q Query) compareDocs(a, b *DocumentSnapshot) int {
	for _, o := range q.orders {
		av, _ := a.field(o.path)
		bv, _ := b.field(o.path)
		c := compareValues(av, bv)
		if o.dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// applyCursor slices snaps at the first document matching cur.
func (q Query) applyCursor(snaps []*DocumentSnapshot, cur *cursor, start bool) ([]*DocumentSnapshot, error) {
	fields := cur.fields
	if cur.values != nil {
		if len(cur.values) > len(q.orders) {
			return nil, invalidArgf(q.path, "cursor has %d values but the query has %d OrderBy clauses", len(cur.values), len(q.orders))
		}
		fields = make(map[string]any, len(cur.values))
		for i, v := range cur.values {
			fields[q.orders[i].field] = v
		}
	}

	idx := slices.IndexFunc(snaps, func(s *DocumentSnapshot) bool {
		if cur.snap != nil {
			return s.ID() == cur.snap.ID()
		}
		for k, want := range fields {
			v, ok := s.field(splitField(k))
			if !ok || !equalValues(v, want) {
				return false
			}
		}
		return true
	})
	if idx < 0 {
		return nil, nil
	}

	switch {
	case start && cur.inclusive:
		return snaps[idx:], nil
	case start:
		return snaps[idx+1:], nil
	case cur.inclusive:
		return snaps[:idx+1], nil
	default:
		return snaps[:idx], nil
	}
}

func (f filter) matches(s *DocumentSnapshot) bool {
	v, ok := s.field(f.path)
	if !ok {
		return false
	}
	switch f.op {
	case "==":
		return equalValues(v, f.value)
	case "!=":
		return !equalValues(v, f.value)
	case "<":
		return sameKind(v, f.value) && compareValues(v, f.value) < 0
	case "<=":
		return sameKind(v, f.value) && compareValues(v, f.value) <= 0
	case ">":
		return sameKind(v, f.value) && compareValues(v, f.value) > 0
	case ">=":
		return sameKind(v, f.value) && compareValues(v, f.value) >= 0
	case "in":
		list, _ := asList(f.value)
		return indexOfValue(list, v) >= 0
	case "not-in":
		list, _ := asList(f.value)
		return indexOfValue(list, v) < 0
	case "array_contains", "array-contains":
		list, ok := asList(v)
		return ok && indexOfValue(list, f.value) >= 0
	case "array_contains_any", "array-contains-any":
		list, ok := asList(v)
		if !ok {
			return false
		}
		wanted, _ := asList(f.value)
		for _, w := range wanted {
			if indexOfValue(list, w) >= 0 {
				return true
			}
		}
		return false
	}
	return false
}
