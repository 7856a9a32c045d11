package firemock

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
)

// CollectionRef refers to a collection. It embeds Query, so query methods
// can be called on it directly: coll.Where("a", "==", 1).Documents(ctx).
type CollectionRef struct {
	// Parent is the document containing this collection, or nil for a
	// top-level collection.
	Parent *DocumentRef

	// Path is the slash-separated path of the collection, e.g.
	// "users/alice/posts".
	Path string

	// ID is the last segment of Path.
	ID string

	Query

	c    *Client
	segs []string
	err  error
}

// CollectionGroupRef is a query over every collection with a given ID,
// wherever it sits in the tree.
type CollectionGroupRef struct {
	ID string
	Query
}

func (cr *CollectionRef) Err() error {
	return cr.err
}

func (cr *CollectionRef) String() string {
	return cr.Path
}

// Doc returns a reference to the document id in this collection. An empty
// placeholder is created for the document if it does not exist, so the
// reference can always be used; the placeholder does not count as existing.
func (cr *CollectionRef) Doc(id string) *DocumentRef {
	path := cr.Path + "/" + id
	if cr.err != nil {
		return &DocumentRef{Parent: cr, Path: path, ID: id, c: cr.c, err: cr.err}
	}
	if id == "" || strings.Contains(id, "/") {
		return &DocumentRef{Parent: cr, Path: path, ID: id, c: cr.c, err: invalidArgf(path, "invalid document ID %q", id)}
	}
	segs := childSegs(cr.segs, id)
	if err := cr.c.ensureDoc(segs); err != nil {
		return &DocumentRef{Parent: cr, Path: path, ID: id, c: cr.c, err: err}
	}
	return cr.c.docRefWithParent(cr, segs)
}

// NewDoc returns a reference to a document with a random ID. Uniqueness is
// not checked.
func (cr *CollectionRef) NewDoc() *DocumentRef {
	return cr.Doc(cr.c.newID())
}

// Add creates a document from data. The ID is taken from the payload's "id"
// field when it is a non-empty string, and generated otherwise. Add fails
// with AlreadyExists if a document with that ID already exists, leaving it
// untouched.
func (cr *CollectionRef) Add(ctx context.Context, data any) (*DocumentRef, *WriteResult, error) {
	if err := cr.check(ctx); err != nil {
		return nil, nil, err
	}
	fields, err := toFields(cr.Path, data)
	if err != nil {
		return nil, nil, err
	}
	id, _ := fields["id"].(string)
	if id == "" {
		id = cr.c.newID()
	}
	return cr.add(ctx, id, fields)
}

// AddWithID is like Add with an explicit document ID.
func (cr *CollectionRef) AddWithID(ctx context.Context, id string, data any) (*DocumentRef, *WriteResult, error) {
	if err := cr.check(ctx); err != nil {
		return nil, nil, err
	}
	fields, err := toFields(cr.Path, data)
	if err != nil {
		return nil, nil, err
	}
	return cr.add(ctx, id, fields)
}

func (cr *CollectionRef) add(ctx context.Context, id string, fields map[string]any) (*DocumentRef, *WriteResult, error) {
	coll, err := cr.c.lookupCollection(cr.segs)
	if err != nil {
		return nil, nil, err
	}
	if doc, ok := coll[id].(map[string]any); ok && len(doc) > 0 {
		return nil, nil, errf(codes.AlreadyExists, cr.Path+"/"+id, nil, "Document already exists: %s/%s", cr.Path, id)
	}
	ref := cr.Doc(id)
	if ref.err != nil {
		return nil, nil, ref.err
	}
	wr, err := ref.set(ctx, fields, false)
	if err != nil {
		return nil, nil, err
	}
	return ref, wr, nil
}

// DocumentRefs lists a reference for every document key in the collection,
// including empty placeholders.
func (cr *CollectionRef) DocumentRefs(ctx context.Context) *DocumentRefIterator {
	if err := cr.check(ctx); err != nil {
		return &DocumentRefIterator{err: err}
	}
	coll, err := cr.c.lookupCollection(cr.segs)
	if err != nil {
		return &DocumentRefIterator{err: err}
	}
	refs := make([]*DocumentRef, 0, len(coll))
	for _, id := range sortedKeys(coll) {
		refs = append(refs, cr.c.docRefWithParent(cr, childSegs(cr.segs, id)))
	}
	return &DocumentRefIterator{items: refs}
}

func (cr *CollectionRef) check(ctx context.Context) error {
	if cr.err != nil {
		return cr.err
	}
	return checkCtx(ctx)
}

// snapshots returns the existing documents in ascending ID order.
func (cr *CollectionRef) snapshots() ([]*DocumentSnapshot, error) {
	if cr.err != nil {
		return nil, cr.err
	}
	coll, err := cr.c.lookupCollection(cr.segs)
	if err != nil {
		return nil, err
	}
	var snaps []*DocumentSnapshot
	for _, id := range sortedKeys(coll) {
		doc, ok := coll[id].(map[string]any)
		if !ok || len(doc) == 0 {
			continue
		}
		segs := childSegs(cr.segs, id)
		snap, err := cr.c.newSnapshot(cr.c.docRefWithParent(cr, segs), doc)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

type groupEntry struct {
	segs []string
	doc  map[string]any
}

// collectionGroupSnapshots merges the documents of every collection named id.
// Collections are visited depth-first in key order; when two of them hold
// the same document ID, the one visited later wins.
func (c *Client) collectionGroupSnapshots(id string) ([]*DocumentSnapshot, error) {
	merged := make(map[string]groupEntry)
	for _, name := range sortedKeys(c.data) {
		coll, ok := c.data[name].(map[string]any)
		if !ok {
			continue
		}
		scanGroup(coll, []string{name}, id, merged)
	}

	var snaps []*DocumentSnapshot
	for _, docID := range sortedKeys(merged) {
		e := merged[docID]
		if len(e.doc) == 0 {
			continue
		}
		snap, err := c.newSnapshot(c.docRef(e.segs), e.doc)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func scanGroup(coll map[string]any, segs []string, id string, merged map[string]groupEntry) {
	matches := segs[len(segs)-1] == id
	for _, docID := range sortedKeys(coll) {
		doc, ok := coll[docID].(map[string]any)
		if !ok {
			continue
		}
		docSegs := childSegs(segs, docID)
		if matches {
			merged[docID] = groupEntry{docSegs, doc}
		}
		for _, field := range sortedKeys(doc) {
			if isCollectionShaped(doc[field]) {
				sub := doc[field].(map[string]any)
				scanGroup(sub, childSegs(docSegs, field), id, merged)
			}
		}
	}
}
