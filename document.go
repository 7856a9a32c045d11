package firemock

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
)

// DocumentRef refers to a document location. It holds no data; every call
// resolves the path against the client's current store.
type DocumentRef struct {
	// Parent is the collection containing the document.
	Parent *CollectionRef

	// Path is the slash-separated path of the document relative to the
	// store root, e.g. "users/alice".
	Path string

	// ID is the last segment of Path.
	ID string

	c    *Client
	segs []string
	err  error
}

// WriteResult is returned for every applied write.
type WriteResult struct {
	UpdateTime time.Time
}

// SetOption modifies Set.
type SetOption interface {
	setOption()
}

type mergeAll struct{}

func (mergeAll) setOption() {}

// MergeAll makes Set merge the given fields into an existing document
// (using Update semantics) instead of replacing it. On a document that does
// not exist yet it behaves like a plain Set.
var MergeAll SetOption = mergeAll{}

// Err returns the error recorded when the reference was constructed from a
// malformed path, if any.
func (d *DocumentRef) Err() error {
	return d.err
}

func (d *DocumentRef) String() string {
	return d.Path
}

func (d *DocumentRef) check(ctx context.Context) error {
	if d == nil {
		return invalidArgf("", "nil document reference")
	}
	if d.err != nil {
		return d.err
	}
	return checkCtx(ctx)
}

// Get reads the document. A document that does not exist yields a snapshot
// whose Exists reports false, not an error.
func (d *DocumentRef) Get(ctx context.Context) (*DocumentSnapshot, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	doc, err := d.c.lookupDoc(d.segs)
	if err != nil {
		return nil, err
	}
	return d.c.newSnapshot(d, doc)
}

// Set replaces the document with data, which is a map[string]any or a
// struct (fields named by `firestore` tags). With MergeAll, data is merged
// into the existing document using Update semantics.
func (d *DocumentRef) Set(ctx context.Context, data any, opts ...SetOption) (*WriteResult, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	fields, err := toFields(d.Path, data)
	if err != nil {
		return nil, err
	}
	return d.set(ctx, fields, isMerge(opts))
}

func isMerge(opts []SetOption) bool {
	for _, opt := range opts {
		if _, ok := opt.(mergeAll); ok {
			return true
		}
	}
	return false
}

// set stores fields, which must already be a private copy.
func (d *DocumentRef) set(ctx context.Context, fields map[string]any, merge bool) (*WriteResult, error) {
	if merge {
		// update leaves fields untouched when the document is missing
		wr, err := d.update(ctx, fields)
		if !isMissingDoc(err) {
			return wr, err
		}
	}
	now := d.c.now()
	if err := resolveForSet(fields, now, merge); err != nil {
		return nil, err
	}
	if err := d.c.storeDoc(d.segs, fields); err != nil {
		return nil, err
	}
	d.c.logWrite(ctx, "set", d.segs)
	return &WriteResult{UpdateTime: now}, nil
}

// Update applies data to an existing document. Keys may be dotted field
// paths ("address.city"), and values may be transforms such as Increment or
// Delete. Updating a document that does not exist fails with NotFound.
func (d *DocumentRef) Update(ctx context.Context, data map[string]any) (*WriteResult, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	fields, err := cloneDoc(data)
	if err != nil {
		return nil, err
	}
	return d.update(ctx, fields)
}

// missingDocError marks the NotFound that Update reports for an absent
// document, so that a merging Set can tell it apart from a NotFound caused
// by a Delete of a missing field.
type missingDocError struct{}

func (missingDocError) Error() string { return "document does not exist" }

func isMissingDoc(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	_, ok = e.Err.(missingDocError)
	return ok
}

func (d *DocumentRef) update(ctx context.Context, fields map[string]any) (*WriteResult, error) {
	doc, err := d.c.lookupDoc(d.segs)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, &Error{Code: codes.NotFound, Path: d.Path, Msg: "No document to update: " + d.Path, Err: missingDocError{}}
	}
	now := d.c.now()
	updated, err := applyUpdate(doc, fields, now)
	if err != nil {
		return nil, err
	}
	if err := d.c.storeDoc(d.segs, updated); err != nil {
		return nil, err
	}
	d.c.logWrite(ctx, "update", d.segs)
	return &WriteResult{UpdateTime: now}, nil
}

// Create stores data as a new document, failing with AlreadyExists if the
// document exists.
func (d *DocumentRef) Create(ctx context.Context, data any) (*WriteResult, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	fields, err := toFields(d.Path, data)
	if err != nil {
		return nil, err
	}
	return d.create(ctx, fields)
}

func (d *DocumentRef) create(ctx context.Context, fields map[string]any) (*WriteResult, error) {
	doc, err := d.c.lookupDoc(d.segs)
	if err != nil {
		return nil, err
	}
	if len(doc) > 0 {
		return nil, errf(codes.AlreadyExists, d.Path, nil, "Document already exists: %s", d.Path)
	}
	return d.set(ctx, fields, false)
}

// Delete removes the document from its collection. Deleting a document that
// does not exist is not an error. Subcollections stored under the document
// go with it.
func (d *DocumentRef) Delete(ctx context.Context) (*WriteResult, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	return d.delete(ctx)
}

func (d *DocumentRef) delete(ctx context.Context) (*WriteResult, error) {
	coll, err := d.c.lookupCollection(d.segs[:len(d.segs)-1])
	if err != nil {
		return nil, err
	}
	if _, found := coll[d.ID]; found {
		delete(coll, d.ID)
		d.c.logWrite(ctx, "delete", d.segs)
	}
	return &WriteResult{UpdateTime: d.c.now()}, nil
}

// Collection returns a reference to the subcollection id under this
// document, creating an empty one if the document has no field of that name.
func (d *DocumentRef) Collection(id string) *CollectionRef {
	if d.err != nil {
		return d.c.badCollectionRef(d.Path+"/"+id, d.err)
	}
	if id == "" || strings.Contains(id, "/") {
		return d.c.badCollectionRef(d.Path+"/"+id, invalidArgf(d.Path+"/"+id, "invalid collection ID %q", id))
	}
	segs := childSegs(d.segs, id)
	if err := d.c.ensureDoc(d.segs); err != nil {
		return d.c.badCollectionRef(joinPath(segs), err)
	}
	doc, _ := d.c.lookupDoc(d.segs)
	if _, found := doc[id]; !found {
		doc[id] = make(map[string]any)
	}
	return d.c.collectionRefWithParent(d, segs)
}

// Collections lists the subcollections of this document in name order. A
// field counts as a subcollection when it is a map of maps.
func (d *DocumentRef) Collections(ctx context.Context) *CollectionIterator {
	if err := d.check(ctx); err != nil {
		return &CollectionIterator{err: err}
	}
	doc, err := d.c.lookupDoc(d.segs)
	if err != nil {
		return &CollectionIterator{err: err}
	}
	var refs []*CollectionRef
	for _, name := range sortedKeys(doc) {
		if isCollectionShaped(doc[name]) {
			segs := childSegs(d.segs, name)
			refs = append(refs, d.c.collectionRefWithParent(d, segs))
		}
	}
	return &CollectionIterator{items: refs}
}
