package firemock

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const trackTxns = true

// Client is an in-memory stand-in for a Firestore client. The whole store is
// one tree of nested maps owned by the client; references only hold paths
// into it, so every reference observes the same live state.
//
// Client does no internal locking of the store. Callers that share a Client
// between goroutines must serialize access themselves.
type Client struct {
	data    map[string]any
	logger  *slog.Logger
	verbose bool
	now     func() time.Time
	newID   func() string

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64

	txns     []*Transaction
	txnsLock sync.Mutex
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool

	// Now is the clock used for snapshot and write times and for
	// ServerTimestamp. Defaults to time.Now.
	Now func() time.Time

	// NewID generates document IDs for NewDoc and Add. Defaults to
	// 20 random alphanumeric characters.
	NewID func() string
}

// New returns a client with an empty store.
func New() *Client {
	return NewWithOptions(Options{})
}

func NewWithOptions(opt Options) *Client {
	c := &Client{
		data:    make(map[string]any),
		logger:  opt.Logger,
		verbose: opt.Verbose,
		now:     opt.Now,
		newID:   opt.NewID,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = randomID
	}
	return c
}

// Data returns the live root of the store: a map of collection name to a
// map of document ID to document fields. Subcollections are stored as
// document fields. Tests may populate it directly to seed fixtures.
func (c *Client) Data() map[string]any {
	return c.data
}

// SetData replaces the store with data. The client takes ownership of data;
// it is not copied.
func (c *Client) SetData(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	c.data = data
}

// Reset empties the store.
func (c *Client) Reset() {
	c.data = make(map[string]any)
}

// Close is a no-op kept for parity with the real client.
func (c *Client) Close() error {
	return nil
}

// Collection returns a reference to the collection at a slash-separated
// path with an odd number of segments, such as "users" or
// "users/alice/posts". Missing intermediate nodes are created.
func (c *Client) Collection(path string) *CollectionRef {
	segs, err := splitPath(path)
	if err == nil && len(segs)%2 != 1 {
		err = invalidArgf(path, "cannot create a collection reference at %q: a collection path must have an odd number of segments", path)
	}
	if err == nil {
		_, err = getOrCreate(c.data, segs)
	}
	if err != nil {
		return c.badCollectionRef(path, err)
	}
	return c.collectionRef(segs)
}

// Doc returns a reference to the document at a slash-separated path with an
// even number of segments, such as "users/alice". Missing intermediate nodes
// are created, and so is an empty placeholder for the document itself.
func (c *Client) Doc(path string) *DocumentRef {
	segs, err := splitPath(path)
	if err == nil && len(segs)%2 != 0 {
		err = invalidArgf(path, "cannot create a document reference at %q: a document path must have an even number of segments", path)
	}
	if err == nil {
		err = c.ensureDoc(segs)
	}
	if err != nil {
		return &DocumentRef{Path: path, c: c, err: err}
	}
	return c.docRef(segs)
}

// CollectionGroup returns a query over every collection named id, at any
// depth of the tree.
func (c *Client) CollectionGroup(id string) *CollectionGroupRef {
	g := &CollectionGroupRef{ID: id}
	g.Query = Query{c: c, path: id, group: id}
	if id == "" || strings.Contains(id, "/") {
		g.Query.err = invalidArgf(id, "invalid collection group ID %q", id)
	}
	return g
}

// Collections lists the top-level collections in name order.
func (c *Client) Collections(ctx context.Context) *CollectionIterator {
	if err := checkCtx(ctx); err != nil {
		return &CollectionIterator{err: err}
	}
	var refs []*CollectionRef
	for _, name := range sortedKeys(c.data) {
		if _, ok := c.data[name].(map[string]any); ok {
			refs = append(refs, c.collectionRef([]string{name}))
		}
	}
	return &CollectionIterator{items: refs}
}

// GetAll reads several documents at once. Duplicate references (by path) are
// read once, and results come back in first-occurrence order.
func (c *Client) GetAll(ctx context.Context, refs []*DocumentRef) ([]*DocumentSnapshot, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(refs))
	snaps := make([]*DocumentSnapshot, 0, len(refs))
	for _, ref := range refs {
		if ref == nil {
			return nil, invalidArgf("", "nil document reference passed to GetAll")
		}
		if seen[ref.Path] {
			continue
		}
		seen[ref.Path] = true
		snap, err := ref.Get(ctx)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (c *Client) collectionRef(segs []string) *CollectionRef {
	var parent *DocumentRef
	if len(segs) > 1 {
		parent = c.docRef(segs[:len(segs)-1])
	}
	return c.collectionRefWithParent(parent, segs)
}

func (c *Client) collectionRefWithParent(parent *DocumentRef, segs []string) *CollectionRef {
	ref := &CollectionRef{
		Parent: parent,
		Path:   joinPath(segs),
		ID:     segs[len(segs)-1],
		c:      c,
		segs:   segs,
	}
	ref.Query = Query{c: c, path: ref.Path, coll: ref}
	return ref
}

func (c *Client) badCollectionRef(path string, err error) *CollectionRef {
	ref := &CollectionRef{Path: path, c: c, err: err}
	ref.Query = Query{c: c, path: path, err: err}
	return ref
}

func (c *Client) docRef(segs []string) *DocumentRef {
	return c.docRefWithParent(c.collectionRef(segs[:len(segs)-1]), segs)
}

func (c *Client) docRefWithParent(parent *CollectionRef, segs []string) *DocumentRef {
	return &DocumentRef{
		Parent: parent,
		Path:   joinPath(segs),
		ID:     segs[len(segs)-1],
		c:      c,
		segs:   segs,
	}
}

// ensureDoc creates the document at segs as an empty placeholder if it does
// not exist yet, along with every missing ancestor.
func (c *Client) ensureDoc(segs []string) error {
	coll, err := getOrCreate(c.data, segs[:len(segs)-1])
	if err != nil {
		return err
	}
	id := segs[len(segs)-1]
	if v, found := coll[id]; !found || v == nil {
		coll[id] = make(map[string]any)
	} else if _, ok := v.(map[string]any); !ok {
		return invalidArgf(joinPath(segs), "%s holds %T, not a document", joinPath(segs), v)
	}
	return nil
}

// lookupNode walks segs without creating anything. A missing or null key
// reports found == false; a scalar on the way is an InvalidArgument error.
func (c *Client) lookupNode(segs []string) (v any, found bool, err error) {
	var cur any = c.data
	for i, key := range segs {
		if cur == nil {
			return nil, false, nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, invalidArgf(joinPath(segs), "%s holds %T, cannot resolve %s", joinPath(segs[:i]), cur, joinPath(segs))
		}
		cur, ok = m[key]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// lookupCollection resolves a collection map without creating anything. A
// missing collection reads as empty.
func (c *Client) lookupCollection(segs []string) (map[string]any, error) {
	v, found, err := c.lookupNode(segs)
	if err != nil || !found || v == nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidArgf(joinPath(segs), "%s holds %T, not a collection", joinPath(segs), v)
	}
	return m, nil
}

// lookupDoc resolves a document without creating anything. A missing
// document reads as nil.
func (c *Client) lookupDoc(segs []string) (map[string]any, error) {
	v, found, err := c.lookupNode(segs)
	if err != nil || !found || v == nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidArgf(joinPath(segs), "%s holds %T, not a document", joinPath(segs), v)
	}
	return m, nil
}

// storeDoc replaces the document at segs in one step.
func (c *Client) storeDoc(segs []string, doc map[string]any) error {
	coll, err := getOrCreate(c.data, segs[:len(segs)-1])
	if err != nil {
		return err
	}
	coll[segs[len(segs)-1]] = doc
	return nil
}

func (c *Client) logWrite(ctx context.Context, op string, segs []string) {
	c.WriteCount.Add(1)
	if c.verbose {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "firemock: write", slog.String("op", op), pathAttr("path", segs))
	}
}

func (c *Client) debugf(ctx context.Context, msg string, attrs ...slog.Attr) {
	if c.verbose {
		c.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
	}
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return contextErr(ctx.Err())
}

func (c *Client) addTx(tx *Transaction) {
	if !trackTxns {
		return
	}
	tx.startTime = c.now()
	if c.verbose {
		tx.stack = string(debug.Stack())
	}
	c.txnsLock.Lock()
	defer c.txnsLock.Unlock()
	c.txns = append(c.txns, tx)
}

func (c *Client) removeTx(tx *Transaction) {
	if !trackTxns {
		return
	}
	c.txnsLock.Lock()
	defer c.txnsLock.Unlock()

	found := slices.Index(c.txns, tx)
	if found < 0 {
		panic("transaction not found in list")
	}

	n := len(c.txns)
	c.txns[found] = c.txns[n-1]
	c.txns[n-1] = nil
	c.txns = c.txns[:n-1]
}

// DescribeOpenTransactions lists transactions that have begun but not yet
// committed or rolled back, oldest first. With Options.Verbose the stack of
// each Begin call is included.
func (c *Client) DescribeOpenTransactions() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	c.txnsLock.Lock()
	txns := slices.Clone(c.txns)
	c.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Transaction) int {
		return a.startTime.Compare(b.startTime)
	})

	now := c.now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		fmt.Fprintf(&buf, "\n---\n%s open for %d ms\n", tx.id, ms)
		if tx.stack != "" {
			buf.WriteString(tx.stack)
		}
	}
	return buf.String()
}
