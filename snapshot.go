package firemock

import (
	"time"
)

// DocumentSnapshot is a point-in-time copy of a document. It never aliases
// the store: later writes do not change it, and changes to the maps it
// returns do not reach the store.
type DocumentSnapshot struct {
	Ref *DocumentRef

	// CreateTime, UpdateTime and ReadTime are all set to the client clock
	// at the moment the snapshot is taken; the store keeps no per-document
	// timestamps.
	CreateTime time.Time
	UpdateTime time.Time
	ReadTime   time.Time

	data map[string]any
}

func (c *Client) newSnapshot(ref *DocumentRef, doc map[string]any) (*DocumentSnapshot, error) {
	data, err := cloneDoc(doc)
	if err != nil {
		return nil, err
	}
	c.ReadCount.Add(1)
	now := c.now()
	return &DocumentSnapshot{
		Ref:        ref,
		CreateTime: now,
		UpdateTime: now,
		ReadTime:   now,
		data:       data,
	}, nil
}

// ID is the document's ID, the last segment of its path.
func (s *DocumentSnapshot) ID() string {
	return s.Ref.ID
}

// Exists reports whether the document has any fields. Empty placeholders
// created by reference construction do not exist.
func (s *DocumentSnapshot) Exists() bool {
	return s != nil && len(s.data) > 0
}

// Data returns a fresh deep copy of the document's fields on every call, or
// nil if the document does not exist.
func (s *DocumentSnapshot) Data() map[string]any {
	if !s.Exists() {
		return nil
	}
	return must(cloneDoc(s.data))
}

// DataAt returns the value at a dotted field path. It fails with an error
// wrapping ErrNoField if any segment is missing. A snapshot of a missing
// document returns nil without error.
func (s *DocumentSnapshot) DataAt(path string) (any, error) {
	if !s.Exists() {
		return nil, nil
	}
	v, err := getByPath(s.data, splitField(path))
	if err != nil {
		return nil, err
	}
	return cloneValue(v)
}

// Value is the lenient form of DataAt: a missing field yields nil.
func (s *DocumentSnapshot) Value(path string) any {
	v, err := s.DataAt(path)
	if err != nil {
		return nil
	}
	return v
}

// DataTo decodes the document into the struct or map pointed to by p, using
// `firestore` struct tags for field names.
func (s *DocumentSnapshot) DataTo(p any) error {
	if !s.Exists() {
		return notFoundf(s.Ref.Path, "cannot decode missing document %s", s.Ref.Path)
	}
	return fromFields(s.Ref.Path, s.data, p)
}

// field is used by the query engine; it does not copy.
func (s *DocumentSnapshot) field(path []string) (any, bool) {
	return lookupByPath(s.data, path)
}
