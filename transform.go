package firemock

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Transform is a sentinel value that, placed in an update payload, tells the
// store to compute the new field value from the current one.
//
// The set of transforms is closed; use Increment, ArrayUnion, ArrayRemove,
// Delete and ServerTimestamp. Values from other packages can stand in for a
// transform by implementing Transformer.
type Transform interface {
	transformName() string
}

// Transformer is implemented by foreign sentinel types (for example adapters
// around another client library's transforms) to declare which transform
// they stand for.
type Transformer interface {
	FieldTransform() Transform
}

type increment struct{ n any }
type arrayUnion struct{ elems []any }
type arrayRemove struct{ elems []any }
type deleteField struct{}
type serverTimestamp struct{}

func (increment) transformName() string       { return "Increment" }
func (arrayUnion) transformName() string      { return "ArrayUnion" }
func (arrayRemove) transformName() string     { return "ArrayRemove" }
func (deleteField) transformName() string     { return "Delete" }
func (serverTimestamp) transformName() string { return "ServerTimestamp" }

func (t increment) String() string   { return fmt.Sprintf("Increment(%v)", t.n) }
func (t arrayUnion) String() string  { return fmt.Sprintf("ArrayUnion%v", t.elems) }
func (t arrayRemove) String() string { return fmt.Sprintf("ArrayRemove%v", t.elems) }
func (deleteField) String() string   { return "Delete" }
func (serverTimestamp) String() string {
	return "ServerTimestamp"
}

// Increment adds n to the current numeric value of a field. A missing or
// non-numeric field is treated as zero.
func Increment(n any) Transform {
	return increment{n}
}

// ArrayUnion appends elems to the current list value of a field.
func ArrayUnion(elems ...any) Transform {
	return arrayUnion{elems}
}

// ArrayRemove removes one occurrence of each of elems from the current list
// value of a field.
func ArrayRemove(elems ...any) Transform {
	return arrayRemove{elems}
}

var (
	// Delete removes a field. It is only valid in Update and in Set with
	// MergeAll.
	Delete Transform = deleteField{}

	// ServerTimestamp is replaced with the client's current time when the
	// write is applied.
	ServerTimestamp Transform = serverTimestamp{}
)

func asTransform(v any) (Transform, bool) {
	switch v := v.(type) {
	case Transform:
		return v, true
	case Transformer:
		t := v.FieldTransform()
		return t, t != nil
	}
	return nil, false
}

type fieldTransform struct {
	path      []string
	container map[string]any
	key       string
	t         Transform
}

// nested reports whether the sentinel sits inside a map value rather than
// directly under a (possibly dotted) top-level key.
func (ft fieldTransform) nested() bool {
	return len(ft.path) != len(splitField(ft.key))
}

// collectTransforms finds transform sentinels in the payload depth-first, in
// sorted key order, recording the full field path of each one. Dotted keys
// contribute several path segments.
func collectTransforms(m map[string]any, prefix []string, out []fieldTransform) []fieldTransform {
	for _, k := range sortedKeys(m) {
		path := append(slices.Clip(prefix), splitField(k)...)
		v := m[k]
		if t, ok := asTransform(v); ok {
			out = append(out, fieldTransform{path, m, k, t})
		} else if sub, ok := v.(map[string]any); ok {
			out = collectTransforms(sub, path, out)
		}
	}
	return out
}

// applyUpdate returns a copy of doc with payload applied using update
// semantics. payload is consumed: transforms inside it are replaced with
// their results.
//
// Application order: increments and unions are resolved against doc first,
// then the remaining plain fields are assigned with dotted-path semantics,
// then deletes run, then array removals. Deletes and removals must be
// addressed by a top-level key because an enclosing map value replaces the
// field wholesale.
func applyUpdate(doc, payload map[string]any, now time.Time) (map[string]any, error) {
	var deletes, removes []fieldTransform
	for _, ft := range collectTransforms(payload, nil, nil) {
		switch t := ft.t.(type) {
		case increment:
			if !isNumber(t.n) {
				return nil, invalidArgf(joinField(ft.path), "Increment needs a number, got %T", t.n)
			}
			cur, _ := lookupByPath(doc, ft.path)
			if !isNumber(cur) {
				cur = 0
			}
			ft.container[ft.key], _ = addNumbers(cur, t.n)
		case arrayUnion:
			cur, _ := lookupByPath(doc, ft.path)
			list, _ := asList(cur)
			merged, err := cloneList(slices.Concat(list, t.elems))
			if err != nil {
				return nil, err
			}
			if merged == nil {
				merged = []any{}
			}
			ft.container[ft.key] = merged
		case serverTimestamp:
			ft.container[ft.key] = now
		case deleteField:
			if ft.nested() {
				return nil, invalidArgf(joinField(ft.path), "Delete cannot appear inside a map value (field %s); use a dotted path", joinField(ft.path))
			}
			delete(ft.container, ft.key)
			deletes = append(deletes, ft)
		case arrayRemove:
			if ft.nested() {
				return nil, invalidArgf(joinField(ft.path), "ArrayRemove cannot appear inside a map value (field %s); use a dotted path", joinField(ft.path))
			}
			delete(ft.container, ft.key)
			removes = append(removes, ft)
		}
	}

	out, err := cloneDoc(doc)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	for _, k := range sortedKeys(payload) {
		if err := setByPath(out, splitField(k), payload[k]); err != nil {
			return nil, err
		}
	}
	for _, ft := range deletes {
		if err := deleteByPath(out, ft.path); err != nil {
			return nil, errf(codeFor(err), joinField(ft.path), err, "cannot delete field %s", joinField(ft.path))
		}
	}
	for _, ft := range removes {
		cur, ok := lookupByPath(out, ft.path)
		if !ok {
			continue
		}
		list, ok := asList(cur)
		if !ok {
			continue
		}
		list = slices.Clone(list)
		for _, e := range ft.t.(arrayRemove).elems {
			if i := indexOfValue(list, e); i >= 0 {
				list = slices.Delete(list, i, i+1)
			}
		}
		if err := setByPath(out, ft.path, list); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveForSet replaces transforms in a set payload, treating every field
// as absent. Delete is only accepted when allowDelete is set, in which case
// it drops its key.
func resolveForSet(payload map[string]any, now time.Time, allowDelete bool) error {
	for _, ft := range collectTransforms(payload, nil, nil) {
		switch t := ft.t.(type) {
		case increment:
			if !isNumber(t.n) {
				return invalidArgf(joinField(ft.path), "Increment needs a number, got %T", t.n)
			}
			ft.container[ft.key] = t.n
		case arrayUnion:
			list, err := cloneList(t.elems)
			if err != nil {
				return err
			}
			if list == nil {
				list = []any{}
			}
			ft.container[ft.key] = list
		case arrayRemove:
			ft.container[ft.key] = []any{}
		case serverTimestamp:
			ft.container[ft.key] = now
		case deleteField:
			if !allowDelete {
				return invalidArgf(joinField(ft.path), "Delete cannot be used in Set without MergeAll (field %s)", joinField(ft.path))
			}
			delete(ft.container, ft.key)
		}
	}
	return nil
}

func joinField(path []string) string {
	return strings.Join(path, ".")
}
