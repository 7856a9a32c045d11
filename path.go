package firemock

import (
	"strings"
)

// splitPath parses a slash-separated store path like "users/alice/posts".
// Leading and trailing slashes are ignored; empty segments are not.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, invalidArgf(path, "empty path")
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return nil, invalidArgf(path, "path %q contains an empty segment", path)
		}
	}
	return segs, nil
}

// childSegs returns segs extended by name without aliasing segs.
func childSegs(segs []string, name string) []string {
	return append(append(make([]string, 0, len(segs)+1), segs...), name)
}

func joinPath(segs []string) string {
	return strings.Join(segs, "/")
}

// splitField parses a dotted field path like "address.city".
func splitField(field string) []string {
	return strings.Split(field, ".")
}

// getByPath descends through nested maps. A missing key at any level, or an
// intermediate value that is not a map, yields an error wrapping ErrNoField.
func getByPath(root map[string]any, path []string) (any, error) {
	var cur any = root
	for i, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, noFieldErr(path, i)
		}
		v, found := m[key]
		if !found {
			return nil, noFieldErr(path, i)
		}
		cur = v
	}
	return cur, nil
}

// lookupByPath is the lenient form of getByPath.
func lookupByPath(root map[string]any, path []string) (any, bool) {
	v, err := getByPath(root, path)
	return v, err == nil
}

// getOrCreate descends through nested maps, creating empty maps for missing
// or null keys, and returns the innermost map.
func getOrCreate(root map[string]any, path []string) (map[string]any, error) {
	cur := root
	for _, key := range path {
		v, found := cur[key]
		if !found || v == nil {
			next := make(map[string]any)
			cur[key] = next
			cur = next
			continue
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, invalidArgf(strings.Join(path, "."), "cannot descend into %q: holds %T, not a map", key, v)
		}
		cur = next
	}
	return cur, nil
}

// setByPath assigns value at path, creating intermediate maps.
func setByPath(root map[string]any, path []string, value any) error {
	parent, err := getOrCreate(root, path[:len(path)-1])
	if err != nil {
		return err
	}
	parent[path[len(path)-1]] = value
	return nil
}

// deleteByPath removes the key at path. Both the parent and the key must
// exist.
func deleteByPath(root map[string]any, path []string) error {
	parentVal, err := getByPath(root, path[:len(path)-1])
	if err != nil {
		return err
	}
	parent, ok := parentVal.(map[string]any)
	if !ok {
		return noFieldErr(path, len(path)-1)
	}
	key := path[len(path)-1]
	if _, found := parent[key]; !found {
		return noFieldErr(path, len(path)-1)
	}
	delete(parent, key)
	return nil
}

// isCollectionShaped reports whether v looks like a collection: a map whose
// every value is itself a map. Empty maps qualify.
func isCollectionShaped(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, doc := range m {
		if _, ok := doc.(map[string]any); !ok {
			return false
		}
	}
	return true
}
