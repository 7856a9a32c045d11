package firemock

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/codes"
	"gopkg.in/yaml.v3"
)

// LoadJSON replaces the store with a JSON tree of the form
// {"collection": {"docID": {...fields...}}}. Integral numbers load as int64,
// other numbers as float64.
func (c *Client) LoadJSON(r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errf(codes.InvalidArgument, "", err, "cannot decode JSON fixture")
	}
	return c.loadFixture(raw)
}

// LoadYAML is LoadJSON for YAML documents.
func (c *Client) LoadYAML(r io.Reader) error {
	var raw any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return errf(codes.InvalidArgument, "", err, "cannot decode YAML fixture")
	}
	return c.loadFixture(raw)
}

func (c *Client) loadFixture(raw any) error {
	v, err := normalizeFixture(raw, "")
	if err != nil {
		return err
	}
	root, ok := v.(map[string]any)
	if !ok {
		return invalidArgf("", "fixture must be a mapping of collections, got %T", v)
	}
	for name, collVal := range root {
		coll, ok := collVal.(map[string]any)
		if !ok {
			return invalidArgf(name, "fixture collection %s must be a mapping of documents, got %T", name, collVal)
		}
		for id, doc := range coll {
			if doc == nil {
				coll[id] = make(map[string]any)
			} else if _, ok := doc.(map[string]any); !ok {
				return invalidArgf(name+"/"+id, "fixture document %s/%s must be a mapping, got %T", name, id, doc)
			}
		}
	}
	c.SetData(root)
	return nil
}

// normalizeFixture converts decoder output into canonical document values.
func normalizeFixture(v any, path string) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, invalidArgf(path, "bad number %q at %s", v, path)
		}
		return f, nil
	case int:
		return int64(v), nil
	case map[string]any:
		for k, e := range v {
			n, err := normalizeFixture(e, joinFixturePath(path, k))
			if err != nil {
				return nil, err
			}
			v[k] = n
		}
		return v, nil
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			ks := fmt.Sprint(k)
			n, err := normalizeFixture(e, joinFixturePath(path, ks))
			if err != nil {
				return nil, err
			}
			m[ks] = n
		}
		return m, nil
	case []any:
		for i, e := range v {
			n, err := normalizeFixture(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	default:
		return v, nil
	}
}

func joinFixturePath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
