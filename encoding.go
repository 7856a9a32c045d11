package firemock

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// structTag names the struct tag that controls field names when documents
// are converted to and from Go structs, mirroring the real client.
const structTag = "firestore"

type encodingMethod int

const (
	MsgPack encodingMethod = iota
	JSON
)

func (enc encodingMethod) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("encoding(%d)", int(enc))
	}
}

func (enc encodingMethod) Encode(v any) ([]byte, error) {
	switch enc {
	case MsgPack:
		var buf bytes.Buffer
		e := msgpack.GetEncoder()
		e.Reset(&buf)
		e.SetCustomStructTag(structTag)
		e.SetSortMapKeys(true)
		err := e.Encode(v)
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
		}
		return buf.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
		}
		return raw, nil
	default:
		panic("unsupported encoding")
	}
}

func (enc encodingMethod) Decode(buf []byte, ptr any) error {
	switch enc {
	case MsgPack:
		d := msgpack.GetDecoder()
		d.Reset(bytes.NewReader(buf))
		d.SetCustomStructTag(structTag)
		d.UseLooseInterfaceDecoding(true)
		err := d.Decode(ptr)
		msgpack.PutDecoder(d)
		if err != nil {
			return fmt.Errorf("failed to decode msgpack into %T: %w", ptr, err)
		}
		return nil
	case JSON:
		if err := json.Unmarshal(buf, ptr); err != nil {
			return fmt.Errorf("failed to decode JSON into %T: %w", ptr, err)
		}
		return nil
	default:
		panic("unsupported encoding")
	}
}

// toFields converts caller-supplied document data into a private field map.
// Maps are deep-copied. Structs and other maps go through msgpack, honoring
// `firestore:"name"` tags. Transform sentinels only survive in
// map[string]any payloads.
func toFields(path string, data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return nil, invalidArgf(path, "document data must not be nil")
	case map[string]any:
		return cloneDoc(d)
	}

	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, invalidArgf(path, "document data must not be a nil %T", data)
		}
		rv = rv.Elem()
	}
	switch {
	case rv.Kind() == reflect.Struct:
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
	default:
		return nil, invalidArgf(path, "cannot use %T as document data; need a map or a struct", data)
	}

	raw, err := MsgPack.Encode(rv.Interface())
	if err != nil {
		return nil, errf(codeFor(err), path, err, "cannot convert %T to document data", data)
	}
	var fields map[string]any
	if err := MsgPack.Decode(raw, &fields); err != nil {
		return nil, errf(codeFor(err), path, err, "cannot convert %T to document data", data)
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	return fields, nil
}

// fromFields fills the struct or map pointed to by ptr from document fields.
func fromFields(path string, fields map[string]any, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return invalidArgf(path, "DataTo needs a non-nil pointer, got %T", ptr)
	}
	raw, err := MsgPack.Encode(fields)
	if err != nil {
		return errf(codeFor(err), path, err, "cannot convert document to %T", ptr)
	}
	if err := MsgPack.Decode(raw, ptr); err != nil {
		return errf(codeFor(err), path, err, "cannot convert document to %T", ptr)
	}
	return nil
}
