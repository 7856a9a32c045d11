package firemock

import (
	"bytes"
	"cmp"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/tiendc/go-deepcopy"
	"google.golang.org/grpc/codes"
)

// cloneDoc returns a deep copy of a document. Canonical containers
// (map[string]any and []any) are copied recursively; other reference-typed
// leaves are copied with go-deepcopy so that their concrete types survive.
func cloneDoc(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		c, err := cloneValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = c
	}
	return out, nil
}

func cloneList(list []any) ([]any, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]any, len(list))
	for i, v := range list {
		c, err := cloneValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func cloneValue(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, time.Time:
		return v, nil
	case map[string]any:
		return cloneDoc(v)
	case []any:
		return cloneList(v)
	case []byte:
		return slices.Clone(v), nil
	case Transform, *DocumentRef:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Array, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice || rv.Kind() == reflect.Pointer) && rv.IsNil() {
			return v, nil
		}
		src := v
		if rv.Kind() == reflect.Struct || rv.Kind() == reflect.Array {
			// unexported struct fields are only copied from a pointer
			p := reflect.New(rv.Type())
			p.Elem().Set(rv)
			src = p.Interface()
		}
		dst := reflect.New(rv.Type())
		if err := deepcopy.Copy(dst.Interface(), src); err != nil {
			return nil, errf(codes.InvalidArgument, "", err, "cannot copy value of type %T", v)
		}
		return dst.Elem().Interface(), nil
	default:
		return v, nil
	}
}

// asList returns the elements of any slice or array value except []byte.
func asList(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// number classifies v as an integer or a floating point value.
func number(v any) (i int64, f float64, isInt bool, ok bool) {
	if v == nil {
		return 0, 0, false, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), float64(rv.Int()), true, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, float64(u), false, true
		}
		return int64(u), float64(u), true, true
	case reflect.Float32, reflect.Float64:
		return 0, rv.Float(), false, true
	default:
		return 0, 0, false, false
	}
}

func isNumber(v any) bool {
	_, _, _, ok := number(v)
	return ok
}

// addNumbers returns a+b. When both operands share a type and the sum fits
// it, the result keeps that type; otherwise integers widen to int64 and
// anything involving a float becomes float64. An int64 overflow falls back
// to float64.
func addNumbers(a, b any) (any, bool) {
	ai, af, aInt, ok := number(a)
	if !ok {
		return nil, false
	}
	bi, bf, bInt, ok := number(b)
	if !ok {
		return nil, false
	}
	sameType := reflect.TypeOf(a) == reflect.TypeOf(b)
	if aInt && bInt {
		sum := ai + bi
		if (bi > 0 && sum < ai) || (bi < 0 && sum > ai) {
			return af + bf, true
		}
		if sameType && fitsType(reflect.TypeOf(a), sum) {
			return reflect.ValueOf(sum).Convert(reflect.TypeOf(a)).Interface(), true
		}
		return sum, true
	}
	sum := af + bf
	if sameType && fitsFloatType(reflect.TypeOf(a), sum) {
		return reflect.ValueOf(sum).Convert(reflect.TypeOf(a)).Interface(), true
	}
	return sum, true
}

func fitsType(typ reflect.Type, n int64) bool {
	zero := reflect.Zero(typ)
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return !zero.OverflowInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return n >= 0 && !zero.OverflowUint(uint64(n))
	}
	return false
}

func fitsFloatType(typ reflect.Type, f float64) bool {
	switch typ.Kind() {
	case reflect.Float32, reflect.Float64:
		return !reflect.Zero(typ).OverflowFloat(f)
	}
	return false
}

// equalValues compares field values the way the query engine does: numbers
// compare by value regardless of Go type, lists and maps compare
// element-wise.
func equalValues(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b) == 0
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ra, ok := a.(*DocumentRef); ok {
		rb, ok := b.(*DocumentRef)
		return ok && ra != nil && rb != nil && ra.Path == rb.Path
	}
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, found := mb[k]
			if !found || !equalValues(va, vb) {
				return false
			}
		}
		return true
	}
	if la, ok := asList(a); ok {
		lb, ok := asList(b)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func indexOfValue(list []any, v any) int {
	return slices.IndexFunc(list, func(e any) bool {
		return equalValues(e, v)
	})
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankBytes
	rankRef
	rankList
	rankMap
	rankOther
)

// typeRank follows the cross-type ordering of Firestore values.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	case string:
		return rankString
	case []byte:
		return rankBytes
	case *DocumentRef:
		return rankRef
	case map[string]any:
		return rankMap
	}
	if isNumber(v) {
		return rankNumber
	}
	if _, ok := asList(v); ok {
		return rankList
	}
	return rankOther
}

func compareNumbers(a, b any) int {
	ai, af, aInt, _ := number(a)
	bi, bf, bInt, _ := number(b)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(af, bf)
}

// compareValues orders any two field values. Values of different kinds
// order by kind rank.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNull, rankOther:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		return compareNumbers(a, b)
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankRef:
		return strings.Compare(a.(*DocumentRef).Path, b.(*DocumentRef).Path)
	case rankList:
		la, _ := asList(a)
		lb, _ := asList(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := compareValues(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(la), len(lb))
	case rankMap:
		ma, mb := a.(map[string]any), b.(map[string]any)
		ka, kb := sortedKeys(ma), sortedKeys(mb)
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := strings.Compare(ka[i], kb[i]); c != 0 {
				return c
			}
			if c := compareValues(ma[ka[i]], mb[kb[i]]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ka), len(kb))
	}
	return 0
}

// sameKind reports whether range operators can be applied between a and b.
func sameKind(a, b any) bool {
	return typeRank(a) == typeRank(b) && typeRank(a) != rankOther
}
