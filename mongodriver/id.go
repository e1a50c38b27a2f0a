package mongodriver

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CoerceID converts string ids that are valid object id hex strings into
// bson.ObjectID. Slices and arrays are converted element by element and
// returned as bson.A. Other values are returned unchanged.
func CoerceID(id any) any {
	switch v := id.(type) {
	case nil:
		return nil
	case bson.ObjectID:
		return v
	case string:
		if oid, err := bson.ObjectIDFromHex(v); err == nil {
			return oid
		}
		return v
	case []byte:
		return v
	}

	if vals, ok := ToSlice(id); ok {
		out := make(bson.A, len(vals))
		for i, e := range vals {
			out[i] = CoerceID(e)
		}
		return out
	}
	return id
}

// NormalizeID collapses the numeric types a decoded document may carry so
// ids compare equal regardless of how they were read.
func NormalizeID(id any) any {
	switch v := id.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	case float32:
		if v == float32(int64(v)) {
			return int64(v)
		}
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return id
	}
}

// IDKey returns a comparable map key for id. Two ids the database
// considers equal get the same key.
func IDKey(id any) any {
	k := NormalizeID(CoerceID(id))
	if k != nil && !reflect.TypeOf(k).Comparable() {
		return fmt.Sprintf("%T:%v", k, k)
	}
	return k
}

// ToSlice returns the elements of a slice or array value. Strings, byte
// slices and object ids are not treated as slices.
func ToSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case bson.A:
		return []any(t), true
	case string, []byte, bson.ObjectID:
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
