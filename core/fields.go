package core

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// The helpers below are pure: they return a modified copy and leave the
// input untouched. A disabled helper returns the copy unchanged.

// withCreateTimestamps sets createdAt and updatedAt unless already present.
func withCreateTimestamps(enabled bool, doc bson.M, f FieldNames, now time.Time) bson.M {
	out := cloneDoc(doc)
	if !enabled {
		return out
	}
	if _, ok := out[f.CreatedAt]; !ok {
		out[f.CreatedAt] = now
	}
	if _, ok := out[f.UpdatedAt]; !ok {
		out[f.UpdatedAt] = now
	}
	return out
}

// withUpdateTimestamp always refreshes updatedAt.
func withUpdateTimestamp(enabled bool, doc bson.M, f FieldNames, now time.Time) bson.M {
	out := cloneDoc(doc)
	if enabled {
		out[f.UpdatedAt] = now
	}
	return out
}

// withSoftDeleteDefaults marks a new document as not deleted.
func withSoftDeleteDefaults(enabled bool, doc bson.M, f FieldNames) bson.M {
	out := cloneDoc(doc)
	if !enabled {
		return out
	}
	if _, ok := out[f.IsDeleted]; !ok {
		out[f.IsDeleted] = false
	}
	if _, ok := out[f.DeletedAt]; !ok {
		out[f.DeletedAt] = nil
	}
	return out
}

func softDeleteSet(f FieldNames, now time.Time) bson.M {
	return bson.M{f.IsDeleted: true, f.DeletedAt: now}
}

func restoreSet(f FieldNames) bson.M {
	return bson.M{f.IsDeleted: false, f.DeletedAt: nil}
}

func cloneDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc)+4)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// toDoc converts a struct or map into a bson.M using the bson tags of v.
func toDoc(v any) (bson.M, error) {
	switch d := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil document", ErrInvalidArgument)
	case bson.M:
		return cloneDoc(d), nil
	case map[string]any:
		return cloneDoc(d), nil
	case bson.D:
		out := make(bson.M, len(d))
		for _, e := range d {
			out[e.Key] = e.Value
		}
		return out, nil
	}

	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromDoc decodes doc into a new T.
func fromDoc[T any](doc bson.M) (*T, error) {
	var out T
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// fieldValue reads a dotted path from doc.
func fieldValue(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case bson.M:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range m {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}
