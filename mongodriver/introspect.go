package mongodriver

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const defaultSampleSize = 100

// FieldInfo describes a top level field found by sampling a collection.
type FieldInfo struct {
	Name     string
	BSONType string
	Seen     int
	IsArray  bool
	// RefHint is set for fields that look like references to another
	// document, e.g. "userId" or "commentableId".
	RefHint string
}

// InferFields samples up to sampleSize documents and reports the fields
// found, sorted by name. The first non null value decides a field's type.
func InferFields(ctx context.Context, coll Collection, sampleSize int) ([]FieldInfo, error) {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: sampleSize}}}},
	}

	var docs []bson.M
	if err := coll.Aggregate(ctx, pipeline, &docs); err != nil {
		return nil, err
	}

	fields := make(map[string]*FieldInfo)
	for _, doc := range docs {
		for key, val := range doc {
			fi, ok := fields[key]
			if !ok {
				fi = &FieldInfo{Name: key, BSONType: "null", RefHint: refHint(key)}
				fields[key] = fi
			}
			fi.Seen++
			if fi.BSONType == "null" {
				fi.BSONType = inferBSONType(val)
				fi.IsArray = fi.BSONType == "array"
			}
		}
	}

	out := make([]FieldInfo, 0, len(fields))
	for _, fi := range fields {
		out = append(out, *fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// inferBSONType determines the BSON type from a decoded value.
func inferBSONType(v any) string {
	if v == nil {
		return "null"
	}

	switch val := v.(type) {
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32:
		return "int"
	case int, int64:
		return "long"
	case float32, float64:
		return "double"
	case bson.Decimal128:
		return "decimal"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.A, []any:
		return "array"
	case bson.M, bson.D, map[string]any:
		return "object"
	case bson.Binary:
		return "binData"
	default:
		rt := reflect.TypeOf(val)
		if rt.Kind() == reflect.Slice {
			return "array"
		}
		if rt.Kind() == reflect.Map || rt.Kind() == reflect.Struct {
			return "object"
		}
		return "string"
	}
}

// refHint reports the owner name of a reference-like field. It is only a
// hint, relationships are always declared explicitly.
func refHint(field string) string {
	if field == "_id" || len(field) <= 2 || !strings.HasSuffix(field, "Id") {
		return ""
	}
	return strings.TrimSuffix(field, "Id")
}
