package mql

import (
	"strings"

	"github.com/dosco/docorm/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const rootField = "document"

// CompileOrder returns the project / sort / replaceRoot triad. All order
// specs share one multi-key $sort, the first one added sorts first.
// Case insensitive specs sort on a lower-cased shadow key.
func CompileOrder(orders []qcode.Order) []bson.D {
	if len(orders) == 0 {
		return nil
	}

	proj := bson.D{{Key: rootField, Value: "$$ROOT"}}
	keys := make(bson.D, 0, len(orders))

	for _, o := range orders {
		if o.CaseSensitive {
			proj = append(proj, bson.E{Key: o.Column, Value: "$" + o.Column})
			keys = append(keys, bson.E{Key: o.Column, Value: o.Dir})
			continue
		}
		key := ShadowKey(o.Column)
		proj = append(proj, bson.E{Key: key, Value: bson.D{{Key: "$toLower", Value: "$" + o.Column}}})
		keys = append(keys, bson.E{Key: key, Value: o.Dir})
	}

	return []bson.D{
		{{Key: "$project", Value: proj}},
		{{Key: "$sort", Value: keys}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$" + rootField}}}},
	}
}

// ShadowKey is the name of the lower-cased copy of col used for sorting.
func ShadowKey(col string) string {
	return "__lower_" + strings.ReplaceAll(col, ".", "_")
}
