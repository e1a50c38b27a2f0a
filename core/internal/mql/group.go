package mql

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileGroup returns one $group with a composite _id holding every
// requested column and a per-group count.
func CompileGroup(cols []string) bson.D {
	if len(cols) == 0 {
		return nil
	}
	id := make(bson.D, 0, len(cols))
	for _, c := range cols {
		id = append(id, bson.E{Key: GroupKey(c), Value: "$" + c})
	}
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: id},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
}

// GroupKey is the key of col inside the group id. Dots are not allowed
// in expression field names.
func GroupKey(col string) string {
	return strings.ReplaceAll(col, ".", "_")
}
