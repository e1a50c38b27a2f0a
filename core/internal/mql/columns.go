package mql

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileSelect returns the inclusion $project for cols, keeping the
// eager loaded relation aliases visible. Nil when nothing was selected.
func CompileSelect(cols, aliases []string) bson.D {
	if len(cols) == 0 {
		return nil
	}
	p := make(bson.D, 0, len(cols)+len(aliases))
	seen := make(map[string]struct{}, len(cols)+len(aliases))

	for _, list := range [][]string{cols, aliases} {
		for _, c := range list {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			p = append(p, bson.E{Key: c, Value: 1})
		}
	}
	return bson.D{{Key: "$project", Value: p}}
}

// CompileExclude returns the exclusion $project for cols. It is always a
// separate stage from the inclusion one.
func CompileExclude(cols []string) bson.D {
	if len(cols) == 0 {
		return nil
	}
	p := make(bson.D, 0, len(cols))
	for _, c := range cols {
		p = append(p, bson.E{Key: c, Value: 0})
	}
	return bson.D{{Key: "$project", Value: p}}
}
