package mql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dosco/docorm/core/internal/qcode"
	"github.com/dosco/docorm/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileMatch turns the id and where clauses of st into $match stages.
// The id match always comes first. Clauses are partitioned by boolean
// and each partition is ordered by cost class. When both partitions are
// present the and-group becomes one more element of the $or array.
func CompileMatch(st *qcode.State) ([]bson.D, error) {
	var stages []bson.D

	if st.HasID {
		stages = append(stages, match(bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: mongodriver.CoerceID(st.ID)}}}}))
	}

	var ands, ors []qcode.Where
	for _, w := range st.Wheres {
		if w.Bool == qcode.BoolOr {
			ors = append(ors, w)
		} else {
			ands = append(ands, w)
		}
	}
	sortByCost(ands)
	sortByCost(ors)

	andExp, err := renderList(ands)
	if err != nil {
		return nil, err
	}
	orExp, err := renderList(ors)
	if err != nil {
		return nil, err
	}
	sd, hasSD := st.SoftDeleteFilter()

	var filter bson.D

	switch {
	case len(orExp) == 0 && len(andExp) == 0:
		if hasSD {
			filter = bson.D{sd}
		}

	case len(orExp) == 0:
		if hasSD {
			andExp = append(andExp, bson.D{sd})
		}
		filter = bson.D{{Key: "$and", Value: andExp}}

	default:
		if len(andExp) != 0 {
			orExp = append(orExp, bson.D{{Key: "$and", Value: andExp}})
		}
		filter = bson.D{{Key: "$or", Value: orExp}}
		// the visibility rule must hold for every disjunct
		if hasSD {
			filter = bson.D{{Key: "$and", Value: bson.A{filter, bson.D{sd}}}}
		}
	}

	if filter != nil {
		stages = append(stages, match(filter))
	}
	return stages, nil
}

// Filter merges the $match stages of st into one plain filter document
// for the write operations.
func Filter(st *qcode.State) (bson.D, error) {
	stages, err := CompileMatch(st)
	if err != nil {
		return nil, err
	}
	return MergeMatches(stages), nil
}

// MergeMatches returns the inner documents of $match stages joined
// with $and. Stages that are not $match are ignored.
func MergeMatches(stages []bson.D) bson.D {
	var inner bson.A
	for _, s := range stages {
		if len(s) == 1 && s[0].Key == "$match" {
			inner = append(inner, s[0].Value)
		}
	}
	switch len(inner) {
	case 0:
		return bson.D{}
	case 1:
		return inner[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: inner}}
	}
}

func sortByCost(list []qcode.Where) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Cost < list[j].Cost
	})
}

func renderList(list []qcode.Where) (bson.A, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make(bson.A, 0, len(list))
	for _, w := range list {
		exp, err := renderExp(w)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.D{exp})
	}
	return out, nil
}

func renderExp(w qcode.Where) (bson.E, error) {
	val := w.Value
	if w.Column == "_id" {
		val = mongodriver.CoerceID(val)
	}

	switch w.Op {
	case qcode.OpIn, qcode.OpNotIn:
		list, ok := mongodriver.ToSlice(val)
		if !ok {
			return bson.E{}, fmt.Errorf("%w: %s %s expects a list, got %T",
				qcode.ErrInvalidArgument, w.Column, w.Op, w.Value)
		}
		mop, _ := w.Op.MongoOp()
		return bson.E{Key: w.Column, Value: bson.D{{Key: mop, Value: bson.A(list)}}}, nil

	case qcode.OpBetween:
		list, ok := mongodriver.ToSlice(val)
		if !ok || len(list) != 2 {
			return bson.E{}, fmt.Errorf("%w: %s between expects two values",
				qcode.ErrInvalidArgument, w.Column)
		}
		return bson.E{Key: w.Column, Value: bson.D{
			{Key: "$gte", Value: list[0]},
			{Key: "$lte", Value: list[1]},
		}}, nil

	case qcode.OpLike:
		s, ok := val.(string)
		if !ok {
			return bson.E{}, fmt.Errorf("%w: %s like expects a string, got %T",
				qcode.ErrInvalidArgument, w.Column, w.Value)
		}
		return bson.E{Key: w.Column, Value: bson.D{
			{Key: "$regex", Value: LikePattern(s)},
			{Key: "$options", Value: "i"},
		}}, nil
	}

	mop, err := w.Op.MongoOp()
	if err != nil {
		return bson.E{}, err
	}
	return bson.E{Key: w.Column, Value: bson.D{{Key: mop, Value: val}}}, nil
}

// LikePattern translates a LIKE pattern into an anchored regular
// expression: % matches any run of characters and _ a single one.
func LikePattern(input string) string {
	const percent = "\x00"
	const underscore = "\x01"

	safe := strings.ReplaceAll(input, "%", percent)
	safe = strings.ReplaceAll(safe, "_", underscore)
	safe = regexp.QuoteMeta(safe)
	safe = strings.ReplaceAll(safe, percent, ".*")
	safe = strings.ReplaceAll(safe, underscore, ".")
	return "^" + safe + "$"
}

func match(filter bson.D) bson.D {
	return bson.D{{Key: "$match", Value: filter}}
}
