package mql

import (
	"fmt"

	"github.com/dosco/docorm/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Compile assembles the read pipeline for st. scope holds the stages
// that limit a relation accessor to its owner and always runs first.
//
// Stage order: scope, match, order triad, group, skip, limit, relation
// lookups, select, exclude. Lookups run after the window so they only
// join the documents that are returned, and projections run last so
// the keys the lookups join on are still present.
func Compile(st *qcode.State, scope []bson.D) (mongo.Pipeline, error) {
	if st.Err != nil {
		return nil, st.Err
	}

	p, err := prefix(st, scope, true)
	if err != nil {
		return nil, err
	}

	if st.Offset > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: st.Offset}})
	}
	if st.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: st.Limit}})
	}

	p = append(p, st.Lookups...)

	if s := CompileSelect(st.Columns, st.Aliases); s != nil {
		p = append(p, s)
	}
	if s := CompileExclude(st.Excludes); s != nil {
		p = append(p, s)
	}
	return p, nil
}

// CompileCount counts the documents the read pipeline would return
// without its skip/limit window.
func CompileCount(st *qcode.State, scope []bson.D) (mongo.Pipeline, error) {
	if st.Err != nil {
		return nil, st.Err
	}
	p, err := prefix(st, scope, false)
	if err != nil {
		return nil, err
	}
	return append(p, bson.D{{Key: "$count", Value: "total"}}), nil
}

// CompileExists stops at the first matching document.
func CompileExists(st *qcode.State, scope []bson.D) (mongo.Pipeline, error) {
	if st.Err != nil {
		return nil, st.Err
	}
	p, err := prefix(st, scope, false)
	if err != nil {
		return nil, err
	}
	return append(p,
		bson.D{{Key: "$limit", Value: 1}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	), nil
}

type AggFn string

const (
	AggMax AggFn = "max"
	AggMin AggFn = "min"
	AggAvg AggFn = "avg"
	AggSum AggFn = "sum"
)

// AggregateField is the output field of CompileAggregate.
const AggregateField = "result"

// CompileAggregate reduces col over every matching document into a
// single {result: value} document.
func CompileAggregate(st *qcode.State, scope []bson.D, fn AggFn, col string) (mongo.Pipeline, error) {
	if st.Err != nil {
		return nil, st.Err
	}
	switch fn {
	case AggMax, AggMin, AggAvg, AggSum:
	default:
		return nil, fmt.Errorf("%w: aggregate %q", qcode.ErrInvalidArgument, fn)
	}
	if col == "" {
		return nil, fmt.Errorf("%w: aggregate %s needs a column", qcode.ErrInvalidArgument, fn)
	}

	p, err := prefix(st, scope, false)
	if err != nil {
		return nil, err
	}
	return append(p, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: AggregateField, Value: bson.D{{Key: "$" + string(fn), Value: "$" + col}}},
	}}}), nil
}

// prefix is everything before the skip/limit window. Ordering does not
// change counts or reductions so it is left out when ordered is false.
func prefix(st *qcode.State, scope []bson.D, ordered bool) (mongo.Pipeline, error) {
	matches, err := CompileMatch(st)
	if err != nil {
		return nil, err
	}

	p := make(mongo.Pipeline, 0, len(scope)+len(matches)+4)
	p = append(p, scope...)
	p = append(p, matches...)
	if ordered {
		p = append(p, CompileOrder(st.Orders)...)
	}

	if g := CompileGroup(st.Groups); g != nil {
		p = append(p, g)
	}
	return p, nil
}
