package qcode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOperator = errors.New("invalid operator")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Boolean joins a where clause to the ones before it.
type Boolean int8

const (
	BoolAnd Boolean = iota
	BoolOr
)

func (b Boolean) String() string {
	if b == BoolOr {
		return "or"
	}
	return "and"
}

// CostClass orders clauses inside a partition. It is an execution hint
// for the server, it never changes which documents match.
type CostClass int8

const (
	CostEquality   CostClass = iota // E
	CostRange                       // R
	CostStructural                  // S
)

func (c CostClass) String() string {
	switch c {
	case CostEquality:
		return "E"
	case CostRange:
		return "R"
	default:
		return "S"
	}
}

type ExpOp string

const (
	OpEquals          ExpOp = "="
	OpNotEquals       ExpOp = "!="
	OpGreaterThan     ExpOp = ">"
	OpLesserThan      ExpOp = "<"
	OpGreaterOrEquals ExpOp = ">="
	OpLesserOrEquals  ExpOp = "<="
	OpIn              ExpOp = "in"
	OpNotIn           ExpOp = "notIn"
	OpLike            ExpOp = "like"
	OpBetween         ExpOp = "between"
)

type opInfo struct {
	mop  string
	cost CostClass
}

// opTable is the fixed operator symbol table. Between has no direct
// operator, it is rendered as a $gte/$lte pair.
var opTable = map[ExpOp]opInfo{
	OpEquals:          {"$eq", CostEquality},
	OpIn:              {"$in", CostEquality},
	OpNotEquals:       {"$ne", CostRange},
	OpGreaterThan:     {"$gt", CostRange},
	OpLesserThan:      {"$lt", CostRange},
	OpGreaterOrEquals: {"$gte", CostRange},
	OpLesserOrEquals:  {"$lte", CostRange},
	OpNotIn:           {"$nin", CostRange},
	OpBetween:         {"", CostRange},
	OpLike:            {"$regex", CostStructural},
}

// ParseOp validates an operator token against the symbol table.
func ParseOp(token string) (ExpOp, error) {
	op := ExpOp(strings.TrimSpace(token))
	if _, ok := opTable[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, token)
	}
	return op, nil
}

// MongoOp returns the query operator for op, e.g. "$gte" for ">=".
func (op ExpOp) MongoOp() (string, error) {
	info, ok := opTable[op]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, string(op))
	}
	return info.mop, nil
}

func (op ExpOp) Cost() CostClass {
	return opTable[op].cost
}

// Where is a single accumulated where clause.
type Where struct {
	Column string
	Op     ExpOp
	Value  any
	Bool   Boolean
	Cost   CostClass
}

// Order is one orderBy call. Dir is 1 or -1.
type Order struct {
	Column        string
	Dir           int
	CaseSensitive bool
}

// ParseDir turns "asc"/"desc" into 1/-1.
func ParseDir(dir string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return 1, nil
	case "desc":
		return -1, nil
	default:
		return 0, fmt.Errorf("%w: order direction %q", ErrInvalidArgument, dir)
	}
}
