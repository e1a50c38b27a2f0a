package qcode

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldNames are the document fields used for timestamps and soft deletes.
type FieldNames struct {
	CreatedAt string
	UpdatedAt string
	IsDeleted string
	DeletedAt string
}

// State is the mutable state of one builder call chain. The identity
// fields (connection, database, collection, field names and the soft
// delete / timestamp switches) survive Reset, everything else does not.
type State struct {
	Connection string
	Database   string
	Collection string
	SoftDelete bool
	Timestamps bool
	Fields     FieldNames

	ID       any
	HasID    bool
	Columns  []string
	Excludes []string
	Wheres   []Where
	Orders   []Order
	Groups   []string

	WithTrashed bool
	OnlyTrashed bool

	Offset int64
	Limit  int64

	Lookups []bson.D
	Aliases []string

	// Err holds the first builder error, it is returned by the next
	// terminal call before any round trip.
	Err error
}

// Reset clears all per-call state.
func (st *State) Reset() {
	*st = State{
		Connection: st.Connection,
		Database:   st.Database,
		Collection: st.Collection,
		SoftDelete: st.SoftDelete,
		Timestamps: st.Timestamps,
		Fields:     st.Fields,
	}
}

// SetErr records err unless an earlier error is already pending.
func (st *State) SetErr(err error) {
	if st.Err == nil {
		st.Err = err
	}
}

// AddWhere validates the operator and appends a clause.
func (st *State) AddWhere(col, token string, val any, b Boolean) {
	op, err := ParseOp(token)
	if err != nil {
		st.SetErr(err)
		return
	}
	st.Wheres = append(st.Wheres, Where{
		Column: col,
		Op:     op,
		Value:  val,
		Bool:   b,
		Cost:   op.Cost(),
	})
}

// AddOrder appends an order spec, repeated columns keep their first position.
func (st *State) AddOrder(col, dir string, caseSensitive bool) {
	d, err := ParseDir(dir)
	if err != nil {
		st.SetErr(err)
		return
	}
	for i := range st.Orders {
		if st.Orders[i].Column == col {
			st.Orders[i].Dir = d
			st.Orders[i].CaseSensitive = caseSensitive
			return
		}
	}
	st.Orders = append(st.Orders, Order{Column: col, Dir: d, CaseSensitive: caseSensitive})
}

// AddGroup adds a key to the composite group id.
func (st *State) AddGroup(cols ...string) {
	for _, c := range cols {
		if !contains(st.Groups, c) {
			st.Groups = append(st.Groups, c)
		}
	}
}

// AddColumns and AddExcludes accumulate projection lists without duplicates.
func (st *State) AddColumns(cols ...string) {
	for _, c := range cols {
		if !contains(st.Columns, c) {
			st.Columns = append(st.Columns, c)
		}
	}
}

func (st *State) AddExcludes(cols ...string) {
	for _, c := range cols {
		if !contains(st.Excludes, c) {
			st.Excludes = append(st.Excludes, c)
		}
	}
}

// AddLookup appends the stages produced for one eager loaded relation.
func (st *State) AddLookup(alias string, stages []bson.D) {
	if contains(st.Aliases, alias) {
		return
	}
	st.Aliases = append(st.Aliases, alias)
	st.Lookups = append(st.Lookups, stages...)
}

// SoftDeleteFilter returns the visibility condition, ok is false when
// every document is visible.
func (st *State) SoftDeleteFilter() (e bson.E, ok bool) {
	if !st.SoftDelete {
		return e, false
	}
	switch {
	case st.OnlyTrashed:
		return bson.E{Key: st.Fields.IsDeleted, Value: bson.D{{Key: "$eq", Value: true}}}, true
	case st.WithTrashed:
		return e, false
	default:
		return bson.E{Key: st.Fields.IsDeleted, Value: bson.D{{Key: "$eq", Value: false}}}, true
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
