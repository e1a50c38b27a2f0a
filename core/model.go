package core

import (
	"fmt"

	"github.com/dosco/docorm/core/internal/mql"
	"github.com/dosco/docorm/core/internal/qcode"
	"github.com/dosco/docorm/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Model is a query builder for documents of type T stored as described
// by a Schema. Chain methods record the query, terminal methods run it
// and reset the builder so it can be reused for the next chain.
//
// A Model is not safe for concurrent use, create one per goroutine.
type Model[T any] struct {
	db     *DB
	schema *Schema
	st     qcode.State

	// scope limits a relation accessor to its owner, it survives reset.
	scope []bson.D
}

// For creates a builder for schema s.
func For[T any](db *DB, s *Schema) *Model[T] {
	m := &Model[T]{db: db, schema: s}
	m.st = qcode.State{
		Connection: s.connection,
		Database:   s.database,
		Collection: s.collection,
		SoftDelete: s.softDelete,
		Timestamps: s.timestamps,
		Fields:     db.conf.Fields.qcode(),
	}
	return m
}

func (m *Model[T]) Schema() *Schema { return m.schema }

func (m *Model[T]) reset() {
	m.st.Reset()
}

// Where adds an and-clause. op is one of = != > < >= <= in notIn like
// between.
func (m *Model[T]) Where(col, op string, val any) *Model[T] {
	m.st.AddWhere(col, op, val, qcode.BoolAnd)
	return m
}

// OrWhere adds an or-clause. When and-clauses are also present they
// form one more alternative: (and-clauses) OR or-clause OR ...
func (m *Model[T]) OrWhere(col, op string, val any) *Model[T] {
	m.st.AddWhere(col, op, val, qcode.BoolOr)
	return m
}

func (m *Model[T]) WhereIn(col string, vals any) *Model[T] {
	return m.Where(col, string(qcode.OpIn), vals)
}

func (m *Model[T]) WhereNotIn(col string, vals any) *Model[T] {
	return m.Where(col, string(qcode.OpNotIn), vals)
}

func (m *Model[T]) WhereBetween(col string, from, to any) *Model[T] {
	return m.Where(col, string(qcode.OpBetween), []any{from, to})
}

// WhereLike matches a LIKE pattern case-insensitively. The pattern is
// anchored at both ends, % matches any run of characters and _ matches
// one, so "an" only matches "an" while "%an%" also matches "Joanne".
func (m *Model[T]) WhereLike(col, pattern string) *Model[T] {
	return m.Where(col, string(qcode.OpLike), pattern)
}

// Select limits the returned fields.
func (m *Model[T]) Select(cols ...string) *Model[T] {
	m.st.AddColumns(cols...)
	return m
}

// Exclude removes fields from the result.
func (m *Model[T]) Exclude(cols ...string) *Model[T] {
	m.st.AddExcludes(cols...)
	return m
}

// OrderBy sorts by col, dir is "asc" or "desc". Repeated calls add
// lower priority keys.
func (m *Model[T]) OrderBy(col, dir string) *Model[T] {
	m.st.AddOrder(col, dir, true)
	return m
}

// OrderByIgnoreCase sorts by the lower-cased value of a string field.
func (m *Model[T]) OrderByIgnoreCase(col, dir string) *Model[T] {
	m.st.AddOrder(col, dir, false)
	return m
}

// GroupBy groups on the given columns. Results carry the composite key
// in _id and the group size in count.
func (m *Model[T]) GroupBy(cols ...string) *Model[T] {
	m.st.AddGroup(cols...)
	return m
}

func (m *Model[T]) Skip(n int64) *Model[T] {
	if n < 0 {
		m.st.SetErr(fmt.Errorf("%w: negative skip %d", ErrInvalidArgument, n))
		return m
	}
	m.st.Offset = n
	return m
}

func (m *Model[T]) Limit(n int64) *Model[T] {
	if n < 0 {
		m.st.SetErr(fmt.Errorf("%w: negative limit %d", ErrInvalidArgument, n))
		return m
	}
	m.st.Limit = n
	return m
}

// WithTrashed includes soft deleted documents.
func (m *Model[T]) WithTrashed() *Model[T] {
	m.st.WithTrashed = true
	return m
}

// OnlyTrashed returns soft deleted documents only.
func (m *Model[T]) OnlyTrashed() *Model[T] {
	m.st.OnlyTrashed = true
	return m
}

// SortKey orders the documents of an eager loaded relation.
type SortKey struct {
	Column string
	Dir    string
}

// RelationOptions tune an eager loaded relation. Select and Exclude
// apply to the related documents only.
type RelationOptions struct {
	Select  []string
	Exclude []string
	Sort    []SortKey
	Skip    int64
	Limit   int64
}

// With eager loads the named relations.
func (m *Model[T]) With(aliases ...string) *Model[T] {
	for _, a := range aliases {
		m.with(a, nil)
	}
	return m
}

// WithOptions eager loads one relation with options.
func (m *Model[T]) WithOptions(alias string, opts RelationOptions) *Model[T] {
	so := &sdata.Options{
		Select:  opts.Select,
		Exclude: opts.Exclude,
		Skip:    opts.Skip,
		Limit:   opts.Limit,
	}
	for _, s := range opts.Sort {
		dir, err := qcode.ParseDir(s.Dir)
		if err != nil {
			m.st.SetErr(err)
			return m
		}
		so.Sort = append(so.Sort, sdata.SortKey{Column: s.Column, Dir: dir})
	}
	m.with(alias, so)
	return m
}

func (m *Model[T]) with(alias string, opts *sdata.Options) {
	rel, _, err := m.schema.relation(alias, m.db.conf.Fields)
	if err != nil {
		m.st.SetErr(err)
		return
	}
	stages, err := mql.Lookup(rel, opts)
	if err != nil {
		m.st.SetErr(err)
		return
	}
	m.st.AddLookup(alias, stages)
}

// Pipeline returns the read pipeline the current chain compiles to
// without running it. The builder is reset.
func (m *Model[T]) Pipeline() (mongo.Pipeline, error) {
	defer m.reset()
	return mql.Compile(&m.st, m.scope)
}
