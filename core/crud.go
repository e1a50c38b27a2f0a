package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dosco/docorm/core/internal/mql"
	"github.com/dosco/docorm/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Every terminal method resets the builder on return, whether it
// succeeds or fails.

// Get returns every matching document.
func (m *Model[T]) Get(ctx context.Context) ([]T, error) {
	defer m.reset()
	return m.get(ctx, "get")
}

// All returns every visible document, ignoring where clauses and the
// skip/limit window of the chain.
func (m *Model[T]) All(ctx context.Context) ([]T, error) {
	defer m.reset()
	m.st.Wheres = nil
	m.st.ID, m.st.HasID = nil, false
	m.st.Offset, m.st.Limit = 0, 0
	return m.get(ctx, "all")
}

// First returns the first matching document or nil.
func (m *Model[T]) First(ctx context.Context) (*T, error) {
	defer m.reset()
	return m.first(ctx, "first")
}

// FirstOrFail is First with ErrNotFound instead of nil.
func (m *Model[T]) FirstOrFail(ctx context.Context) (*T, error) {
	defer m.reset()
	v, err := m.first(ctx, "firstOrFail")
	if err == nil && v == nil {
		err = m.db.fail("firstOrFail", m.schema, ErrNotFound)
	}
	return v, err
}

// Find returns the document with the given _id or nil. Hex strings are
// converted to object ids.
func (m *Model[T]) Find(ctx context.Context, id any) (*T, error) {
	defer m.reset()
	m.st.ID, m.st.HasID = id, true
	return m.first(ctx, "find")
}

// FindOrFail is Find with ErrNotFound instead of nil.
func (m *Model[T]) FindOrFail(ctx context.Context, id any) (*T, error) {
	defer m.reset()
	m.st.ID, m.st.HasID = id, true
	v, err := m.first(ctx, "findOrFail")
	if err == nil && v == nil {
		err = m.db.fail("findOrFail", m.schema, ErrNotFound)
	}
	return v, err
}

// Sole returns the only matching document. It fails with ErrItemNotFound
// or ErrMultipleItemsFound otherwise.
func (m *Model[T]) Sole(ctx context.Context) (*T, error) {
	defer m.reset()
	m.st.Limit = 2
	items, err := m.get(ctx, "sole")
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, m.db.fail("sole", m.schema, ErrItemNotFound)
	case 1:
		return &items[0], nil
	default:
		return nil, m.db.fail("sole", m.schema, ErrMultipleItemsFound)
	}
}

// Exists reports whether any document matches.
func (m *Model[T]) Exists(ctx context.Context) (bool, error) {
	defer m.reset()
	p, err := mql.CompileExists(&m.st, m.scope)
	if err != nil {
		return false, m.db.fail("exists", m.schema, err)
	}
	var docs []bson.M
	if err := m.aggregate(ctx, "exists", p, &docs); err != nil {
		return false, err
	}
	return len(docs) != 0, nil
}

// Pluck returns the value of col, a dotted path, for every matching
// document that has it.
func (m *Model[T]) Pluck(ctx context.Context, col string) ([]any, error) {
	defer m.reset()
	p, err := mql.Compile(&m.st, m.scope)
	if err != nil {
		return nil, m.db.fail("pluck", m.schema, err)
	}
	var docs []bson.M
	if err := m.aggregate(ctx, "pluck", p, &docs); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		if v, ok := fieldValue(d, col); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Count returns the number of matching documents, ignoring skip/limit.
func (m *Model[T]) Count(ctx context.Context) (int64, error) {
	defer m.reset()
	return m.count(ctx, "count")
}

func (m *Model[T]) Max(ctx context.Context, col string) (any, error) {
	defer m.reset()
	return m.reduce(ctx, mql.AggMax, col)
}

func (m *Model[T]) Min(ctx context.Context, col string) (any, error) {
	defer m.reset()
	return m.reduce(ctx, mql.AggMin, col)
}

// Avg returns the mean of col, 0 when nothing matched.
func (m *Model[T]) Avg(ctx context.Context, col string) (float64, error) {
	defer m.reset()
	v, err := m.reduce(ctx, mql.AggAvg, col)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

// Sum returns the total of col, 0 when nothing matched.
func (m *Model[T]) Sum(ctx context.Context, col string) (float64, error) {
	defer m.reset()
	v, err := m.reduce(ctx, mql.AggSum, col)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

// PageMeta describes one page of a paginated read.
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int64 `json:"page"`
	Limit    int64 `json:"limit"`
	LastPage int64 `json:"lastPage"`
}

type Paginated[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// Paginate returns page (starting at 1) of size limit along with the
// total number of matching documents.
func (m *Model[T]) Paginate(ctx context.Context, page, limit int64) (*Paginated[T], error) {
	defer m.reset()
	if page < 1 || limit < 1 {
		return nil, m.db.fail("paginate", m.schema,
			fmt.Errorf("%w: page %d limit %d", ErrInvalidArgument, page, limit))
	}
	m.st.Offset = (page - 1) * limit
	m.st.Limit = limit

	data, err := m.get(ctx, "paginate")
	if err != nil {
		return nil, err
	}
	total, err := m.count(ctx, "paginate")
	if err != nil {
		return nil, err
	}

	return &Paginated[T]{
		Data: data,
		Meta: PageMeta{
			Total:    total,
			Page:     page,
			Limit:    limit,
			LastPage: int64(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// Insert stores doc, a T or a map, and returns it with its _id.
func (m *Model[T]) Insert(ctx context.Context, doc any) (*T, error) {
	defer m.reset()
	d, err := m.insert(ctx, "insert", doc)
	if err != nil {
		return nil, err
	}
	v, err := fromDoc[T](d)
	if err != nil {
		return nil, m.db.fail("insert", m.schema, err)
	}
	return v, nil
}

// InsertMany stores docs and returns their ids in order.
func (m *Model[T]) InsertMany(ctx context.Context, docs ...any) ([]any, error) {
	defer m.reset()
	if m.st.Err != nil {
		return nil, m.db.fail("insertMany", m.schema, m.st.Err)
	}

	now := m.db.now()
	list := make([]any, 0, len(docs))
	for _, doc := range docs {
		d, err := m.prepareInsert(doc, now)
		if err != nil {
			return nil, m.db.fail("insertMany", m.schema, err)
		}
		list = append(list, d)
	}

	coll, err := m.db.collection(m.schema)
	if err != nil {
		return nil, m.db.fail("insertMany", m.schema, err)
	}
	ids, err := coll.InsertMany(ctx, list)
	if err != nil {
		return nil, m.db.fail("insertMany", m.schema, err)
	}
	return ids, nil
}

// Update applies changes to the first matching document and returns the
// updated document. It fails with ErrNotFound when nothing matched.
func (m *Model[T]) Update(ctx context.Context, changes any) (*T, error) {
	defer m.reset()
	set, err := toDoc(changes)
	if err != nil {
		return nil, m.db.fail("update", m.schema, err)
	}
	var out T
	if err := m.update(ctx, "update", set, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMany applies changes to every matching document and returns the
// number modified.
func (m *Model[T]) UpdateMany(ctx context.Context, changes any) (int64, error) {
	defer m.reset()
	set, err := toDoc(changes)
	if err != nil {
		return 0, m.db.fail("updateMany", m.schema, err)
	}
	delete(set, "_id")
	if len(set) == 0 {
		return 0, m.db.fail("updateMany", m.schema, fmt.Errorf("%w: no changes", ErrInvalidArgument))
	}
	return m.updateMany(ctx, "updateMany", withUpdateTimestamp(m.st.Timestamps, set, m.db.conf.Fields, m.db.now()))
}

// Delete removes the matching documents, or flags them as deleted when
// the schema uses soft deletes. It returns the number affected.
func (m *Model[T]) Delete(ctx context.Context) (int64, error) {
	defer m.reset()
	return m.delete(ctx, "delete")
}

// Destroy deletes the documents with the given ids.
func (m *Model[T]) Destroy(ctx context.Context, ids ...any) (int64, error) {
	defer m.reset()
	if len(ids) == 0 {
		return 0, m.db.fail("destroy", m.schema, fmt.Errorf("%w: no ids", ErrInvalidArgument))
	}
	m.WhereIn("_id", ids)
	return m.delete(ctx, "destroy")
}

// ForceDelete physically removes the matching soft deleted documents.
func (m *Model[T]) ForceDelete(ctx context.Context) (int64, error) {
	defer m.reset()
	return m.forceDelete(ctx, "forceDelete")
}

// ForceDestroy physically removes the soft deleted documents with the
// given ids.
func (m *Model[T]) ForceDestroy(ctx context.Context, ids ...any) (int64, error) {
	defer m.reset()
	if len(ids) == 0 {
		return 0, m.db.fail("forceDestroy", m.schema, fmt.Errorf("%w: no ids", ErrInvalidArgument))
	}
	m.WhereIn("_id", ids)
	return m.forceDelete(ctx, "forceDestroy")
}

// Restore clears the deleted flag of the matching soft deleted documents.
func (m *Model[T]) Restore(ctx context.Context) (int64, error) {
	defer m.reset()
	if !m.st.SoftDelete {
		return 0, m.db.fail("restore", m.schema,
			fmt.Errorf("%w: %s does not use soft deletes", ErrInvalidArgument, m.schema.name))
	}
	m.st.OnlyTrashed = true
	set := withUpdateTimestamp(m.st.Timestamps, restoreSet(m.db.conf.Fields), m.db.conf.Fields, m.db.now())
	return m.updateMany(ctx, "restore", set)
}

// Save inserts a new record or writes the changed fields of a stored
// one. The record is in sync with the database afterwards.
func (m *Model[T]) Save(ctx context.Context, rec *Record) error {
	defer m.reset()

	if rec.IsNew() {
		d, err := m.insert(ctx, "save", rec.Doc())
		if err != nil {
			return err
		}
		rec.sync(d)
		return nil
	}

	if !rec.IsDirty() {
		return nil
	}
	m.st.ID, m.st.HasID = rec.ID(), true

	var out bson.M
	if err := m.update(ctx, "save", rec.Dirty(), &out); err != nil {
		return err
	}
	rec.sync(out)
	return nil
}

func (m *Model[T]) get(ctx context.Context, op string) ([]T, error) {
	p, err := mql.Compile(&m.st, m.scope)
	if err != nil {
		return nil, m.db.fail(op, m.schema, err)
	}
	var out []T
	if err := m.aggregate(ctx, op, p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model[T]) first(ctx context.Context, op string) (*T, error) {
	m.st.Limit = 1
	items, err := m.get(ctx, op)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (m *Model[T]) count(ctx context.Context, op string) (int64, error) {
	p, err := mql.CompileCount(&m.st, m.scope)
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	var res []struct {
		Total int64 `bson:"total"`
	}
	if err := m.aggregate(ctx, op, p, &res); err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].Total, nil
}

func (m *Model[T]) reduce(ctx context.Context, fn mql.AggFn, col string) (any, error) {
	op := string(fn)
	p, err := mql.CompileAggregate(&m.st, m.scope, fn, col)
	if err != nil {
		return nil, m.db.fail(op, m.schema, err)
	}
	var res []bson.M
	if err := m.aggregate(ctx, op, p, &res); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0][mql.AggregateField], nil
}

func (m *Model[T]) aggregate(ctx context.Context, op string, p mongo.Pipeline, results any) error {
	coll, err := m.db.collection(m.schema)
	if err != nil {
		return m.db.fail(op, m.schema, err)
	}
	m.db.logPipeline(op, m.schema, p)

	if err := coll.Aggregate(ctx, p, results); err != nil {
		return m.db.fail(op, m.schema, err)
	}
	return nil
}

func (m *Model[T]) prepareInsert(doc any, now time.Time) (bson.M, error) {
	d, err := toDoc(doc)
	if err != nil {
		return nil, err
	}
	if id, ok := d["_id"]; ok {
		if id == nil || id == (bson.ObjectID{}) {
			delete(d, "_id")
		} else {
			d["_id"] = mongodriver.CoerceID(id)
		}
	}
	d = withCreateTimestamps(m.st.Timestamps, d, m.db.conf.Fields, now)
	d = withSoftDeleteDefaults(m.st.SoftDelete, d, m.db.conf.Fields)
	return d, nil
}

// insert stores doc and returns the stored document including its _id.
func (m *Model[T]) insert(ctx context.Context, op string, doc any) (bson.M, error) {
	if m.st.Err != nil {
		return nil, m.db.fail(op, m.schema, m.st.Err)
	}
	d, err := m.prepareInsert(doc, m.db.now())
	if err != nil {
		return nil, m.db.fail(op, m.schema, err)
	}

	coll, err := m.db.collection(m.schema)
	if err != nil {
		return nil, m.db.fail(op, m.schema, err)
	}
	id, err := coll.InsertOne(ctx, d)
	if err != nil {
		return nil, m.db.fail(op, m.schema, err)
	}
	d["_id"] = id
	return d, nil
}

// update runs findOneAndUpdate with set on the first matching document.
func (m *Model[T]) update(ctx context.Context, op string, set bson.M, out any) error {
	delete(set, "_id")
	if len(set) == 0 {
		return m.db.fail(op, m.schema, fmt.Errorf("%w: no changes", ErrInvalidArgument))
	}
	set = withUpdateTimestamp(m.st.Timestamps, set, m.db.conf.Fields, m.db.now())

	filter, err := m.filter()
	if err != nil {
		return m.db.fail(op, m.schema, err)
	}
	coll, err := m.db.collection(m.schema)
	if err != nil {
		return m.db.fail(op, m.schema, err)
	}

	err = coll.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return m.db.fail(op, m.schema, ErrNotFound)
	}
	if err != nil {
		return m.db.fail(op, m.schema, err)
	}
	return nil
}

func (m *Model[T]) updateMany(ctx context.Context, op string, set bson.M) (int64, error) {
	filter, err := m.filter()
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	coll, err := m.db.collection(m.schema)
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	res, err := coll.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	return res.Modified, nil
}

func (m *Model[T]) delete(ctx context.Context, op string) (int64, error) {
	if m.st.SoftDelete {
		f := m.db.conf.Fields
		now := m.db.now()
		return m.updateMany(ctx, op, withUpdateTimestamp(m.st.Timestamps, softDeleteSet(f, now), f, now))
	}
	return m.deleteMany(ctx, op)
}

func (m *Model[T]) forceDelete(ctx context.Context, op string) (int64, error) {
	m.st.OnlyTrashed = true
	return m.deleteMany(ctx, op)
}

func (m *Model[T]) deleteMany(ctx context.Context, op string) (int64, error) {
	filter, err := m.filter()
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	coll, err := m.db.collection(m.schema)
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	n, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, m.db.fail(op, m.schema, err)
	}
	return n, nil
}

// filter is the write filter: the relation scope and the match stages
// merged into one document. Scopes that join other collections cannot
// be expressed as a filter.
func (m *Model[T]) filter() (bson.D, error) {
	if m.st.Err != nil {
		return nil, m.st.Err
	}
	stages, err := mql.CompileMatch(&m.st)
	if err != nil {
		return nil, err
	}
	for _, s := range m.scope {
		if s[0].Key != "$match" {
			return nil, fmt.Errorf("%w: writes are not supported through this relation", ErrInvalidArgument)
		}
	}
	return mql.MergeMatches(append(append([]bson.D{}, m.scope...), stages...)), nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case bson.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
