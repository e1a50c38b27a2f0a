package core

import (
	"context"
	"testing"
	"time"

	"github.com/dosco/docorm/mongodriver"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeColl records every call and answers reads from docs, or from
// respond when it is set.
type fakeColl struct {
	name string
	conn string
	db   string

	docs    []bson.M
	respond func(p mongo.Pipeline) []bson.M
	aggErr  error

	pipelines []mongo.Pipeline
	inserted  []any
	filters   []any
	updates   []any

	nextID   any
	findDoc  bson.M
	findErr  error
	modified int64
	deleted  int64
}

func (c *fakeColl) Name() string { return c.name }

func (c *fakeColl) Aggregate(ctx context.Context, p mongo.Pipeline, results any) error {
	c.pipelines = append(c.pipelines, p)
	if c.aggErr != nil {
		return c.aggErr
	}

	docs := c.docs
	if c.respond != nil {
		docs = c.respond(p)
	}
	list := make([]any, len(docs))
	for i, d := range docs {
		list[i] = d
	}

	cur, err := mongo.NewCursorFromDocuments(list, nil, nil)
	if err != nil {
		return err
	}
	return cur.All(ctx, results)
}

func (c *fakeColl) InsertOne(ctx context.Context, doc any) (any, error) {
	if m, ok := doc.(bson.M); ok {
		doc = cloneDoc(m)
	}
	c.inserted = append(c.inserted, doc)
	if c.nextID != nil {
		return c.nextID, nil
	}
	return bson.NewObjectID(), nil
}

func (c *fakeColl) InsertMany(ctx context.Context, docs []any) ([]any, error) {
	ids := make([]any, 0, len(docs))
	for _, d := range docs {
		c.inserted = append(c.inserted, d)
		ids = append(ids, bson.NewObjectID())
	}
	return ids, nil
}

func (c *fakeColl) UpdateMany(ctx context.Context, filter, update any) (mongodriver.UpdateResult, error) {
	c.filters = append(c.filters, filter)
	c.updates = append(c.updates, update)
	return mongodriver.UpdateResult{Matched: c.modified, Modified: c.modified}, nil
}

func (c *fakeColl) FindOneAndUpdate(ctx context.Context, filter, update any, result any) error {
	c.filters = append(c.filters, filter)
	c.updates = append(c.updates, update)
	if c.findErr != nil {
		return c.findErr
	}
	data, err := bson.Marshal(c.findDoc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, result)
}

func (c *fakeColl) DeleteMany(ctx context.Context, filter any) (int64, error) {
	c.filters = append(c.filters, filter)
	return c.deleted, nil
}

type fakeTx struct {
	ctx       context.Context
	commitErr error
	commits   int
	rollbacks int
}

func (t *fakeTx) Context() context.Context { return t.ctx }

func (t *fakeTx) Commit() error {
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback() error {
	t.rollbacks++
	return nil
}

type fakeProvider struct {
	colls map[string]*fakeColl
	txs   []*fakeTx
	txErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{colls: make(map[string]*fakeColl)}
}

func (p *fakeProvider) coll(name string) *fakeColl {
	c, ok := p.colls[name]
	if !ok {
		c = &fakeColl{name: name}
		p.colls[name] = c
	}
	return c
}

func (p *fakeProvider) Collection(connection, database, name string) (mongodriver.Collection, error) {
	c := p.coll(name)
	c.conn, c.db = connection, database
	return c, nil
}

func (p *fakeProvider) BeginTx(ctx context.Context, connection string) (mongodriver.Txn, error) {
	tx := &fakeTx{ctx: ctx, commitErr: p.txErr}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func newTestDB(t *testing.T, p *fakeProvider, conf *Config) *DB {
	t.Helper()
	db, err := New(conf, p,
		OptionSetLogger(zaptest.NewLogger(t)),
		OptionSetClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return db
}

// labeledErr mimics a server error carrying error labels.
type labeledErr struct {
	label string
}

func (e labeledErr) Error() string               { return "server error: " + e.label }
func (e labeledErr) HasErrorLabel(l string) bool { return l == e.label }

type user struct {
	ID   bson.ObjectID `bson:"_id,omitempty"`
	Name string        `bson:"name"`
	Age  int           `bson:"age"`
}

type post struct {
	ID     bson.ObjectID `bson:"_id,omitempty"`
	Title  string        `bson:"title"`
	UserID bson.ObjectID `bson:"userId"`
}

type role struct {
	ID   bson.ObjectID `bson:"_id,omitempty"`
	Name string        `bson:"name"`
}

type schemas struct {
	user, post, role, tag *Schema
}

func testSchemas() schemas {
	s := schemas{
		user: NewSchema("User").WithTimestamps(),
		post: NewSchema("Post").WithSoftDelete(),
		role: NewSchema("Role"),
		tag:  NewSchema("Tag"),
	}
	s.user.HasMany("posts", s.post)
	s.user.BelongsToMany("roles", s.role)
	s.post.BelongsTo("author", s.user, Keys{Foreign: "userId"})
	s.post.MorphToMany("tags", s.tag, "taggable")
	return s
}
