package mongodriver

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Conn is one named connection: a client and its default database.
type Conn struct {
	Name   string
	client *mongo.Client
	dbName string
}

// Dial connects a client to uri. The driver connects lazily so Dial
// only fails on a bad uri or options.
func Dial(name, uri, dbName string, opts ...*options.ClientOptions) (*Conn, error) {
	co := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, opts...)

	client, err := mongo.Connect(co...)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: connect %s: %w", name, err)
	}
	return NewConn(name, client, dbName), nil
}

// NewConn wraps an already connected client.
func NewConn(name string, client *mongo.Client, dbName string) *Conn {
	return &Conn{Name: name, client: client, dbName: dbName}
}

func (c *Conn) Client() *mongo.Client {
	return c.client
}

// Database returns the named database or the default one when name is empty.
func (c *Conn) Database(name string) *mongo.Database {
	if name == "" {
		name = c.dbName
	}
	return c.client.Database(name)
}

// Ping checks that the primary is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodriver: ping %s: %w", c.Name, err)
	}
	return nil
}

// Close disconnects the client.
func (c *Conn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Txn is a running transaction. Operations must use the context
// returned by Context to take part in it.
type Txn interface {
	Context() context.Context
	Commit() error
	Rollback() error
}

// BeginTx starts a session and a transaction on it. Transactions require
// a replica set or a sharded cluster.
func (c *Conn) BeginTx(ctx context.Context) (Txn, error) {
	session, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongodriver: start session: %w", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("mongodriver: start transaction: %w", err)
	}
	return &Tx{session: session, ctx: mongo.NewSessionContext(ctx, session)}, nil
}

// Tx implements Txn on a driver session.
type Tx struct {
	session *mongo.Session
	ctx     context.Context
}

func (t *Tx) Context() context.Context {
	return t.ctx
}

// Commit commits the transaction and ends the session.
func (t *Tx) Commit() error {
	defer t.session.EndSession(context.WithoutCancel(t.ctx))
	return t.session.CommitTransaction(t.ctx)
}

// Rollback aborts the transaction and ends the session.
func (t *Tx) Rollback() error {
	defer t.session.EndSession(context.WithoutCancel(t.ctx))
	return t.session.AbortTransaction(context.WithoutCancel(t.ctx))
}
