// Package core provides a fluent query builder for MongoDB. Every read
// call chain compiles into a single aggregation pipeline, declared
// relationships compile into $lookup stages and many-to-many pivots are
// kept in sync on the client.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/dosco/docorm/mongodriver"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Provider hands out collections and transactions for named
// connections. mongodriver.Pool implements it.
type Provider interface {
	Collection(connection, database, name string) (mongodriver.Collection, error)
	BeginTx(ctx context.Context, connection string) (mongodriver.Txn, error)
}

// DB is the entry point, it is safe for concurrent use. Builders created
// from it with For are not.
type DB struct {
	conf     Config
	provider Provider
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*DB) error

// New creates a DB on top of provider. A nil conf uses the defaults. A
// nil provider only allows compiling pipelines.
func New(conf *Config, provider Provider, options ...Option) (*DB, error) {
	var c Config
	if conf != nil {
		c = *conf
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	db := &DB{
		conf:     c,
		provider: provider,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, op := range options {
		if err := op(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OptionSetLogger sets the logger used for pipeline and failure logging
func OptionSetLogger(log *zap.Logger) Option {
	return func(db *DB) error {
		if log != nil {
			db.log = log
		}
		return nil
	}
}

// OptionSetClock sets the time source used for timestamps and soft deletes
func OptionSetClock(now func() time.Time) Option {
	return func(db *DB) error {
		db.now = now
		return nil
	}
}

// Config returns a copy of the active configuration.
func (db *DB) Config() Config {
	return db.conf
}

func (db *DB) collection(s *Schema) (mongodriver.Collection, error) {
	return db.collectionNamed(s, s.collection)
}

// collectionNamed opens name on the connection and database of s.
func (db *DB) collectionNamed(s *Schema, name string) (mongodriver.Collection, error) {
	conn := s.connection
	if conn == "" {
		conn = db.conf.Connection
	}
	database := s.database
	if database == "" {
		database = db.conf.Database
	}
	if db.provider == nil {
		return nil, fmt.Errorf("%w: no database provider", ErrInvalidArgument)
	}
	return db.provider.Collection(conn, database, name)
}

func (db *DB) logPipeline(op string, s *Schema, p mongo.Pipeline) {
	if ce := db.log.Check(zap.DebugLevel, "pipeline"); ce != nil {
		fields := []zap.Field{
			zap.String("op", op),
			zap.String("collection", s.collection),
			zap.Int("stages", len(p)),
		}
		if db.conf.Debug {
			fields = append(fields, zap.Any("pipeline", p))
		}
		ce.Write(fields...)
	}
}

// fail wraps err for the public boundary and logs it.
func (db *DB) fail(op string, s *Schema, err error) error {
	return db.failOn(op, s.collection, err)
}

func (db *DB) failOn(op, collection string, err error) error {
	db.log.Warn("query failed",
		zap.String("op", op),
		zap.String("collection", collection),
		zap.Error(err))
	return &QueryError{Op: op, Collection: collection, Err: err}
}
