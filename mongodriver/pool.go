package mongodriver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

const DefaultConnection = "default"

var ErrUnknownConnection = errors.New("mongodriver: unknown connection")

// Pool holds the named connections of an application. Connection pooling
// itself is left to the driver client.
type Pool struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewPool(conns ...*Conn) *Pool {
	p := &Pool{conns: make(map[string]*Conn, len(conns))}
	for _, c := range conns {
		p.conns[c.Name] = c
	}
	return p
}

// Add registers c, replacing any connection with the same name.
func (p *Pool) Add(c *Conn) {
	p.mu.Lock()
	p.conns[c.Name] = c
	p.mu.Unlock()
}

// Conn returns the named connection, an empty name selects the default.
func (p *Pool) Conn(name string) (*Conn, error) {
	if name == "" {
		name = DefaultConnection
	}
	p.mu.RLock()
	c, ok := p.conns[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return c, nil
}

// Names returns the registered connection names in sorted order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.conns))
	for n := range p.conns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Pool) Client(connection string) (*mongo.Client, error) {
	c, err := p.Conn(connection)
	if err != nil {
		return nil, err
	}
	return c.Client(), nil
}

func (p *Pool) Database(connection, name string) (*mongo.Database, error) {
	c, err := p.Conn(connection)
	if err != nil {
		return nil, err
	}
	return c.Database(name), nil
}

// Collection returns an adapted collection handle.
func (p *Pool) Collection(connection, database, name string) (Collection, error) {
	db, err := p.Database(connection, database)
	if err != nil {
		return nil, err
	}
	return Wrap(db.Collection(name)), nil
}

func (p *Pool) BeginTx(ctx context.Context, connection string) (Txn, error) {
	c, err := p.Conn(connection)
	if err != nil {
		return nil, err
	}
	return c.BeginTx(ctx)
}

// Ping pings every connection and returns the errors joined.
func (p *Pool) Ping(ctx context.Context) error {
	var errs []error
	for _, n := range p.Names() {
		c, _ := p.Conn(n)
		if err := c.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) Close(ctx context.Context) error {
	var errs []error
	for _, n := range p.Names() {
		c, _ := p.Conn(n)
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodriver: close %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
