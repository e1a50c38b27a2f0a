package core

import (
	"context"
	"fmt"

	"github.com/dosco/docorm/core/internal/mql"
	"github.com/dosco/docorm/core/internal/sdata"
	"github.com/dosco/docorm/mongodriver"
)

// Relation is a builder over the documents related to one owner
// document. Reads through the embedded Model are limited to the related
// documents, the pivot methods keep many-to-many relations in sync.
type Relation[T any] struct {
	*Model[T]

	rel      *sdata.Relation
	owner    *Schema
	ownerVal any
}

// Relate opens the relation alias declared on schema owner for the
// document ownerDoc, a struct or map holding at least the owner's key.
func Relate[T any](db *DB, owner *Schema, ownerDoc any, alias string) (*Relation[T], error) {
	rel, target, err := owner.relation(alias, db.conf.Fields)
	if err != nil {
		return nil, err
	}

	doc, err := toDoc(ownerDoc)
	if err != nil {
		return nil, err
	}
	field := mql.OwnerField(rel)
	val, ok := fieldValue(doc, field)
	if !ok || val == nil {
		return nil, fmt.Errorf("%w: %s document has no %s for relation %s",
			ErrInvalidArgument, owner.name, field, alias)
	}
	// hex strings are stored as object ids, link by the stored value
	val = mongodriver.CoerceID(val)

	scope, err := mql.Scope(rel, val)
	if err != nil {
		return nil, err
	}

	m := For[T](db, target)
	m.scope = scope

	return &Relation[T]{Model: m, rel: rel, owner: owner, ownerVal: val}, nil
}

// Kind returns the relation kind, e.g. "belongsToMany".
func (r *Relation[T]) Kind() string {
	return r.rel.Type.String()
}

// Create inserts doc as a related document, setting the key (and type)
// fields that link it to the owner. Only relations where the related
// document holds the link support it.
func (r *Relation[T]) Create(ctx context.Context, doc any) (*T, error) {
	defer r.reset()

	d, err := toDoc(doc)
	if err != nil {
		return nil, r.db.fail("create", r.schema, err)
	}

	switch r.rel.Type {
	case sdata.RelHasOne, sdata.RelHasMany:
		d[r.rel.ForeignKey] = r.ownerVal
	case sdata.RelMorphTo, sdata.RelMorphMany:
		d[r.rel.MorphID] = r.ownerVal
		d[r.rel.MorphType] = r.rel.Parent.Type
	default:
		return nil, r.db.fail("create", r.schema,
			fmt.Errorf("%w: create is not supported on %s relations", ErrInvalidArgument, r.rel.Type))
	}
	return r.Insert(ctx, d)
}
