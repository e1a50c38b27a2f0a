package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dosco/docorm/core/internal/sdata"
	"github.com/gobuffalo/flect"
)

// Schema describes one document type: where it is stored, which field
// conventions it follows and the relations declared on it.
type Schema struct {
	name       string
	collection string
	connection string
	database   string
	timestamps bool
	softDelete bool

	rels  map[string]relDecl
	order []string
}

// relDecl is a registered relation. build produces a fresh descriptor
// every time so settings made on the target schema after the
// declaration are picked up.
type relDecl struct {
	target *Schema
	build  func() sdata.Relation
}

// NewSchema creates a schema for the type name, e.g. "BlogPost". The
// collection defaults to the pluralized snake case name ("blog_posts").
func NewSchema(name string) *Schema {
	if name == "" {
		panic("docorm: schema name is required")
	}
	return &Schema{
		name:       name,
		collection: flect.Pluralize(flect.Underscore(name)),
		rels:       make(map[string]relDecl),
	}
}

func (s *Schema) Name() string       { return s.name }
func (s *Schema) Collection() string { return s.collection }

// Relations returns the declared aliases in declaration order.
func (s *Schema) Relations() []string {
	return append([]string(nil), s.order...)
}

// WithCollection overrides the collection name.
func (s *Schema) WithCollection(name string) *Schema {
	s.collection = name
	return s
}

// On stores documents using the named connection and database instead
// of the configured defaults.
func (s *Schema) On(connection, database string) *Schema {
	s.connection = connection
	s.database = database
	return s
}

// WithTimestamps sets createdAt/updatedAt on writes.
func (s *Schema) WithTimestamps() *Schema {
	s.timestamps = true
	return s
}

// WithSoftDelete turns deletes into updates of isDeleted/deletedAt and
// hides deleted documents from reads.
func (s *Schema) WithSoftDelete() *Schema {
	s.softDelete = true
	return s
}

// Keys overrides the conventional key names of a relation. Only the
// fields meaningful for the relation kind are used.
type Keys struct {
	Local   string
	Foreign string
	Owner   string

	Through        *Schema
	FirstKey       string
	SecondKey      string
	SecondLocalKey string

	Pivot        string
	ForeignPivot string
	RelatedPivot string
	Parent       string
	Related      string

	// Morph is the polymorphic name, "commentable" gives the fields
	// commentableId and commentableType.
	Morph string
}

func fkName(s *Schema) string {
	return flect.Camelize(s.name) + "Id"
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func firstKeys(keys []Keys) Keys {
	if len(keys) == 0 {
		return Keys{}
	}
	return keys[0]
}

// HasOne declares that one target document holds this document's key.
func (s *Schema) HasOne(alias string, target *Schema, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	return s.declare(alias, target, sdata.Relation{
		Type:       sdata.RelHasOne,
		LocalKey:   orDefault(k.Local, "_id"),
		ForeignKey: orDefault(k.Foreign, fkName(s)),
	})
}

// HasMany declares that many target documents hold this document's key.
func (s *Schema) HasMany(alias string, target *Schema, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	return s.declare(alias, target, sdata.Relation{
		Type:       sdata.RelHasMany,
		LocalKey:   orDefault(k.Local, "_id"),
		ForeignKey: orDefault(k.Foreign, fkName(s)),
	})
}

// BelongsTo declares that this document holds the target's key.
func (s *Schema) BelongsTo(alias string, target *Schema, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	return s.declare(alias, target, sdata.Relation{
		Type:       sdata.RelBelongsTo,
		ForeignKey: orDefault(k.Foreign, fkName(target)),
		OwnerKey:   orDefault(k.Owner, "_id"),
	})
}

// HasManyThrough reaches the targets via an intermediate collection,
// e.g. a country has many posts through its users. keys.Through is
// required.
func (s *Schema) HasManyThrough(alias string, target *Schema, keys Keys) *Schema {
	s.mustTarget(alias, target)
	if keys.Through == nil {
		panic(fmt.Sprintf("docorm: relation %s.%s: through schema is required", s.name, alias))
	}
	through := keys.Through
	return s.declare(alias, target, sdata.Relation{
		Type:           sdata.RelHasManyThrough,
		Through:        through.collection,
		LocalKey:       orDefault(keys.Local, "_id"),
		FirstKey:       orDefault(keys.FirstKey, fkName(s)),
		SecondLocalKey: orDefault(keys.SecondLocalKey, "_id"),
		SecondKey:      orDefault(keys.SecondKey, fkName(through)),
	})
}

// BelongsToMany relates both sides through a pivot collection named
// after the two types in alphabetical order, e.g. "role_user".
func (s *Schema) BelongsToMany(alias string, target *Schema, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	return s.declare(alias, target, sdata.Relation{
		Type:            sdata.RelBelongsToMany,
		Pivot:           orDefault(k.Pivot, pivotName(s, target)),
		ForeignPivotKey: orDefault(k.ForeignPivot, fkName(s)),
		RelatedPivotKey: orDefault(k.RelatedPivot, fkName(target)),
		ParentKey:       orDefault(k.Parent, "_id"),
		RelatedKey:      orDefault(k.Related, "_id"),
	})
}

// MorphTo declares a single polymorphic child, e.g. the image of a post
// stored with imageableId/imageableType.
func (s *Schema) MorphTo(alias string, target *Schema, morph string, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	return s.declareMorph(sdata.RelMorphTo, alias, target, morph, firstKeys(keys))
}

// MorphMany declares polymorphic children, e.g. the comments of a post.
func (s *Schema) MorphMany(alias string, target *Schema, morph string, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	return s.declareMorph(sdata.RelMorphMany, alias, target, morph, firstKeys(keys))
}

func (s *Schema) declareMorph(rt sdata.RelType, alias string, target *Schema, morph string, k Keys) *Schema {
	morph = orDefault(k.Morph, morph)
	return s.declare(alias, target, sdata.Relation{
		Type:      rt,
		LocalKey:  orDefault(k.Local, "_id"),
		MorphID:   morph + "Id",
		MorphType: morph + "Type",
		Parent:    sdata.Parent{Type: s.name},
	})
}

// MorphToMany relates this type to targets through a polymorphic pivot,
// e.g. posts to tags through "taggables".
func (s *Schema) MorphToMany(alias string, target *Schema, morph string, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	morph = orDefault(k.Morph, morph)
	return s.declare(alias, target, sdata.Relation{
		Type:            sdata.RelMorphToMany,
		Pivot:           orDefault(k.Pivot, flect.Pluralize(morph)),
		MorphID:         morph + "Id",
		MorphType:       morph + "Type",
		RelatedPivotKey: orDefault(k.RelatedPivot, fkName(target)),
		ParentKey:       orDefault(k.Parent, "_id"),
		RelatedKey:      orDefault(k.Related, "_id"),
		Parent:          sdata.Parent{Type: s.name},
	})
}

// MorphedByMany is the inverse of MorphToMany, e.g. tags to posts.
func (s *Schema) MorphedByMany(alias string, target *Schema, morph string, keys ...Keys) *Schema {
	s.mustTarget(alias, target)
	k := firstKeys(keys)
	morph = orDefault(k.Morph, morph)
	return s.declare(alias, target, sdata.Relation{
		Type:            sdata.RelMorphedByMany,
		Pivot:           orDefault(k.Pivot, flect.Pluralize(morph)),
		MorphID:         morph + "Id",
		MorphType:       morph + "Type",
		ForeignPivotKey: orDefault(k.ForeignPivot, fkName(s)),
		ParentKey:       orDefault(k.Parent, "_id"),
		RelatedKey:      orDefault(k.Related, "_id"),
		TargetType:      target.name,
		Parent:          sdata.Parent{Type: s.name},
	})
}

// declare validates and registers a relation. Declarations are made at
// startup so mistakes panic.
func (s *Schema) declare(alias string, target *Schema, tmpl sdata.Relation) *Schema {
	if _, ok := s.rels[alias]; ok {
		panic(fmt.Sprintf("docorm: relation %s.%s: already declared", s.name, alias))
	}

	build := func() sdata.Relation {
		r := tmpl
		r.Alias = alias
		r.Collection = target.collection
		if r.TargetType == "" {
			r.TargetType = target.name
		}
		r.SoftDelete = target.softDelete
		return r
	}

	r := build()
	if err := r.Validate(); err != nil {
		panic(fmt.Sprintf("docorm: %s: %v", s.name, err))
	}

	s.rels[alias] = relDecl{target: target, build: build}
	s.order = append(s.order, alias)
	return s
}

func (s *Schema) mustTarget(alias string, target *Schema) {
	if target == nil {
		panic(fmt.Sprintf("docorm: relation %s.%s: target schema is nil", s.name, alias))
	}
}

// relation resolves an alias into a fresh descriptor.
func (s *Schema) relation(alias string, fields FieldNames) (*sdata.Relation, *Schema, error) {
	d, ok := s.rels[alias]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s has no relation %q", ErrInvalidArgument, s.name, alias)
	}
	r := d.build()
	if r.SoftDelete {
		r.DeletedField = fields.IsDeleted
	}
	return &r, d.target, nil
}

func pivotName(a, b *Schema) string {
	names := []string{
		flect.Singularize(flect.Underscore(a.name)),
		flect.Singularize(flect.Underscore(b.name)),
	}
	sort.Strings(names)
	return strings.Join(names, "_")
}
