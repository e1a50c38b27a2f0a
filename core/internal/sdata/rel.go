package sdata

import (
	"fmt"
)

type RelType int

const (
	RelNone RelType = iota
	RelHasOne
	RelBelongsTo
	RelHasMany
	RelBelongsToMany
	RelHasManyThrough
	RelMorphTo
	RelMorphMany
	RelMorphToMany
	RelMorphedByMany
)

func (rt RelType) String() string {
	switch rt {
	case RelHasOne:
		return "hasOne"
	case RelBelongsTo:
		return "belongsTo"
	case RelHasMany:
		return "hasMany"
	case RelBelongsToMany:
		return "belongsToMany"
	case RelHasManyThrough:
		return "hasManyThrough"
	case RelMorphTo:
		return "morphTo"
	case RelMorphMany:
		return "morphMany"
	case RelMorphToMany:
		return "morphToMany"
	case RelMorphedByMany:
		return "morphedByMany"
	}
	return "none"
}

// Parent identifies the declaring model of a polymorphic relation.
type Parent struct {
	ID   string
	Type string
}

// Relation describes how a target collection is reached from its owner.
// Only the keys used by Type are set, see Validate.
type Relation struct {
	Type       RelType
	Alias      string
	Collection string
	TargetType string

	LocalKey   string
	ForeignKey string
	OwnerKey   string

	// hasManyThrough
	Through        string
	FirstKey       string
	SecondKey      string
	SecondLocalKey string

	// pivot based kinds
	Pivot           string
	ForeignPivotKey string
	RelatedPivotKey string
	ParentKey       string
	RelatedKey      string

	// polymorphic discriminator pair
	MorphID   string
	MorphType string

	SoftDelete   bool
	DeletedField string

	Parent Parent
}

// Singular reports whether the relation resolves to at most one document.
func (r *Relation) Singular() bool {
	return r.Type == RelHasOne || r.Type == RelBelongsTo || r.Type == RelMorphTo
}

// Pivoted reports whether the relation is stored in a pivot collection.
func (r *Relation) Pivoted() bool {
	switch r.Type {
	case RelBelongsToMany, RelMorphToMany, RelMorphedByMany:
		return true
	}
	return false
}

// Morph reports whether the relation carries a type discriminator.
func (r *Relation) Morph() bool {
	switch r.Type {
	case RelMorphTo, RelMorphMany, RelMorphToMany, RelMorphedByMany:
		return true
	}
	return false
}

// PivotKeys returns the pivot fields holding the owner id, the related
// id and, for polymorphic pivots, the discriminator field and value.
func (r *Relation) PivotKeys() (owner, related, typeField, typeValue string) {
	switch r.Type {
	case RelBelongsToMany:
		return r.ForeignPivotKey, r.RelatedPivotKey, "", ""
	case RelMorphToMany:
		return r.MorphID, r.RelatedPivotKey, r.MorphType, r.Parent.Type
	case RelMorphedByMany:
		return r.ForeignPivotKey, r.MorphID, r.MorphType, r.TargetType
	}
	return "", "", "", ""
}

func (r *Relation) Validate() error {
	if r.Alias == "" {
		return fmt.Errorf("relation: missing alias")
	}
	if r.Collection == "" {
		return fmt.Errorf("relation %s: missing target collection", r.Alias)
	}

	var missing string
	switch r.Type {
	case RelHasOne, RelHasMany:
		missing = firstEmpty(map[string]string{"localKey": r.LocalKey, "foreignKey": r.ForeignKey})
	case RelBelongsTo:
		missing = firstEmpty(map[string]string{"foreignKey": r.ForeignKey, "ownerKey": r.OwnerKey})
	case RelHasManyThrough:
		missing = firstEmpty(map[string]string{
			"through": r.Through, "firstKey": r.FirstKey,
			"secondKey": r.SecondKey, "localKey": r.LocalKey, "secondLocalKey": r.SecondLocalKey,
		})
	case RelBelongsToMany:
		missing = firstEmpty(map[string]string{
			"pivot": r.Pivot, "foreignPivotKey": r.ForeignPivotKey,
			"relatedPivotKey": r.RelatedPivotKey, "parentKey": r.ParentKey, "relatedKey": r.RelatedKey,
		})
	case RelMorphTo, RelMorphMany:
		missing = firstEmpty(map[string]string{"morphId": r.MorphID, "morphType": r.MorphType})
	case RelMorphToMany:
		missing = firstEmpty(map[string]string{
			"pivot": r.Pivot, "morphId": r.MorphID, "morphType": r.MorphType,
			"relatedPivotKey": r.RelatedPivotKey,
		})
	case RelMorphedByMany:
		missing = firstEmpty(map[string]string{
			"pivot": r.Pivot, "morphId": r.MorphID, "morphType": r.MorphType,
			"foreignPivotKey": r.ForeignPivotKey,
		})
	default:
		return fmt.Errorf("relation %s: unknown type", r.Alias)
	}

	if missing != "" {
		return fmt.Errorf("relation %s (%s): missing %s", r.Alias, r.Type, missing)
	}
	if r.Morph() && r.Type != RelMorphedByMany && r.Parent.Type == "" {
		return fmt.Errorf("relation %s (%s): missing parent type", r.Alias, r.Type)
	}
	if r.Type == RelMorphedByMany && r.TargetType == "" {
		return fmt.Errorf("relation %s (%s): missing target type", r.Alias, r.Type)
	}
	return nil
}

func firstEmpty(m map[string]string) string {
	// stable order for error messages
	var out string
	for k, v := range m {
		if v == "" && (out == "" || k < out) {
			out = k
		}
	}
	return out
}

// SortKey is one ordering entry inside a relation sub-pipeline.
type SortKey struct {
	Column string
	Dir    int
}

// Options tune the sub-pipeline of an eager loaded relation.
type Options struct {
	Select  []string
	Exclude []string
	Sort    []SortKey
	Skip    int64
	Limit   int64
}
