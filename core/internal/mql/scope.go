package mql

import (
	"fmt"

	"github.com/dosco/docorm/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// OwnerField is the field of the owner document whose value identifies
// its related documents.
func OwnerField(rel *sdata.Relation) string {
	switch rel.Type {
	case sdata.RelBelongsTo:
		return rel.ForeignKey
	case sdata.RelBelongsToMany, sdata.RelMorphToMany, sdata.RelMorphedByMany:
		return parentKey(rel)
	case sdata.RelMorphTo, sdata.RelMorphMany:
		return localKey(rel)
	}
	return rel.LocalKey
}

// Scope returns the stages that restrict a read of the target collection
// to the documents related to the owner whose OwnerField value is val.
// Through and pivot kinds join the intermediate collection and filter on
// it, the joined field is dropped again before the caller's stages run.
func Scope(rel *sdata.Relation, val any) ([]bson.D, error) {
	if err := rel.Validate(); err != nil {
		return nil, err
	}
	eq := func(v any) bson.D { return bson.D{{Key: "$eq", Value: v}} }

	switch rel.Type {
	case sdata.RelHasOne, sdata.RelHasMany:
		return []bson.D{match(bson.D{{Key: rel.ForeignKey, Value: eq(val)}})}, nil

	case sdata.RelBelongsTo:
		return []bson.D{match(bson.D{{Key: rel.OwnerKey, Value: eq(val)}})}, nil

	case sdata.RelMorphTo, sdata.RelMorphMany:
		return []bson.D{match(bson.D{
			{Key: rel.MorphID, Value: eq(val)},
			{Key: rel.MorphType, Value: eq(rel.Parent.Type)},
		})}, nil

	case sdata.RelHasManyThrough:
		via := throughSuffix
		return []bson.D{
			lookup(rel.Through, rel.SecondKey, rel.SecondLocalKey, nil, via),
			match(bson.D{{Key: via + "." + rel.FirstKey, Value: eq(val)}}),
			hide(via),
		}, nil

	case sdata.RelBelongsToMany:
		via := pivotSuffix
		return []bson.D{
			lookup(rel.Pivot, relatedKey(rel), rel.RelatedPivotKey, nil, via),
			match(bson.D{{Key: via + "." + rel.ForeignPivotKey, Value: eq(val)}}),
			hide(via),
		}, nil

	case sdata.RelMorphToMany, sdata.RelMorphedByMany:
		owner, related, typeField, typeValue := rel.PivotKeys()
		via := pivotSuffix
		return []bson.D{
			lookup(rel.Pivot, relatedKey(rel), related, nil, via),
			match(bson.D{{Key: via, Value: bson.D{{Key: "$elemMatch", Value: bson.D{
				{Key: owner, Value: eq(val)},
				{Key: typeField, Value: eq(typeValue)},
			}}}}}),
			hide(via),
		}, nil
	}

	return nil, fmt.Errorf("relation %s: unsupported type %s", rel.Alias, rel.Type)
}
