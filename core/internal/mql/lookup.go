package mql

import (
	"fmt"

	"github.com/dosco/docorm/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	throughSuffix = "__through"
	pivotSuffix   = "__pivot"
)

// Lookup returns the join stages that embed rel under its alias. It is
// pure, the database runs the joins inside the returned sub-pipelines.
// Singular relations unwind with empty arrays preserved so a missing
// document leaves the alias absent instead of null. Plural relations
// always produce an array.
func Lookup(rel *sdata.Relation, opts *sdata.Options) ([]bson.D, error) {
	if err := rel.Validate(); err != nil {
		return nil, err
	}
	target := targetPipeline(rel, opts)

	switch rel.Type {
	case sdata.RelHasOne:
		return withUnwind(rel.Alias,
			lookup(rel.Collection, rel.LocalKey, rel.ForeignKey, target, rel.Alias)), nil

	case sdata.RelBelongsTo:
		return withUnwind(rel.Alias,
			lookup(rel.Collection, rel.ForeignKey, rel.OwnerKey, target, rel.Alias)), nil

	case sdata.RelHasMany:
		return []bson.D{
			lookup(rel.Collection, rel.LocalKey, rel.ForeignKey, target, rel.Alias),
		}, nil

	case sdata.RelMorphTo:
		return withUnwind(rel.Alias,
			lookup(rel.Collection, localKey(rel), rel.MorphID, target, rel.Alias)), nil

	case sdata.RelMorphMany:
		return []bson.D{
			lookup(rel.Collection, localKey(rel), rel.MorphID, target, rel.Alias),
		}, nil

	case sdata.RelHasManyThrough:
		via := rel.Alias + throughSuffix
		return []bson.D{
			lookup(rel.Through, rel.LocalKey, rel.FirstKey, nil, via),
			lookup(rel.Collection, via+"."+rel.SecondLocalKey, rel.SecondKey, target, rel.Alias),
			hide(via),
		}, nil

	case sdata.RelBelongsToMany:
		via := rel.Alias + pivotSuffix
		return []bson.D{
			lookup(rel.Pivot, rel.ParentKey, rel.ForeignPivotKey, nil, via),
			lookup(rel.Collection, via+"."+rel.RelatedPivotKey, rel.RelatedKey, target, rel.Alias),
			hide(via),
		}, nil

	case sdata.RelMorphToMany, sdata.RelMorphedByMany:
		owner, related, typeField, typeValue := rel.PivotKeys()
		via := rel.Alias + pivotSuffix
		disc := []bson.D{match(bson.D{{Key: typeField, Value: bson.D{{Key: "$eq", Value: typeValue}}}})}
		return []bson.D{
			lookup(rel.Pivot, parentKey(rel), owner, disc, via),
			lookup(rel.Collection, via+"."+related, relatedKey(rel), target, rel.Alias),
			hide(via),
		}, nil
	}

	return nil, fmt.Errorf("relation %s: unsupported type %s", rel.Alias, rel.Type)
}

// targetPipeline is the sub-pipeline run against the target collection:
// discriminator and soft delete filters first, then the relation options.
func targetPipeline(rel *sdata.Relation, opts *sdata.Options) []bson.D {
	var p []bson.D

	if rel.Type == sdata.RelMorphTo || rel.Type == sdata.RelMorphMany {
		p = append(p, match(bson.D{{Key: rel.MorphType, Value: bson.D{{Key: "$eq", Value: rel.Parent.Type}}}}))
	}
	if rel.SoftDelete && rel.DeletedField != "" {
		p = append(p, match(bson.D{{Key: rel.DeletedField, Value: bson.D{{Key: "$eq", Value: false}}}}))
	}
	if opts == nil {
		return p
	}

	if len(opts.Sort) != 0 {
		keys := make(bson.D, 0, len(opts.Sort))
		for _, s := range opts.Sort {
			dir := s.Dir
			if dir == 0 {
				dir = 1
			}
			keys = append(keys, bson.E{Key: s.Column, Value: dir})
		}
		p = append(p, bson.D{{Key: "$sort", Value: keys}})
	}
	if opts.Skip > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: opts.Skip}})
	}
	if opts.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: opts.Limit}})
	}
	if s := CompileSelect(opts.Select, nil); s != nil {
		p = append(p, s)
	}
	if s := CompileExclude(opts.Exclude); s != nil {
		p = append(p, s)
	}
	return p
}

func lookup(from, localField, foreignField string, pipeline []bson.D, as string) bson.D {
	l := bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: foreignField},
	}
	if len(pipeline) != 0 {
		l = append(l, bson.E{Key: "pipeline", Value: pipeline})
	}
	l = append(l, bson.E{Key: "as", Value: as})
	return bson.D{{Key: "$lookup", Value: l}}
}

func withUnwind(alias string, l bson.D) []bson.D {
	return []bson.D{l, {{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$" + alias},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}}
}

func hide(field string) bson.D {
	return bson.D{{Key: "$project", Value: bson.D{{Key: field, Value: 0}}}}
}

func localKey(rel *sdata.Relation) string {
	if rel.LocalKey == "" {
		return "_id"
	}
	return rel.LocalKey
}

func parentKey(rel *sdata.Relation) string {
	if rel.ParentKey == "" {
		return "_id"
	}
	return rel.ParentKey
}

func relatedKey(rel *sdata.Relation) string {
	if rel.RelatedKey == "" {
		return "_id"
	}
	return rel.RelatedKey
}
