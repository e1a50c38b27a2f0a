package core

import (
	"context"
	"fmt"

	"github.com/dosco/docorm/core/internal/sdata"
	"github.com/dosco/docorm/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// PivotChanges lists the related ids linked and unlinked by a pivot
// operation.
type PivotChanges struct {
	Attached []any
	Detached []any
}

// The pivot operations read the existing pivot rows of the owner, diff
// them against the requested ids on the client and then write. They are
// not atomic: a concurrent writer can insert the same row between the
// read and the write. Run them inside DB.Transaction when that matters.

// Attach links ids that are not linked yet. attrs are stored on every
// new pivot row.
func (r *Relation[T]) Attach(ctx context.Context, ids []any, attrs map[string]any) (PivotChanges, error) {
	return r.syncPivot(ctx, "attach", ids, attrs, func(existing, ids []any) sdata.PivotPlan {
		return sdata.PlanAttach(existing, ids, mongodriver.IDKey)
	}, true)
}

// Detach unlinks ids, or every related document when ids is empty.
func (r *Relation[T]) Detach(ctx context.Context, ids ...any) (PivotChanges, error) {
	all := len(ids) == 0
	return r.syncPivot(ctx, "detach", ids, nil, func(existing, ids []any) sdata.PivotPlan {
		if all {
			return sdata.PivotPlan{Delete: existing}
		}
		return sdata.PivotPlan{Delete: intersect(existing, ids)}
	}, !all)
}

// Sync makes ids the exact set of linked documents.
func (r *Relation[T]) Sync(ctx context.Context, ids []any, attrs map[string]any) (PivotChanges, error) {
	return r.syncPivot(ctx, "sync", ids, attrs, func(existing, ids []any) sdata.PivotPlan {
		return sdata.PlanSync(existing, ids, true, mongodriver.IDKey)
	}, false)
}

// SyncWithoutDetaching links the missing ids and keeps every other link.
func (r *Relation[T]) SyncWithoutDetaching(ctx context.Context, ids []any, attrs map[string]any) (PivotChanges, error) {
	return r.syncPivot(ctx, "syncWithoutDetaching", ids, attrs, func(existing, ids []any) sdata.PivotPlan {
		return sdata.PlanSync(existing, ids, false, mongodriver.IDKey)
	}, true)
}

// Toggle links the ids that are not linked and unlinks those that are.
func (r *Relation[T]) Toggle(ctx context.Context, ids ...any) (PivotChanges, error) {
	return r.syncPivot(ctx, "toggle", ids, nil, func(existing, ids []any) sdata.PivotPlan {
		return sdata.PlanToggle(existing, ids, mongodriver.IDKey)
	}, true)
}

type pivotKeys struct {
	owner, related      string
	typeField, typeName string
}

// syncPivot runs one read-diff-write cycle. When narrow is set only the
// pivot rows of the requested ids are read.
func (r *Relation[T]) syncPivot(ctx context.Context,
	op string,
	ids []any,
	attrs map[string]any,
	plan func(existing, ids []any) sdata.PivotPlan,
	narrow bool,
) (ch PivotChanges, err error) {
	defer r.reset()

	if !r.rel.Pivoted() {
		return ch, r.db.fail(op, r.schema,
			fmt.Errorf("%w: %s is a %s relation, not a pivot", ErrInvalidArgument, r.rel.Alias, r.rel.Type))
	}

	var pk pivotKeys
	pk.owner, pk.related, pk.typeField, pk.typeName = r.rel.PivotKeys()

	coll, err := r.db.collectionNamed(r.owner, r.rel.Pivot)
	if err != nil {
		return ch, r.db.failOn(op, r.rel.Pivot, err)
	}

	ids = coerceIDs(ids)

	var candidates []any
	if narrow {
		candidates = ids
	}
	existing, err := r.pivotRows(ctx, coll, pk, candidates)
	if err != nil {
		return ch, r.db.failOn(op, r.rel.Pivot, err)
	}

	p := plan(existing, ids)

	if len(p.Insert) != 0 {
		rows := make([]any, 0, len(p.Insert))
		for _, id := range p.Insert {
			rows = append(rows, r.pivotRow(pk, id, attrs))
		}
		if _, err := coll.InsertMany(ctx, rows); err != nil {
			return ch, r.db.failOn(op, r.rel.Pivot, err)
		}
		ch.Attached = p.Insert
	}

	if len(p.Delete) != 0 {
		filter := append(r.ownerFilter(pk), bson.E{
			Key: pk.related, Value: bson.D{{Key: "$in", Value: bson.A(p.Delete)}},
		})
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			return ch, r.db.failOn(op, r.rel.Pivot, err)
		}
		ch.Detached = p.Delete
	}

	r.db.log.Debug("pivot",
		zap.String("op", op),
		zap.String("collection", r.rel.Pivot),
		zap.Int("attached", len(ch.Attached)),
		zap.Int("detached", len(ch.Detached)))
	return ch, nil
}

func (r *Relation[T]) ownerFilter(pk pivotKeys) bson.D {
	f := bson.D{{Key: pk.owner, Value: r.ownerVal}}
	if pk.typeField != "" {
		f = append(f, bson.E{Key: pk.typeField, Value: pk.typeName})
	}
	return f
}

// pivotRows returns the related ids linked to the owner, limited to
// candidates when it is not nil.
func (r *Relation[T]) pivotRows(ctx context.Context,
	coll mongodriver.Collection,
	pk pivotKeys,
	candidates []any,
) ([]any, error) {
	filter := r.ownerFilter(pk)
	if candidates != nil {
		filter = append(filter, bson.E{Key: pk.related, Value: bson.D{{Key: "$in", Value: bson.A(candidates)}}})
	}

	p := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: pk.related, Value: 1}}}},
	}

	var rows []bson.M
	if err := coll.Aggregate(ctx, p, &rows); err != nil {
		return nil, err
	}

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[pk.related]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *Relation[T]) pivotRow(pk pivotKeys, id any, attrs map[string]any) bson.D {
	row := r.ownerFilter(pk)
	row = append(row, bson.E{Key: pk.related, Value: id})
	for k, v := range attrs {
		if k == pk.owner || k == pk.related || k == pk.typeField {
			continue
		}
		row = append(row, bson.E{Key: k, Value: v})
	}
	return row
}

func coerceIDs(ids []any) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = mongodriver.CoerceID(id)
	}
	return out
}

// intersect returns the ids of want that are present in have.
func intersect(have, want []any) []any {
	set := make(map[any]struct{}, len(have))
	for _, id := range have {
		set[mongodriver.IDKey(id)] = struct{}{}
	}
	var out []any
	for _, id := range want {
		k := mongodriver.IDKey(id)
		if _, ok := set[k]; ok {
			out = append(out, id)
			delete(set, k)
		}
	}
	return out
}
