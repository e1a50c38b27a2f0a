package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRelateScopesReads(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	owner := user{ID: bson.NewObjectID(), Name: "ann"}
	posts, err := Relate[post](db, s.user, owner, "posts")
	require.NoError(t, err)
	assert.Equal(t, "hasMany", posts.Kind())

	pl, err := posts.Where("title", "=", "hi").Pipeline()
	require.NoError(t, err)
	require.Len(t, pl, 2)
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "userId", Value: bson.D{{Key: "$eq", Value: owner.ID}}},
	}}}, pl[0])

	// the scope survives the reset of a terminal call
	pl, err = posts.Pipeline()
	require.NoError(t, err)
	assert.Len(t, pl, 2)
}

func TestRelateErrors(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	_, err := Relate[post](db, s.user, user{ID: bson.NewObjectID()}, "comments")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Relate[user](db, s.post, bson.M{"title": "no author"}, "author")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRelationCreate(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()
	ctx := context.Background()

	owner := user{ID: bson.NewObjectID()}
	posts, err := Relate[post](db, s.user, owner, "posts")
	require.NoError(t, err)

	out, err := posts.Create(ctx, bson.M{"title": "first"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, out.UserID)

	doc := p.coll("posts").inserted[0].(bson.M)
	assert.Equal(t, owner.ID, doc["userId"])

	roles, err := Relate[role](db, s.user, owner, "roles")
	require.NoError(t, err)
	_, err = roles.Create(ctx, bson.M{"name": "admin"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRelationWritesThroughPivotScope(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	roles, err := Relate[role](db, s.user, user{ID: bson.NewObjectID()}, "roles")
	require.NoError(t, err)

	_, err = roles.Delete(context.Background())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func pivotRows(key string, ids ...any) []bson.M {
	out := make([]bson.M, 0, len(ids))
	for _, id := range ids {
		out = append(out, bson.M{key: id})
	}
	return out
}

func TestPivotAttach(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()
	ctx := context.Background()

	owner := user{ID: bson.NewObjectID()}
	r1, r2, r3 := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()

	pivot := p.coll("role_user")
	pivot.docs = pivotRows("roleId", r1, r2)

	roles, err := Relate[role](db, s.user, owner, "roles")
	require.NoError(t, err)

	ch, err := roles.Attach(ctx, []any{r2.Hex(), r3.Hex(), r3}, map[string]any{"grantedBy": "root"})
	require.NoError(t, err)
	assert.Equal(t, []any{r3}, ch.Attached)
	assert.Empty(t, ch.Detached)

	require.Len(t, pivot.inserted, 1)
	assert.Equal(t, bson.D{
		{Key: "userId", Value: owner.ID},
		{Key: "roleId", Value: r3},
		{Key: "grantedBy", Value: "root"},
	}, pivot.inserted[0])

	// the existing rows were read for the owner only
	match := pivot.pipelines[0][0]
	assert.Equal(t, "$match", match[0].Key)
	assert.Equal(t, bson.E{Key: "userId", Value: owner.ID}, match[0].Value.(bson.D)[0])
}

func TestPivotSyncIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()
	ctx := context.Background()

	owner := user{ID: bson.NewObjectID()}
	r1, r2, r3 := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()

	pivot := p.coll("role_user")
	pivot.docs = pivotRows("roleId", r1, r2)

	roles, err := Relate[role](db, s.user, owner, "roles")
	require.NoError(t, err)

	ch, err := roles.Sync(ctx, []any{r2, r3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{r3}, ch.Attached)
	assert.Equal(t, []any{r1}, ch.Detached)
	assert.Len(t, pivot.inserted, 1)
	assert.Len(t, pivot.filters, 1)

	pivot.docs = pivotRows("roleId", r2, r3)
	ch, err = roles.Sync(ctx, []any{r2, r3}, nil)
	require.NoError(t, err)
	assert.Empty(t, ch.Attached)
	assert.Empty(t, ch.Detached)
	assert.Len(t, pivot.inserted, 1, "second sync must not write")
	assert.Len(t, pivot.filters, 1, "second sync must not write")

	ch, err = roles.SyncWithoutDetaching(ctx, []any{r1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{r1}, ch.Attached)
	assert.Empty(t, ch.Detached)
}

func TestPivotToggleAndDetach(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()
	ctx := context.Background()

	owner := user{ID: bson.NewObjectID()}
	r1, r2, r3 := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()

	pivot := p.coll("role_user")
	pivot.docs = pivotRows("roleId", r1, r2)

	roles, err := Relate[role](db, s.user, owner, "roles")
	require.NoError(t, err)

	ch, err := roles.Toggle(ctx, r2, r3)
	require.NoError(t, err)
	assert.Equal(t, []any{r3}, ch.Attached)
	assert.Equal(t, []any{r2}, ch.Detached)
	assert.Equal(t, bson.D{
		{Key: "userId", Value: owner.ID},
		{Key: "roleId", Value: bson.D{{Key: "$in", Value: bson.A{r2}}}},
	}, pivot.filters[0])

	ch, err = roles.Detach(ctx, r3)
	require.NoError(t, err)
	assert.Empty(t, ch.Detached, "r3 is not in the stored rows")

	ch, err = roles.Detach(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{r1, r2}, ch.Detached)
}

func TestMorphPivotRows(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	owner := post{ID: bson.NewObjectID()}
	tag := bson.NewObjectID()

	tags, err := Relate[role](db, s.post, owner, "tags")
	require.NoError(t, err)

	_, err = tags.Attach(context.Background(), []any{tag}, nil)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "taggableId", Value: owner.ID},
		{Key: "taggableType", Value: "Post"},
		{Key: "tagId", Value: tag},
	}, p.coll("taggables").inserted[0])
}

func TestPivotOnPlainRelation(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	posts, err := Relate[post](db, s.user, user{ID: bson.NewObjectID()}, "posts")
	require.NoError(t, err)

	_, err = posts.Attach(context.Background(), []any{1}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRelationCreateResetsOnError(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()

	posts, err := Relate[post](db, s.user, user{ID: bson.NewObjectID()}, "posts")
	require.NoError(t, err)
	clean, err := posts.Pipeline()
	require.NoError(t, err)

	posts.Where("title", "=", "leak")
	_, err = posts.Create(context.Background(), nil)
	require.Error(t, err)

	pl, err := posts.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, clean, pl)
	assert.Empty(t, p.coll("posts").inserted)
}

func TestRelateCoercesHexOwner(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)
	s := testSchemas()
	ctx := context.Background()

	id := bson.NewObjectID()
	owner := bson.M{"_id": id.Hex()}

	roles, err := Relate[role](db, s.user, owner, "roles")
	require.NoError(t, err)
	_, err = roles.Attach(ctx, []any{bson.NewObjectID()}, nil)
	require.NoError(t, err)

	pivot := p.coll("role_user")
	require.Len(t, pivot.inserted, 1)
	assert.Equal(t, bson.E{Key: "userId", Value: id}, pivot.inserted[0].(bson.D)[0])

	posts, err := Relate[post](db, s.user, owner, "posts")
	require.NoError(t, err)
	_, err = posts.Create(ctx, bson.M{"title": "first"})
	require.NoError(t, err)
	assert.Equal(t, id, p.coll("posts").inserted[0].(bson.M)["userId"])
}
