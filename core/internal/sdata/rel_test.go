package sdata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationValidate(t *testing.T) {
	tests := []struct {
		name    string
		rel     Relation
		wantErr string
	}{
		{
			name: "has one",
			rel:  Relation{Type: RelHasOne, Alias: "profile", Collection: "profiles", LocalKey: "_id", ForeignKey: "userId"},
		},
		{
			name:    "has one missing foreign key",
			rel:     Relation{Type: RelHasOne, Alias: "profile", Collection: "profiles", LocalKey: "_id"},
			wantErr: "missing foreignKey",
		},
		{
			name: "belongs to many",
			rel: Relation{
				Type: RelBelongsToMany, Alias: "roles", Collection: "roles", Pivot: "role_user",
				ForeignPivotKey: "userId", RelatedPivotKey: "roleId", ParentKey: "_id", RelatedKey: "_id",
			},
		},
		{
			name: "belongs to many missing keys",
			rel: Relation{
				Type: RelBelongsToMany, Alias: "roles", Collection: "roles",
				ParentKey: "_id", RelatedKey: "_id",
			},
			wantErr: "missing foreignPivotKey",
		},
		{
			name:    "morph many without parent type",
			rel:     Relation{Type: RelMorphMany, Alias: "comments", Collection: "comments", MorphID: "commentableId", MorphType: "commentableType"},
			wantErr: "missing parent type",
		},
		{
			name:    "unknown type",
			rel:     Relation{Alias: "x", Collection: "xs"},
			wantErr: "unknown type",
		},
		{
			name:    "missing collection",
			rel:     Relation{Type: RelHasMany, Alias: "posts"},
			wantErr: "missing target collection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rel.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRelationKinds(t *testing.T) {
	assert.True(t, (&Relation{Type: RelMorphTo}).Singular())
	assert.False(t, (&Relation{Type: RelMorphMany}).Singular())
	assert.True(t, (&Relation{Type: RelMorphedByMany}).Pivoted())
	assert.False(t, (&Relation{Type: RelHasManyThrough}).Pivoted())
	assert.Equal(t, "morphToMany", RelMorphToMany.String())
}

func TestPivotKeys(t *testing.T) {
	r := Relation{
		Type: RelMorphToMany, MorphID: "taggableId", MorphType: "taggableType",
		RelatedPivotKey: "tagId", Parent: Parent{Type: "Post"},
	}
	owner, related, tf, tv := r.PivotKeys()
	assert.Equal(t, []string{"taggableId", "tagId", "taggableType", "Post"}, []string{owner, related, tf, tv})

	r = Relation{
		Type: RelMorphedByMany, MorphID: "taggableId", MorphType: "taggableType",
		ForeignPivotKey: "tagId", TargetType: "Video",
	}
	owner, related, tf, tv = r.PivotKeys()
	assert.Equal(t, []string{"tagId", "taggableId", "taggableType", "Video"}, []string{owner, related, tf, tv})
}

func strKey(id any) any { return fmt.Sprint(id) }

func TestPlanAttach(t *testing.T) {
	plan := PlanAttach([]any{1, 2}, []any{2, 3, 3, "4"}, strKey)
	assert.Equal(t, []any{3, "4"}, plan.Insert)
	assert.Empty(t, plan.Delete)
}

func TestPlanSync(t *testing.T) {
	plan := PlanSync([]any{1, 2, 5}, []any{2, 3}, true, strKey)
	assert.Equal(t, []any{3}, plan.Insert)
	assert.Equal(t, []any{1, 5}, plan.Delete)

	// second call with the same ids is a no-op
	plan = PlanSync([]any{2, 3}, []any{2, 3}, true, strKey)
	assert.True(t, plan.Empty())

	plan = PlanSync([]any{1, 2}, []any{3}, false, strKey)
	assert.Equal(t, []any{3}, plan.Insert)
	assert.Empty(t, plan.Delete)
}

func TestPlanToggle(t *testing.T) {
	plan := PlanToggle([]any{"a"}, []any{"a", "b", "b"}, strKey)
	assert.Equal(t, []any{"b"}, plan.Insert)
	assert.Equal(t, []any{"a"}, plan.Delete)
}
