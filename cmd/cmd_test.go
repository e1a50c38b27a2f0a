package main

import (
	"bytes"
	"testing"

	"github.com/dosco/docorm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseCond(t *testing.T) {
	tests := []struct {
		in      string
		col, op string
		val     any
		wantErr bool
	}{
		{in: "age > 30", col: "age", op: ">", val: int64(30)},
		{in: "name = Ann Lee", col: "name", op: "=", val: "Ann Lee"},
		{in: "score >= 1.5", col: "score", op: ">=", val: 1.5},
		{in: "active = true", col: "active", op: "=", val: true},
		{in: "age between 18,30", col: "age", op: "between", val: []any{int64(18), int64(30)}},
		{in: "city in Oslo, Lima", col: "city", op: "in", val: []any{"Oslo", "Lima"}},
		{in: "age", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			col, op, val, err := parseCond(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.col, col)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.val, val)
		})
	}
}

func TestExplain(t *testing.T) {
	db, err := core.New(nil, nil)
	require.NoError(t, err)

	c := explainCmd()
	require.NoError(t, c.Flags().Set("where", "age > 30"))
	require.NoError(t, c.Flags().Set("order", "age desc"))
	require.NoError(t, c.Flags().Set("limit", "5"))

	p, err := explain(db, "users", c)
	require.NoError(t, err)
	require.NotEmpty(t, p)
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(30)}}}},
	}}}}}, p[0])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(5)}}, p[len(p)-1])

	c = explainCmd()
	require.NoError(t, c.Flags().Set("where", "age ~ 30"))
	_, err = explain(db, "users", c)
	assert.ErrorIs(t, err, core.ErrInvalidOperator)
}

const seedYAML = `
collections:
  roles:
    - name: admin
    - name: editor
      perms: [read, write]
fake:
  users: 3
  posts: 5
`

func TestSeedDocuments(t *testing.T) {
	sf, err := parseSeed([]byte(seedYAML))
	require.NoError(t, err)
	assert.Len(t, sf.Collections["roles"], 2)

	docs, err := sf.documents(42)
	require.NoError(t, err)
	assert.Len(t, docs["roles"], 2)
	require.Len(t, docs["users"], 3)
	require.Len(t, docs["posts"], 5)

	ids := map[bson.ObjectID]bool{}
	for _, u := range docs["users"] {
		du := u.(demoUser)
		assert.NotEmpty(t, du.Name)
		assert.GreaterOrEqual(t, du.Age, 18)
		ids[du.ID] = true
	}
	for _, p := range docs["posts"] {
		assert.True(t, ids[p.(demoPost).UserID], "posts belong to generated users")
	}

	assert.Equal(t, []string{"posts", "roles", "users"}, sortedKeys(docs))
}

func TestSeedFileErrors(t *testing.T) {
	_, err := parseSeed([]byte("fake:\n  invoices: 3\n"))
	assert.ErrorContains(t, err, "no demo data generator")

	_, err = parseSeed([]byte("extra: 1\n"))
	assert.Error(t, err)

	_, err = parseSeed([]byte("collections: [\n"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	c := versionCmd()
	c.SetOut(&buf)
	c.Run(c, nil)
	assert.Contains(t, buf.String(), "Docorm not-set")
}
