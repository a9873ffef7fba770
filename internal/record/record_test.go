package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/hlc"
	"github.com/graknol/declarative-sqlite/internal/journal"
	"github.com/graknol/declarative-sqlite/internal/query"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
	"github.com/graknol/declarative-sqlite/internal/writepath"
)

func buildUsersSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		Table("users", func(tb *schema.TableBuilder) {
			tb.Text("name").LWW().NotNull()
			tb.Integer("age")
		}).
		Table("profiles", func(tb *schema.TableBuilder) {
			tb.Text("bio")
		}).
		Build()
	require.NoError(t, err)
	return s
}

func newTestWriter(s *schema.Schema) *writepath.Writer {
	return writepath.NewWriter(nil, s, hlc.NewClockWithNode("N1"), journal.NewStore(nil))
}

func TestNewRecordStartsDirtyForEveryExplicitSet(t *testing.T) {
	s := buildUsersSchema(t)
	w := newTestWriter(s)

	rec, err := New(w, s, "users")
	require.NoError(t, err)
	assert.False(t, rec.Dirty())

	require.NoError(t, rec.Set("name", types.TextValue("Alice")))
	assert.True(t, rec.Dirty())
	assert.Equal(t, "Alice", rec.Get("name").Text())
}

func TestSetRejectsUnknownColumn(t *testing.T) {
	s := buildUsersSchema(t)
	w := newTestWriter(s)

	rec, err := New(w, s, "users")
	require.NoError(t, err)

	err = rec.Set("does_not_exist", types.TextValue("x"))
	assert.Error(t, err)
	assert.True(t, types.IsInvalidData(err))
}

func TestFromQueryRowWithoutForUpdateIsReadOnly(t *testing.T) {
	s := buildUsersSchema(t)
	w := newTestWriter(s)

	q := query.NewSelect().Select(query.ColumnRef{Kind: query.ColSimple, Name: "name"}).From("users")
	rec, err := FromQueryRow(w, s, q, map[string]any{"name": "Bob"})
	require.NoError(t, err)

	assert.Equal(t, "Bob", rec.Get("name").Text())
	err = rec.Set("name", types.TextValue("Carol"))
	assert.Error(t, err)
	assert.True(t, types.IsInvalidData(err))
}

func TestFromQueryRowForUpdateRejectsJoinedColumn(t *testing.T) {
	s := buildUsersSchema(t)
	w := newTestWriter(s)

	q := query.NewSelect().
		Select(
			query.ColumnRef{Kind: query.ColSimple, Name: "system_id"},
			query.ColumnRef{Kind: query.ColSimple, Name: "system_version"},
			query.ColumnRef{Kind: query.ColSimple, Name: "name"},
			query.ColumnRef{Kind: query.ColSimple, Name: "bio"},
		).
		From("users").
		Join(query.JoinInner, "profiles", query.RawSQL{SQL: "users.system_id = profiles.system_id"}).
		ForUpdate("users")

	raw := map[string]any{
		"system_id":      "R1",
		"system_version": "000000000001000:000000000:N1",
		"name":           "Alice",
		"bio":            "likes go",
	}
	rec, err := FromQueryRow(w, s, q, raw)
	require.NoError(t, err)

	require.NoError(t, rec.Set("name", types.TextValue("Bob")))
	assert.True(t, rec.Dirty())

	err = rec.Set("bio", types.TextValue("likes rust"))
	assert.Error(t, err)
	assert.True(t, types.IsInvalidData(err))
}

func TestFromQueryRowMissingIdentityFailsValidation(t *testing.T) {
	s := buildUsersSchema(t)
	w := newTestWriter(s)

	q := query.NewSelect().Select(query.ColumnRef{Kind: query.ColSimple, Name: "name"}).From("users").ForUpdate("users")
	_, err := FromQueryRow(w, s, q, map[string]any{"name": "Bob"})
	assert.Error(t, err)
}
