package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalk/apistub/core/storage"
)

type artist struct {
	SurrogateID
	Name   string  `db:"name,notnull" json:"name" validate:"required"`
	Bio    *string `db:"bio" json:"bio"`
	Rank   int     `db:"rank,default=0" json:"rank"`
	Secret string  `db:"secret" json:"-"`
}

type noID struct {
	Name string `db:"name"`
}

func (n *noID) PrimaryKey() int64      { return 0 }
func (n *noID) SetPrimaryKey(id int64) {}

var artists = NewModel[*artist]()

func setup(t *testing.T) (*storage.DB, context.Context) {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, artists.Migrate(ctx, db))
	return db, ctx
}

func seed(t *testing.T, db *storage.DB, names ...string) []*artist {
	t.Helper()

	ctx := context.Background()
	sess := db.NewSession()
	out := make([]*artist, 0, len(names))
	for _, name := range names {
		rec, err := artists.Save(ctx, sess, &artist{Name: name}, false)
		require.NoError(t, err)
		out = append(out, rec)
	}
	require.NoError(t, sess.Commit())
	return out
}

func TestNewModel(t *testing.T) {
	assert.Equal(t, "artist", artists.Name())
	assert.Equal(t, "artists", artists.Table())

	fields := artists.Fields()
	require.Len(t, fields, 5)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"id", "name", "bio", "rank", "secret"}, names)

	pks := artists.PrimaryKeys()
	require.Len(t, pks, 1)
	assert.Equal(t, "id", pks[0].Column)

	name, ok := artists.Field("name")
	require.True(t, ok)
	assert.Equal(t, "TEXT", name.SQLType)
	assert.True(t, name.NotNull)
	assert.True(t, name.Required())

	bio, _ := artists.Field("bio")
	assert.True(t, bio.Nullable())

	secret, _ := artists.Field("secret")
	assert.True(t, secret.Hidden)

	assert.Contains(t, artists.CreateTableSQL(), "rank INTEGER DEFAULT 0")
}

func TestNewModel_Options(t *testing.T) {
	m := NewModel[*artist](WithName("AlbumTrack"))
	assert.Equal(t, "album_tracks", m.Table())

	m = NewModel[*artist](WithTable("performers"))
	assert.Equal(t, "performers", m.Table())
}

func TestNewModel_PanicsWithoutID(t *testing.T) {
	assert.Panics(t, func() { NewModel[*noID]() })
}

func TestGetByID(t *testing.T) {
	db, ctx := setup(t)
	seed(t, db, "Artist A")

	found := []any{1, int64(1), int32(1), uint(1), 1.0, float32(1.9), "1", json.Number("1")}
	for _, id := range found {
		t.Run(fmt.Sprintf("%T(%v)", id, id), func(t *testing.T) {
			rec, err := artists.GetByID(ctx, db, id)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, int64(1), rec.ID)
			assert.Equal(t, "Artist A", rec.Name)
		})
	}

	missing := []any{42, "42", "abc", "1a", "-1", " 1", "", true, nil, struct{}{}, []int{1}}
	for _, id := range missing {
		t.Run(fmt.Sprintf("missing %T(%v)", id, id), func(t *testing.T) {
			rec, err := artists.GetByID(ctx, db, id)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestSave_InsertAssignsID(t *testing.T) {
	db, ctx := setup(t)

	sess := db.NewSession()
	rec, err := artists.Save(ctx, sess, &artist{Name: "Artist A"}, true)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	got, err := artists.GetByID(ctx, db, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Artist A", got.Name)
}

func TestSave_WithoutCommitIsDiscardedOnClose(t *testing.T) {
	db, ctx := setup(t)

	sess := db.NewSession()
	rec, err := artists.Save(ctx, sess, &artist{Name: "Draft"}, false)
	require.NoError(t, err)

	visible, err := artists.GetByID(ctx, sess.Querier(), rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, visible, "session sees its own pending write")

	require.NoError(t, sess.Close())

	gone, err := artists.GetByID(ctx, db, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSave_ExplicitIDInsertsOrReplaces(t *testing.T) {
	db, ctx := setup(t)
	sess := db.NewSession()

	rec := &artist{Name: "Seven"}
	rec.ID = 7
	_, err := artists.Save(ctx, sess, rec, true)
	require.NoError(t, err)

	rec.Name = "Seven Again"
	_, err = artists.Save(ctx, sess, rec, true)
	require.NoError(t, err)

	got, err := artists.GetByID(ctx, db, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Seven Again", got.Name)

	page, err := artists.Paginate(ctx, db, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestUpdate(t *testing.T) {
	db, ctx := setup(t)
	rec := seed(t, db, "Before")[0]

	sess := db.NewSession()
	_, err := artists.Update(ctx, sess, rec, map[string]any{"name": "After", "rank": 3.0, "bio": "b"}, true)
	require.NoError(t, err)

	got, err := artists.GetByID(ctx, db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.Equal(t, 3, got.Rank)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "b", *got.Bio)
}

func TestUpdate_UnknownFieldChangesNothing(t *testing.T) {
	db, ctx := setup(t)
	rec := seed(t, db, "Before")[0]

	_, err := artists.Update(ctx, db.NewSession(), rec, map[string]any{"name": "After", "nope": 1}, true)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, "Before", rec.Name)
}

func TestAssign_RejectsMistypedValue(t *testing.T) {
	rec := &artist{Name: "Before"}

	err := artists.Assign(rec, map[string]any{"name": "After", "rank": "three"})
	require.Error(t, err)
	assert.Equal(t, "Before", rec.Name)
}

func TestAssign_NumericString(t *testing.T) {
	rec := &artist{Name: "Before"}

	require.NoError(t, artists.Assign(rec, map[string]any{"rank": "3"}))
	assert.Equal(t, 3, rec.Rank)
}

func TestDelete(t *testing.T) {
	db, ctx := setup(t)
	rec := seed(t, db, "Doomed")[0]

	require.NoError(t, artists.Delete(ctx, db.NewSession(), rec, true))

	got, err := artists.GetByID(ctx, db, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindBy(t *testing.T) {
	db, ctx := setup(t)
	seed(t, db, "A", "B")

	rec, err := artists.FindBy(ctx, db, map[string]any{"id": 2.0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "B", rec.Name)

	rec, err = artists.FindBy(ctx, db, map[string]any{"id": 99})
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = artists.FindBy(ctx, db, map[string]any{"missing": 1})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestPaginate(t *testing.T) {
	db, ctx := setup(t)

	names := make([]string, 45)
	for i := range names {
		names[i] = fmt.Sprintf("Artist %d", i+1)
	}
	seed(t, db, names...)

	page, err := artists.Paginate(ctx, db, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 20, page.PerPage)
	assert.EqualValues(t, 45, page.Total)
	assert.Equal(t, 3, page.Pages())
	assert.False(t, page.HasNext())
	assert.True(t, page.HasPrev())

	require.Len(t, page.Items, 5)
	for i, rec := range page.Items {
		assert.Equal(t, int64(41+i), rec.ID)
	}

	_, err = artists.Paginate(ctx, db, 4, 20)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = artists.Paginate(ctx, db, 0, 20)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = artists.Paginate(ctx, db, math.MaxInt/20+2, 20)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestPaginate_Empty(t *testing.T) {
	db, ctx := setup(t)

	page, err := artists.Paginate(ctx, db, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 0, page.Total)
	assert.Equal(t, 0, page.Pages())
}

func TestPaginate_QueryOptions(t *testing.T) {
	db, ctx := setup(t)
	recs := seed(t, db, "A", "B", "C")

	sess := db.NewSession()
	_, err := artists.Update(ctx, sess, recs[1], map[string]any{"rank": 5}, true)
	require.NoError(t, err)

	page, err := artists.Paginate(ctx, db, 1, 20, Where("rank", 5))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B", page.Items[0].Name)

	page, err = artists.Paginate(ctx, db, 1, 20, OrderBy("name", true))
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "C", page.Items[0].Name)

	_, err = artists.Paginate(ctx, db, 1, 20, Where("bogus", 1))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestString(t *testing.T) {
	bio := "loud"
	rec := &artist{Name: "X", Bio: &bio}
	rec.ID = 5

	assert.Equal(t, `<artist(id=5, name="X", bio="loud", rank=0, secret="")>`, artists.String(rec))
	assert.Equal(t, "<artist(nil)>", artists.String(nil))
}
