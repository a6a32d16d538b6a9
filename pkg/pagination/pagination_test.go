package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsarena/membership-backend/pkg/db/dbtest"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	none, err := ParseCursor(" ")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParseCursor("not-base64!")
	assert.ErrorIs(t, err, errBadCursor)

	_, err = ParseCursor(base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-01-01T00:00:00Z"}`)))
	assert.ErrorIs(t, err, errBadCursor, "cursor without id")
}

func TestKeysetOrdersAndResumes(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.AutoMigrate(&item{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&item{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}).Error)
	}
	key := func(it item) Cursor { return Cursor{CreatedAt: it.CreatedAt, ID: it.ID} }

	var first []item
	require.NoError(t, db.Scopes(Keyset(nil, 2)).Find(&first).Error)
	require.Len(t, first, 3)
	page := Slice(first, 2, key)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].CreatedAt.Equal(base.Add(4*time.Minute)))

	cursor, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	var rest []item
	require.NoError(t, db.Scopes(Keyset(cursor, 10)).Find(&rest).Error)
	require.Len(t, rest, 3)
	assert.True(t, rest[0].CreatedAt.Equal(base.Add(2*time.Minute)))
}

type item struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

type row struct {
	id      uuid.UUID
	created time.Time
}

func TestSliceUsesLastReturnedRow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{uuid.New(), base.Add(3 * time.Minute)},
		{uuid.New(), base.Add(2 * time.Minute)},
		{uuid.New(), base.Add(time.Minute)},
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.created, ID: r.id} }

	page := Slice(rows, 2, key)
	require.Len(t, page.Items, 2)
	cursor, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, cursor.ID)

	last := Slice(rows[2:], 2, key)
	assert.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)
}
