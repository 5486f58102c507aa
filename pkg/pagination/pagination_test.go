package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6000, time.FixedZone("IST", 19800)), ID: uuid.New()}
	encoded := EncodeCursor(in)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, value := range []string{"%%%", "bm8tc2VwYXJhdG9y", EncodeCursor(Cursor{})[:4]} {
		_, err := ParseCursor(value)
		assert.Error(t, err, value)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrim(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor {
		for i, candidate := range ids {
			if candidate == id {
				return Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Hour), ID: id}
			}
		}
		return Cursor{}
	}

	rows, next := Trim(ids, 2, key)
	require.Len(t, rows, 2)
	require.NotNil(t, next)
	assert.Equal(t, ids[1], next.ID)

	rows, next = Trim(ids[:2], 2, key)
	assert.Len(t, rows, 2)
	assert.Nil(t, next)
}
