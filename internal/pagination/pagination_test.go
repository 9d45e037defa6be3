package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestCursorEncodeDecode(t *testing.T) {
	c := Cursor{
		CreatedAt: time.Date(2024, time.May, 1, 12, 30, 0, 123456000, time.UTC),
		ID:        uuid.New(),
	}
	got, err := Decode(c.Encode())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, c.ID, got.ID)
}

func TestDecodeEmptyAndInvalid(t *testing.T) {
	got, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Decode("!!!")
	require.Error(t, err)

	_, err = Decode("bm8tc2VwYXJhdG9y") // "no-separator"
	require.Error(t, err)
}
