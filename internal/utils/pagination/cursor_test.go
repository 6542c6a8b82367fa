package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	token, err := Encode(Cursor{LastID: 42, CreatedUnix: 1700000000000})
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), c.LastID)
	assert.Equal(t, int64(1700000000000), c.CreatedUnix)
}

func TestDecodeEmptyToken(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("not base64!!")
	assert.Error(t, err)

	// Valid base64 but not a cursor payload.
	_, err = Decode("bm90IGpzb24")
	assert.Error(t, err)
}
