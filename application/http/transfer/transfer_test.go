package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodings(t *testing.T) {
	codings, err := ParseCodings([]string{"identity", "Chunked"})
	require.NoError(t, err)
	assert.Equal(t, []Coding{CodingChunked}, codings)
	assert.True(t, IsChunked(codings))

	codings, err = ParseCodings(nil)
	require.NoError(t, err)
	assert.False(t, IsChunked(codings))

	_, err = ParseCodings([]string{"gzip", "chunked"})
	assert.ErrorIs(t, err, ErrUnsupportedCoding)
}
