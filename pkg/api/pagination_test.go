package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageToken(t *testing.T) {
	token, err := parsePageToken("20:1")
	require.NoError(t, err)
	assert.EqualValues(t, 20, token.Size)
	assert.EqualValues(t, 1, token.Index)
	assert.EqualValues(t, 20, token.Offset())

	for _, bad := range []string{"", "garbage", "20", "20:", ":1", "-1:2", "20:-1", "a:b"} {
		_, err := parsePageToken(bad)
		assert.Error(t, err, "token %q should not parse", bad)
	}
}

func TestPageTokenNext(t *testing.T) {
	token := pageToken{Size: 20, Index: 0}

	t.Run("more rows remain", func(t *testing.T) {
		next := token.Next(45)
		require.NotNil(t, next)
		assert.Equal(t, "20:1", *next)
	})

	t.Run("exact fit has no next page", func(t *testing.T) {
		assert.Nil(t, token.Next(20))
	})

	t.Run("fewer rows than a page", func(t *testing.T) {
		assert.Nil(t, token.Next(5))
	})

	t.Run("huge index does not overflow", func(t *testing.T) {
		huge := pageToken{Size: 1 << 40, Index: 1 << 30}
		assert.Nil(t, huge.Next(1<<62))
	})
}

func TestResolvePage(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		token, err := resolvePage(nil, nil, 100)
		require.NoError(t, err)
		assert.EqualValues(t, 100, token.Size)
		assert.EqualValues(t, 0, token.Index)
	})

	t.Run("max results overrides token size", func(t *testing.T) {
		nextToken := "50:2"
		maxResults := int64(10)
		token, err := resolvePage(&nextToken, &maxResults, 100)
		require.NoError(t, err)
		assert.EqualValues(t, 10, token.Size)
		assert.EqualValues(t, 2, token.Index)
	})

	t.Run("max results bounds", func(t *testing.T) {
		for _, bad := range []int64{0, -5, 101} {
			v := bad
			_, err := resolvePage(nil, &v, 100)
			assert.Error(t, err)
		}
	})
}
