package apikeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	stored, err := Hash(token)
	require.NoError(t, err)

	ok, err := Verify(token, stored)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_WrongToken(t *testing.T) {
	stored, err := Hash("correct-token")
	require.NoError(t, err)

	ok, err := Verify("wrong-token", stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_ProducesDistinctSaltsEachCall(t *testing.T) {
	h1, err := Hash("same-token")
	require.NoError(t, err)
	h2, err := Hash("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)

	ok1, err := Verify("same-token", h1)
	require.NoError(t, err)
	ok2, err := Verify("same-token", h2)
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestVerify_MalformedStoredHash(t *testing.T) {
	_, err := Verify("token", "not-a-valid-hash")
	assert.Error(t, err)
}
