package passwords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("s3cret"), hash)

	ok, err := h.Compare(hash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_CorruptHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Compare([]byte("not-a-bcrypt-hash"), "x")
	assert.Error(t, err)
}

func TestNewHasher_DefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}

func TestCompareDummy(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	h.CompareDummy("anything")
	assert.NotEmpty(t, h.dummy)
}
