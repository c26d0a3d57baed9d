package lshplanes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(d int, seed float64) []float64 {
	v := make([]float64, d)
	var norm float64
	for i := range v {
		v[i] = seed*float64(i+1) - float64(d)/2
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func TestGenerate_Deterministic(t *testing.T) {
	p1 := Generate("client-seed-1", 4, 8, 16)
	p2 := Generate("client-seed-1", 4, 8, 16)

	v := unitVector(16, 0.37)
	h1, err := p1.Hash(v)
	require.NoError(t, err)
	h2, err := p2.Hash(v)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "identical seeds must reproduce identical planes and hashes")
}

func TestGenerate_DifferentSeedsDiffer(t *testing.T) {
	p1 := Generate("client-a", 4, 8, 16)
	p2 := Generate("client-b", 4, 8, 16)

	v := unitVector(16, 0.5)
	h1, err := p1.Hash(v)
	require.NoError(t, err)
	h2, err := p2.Hash(v)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHash_WrongDimension(t *testing.T) {
	p := Generate("client-seed", 2, 4, 8)
	_, err := p.Hash(make([]float64, 4))
	assert.Error(t, err)
}

func TestHash_BucketRange(t *testing.T) {
	const hashSize = 6
	p := Generate("client-seed", 3, hashSize, 12)
	v := unitVector(12, 1.1)

	hashes, err := p.Hash(v)
	require.NoError(t, err)
	require.Len(t, hashes, 3)

	for _, h := range hashes {
		assert.GreaterOrEqual(t, h, int32(0))
		assert.Less(t, h, int32(1<<hashSize))
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	p := Generate("roundtrip-seed", 5, 10, 20)
	data := p.Serialize()

	restored, err := Deserialize(data)
	require.NoError(t, err)

	v := unitVector(20, 0.8)
	want, err := p.Hash(v)
	require.NoError(t, err)
	got, err := restored.Hash(v)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestDeserialize_TruncatedData(t *testing.T) {
	_, err := Deserialize([]byte{1, 2, 3})
	assert.Error(t, err)
}
