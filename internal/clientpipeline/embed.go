package clientpipeline

import (
	"hash/fnv"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// PseudoEmbed deterministically maps text to a unit vector in R^dim. It
// stands in for a real text embedder, which is out of scope here: given
// the same text and dim it always returns the same vector, which is all
// the LSH-consistency and inner-product tests in this package need.
func PseudoEmbed(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := int64(h.Sum64())

	rng := rand.New(rand.NewSource(seed))
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	v := make([]float64, dim)
	var norm float64
	for i := range v {
		v[i] = dist.Rand()
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, dim)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
