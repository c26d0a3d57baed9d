// Package lshplanes generates and applies the random-hyperplane LSH family
// used to bucket embedding vectors before homomorphic scoring.
package lshplanes

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Planes is a (T, b, d) tensor of hyperplane normals, one *mat.Dense of
// shape (b, d) per table.
type Planes struct {
	NumTables int
	HashSize  int
	Dim       int
	tables    []*mat.Dense
}

// Generate deterministically derives T tables of b hyperplanes in R^d from
// seed. The same seed always yields the same planes, on any host: this is
// what lets a client and the server hash identically without exchanging
// anything beyond the serialized planes once.
func Generate(seed string, numTables, hashSize, dim int) *Planes {
	rng := rand.New(rand.NewSource(seedToInt64(seed)))
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	tables := make([]*mat.Dense, numTables)
	for t := 0; t < numTables; t++ {
		data := make([]float64, hashSize*dim)
		for i := range data {
			data[i] = dist.Rand()
		}
		tables[t] = mat.NewDense(hashSize, dim, data)
	}

	return &Planes{NumTables: numTables, HashSize: hashSize, Dim: dim, tables: tables}
}

func seedToInt64(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}

// Hash computes the T-vector of bucket indices for a unit-normalized
// vector v: bit i of table t's hash is 1 iff the dot product of v with
// hyperplane i in table t is non-negative.
func (p *Planes) Hash(v []float64) ([]int32, error) {
	if len(v) != p.Dim {
		return nil, fmt.Errorf("lshplanes: vector has dimension %d, want %d", len(v), p.Dim)
	}

	vVec := mat.NewVecDense(p.Dim, v)
	hashes := make([]int32, p.NumTables)

	for t, table := range p.tables {
		var bucket int32
		rows, _ := table.Dims()
		for i := 0; i < rows; i++ {
			row := table.RowView(i)
			dot := mat.Dot(row, vVec)
			if dot >= 0 {
				bucket |= 1 << uint(i)
			}
		}
		hashes[t] = bucket
	}

	return hashes, nil
}

// Serialize encodes the planes as raw little-endian float64 values,
// prefixed by (numTables, hashSize, dim), for storage in ClientRecord and
// for the /initialize response body. float64 rather than a 32-bit float
// costs double the bytes on the wire; gonum's Dense backing store is
// float64 natively, and since a client always regenerates or replays the
// exact same plane bytes rather than re-deriving them from a lower
// precision source, there is no accuracy loss to trade away for the
// smaller encoding.
func (p *Planes) Serialize() []byte {
	buf := make([]byte, 24+8*p.NumTables*p.HashSize*p.Dim)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.NumTables))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(p.HashSize))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(p.Dim))

	offset := 24
	for _, table := range p.tables {
		rows, cols := table.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(table.At(r, c)))
				offset += 8
			}
		}
	}
	return buf
}

// Deserialize reverses Serialize.
func Deserialize(data []byte) (*Planes, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("lshplanes: serialized planes too short")
	}

	numTables := int(binary.LittleEndian.Uint64(data[0:8]))
	hashSize := int(binary.LittleEndian.Uint64(data[8:16]))
	dim := int(binary.LittleEndian.Uint64(data[16:24]))

	want := 24 + 8*numTables*hashSize*dim
	if len(data) != want {
		return nil, fmt.Errorf("lshplanes: expected %d bytes, got %d", want, len(data))
	}

	tables := make([]*mat.Dense, numTables)
	offset := 24
	for t := 0; t < numTables; t++ {
		values := make([]float64, hashSize*dim)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[offset : offset+8]))
			offset += 8
		}
		tables[t] = mat.NewDense(hashSize, dim, values)
	}

	return &Planes{NumTables: numTables, HashSize: hashSize, Dim: dim, tables: tables}, nil
}
