package clientpipeline

import (
	"os"
	"strconv"
	"testing"

	"github.com/securesearch/securesearch/internal/lshplanes"
)

// corpusSize reads SECURE_SEARCH_THOUSANDS to scale the synthetic corpus
// used by large-scale tests; it defaults to a single "thousand" so the
// test still runs something meaningful under `go test` without the
// environment variable set.
func corpusSize() int {
	thousands := 1
	if v, err := strconv.Atoi(os.Getenv("SECURE_SEARCH_THOUSANDS")); err == nil && v > 0 {
		thousands = v
	}
	return thousands * 1000
}

// TestPseudoEmbed_HashConsistencyAtScale exercises the hash-consistency
// invariant across a corpus of synthetic texts: the same planes must
// hash the same vector the same way regardless of how many other texts
// have been hashed before it, and every hash must fall in the table's
// valid range.
func TestPseudoEmbed_HashConsistencyAtScale(t *testing.T) {
	const dim = 32
	const numTables = 8
	const hashSize = 10

	planes := lshplanes.Generate("corpus-consistency-seed", numTables, hashSize, dim)

	n := corpusSize()
	seen := make(map[string][]int32, n)

	for i := 0; i < n; i++ {
		text := "synthetic-corpus-entry-" + strconv.Itoa(i)
		vector := PseudoEmbed(text, dim)

		hashes, err := planes.Hash(toFloat64(vector))
		if err != nil {
			t.Fatalf("hashing entry %d: %v", i, err)
		}
		for _, h := range hashes {
			if h < 0 || h >= 1<<hashSize {
				t.Fatalf("entry %d produced out-of-range hash %d", i, h)
			}
		}

		rehashes, err := planes.Hash(toFloat64(PseudoEmbed(text, dim)))
		if err != nil {
			t.Fatalf("re-hashing entry %d: %v", i, err)
		}
		for j, h := range hashes {
			if rehashes[j] != h {
				t.Fatalf("entry %d table %d hash drifted: %d vs %d", i, j, h, rehashes[j])
			}
		}

		seen[text] = hashes
	}

	if len(seen) != n {
		t.Fatalf("expected %d distinct synthetic texts, got %d", n, len(seen))
	}
}
