// Package service orchestrates the candidate-filter-then-homomorphic-
// score search pipeline and client registration/embedding ingestion.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/securesearch/securesearch/internal/hecodec"
	"github.com/securesearch/securesearch/internal/logging"
	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/repository"
)

// ErrCorruptCiphertext is returned when a stored ciphertext fails to
// deserialize during the homomorphic scoring step.
var ErrCorruptCiphertext = fmt.Errorf("service: corrupt ciphertext")

// SearchResult is one scored candidate, preserving LshIndex's match-count-
// descending ordering.
type SearchResult struct {
	EmbeddingID         uuid.UUID
	EncryptedSimilarity []byte
	Metadata            map[string]any
}

// SearchOutcome bundles a search's results with the timings and counters
// a caller is expected to report.
type SearchOutcome struct {
	Results           []SearchResult
	CandidatesFound   int
	CandidatesChecked int
	TruncatedBuckets  int
	LshTimeMs         float64
	HeComputeTimeMs   float64
	TotalTimeMs       float64
}

// CodecResolver returns the HeCodec instance to use for a given client.
// Each client may run its own HE parameters, so the engine never holds a
// single codec instance.
type CodecResolver func(ctx context.Context, client *models.ClientRecord) (hecodec.Codec, error)

// SearchEngine implements the end-to-end search orchestration: LSH
// filter, bulk fetch, homomorphic scoring, and result packaging.
type SearchEngine struct {
	registry     repository.ClientRegistry
	store        repository.EmbeddingStore
	index        repository.LshIndex
	resolveCodec CodecResolver
	logger       *logging.StructuredLogger
}

// NewSearchEngine constructs a SearchEngine over its three repository
// collaborators and a codec resolver.
func NewSearchEngine(registry repository.ClientRegistry, store repository.EmbeddingStore, index repository.LshIndex, resolveCodec CodecResolver, logger *logging.StructuredLogger) *SearchEngine {
	return &SearchEngine{registry: registry, store: store, index: index, resolveCodec: resolveCodec, logger: logger}
}

// Search runs the LSH filter -> fetch -> HE inner-product -> packaging
// pipeline. 1 <= topK <= rerank <= client.NumCandidates is the caller's
// responsibility to validate before calling Search.
func (e *SearchEngine) Search(ctx context.Context, client *models.ClientRecord, encQuery []byte, queryHashes []int32, topK, rerank int) (*SearchOutcome, error) {
	start := time.Now()

	lshStart := time.Now()
	selection, err := e.index.SelectCandidates(ctx, client.ClientID, queryHashes, rerank, client.MaxBucketFanout)
	if err != nil {
		return nil, fmt.Errorf("service: selecting candidates: %w", err)
	}
	lshElapsed := time.Since(lshStart)

	candidatesFound := selection.TotalMatched
	candidatesChecked := len(selection.Candidates)
	if candidatesChecked > rerank {
		candidatesChecked = rerank
	}

	if candidatesFound == 0 {
		return &SearchOutcome{
			Results:           []SearchResult{},
			CandidatesFound:   0,
			CandidatesChecked: 0,
			TruncatedBuckets:  selection.TruncatedBuckets,
			LshTimeMs:         msSince(lshStart),
			HeComputeTimeMs:   0,
			TotalTimeMs:       msSince(start),
		}, nil
	}

	ids := make([]uuid.UUID, 0, candidatesChecked)
	for i, c := range selection.Candidates {
		if i >= candidatesChecked {
			break
		}
		ids = append(ids, c.EmbeddingID)
	}

	stored, err := e.store.FetchMany(ctx, client.ClientID, ids)
	if err != nil {
		return nil, fmt.Errorf("service: fetching candidate ciphertexts: %w", err)
	}

	codec, err := e.resolveCodec(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("service: resolving codec: %w", err)
	}

	heStart := time.Now()
	results := make([]SearchResult, 0, len(stored))
	for _, c := range stored {
		candidateCipher, err := codec.Deserialize(c.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptCiphertext, err)
		}

		score, err := codec.InnerProduct(ctx, hecodec.Ciphertext(encQuery), candidateCipher)
		if err != nil {
			return nil, fmt.Errorf("service: computing inner product: %w", err)
		}

		scoreBytes, err := codec.EncodeScalarBytes(score)
		if err != nil {
			return nil, fmt.Errorf("service: encoding encrypted score: %w", err)
		}

		results = append(results, SearchResult{
			EmbeddingID:         c.EmbeddingID,
			EncryptedSimilarity: scoreBytes,
			Metadata:            c.Metadata,
		})
	}
	heElapsed := time.Since(heStart)

	if e.logger != nil {
		e.logger.LogHeCompute(ctx, len(results), heElapsed)
	}

	if err := e.registry.IncrementSearches(ctx, client.ClientID); err != nil && e.logger != nil {
		e.logger.WithError(ctx, err).Warn("failed to increment search counter")
	}

	return &SearchOutcome{
		Results:           results,
		CandidatesFound:   candidatesFound,
		CandidatesChecked: candidatesChecked,
		TruncatedBuckets:  selection.TruncatedBuckets,
		LshTimeMs:         float64(lshElapsed.Microseconds()) / 1000.0,
		HeComputeTimeMs:   float64(heElapsed.Microseconds()) / 1000.0,
		TotalTimeMs:       msSince(start),
	}, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

// EncodedSimilarityBase64 is a small packaging helper shared by handlers:
// results carry raw bytes internally and are base64-encoded only at the
// HTTP boundary.
func EncodedSimilarityBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
