package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/retry"
)

// Candidate is one embedding_id surfaced by LSH filtering, along with how
// many of the query's table hashes it matched (used for match-count-desc
// ordering). Fanout truncation is reported per selection, in
// CandidateSelection.TruncatedBuckets, not per candidate.
type Candidate struct {
	EmbeddingID uuid.UUID
	MatchCount  int
}

// CandidateSelection is the result of LshIndex.SelectCandidates.
type CandidateSelection struct {
	Candidates []Candidate
	// TotalMatched is the number of distinct embeddings that matched at
	// least one query hash, before Candidates was cut down to n. It can
	// exceed len(Candidates).
	TotalMatched     int
	TruncatedBuckets int
}

// LshIndex manages posting lists (client, table, hash) -> {embedding_id}
// and candidate selection over them.
type LshIndex interface {
	// SelectCandidates joins the query hash vector against postings,
	// grouping by embedding_id and ranking by match count descending,
	// limited to n. Any (client, table, hash) bucket larger than
	// maxBucketFanout is deterministically subsampled before the join.
	SelectCandidates(ctx context.Context, clientID uuid.UUID, queryHashes []int32, n, maxBucketFanout int) (*CandidateSelection, error)
}

type lshIndex struct {
	db *gorm.DB
}

// NewLshIndex constructs an LshIndex over db. Posting tables are migrated
// by EmbeddingStore, which owns the LshPosting model.
func NewLshIndex(db *gorm.DB) LshIndex {
	return &lshIndex{db: db}
}

func (idx *lshIndex) SelectCandidates(ctx context.Context, clientID uuid.UUID, queryHashes []int32, n, maxBucketFanout int) (*CandidateSelection, error) {
	truncated := 0
	matchCounts := make(map[uuid.UUID]int)
	createdAt := make(map[uuid.UUID]int64)

	for table, hash := range queryHashes {
		bucketSize, err := idx.bucketSize(ctx, clientID, table, hash)
		if err != nil {
			return nil, err
		}
		if bucketSize > maxBucketFanout {
			truncated++
		}

		var rows []struct {
			EmbeddingID uuid.UUID
			CreatedAt   int64
		}
		err = retry.WithBackoff(ctx, nil, func() error {
			rows = nil
			// The ORDER BY / LIMIT always applies, even when bucketSize is
			// within maxBucketFanout: a bucket under the cap is returned
			// unchanged, and one over it is subsampled in Postgres rather
			// than Scan'd into memory in full and trimmed afterward. The
			// md5 ordering is a stable function of embedding_id, so two
			// concurrent searches against the same bucket see the same
			// truncated set.
			return idx.db.WithContext(ctx).
				Table("lsh_postings p").
				Select("p.embedding_id, extract(epoch from e.created_at)::bigint as created_at").
				Joins("JOIN embeddings e ON e.embedding_id = p.embedding_id").
				Where("p.client_id = ? AND p.table_index = ? AND p.hash_value = ? AND e.is_deleted = false", clientID, table, hash).
				Order("md5(p.embedding_id::text)").
				Limit(maxBucketFanout).
				Scan(&rows).Error
		}, retry.IsConnectionError)
		if err != nil {
			return nil, fmt.Errorf("repository: scanning posting bucket: %w", err)
		}

		for _, r := range rows {
			matchCounts[r.EmbeddingID]++
			createdAt[r.EmbeddingID] = r.CreatedAt
		}
	}

	candidates := make([]Candidate, 0, len(matchCounts))
	for id, count := range matchCounts {
		candidates = append(candidates, Candidate{EmbeddingID: id, MatchCount: count})
	}
	totalMatched := len(candidates)

	// Rank by match count desc, then most-recent created_at, then
	// embedding_id lexicographic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MatchCount != candidates[j].MatchCount {
			return candidates[i].MatchCount > candidates[j].MatchCount
		}
		ci, cj := createdAt[candidates[i].EmbeddingID], createdAt[candidates[j].EmbeddingID]
		if ci != cj {
			return ci > cj
		}
		return candidates[i].EmbeddingID.String() < candidates[j].EmbeddingID.String()
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	return &CandidateSelection{
		Candidates:       candidates,
		TotalMatched:     totalMatched,
		TruncatedBuckets: truncated,
	}, nil
}

func (idx *lshIndex) bucketSize(ctx context.Context, clientID uuid.UUID, table int, hash int32) (int, error) {
	var count int64
	err := retry.WithBackoff(ctx, nil, func() error {
		return idx.db.WithContext(ctx).Model(&models.LshPosting{}).
			Where("client_id = ? AND table_index = ? AND hash_value = ?", clientID, table, hash).
			Count(&count).Error
	}, retry.IsConnectionError)
	if err != nil {
		return 0, fmt.Errorf("repository: measuring bucket size: %w", err)
	}
	return int(count), nil
}
