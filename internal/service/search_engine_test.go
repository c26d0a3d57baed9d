package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/securesearch/securesearch/internal/hecodec"
	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/repository"
)

type mockClientRegistry struct {
	mock.Mock
}

func (m *mockClientRegistry) Register(ctx context.Context, params repository.ClientRegistrationParams, seed string, planes []byte) (*models.ClientRecord, string, error) {
	args := m.Called(ctx, params, seed, planes)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.ClientRecord), args.String(1), args.Error(2)
}

func (m *mockClientRegistry) Reinitialize(ctx context.Context, existing *models.ClientRecord, params repository.ClientRegistrationParams) error {
	args := m.Called(ctx, existing, params)
	return args.Error(0)
}

func (m *mockClientRegistry) Get(ctx context.Context, clientID uuid.UUID) (*models.ClientRecord, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClientRecord), args.Error(1)
}

func (m *mockClientRegistry) Authenticate(ctx context.Context, token string) (*models.ClientRecord, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClientRecord), args.Error(1)
}

func (m *mockClientRegistry) IncrementEmbeddings(ctx context.Context, clientID uuid.UUID, delta int) error {
	args := m.Called(ctx, clientID, delta)
	return args.Error(0)
}

func (m *mockClientRegistry) IncrementSearches(ctx context.Context, clientID uuid.UUID) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *mockClientRegistry) Deactivate(ctx context.Context, clientID uuid.UUID) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

type mockEmbeddingStore struct {
	mock.Mock
}

func (m *mockEmbeddingStore) Insert(ctx context.Context, clientID uuid.UUID, ciphertext []byte, metadata map[string]any, externalID *string, hashes []int32) (uuid.UUID, error) {
	args := m.Called(ctx, clientID, ciphertext, metadata, externalID, hashes)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockEmbeddingStore) FetchMany(ctx context.Context, clientID uuid.UUID, embeddingIDs []uuid.UUID) ([]repository.StoredEmbedding, error) {
	args := m.Called(ctx, clientID, embeddingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StoredEmbedding), args.Error(1)
}

func (m *mockEmbeddingStore) SoftDelete(ctx context.Context, clientID, embeddingID uuid.UUID) error {
	args := m.Called(ctx, clientID, embeddingID)
	return args.Error(0)
}

func (m *mockEmbeddingStore) CountActive(ctx context.Context, clientID uuid.UUID) (int, error) {
	args := m.Called(ctx, clientID)
	return args.Int(0), args.Error(1)
}

func (m *mockEmbeddingStore) PurgeOrphanPostings(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type mockLshIndex struct {
	mock.Mock
}

func (m *mockLshIndex) SelectCandidates(ctx context.Context, clientID uuid.UUID, queryHashes []int32, n, maxBucketFanout int) (*repository.CandidateSelection, error) {
	args := m.Called(ctx, clientID, queryHashes, n, maxBucketFanout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CandidateSelection), args.Error(1)
}

func testClient(dim int) *models.ClientRecord {
	return &models.ClientRecord{
		ClientID:        uuid.New(),
		EmbeddingDim:    dim,
		NumTables:       4,
		HashSize:        8,
		NumCandidates:   100,
		MaxBucketFanout: 5000,
	}
}

func TestSearchEngine_Search_EmptyCandidates(t *testing.T) {
	registry := new(mockClientRegistry)
	store := new(mockEmbeddingStore)
	index := new(mockLshIndex)

	client := testClient(8)
	index.On("SelectCandidates", mock.Anything, client.ClientID, mock.Anything, 10, client.MaxBucketFanout).
		Return(&repository.CandidateSelection{Candidates: nil, TruncatedBuckets: 0}, nil)

	engine := NewSearchEngine(registry, store, index, func(ctx context.Context, c *models.ClientRecord) (hecodec.Codec, error) {
		return hecodec.NewMockCodec(8), nil
	}, nil)

	outcome, err := engine.Search(context.Background(), client, nil, []int32{1, 2, 3, 4}, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
	assert.Equal(t, 0, outcome.CandidatesFound)
}

func TestSearchEngine_Search_ScoresCandidates(t *testing.T) {
	registry := new(mockClientRegistry)
	store := new(mockEmbeddingStore)
	index := new(mockLshIndex)

	client := testClient(4)
	codec := hecodec.NewMockCodec(4)

	queryVec := []float32{1, 0, 0, 0}
	candidateVec := []float32{0.5, 0.5, 0, 0}

	encQuery, err := codec.EncodeQuery(context.Background(), queryVec)
	require.NoError(t, err)
	encCandidate, err := codec.EncodeVector(context.Background(), candidateVec)
	require.NoError(t, err)

	candidateID := uuid.New()
	index.On("SelectCandidates", mock.Anything, client.ClientID, mock.Anything, 5, client.MaxBucketFanout).
		Return(&repository.CandidateSelection{
			Candidates:       []repository.Candidate{{EmbeddingID: candidateID, MatchCount: 3}},
			TotalMatched:     1,
			TruncatedBuckets: 0,
		}, nil)

	store.On("FetchMany", mock.Anything, client.ClientID, []uuid.UUID{candidateID}).
		Return([]repository.StoredEmbedding{
			{EmbeddingID: candidateID, Ciphertext: []byte(encCandidate), Metadata: map[string]any{"category": "tech"}},
		}, nil)

	registry.On("IncrementSearches", mock.Anything, client.ClientID).Return(nil)

	engine := NewSearchEngine(registry, store, index, func(ctx context.Context, c *models.ClientRecord) (hecodec.Codec, error) {
		return codec, nil
	}, nil)

	outcome, err := engine.Search(context.Background(), client, []byte(encQuery), []int32{1, 2, 3, 4}, 1, 5)
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, candidateID, outcome.Results[0].EmbeddingID)

	score, err := codec.DecryptScalar(context.Background(), hecodec.EncryptedScalar(outcome.Results[0].EncryptedSimilarity))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-6)

	registry.AssertExpectations(t)
}

func TestSearchEngine_Search_CorruptCiphertext(t *testing.T) {
	registry := new(mockClientRegistry)
	store := new(mockEmbeddingStore)
	index := new(mockLshIndex)

	client := testClient(4)
	codec := hecodec.NewMockCodec(4)

	candidateID := uuid.New()
	index.On("SelectCandidates", mock.Anything, client.ClientID, mock.Anything, 5, client.MaxBucketFanout).
		Return(&repository.CandidateSelection{
			Candidates:   []repository.Candidate{{EmbeddingID: candidateID, MatchCount: 1}},
			TotalMatched: 1,
		}, nil)

	store.On("FetchMany", mock.Anything, client.ClientID, []uuid.UUID{candidateID}).
		Return([]repository.StoredEmbedding{
			{EmbeddingID: candidateID, Ciphertext: []byte("not-a-ciphertext")},
		}, nil)

	engine := NewSearchEngine(registry, store, index, func(ctx context.Context, c *models.ClientRecord) (hecodec.Codec, error) {
		return codec, nil
	}, nil)

	_, err := engine.Search(context.Background(), client, nil, []int32{1, 2, 3, 4}, 1, 5)
	assert.ErrorIs(t, err, ErrCorruptCiphertext)
}

// TestSearchEngine_Search_ReportsFullMatchCountBeyondRerank asserts that
// candidates_found reflects every embedding that matched at least one LSH
// bucket, even when that count exceeds the rerank budget SelectCandidates
// was limited to.
func TestSearchEngine_Search_ReportsFullMatchCountBeyondRerank(t *testing.T) {
	registry := new(mockClientRegistry)
	store := new(mockEmbeddingStore)
	index := new(mockLshIndex)

	client := testClient(4)
	codec := hecodec.NewMockCodec(4)

	candidateID := uuid.New()
	encCandidate, err := codec.EncodeVector(context.Background(), []float32{0.5, 0.5, 0, 0})
	require.NoError(t, err)
	encQuery, err := codec.EncodeQuery(context.Background(), []float32{1, 0, 0, 0})
	require.NoError(t, err)

	index.On("SelectCandidates", mock.Anything, client.ClientID, mock.Anything, 2, client.MaxBucketFanout).
		Return(&repository.CandidateSelection{
			Candidates:   []repository.Candidate{{EmbeddingID: candidateID, MatchCount: 3}},
			TotalMatched: 9,
		}, nil)

	store.On("FetchMany", mock.Anything, client.ClientID, []uuid.UUID{candidateID}).
		Return([]repository.StoredEmbedding{
			{EmbeddingID: candidateID, Ciphertext: []byte(encCandidate)},
		}, nil)

	registry.On("IncrementSearches", mock.Anything, client.ClientID).Return(nil)

	engine := NewSearchEngine(registry, store, index, func(ctx context.Context, c *models.ClientRecord) (hecodec.Codec, error) {
		return codec, nil
	}, nil)

	outcome, err := engine.Search(context.Background(), client, []byte(encQuery), []int32{1, 2, 3, 4}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 9, outcome.CandidatesFound)
	assert.Equal(t, 1, outcome.CandidatesChecked)
}
