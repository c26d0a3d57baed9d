package clientpipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securesearch/securesearch/internal/dto"
	"github.com/securesearch/securesearch/internal/hecodec"
	"github.com/securesearch/securesearch/internal/lshplanes"
)

func TestInitialize_RegistersAndBuildsSession(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 4, 8, 6)
	planeBytes := planes.Serialize()
	clientID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/initialize", r.URL.Path)

		var req dto.InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 6, req.EmbeddingDim)
		assert.Equal(t, 4, req.LshConfig.NumTables)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.InitializeResponse{
			ClientID: clientID,
			APIKey:   "fresh-token",
			LshConfig: dto.LshConfig{
				NumTables:     4,
				HashSize:      8,
				NumCandidates: 50,
			},
			RandomPlanes: base64.StdEncoding.EncodeToString(planeBytes),
		})
	}))
	defer server.Close()

	pipeline, err := Initialize(context.Background(), server.URL, "", InitializeParams{
		EmbeddingDim:      6,
		NumTables:         4,
		HashSize:          8,
		NumCandidates:     50,
		PolyModulusDegree: 8192,
		Scale:             1 << 40,
		PublicKey:         []byte("fake-public-key"),
	})
	require.NoError(t, err)

	session := pipeline.Session()
	assert.Equal(t, clientID, session.ClientID)
	assert.Equal(t, "fresh-token", session.APIKey)
	assert.Equal(t, 50, session.NumCandidates)
}

func TestAddEmbedding_StripsPlaintextAndUploads(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 2, 4, 3)
	var captured dto.AddEmbeddingRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.AddEmbeddingResponse{EmbeddingID: uuid.New()})
	}))
	defer server.Close()

	pipeline, err := Resume(Session{
		ServerURL:     server.URL,
		APIKey:        "test-key",
		ClientID:      uuid.New(),
		EmbeddingDim:  3,
		NumTables:     2,
		HashSize:      4,
		NumCandidates: 10,
		RandomPlanes:  planes.Serialize(),
	})
	require.NoError(t, err)

	_, err = pipeline.AddEmbedding(context.Background(), "hello world", map[string]any{
		"text":     "hello world",
		"category": "greeting",
	}, nil, true)
	require.NoError(t, err)

	assert.Len(t, captured.LshHashes, 2)
	assert.NotContains(t, captured.Metadata, "text")
	assert.Equal(t, "greeting", captured.Metadata["category"])
}

func TestSearch_DecryptsSortsAndTruncates(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 2, 4, 2)
	codec := hecodec.NewMockCodec(2)

	lowCipher, err := codec.EncodeVector(context.Background(), []float32{0.5, 0})
	require.NoError(t, err)
	lowBytes, err := codec.Serialize(lowCipher)
	require.NoError(t, err)

	highCipher, err := codec.EncodeVector(context.Background(), []float32{0, 1})
	require.NoError(t, err)
	highBytes, err := codec.Serialize(highCipher)
	require.NoError(t, err)

	// Build the two encrypted scores locally by taking each vector's inner
	// product with itself (0.25 for low, 1.0 for high): this test only
	// needs to verify the client's decrypt/sort/truncate behavior, not the
	// server's scoring.
	lowScalar, err := codec.InnerProduct(context.Background(), lowCipher, lowCipher)
	require.NoError(t, err)
	lowScalarBytes, err := codec.EncodeScalarBytes(lowScalar)
	require.NoError(t, err)

	highScalar, err := codec.InnerProduct(context.Background(), highCipher, highCipher)
	require.NoError(t, err)
	highScalarBytes, err := codec.EncodeScalarBytes(highScalar)
	require.NoError(t, err)

	lowID := uuid.New()
	highID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = lowBytes
		_ = highBytes
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.SearchResponse{
			Results: []dto.SearchResultItem{
				{EmbeddingID: lowID, EncryptedSimilarity: base64.StdEncoding.EncodeToString(lowScalarBytes)},
				{EmbeddingID: highID, EncryptedSimilarity: base64.StdEncoding.EncodeToString(highScalarBytes)},
			},
			CandidatesChecked: 2,
			CandidatesFound:   2,
		})
	}))
	defer server.Close()

	pipeline, err := Resume(Session{
		ServerURL:     server.URL,
		APIKey:        "test-key",
		ClientID:      uuid.New(),
		EmbeddingDim:  2,
		NumTables:     2,
		HashSize:      4,
		NumCandidates: 10,
		RandomPlanes:  planes.Serialize(),
	})
	require.NoError(t, err)

	result, err := pipeline.Search(context.Background(), "query text", 1, 10)
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, highID, result.Results[0].EmbeddingID)
	assert.InDelta(t, 1.0, result.Results[0].Score, 1e-6)
}

func TestAddEmbedding_NetworkErrorIsWrapped(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 1, 4, 2)
	pipeline, err := Resume(Session{
		ServerURL:     "http://127.0.0.1:1",
		APIKey:        "test-key",
		ClientID:      uuid.New(),
		EmbeddingDim:  2,
		NumTables:     1,
		HashSize:      4,
		NumCandidates: 10,
		RandomPlanes:  planes.Serialize(),
	})
	require.NoError(t, err)

	_, err = pipeline.AddEmbedding(context.Background(), "hello", nil, nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestAddEmbedding_AuthErrorIsWrapped(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 1, 4, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthenticated"}`))
	}))
	defer server.Close()

	pipeline, err := Resume(Session{
		ServerURL:     server.URL,
		APIKey:        "bad-key",
		ClientID:      uuid.New(),
		EmbeddingDim:  2,
		NumTables:     1,
		HashSize:      4,
		NumCandidates: 10,
		RandomPlanes:  planes.Serialize(),
	})
	require.NoError(t, err)

	_, err = pipeline.AddEmbedding(context.Background(), "hello", nil, nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestStats_FetchesUsageCounters(t *testing.T) {
	planes := lshplanes.Generate("test-seed", 1, 4, 2)
	clientID := uuid.New()
	lastActive := "2026-01-01T00:00:00Z"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stats/"+clientID.String(), r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.StatsResponse{
			ClientID:        clientID,
			TotalEmbeddings: 3,
			TotalSearches:   7,
			IsActive:        true,
			LastActiveAt:    &lastActive,
			CreatedAt:       "2025-12-01T00:00:00Z",
		})
	}))
	defer server.Close()

	pipeline, err := Resume(Session{
		ServerURL:     server.URL,
		APIKey:        "a-token",
		ClientID:      clientID,
		EmbeddingDim:  2,
		NumTables:     1,
		HashSize:      4,
		NumCandidates: 10,
		RandomPlanes:  planes.Serialize(),
	})
	require.NoError(t, err)

	stats, err := pipeline.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEmbeddings)
	assert.Equal(t, 7, stats.TotalSearches)
	assert.True(t, stats.IsActive)
}
