// Package dto holds the JSON request/response shapes of the HTTP API.
package dto

import "github.com/google/uuid"

// ContextParams describes the client's HE context, as supplied to
// /initialize.
type ContextParams struct {
	PublicKey         string `json:"public_key" binding:"required"`
	Scheme            string `json:"scheme" binding:"required"`
	PolyModulusDegree int    `json:"poly_modulus_degree" binding:"required"`
	Scale             int64  `json:"scale" binding:"required"`
}

// LshConfig describes the LSH shape a client is initialized with.
type LshConfig struct {
	NumTables     int `json:"num_tables" binding:"required"`
	HashSize      int `json:"hash_size" binding:"required"`
	NumCandidates int `json:"num_candidates" binding:"required"`
}

// InitializeRequest is the body of POST /initialize.
type InitializeRequest struct {
	DisplayName   string        `json:"display_name"`
	ContextParams ContextParams `json:"context_params" binding:"required"`
	EmbeddingDim  int           `json:"embedding_dim" binding:"required"`
	LshConfig     LshConfig     `json:"lsh_config" binding:"required"`
}

// InitializeResponse is the body returned by POST /initialize.
type InitializeResponse struct {
	ClientID     uuid.UUID `json:"client_id"`
	APIKey       string    `json:"api_key,omitempty"`
	LshConfig    LshConfig `json:"lsh_config"`
	RandomPlanes string    `json:"random_planes"`
}

// AddEmbeddingRequest is the body of POST /add_embedding.
type AddEmbeddingRequest struct {
	ClientID           uuid.UUID      `json:"client_id" binding:"required"`
	EncryptedEmbedding string         `json:"encrypted_embedding" binding:"required"`
	LshHashes          []int32        `json:"lsh_hashes" binding:"required"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	ExternalID         *string        `json:"external_id,omitempty"`
}

// AddEmbeddingResponse is the body returned by POST /add_embedding.
type AddEmbeddingResponse struct {
	EmbeddingID uuid.UUID `json:"embedding_id"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	ClientID         uuid.UUID `json:"client_id" binding:"required"`
	EncryptedQuery   string    `json:"encrypted_query" binding:"required"`
	LshHashes        []int32   `json:"lsh_hashes" binding:"required"`
	TopK             int       `json:"top_k" binding:"required"`
	RerankCandidates int       `json:"rerank_candidates" binding:"required"`
}

// SearchResultItem is one entry in SearchResponse.Results.
type SearchResultItem struct {
	EmbeddingID        uuid.UUID      `json:"embedding_id"`
	EncryptedSimilarity string        `json:"encrypted_similarity"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Results           []SearchResultItem `json:"results"`
	CandidatesChecked int                 `json:"candidates_checked"`
	CandidatesFound   int                 `json:"candidates_found"`
	TruncatedBuckets  int                 `json:"truncated_buckets"`
	SearchTimeMs      float64             `json:"search_time_ms"`
	LshTimeMs         float64             `json:"lsh_time_ms"`
	HeComputeTimeMs   float64             `json:"he_compute_time_ms"`
}

// StatsResponse is the body returned by GET /stats/{client_id}.
type StatsResponse struct {
	ClientID        uuid.UUID `json:"client_id"`
	TotalEmbeddings int       `json:"total_embeddings"`
	TotalSearches   int       `json:"total_searches"`
	IsActive        bool      `json:"is_active"`
	LastActiveAt    *string   `json:"last_active_at,omitempty"`
	CreatedAt       string    `json:"created_at"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
