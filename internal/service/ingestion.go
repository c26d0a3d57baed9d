package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/securesearch/securesearch/internal/config"
	"github.com/securesearch/securesearch/internal/lshplanes"
	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/repository"
)

// IngestionService handles client registration and embedding ingestion,
// the write-path counterpart to SearchEngine's read path.
type IngestionService struct {
	registry repository.ClientRegistry
	store    repository.EmbeddingStore
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(registry repository.ClientRegistry, store repository.EmbeddingStore) *IngestionService {
	return &IngestionService{registry: registry, store: store}
}

// Registry exposes the underlying ClientRegistry for handlers that need
// direct lookup/authentication, avoiding a second constructor parameter
// threaded through every handler.
func (s *IngestionService) Registry() repository.ClientRegistry { return s.registry }

// InitializeResult bundles a freshly (or re-)initialized client with its
// plane bytes and, for a brand new client, its one-time bearer token.
type InitializeResult struct {
	Client       *models.ClientRecord
	APIKey       string // empty on re-initialization of an existing client
	RandomPlanes []byte
}

// Initialize implements the initialize/re-initialize contract. When
// existingToken authenticates an existing client, the call is treated as
// re-initialization: params must match the existing shape exactly or the
// call fails with repository.ErrConfigConflict, and no new token is
// minted. Otherwise a brand new client is registered, with a fresh,
// randomly seeded plane set distributed back to the caller so client and
// server hash identically.
func (s *IngestionService) Initialize(ctx context.Context, existingToken string, params repository.ClientRegistrationParams) (*InitializeResult, error) {
	if existingToken != "" {
		existing, err := s.registry.Authenticate(ctx, existingToken)
		if err == nil {
			if err := s.registry.Reinitialize(ctx, existing, params); err != nil {
				return nil, err
			}
			return &InitializeResult{Client: existing, RandomPlanes: existing.RandomPlanes}, nil
		}
	}

	planeSeed := uuid.New().String()
	planes := lshplanes.Generate(planeSeed+":"+config.GetServerSecret(), params.NumTables, params.HashSize, params.EmbeddingDim)
	planeBytes := planes.Serialize()

	record, token, err := s.registry.Register(ctx, params, planeSeed, planeBytes)
	if err != nil {
		return nil, fmt.Errorf("service: registering client: %w", err)
	}

	return &InitializeResult{Client: record, APIKey: token, RandomPlanes: planeBytes}, nil
}

// AddEmbedding enforces the embedding quota before delegating to
// EmbeddingStore.Insert, then updates the client's embedding counter on
// success.
func (s *IngestionService) AddEmbedding(ctx context.Context, clientID uuid.UUID, maxEmbeddings int, ciphertext []byte, metadata map[string]any, externalID *string, hashes []int32) (uuid.UUID, error) {
	active, err := s.store.CountActive(ctx, clientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("service: counting active embeddings: %w", err)
	}
	if active >= maxEmbeddings {
		return uuid.Nil, repository.ErrQuotaExceeded
	}

	id, err := s.store.Insert(ctx, clientID, ciphertext, metadata, externalID, hashes)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.registry.IncrementEmbeddings(ctx, clientID, 1); err != nil {
		return id, fmt.Errorf("service: incrementing embedding counter: %w", err)
	}

	return id, nil
}
