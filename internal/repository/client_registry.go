// Package repository persists ClientRecord, Embedding, EmbeddingMetadata
// and LshPosting rows over Postgres via GORM.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/securesearch/securesearch/internal/apikeys"
	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/retry"
)

// ClientRegistrationParams captures the shape of a requested client
// configuration, used both to create a new ClientRecord and to detect
// ConfigConflict on re-initialization.
type ClientRegistrationParams struct {
	DisplayName      string
	HeScheme         string
	HePolyModulusDeg int
	HeScale          int64
	HePublicKey      []byte
	EmbeddingDim     int
	NumTables        int
	HashSize         int
	NumCandidates    int
}

// ClientRegistry manages tenant records: registration, lookup,
// authentication and usage counters.
type ClientRegistry interface {
	// Register creates a new client and returns its bearer token
	// (returned once, in plaintext, never again) and record.
	Register(ctx context.Context, params ClientRegistrationParams, planeSeed string, planes []byte) (*models.ClientRecord, string, error)
	// Reinitialize validates that params match an existing client's
	// shape exactly, returning ErrConfigConflict otherwise.
	Reinitialize(ctx context.Context, existing *models.ClientRecord, params ClientRegistrationParams) error
	Get(ctx context.Context, clientID uuid.UUID) (*models.ClientRecord, error)
	Authenticate(ctx context.Context, bearerToken string) (*models.ClientRecord, error)
	IncrementEmbeddings(ctx context.Context, clientID uuid.UUID, delta int) error
	IncrementSearches(ctx context.Context, clientID uuid.UUID) error
	Deactivate(ctx context.Context, clientID uuid.UUID) error
}

type clientRegistry struct {
	db *gorm.DB
}

// NewClientRegistry constructs a ClientRegistry over db, auto-migrating
// its tables.
func NewClientRegistry(db *gorm.DB) (ClientRegistry, error) {
	if err := db.AutoMigrate(&models.ClientRecord{}); err != nil {
		return nil, fmt.Errorf("repository: migrating client_records: %w", err)
	}
	return &clientRegistry{db: db}, nil
}

func (r *clientRegistry) Register(ctx context.Context, params ClientRegistrationParams, planeSeed string, planes []byte) (*models.ClientRecord, string, error) {
	token, err := apikeys.GenerateToken()
	if err != nil {
		return nil, "", err
	}
	hash, err := apikeys.Hash(token)
	if err != nil {
		return nil, "", err
	}

	record := &models.ClientRecord{
		DisplayName:      params.DisplayName,
		APIKeyHash:       hash,
		PlaneSeed:        planeSeed,
		HeScheme:         params.HeScheme,
		HePolyModulusDeg: params.HePolyModulusDeg,
		HeScale:          params.HeScale,
		HePublicKey:      params.HePublicKey,
		EmbeddingDim:     params.EmbeddingDim,
		NumTables:        params.NumTables,
		HashSize:         params.HashSize,
		NumCandidates:    params.NumCandidates,
		RandomPlanes:     planes,
		IsActive:         true,
	}

	err = retry.WithBackoff(ctx, nil, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	}, retry.IsConnectionError)
	if err != nil {
		return nil, "", fmt.Errorf("repository: creating client record: %w", err)
	}

	return record, token, nil
}

// Reinitialize enforces that embedding_dim and LSH shape cannot change
// once a client exists with that shape, returning ErrConfigConflict if a
// caller tries. Re-initialization with byte-identical shape parameters
// is a no-op success.
func (r *clientRegistry) Reinitialize(ctx context.Context, existing *models.ClientRecord, params ClientRegistrationParams) error {
	if existing.EmbeddingDim != params.EmbeddingDim ||
		existing.NumTables != params.NumTables ||
		existing.HashSize != params.HashSize {
		return ErrConfigConflict
	}
	return nil
}

func (r *clientRegistry) Get(ctx context.Context, clientID uuid.UUID) (*models.ClientRecord, error) {
	var record models.ClientRecord
	err := retry.WithBackoff(ctx, nil, func() error {
		return r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&record).Error
	}, retry.IsConnectionError)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: loading client record: %w", err)
	}
	return &record, nil
}

// Authenticate scans active clients, comparing bearerToken against each
// stored hash via apikeys.Verify. The hash is salted per-client so it
// cannot be looked up by value; acceptable for a small, ambient tenant
// set, but a dedicated lookup index would be needed at larger scale.
func (r *clientRegistry) Authenticate(ctx context.Context, bearerToken string) (*models.ClientRecord, error) {
	var candidates []models.ClientRecord
	err := retry.WithBackoff(ctx, nil, func() error {
		candidates = nil
		return r.db.WithContext(ctx).Where("is_active = ?", true).Find(&candidates).Error
	}, retry.IsConnectionError)
	if err != nil {
		return nil, fmt.Errorf("repository: loading clients for auth: %w", err)
	}

	for i := range candidates {
		ok, err := apikeys.Verify(bearerToken, candidates[i].APIKeyHash)
		if err != nil {
			continue
		}
		if ok {
			return &candidates[i], nil
		}
	}

	return nil, ErrNotFound
}

func (r *clientRegistry) IncrementEmbeddings(ctx context.Context, clientID uuid.UUID, delta int) error {
	return retry.WithBackoff(ctx, nil, func() error {
		return r.db.WithContext(ctx).Model(&models.ClientRecord{}).
			Where("client_id = ?", clientID).
			Updates(map[string]any{
				"total_embeddings": gorm.Expr("total_embeddings + ?", delta),
				"last_active_at":   time.Now(),
			}).Error
	}, retry.IsConnectionError)
}

func (r *clientRegistry) IncrementSearches(ctx context.Context, clientID uuid.UUID) error {
	return retry.WithBackoff(ctx, nil, func() error {
		return r.db.WithContext(ctx).Model(&models.ClientRecord{}).
			Where("client_id = ?", clientID).
			Updates(map[string]any{
				"total_searches": gorm.Expr("total_searches + 1"),
				"last_active_at": time.Now(),
			}).Error
	}, retry.IsConnectionError)
}

// Deactivate marks a client inactive, after which Authenticate no longer
// accepts its token. No in-process plane cache is kept, so nothing else
// is invalidated.
func (r *clientRegistry) Deactivate(ctx context.Context, clientID uuid.UUID) error {
	var rowsAffected int64
	err := retry.WithBackoff(ctx, nil, func() error {
		result := r.db.WithContext(ctx).Model(&models.ClientRecord{}).
			Where("client_id = ?", clientID).
			Update("is_active", false)
		rowsAffected = result.RowsAffected
		return result.Error
	}, retry.IsConnectionError)
	if err != nil {
		return fmt.Errorf("repository: deactivating client: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
