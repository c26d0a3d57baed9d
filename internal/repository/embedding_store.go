package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/retry"
)

// StoredEmbedding is the bundle EmbeddingStore.FetchMany returns per
// embedding: ciphertext plus its metadata, for the SearchEngine to pass
// untouched into result packaging.
type StoredEmbedding struct {
	EmbeddingID uuid.UUID
	Ciphertext  []byte
	Metadata    map[string]any
	CreatedAt   time.Time
}

// EmbeddingStore durably maps embedding_id to (client_id, ciphertext,
// metadata, soft-delete state).
type EmbeddingStore interface {
	// Insert writes an Embedding and its EmbeddingMetadata atomically,
	// along with exactly numTables LSH posting rows, in one transaction:
	// no caller may ever observe a partial write. hashes must have length
	// numTables.
	Insert(ctx context.Context, clientID uuid.UUID, ciphertext []byte, metadata map[string]any, externalID *string, hashes []int32) (uuid.UUID, error)
	FetchMany(ctx context.Context, clientID uuid.UUID, embeddingIDs []uuid.UUID) ([]StoredEmbedding, error)
	SoftDelete(ctx context.Context, clientID, embeddingID uuid.UUID) error
	CountActive(ctx context.Context, clientID uuid.UUID) (int, error)
	// PurgeOrphanPostings removes LSH posting rows whose embedding is
	// soft-deleted and older than olderThan.
	PurgeOrphanPostings(ctx context.Context, olderThan time.Time) (int64, error)
}

type embeddingStore struct {
	db *gorm.DB
}

// NewEmbeddingStore constructs an EmbeddingStore over db, auto-migrating
// its tables.
func NewEmbeddingStore(db *gorm.DB) (EmbeddingStore, error) {
	if err := db.AutoMigrate(&models.Embedding{}, &models.EmbeddingMetadata{}, &models.LshPosting{}); err != nil {
		return nil, fmt.Errorf("repository: migrating embedding tables: %w", err)
	}
	return &embeddingStore{db: db}, nil
}

func (s *embeddingStore) Insert(ctx context.Context, clientID uuid.UUID, ciphertext []byte, metadata map[string]any, externalID *string, hashes []int32) (uuid.UUID, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: marshaling metadata: %w", err)
	}

	embedding := models.Embedding{
		ClientID:   clientID,
		ExternalID: externalID,
		Ciphertext: ciphertext,
		SizeBytes:  len(ciphertext),
	}

	err = retry.WithBackoff(ctx, nil, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&embedding).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateExternal
				}
				return fmt.Errorf("repository: creating embedding: %w", err)
			}

			if err := tx.Create(&models.EmbeddingMetadata{
				EmbeddingID: embedding.EmbeddingID,
				Metadata:    string(metadataJSON),
			}).Error; err != nil {
				return fmt.Errorf("repository: creating embedding metadata: %w", err)
			}

			postings := make([]models.LshPosting, len(hashes))
			for i, h := range hashes {
				postings[i] = models.LshPosting{
					ClientID:    clientID,
					TableIndex:  i,
					HashValue:   h,
					EmbeddingID: embedding.EmbeddingID,
				}
			}
			if len(postings) > 0 {
				if err := tx.Create(&postings).Error; err != nil {
					return fmt.Errorf("repository: creating lsh postings: %w", err)
				}
			}

			return nil
		})
	}, retry.IsConnectionError)
	if err != nil {
		return uuid.Nil, err
	}

	return embedding.EmbeddingID, nil
}

func (s *embeddingStore) FetchMany(ctx context.Context, clientID uuid.UUID, embeddingIDs []uuid.UUID) ([]StoredEmbedding, error) {
	if len(embeddingIDs) == 0 {
		return nil, nil
	}

	var rows []models.Embedding
	err := retry.WithBackoff(ctx, nil, func() error {
		rows = nil
		return s.db.WithContext(ctx).
			Preload("Metadata").
			Where("client_id = ? AND embedding_id IN ? AND is_deleted = false", clientID, embeddingIDs).
			Find(&rows).Error
	}, retry.IsConnectionError)
	if err != nil {
		return nil, fmt.Errorf("repository: fetching embeddings: %w", err)
	}

	byID := make(map[uuid.UUID]models.Embedding, len(rows))
	for _, row := range rows {
		byID[row.EmbeddingID] = row
	}

	// Preserve caller-supplied order, for alignment with the candidate
	// list the caller already ranked.
	out := make([]StoredEmbedding, 0, len(embeddingIDs))
	for _, id := range embeddingIDs {
		row, ok := byID[id]
		if !ok {
			continue
		}
		var metadata map[string]any
		if row.Metadata.Metadata != "" {
			_ = json.Unmarshal([]byte(row.Metadata.Metadata), &metadata)
		}
		out = append(out, StoredEmbedding{
			EmbeddingID: row.EmbeddingID,
			Ciphertext:  row.Ciphertext,
			Metadata:    metadata,
			CreatedAt:   row.CreatedAt,
		})
	}

	go s.touchAccessed(embeddingIDs)

	return out, nil
}

// touchAccessed updates accessed_at/access_count off the request's
// critical path; a lost update here has no correctness consequence.
func (s *embeddingStore) touchAccessed(embeddingIDs []uuid.UUID) {
	s.db.Model(&models.Embedding{}).
		Where("embedding_id IN ?", embeddingIDs).
		Updates(map[string]any{
			"accessed_at":  time.Now(),
			"access_count": gorm.Expr("access_count + 1"),
		})
}

func (s *embeddingStore) SoftDelete(ctx context.Context, clientID, embeddingID uuid.UUID) error {
	now := time.Now()
	var rowsAffected int64
	err := retry.WithBackoff(ctx, nil, func() error {
		result := s.db.WithContext(ctx).Model(&models.Embedding{}).
			Where("client_id = ? AND embedding_id = ?", clientID, embeddingID).
			Updates(map[string]any{"is_deleted": true, "deleted_at": now})
		rowsAffected = result.RowsAffected
		return result.Error
	}, retry.IsConnectionError)
	if err != nil {
		return fmt.Errorf("repository: soft-deleting embedding: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *embeddingStore) CountActive(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int64
	err := retry.WithBackoff(ctx, nil, func() error {
		return s.db.WithContext(ctx).Model(&models.Embedding{}).
			Where("client_id = ? AND is_deleted = false", clientID).
			Count(&count).Error
	}, retry.IsConnectionError)
	return int(count), err
}

func (s *embeddingStore) PurgeOrphanPostings(ctx context.Context, olderThan time.Time) (int64, error) {
	var rowsAffected int64
	err := retry.WithBackoff(ctx, nil, func() error {
		result := s.db.WithContext(ctx).
			Where("embedding_id IN (?)",
				s.db.Model(&models.Embedding{}).
					Select("embedding_id").
					Where("is_deleted = true AND deleted_at < ?", olderThan),
			).
			Delete(&models.LshPosting{})
		rowsAffected = result.RowsAffected
		return result.Error
	}, retry.IsConnectionError)
	if err != nil {
		return 0, fmt.Errorf("repository: purging orphan postings: %w", err)
	}
	return rowsAffected, nil
}

func isUniqueViolation(err error) bool {
	// GORM's Postgres driver surfaces a *pgconn.PgError with code 23505;
	// matching the message avoids importing the driver-internal type here.
	return err != nil && (strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key"))
}
