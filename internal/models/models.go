// Package models holds the GORM-mapped entities backing the client
// registry, embedding store and LSH index.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientRecord is a tenant: its HE context, LSH shape and usage counters.
// Planes are stored as opaque bytes and can be regenerated deterministically
// from PlaneSeed combined with the server secret if ever lost, so
// persistence of RandomPlanes is an optimization,
// not the source of truth.
type ClientRecord struct {
	ClientID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DisplayName   string    `gorm:"type:varchar(255);not null"`
	APIKeyHash    string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	PlaneSeed     string    `gorm:"type:varchar(128);not null"`

	// HE context descriptor: scheme tag, polynomial modulus degree,
	// scale, serialized public key bytes.
	HeScheme           string `gorm:"type:varchar(32);not null"`
	HePolyModulusDeg   int    `gorm:"not null"`
	HeScale            int64  `gorm:"not null"`
	HePublicKey        []byte `gorm:"type:bytea"`

	EmbeddingDim int `gorm:"not null"`

	// LSH config: num_tables T, hash_size b, num_candidates N.
	NumTables      int `gorm:"not null"`
	HashSize       int `gorm:"not null"`
	NumCandidates  int `gorm:"not null"`
	MaxBucketFanout int `gorm:"not null;default:5000"`
	MaxEmbeddings  int `gorm:"not null;default:1000000"`

	RandomPlanes []byte `gorm:"type:bytea"`

	TotalEmbeddings int `gorm:"not null;default:0"`
	TotalSearches   int `gorm:"not null;default:0"`

	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
	LastActiveAt *time.Time `gorm:"index"`
}

func (ClientRecord) TableName() string { return "client_records" }

// Embedding is a stored ciphertext and its lifecycle state. The plaintext
// vector is never held server-side.
type Embedding struct {
	EmbeddingID uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_embeddings_client;index:idx_embeddings_client_external,unique"`
	ExternalID  *string    `gorm:"type:varchar(255);index:idx_embeddings_client_external,unique"`
	Ciphertext  []byte     `gorm:"type:bytea;not null"`
	SizeBytes   int        `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null;default:now();index"`
	AccessedAt  time.Time  `gorm:"not null;default:now()"`
	AccessCount int        `gorm:"not null;default:0"`
	IsDeleted   bool       `gorm:"not null;default:false;index"`
	DeletedAt   *time.Time

	Metadata EmbeddingMetadata `gorm:"foreignKey:EmbeddingID;references:EmbeddingID"`
}

func (Embedding) TableName() string { return "embeddings" }

// EmbeddingMetadata holds the caller-supplied JSON metadata alongside an
// embedding. Any scalar fields projected from it for filtering are
// derivable, never authoritative.
type EmbeddingMetadata struct {
	EmbeddingID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Metadata    string    `gorm:"type:jsonb;not null;default:'{}'"`
}

func (EmbeddingMetadata) TableName() string { return "embedding_metadata" }

// LshPosting is one (table, bucket) membership row for an embedding.
type LshPosting struct {
	ClientID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	TableIndex  int       `gorm:"primaryKey"`
	HashValue   int32     `gorm:"primaryKey;index:idx_postings_lookup,priority:3"`
	EmbeddingID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"not null;default:now()"`
}

func (LshPosting) TableName() string { return "lsh_postings" }
