package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/dto"
	"github.com/securesearch/securesearch/internal/middleware"
	"github.com/securesearch/securesearch/internal/service"
)

// AddEmbeddingHandler serves POST /add_embedding.
type AddEmbeddingHandler struct {
	ingestion *service.IngestionService
}

// NewAddEmbeddingHandler constructs an AddEmbeddingHandler.
func NewAddEmbeddingHandler(ingestion *service.IngestionService) *AddEmbeddingHandler {
	return &AddEmbeddingHandler{ingestion: ingestion}
}

func (h *AddEmbeddingHandler) AddEmbedding(c *gin.Context) {
	client, ok := middleware.ClientFromContext(c)
	if !ok {
		apierrors.RespondUnauthenticated(c, "")
		return
	}

	var req dto.AddEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondValidation(c, map[string]string{"body": err.Error()})
		return
	}

	if req.ClientID != client.ClientID {
		apierrors.RespondUnauthenticated(c, "bearer token does not match client_id")
		return
	}
	if len(req.LshHashes) != client.NumTables {
		apierrors.RespondValidation(c, map[string]string{"lsh_hashes": "length must equal num_tables"})
		return
	}

	ciphertext, err := base64.StdEncoding.DecodeString(req.EncryptedEmbedding)
	if err != nil {
		apierrors.RespondValidation(c, map[string]string{"encrypted_embedding": "must be base64"})
		return
	}

	id, err := h.ingestion.AddEmbedding(c.Request.Context(), client.ClientID, client.MaxEmbeddings, ciphertext, req.Metadata, req.ExternalID, req.LshHashes)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AddEmbeddingResponse{EmbeddingID: id})
}
