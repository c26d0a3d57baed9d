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

// SearchHandler serves POST /search.
type SearchHandler struct {
	engine *service.SearchEngine
}

// NewSearchHandler constructs a SearchHandler.
func NewSearchHandler(engine *service.SearchEngine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

func (h *SearchHandler) Search(c *gin.Context) {
	client, ok := middleware.ClientFromContext(c)
	if !ok {
		apierrors.RespondUnauthenticated(c, "")
		return
	}

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondValidation(c, map[string]string{"body": err.Error()})
		return
	}

	if req.ClientID != client.ClientID {
		apierrors.RespondUnauthenticated(c, "bearer token does not match client_id")
		return
	}
	if req.TopK < 1 || req.TopK > req.RerankCandidates || req.RerankCandidates > client.NumCandidates {
		apierrors.RespondValidation(c, map[string]string{"top_k": "must satisfy 1 <= top_k <= rerank_candidates <= num_candidates"})
		return
	}

	encQuery, err := base64.StdEncoding.DecodeString(req.EncryptedQuery)
	if err != nil {
		apierrors.RespondValidation(c, map[string]string{"encrypted_query": "must be base64"})
		return
	}

	outcome, err := h.engine.Search(c.Request.Context(), client, encQuery, req.LshHashes, req.TopK, req.RerankCandidates)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}

	results := make([]dto.SearchResultItem, len(outcome.Results))
	for i, r := range outcome.Results {
		results[i] = dto.SearchResultItem{
			EmbeddingID:         r.EmbeddingID,
			EncryptedSimilarity: base64.StdEncoding.EncodeToString(r.EncryptedSimilarity),
			Metadata:            r.Metadata,
		}
	}

	middleware.ObserveCandidatesChecked(outcome.CandidatesChecked)

	c.JSON(http.StatusOK, dto.SearchResponse{
		Results:           results,
		CandidatesChecked: outcome.CandidatesChecked,
		CandidatesFound:   outcome.CandidatesFound,
		TruncatedBuckets:  outcome.TruncatedBuckets,
		SearchTimeMs:      outcome.TotalTimeMs,
		LshTimeMs:         outcome.LshTimeMs,
		HeComputeTimeMs:   outcome.HeComputeTimeMs,
	})
}
