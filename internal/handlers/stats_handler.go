package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/dto"
	"github.com/securesearch/securesearch/internal/middleware"
	"github.com/securesearch/securesearch/internal/repository"
)

// StatsHandler serves GET /stats/{client_id}.
type StatsHandler struct {
	registry repository.ClientRegistry
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(registry repository.ClientRegistry) *StatsHandler {
	return &StatsHandler{registry: registry}
}

func (h *StatsHandler) Stats(c *gin.Context) {
	authenticated, ok := middleware.ClientFromContext(c)
	if !ok {
		apierrors.RespondUnauthenticated(c, "")
		return
	}

	requested, err := uuid.Parse(c.Param("client_id"))
	if err != nil {
		apierrors.RespondValidation(c, map[string]string{"client_id": "must be a uuid"})
		return
	}

	// A client may only read its own stats; cross-tenant queries are
	// rejected as not found rather than forbidden, to avoid confirming
	// that another client ID exists.
	if requested != authenticated.ClientID {
		apierrors.RespondNotFound(c, "client")
		return
	}
	record := authenticated

	var lastActive *string
	if record.LastActiveAt != nil {
		s := record.LastActiveAt.Format(time.RFC3339)
		lastActive = &s
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		ClientID:        record.ClientID,
		TotalEmbeddings: record.TotalEmbeddings,
		TotalSearches:   record.TotalSearches,
		IsActive:        record.IsActive,
		LastActiveAt:    lastActive,
		CreatedAt:       record.CreatedAt.Format(time.RFC3339),
	})
}
