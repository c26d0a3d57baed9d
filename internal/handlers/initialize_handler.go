package handlers

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/dto"
	"github.com/securesearch/securesearch/internal/repository"
	"github.com/securesearch/securesearch/internal/service"
)

// InitializeHandler serves POST /initialize.
type InitializeHandler struct {
	ingestion *service.IngestionService
}

// NewInitializeHandler constructs an InitializeHandler.
func NewInitializeHandler(ingestion *service.IngestionService) *InitializeHandler {
	return &InitializeHandler{ingestion: ingestion}
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// Initialize handles POST /initialize: register a new client, or, when a
// valid bearer token is already present, validate it as a re-initialization
// of that client's shape.
func (h *InitializeHandler) Initialize(c *gin.Context) {
	var req dto.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondValidation(c, map[string]string{"body": err.Error()})
		return
	}

	publicKey, err := base64.StdEncoding.DecodeString(req.ContextParams.PublicKey)
	if err != nil {
		apierrors.RespondValidation(c, map[string]string{"context_params.public_key": "must be base64"})
		return
	}

	params := repository.ClientRegistrationParams{
		DisplayName:      req.DisplayName,
		HeScheme:         req.ContextParams.Scheme,
		HePolyModulusDeg: req.ContextParams.PolyModulusDegree,
		HeScale:          req.ContextParams.Scale,
		HePublicKey:      publicKey,
		EmbeddingDim:     req.EmbeddingDim,
		NumTables:        req.LshConfig.NumTables,
		HashSize:         req.LshConfig.HashSize,
		NumCandidates:    req.LshConfig.NumCandidates,
	}

	result, err := h.ingestion.Initialize(c.Request.Context(), bearerToken(c), params)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}

	c.JSON(200, dto.InitializeResponse{
		ClientID: result.Client.ClientID,
		APIKey:   result.APIKey,
		LshConfig: dto.LshConfig{
			NumTables:     result.Client.NumTables,
			HashSize:      result.Client.HashSize,
			NumCandidates: result.Client.NumCandidates,
		},
		RandomPlanes: base64.StdEncoding.EncodeToString(result.RandomPlanes),
	})
}
