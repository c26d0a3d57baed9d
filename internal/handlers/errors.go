package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/repository"
	"github.com/securesearch/securesearch/internal/service"
)

// respondRepositoryError translates the sentinel errors repository and
// service operations return into the standard JSON error body.
func respondRepositoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.RespondNotFound(c, "resource")
	case errors.Is(err, repository.ErrConfigConflict):
		apierrors.Respond(c, apierrors.ErrConfigConflict, "embedding_dim or lsh_config cannot change after a client is initialized", nil)
	case errors.Is(err, repository.ErrDuplicateExternal):
		apierrors.Respond(c, apierrors.ErrDuplicateExternal, "external_id already exists for this client", nil)
	case errors.Is(err, repository.ErrQuotaExceeded):
		apierrors.Respond(c, apierrors.ErrQuotaExceeded, "embedding quota exceeded for this client", nil)
	case errors.Is(err, service.ErrCorruptCiphertext):
		apierrors.Respond(c, apierrors.ErrCorruptCiphertext, "stored ciphertext failed to deserialize", nil)
	default:
		apierrors.RespondInternal(c)
	}
}
