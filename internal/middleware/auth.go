// Package middleware provides the gin middleware chain: authentication,
// per-client rate limiting, request logging and metrics.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/models"
	"github.com/securesearch/securesearch/internal/repository"
)

// ClientContextKey is the gin context key the authenticated ClientRecord is
// stored under.
const ClientContextKey = "client"

// BearerAuth authenticates every request carrying an Authorization: Bearer
// header against registry, attaching the resolved ClientRecord to the gin
// context on success. This server has exactly one principal kind — a
// tenant client — so there is a single auth path rather than separate
// end-user and service-to-service checks.
func BearerAuth(registry repository.ClientRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apierrors.RespondUnauthenticated(c, "authorization header required")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			apierrors.RespondUnauthenticated(c, "authorization header must use Bearer format")
			c.Abort()
			return
		}

		client, err := registry.Authenticate(c.Request.Context(), token)
		if err != nil {
			apierrors.RespondUnauthenticated(c, "invalid bearer token")
			c.Abort()
			return
		}

		c.Set(ClientContextKey, client)
		c.Next()
	}
}

// ClientFromContext retrieves the ClientRecord BearerAuth attached.
func ClientFromContext(c *gin.Context) (*models.ClientRecord, bool) {
	v, ok := c.Get(ClientContextKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*models.ClientRecord)
	return client, ok
}
