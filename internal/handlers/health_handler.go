// Package handlers implements the HTTP surface: health, client
// registration, embedding ingestion, search and usage stats.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securesearch/securesearch/internal/dto"
)

// Health handles GET /health. It always answers 200 {"status":"ok"} and
// does not consult any dependency; dependency health is served by the
// lifecycle manager's /health/detailed endpoint, with /health/ready and
// /health/live as its lightweight probes.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}
