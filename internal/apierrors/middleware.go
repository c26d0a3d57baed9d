package apierrors

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestIDKey is the gin context key request-scoped IDs are stored under.
const RequestIDKey = "request_id"

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.Request.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

func logLevel(status int) logrus.Level {
	switch {
	case status >= 500:
		return logrus.ErrorLevel
	case status >= 400:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// Handler recovers panics and formats any *APIError abort into the
// standard JSON error body, logging at a level keyed off the resulting
// HTTP status.
func Handler(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		var apiErr *APIError
		switch e := recovered.(type) {
		case *APIError:
			apiErr = e
		case APIError:
			apiErr = &e
		case error:
			apiErr = New(ErrInternal, "internal server error", nil)
			if logger != nil {
				logger.WithError(e).Error("unhandled error in request")
			}
		default:
			apiErr = New(ErrInternal, "unknown error", nil)
		}

		apiErr.WithRequestID(requestID(c))
		status := HTTPStatus(ErrorCode(apiErr.Code))

		if logger != nil {
			logger.WithFields(logrus.Fields{
				"error_code":  apiErr.Code,
				"http_status": status,
				"request_id":  apiErr.RequestID,
				"path":        c.Request.URL.Path,
				"remote_addr": c.ClientIP(),
			}).Log(logLevel(status), apiErr.Message)
		}

		c.JSON(status, apiErr)
		c.Abort()
	})
}

// Respond writes code/message/details as the standard JSON error body.
func Respond(c *gin.Context, code ErrorCode, message string, details any) {
	apiErr := New(code, message, details).WithRequestID(requestID(c))
	c.JSON(HTTPStatus(code), apiErr)
}

// RespondUnauthenticated writes a 401 UNAUTHENTICATED body.
func RespondUnauthenticated(c *gin.Context, message string) {
	if message == "" {
		message = "missing or invalid bearer token"
	}
	Respond(c, ErrUnauthenticated, message, nil)
}

// RespondNotFound writes a 404 NOT_FOUND body for resource.
func RespondNotFound(c *gin.Context, resource string) {
	Respond(c, ErrNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// RespondValidation writes a 400 VALIDATION_ERROR body with per-field
// messages.
func RespondValidation(c *gin.Context, fieldErrors map[string]string) {
	Respond(c, ErrValidation, "request validation failed", fieldErrors)
}

// RespondInternal writes a 500 INTERNAL body.
func RespondInternal(c *gin.Context) {
	Respond(c, ErrInternal, "internal server error", nil)
}
