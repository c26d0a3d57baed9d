package logging

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// StructuredLogger provides consistent JSON structured logging across the
// server and client pipeline.
type StructuredLogger struct {
	*logrus.Logger
	serviceName string
	environment string
}

// NewStructuredLogger creates a new structured logger for serviceName.
func NewStructuredLogger(serviceName string) *StructuredLogger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat:   time.RFC3339Nano,
		DisableHTMLEscape: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	return &StructuredLogger{
		Logger:      logger,
		serviceName: serviceName,
		environment: environment,
	}
}

// WithContext returns a logger entry tagged with service/environment and
// whatever request-scoped fields ctx carries.
func (sl *StructuredLogger) WithContext(ctx context.Context) *logrus.Entry {
	entry := sl.Logger.WithFields(logrus.Fields{
		"service":     sl.serviceName,
		"environment": sl.environment,
	})

	if requestID := ctx.Value(ctxKeyRequestID); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	if clientID := ctx.Value(ctxKeyClientID); clientID != nil {
		entry = entry.WithField("client_id", clientID)
	}

	return entry
}

// WithError returns a logger entry carrying err.
func (sl *StructuredLogger) WithError(ctx context.Context, err error) *logrus.Entry {
	return sl.WithContext(ctx).WithError(err)
}

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyClientID  ctxKey = "client_id"
)

// WithRequestID returns a context carrying a request ID for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithClientID returns a context carrying the authenticated client ID.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyClientID, id)
}

// LogHTTPRequest logs a completed HTTP request with timing and status.
func (sl *StructuredLogger) LogHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := sl.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})

	switch {
	case status >= 500:
		entry.Error("request completed with server error")
	case status >= 400:
		entry.Warn("request completed with client error")
	case duration > 2*time.Second:
		entry.Warn("request completed (slow)")
	default:
		entry.Info("request completed")
	}
}

// LogDatabaseOperation logs a repository-layer database call.
func (sl *StructuredLogger) LogDatabaseOperation(ctx context.Context, operation, table string, duration time.Duration, err error) {
	entry := sl.WithContext(ctx).WithFields(logrus.Fields{
		"operation":   operation,
		"table":       table,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("database operation failed")
		return
	}
	if duration > 200*time.Millisecond {
		entry.Warn("database operation completed (slow)")
		return
	}
	entry.Debug("database operation completed")
}

// LogHeCompute logs a homomorphic-compute step (inner product batch).
func (sl *StructuredLogger) LogHeCompute(ctx context.Context, candidates int, duration time.Duration) {
	sl.WithContext(ctx).WithFields(logrus.Fields{
		"candidates":  candidates,
		"duration_ms": duration.Milliseconds(),
	}).Info("homomorphic similarity batch completed")
}
