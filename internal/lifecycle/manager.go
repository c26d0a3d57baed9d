// Package lifecycle drives the server's health state machine and
// coordinates graceful shutdown.
package lifecycle

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// State is one point in the server's lifecycle.
type State int

const (
	StateStarting State = iota
	StateHealthy
	StateDegraded
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// HealthChecker reports whether a dependency (database, HE codec, ...) is
// currently reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// Manager owns the server's health state and graceful shutdown sequence.
type Manager struct {
	mu                sync.RWMutex
	state             State
	startTime         time.Time
	lastHealthCheck   time.Time
	healthCheckers    map[string]HealthChecker
	server            *http.Server
	shutdownTimeout   time.Duration
	healthCheckPeriod time.Duration
	logger            *logrus.Logger

	shutdown     chan struct{}
	healthTicker *time.Ticker

	onStateChange func(old, new State)
	onShutdown    func(ctx context.Context) error
}

// NewManager creates a lifecycle manager for server, which may be nil if
// the caller manages HTTP shutdown itself.
func NewManager(server *http.Server, logger *logrus.Logger) *Manager {
	return &Manager{
		state:             StateStarting,
		startTime:         time.Now(),
		healthCheckers:    make(map[string]HealthChecker),
		server:            server,
		logger:            logger,
		shutdownTimeout:   30 * time.Second,
		healthCheckPeriod: 10 * time.Second,
		shutdown:          make(chan struct{}),
	}
}

// AddHealthChecker registers a named dependency health check.
func (m *Manager) AddHealthChecker(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthCheckers[name] = checker
}

// SetShutdownTimeout overrides the default 30s graceful shutdown budget.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}

// SetHealthCheckPeriod overrides the default 10s health poll interval.
func (m *Manager) SetHealthCheckPeriod(period time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthCheckPeriod = period
}

// OnStateChange registers a callback fired whenever the state transitions.
func (m *Manager) OnStateChange(callback func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = callback
}

// OnShutdown registers a callback run before the HTTP server is stopped,
// for draining in-flight search requests or stopping background workers.
func (m *Manager) OnShutdown(callback func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShutdown = callback
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) log() *logrus.Entry {
	if m.logger == nil {
		return logrus.NewEntry(logrus.New())
	}
	return logrus.NewEntry(m.logger)
}

func (m *Manager) setState(newState State) {
	m.mu.Lock()
	old := m.state
	m.state = newState
	callback := m.onStateChange
	m.mu.Unlock()

	if old != newState {
		m.log().WithFields(logrus.Fields{"from": old.String(), "to": newState.String()}).Info("lifecycle state change")
		if callback != nil {
			callback(old, newState)
		}
	}
}

// HealthStatus runs every registered checker and summarizes the result.
func (m *Manager) HealthStatus(ctx context.Context) map[string]any {
	m.mu.RLock()
	checkers := make(map[string]HealthChecker, len(m.healthCheckers))
	for name, c := range m.healthCheckers {
		checkers[name] = c
	}
	state := m.state
	lastCheck := m.lastHealthCheck
	m.mu.RUnlock()

	checks := make(map[string]any, len(checkers))
	healthy := true
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := checker.CheckHealth(checkCtx)
		cancel()
		if err != nil {
			checks[name] = map[string]any{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks[name] = map[string]any{"status": "healthy"}
		}
	}

	return map[string]any{
		"state":             state.String(),
		"uptime":            time.Since(m.startTime).String(),
		"last_health_check": lastCheck.Format(time.RFC3339),
		"checks":            checks,
		"healthy":           healthy,
	}
}

// Start begins periodic health checking and installs the SIGINT/SIGTERM
// handler. It marks the service healthy immediately; callers that need a
// warm-up period should delay calling Start.
func (m *Manager) Start(ctx context.Context) {
	m.healthTicker = time.NewTicker(m.healthCheckPeriod)
	go m.healthCheckLoop(ctx)
	go m.handleShutdownSignals()
	m.setState(StateHealthy)
}

func (m *Manager) healthCheckLoop(ctx context.Context) {
	for {
		select {
		case <-m.healthTicker.C:
			m.performHealthCheck(ctx)
		case <-m.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) performHealthCheck(ctx context.Context) {
	m.mu.Lock()
	m.lastHealthCheck = time.Now()
	current := m.state
	m.mu.Unlock()

	if current == StateShuttingDown || current == StateStopped {
		return
	}

	status := m.HealthStatus(ctx)
	healthy, _ := status["healthy"].(bool)

	if current == StateHealthy && !healthy {
		m.setState(StateDegraded)
	} else if current == StateDegraded && healthy {
		m.setState(StateHealthy)
	}
}

func (m *Manager) handleShutdownSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.log().Info("shutdown signal received")
	if err := m.Shutdown(context.Background()); err != nil {
		m.log().WithError(err).Error("error during shutdown")
	}
}

// Shutdown runs the registered shutdown callback then stops the HTTP
// server, bounded by the configured shutdown timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.setState(StateShuttingDown)
	close(m.shutdown)
	if m.healthTicker != nil {
		m.healthTicker.Stop()
	}

	m.mu.RLock()
	onShutdown := m.onShutdown
	m.mu.RUnlock()
	if onShutdown != nil {
		if err := onShutdown(ctx); err != nil {
			m.log().WithError(err).Error("shutdown callback failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	if m.server != nil {
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	m.setState(StateStopped)
	return nil
}

// IsHealthy reports whether the service is fully healthy.
func (m *Manager) IsHealthy() bool { return m.State() == StateHealthy }

// IsReady reports whether the service can accept traffic (healthy or
// degraded — a degraded server still serves searches against whichever
// dependencies remain up).
func (m *Manager) IsReady() bool {
	s := m.State()
	return s == StateHealthy || s == StateDegraded
}

// HealthHandler serves the detailed health report (mounted at
// /health/detailed).
func (m *Manager) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		status := m.HealthStatus(ctx)
		httpStatus := http.StatusOK
		if m.State() != StateHealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, status)
	}
}

// ReadinessHandler serves a lightweight readiness probe.
func (m *Manager) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ready := m.IsReady()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "state": m.State().String()})
	}
}

// LivenessHandler serves a lightweight liveness probe.
func (m *Manager) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := m.State()
		alive := state != StateStopped
		status := http.StatusOK
		if !alive {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"alive": alive, "state": state.String()})
	}
}
