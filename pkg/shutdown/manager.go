package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shut down gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 30},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Shutdown errors by component",
	}, []string{"component"})
)

// Func shuts down one component
type Func func(context.Context) error

type component struct {
	name string
	fn   Func
}

// Manager coordinates graceful shutdown. Components stop in reverse
// registration order, so register outermost first: HTTP server, then metrics
// server, then background loops, then the database pool.
type Manager struct {
	logger     *zap.Logger
	mu         sync.Mutex
	components []component
	timeout    time.Duration
}

// NewManager creates a shutdown manager with an overall timeout
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

// Register adds a component to stop during shutdown
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

// WaitForSignal blocks until SIGINT or SIGTERM, then runs Shutdown
func (m *Manager) WaitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	m.Shutdown()
}

// Shutdown stops all registered components in reverse registration order.
// A failing component is logged and counted; the rest still get stopped.
func (m *Manager) Shutdown() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		stepStart := time.Now()
		if err := c.fn(ctx); err != nil {
			shutdownErrors.WithLabelValues(c.name).Inc()
			m.logger.Error("component shutdown failed",
				zap.String("component", c.name),
				zap.Error(err),
			)
			continue
		}
		m.logger.Info("component stopped",
			zap.String("component", c.name),
			zap.Duration("elapsed", time.Since(stepStart)),
		)
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	m.logger.Info("graceful shutdown complete", zap.Duration("elapsed", time.Since(start)))
}
