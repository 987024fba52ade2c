package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager runs shutdown hooks once, in reverse registration order, when the process
// is asked to stop.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook
	done  bool
	err   error
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown hook. Hooks registered after Shutdown are ignored.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		m.logger.Warn("hook registered after shutdown", zap.String("component", name))
		return
	}
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// RegisterStopper adapts components whose Stop takes a context and cannot fail, such
// as cron-driven processors.
func (m *Manager) RegisterStopper(name string, stop func(ctx context.Context)) {
	if stop == nil {
		return
	}
	m.Register(name, func(ctx context.Context) error {
		stop(ctx)
		return nil
	})
}

// RegisterCloser adapts io.Closer style release functions.
func (m *Manager) RegisterCloser(name string, closeFn func() error) {
	if closeFn == nil {
		return
	}
	m.Register(name, func(context.Context) error { return closeFn() })
}

// Shutdown executes all registered hooks within the configured timeout. Later calls
// return the first result without running hooks again.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return m.err
	}
	m.done = true

	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			m.err = errors.Join(m.err, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name))
	}
	if ctx.Err() != nil {
		m.logger.Warn("shutdown exceeded timeout", zap.Duration("timeout", m.timeout))
	}
	return m.err
}

// Listen invokes cancel once SIGTERM or SIGINT arrives.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
