package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Tier names used by the storage checks below.
const (
	TierPostgres = "postgres"
	TierRedis    = "redis"
	TierBolt     = "bolt"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Check is a named probe. Critical checks decide IsOnline.
type Check struct {
	Name     string
	Probe    Probe
	Timeout  time.Duration
	Critical bool
}

// Sizer reports the number of pending buffered writes.
type Sizer interface {
	Size() (int, error)
}

// Config controls the probe loop.
type Config struct {
	Interval time.Duration
	Buffer   Sizer
	Logger   *zap.Logger
}

type Monitor struct {
	checks []Check
	buffer Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(cfg Config, checks ...Check) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		buffer:   cfg.Buffer,
		interval: cfg.Interval,
		stopCh:   make(chan struct{}),
		logger:   cfg.Logger,
	}
}

// PostgresCheck pings the pool.
func PostgresCheck(pool *pgxpool.Pool, critical bool) Check {
	return Check{Name: TierPostgres, Timeout: 3 * time.Second, Critical: critical, Probe: func(ctx context.Context) error {
		if pool == nil {
			return errNotConfigured
		}
		return pool.Ping(ctx)
	}}
}

// RedisCheck pings the client.
func RedisCheck(client redislib.UniversalClient, critical bool) Check {
	return Check{Name: TierRedis, Timeout: 2 * time.Second, Critical: critical, Probe: func(ctx context.Context) error {
		if client == nil {
			return errNotConfigured
		}
		return client.Ping(ctx).Err()
	}}
}

// BoltCheck opens a read transaction.
func BoltCheck(db *bolt.DB, critical bool) Check {
	return Check{Name: TierBolt, Timeout: time.Second, Critical: critical, Probe: func(context.Context) error {
		if db == nil {
			return errNotConfigured
		}
		return db.View(func(*bolt.Tx) error { return nil })
	}}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every critical tier answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checks {
		if c.Critical && !m.status.Tiers[c.Name].Online {
			return false
		}
	}
	return true
}

// TierOnline reports the last probe result for name. Unknown tiers are treated as online.
func (m *Monitor) TierOnline(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status.Tiers[name]
	if !ok {
		return !m.hasCheck(name)
	}
	return st.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Tiers = make(map[string]TierStatus, len(m.status.Tiers))
	for k, v := range m.status.Tiers {
		out.Tiers[k] = v
	}
	return out
}

// Refresh runs every probe once.
func (m *Monitor) Refresh(ctx context.Context) Status {
	tiers := make(map[string]TierStatus, len(m.checks))
	for _, c := range m.checks {
		tiers[c.Name] = m.probe(ctx, c)
	}
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		Tiers:      tiers,
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	for name, st := range tiers {
		if was, ok := prev.Tiers[name]; ok && was.Online != st.Online {
			m.logger.Info("tier status changed", zap.String("tier", name), zap.Bool("online", st.Online), zap.String("error", st.Error))
		}
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context, c Check) TierStatus {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if err := c.Probe(ctx); err != nil {
		return TierStatus{Error: err.Error()}
	}
	return TierStatus{Online: true}
}

func (m *Monitor) hasCheck(name string) bool {
	for _, c := range m.checks {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
