package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/event"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// Health monitor defaults.
const (
	DefaultProbeInterval      = 10 * time.Second
	DefaultProbeTimeout       = 5 * time.Second
	DefaultUnhealthyThreshold = 3
)

// Probe is a provider health probe.
type Probe func(ctx context.Context) error

// MonitorConfig tunes the health monitor.
type MonitorConfig struct {
	probeInterval    time.Duration
	probeTimeout     time.Duration
	failureThreshold int
}

// NewMonitorConfig returns the default monitor configuration.
func NewMonitorConfig() MonitorConfig {
	return MonitorConfig{
		probeInterval:    DefaultProbeInterval,
		probeTimeout:     DefaultProbeTimeout,
		failureThreshold: DefaultUnhealthyThreshold,
	}
}

// WithProbeInterval returns a copy with the probe interval set.
func (c MonitorConfig) WithProbeInterval(d time.Duration) MonitorConfig {
	if d > 0 {
		c.probeInterval = d
	}
	return c
}

// WithProbeTimeout returns a copy with the per-probe timeout set.
func (c MonitorConfig) WithProbeTimeout(d time.Duration) MonitorConfig {
	if d > 0 {
		c.probeTimeout = d
	}
	return c
}

// WithFailureThreshold returns a copy with the unhealthy threshold set.
func (c MonitorConfig) WithFailureThreshold(n int) MonitorConfig {
	if n > 0 {
		c.failureThreshold = n
	}
	return c
}

// HealthMonitor probes registered providers in the background and keeps a
// health record per provider. State transitions publish domain events; a
// recovery additionally publishes ProviderRecovered so parked work can
// resume.
type HealthMonitor struct {
	cfg    MonitorConfig
	bus    event.Bus
	logger *slog.Logger

	mu     sync.Mutex
	probes map[string]Probe
	health map[string]provider.Health

	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	started   bool
}

// NewHealthMonitor creates a HealthMonitor. Start launches the probe loop.
func NewHealthMonitor(cfg MonitorConfig, bus event.Bus, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		probes: map[string]Probe{},
		health: map[string]provider.Health{},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a provider probe. Registration before Start is not required.
func (m *HealthMonitor) Register(providerID string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[providerID] = probe
	if _, ok := m.health[providerID]; !ok {
		m.health[providerID] = provider.NewHealth(providerID)
	}
}

// Health returns the record for one provider.
func (m *HealthMonitor) Health(providerID string) provider.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.health[providerID]
	if !ok {
		return provider.NewHealth(providerID)
	}
	return h
}

// All returns every provider's health record.
func (m *HealthMonitor) All() []provider.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Health, 0, len(m.health))
	for _, h := range m.health {
		out = append(out, h)
	}
	return out
}

// Start launches the background probe loop. Stop terminates it. Calling
// Start more than once has no effect.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		go m.loop(ctx)
	})
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered provider once. Exposed so callers can
// force an immediate sweep.
func (m *HealthMonitor) ProbeAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.probes))
	for id := range m.probes {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.probeOne(ctx, id)
	}
}

func (m *HealthMonitor) probeOne(ctx context.Context, providerID string) {
	m.mu.Lock()
	probe, ok := m.probes[providerID]
	before := m.health[providerID]
	m.mu.Unlock()
	if !ok {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.probeTimeout)
	err := probe(probeCtx)
	cancel()

	now := time.Now()
	var after provider.Health
	if err != nil {
		after = before.RecordFailure(now, m.cfg.failureThreshold)
		m.logger.Warn("provider probe failed",
			slog.String("provider", providerID),
			slog.Int("consecutive_failures", after.ConsecutiveFailures()),
			slog.String("error", err.Error()))
	} else {
		after = before.RecordSuccess(now)
	}

	m.mu.Lock()
	m.health[providerID] = after
	m.mu.Unlock()

	if before.Status() != after.Status() && m.bus != nil {
		m.bus.Publish(event.NewProviderHealthChanged(now, providerID,
			string(before.Status()), string(after.Status())))
		if after.Status() == provider.HealthHealthy && before.Status() == provider.HealthUnhealthy {
			m.bus.Publish(event.NewProviderRecovered(now, providerID))
		}
	}
}

// Stop terminates the probe loop and waits for it to exit.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}
