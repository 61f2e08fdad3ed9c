package routing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// Strategy names a provider selection policy.
type Strategy string

// Selection strategies.
const (
	StrategyPrimaryOnly  Strategy = "primary_only"
	StrategyPriorityList Strategy = "priority_list"
	StrategyRoundRobin   Strategy = "round_robin"
	StrategyCostBiased   Strategy = "cost_biased"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyPrimaryOnly, StrategyPriorityList, StrategyRoundRobin, StrategyCostBiased:
		return Strategy(name), nil
	default:
		return "", errs.Newf(errs.KindConfig, "unknown routing strategy %q", name)
	}
}

// Candidate is one provider a router may dispatch to. Priority orders the
// priority_list strategy (lower first); cost biases cost_biased (lower
// first).
type Candidate struct {
	ID       string
	Priority int
	Cost     float64
}

// RateGate lets the router consult a rate limiter before dispatch without
// depending on its concrete type. A nil gate permits everything.
type RateGate func(ctx context.Context, providerID string) (bool, error)

// CallStats aggregates per-provider dispatch outcomes.
type CallStats struct {
	Calls        uint64        `json:"calls"`
	Failures     uint64        `json:"failures"`
	RateLimited  uint64        `json:"rate_limited"`
	CircuitOpen  uint64        `json:"circuit_open"`
	TotalLatency time.Duration `json:"total_latency"`
}

// Router picks a provider per call according to its strategy, skipping
// candidates whose breaker is open, whose health is unavailable, or whose
// rate budget is exhausted, and fails over on retryable errors.
type Router struct {
	strategy   Strategy
	candidates []Candidate
	breakerCfg BreakerConfig
	monitor    *HealthMonitor
	tracker    *ConnectionTracker
	gate       RateGate
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
	rrNext   int
	stats    map[string]*CallStats
}

// NewRouter creates a Router over an ordered candidate list.
func NewRouter(strategy Strategy, candidates []Candidate, breakerCfg BreakerConfig, monitor *HealthMonitor, tracker *ConnectionTracker, gate RateGate, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		strategy:   strategy,
		candidates: candidates,
		breakerCfg: breakerCfg,
		monitor:    monitor,
		tracker:    tracker,
		gate:       gate,
		logger:     logger,
		breakers:   map[string]*Breaker{},
		stats:      map[string]*CallStats{},
	}
}

// Breaker returns the candidate's circuit breaker, creating it on first use.
func (r *Router) Breaker(providerID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakerLocked(providerID)
}

func (r *Router) breakerLocked(providerID string) *Breaker {
	b, ok := r.breakers[providerID]
	if !ok {
		b = NewBreaker(r.breakerCfg)
		r.breakers[providerID] = b
	}
	return b
}

func (r *Router) statsLocked(providerID string) *CallStats {
	s, ok := r.stats[providerID]
	if !ok {
		s = &CallStats{}
		r.stats[providerID] = s
	}
	return s
}

// ordered returns the candidate ids in dispatch order for this call.
func (r *Router) ordered() []Candidate {
	switch r.strategy {
	case StrategyPrimaryOnly:
		if len(r.candidates) == 0 {
			return nil
		}
		return r.candidates[:1]
	case StrategyPriorityList:
		out := make([]Candidate, len(r.candidates))
		copy(out, r.candidates)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
		return out
	case StrategyRoundRobin:
		r.mu.Lock()
		start := r.rrNext
		if len(r.candidates) > 0 {
			r.rrNext = (r.rrNext + 1) % len(r.candidates)
		}
		r.mu.Unlock()
		out := make([]Candidate, 0, len(r.candidates))
		for i := range r.candidates {
			out = append(out, r.candidates[(start+i)%len(r.candidates)])
		}
		return out
	case StrategyCostBiased:
		out := make([]Candidate, len(r.candidates))
		copy(out, r.candidates)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
		return out
	default:
		return r.candidates
	}
}

// Execute dispatches fn against candidates in strategy order until one
// succeeds. Candidates behind an open breaker, an unavailable health record,
// or an exhausted rate budget are skipped. Non-retryable errors surface
// immediately; exhausting every candidate yields ErrAllProvidersFailed.
func (r *Router) Execute(ctx context.Context, operation string, fn func(ctx context.Context, providerID string) error) error {
	var lastErr error
	for _, candidate := range r.ordered() {
		if r.monitor != nil && !r.monitor.Health(candidate.ID).Available() {
			lastErr = errs.Newf(errs.KindNetwork, "provider %q is unhealthy", candidate.ID)
			continue
		}
		if r.gate != nil {
			allowed, err := r.gate(ctx, candidate.ID)
			if err != nil {
				r.logger.Warn("rate gate check failed",
					slog.String("provider", candidate.ID),
					slog.String("error", err.Error()))
			} else if !allowed {
				r.count(candidate.ID, func(s *CallStats) { s.RateLimited++ })
				lastErr = errs.Newf(errs.KindRateLimited, "provider %q rate budget exhausted", candidate.ID)
				continue
			}
		}
		// Breaker admission comes last: a permitted half-open probe must be
		// followed by an outcome, which dispatch guarantees.
		breaker := r.Breaker(candidate.ID)
		if !breaker.IsCallPermitted() {
			r.count(candidate.ID, func(s *CallStats) { s.CircuitOpen++ })
			r.logger.Debug("skipping provider with open circuit",
				slog.String("operation", operation),
				slog.String("provider", candidate.ID))
			lastErr = errs.Newf(errs.KindCircuitOpen, "provider %q circuit is open", candidate.ID)
			continue
		}

		err := r.dispatch(ctx, candidate.ID, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.Retryable(err) {
			return err
		}
		r.logger.Warn("provider call failed, trying next candidate",
			slog.String("operation", operation),
			slog.String("provider", candidate.ID),
			slog.String("error", err.Error()))
	}
	if lastErr == nil {
		return errs.ErrAllProvidersFailed
	}
	return errs.Wrap(errs.KindNetwork, "all providers failed", lastErr)
}

func (r *Router) dispatch(ctx context.Context, providerID string, fn func(ctx context.Context, providerID string) error) error {
	breaker := r.Breaker(providerID)
	var guard *ConnectionGuard
	if r.tracker != nil {
		guard = r.tracker.Track(providerID)
		defer guard.Release()
	}
	start := time.Now()
	err := fn(ctx, providerID)
	latency := time.Since(start)

	r.count(providerID, func(s *CallStats) {
		s.Calls++
		s.TotalLatency += latency
		if err != nil {
			s.Failures++
		}
	})
	if err != nil {
		breaker.RecordFailure()
		return err
	}
	breaker.RecordSuccess()
	return nil
}

func (r *Router) count(providerID string, update func(*CallStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(r.statsLocked(providerID))
}

// Snapshots returns the current breaker state per provider that has seen at
// least one admission check.
func (r *Router) Snapshots() map[string]BreakerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]BreakerSnapshot, len(r.breakers))
	for id, b := range r.breakers {
		out[id] = b.Snapshot()
	}
	return out
}

// Stats returns a copy of the per-provider dispatch statistics.
func (r *Router) Stats() map[string]CallStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CallStats, len(r.stats))
	for id, s := range r.stats {
		out[id] = *s
	}
	return out
}
