package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

func testCandidates() []Candidate {
	return []Candidate{
		{ID: "primary", Priority: 0, Cost: 2.0},
		{ID: "secondary", Priority: 1, Cost: 0.5},
	}
}

func TestRouter_FailsOverOnRetryableError(t *testing.T) {
	router := NewRouter(StrategyPriorityList, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	var called []string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		called = append(called, id)
		if id == "primary" {
			return errs.New(errs.KindNetwork, "connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "secondary"}, called)
}

func TestRouter_NonRetryableErrorSurfacesImmediately(t *testing.T) {
	router := NewRouter(StrategyPriorityList, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	var called []string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		called = append(called, id)
		return errs.New(errs.KindConfig, "bad request")
	})

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))
	assert.Equal(t, []string{"primary"}, called)
}

func TestRouter_AllCandidatesFail(t *testing.T) {
	router := NewRouter(StrategyPriorityList, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		return errs.New(errs.KindTimeout, "deadline exceeded")
	})

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
}

func TestRouter_PrimaryOnlyNeverFailsOver(t *testing.T) {
	router := NewRouter(StrategyPrimaryOnly, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	var called []string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		called = append(called, id)
		return errs.New(errs.KindNetwork, "down")
	})

	require.Error(t, err)
	assert.Equal(t, []string{"primary"}, called)
}

func TestRouter_RoundRobinRotates(t *testing.T) {
	router := NewRouter(StrategyRoundRobin, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	var called []string
	for i := 0; i < 4; i++ {
		err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
			called = append(called, id)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"primary", "secondary", "primary", "secondary"}, called)
}

func TestRouter_CostBiasedPrefersCheapest(t *testing.T) {
	router := NewRouter(StrategyCostBiased, testCandidates(), NewBreakerConfig(), nil, nil, nil, nil)

	var first string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		if first == "" {
			first = id
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "secondary", first)
}

func TestRouter_SkipsOpenCircuit(t *testing.T) {
	cfg := NewBreakerConfig().WithWindowSize(2).WithFailureThreshold(0.5)
	router := NewRouter(StrategyPriorityList, testCandidates(), cfg, nil, nil, nil, nil)

	// Trip the primary's breaker.
	b := router.Breaker("primary")
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	var called []string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		called = append(called, id)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"secondary"}, called)
	assert.EqualValues(t, 1, router.Stats()["primary"].CircuitOpen)
}

func TestRouter_ExhaustionKeepsCircuitOpenKind(t *testing.T) {
	cfg := NewBreakerConfig().WithWindowSize(2).WithFailureThreshold(0.5)
	router := NewRouter(StrategyPrimaryOnly, []Candidate{{ID: "primary"}}, cfg, nil, nil, nil, nil)

	b := router.Breaker("primary")
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		t.Fatal("dispatch must not run behind an open circuit")
		return nil
	})

	require.Error(t, err)
	// Callers park work behind an open breaker, so the skip's failure class
	// must survive the exhaustion wrap.
	assert.True(t, errs.IsKind(err, errs.KindCircuitOpen))
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
}

func TestRouter_RateGateSkipsCandidate(t *testing.T) {
	gate := func(ctx context.Context, id string) (bool, error) {
		return id != "primary", nil
	}
	router := NewRouter(StrategyPriorityList, testCandidates(), NewBreakerConfig(), nil, nil, gate, nil)

	var called []string
	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		called = append(called, id)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"secondary"}, called)
	assert.EqualValues(t, 1, router.Stats()["primary"].RateLimited)
}

func TestRouter_TracksConnections(t *testing.T) {
	tracker := NewConnectionTracker()
	router := NewRouter(StrategyPriorityList, testCandidates(), NewBreakerConfig(), nil, tracker, nil, nil)

	err := router.Execute(context.Background(), "embed", func(ctx context.Context, id string) error {
		assert.Equal(t, 1, tracker.Active(id))
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, tracker.TotalActive())
}

func TestConnectionTracker_GuardReleaseIsIdempotent(t *testing.T) {
	tracker := NewConnectionTracker()
	guard := tracker.Track("p")
	require.Equal(t, 1, tracker.Active("p"))

	guard.Release()
	guard.Release()
	assert.Zero(t, tracker.Active("p"))
}

func TestConnectionTracker_WaitForDrain(t *testing.T) {
	tracker := NewConnectionTracker()
	guard := tracker.Track("p")

	err := tracker.WaitForDrain(context.Background(), "p", 150*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTimeout))

	go func() {
		time.Sleep(50 * time.Millisecond)
		guard.Release()
	}()
	assert.NoError(t, tracker.WaitForDrain(context.Background(), "p", 2*time.Second))
}

func TestConnectionTracker_CloseAll(t *testing.T) {
	tracker := NewConnectionTracker()
	tracker.Track("p")
	tracker.Track("p")
	require.Equal(t, 2, tracker.Active("p"))

	tracker.CloseAll("p")
	assert.Zero(t, tracker.Active("p"))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("round_robin")
	require.NoError(t, err)
	assert.Equal(t, StrategyRoundRobin, s)

	_, err = ParseStrategy("random")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))
}
