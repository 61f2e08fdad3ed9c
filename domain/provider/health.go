package provider

import "time"

// HealthStatus is the probe-derived state of a provider.
type HealthStatus string

// Health states.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// Health is a per-provider health record maintained by the health monitor.
type Health struct {
	providerID          string
	status              HealthStatus
	consecutiveFailures int
	lastCheckAt         time.Time
	lastSuccessAt       time.Time
}

// NewHealth creates a Health record in the unknown state.
func NewHealth(providerID string) Health {
	return Health{providerID: providerID, status: HealthUnknown}
}

// ProviderID returns the provider identifier.
func (h Health) ProviderID() string { return h.providerID }

// Status returns the current health state.
func (h Health) Status() HealthStatus { return h.status }

// ConsecutiveFailures returns the current failure streak.
func (h Health) ConsecutiveFailures() int { return h.consecutiveFailures }

// LastCheckAt returns the time of the most recent probe.
func (h Health) LastCheckAt() time.Time { return h.lastCheckAt }

// LastSuccessAt returns the time of the most recent successful probe.
func (h Health) LastSuccessAt() time.Time { return h.lastSuccessAt }

// RecordSuccess returns a copy updated for a successful probe at now.
// A single success restores the healthy state.
func (h Health) RecordSuccess(now time.Time) Health {
	h.status = HealthHealthy
	h.consecutiveFailures = 0
	h.lastCheckAt = now
	h.lastSuccessAt = now
	return h
}

// RecordFailure returns a copy updated for a failed probe at now. Crossing
// failureThreshold consecutive failures marks the provider unhealthy;
// earlier failures mark it degraded.
func (h Health) RecordFailure(now time.Time, failureThreshold int) Health {
	h.consecutiveFailures++
	h.lastCheckAt = now
	if h.consecutiveFailures >= failureThreshold {
		h.status = HealthUnhealthy
	} else {
		h.status = HealthDegraded
	}
	return h
}

// Available reports whether the provider should receive traffic.
func (h Health) Available() bool {
	return h.status == HealthHealthy || h.status == HealthDegraded || h.status == HealthUnknown
}
