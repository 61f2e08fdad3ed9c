package service

import (
	"context"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
	"github.com/mcb/mcp-context-browser/infrastructure/routing"
)

// ProviderStatus is one provider's health as exposed on the admin surface.
type ProviderStatus struct {
	ProviderID          string `json:"provider_id"`
	Status              string `json:"status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastCheckAt         string `json:"last_check_at,omitempty"`
	LastSuccessAt       string `json:"last_success_at,omitempty"`
}

// CollectionStatus summarizes one collection's lexical index.
type CollectionStatus struct {
	Collection     string  `json:"collection"`
	Documents      int     `json:"documents"`
	Terms          int     `json:"terms"`
	AverageDocLen  float64 `json:"average_doc_len"`
	SearchesServed uint64  `json:"searches_served"`
}

// StatusReport aggregates the read-only state surface.
type StatusReport struct {
	Indexing    IndexingTotals     `json:"indexing"`
	Sync        SyncStats          `json:"sync"`
	Providers   []ProviderStatus   `json:"providers"`
	Collections []CollectionStatus `json:"collections"`
	Uptime      string             `json:"uptime"`
}

// Status serves the aggregated read-only state for the protocol and admin
// surfaces.
type Status struct {
	indexing  *Indexing
	sync      *Sync
	hybrid    provider.HybridSearchProvider
	monitor   *routing.HealthMonitor
	startedAt time.Time
}

// NewStatus creates the status service. sync and monitor may be nil when the
// corresponding subsystems are not running.
func NewStatus(indexing *Indexing, sync *Sync, hybrid provider.HybridSearchProvider, monitor *routing.HealthMonitor) *Status {
	return &Status{
		indexing:  indexing,
		sync:      sync,
		hybrid:    hybrid,
		monitor:   monitor,
		startedAt: time.Now(),
	}
}

// Report builds the status report for the named collections.
func (s *Status) Report(ctx context.Context, collections ...string) StatusReport {
	report := StatusReport{
		Indexing: s.indexing.Totals(),
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.sync != nil {
		report.Sync = s.sync.Stats()
	}
	if s.monitor != nil {
		for _, h := range s.monitor.All() {
			report.Providers = append(report.Providers, providerStatus(h))
		}
	}
	for _, collection := range collections {
		stats, err := s.hybrid.Stats(ctx, collection)
		if err != nil {
			continue
		}
		report.Collections = append(report.Collections, collectionStatus(stats))
	}
	return report
}

// Ready reports whether every monitored provider can take traffic.
func (s *Status) Ready() bool {
	if s.monitor == nil {
		return true
	}
	for _, h := range s.monitor.All() {
		if !h.Available() {
			return false
		}
	}
	return true
}

func providerStatus(h provider.Health) ProviderStatus {
	status := ProviderStatus{
		ProviderID:          h.ProviderID(),
		Status:              string(h.Status()),
		ConsecutiveFailures: h.ConsecutiveFailures(),
	}
	if !h.LastCheckAt().IsZero() {
		status.LastCheckAt = h.LastCheckAt().UTC().Format(time.RFC3339)
	}
	if !h.LastSuccessAt().IsZero() {
		status.LastSuccessAt = h.LastSuccessAt().UTC().Format(time.RFC3339)
	}
	return status
}

func collectionStatus(stats search.Stats) CollectionStatus {
	return CollectionStatus{
		Collection:     stats.Collection(),
		Documents:      stats.DocumentCount(),
		Terms:          stats.TermCount(),
		AverageDocLen:  stats.AverageDocLen(),
		SearchesServed: stats.SearchesServed(),
	}
}
