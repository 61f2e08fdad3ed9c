// Package event defines the domain events published on the in-process bus.
// Events are fire-and-forget notifications between services; delivery is
// best-effort and never blocks the publisher.
package event

import "time"

// Type discriminates event payloads.
type Type string

// Event types.
const (
	TypeIndexRebuild          Type = "index_rebuild"
	TypeSyncCompleted         Type = "sync_completed"
	TypeProviderHealthChanged Type = "provider_health_changed"
	TypeProviderRecovered     Type = "provider_recovered"
	TypeParseDegraded         Type = "parse_degraded"
	TypeSearchDegraded        Type = "search_degraded"
	TypeConfigChanged         Type = "config_changed"
	TypeShutdown              Type = "shutdown"
)

// Event is one domain event. Exactly one payload field matching Type is set.
type Event struct {
	Type       Type
	OccurredAt time.Time

	IndexRebuild          *IndexRebuild
	SyncCompleted         *SyncCompleted
	ProviderHealthChanged *ProviderHealthChanged
	ProviderRecovered     *ProviderRecovered
	ParseDegraded         *ParseDegraded
	SearchDegraded        *SearchDegraded
	ConfigChanged         *ConfigChanged
	Shutdown              *Shutdown
}

// IndexRebuild requests a full re-index of a collection.
type IndexRebuild struct {
	Collection string
	Reason     string
}

// SyncCompleted reports the outcome of one sync run.
type SyncCompleted struct {
	Collection string
	Path       string
	Added      int
	Modified   int
	Removed    int
	Unchanged  int
	Duration   time.Duration
}

// ProviderHealthChanged reports a health state transition.
type ProviderHealthChanged struct {
	ProviderID string
	From       string
	To         string
}

// ProviderRecovered reports a provider returning to service. The indexing
// service retries parked batches on receipt.
type ProviderRecovered struct {
	ProviderID string
}

// ParseDegraded reports a file that fell back to line-based chunking after
// its grammar failed to produce a usable tree.
type ParseDegraded struct {
	FilePath string
	Language string
	Reason   string
}

// SearchDegraded reports a search served from lexical scores alone because
// the semantic side was unavailable.
type SearchDegraded struct {
	Collection string
	Reason     string
}

// ConfigChanged reports a runtime configuration update.
type ConfigChanged struct {
	Section string
}

// Shutdown tells subscribers the process is draining.
type Shutdown struct {
	Reason string
}

// NewIndexRebuild builds an IndexRebuild event.
func NewIndexRebuild(now time.Time, collection, reason string) Event {
	return Event{Type: TypeIndexRebuild, OccurredAt: now, IndexRebuild: &IndexRebuild{Collection: collection, Reason: reason}}
}

// NewSyncCompleted builds a SyncCompleted event.
func NewSyncCompleted(now time.Time, payload SyncCompleted) Event {
	return Event{Type: TypeSyncCompleted, OccurredAt: now, SyncCompleted: &payload}
}

// NewProviderHealthChanged builds a ProviderHealthChanged event.
func NewProviderHealthChanged(now time.Time, providerID, from, to string) Event {
	return Event{Type: TypeProviderHealthChanged, OccurredAt: now, ProviderHealthChanged: &ProviderHealthChanged{ProviderID: providerID, From: from, To: to}}
}

// NewProviderRecovered builds a ProviderRecovered event.
func NewProviderRecovered(now time.Time, providerID string) Event {
	return Event{Type: TypeProviderRecovered, OccurredAt: now, ProviderRecovered: &ProviderRecovered{ProviderID: providerID}}
}

// NewParseDegraded builds a ParseDegraded event.
func NewParseDegraded(now time.Time, filePath, language, reason string) Event {
	return Event{Type: TypeParseDegraded, OccurredAt: now, ParseDegraded: &ParseDegraded{FilePath: filePath, Language: language, Reason: reason}}
}

// NewSearchDegraded builds a SearchDegraded event.
func NewSearchDegraded(now time.Time, collection, reason string) Event {
	return Event{Type: TypeSearchDegraded, OccurredAt: now, SearchDegraded: &SearchDegraded{Collection: collection, Reason: reason}}
}

// NewConfigChanged builds a ConfigChanged event.
func NewConfigChanged(now time.Time, section string) Event {
	return Event{Type: TypeConfigChanged, OccurredAt: now, ConfigChanged: &ConfigChanged{Section: section}}
}

// NewShutdown builds a Shutdown event.
func NewShutdown(now time.Time, reason string) Event {
	return Event{Type: TypeShutdown, OccurredAt: now, Shutdown: &Shutdown{Reason: reason}}
}

// Bus is the publish side of the event bus.
type Bus interface {
	Publish(evt Event)
}

// Subscriber receives events. Handlers must be quick; slow work belongs on a
// worker.
type Subscriber interface {
	Subscribe(types ...Type) (<-chan Event, func())
}
