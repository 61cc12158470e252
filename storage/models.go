package storage

import "time"

// HealthState is the overall state reported by a health check.
type HealthState string

// Health states.
const (
	Healthy      HealthState = "healthy"
	Degraded     HealthState = "degraded"
	Unhealthy    HealthState = "error"
	Disconnected HealthState = "disconnected"
)

// HealthStatus is the result of a health check. Failures are reported in
// Status and Message, never raised.
type HealthStatus struct {
	Status         HealthState
	Message        string // cause of a non-healthy Status, "" when healthy
	BackendVersion string
	Info           map[string]string
	ResponseTime   time.Duration
}

// EntityData is one stored entity as returned by reads.
type EntityData struct {
	EntityType string
	EntityID   string
	Metadata   map[string]any
	System     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TargetEntity identifies one endpoint of a relationship.
type TargetEntity struct {
	EntityType string
	EntityID   string
}

// RelationshipData groups the outgoing edges of one relationship type on
// one entity.
type RelationshipData struct {
	Name           string
	TargetEntities []TargetEntity
	Metadata       map[string]any
}

// SystemMetrics summarizes backend contents.
type SystemMetrics struct {
	EntityCounts       map[string]int
	BackendInfo        map[string]string
	TotalEntities      int
	TotalRelationships int
	SizeBytes          int64
	LastUpdated        time.Time
}

// QueryResult is the non-raising envelope returned by ExecuteQuery.
type QueryResult struct {
	Data     any
	Error    string
	Duration time.Duration
	Success  bool
}

// EntityRecord is one entity extracted from a descriptor, the unit the
// apply engine hands to storage.
type EntityRecord struct {
	EntityType     string
	EntityID       string
	Metadata       map[string]any
	SystemMetadata map[string]any
	Relationships  map[string][]string
}

// DryRunResult classifies what an apply would do without writing.
type DryRunResult struct {
	WouldCreate []string
	WouldUpdate []string
	WouldDelete []string
	Issues      []string
	Summary     string
}
