package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters bundles the domain metrics the CLI records: merge outcomes,
// collision renumberings, and sync results. All methods are safe to call
// when telemetry is disabled; the no-op meter swallows them.
type Counters struct {
	merges     metric.Int64Counter
	fallbacks  metric.Int64Counter
	collisions metric.Int64Counter
	syncs      metric.Int64Counter
}

// NewCounters builds the domain counter set from the global meter.
func NewCounters() *Counters {
	m := Meter("")
	merges, _ := m.Int64Counter("loom.merge.entities",
		metric.WithDescription("Entities reconciled by three-way merge"))
	fallbacks, _ := m.Int64Counter("loom.merge.fallbacks",
		metric.WithDescription("Entities that fell back to the metadata merge"))
	collisions, _ := m.Int64Counter("loom.collision.renumbered",
		metric.WithDescription("Human identifiers renumbered by collision resolution"))
	syncs, _ := m.Int64Counter("loom.sync.documents",
		metric.WithDescription("Documents synced, by outcome"))
	return &Counters{merges: merges, fallbacks: fallbacks, collisions: collisions, syncs: syncs}
}

// RecordMerge records one merge pass.
func (c *Counters) RecordMerge(ctx context.Context, merged, fallbacks int) {
	c.merges.Add(ctx, int64(merged))
	c.fallbacks.Add(ctx, int64(fallbacks))
}

// RecordCollisions records renumbered identifiers.
func (c *Counters) RecordCollisions(ctx context.Context, n int) {
	c.collisions.Add(ctx, int64(n))
}

// RecordSync records one document sync outcome.
func (c *Counters) RecordSync(ctx context.Context, status string) {
	c.syncs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", status)))
}
