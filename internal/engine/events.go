package engine

import (
	"context"
	"time"
)

// SlotChangedEvent is emitted after a slot mutation commits. Consumers
// use it for real-time pushes and activity feeds; it is advisory and
// carries no data the change log does not.
type SlotChangedEvent struct {
	SlotID     uint64    `json:"slot_id"`
	OwnerID    uint64    `json:"owner_id"`
	NewStatus  string    `json:"new_status"`
	ChangeType string    `json:"change_type"`
	ActorID    uint64    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink receives post-commit slot change events. Implementations
// must not fail the calling operation; delivery is best-effort and any
// error should be logged by the sink itself.
type EventSink interface {
	SlotChanged(ctx context.Context, ev SlotChangedEvent)
}

// NopSink discards all events. Used when no broker is configured.
type NopSink struct{}

func (NopSink) SlotChanged(context.Context, SlotChangedEvent) {}

// RankingInvalidator ends the validity window of externally tracked
// ranking history for a slot. The engine calls it whenever a slot's
// keyword or url changes; a failure aborts the mutation, because stale
// ranking data attributed to the new keyword would be silently wrong.
type RankingInvalidator interface {
	Invalidate(ctx context.Context, slotID uint64) error
}

// NopInvalidator ignores invalidations. Used when no ranking store is
// configured.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, uint64) error { return nil }
