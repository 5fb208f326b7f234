package engine

import (
	"time"

	"github.com/slotforge/slot-engine/internal/model"
)

// Display-only states computed from an ACTIVE slot's date range. They
// are never stored; this function is the single place they exist.
const (
	DisplayWaiting   = "WAITING"
	DisplayCompleted = "COMPLETED"
)

// DisplayStatus returns the status a slot should be shown with. An
// ACTIVE slot whose run has not started yet displays as WAITING and one
// whose run has ended displays as COMPLETED; comparisons are at day
// granularity in UTC. Every other status displays as stored.
func DisplayStatus(s *model.Slot, now time.Time) string {
	if s.Status != model.StatusActive {
		return s.Status
	}
	today := dateOnly(now)
	if s.StartDate != nil && today.Before(dateOnly(*s.StartDate)) {
		return DisplayWaiting
	}
	if s.EndDate != nil && today.After(dateOnly(*s.EndDate)) {
		return DisplayCompleted
	}
	return s.Status
}
