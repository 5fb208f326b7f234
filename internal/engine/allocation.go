package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/slotforge/slot-engine/internal/model"
)

// Provisioning batch size bounds.
const (
	MinProvisionCount = 1
	MaxProvisionCount = 1000
)

// ProvisionRequest describes one bulk-provisioning call. The date range
// and contract metadata are shared by every slot in the batch.
type ProvisionRequest struct {
	OwnerID     uint64
	Count       int
	StartDate   *time.Time
	EndDate     *time.Time
	WorkCount   int
	Amount      int64
	Description string
}

// AllocationManager bulk-provisions EMPTY slots for pre-allocation
// deployments and maintains the per-owner allocation aggregate. The
// aggregate update and every slot insert share one transaction: a
// failure anywhere rolls back the whole batch, so partial provisioning
// is never observable.
type AllocationManager struct {
	store Store
	now   func() time.Time
}

// NewAllocationManager wires an AllocationManager over the store.
func NewAllocationManager(store Store) *AllocationManager {
	return &AllocationManager{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Provision upserts the owner's allocation aggregate (allocated_slots
// += count) and inserts count EMPTY slots, each taking the owner's next
// sequence number. Administrator only.
func (m *AllocationManager) Provision(ctx context.Context, admin Principal, req ProvisionRequest) (*model.Allocation, error) {
	if !admin.Admin() {
		return nil, fmt.Errorf("%w: provisioning requires an administrator", ErrForbidden)
	}
	if req.Count < MinProvisionCount || req.Count > MaxProvisionCount {
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "count",
			Message: fmt.Sprintf("must be between %d and %d", MinProvisionCount, MaxProvisionCount),
		}}}
	}
	var alloc *model.Allocation
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		a, err := tx.AddToAllocation(ctx, req.OwnerID, req.Count, req.WorkCount, req.Amount, req.Description)
		if err != nil {
			return err
		}
		for i := 0; i < req.Count; i++ {
			num, err := tx.NextSlotNumber(ctx, req.OwnerID)
			if err != nil {
				return err
			}
			s := &model.Slot{
				OwnerID:      req.OwnerID,
				SlotNumber:   num,
				Status:       model.StatusEmpty,
				StartDate:    req.StartDate,
				EndDate:      req.EndDate,
				AllocationID: &a.ID,
			}
			s.DeriveIsEmpty()
			if err := tx.InsertSlot(ctx, s); err != nil {
				return err
			}
		}
		alloc = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// GetAllocation returns the owner's allocation aggregate. Owners may
// read their own; admins may read anyone's.
func (m *AllocationManager) GetAllocation(ctx context.Context, actor Principal, ownerID uint64) (*model.Allocation, error) {
	if ownerID != actor.ID && !actor.Admin() {
		return nil, fmt.Errorf("%w: cannot read another user's allocation", ErrForbidden)
	}
	return m.store.GetAllocationByOwner(ctx, ownerID)
}
