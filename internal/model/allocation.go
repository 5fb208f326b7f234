package model

import "time"

// Allocation aggregates the bulk-provisioned slot total for one owner.
// Repeated provisioning calls for the same owner extend the same row;
// AllocatedSlots grows by the provisioned count each time. UsedSlots is
// advisory (how many of the empty slots have been filled) and is not
// relied on for any invariant.
//
// Fields:
//
//	ID             – primary key identifier.
//	OwnerID        – user the slots were provisioned for.
//	AllocatedSlots – total slots ever provisioned under this allocation.
//	UsedSlots      – filled slots, advisory.
//	WorkCount      – contracted daily work count shared by the batch.
//	Amount         – contracted amount shared by the batch.
//	Description    – operator note shared by the batch.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Allocation struct {
	ID             uint64    // allocations.id
	OwnerID        uint64    // allocations.owner_id
	AllocatedSlots int       // allocations.allocated_slots
	UsedSlots      int       // allocations.used_slots
	WorkCount      int       // allocations.work_count
	Amount         int64     // allocations.amount
	Description    string    // allocations.description
	CreatedAt      time.Time // allocations.created_at
	UpdatedAt      time.Time // allocations.updated_at
}
