package model

import "time"

// Slot statuses. A slot moves EMPTY -> PENDING -> {ACTIVE, REJECTED},
// ACTIVE <-> PAUSED, and from EMPTY/ACTIVE/PAUSED to REFUNDED which is
// terminal. Normal-mode creation starts at PENDING directly; EMPTY only
// exists for pre-allocated inventory.
const (
	StatusEmpty    = "EMPTY"
	StatusPending  = "PENDING"
	StatusActive   = "ACTIVE"
	StatusPaused   = "PAUSED"
	StatusRejected = "REJECTED"
	StatusRefunded = "REFUNDED"
)

// Slot is one unit of advertising inventory as stored in the `slots`
// table. Custom data lives in slot_field_values; keyword, url and mid
// are mirrored onto columns because listings filter and sort on them.
//
// Fields:
//
//	ID              – primary key identifier.
//	OwnerID         – user who owns the slot.
//	SlotNumber      – per-owner sequence number, unique and never reused.
//	Status          – lifecycle status (see constants above).
//	IsEmpty         – stored mirror of status==EMPTY; written only via Derive.
//	Keyword         – search keyword the slot advertises.
//	URL             – product URL the slot points at.
//	MID             – marketplace merchant identifier.
//	ApprovedPrice   – price fixed at approval time (nullable).
//	StartDate       – first day of the slot's run (nullable).
//	EndDate         – last day of the slot's run (nullable).
//	AllocationID    – bulk allocation this slot came from (nullable).
//	ParentSlotID    – slot this one extends (nullable, immutable once set).
//	IsExtended      – whether a successor slot has been created.
//	RejectionReason – reason entered when rejecting.
//	RefundReason    – reason entered when refunding.
//	RefundedAt      – when the slot was refunded (nullable).
//	ApprovedAt      – when the slot was approved (nullable).
//	ApprovedBy      – admin who approved (nullable).
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Slot struct {
	ID              uint64     // slots.id
	OwnerID         uint64     // slots.owner_id
	SlotNumber      uint64     // slots.slot_number
	Status          string     // slots.status
	IsEmpty         bool       // slots.is_empty
	Keyword         string     // slots.keyword
	URL             string     // slots.url
	MID             string     // slots.mid
	ApprovedPrice   *int64     // slots.approved_price (nullable)
	StartDate       *time.Time // slots.start_date (nullable)
	EndDate         *time.Time // slots.end_date (nullable)
	AllocationID    *uint64    // slots.allocation_id (nullable)
	ParentSlotID    *uint64    // slots.parent_slot_id (nullable)
	IsExtended      bool       // slots.is_extended
	RejectionReason string     // slots.rejection_reason
	RefundReason    string     // slots.refund_reason
	RefundedAt      *time.Time // slots.refunded_at (nullable)
	ApprovedAt      *time.Time // slots.approved_at (nullable)
	ApprovedBy      *uint64    // slots.approved_by (nullable)
	CreatedAt       time.Time  // slots.created_at
	UpdatedAt       time.Time  // slots.updated_at
}

// DeriveIsEmpty recomputes the stored is_empty mirror from the status.
// Every write path must go through this; the two columns are never set
// independently.
func (s *Slot) DeriveIsEmpty() { s.IsEmpty = s.Status == StatusEmpty }
