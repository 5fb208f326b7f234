package engine

import (
	"context"

	"github.com/slotforge/slot-engine/internal/model"
)

// SlotFilter narrows ListSlotsByOwner results. Nil fields mean "any".
type SlotFilter struct {
	Status  *string
	IsEmpty *bool
}

// Tx is the set of storage operations available inside one engine
// transaction. Implementations must guarantee that GetSlotForUpdate
// takes a row lock held until commit/rollback and that NextSlotNumber
// is an atomic get-and-increment on the owner's counter row, so two
// transactions can never observe the same number.
type Tx interface {
	GetSlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error)
	InsertSlot(ctx context.Context, s *model.Slot) error
	UpdateSlot(ctx context.Context, s *model.Slot) error

	ListEnabledFieldConfigs(ctx context.Context) ([]model.FieldConfig, error)
	ListFieldValues(ctx context.Context, slotID uint64) (map[string]string, error)
	UpsertFieldValues(ctx context.Context, slotID uint64, values map[string]string) error

	InsertChangeLog(ctx context.Context, e *model.ChangeLogEntry) error

	NextSlotNumber(ctx context.Context, ownerID uint64) (uint64, error)

	// AddToAllocation upserts the owner's allocation aggregate, adding
	// count to allocated_slots, and returns the resulting row.
	AddToAllocation(ctx context.Context, ownerID uint64, count int, workCount int, amount int64, description string) (*model.Allocation, error)
	// IncrementUsedSlots bumps the advisory used_slots counter.
	IncrementUsedSlots(ctx context.Context, allocationID uint64) error
}

// Store opens transactions for engine operations and serves the read
// paths that need no locking. Reads of missing rows return ErrNotFound.
type Store interface {
	// WithinTx runs fn inside one storage transaction. A non-nil error
	// from fn rolls the transaction back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetSlot(ctx context.Context, slotID uint64) (*model.Slot, error)
	ListSlotsByOwner(ctx context.Context, ownerID uint64, f SlotFilter) ([]model.Slot, error)
	ListFieldValues(ctx context.Context, slotID uint64) (map[string]string, error)
	ListChangeLog(ctx context.Context, slotID uint64) ([]model.ChangeLogEntry, error)
	ListFieldConfigs(ctx context.Context, includeDisabled bool) ([]model.FieldConfig, error)
	GetAllocationByOwner(ctx context.Context, ownerID uint64) (*model.Allocation, error)
}
