package repository

import (
	"context"
	"database/sql"

	"github.com/slotforge/slot-engine/internal/model"
)

// AllocationRepo persists the per-owner allocation aggregate.
type AllocationRepo struct {
	db *sql.DB
}

// NewAllocationRepo returns an AllocationRepo bound to the database.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

const allocationColumns = `id, owner_id, allocated_slots, used_slots, work_count, amount,
	description, created_at, updated_at`

// AddTx adds count to the owner's aggregate inside the transaction,
// creating the row on first provisioning. allocations.owner_id carries
// a UNIQUE index; the upsert makes two concurrent first-time provisions
// serialize on that index instead of racing to insert two aggregates,
// the same single-statement pattern the sequence counter uses. Returns
// the row after the change.
func (r *AllocationRepo) AddTx(ctx context.Context, tx *sql.Tx, ownerID uint64, count, workCount int, amount int64, description string) (*model.Allocation, error) {
	const q = `INSERT INTO allocations (owner_id, allocated_slots, used_slots, work_count, amount, description)
		VALUES (?, ?, 0, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			allocated_slots = allocated_slots + VALUES(allocated_slots),
			work_count = VALUES(work_count),
			amount = VALUES(amount),
			description = VALUES(description)`
	if _, err := tx.ExecContext(ctx, q, ownerID, count, workCount, amount, description); err != nil {
		return nil, err
	}
	// The upsert left the row locked by this tx; re-read it by owner.
	row := tx.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE owner_id = ?`, ownerID)
	return scanAllocation(row)
}

// IncrementUsedTx bumps the advisory used_slots counter when an empty
// slot from this allocation gets filled.
func (r *AllocationRepo) IncrementUsedTx(ctx context.Context, tx *sql.Tx, allocationID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE allocations SET used_slots = used_slots + 1 WHERE id = ?`, allocationID)
	return err
}

// GetByOwner returns the owner's aggregate, or sql.ErrNoRows when the
// owner was never provisioned.
func (r *AllocationRepo) GetByOwner(ctx context.Context, ownerID uint64) (*model.Allocation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE owner_id = ?`, ownerID)
	return scanAllocation(row)
}

func scanAllocation(row rowScanner) (*model.Allocation, error) {
	var a model.Allocation
	err := row.Scan(&a.ID, &a.OwnerID, &a.AllocatedSlots, &a.UsedSlots, &a.WorkCount,
		&a.Amount, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
