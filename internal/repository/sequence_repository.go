package repository

import (
	"context"
	"database/sql"
)

// SequenceRepo issues per-owner slot numbers from the slot_sequences
// counter table (owner_id primary key, next_number). Numbers are unique
// and strictly increasing per owner; a rolled-back transaction releases
// the number it read, which can leave gaps but never duplicates.
type SequenceRepo struct {
	db *sql.DB
}

// NewSequenceRepo returns a SequenceRepo bound to the database.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

// NextTx atomically increments and returns the owner's counter inside
// the given transaction. The LAST_INSERT_ID(expr) upsert makes the
// get-and-increment a single statement, so two transactions can never
// read the same value: the second blocks on the row lock the first
// statement took until the first transaction finishes.
func (r *SequenceRepo) NextTx(ctx context.Context, tx *sql.Tx, ownerID uint64) (uint64, error) {
	const q = `INSERT INTO slot_sequences (owner_id, next_number)
		VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE next_number = LAST_INSERT_ID(next_number + 1)`
	res, err := tx.ExecContext(ctx, q, ownerID)
	if err != nil {
		return 0, err
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
