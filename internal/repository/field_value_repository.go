package repository

import (
	"context"
	"database/sql"
)

// FieldValueRepo persists per-slot custom field values. One row exists
// per (slot_id, field_key); saves upsert rather than append.
type FieldValueRepo struct {
	db *sql.DB
}

// NewFieldValueRepo returns a FieldValueRepo bound to the database.
func NewFieldValueRepo(db *sql.DB) *FieldValueRepo { return &FieldValueRepo{db: db} }

// ListBySlot returns the slot's field values keyed by field key.
func (r *FieldValueRepo) ListBySlot(ctx context.Context, slotID uint64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT field_key, value FROM slot_field_values WHERE slot_id = ?`, slotID)
	if err != nil {
		return nil, err
	}
	return collectValues(rows)
}

// ListBySlotTx is ListBySlot inside an engine transaction.
func (r *FieldValueRepo) ListBySlotTx(ctx context.Context, tx *sql.Tx, slotID uint64) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT field_key, value FROM slot_field_values WHERE slot_id = ?`, slotID)
	if err != nil {
		return nil, err
	}
	return collectValues(rows)
}

// UpsertTx writes the given values in one multi-row statement, relying
// on the (slot_id, field_key) unique key to overwrite existing rows.
// Passing an empty map has no effect and returns nil.
func (r *FieldValueRepo) UpsertTx(ctx context.Context, tx *sql.Tx, slotID uint64, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	query := `INSERT INTO slot_field_values (slot_id, field_key, value) VALUES `
	args := make([]interface{}, 0, len(values)*3)
	first := true
	for k, v := range values {
		if !first {
			query += ","
		}
		first = false
		query += "(?, ?, ?)"
		args = append(args, slotID, k, v)
	}
	query += ` ON DUPLICATE KEY UPDATE value = VALUES(value)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func collectValues(rows *sql.Rows) (map[string]string, error) {
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
