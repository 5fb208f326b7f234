package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/slotforge/slot-engine/internal/model"
)

// ChangeLogRepo persists the append-only slot change log. Field key
// lists and value maps are stored as JSON columns. There is no update
// or delete method on purpose: entries are immutable once written.
type ChangeLogRepo struct {
	db *sql.DB
}

// NewChangeLogRepo returns a ChangeLogRepo bound to the database.
func NewChangeLogRepo(db *sql.DB) *ChangeLogRepo { return &ChangeLogRepo{db: db} }

// InsertTx appends an entry inside the same transaction as the
// mutation it describes, so both commit or neither does.
func (r *ChangeLogRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.ChangeLogEntry) error {
	keys, err := json.Marshal(e.FieldKeys)
	if err != nil {
		return err
	}
	oldVals, err := json.Marshal(e.OldValues)
	if err != nil {
		return err
	}
	newVals, err := json.Marshal(e.NewValues)
	if err != nil {
		return err
	}
	const q = `INSERT INTO slot_change_logs
		(slot_id, user_id, change_type, field_keys, old_values, new_values, description, ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		e.SlotID, e.UserID, e.ChangeType, keys, oldVals, newVals, e.Description, e.IP, e.UserAgent)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListBySlot returns a slot's history, newest first.
func (r *ChangeLogRepo) ListBySlot(ctx context.Context, slotID uint64) ([]model.ChangeLogEntry, error) {
	const q = `SELECT id, slot_id, user_id, change_type, field_keys, old_values, new_values,
		description, ip, user_agent, created_at
		FROM slot_change_logs WHERE slot_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.ChangeLogEntry, 0)
	for rows.Next() {
		var (
			e       model.ChangeLogEntry
			keys    []byte
			oldVals []byte
			newVals []byte
		)
		if err := rows.Scan(&e.ID, &e.SlotID, &e.UserID, &e.ChangeType,
			&keys, &oldVals, &newVals, &e.Description, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(keys, &e.FieldKeys); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oldVals, &e.OldValues); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(newVals, &e.NewValues); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
