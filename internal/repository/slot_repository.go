package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/slotforge/slot-engine/internal/engine"
	"github.com/slotforge/slot-engine/internal/model"
)

// SlotRepo provides persistence for the slots table. Mutating methods
// take an explicit *sql.Tx because slot writes always happen inside an
// engine transaction together with field values and the change log; the
// caller commits or rolls back.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, owner_id, slot_number, status, is_empty, keyword, url, mid,
	approved_price, start_date, end_date, allocation_id, parent_slot_id, is_extended,
	rejection_reason, refund_reason, refunded_at, approved_at, approved_by, created_at, updated_at`

// GetForUpdateTx loads a slot with a row lock held until the
// transaction ends. Two transactions racing to mutate the same slot
// serialize here, so status precondition checks stay valid through the
// write. Returns sql.ErrNoRows when the slot does not exist.
func (r *SlotRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, slotID uint64) (*model.Slot, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ? FOR UPDATE`, slotID)
	return scanSlot(row)
}

// Get loads a slot without locking.
func (r *SlotRepo) Get(ctx context.Context, slotID uint64) (*model.Slot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, slotID)
	return scanSlot(row)
}

// InsertTx inserts a slot and populates its generated ID and the
// timestamps defaulted by the database.
func (r *SlotRepo) InsertTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	const q = `INSERT INTO slots
		(owner_id, slot_number, status, is_empty, keyword, url, mid, approved_price,
		 start_date, end_date, allocation_id, parent_slot_id, is_extended,
		 rejection_reason, refund_reason, refunded_at, approved_at, approved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		s.OwnerID, s.SlotNumber, s.Status, s.IsEmpty, s.Keyword, s.URL, s.MID, s.ApprovedPrice,
		s.StartDate, s.EndDate, s.AllocationID, s.ParentSlotID, s.IsExtended,
		s.RejectionReason, s.RefundReason, s.RefundedAt, s.ApprovedAt, s.ApprovedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back to pick up created_at/updated_at defaults.
	row := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM slots WHERE id = ?`, s.ID)
	return row.Scan(&s.CreatedAt, &s.UpdatedAt)
}

// UpdateTx persists the mutable slot columns. owner_id, slot_number and
// parent_slot_id are deliberately not in the SET list: ownership and
// sequence never change, and a parent reference is immutable once set.
func (r *SlotRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	const q = `UPDATE slots SET
		status = ?, is_empty = ?, keyword = ?, url = ?, mid = ?, approved_price = ?,
		start_date = ?, end_date = ?, allocation_id = ?, is_extended = ?,
		rejection_reason = ?, refund_reason = ?, refunded_at = ?, approved_at = ?, approved_by = ?
		WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		s.Status, s.IsEmpty, s.Keyword, s.URL, s.MID, s.ApprovedPrice,
		s.StartDate, s.EndDate, s.AllocationID, s.IsExtended,
		s.RejectionReason, s.RefundReason, s.RefundedAt, s.ApprovedAt, s.ApprovedBy,
		s.ID)
	return err
}

// ListByOwner returns an owner's slots ordered by sequence number. The
// filter narrows by status and/or the is_empty mirror.
func (r *SlotRepo) ListByOwner(ctx context.Context, ownerID uint64, f engine.SlotFilter) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if f.Status != nil {
		q += ` AND status = ?`
		args = append(args, strings.ToUpper(*f.Status))
	}
	if f.IsEmpty != nil {
		q += ` AND is_empty = ?`
		args = append(args, *f.IsEmpty)
	}
	q += ` ORDER BY slot_number`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlotRows(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var (
		s             model.Slot
		approvedPrice sql.NullInt64
		startDate     sql.NullTime
		endDate       sql.NullTime
		allocationID  sql.NullInt64
		parentSlotID  sql.NullInt64
		refundedAt    sql.NullTime
		approvedAt    sql.NullTime
		approvedBy    sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.SlotNumber, &s.Status, &s.IsEmpty, &s.Keyword, &s.URL, &s.MID,
		&approvedPrice, &startDate, &endDate, &allocationID, &parentSlotID, &s.IsExtended,
		&s.RejectionReason, &s.RefundReason, &refundedAt, &approvedAt, &approvedBy,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedPrice.Valid {
		v := approvedPrice.Int64
		s.ApprovedPrice = &v
	}
	if startDate.Valid {
		t := startDate.Time
		s.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		s.EndDate = &t
	}
	if allocationID.Valid {
		v := uint64(allocationID.Int64)
		s.AllocationID = &v
	}
	if parentSlotID.Valid {
		v := uint64(parentSlotID.Int64)
		s.ParentSlotID = &v
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		s.RefundedAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		s.ApprovedAt = &t
	}
	if approvedBy.Valid {
		v := uint64(approvedBy.Int64)
		s.ApprovedBy = &v
	}
	return &s, nil
}

func scanSlotRows(rows *sql.Rows) (*model.Slot, error) { return scanSlot(rows) }
