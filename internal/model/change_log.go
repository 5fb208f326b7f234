package model

import "time"

// Change types recorded in the slot change log.
const (
	ChangeFieldUpdate  = "field_update"
	ChangeStatusChange = "status_change"
	ChangeFillEmpty    = "fill_empty"
	ChangeApprove      = "approve"
	ChangeReject       = "reject"
	ChangeRefund       = "refund"
)

// ChangeLogEntry is one append-only record in the `slot_change_logs`
// table. Entries are written in the same transaction as the mutation
// they describe and are never updated or deleted. A multi-field update
// produces a single entry: FieldKeys lists every changed key in order
// and OldValues/NewValues are keyed by field. Description is a short
// summary for rendering history; the value maps are authoritative.
//
// Fields:
//
//	ID         – primary key identifier.
//	SlotID     – slot the change applies to.
//	UserID     – principal who performed the change.
//	ChangeType – one of the Change constants above.
//	FieldKeys  – ordered list of changed field keys.
//	OldValues  – prior values keyed by field.
//	NewValues  – new values keyed by field.
//	Description – human-readable summary.
//	IP         – caller address captured from the request.
//	UserAgent  – caller user agent captured from the request.
//	CreatedAt  – when the change was committed.
type ChangeLogEntry struct {
	ID          uint64            // slot_change_logs.id
	SlotID      uint64            // slot_change_logs.slot_id
	UserID      uint64            // slot_change_logs.user_id
	ChangeType  string            // slot_change_logs.change_type
	FieldKeys   []string          // slot_change_logs.field_keys (JSON)
	OldValues   map[string]string // slot_change_logs.old_values (JSON)
	NewValues   map[string]string // slot_change_logs.new_values (JSON)
	Description string            // slot_change_logs.description
	IP          string            // slot_change_logs.ip
	UserAgent   string            // slot_change_logs.user_agent
	CreatedAt   time.Time         // slot_change_logs.created_at
}
