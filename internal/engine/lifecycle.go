package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slotforge/slot-engine/internal/model"
)

// Mode is the operating mode consulted at fill time. In ModePrealloc a
// filled slot auto-activates, skipping manual approval; ModeNormal
// routes it through the pending/approve flow.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModePrealloc Mode = "prealloc"
)

// Principal is the authenticated caller handed in by the host service.
type Principal struct {
	ID   uint64
	Role string
}

// Admin reports whether the principal may perform administrator
// operations (approve, reject, refund, extend, provision).
func (p Principal) Admin() bool { return model.IsAdmin(p.Role) }

// RequestMeta carries request attribution copied into audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Lifecycle owns every slot mutation. Each operation runs in one
// transaction: precondition checks on the current status, the business
// write and the change-log insert commit or roll back together. The
// SlotChanged event fires only after a successful commit.
type Lifecycle struct {
	store   Store
	sink    EventSink
	ranking RankingInvalidator
	mode    func() Mode
	now     func() time.Time
}

// NewLifecycle wires a Lifecycle. sink, ranking and mode may be nil, in
// which case events are dropped, invalidation is a no-op and the mode
// is ModeNormal.
func NewLifecycle(store Store, sink EventSink, ranking RankingInvalidator, mode func() Mode) *Lifecycle {
	if sink == nil {
		sink = NopSink{}
	}
	if ranking == nil {
		ranking = NopInvalidator{}
	}
	if mode == nil {
		mode = func() Mode { return ModeNormal }
	}
	return &Lifecycle{
		store:   store,
		sink:    sink,
		ranking: ranking,
		mode:    mode,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the fields, derives the URL sub-fields, reserves the
// owner's next sequence number and inserts a PENDING slot. Available in
// normal mode only; pre-allocation deployments provision empty slots
// and fill them instead. Creation writes no change-log entry: the row
// insert is itself the record of creation.
func (l *Lifecycle) Create(ctx context.Context, owner Principal, fields map[string]string, startDate, endDate *time.Time, meta RequestMeta) (*model.Slot, error) {
	if l.mode() != ModeNormal {
		return nil, fmt.Errorf("%w: direct creation is disabled in pre-allocation mode", ErrConflict)
	}
	var slot *model.Slot
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		reg, err := l.registry(ctx, tx)
		if err != nil {
			return err
		}
		values, verr := prepare(reg, fields)
		if verr != nil {
			return verr
		}
		num, err := tx.NextSlotNumber(ctx, owner.ID)
		if err != nil {
			return err
		}
		s := &model.Slot{
			OwnerID:    owner.ID,
			SlotNumber: num,
			Status:     model.StatusPending,
			StartDate:  startDate,
			EndDate:    endDate,
		}
		applyReserved(s, values)
		s.DeriveIsEmpty()
		if err := tx.InsertSlot(ctx, s); err != nil {
			return err
		}
		if err := tx.UpsertFieldValues(ctx, s.ID, values); err != nil {
			return err
		}
		slot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// FillEmpty puts user data into a pre-provisioned EMPTY slot. Only the
// slot's owner may fill it. In normal mode the slot becomes PENDING; in
// pre-allocation mode it activates immediately with an approval stamp.
// Filling a slot that is not empty is a conflict, not a silent no-op.
func (l *Lifecycle) FillEmpty(ctx context.Context, actor Principal, slotID uint64, fields map[string]string, meta RequestMeta) (*model.Slot, error) {
	var slot *model.Slot
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if s.OwnerID != actor.ID {
			return fmt.Errorf("%w: slot belongs to another user", ErrForbidden)
		}
		if s.Status != model.StatusEmpty {
			return fmt.Errorf("%w: slot is not empty", ErrConflict)
		}
		reg, err := l.registry(ctx, tx)
		if err != nil {
			return err
		}
		values, verr := prepare(reg, fields)
		if verr != nil {
			return verr
		}
		newStatus := model.StatusPending
		if l.mode() == ModePrealloc {
			newStatus = model.StatusActive
			now := l.now()
			s.ApprovedAt = &now
		}
		s.Status = newStatus
		applyReserved(s, values)
		s.DeriveIsEmpty()
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		if err := tx.UpsertFieldValues(ctx, s.ID, values); err != nil {
			return err
		}
		if s.AllocationID != nil {
			if err := tx.IncrementUsedSlots(ctx, *s.AllocationID); err != nil {
				return err
			}
		}
		oldVals := map[string]string{"is_empty": "true", "status": model.StatusEmpty}
		newVals := map[string]string{"is_empty": "false", "status": newStatus}
		keys := []string{"is_empty", "status"}
		for _, k := range reg.OrderKeys(mapKeys(values)) {
			newVals[k] = values[k]
			keys = append(keys, k)
		}
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      actor.ID,
			ChangeType:  model.ChangeFillEmpty,
			FieldKeys:   keys,
			OldValues:   oldVals,
			NewValues:   newVals,
			Description: fmt.Sprintf("empty slot #%d filled (%s)", s.SlotNumber, strings.ToLower(newStatus)),
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		slot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(ctx, actor, slot, model.ChangeFillEmpty)
	return slot, nil
}

// UpdateFields applies a partial field update to a PENDING, ACTIVE or
// PAUSED slot. Only keys whose value actually changes are persisted and
// logged, batched into a single field_update entry; an update that
// changes nothing writes nothing. A change to keyword or url ends the
// validity window of externally tracked ranking history, so the
// invalidation hook runs inside the operation and a hook failure aborts
// the update.
func (l *Lifecycle) UpdateFields(ctx context.Context, actor Principal, slotID uint64, fields map[string]string, meta RequestMeta) (*model.Slot, error) {
	var (
		slot    *model.Slot
		changed bool
	)
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if s.OwnerID != actor.ID && !actor.Admin() {
			return fmt.Errorf("%w: slot belongs to another user", ErrForbidden)
		}
		switch s.Status {
		case model.StatusPending, model.StatusActive, model.StatusPaused:
		default:
			return fmt.Errorf("%w: slot in status %s is not editable", ErrConflict, s.Status)
		}
		reg, err := l.registry(ctx, tx)
		if err != nil {
			return err
		}
		existing, err := tx.ListFieldValues(ctx, s.ID)
		if err != nil {
			return err
		}
		// Derivation and validation both run against the merged view: a
		// partial update that omits a required field passes when the
		// slot already stores a value for it, and dropping the url
		// field does not wipe derived values. Explicitly blanking a
		// required field still fails.
		merged := make(map[string]string, len(existing)+len(fields))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = strings.TrimSpace(v)
		}
		// Stored derived values are dropped from the validation view so
		// only user-supplied system-generated keys get flagged.
		view := make(map[string]string, len(merged))
		for k, v := range merged {
			view[k] = v
		}
		for _, fc := range reg.Configs() {
			if !fc.IsSystemGenerated {
				continue
			}
			if _, fromInput := fields[fc.FieldKey]; !fromInput {
				delete(view, fc.FieldKey)
			}
		}
		if errs := reg.Validate(view); len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
		updates := map[string]string{}
		for k, v := range fields {
			v = strings.TrimSpace(v)
			if existing[k] != v {
				updates[k] = v
			}
		}
		for k, v := range reg.Derive(merged) {
			if existing[k] != v {
				updates[k] = v
			}
		}
		if len(updates) == 0 {
			slot = s
			return nil
		}
		oldVals := make(map[string]string, len(updates))
		newVals := make(map[string]string, len(updates))
		for k, v := range updates {
			oldVals[k] = existing[k]
			newVals[k] = v
		}
		if err := tx.UpsertFieldValues(ctx, s.ID, updates); err != nil {
			return err
		}
		applyReserved(s, updates)
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		keys := reg.OrderKeys(mapKeys(updates))
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      actor.ID,
			ChangeType:  model.ChangeFieldUpdate,
			FieldKeys:   keys,
			OldValues:   oldVals,
			NewValues:   newVals,
			Description: fmt.Sprintf("%d field(s) updated: %s", len(keys), strings.Join(keys, ", ")),
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		if _, kw := updates[FieldKeyword]; kw || hasKey(updates, FieldURL) {
			if err := l.ranking.Invalidate(ctx, s.ID); err != nil {
				return fmt.Errorf("ranking invalidation: %w", err)
			}
		}
		slot = s
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.emit(ctx, actor, slot, model.ChangeFieldUpdate)
	}
	return slot, nil
}

// Approve moves a PENDING slot to ACTIVE, stamping approver, time and
// the optional approved price. Administrator only.
func (l *Lifecycle) Approve(ctx context.Context, admin Principal, slotID uint64, approvedPrice *int64, meta RequestMeta) (*model.Slot, error) {
	if !admin.Admin() {
		return nil, fmt.Errorf("%w: approval requires an administrator", ErrForbidden)
	}
	var slot *model.Slot
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if s.Status != model.StatusPending {
			return fmt.Errorf("%w: only pending slots can be approved", ErrConflict)
		}
		now := l.now()
		s.Status = model.StatusActive
		s.ApprovedAt = &now
		s.ApprovedBy = &admin.ID
		s.ApprovedPrice = approvedPrice
		s.DeriveIsEmpty()
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		desc := fmt.Sprintf("slot #%d approved", s.SlotNumber)
		if approvedPrice != nil {
			desc += " at price " + strconv.FormatInt(*approvedPrice, 10)
		}
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      admin.ID,
			ChangeType:  model.ChangeApprove,
			FieldKeys:   []string{"status"},
			OldValues:   map[string]string{"status": model.StatusPending},
			NewValues:   map[string]string{"status": model.StatusActive},
			Description: desc,
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		slot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(ctx, admin, slot, model.ChangeApprove)
	return slot, nil
}

// Reject moves a PENDING slot to REJECTED with a reason. Administrator
// only.
func (l *Lifecycle) Reject(ctx context.Context, admin Principal, slotID uint64, reason string, meta RequestMeta) (*model.Slot, error) {
	if !admin.Admin() {
		return nil, fmt.Errorf("%w: rejection requires an administrator", ErrForbidden)
	}
	var slot *model.Slot
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if s.Status != model.StatusPending {
			return fmt.Errorf("%w: only pending slots can be rejected", ErrConflict)
		}
		s.Status = model.StatusRejected
		s.RejectionReason = strings.TrimSpace(reason)
		s.DeriveIsEmpty()
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      admin.ID,
			ChangeType:  model.ChangeReject,
			FieldKeys:   []string{"status"},
			OldValues:   map[string]string{"status": model.StatusPending},
			NewValues:   map[string]string{"status": model.StatusRejected},
			Description: fmt.Sprintf("slot #%d rejected: %s", s.SlotNumber, s.RejectionReason),
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		slot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(ctx, admin, slot, model.ChangeReject)
	return slot, nil
}

// SetStatus performs the generic transitions: pause/resume between
// ACTIVE and PAUSED (owner or admin) and the terminal move to REFUNDED
// (admin only, non-blank reason required). REFUNDED accepts no further
// transitions.
func (l *Lifecycle) SetStatus(ctx context.Context, actor Principal, slotID uint64, newStatus, reason string, meta RequestMeta) (*model.Slot, error) {
	var slot *model.Slot
	changeType := model.ChangeStatusChange
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if !transitionAllowed(s.Status, newStatus) {
			return fmt.Errorf("%w: cannot move slot from %s to %s", ErrConflict, s.Status, newStatus)
		}
		switch newStatus {
		case model.StatusRefunded:
			if !actor.Admin() {
				return fmt.Errorf("%w: refund requires an administrator", ErrForbidden)
			}
			if strings.TrimSpace(reason) == "" {
				return &ValidationError{Fields: []FieldError{{Field: "reason", Message: "refund reason is required"}}}
			}
			now := l.now()
			s.RefundReason = strings.TrimSpace(reason)
			s.RefundedAt = &now
			changeType = model.ChangeRefund
		case model.StatusActive, model.StatusPaused:
			if s.OwnerID != actor.ID && !actor.Admin() {
				return fmt.Errorf("%w: slot belongs to another user", ErrForbidden)
			}
		default:
			return fmt.Errorf("%w: cannot move slot from %s to %s", ErrConflict, s.Status, newStatus)
		}
		oldStatus := s.Status
		s.Status = newStatus
		s.DeriveIsEmpty()
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		desc := fmt.Sprintf("slot #%d: %s -> %s", s.SlotNumber, strings.ToLower(oldStatus), strings.ToLower(newStatus))
		if changeType == model.ChangeRefund {
			desc = fmt.Sprintf("slot #%d refunded: %s", s.SlotNumber, s.RefundReason)
		}
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      actor.ID,
			ChangeType:  changeType,
			FieldKeys:   []string{"status"},
			OldValues:   map[string]string{"status": oldStatus},
			NewValues:   map[string]string{"status": newStatus},
			Description: desc,
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		slot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(ctx, actor, slot, changeType)
	return slot, nil
}

// Extend creates a successor slot continuing an expiring run. The
// original must be ACTIVE with an end date and not already extended; a
// slot is extendable exactly once. The successor starts the day after
// the original ends, or today when the original already ended, runs for
// extensionDays, copies the original's data, and activates pre-approved
// with parent_slot_id pointing back. The original's own dates are left
// untouched.
func (l *Lifecycle) Extend(ctx context.Context, admin Principal, slotID uint64, extensionDays int, meta RequestMeta) (*model.Slot, error) {
	if !admin.Admin() {
		return nil, fmt.Errorf("%w: extension requires an administrator", ErrForbidden)
	}
	if extensionDays < 1 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "extension_days", Message: "must be at least 1"}}}
	}
	var child *model.Slot
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if s.Status != model.StatusActive {
			return fmt.Errorf("%w: only active slots can be extended", ErrConflict)
		}
		if s.EndDate == nil {
			return fmt.Errorf("%w: slot has no end date to extend from", ErrConflict)
		}
		if s.IsExtended {
			return fmt.Errorf("%w: slot has already been extended", ErrConflict)
		}
		today := dateOnly(l.now())
		start := today
		if end := dateOnly(*s.EndDate); !end.Before(today) {
			start = end.AddDate(0, 0, 1)
		}
		newEnd := start.AddDate(0, 0, extensionDays-1)
		num, err := tx.NextSlotNumber(ctx, s.OwnerID)
		if err != nil {
			return err
		}
		now := l.now()
		c := &model.Slot{
			OwnerID:       s.OwnerID,
			SlotNumber:    num,
			Status:        model.StatusActive,
			Keyword:       s.Keyword,
			URL:           s.URL,
			MID:           s.MID,
			ApprovedPrice: s.ApprovedPrice,
			StartDate:     &start,
			EndDate:       &newEnd,
			AllocationID:  s.AllocationID,
			ParentSlotID:  &s.ID,
			ApprovedAt:    &now,
			ApprovedBy:    &admin.ID,
		}
		c.DeriveIsEmpty()
		if err := tx.InsertSlot(ctx, c); err != nil {
			return err
		}
		values, err := tx.ListFieldValues(ctx, s.ID)
		if err != nil {
			return err
		}
		if len(values) > 0 {
			if err := tx.UpsertFieldValues(ctx, c.ID, values); err != nil {
				return err
			}
		}
		s.IsExtended = true
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		entry := &model.ChangeLogEntry{
			SlotID:      s.ID,
			UserID:      admin.ID,
			ChangeType:  model.ChangeFieldUpdate,
			FieldKeys:   []string{"is_extended"},
			OldValues:   map[string]string{"is_extended": "false"},
			NewValues:   map[string]string{"is_extended": "true"},
			Description: fmt.Sprintf("slot #%d extended %d day(s) into slot #%d", s.SlotNumber, extensionDays, c.SlotNumber),
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		}
		if err := tx.InsertChangeLog(ctx, entry); err != nil {
			return err
		}
		child = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(ctx, admin, child, model.ChangeStatusChange)
	return child, nil
}

// GetSlot returns a slot with its field values. Owner or admin only.
func (l *Lifecycle) GetSlot(ctx context.Context, actor Principal, slotID uint64) (*model.Slot, map[string]string, error) {
	s, err := l.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	if s.OwnerID != actor.ID && !actor.Admin() {
		return nil, nil, fmt.Errorf("%w: slot belongs to another user", ErrForbidden)
	}
	values, err := l.store.ListFieldValues(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	return s, values, nil
}

// ListSlotsByOwner lists an owner's slots. Users may list only their
// own; admins may list anyone's.
func (l *Lifecycle) ListSlotsByOwner(ctx context.Context, actor Principal, ownerID uint64, f SlotFilter) ([]model.Slot, error) {
	if ownerID != actor.ID && !actor.Admin() {
		return nil, fmt.Errorf("%w: cannot list another user's slots", ErrForbidden)
	}
	return l.store.ListSlotsByOwner(ctx, ownerID, f)
}

// GetChangeLog returns a slot's audit history, newest first. Owner or
// admin only.
func (l *Lifecycle) GetChangeLog(ctx context.Context, actor Principal, slotID uint64) ([]model.ChangeLogEntry, error) {
	s, err := l.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != actor.ID && !actor.Admin() {
		return nil, fmt.Errorf("%w: slot belongs to another user", ErrForbidden)
	}
	return l.store.ListChangeLog(ctx, slotID)
}

// GetFieldConfigs returns the enabled field configs in display order,
// for rendering edit forms. System-generated configs are filtered out
// because they never appear on forms.
func (l *Lifecycle) GetFieldConfigs(ctx context.Context) ([]model.FieldConfig, error) {
	configs, err := l.store.ListFieldConfigs(ctx, false)
	if err != nil {
		return nil, err
	}
	visible := make([]model.FieldConfig, 0, len(configs))
	for _, fc := range configs {
		if !fc.IsSystemGenerated {
			visible = append(visible, fc)
		}
	}
	return visible, nil
}

// transitionAllowed encodes the status graph for SetStatus. Approve,
// reject and fill have their own entry points; REFUNDED is terminal and
// REJECTED is a dead end.
func transitionAllowed(from, to string) bool {
	switch from {
	case model.StatusActive:
		return to == model.StatusPaused || to == model.StatusRefunded
	case model.StatusPaused:
		return to == model.StatusActive || to == model.StatusRefunded
	case model.StatusEmpty:
		return to == model.StatusRefunded
	default:
		return false
	}
}

func (l *Lifecycle) registry(ctx context.Context, tx Tx) (*Registry, error) {
	configs, err := tx.ListEnabledFieldConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(configs), nil
}

// prepare validates user input and merges in the derived fields,
// returning the full value set to persist.
func prepare(reg *Registry, fields map[string]string) (map[string]string, error) {
	if errs := reg.Validate(fields); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	values := make(map[string]string, len(fields)+3)
	for k, v := range fields {
		values[k] = strings.TrimSpace(v)
	}
	for k, v := range reg.Derive(values) {
		values[k] = v
	}
	return values, nil
}

// applyReserved mirrors the keyword/url/mid field values onto their
// slot columns when present in the value set.
func applyReserved(s *model.Slot, values map[string]string) {
	if v, ok := values[FieldKeyword]; ok {
		s.Keyword = v
	}
	if v, ok := values[FieldURL]; ok {
		s.URL = v
	}
	if v, ok := values[FieldMID]; ok {
		s.MID = v
	}
}

func (l *Lifecycle) emit(ctx context.Context, actor Principal, s *model.Slot, changeType string) {
	l.sink.SlotChanged(ctx, SlotChangedEvent{
		SlotID:     s.ID,
		OwnerID:    s.OwnerID,
		NewStatus:  s.Status,
		ChangeType: changeType,
		ActorID:    actor.ID,
		OccurredAt: l.now(),
	})
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
