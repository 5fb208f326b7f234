package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slotforge/slot-engine/internal/engine"
	"github.com/slotforge/slot-engine/internal/model"
)

// Store adapts the MySQL repositories to the engine's Store contract.
// WithinTx opens one transaction per engine operation; the repositories
// do the actual SQL. sql.ErrNoRows is translated to engine.ErrNotFound
// at this boundary so the engine never sees driver-level sentinels.
type Store struct {
	db           *sql.DB
	slots        *SlotRepo
	fieldConfigs *FieldConfigRepo
	fieldValues  *FieldValueRepo
	changeLogs   *ChangeLogRepo
	sequences    *SequenceRepo
	allocations  *AllocationRepo
}

// NewStore builds the engine store over the database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		slots:        NewSlotRepo(db),
		fieldConfigs: NewFieldConfigRepo(db),
		fieldValues:  NewFieldValueRepo(db),
		changeLogs:   NewChangeLogRepo(db),
		sequences:    NewSequenceRepo(db),
		allocations:  NewAllocationRepo(db),
	}
}

// WithinTx runs fn in one database transaction, rolling back on error
// or panic and committing otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbTx.Rollback()
		}
	}()
	if err := fn(&storeTx{store: s, tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) GetSlot(ctx context.Context, slotID uint64) (*model.Slot, error) {
	slot, err := s.slots.Get(ctx, slotID)
	return slot, notFound(err, "slot %d", slotID)
}

func (s *Store) ListSlotsByOwner(ctx context.Context, ownerID uint64, f engine.SlotFilter) ([]model.Slot, error) {
	return s.slots.ListByOwner(ctx, ownerID, f)
}

func (s *Store) ListFieldValues(ctx context.Context, slotID uint64) (map[string]string, error) {
	return s.fieldValues.ListBySlot(ctx, slotID)
}

func (s *Store) ListChangeLog(ctx context.Context, slotID uint64) ([]model.ChangeLogEntry, error) {
	return s.changeLogs.ListBySlot(ctx, slotID)
}

func (s *Store) ListFieldConfigs(ctx context.Context, includeDisabled bool) ([]model.FieldConfig, error) {
	return s.fieldConfigs.List(ctx, includeDisabled)
}

func (s *Store) GetAllocationByOwner(ctx context.Context, ownerID uint64) (*model.Allocation, error) {
	a, err := s.allocations.GetByOwner(ctx, ownerID)
	return a, notFound(err, "allocation for owner %d", ownerID)
}

// storeTx implements engine.Tx over a live *sql.Tx.
type storeTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *storeTx) GetSlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error) {
	slot, err := t.store.slots.GetForUpdateTx(ctx, t.tx, slotID)
	return slot, notFound(err, "slot %d", slotID)
}

func (t *storeTx) InsertSlot(ctx context.Context, s *model.Slot) error {
	return t.store.slots.InsertTx(ctx, t.tx, s)
}

func (t *storeTx) UpdateSlot(ctx context.Context, s *model.Slot) error {
	return t.store.slots.UpdateTx(ctx, t.tx, s)
}

func (t *storeTx) ListEnabledFieldConfigs(ctx context.Context) ([]model.FieldConfig, error) {
	return t.store.fieldConfigs.ListEnabledTx(ctx, t.tx)
}

func (t *storeTx) ListFieldValues(ctx context.Context, slotID uint64) (map[string]string, error) {
	return t.store.fieldValues.ListBySlotTx(ctx, t.tx, slotID)
}

func (t *storeTx) UpsertFieldValues(ctx context.Context, slotID uint64, values map[string]string) error {
	return t.store.fieldValues.UpsertTx(ctx, t.tx, slotID, values)
}

func (t *storeTx) InsertChangeLog(ctx context.Context, e *model.ChangeLogEntry) error {
	return t.store.changeLogs.InsertTx(ctx, t.tx, e)
}

func (t *storeTx) NextSlotNumber(ctx context.Context, ownerID uint64) (uint64, error) {
	return t.store.sequences.NextTx(ctx, t.tx, ownerID)
}

func (t *storeTx) AddToAllocation(ctx context.Context, ownerID uint64, count, workCount int, amount int64, description string) (*model.Allocation, error) {
	return t.store.allocations.AddTx(ctx, t.tx, ownerID, count, workCount, amount, description)
}

func (t *storeTx) IncrementUsedSlots(ctx context.Context, allocationID uint64) error {
	return t.store.allocations.IncrementUsedTx(ctx, t.tx, allocationID)
}

// notFound converts sql.ErrNoRows into engine.ErrNotFound with a
// description of what was being looked up; other errors pass through.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", engine.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
