package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slotforge/slot-engine/internal/model"
)

// fakeStore is an in-memory Store used by the engine tests. WithinTx
// snapshots the state up front and restores it when fn fails, so the
// rollback behavior the engine relies on holds here too. A mutex
// serializes transactions the way MySQL row locks and the sequence
// upsert do, so concurrent callers observe the same one-winner
// behavior as the real store.
type fakeStore struct {
	mu sync.Mutex

	slots   map[uint64]*model.Slot
	values  map[uint64]map[string]string
	logs    []model.ChangeLogEntry
	configs []model.FieldConfig
	seqs    map[uint64]uint64
	allocs  map[uint64]*model.Allocation // keyed by owner

	nextSlotID  uint64
	nextAllocID uint64
	nextLogID   uint64

	// failInsertSlotAfter makes InsertSlot fail once this many inserts
	// have succeeded over the store's lifetime. Zero disables it.
	failInsertSlotAfter int
	insertedSlots       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:   map[uint64]*model.Slot{},
		values:  map[uint64]map[string]string{},
		configs: testConfigs(),
		seqs:    map[uint64]uint64{},
		allocs:  map[uint64]*model.Allocation{},
	}
}

// testConfigs is the field schema every engine test runs against: the
// three reserved keys, an email and a number field, and the three
// system-generated URL fields.
func testConfigs() []model.FieldConfig {
	return []model.FieldConfig{
		{FieldKey: FieldKeyword, Label: "Keyword", FieldType: model.FieldTypeText, IsRequired: true, IsEnabled: true, DisplayOrder: 1},
		{FieldKey: FieldURL, Label: "Product URL", FieldType: model.FieldTypeURL, IsEnabled: true, DisplayOrder: 2},
		{FieldKey: FieldMID, Label: "Merchant ID", FieldType: model.FieldTypeText, IsEnabled: true, DisplayOrder: 3},
		{FieldKey: "contact_email", Label: "Contact Email", FieldType: model.FieldTypeEmail, IsEnabled: true, DisplayOrder: 4},
		{FieldKey: "daily_budget", Label: "Daily Budget", FieldType: model.FieldTypeNumber, IsEnabled: true, DisplayOrder: 5},
		{FieldKey: DerivedProductID, Label: "Product ID", FieldType: model.FieldTypeText, IsEnabled: true, IsSystemGenerated: true, DisplayOrder: 90},
		{FieldKey: DerivedItemID, Label: "Item ID", FieldType: model.FieldTypeText, IsEnabled: true, IsSystemGenerated: true, DisplayOrder: 91},
		{FieldKey: DerivedVendorItemID, Label: "Vendor Item ID", FieldType: model.FieldTypeText, IsEnabled: true, IsSystemGenerated: true, DisplayOrder: 92},
	}
}

// seedSlot inserts a slot directly, bypassing the engine, and returns it.
func (f *fakeStore) seedSlot(s model.Slot) *model.Slot {
	f.nextSlotID++
	s.ID = f.nextSlotID
	s.DeriveIsEmpty()
	if s.SlotNumber == 0 {
		f.seqs[s.OwnerID]++
		s.SlotNumber = f.seqs[s.OwnerID]
	}
	f.slots[s.ID] = &s
	return &s
}

func (f *fakeStore) seedValues(slotID uint64, values map[string]string) {
	m := map[string]string{}
	for k, v := range values {
		m[k] = v
	}
	f.values[slotID] = m
}

func (f *fakeStore) snapshot() *fakeStore {
	snap := &fakeStore{
		slots:       map[uint64]*model.Slot{},
		values:      map[uint64]map[string]string{},
		logs:        append([]model.ChangeLogEntry(nil), f.logs...),
		configs:     f.configs,
		seqs:        map[uint64]uint64{},
		allocs:      map[uint64]*model.Allocation{},
		nextSlotID:  f.nextSlotID,
		nextAllocID: f.nextAllocID,
		nextLogID:   f.nextLogID,
	}
	for id, s := range f.slots {
		cp := *s
		snap.slots[id] = &cp
	}
	for id, m := range f.values {
		cp := map[string]string{}
		for k, v := range m {
			cp[k] = v
		}
		snap.values[id] = cp
	}
	for owner, n := range f.seqs {
		snap.seqs[owner] = n
	}
	for owner, a := range f.allocs {
		cp := *a
		snap.allocs[owner] = &cp
	}
	return snap
}

func (f *fakeStore) restore(snap *fakeStore) {
	f.slots = snap.slots
	f.values = snap.values
	f.logs = snap.logs
	f.seqs = snap.seqs
	f.allocs = snap.allocs
	f.nextSlotID = snap.nextSlotID
	f.nextAllocID = snap.nextAllocID
	f.nextLogID = snap.nextLogID
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(&fakeTx{f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetSlot(_ context.Context, slotID uint64) (*model.Slot, error) {
	s, ok := f.slots[slotID]
	if !ok {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slotID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSlotsByOwner(_ context.Context, ownerID uint64, flt SlotFilter) ([]model.Slot, error) {
	var out []model.Slot
	for _, s := range f.slots {
		if s.OwnerID != ownerID {
			continue
		}
		if flt.Status != nil && s.Status != *flt.Status {
			continue
		}
		if flt.IsEmpty != nil && s.IsEmpty != *flt.IsEmpty {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (f *fakeStore) ListFieldValues(_ context.Context, slotID uint64) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.values[slotID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) ListChangeLog(_ context.Context, slotID uint64) ([]model.ChangeLogEntry, error) {
	var out []model.ChangeLogEntry
	for i := len(f.logs) - 1; i >= 0; i-- { // newest first
		if f.logs[i].SlotID == slotID {
			out = append(out, f.logs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListFieldConfigs(_ context.Context, includeDisabled bool) ([]model.FieldConfig, error) {
	var out []model.FieldConfig
	for _, fc := range f.configs {
		if fc.IsEnabled || includeDisabled {
			out = append(out, fc)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAllocationByOwner(_ context.Context, ownerID uint64) (*model.Allocation, error) {
	a, ok := f.allocs[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: allocation for owner %d", ErrNotFound, ownerID)
	}
	cp := *a
	return &cp, nil
}

type fakeTx struct{ f *fakeStore }

func (t *fakeTx) GetSlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error) {
	return t.f.GetSlot(ctx, slotID)
}

func (t *fakeTx) InsertSlot(_ context.Context, s *model.Slot) error {
	if t.f.failInsertSlotAfter > 0 && t.f.insertedSlots >= t.f.failInsertSlotAfter {
		return errors.New("insert failed")
	}
	t.f.insertedSlots++
	t.f.nextSlotID++
	s.ID = t.f.nextSlotID
	cp := *s
	t.f.slots[s.ID] = &cp
	return nil
}

func (t *fakeTx) UpdateSlot(_ context.Context, s *model.Slot) error {
	if _, ok := t.f.slots[s.ID]; !ok {
		return fmt.Errorf("%w: slot %d", ErrNotFound, s.ID)
	}
	cp := *s
	t.f.slots[s.ID] = &cp
	return nil
}

func (t *fakeTx) ListEnabledFieldConfigs(ctx context.Context) ([]model.FieldConfig, error) {
	return t.f.ListFieldConfigs(ctx, false)
}

func (t *fakeTx) ListFieldValues(ctx context.Context, slotID uint64) (map[string]string, error) {
	return t.f.ListFieldValues(ctx, slotID)
}

func (t *fakeTx) UpsertFieldValues(_ context.Context, slotID uint64, values map[string]string) error {
	m := t.f.values[slotID]
	if m == nil {
		m = map[string]string{}
		t.f.values[slotID] = m
	}
	for k, v := range values {
		m[k] = v
	}
	return nil
}

func (t *fakeTx) InsertChangeLog(_ context.Context, e *model.ChangeLogEntry) error {
	t.f.nextLogID++
	e.ID = t.f.nextLogID
	t.f.logs = append(t.f.logs, *e)
	return nil
}

func (t *fakeTx) NextSlotNumber(_ context.Context, ownerID uint64) (uint64, error) {
	t.f.seqs[ownerID]++
	return t.f.seqs[ownerID], nil
}

func (t *fakeTx) AddToAllocation(_ context.Context, ownerID uint64, count, workCount int, amount int64, description string) (*model.Allocation, error) {
	a, ok := t.f.allocs[ownerID]
	if !ok {
		t.f.nextAllocID++
		a = &model.Allocation{ID: t.f.nextAllocID, OwnerID: ownerID}
		t.f.allocs[ownerID] = a
	}
	a.AllocatedSlots += count
	a.WorkCount = workCount
	a.Amount = amount
	a.Description = description
	cp := *a
	return &cp, nil
}

func (t *fakeTx) IncrementUsedSlots(_ context.Context, allocationID uint64) error {
	for _, a := range t.f.allocs {
		if a.ID == allocationID {
			a.UsedSlots++
			return nil
		}
	}
	return fmt.Errorf("%w: allocation %d", ErrNotFound, allocationID)
}

// captureSink records emitted events for assertions.
type captureSink struct{ events []SlotChangedEvent }

func (c *captureSink) SlotChanged(_ context.Context, ev SlotChangedEvent) {
	c.events = append(c.events, ev)
}

// fakeInvalidator records invalidation calls and can be made to fail.
type fakeInvalidator struct {
	calls []uint64
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, slotID uint64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, slotID)
	return nil
}

var testNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestLifecycle(mode Mode) (*Lifecycle, *fakeStore, *captureSink, *fakeInvalidator) {
	st := newFakeStore()
	sink := &captureSink{}
	inv := &fakeInvalidator{}
	l := NewLifecycle(st, sink, inv, func() Mode { return mode })
	l.now = func() time.Time { return testNow }
	return l, st, sink, inv
}
