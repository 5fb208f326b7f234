package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotforge/slot-engine/internal/model"
)

var (
	owner = Principal{ID: 1, Role: model.RoleUser}
	other = Principal{ID: 2, Role: model.RoleUser}
	admin = Principal{ID: 9, Role: model.RoleAdmin}
	meta  = RequestMeta{IP: "10.0.0.7", UserAgent: "test-agent"}
)

const coupangURL = "https://www.coupang.com/vp/products/12345?itemId=999&vendorItemId=888"

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending slot with derived fields", func(t *testing.T) {
		l, st, sink, _ := newTestLifecycle(ModeNormal)
		s, err := l.Create(ctx, owner, map[string]string{
			"keyword": "wireless mouse",
			"url":     coupangURL,
			"mid":     "M-77",
		}, date(2024, 2, 10), date(2024, 3, 10), meta)
		require.NoError(t, err)

		assert.Equal(t, model.StatusPending, s.Status)
		assert.Equal(t, uint64(1), s.SlotNumber)
		assert.False(t, s.IsEmpty)
		assert.Equal(t, "wireless mouse", s.Keyword)
		assert.Equal(t, coupangURL, s.URL)
		assert.Equal(t, "M-77", s.MID)

		values, err := st.ListFieldValues(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "12345", values[DerivedProductID])
		assert.Equal(t, "999", values[DerivedItemID])
		assert.Equal(t, "888", values[DerivedVendorItemID])

		// Creation is recorded by the row itself, not the change log.
		assert.Empty(t, st.logs)
		assert.Empty(t, sink.events)
	})

	t.Run("sequence numbers never repeat", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModeNormal)
		fields := map[string]string{"keyword": "k"}
		a, err := l.Create(ctx, owner, fields, nil, nil, meta)
		require.NoError(t, err)
		b, err := l.Create(ctx, owner, fields, nil, nil, meta)
		require.NoError(t, err)
		c, err := l.Create(ctx, other, fields, nil, nil, meta)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), a.SlotNumber)
		assert.Equal(t, uint64(2), b.SlotNumber)
		assert.Equal(t, uint64(1), c.SlotNumber) // counters are per owner
	})

	t.Run("invalid input creates nothing", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		_, err := l.Create(ctx, owner, map[string]string{"url": "not a url"}, nil, nil, meta)
		ve, ok := AsValidation(err)
		require.True(t, ok)
		msgs := fieldMessages(ve.Fields)
		assert.Contains(t, msgs, "keyword")
		assert.Contains(t, msgs, "url")
		assert.Empty(t, st.slots)
		assert.Zero(t, st.seqs[owner.ID]) // failed create burns no number
	})

	t.Run("posting derived keys is rejected", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModeNormal)
		_, err := l.Create(ctx, owner, map[string]string{"keyword": "k", DerivedProductID: "1"}, nil, nil, meta)
		_, ok := AsValidation(err)
		assert.True(t, ok)
	})

	t.Run("disabled in prealloc mode", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModePrealloc)
		_, err := l.Create(ctx, owner, map[string]string{"keyword": "k"}, nil, nil, meta)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestFillEmpty(t *testing.T) {
	ctx := context.Background()

	seed := func(st *fakeStore) *model.Slot {
		st.allocs[owner.ID] = &model.Allocation{ID: 1, OwnerID: owner.ID, AllocatedSlots: 3}
		st.nextAllocID = 1
		allocID := uint64(1)
		return st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusEmpty, AllocationID: &allocID})
	}

	t.Run("normal mode fills to pending", func(t *testing.T) {
		l, st, sink, _ := newTestLifecycle(ModeNormal)
		empty := seed(st)

		s, err := l.FillEmpty(ctx, owner, empty.ID, map[string]string{"keyword": "mouse", "url": coupangURL}, meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, s.Status)
		assert.False(t, s.IsEmpty)
		assert.Nil(t, s.ApprovedAt)
		assert.Equal(t, 1, st.allocs[owner.ID].UsedSlots)

		require.Len(t, st.logs, 1)
		entry := st.logs[0]
		assert.Equal(t, model.ChangeFillEmpty, entry.ChangeType)
		assert.Equal(t, owner.ID, entry.UserID)
		assert.Equal(t, "true", entry.OldValues["is_empty"])
		assert.Equal(t, model.StatusEmpty, entry.OldValues["status"])
		assert.Equal(t, model.StatusPending, entry.NewValues["status"])
		assert.Equal(t, "mouse", entry.NewValues["keyword"])
		assert.Equal(t, meta.IP, entry.IP)
		assert.Equal(t, meta.UserAgent, entry.UserAgent)

		require.Len(t, sink.events, 1)
		assert.Equal(t, model.ChangeFillEmpty, sink.events[0].ChangeType)
		assert.Equal(t, s.ID, sink.events[0].SlotID)
	})

	t.Run("prealloc mode fills straight to active", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModePrealloc)
		empty := seed(st)

		s, err := l.FillEmpty(ctx, owner, empty.ID, map[string]string{"keyword": "mouse"}, meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusActive, s.Status)
		require.NotNil(t, s.ApprovedAt)
		assert.Equal(t, testNow, *s.ApprovedAt)
	})

	t.Run("filling twice is a conflict", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		empty := seed(st)
		_, err := l.FillEmpty(ctx, owner, empty.ID, map[string]string{"keyword": "a"}, meta)
		require.NoError(t, err)
		_, err = l.FillEmpty(ctx, owner, empty.ID, map[string]string{"keyword": "b"}, meta)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 1, st.allocs[owner.ID].UsedSlots)
	})

	t.Run("only the owner may fill", func(t *testing.T) {
		l, st, sink, _ := newTestLifecycle(ModeNormal)
		empty := seed(st)
		_, err := l.FillEmpty(ctx, other, empty.ID, map[string]string{"keyword": "a"}, meta)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Empty(t, sink.events)
	})
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()

	seed := func(st *fakeStore, status string) *model.Slot {
		s := st.seedSlot(model.Slot{
			OwnerID: owner.ID, Status: status,
			Keyword: "mouse", URL: "https://www.coupang.com/vp/products/111", MID: "M-1",
		})
		st.seedValues(s.ID, map[string]string{
			"keyword": "mouse", "url": "https://www.coupang.com/vp/products/111",
			"mid": "M-1", DerivedProductID: "111",
		})
		return s
	}

	t.Run("changed keys land in one batched entry", func(t *testing.T) {
		l, st, sink, inv := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)

		got, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{
			"keyword": "gaming mouse",
			"mid":     "M-2",
			"url":     "https://www.coupang.com/vp/products/111", // unchanged
		}, meta)
		require.NoError(t, err)
		assert.Equal(t, "gaming mouse", got.Keyword)
		assert.Equal(t, "M-2", got.MID)

		require.Len(t, st.logs, 1)
		entry := st.logs[0]
		assert.Equal(t, model.ChangeFieldUpdate, entry.ChangeType)
		assert.Equal(t, []string{"keyword", "mid"}, entry.FieldKeys)
		assert.Equal(t, "mouse", entry.OldValues["keyword"])
		assert.Equal(t, "gaming mouse", entry.NewValues["keyword"])
		assert.Equal(t, "M-1", entry.OldValues["mid"])
		assert.Equal(t, "M-2", entry.NewValues["mid"])

		// keyword changed, so the ranking history was invalidated
		assert.Equal(t, []uint64{s.ID}, inv.calls)
		require.Len(t, sink.events, 1)
	})

	t.Run("no-op update writes nothing", func(t *testing.T) {
		l, st, sink, inv := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"keyword": "mouse"}, meta)
		require.NoError(t, err)
		assert.Empty(t, st.logs)
		assert.Empty(t, sink.events)
		assert.Empty(t, inv.calls)
	})

	t.Run("url change refreshes derived fields", func(t *testing.T) {
		l, st, _, inv := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusPending)

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"url": coupangURL}, meta)
		require.NoError(t, err)

		values, _ := st.ListFieldValues(ctx, s.ID)
		assert.Equal(t, "12345", values[DerivedProductID])
		assert.Equal(t, "999", values[DerivedItemID])
		assert.Equal(t, "888", values[DerivedVendorItemID])
		assert.Equal(t, []uint64{s.ID}, inv.calls)

		require.Len(t, st.logs, 1)
		assert.Contains(t, st.logs[0].FieldKeys, DerivedItemID)
	})

	t.Run("invalidation failure aborts the update", func(t *testing.T) {
		l, st, sink, inv := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)
		inv.err = errors.New("redis down")

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"keyword": "new"}, meta)
		require.Error(t, err)

		// rolled back: value, column and log are all untouched
		values, _ := st.ListFieldValues(ctx, s.ID)
		assert.Equal(t, "mouse", values["keyword"])
		reloaded, _ := st.GetSlot(ctx, s.ID)
		assert.Equal(t, "mouse", reloaded.Keyword)
		assert.Empty(t, st.logs)
		assert.Empty(t, sink.events)
	})

	t.Run("terminal slots are not editable", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusRefunded)
		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"keyword": "x"}, meta)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("admin may edit another user's slot", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)
		_, err := l.UpdateFields(ctx, admin, s.ID, map[string]string{"mid": "M-9"}, meta)
		assert.NoError(t, err)
		_, err = l.UpdateFields(ctx, other, s.ID, map[string]string{"mid": "M-10"}, meta)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("partial update may omit required fields", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)

		got, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"mid": "M-8"}, meta)
		require.NoError(t, err)
		assert.Equal(t, "M-8", got.MID)
		assert.Equal(t, "mouse", got.Keyword) // stored value satisfies the schema

		require.Len(t, st.logs, 1)
		assert.Equal(t, []string{"mid"}, st.logs[0].FieldKeys)
	})

	t.Run("blanking a required field still fails", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"keyword": "   "}, meta)
		ve, ok := AsValidation(err)
		require.True(t, ok)
		assert.Contains(t, fieldMessages(ve.Fields), "keyword")
		assert.Empty(t, st.logs)
	})

	t.Run("stored derived values do not read as input", func(t *testing.T) {
		// seed already stores url_product_id; only derived keys the
		// caller actually posts are rejected.
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, model.StatusActive)

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"mid": "M-11"}, meta)
		assert.NoError(t, err)
		_, err = l.UpdateFields(ctx, owner, s.ID, map[string]string{DerivedProductID: "7"}, meta)
		_, ok := AsValidation(err)
		assert.True(t, ok)
	})
}

func TestApproveAndReject(t *testing.T) {
	ctx := context.Background()

	t.Run("approve stamps admin, time and price", func(t *testing.T) {
		l, st, sink, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPending})
		price := int64(50000)

		got, err := l.Approve(ctx, admin, s.ID, &price, meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusActive, got.Status)
		require.NotNil(t, got.ApprovedAt)
		assert.Equal(t, testNow, *got.ApprovedAt)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, admin.ID, *got.ApprovedBy)
		require.NotNil(t, got.ApprovedPrice)
		assert.Equal(t, price, *got.ApprovedPrice)

		require.Len(t, st.logs, 1)
		assert.Equal(t, model.ChangeApprove, st.logs[0].ChangeType)
		require.Len(t, sink.events, 1)
		assert.Equal(t, model.StatusActive, sink.events[0].NewStatus)
	})

	t.Run("approve requires admin and pending", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPending})
		_, err := l.Approve(ctx, owner, s.ID, nil, meta)
		assert.ErrorIs(t, err, ErrForbidden)

		active := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusActive})
		_, err = l.Approve(ctx, admin, active.ID, nil, meta)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("reject records the reason", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPending})

		got, err := l.Reject(ctx, admin, s.ID, "  duplicate listing  ", meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejected, got.Status)
		assert.Equal(t, "duplicate listing", got.RejectionReason)
		require.Len(t, st.logs, 1)
		assert.Equal(t, model.ChangeReject, st.logs[0].ChangeType)
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("owner pauses and resumes", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusActive})

		got, err := l.SetStatus(ctx, owner, s.ID, model.StatusPaused, "", meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaused, got.Status)

		got, err = l.SetStatus(ctx, owner, s.ID, model.StatusActive, "", meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusActive, got.Status)

		require.Len(t, st.logs, 2)
		assert.Equal(t, model.ChangeStatusChange, st.logs[0].ChangeType)
	})

	t.Run("refund is admin only with a reason", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusActive})

		_, err := l.SetStatus(ctx, owner, s.ID, model.StatusRefunded, "why", meta)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = l.SetStatus(ctx, admin, s.ID, model.StatusRefunded, "  ", meta)
		_, ok := AsValidation(err)
		assert.True(t, ok)

		got, err := l.SetStatus(ctx, admin, s.ID, model.StatusRefunded, "customer cancelled", meta)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRefunded, got.Status)
		assert.Equal(t, "customer cancelled", got.RefundReason)
		require.NotNil(t, got.RefundedAt)
		assert.Equal(t, testNow, *got.RefundedAt)
		require.Len(t, st.logs, 1)
		assert.Equal(t, model.ChangeRefund, st.logs[0].ChangeType)
	})

	t.Run("refund reachable from empty, active and paused", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		for _, status := range []string{model.StatusEmpty, model.StatusActive, model.StatusPaused} {
			s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: status})
			got, err := l.SetStatus(ctx, admin, s.ID, model.StatusRefunded, "r", meta)
			require.NoError(t, err, status)
			assert.Equal(t, model.StatusRefunded, got.Status)
		}
	})

	t.Run("refunded is terminal", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusRefunded})
		for _, to := range []string{model.StatusActive, model.StatusPaused, model.StatusPending, model.StatusEmpty} {
			_, err := l.SetStatus(ctx, admin, s.ID, to, "r", meta)
			assert.ErrorIs(t, err, ErrConflict, to)
		}
	})

	t.Run("rejected and pending have no generic transitions", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		rejected := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusRejected})
		_, err := l.SetStatus(ctx, admin, rejected.ID, model.StatusRefunded, "r", meta)
		assert.ErrorIs(t, err, ErrConflict)

		pending := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPending})
		_, err = l.SetStatus(ctx, admin, pending.ID, model.StatusActive, "", meta)
		assert.ErrorIs(t, err, ErrConflict) // activation goes through Approve
	})
}

func TestExtend(t *testing.T) {
	ctx := context.Background()

	seed := func(st *fakeStore, end *time.Time) *model.Slot {
		s := st.seedSlot(model.Slot{
			OwnerID: owner.ID, Status: model.StatusActive,
			Keyword: "mouse", URL: coupangURL, MID: "M-1",
			StartDate: date(2024, 1, 1), EndDate: end,
		})
		st.seedValues(s.ID, map[string]string{"keyword": "mouse", "url": coupangURL})
		return s
	}

	t.Run("expired run restarts today", func(t *testing.T) {
		// today is 2024-02-01; the original ended 2024-01-10
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, date(2024, 1, 10))

		child, err := l.Extend(ctx, admin, s.ID, 10, meta)
		require.NoError(t, err)
		assert.Equal(t, *date(2024, 2, 1), *child.StartDate)
		assert.Equal(t, *date(2024, 2, 10), *child.EndDate)
		assert.Equal(t, model.StatusActive, child.Status)
		require.NotNil(t, child.ParentSlotID)
		assert.Equal(t, s.ID, *child.ParentSlotID)
		require.NotNil(t, child.ApprovedBy)
		assert.Equal(t, admin.ID, *child.ApprovedBy)
		assert.Equal(t, "mouse", child.Keyword)
		assert.Equal(t, uint64(2), child.SlotNumber)

		// field values copied over
		values, _ := st.ListFieldValues(ctx, child.ID)
		assert.Equal(t, "mouse", values["keyword"])

		orig, _ := st.GetSlot(ctx, s.ID)
		assert.True(t, orig.IsExtended)
		assert.Equal(t, *date(2024, 1, 10), *orig.EndDate) // untouched

		require.Len(t, st.logs, 1)
		assert.Equal(t, s.ID, st.logs[0].SlotID)
		assert.Equal(t, []string{"is_extended"}, st.logs[0].FieldKeys)
	})

	t.Run("running slot extends past its end date", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, date(2024, 3, 1))

		child, err := l.Extend(ctx, admin, s.ID, 7, meta)
		require.NoError(t, err)
		assert.Equal(t, *date(2024, 3, 2), *child.StartDate)
		assert.Equal(t, *date(2024, 3, 8), *child.EndDate)
	})

	t.Run("a slot extends exactly once", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := seed(st, date(2024, 3, 1))
		_, err := l.Extend(ctx, admin, s.ID, 7, meta)
		require.NoError(t, err)
		_, err = l.Extend(ctx, admin, s.ID, 7, meta)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("preconditions", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)

		noEnd := seed(st, nil)
		_, err := l.Extend(ctx, admin, noEnd.ID, 7, meta)
		assert.ErrorIs(t, err, ErrConflict)

		paused := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPaused, EndDate: date(2024, 3, 1)})
		_, err = l.Extend(ctx, admin, paused.ID, 7, meta)
		assert.ErrorIs(t, err, ErrConflict)

		active := seed(st, date(2024, 3, 1))
		_, err = l.Extend(ctx, owner, active.ID, 7, meta)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = l.Extend(ctx, admin, active.ID, 0, meta)
		_, ok := AsValidation(err)
		assert.True(t, ok)
	})
}

func TestReads(t *testing.T) {
	ctx := context.Background()

	t.Run("get and history are owner or admin only", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusActive})

		_, _, err := l.GetSlot(ctx, other, s.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		_, _, err = l.GetSlot(ctx, admin, s.ID)
		assert.NoError(t, err)

		_, err = l.GetChangeLog(ctx, other, s.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = l.ListSlotsByOwner(ctx, other, owner.ID, SlotFilter{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing slot is not found", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModeNormal)
		_, _, err := l.GetSlot(ctx, owner, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("history is newest first and append only", func(t *testing.T) {
		l, st, _, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusActive})
		st.seedValues(s.ID, map[string]string{"keyword": "a"})

		_, err := l.UpdateFields(ctx, owner, s.ID, map[string]string{"keyword": "b"}, meta)
		require.NoError(t, err)
		_, err = l.SetStatus(ctx, owner, s.ID, model.StatusPaused, "", meta)
		require.NoError(t, err)

		entries, err := l.GetChangeLog(ctx, owner, s.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, model.ChangeStatusChange, entries[0].ChangeType)
		assert.Equal(t, model.ChangeFieldUpdate, entries[1].ChangeType)
	})

	t.Run("field configs hide system generated entries", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModeNormal)
		configs, err := l.GetFieldConfigs(ctx)
		require.NoError(t, err)
		for _, fc := range configs {
			assert.False(t, fc.IsSystemGenerated, fc.FieldKey)
		}
		assert.Len(t, configs, 5)
	})
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent creates never share a sequence number", func(t *testing.T) {
		l, _, _, _ := newTestLifecycle(ModeNormal)
		const workers = 25

		nums := make(chan uint64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := l.Create(ctx, owner, map[string]string{"keyword": "k"}, nil, nil, meta)
				if assert.NoError(t, err) {
					nums <- s.SlotNumber
				}
			}()
		}
		wg.Wait()
		close(nums)

		seen := map[uint64]bool{}
		for n := range nums {
			assert.False(t, seen[n], "slot number %d issued twice", n)
			seen[n] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("racing approvals have exactly one winner", func(t *testing.T) {
		l, st, sink, _ := newTestLifecycle(ModeNormal)
		s := st.seedSlot(model.Slot{OwnerID: owner.ID, Status: model.StatusPending})
		const workers = 8

		errs := make(chan error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Approve(ctx, admin, s.ID, nil, meta)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var won, lost int
		for err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, ErrConflict)
			lost++
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, workers-1, lost)
		require.Len(t, st.logs, 1)
		assert.Len(t, sink.events, 1)
	})
}
