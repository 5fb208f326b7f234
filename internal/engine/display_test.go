package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slotforge/slot-engine/internal/model"
)

func TestDisplayStatus(t *testing.T) {
	tests := []struct {
		name string
		slot model.Slot
		want string
	}{
		{"active before start displays waiting",
			model.Slot{Status: model.StatusActive, StartDate: date(2024, 2, 10), EndDate: date(2024, 3, 1)},
			DisplayWaiting},
		{"active after end displays completed",
			model.Slot{Status: model.StatusActive, StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 20)},
			DisplayCompleted},
		{"active inside the window displays active",
			model.Slot{Status: model.StatusActive, StartDate: date(2024, 1, 1), EndDate: date(2024, 3, 1)},
			model.StatusActive},
		{"active starting today displays active",
			model.Slot{Status: model.StatusActive, StartDate: date(2024, 2, 1), EndDate: date(2024, 3, 1)},
			model.StatusActive},
		{"active ending today displays active",
			model.Slot{Status: model.StatusActive, StartDate: date(2024, 1, 1), EndDate: date(2024, 2, 1)},
			model.StatusActive},
		{"active without dates displays active",
			model.Slot{Status: model.StatusActive},
			model.StatusActive},
		{"paused is shown as stored",
			model.Slot{Status: model.StatusPaused, StartDate: date(2024, 2, 10)},
			model.StatusPaused},
		{"refunded is shown as stored",
			model.Slot{Status: model.StatusRefunded, EndDate: date(2024, 1, 1)},
			model.StatusRefunded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DisplayStatus(&tc.slot, testNow))
		})
	}
}
