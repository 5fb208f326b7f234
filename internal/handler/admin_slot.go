package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotforge/slot-engine/internal/engine"
	"github.com/slotforge/slot-engine/internal/model"
)

// AdminSlotHandler serves the administrator operations: approval flow,
// refunds, extensions and bulk provisioning. Role enforcement is
// doubled up: the router guards these routes with RequireRole and the
// engine re-checks the principal.
type AdminSlotHandler struct {
	Lifecycle   *engine.Lifecycle
	Allocations *engine.AllocationManager
}

func NewAdminSlotHandler(l *engine.Lifecycle, a *engine.AllocationManager) *AdminSlotHandler {
	return &AdminSlotHandler{Lifecycle: l, Allocations: a}
}

type allocResp struct {
	ID             uint64    `json:"id"`
	OwnerID        uint64    `json:"owner_id"`
	AllocatedSlots int       `json:"allocated_slots"`
	UsedSlots      int       `json:"used_slots"`
	WorkCount      int       `json:"work_count"`
	Amount         int64     `json:"amount"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAllocResp(a *model.Allocation) allocResp {
	return allocResp{
		ID: a.ID, OwnerID: a.OwnerID, AllocatedSlots: a.AllocatedSlots, UsedSlots: a.UsedSlots,
		WorkCount: a.WorkCount, Amount: a.Amount, Description: a.Description,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

// ApproveSlot handles POST /v1/admin/slots/:id/approve.
func (h *AdminSlotHandler) ApproveSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		ApprovedPrice *int64 `json:"approved_price"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot, err := h.Lifecycle.Approve(c.Request().Context(), p, id, body.ApprovedPrice, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// RejectSlot handles POST /v1/admin/slots/:id/reject.
func (h *AdminSlotHandler) RejectSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot, err := h.Lifecycle.Reject(c.Request().Context(), p, id, body.Reason, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// RefundSlot handles POST /v1/admin/slots/:id/refund. Refund is the
// terminal transition; a non-blank reason is mandatory.
func (h *AdminSlotHandler) RefundSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot, err := h.Lifecycle.SetStatus(c.Request().Context(), p, id, model.StatusRefunded, body.Reason, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// ExtendSlot handles POST /v1/admin/slots/:id/extend and creates the
// successor slot continuing the run.
func (h *AdminSlotHandler) ExtendSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		ExtensionDays int `json:"extension_days"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	child, err := h.Lifecycle.Extend(c.Request().Context(), p, id, body.ExtensionDays, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, toSlotResp(child, nil))
}

// ProvisionSlots handles POST /v1/admin/provision: bulk-creates empty
// slots for an owner and grows their allocation aggregate.
func (h *AdminSlotHandler) ProvisionSlots(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		OwnerID     uint64 `json:"owner_id"`
		Count       int    `json:"count"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		WorkCount   int    `json:"work_count"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OwnerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "owner_id is required"})
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date"})
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date"})
	}
	alloc, err := h.Allocations.Provision(c.Request().Context(), p, engine.ProvisionRequest{
		OwnerID:     body.OwnerID,
		Count:       body.Count,
		StartDate:   start,
		EndDate:     end,
		WorkCount:   body.WorkCount,
		Amount:      body.Amount,
		Description: body.Description,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, toAllocResp(alloc))
}

// GetOwnerAllocation handles GET /v1/admin/users/:id/allocation.
func (h *AdminSlotHandler) GetOwnerAllocation(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ownerID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	a, err := h.Allocations.GetAllocation(c.Request().Context(), p, ownerID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toAllocResp(a))
}
