package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotforge/slot-engine/internal/engine"
	"github.com/slotforge/slot-engine/internal/model"
	"github.com/slotforge/slot-engine/internal/ranking"
)

// SlotHandler serves the user-facing slot endpoints. All business rules
// live in the engine; handlers bind input, build the principal and map
// errors.
type SlotHandler struct {
	Lifecycle   *engine.Lifecycle
	Allocations *engine.AllocationManager
	Ranking     *ranking.Store
}

func NewSlotHandler(l *engine.Lifecycle, a *engine.AllocationManager, r *ranking.Store) *SlotHandler {
	return &SlotHandler{Lifecycle: l, Allocations: a, Ranking: r}
}

type slotResp struct {
	ID            uint64            `json:"id"`
	OwnerID       uint64            `json:"owner_id"`
	SlotNumber    uint64            `json:"slot_number"`
	Status        string            `json:"status"`
	DisplayStatus string            `json:"display_status"`
	IsEmpty       bool              `json:"is_empty"`
	Keyword       string            `json:"keyword,omitempty"`
	URL           string            `json:"url,omitempty"`
	MID           string            `json:"mid,omitempty"`
	ApprovedPrice *int64            `json:"approved_price,omitempty"`
	StartDate     *string           `json:"start_date,omitempty"`
	EndDate       *string           `json:"end_date,omitempty"`
	ParentSlotID  *uint64           `json:"parent_slot_id,omitempty"`
	IsExtended    bool              `json:"is_extended"`
	Fields        map[string]string `json:"fields,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toSlotResp(s *model.Slot, fields map[string]string) slotResp {
	resp := slotResp{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		SlotNumber:    s.SlotNumber,
		Status:        s.Status,
		DisplayStatus: engine.DisplayStatus(s, time.Now().UTC()),
		IsEmpty:       s.IsEmpty,
		Keyword:       s.Keyword,
		URL:           s.URL,
		MID:           s.MID,
		ApprovedPrice: s.ApprovedPrice,
		ParentSlotID:  s.ParentSlotID,
		IsExtended:    s.IsExtended,
		Fields:        fields,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.StartDate != nil {
		d := s.StartDate.Format("2006-01-02")
		resp.StartDate = &d
	}
	if s.EndDate != nil {
		d := s.EndDate.Format("2006-01-02")
		resp.EndDate = &d
	}
	return resp
}

// CreateSlot handles POST /v1/slots (normal mode only).
func (h *SlotHandler) CreateSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Fields    map[string]string `json:"fields"`
		StartDate string            `json:"start_date"`
		EndDate   string            `json:"end_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date"})
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date"})
	}
	slot, err := h.Lifecycle.Create(c.Request().Context(), p, body.Fields, start, end, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, toSlotResp(slot, nil))
}

// FillSlot handles POST /v1/slots/:id/fill and puts user data into an
// empty pre-provisioned slot.
func (h *SlotHandler) FillSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot, err := h.Lifecycle.FillEmpty(c.Request().Context(), p, id, body.Fields, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// UpdateSlotFields handles PATCH /v1/slots/:id/fields with a partial
// field map; unchanged values are ignored by the engine.
func (h *SlotHandler) UpdateSlotFields(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Fields) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "fields required"})
	}
	slot, err := h.Lifecycle.UpdateFields(c.Request().Context(), p, id, body.Fields, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// SetSlotStatus handles POST /v1/slots/:id/status for pause/resume.
// Refunds go through the admin endpoint but use the same transition.
func (h *SlotHandler) SetSlotStatus(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
	}
	slot, err := h.Lifecycle.SetStatus(c.Request().Context(), p, id, status, body.Reason, requestMeta(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, nil))
}

// GetSlot handles GET /v1/slots/:id, returning the slot with its field
// values.
func (h *SlotHandler) GetSlot(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	slot, fields, err := h.Lifecycle.GetSlot(c.Request().Context(), p, id)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(slot, fields))
}

// ListSlots handles GET /v1/slots?owner_id=&status=&is_empty=. Users
// may omit owner_id to list their own slots.
func (h *SlotHandler) ListSlots(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ownerID := p.ID
	if raw := c.QueryParam("owner_id"); raw != "" {
		ownerID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid owner_id"})
		}
	}
	var f engine.SlotFilter
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		up := strings.ToUpper(s)
		f.Status = &up
	}
	if s := c.QueryParam("is_empty"); s != "" {
		b := s == "true" || s == "1"
		f.IsEmpty = &b
	}
	slots, err := h.Lifecycle.ListSlotsByOwner(c.Request().Context(), p, ownerID, f)
	if err != nil {
		return engineError(c, err)
	}
	out := make([]slotResp, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResp(&slots[i], nil))
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

// GetSlotHistory handles GET /v1/slots/:id/history, returning the
// append-only change log newest first.
func (h *SlotHandler) GetSlotHistory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	entries, err := h.Lifecycle.GetChangeLog(c.Request().Context(), p, id)
	if err != nil {
		return engineError(c, err)
	}
	type entryResp struct {
		ID          uint64            `json:"id"`
		UserID      uint64            `json:"user_id"`
		ChangeType  string            `json:"change_type"`
		FieldKeys   []string          `json:"field_keys"`
		OldValues   map[string]string `json:"old_values"`
		NewValues   map[string]string `json:"new_values"`
		Description string            `json:"description"`
		CreatedAt   time.Time         `json:"created_at"`
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResp{
			ID: e.ID, UserID: e.UserID, ChangeType: e.ChangeType, FieldKeys: e.FieldKeys,
			OldValues: e.OldValues, NewValues: e.NewValues, Description: e.Description,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": out})
}

// GetFieldConfigs handles GET /v1/field-configs and returns the enabled
// user-editable schema for rendering forms.
func (h *SlotHandler) GetFieldConfigs(c echo.Context) error {
	configs, err := h.Lifecycle.GetFieldConfigs(c.Request().Context())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"field_configs": toFieldConfigResps(configs)})
}

// GetMyAllocation handles GET /v1/allocation for the calling owner.
func (h *SlotHandler) GetMyAllocation(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	a, err := h.Allocations.GetAllocation(c.Request().Context(), p, p.ID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toAllocResp(a))
}

// GetSlotRanking handles GET /v1/slots/:id/ranking, returning the
// ranking history collected for the slot's current keyword/url. The
// slot read doubles as the ownership check.
func (h *SlotHandler) GetSlotRanking(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	if _, _, err := h.Lifecycle.GetSlot(c.Request().Context(), p, id); err != nil {
		return engineError(c, err)
	}
	snaps, err := h.Ranking.History(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ranking lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ranking": snaps})
}
