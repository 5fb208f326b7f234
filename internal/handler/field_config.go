package handler

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slotforge/slot-engine/internal/model"
	"github.com/slotforge/slot-engine/internal/repository"
)

// FieldConfigHandler serves the administrator schema surface: defining
// the custom fields slots carry. The engine reads this schema inside
// its own transactions; these endpoints write it.
type FieldConfigHandler struct {
	Configs *repository.FieldConfigRepo
}

func NewFieldConfigHandler(r *repository.FieldConfigRepo) *FieldConfigHandler {
	return &FieldConfigHandler{Configs: r}
}

type fieldConfigResp struct {
	ID                uint64 `json:"id"`
	FieldKey          string `json:"field_key"`
	Label             string `json:"label"`
	FieldType         string `json:"field_type"`
	IsRequired        bool   `json:"is_required"`
	IsEnabled         bool   `json:"is_enabled"`
	ShowInList        bool   `json:"show_in_list"`
	IsSearchable      bool   `json:"is_searchable"`
	ValidationRule    string `json:"validation_rule,omitempty"`
	Options           string `json:"options,omitempty"`
	DefaultValue      string `json:"default_value,omitempty"`
	DisplayOrder      int    `json:"display_order"`
	IsSystemGenerated bool   `json:"is_system_generated"`
}

func toFieldConfigResps(configs []model.FieldConfig) []fieldConfigResp {
	out := make([]fieldConfigResp, 0, len(configs))
	for _, fc := range configs {
		out = append(out, fieldConfigResp{
			ID: fc.ID, FieldKey: fc.FieldKey, Label: fc.Label, FieldType: fc.FieldType,
			IsRequired: fc.IsRequired, IsEnabled: fc.IsEnabled, ShowInList: fc.ShowInList,
			IsSearchable: fc.IsSearchable, ValidationRule: fc.ValidationRule, Options: fc.Options,
			DefaultValue: fc.DefaultValue, DisplayOrder: fc.DisplayOrder,
			IsSystemGenerated: fc.IsSystemGenerated,
		})
	}
	return out
}

type fieldConfigBody struct {
	FieldKey       string `json:"field_key"`
	Label          string `json:"label"`
	FieldType      string `json:"field_type"`
	IsRequired     bool   `json:"is_required"`
	IsEnabled      *bool  `json:"is_enabled"`
	ShowInList     bool   `json:"show_in_list"`
	IsSearchable   bool   `json:"is_searchable"`
	ValidationRule string `json:"validation_rule"`
	Options        string `json:"options"`
	DefaultValue   string `json:"default_value"`
	DisplayOrder   int    `json:"display_order"`
}

func validFieldType(t string) bool {
	switch t {
	case model.FieldTypeText, model.FieldTypeTextarea, model.FieldTypeURL,
		model.FieldTypeEmail, model.FieldTypeNumber:
		return true
	}
	return false
}

// ListFieldConfigs handles GET /v1/admin/field-configs, including
// disabled and system-generated entries.
func (h *FieldConfigHandler) ListFieldConfigs(c echo.Context) error {
	configs, err := h.Configs.List(c.Request().Context(), true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"field_configs": toFieldConfigResps(configs)})
}

// CreateFieldConfig handles POST /v1/admin/field-configs. System
// generated configs cannot be created over HTTP; the engine owns them.
func (h *FieldConfigHandler) CreateFieldConfig(c echo.Context) error {
	var body fieldConfigBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	key := strings.ToLower(strings.TrimSpace(body.FieldKey))
	if key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "field_key is required"})
	}
	fieldType := strings.ToUpper(strings.TrimSpace(body.FieldType))
	if !validFieldType(fieldType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field_type"})
	}
	enabled := true
	if body.IsEnabled != nil {
		enabled = *body.IsEnabled
	}
	fc := &model.FieldConfig{
		FieldKey:       key,
		Label:          strings.TrimSpace(body.Label),
		FieldType:      fieldType,
		IsRequired:     body.IsRequired,
		IsEnabled:      enabled,
		ShowInList:     body.ShowInList,
		IsSearchable:   body.IsSearchable,
		ValidationRule: body.ValidationRule,
		Options:        body.Options,
		DefaultValue:   body.DefaultValue,
		DisplayOrder:   body.DisplayOrder,
	}
	if err := h.Configs.Create(c.Request().Context(), fc); err != nil {
		if err == repository.ErrFieldKeyExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "field key already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toFieldConfigResps([]model.FieldConfig{*fc})[0])
}

// UpdateFieldConfig handles PUT /v1/admin/field-configs/:id. The field
// key is immutable once data references it, so it is not updatable.
func (h *FieldConfigHandler) UpdateFieldConfig(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field config id"})
	}
	var body fieldConfigBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	fieldType := strings.ToUpper(strings.TrimSpace(body.FieldType))
	if !validFieldType(fieldType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field_type"})
	}
	enabled := true
	if body.IsEnabled != nil {
		enabled = *body.IsEnabled
	}
	fc := &model.FieldConfig{
		ID:             id,
		Label:          strings.TrimSpace(body.Label),
		FieldType:      fieldType,
		IsRequired:     body.IsRequired,
		IsEnabled:      enabled,
		ShowInList:     body.ShowInList,
		IsSearchable:   body.IsSearchable,
		ValidationRule: body.ValidationRule,
		Options:        body.Options,
		DefaultValue:   body.DefaultValue,
		DisplayOrder:   body.DisplayOrder,
	}
	if err := h.Configs.Update(c.Request().Context(), fc); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "field config not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// SetFieldConfigEnabled handles PATCH /v1/admin/field-configs/:id/enabled.
func (h *FieldConfigHandler) SetFieldConfigEnabled(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field config id"})
	}
	var body struct {
		IsEnabled bool `json:"is_enabled"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Configs.SetEnabled(c.Request().Context(), id, body.IsEnabled); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "field config not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
