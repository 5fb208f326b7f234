package model

import "time"

// Field types accepted for administrator-defined slot fields. TEXTAREA
// is validated like TEXT; the distinction only matters for rendering.
const (
	FieldTypeText     = "TEXT"
	FieldTypeTextarea = "TEXTAREA"
	FieldTypeURL      = "URL"
	FieldTypeEmail    = "EMAIL"
	FieldTypeNumber   = "NUMBER"
)

// FieldConfig is one administrator-defined schema entry describing a
// custom data field attached to slots. Rows with IsSystemGenerated set
// describe derived fields (e.g. IDs parsed out of a product URL); those
// are written by the engine only and are never accepted as user input.
//
// Fields:
//
//	ID                – primary key identifier.
//	FieldKey          – unique key, immutable once slot data references it.
//	Label             – human-readable name shown in forms.
//	FieldType         – one of the FieldType constants.
//	IsRequired        – whether users must supply a non-blank value.
//	IsEnabled         – disabled configs are skipped entirely.
//	ShowInList        – whether list views display this field.
//	IsSearchable      – whether search covers this field.
//	ValidationRule    – optional regex the value must match.
//	Options           – rendering options (select choices etc.), free-form.
//	DefaultValue      – value pre-filled into forms.
//	DisplayOrder      – sort order in forms and lists.
//	IsSystemGenerated – true for derived fields.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type FieldConfig struct {
	ID                uint64    // field_configs.id
	FieldKey          string    // field_configs.field_key
	Label             string    // field_configs.label
	FieldType         string    // field_configs.field_type
	IsRequired        bool      // field_configs.is_required
	IsEnabled         bool      // field_configs.is_enabled
	ShowInList        bool      // field_configs.show_in_list
	IsSearchable      bool      // field_configs.is_searchable
	ValidationRule    string    // field_configs.validation_rule
	Options           string    // field_configs.options
	DefaultValue      string    // field_configs.default_value
	DisplayOrder      int       // field_configs.display_order
	IsSystemGenerated bool      // field_configs.is_system_generated
	CreatedAt         time.Time // field_configs.created_at
	UpdatedAt         time.Time // field_configs.updated_at
}

// SlotFieldValue stores one custom field value for one slot. The
// (SlotID, FieldKey) pair is unique; saves upsert rather than append.
//
// Fields:
//
//	ID        – primary key identifier.
//	SlotID    – slot the value belongs to.
//	FieldKey  – references field_configs.field_key.
//	Value     – the stored value, always a string.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type SlotFieldValue struct {
	ID        uint64    // slot_field_values.id
	SlotID    uint64    // slot_field_values.slot_id
	FieldKey  string    // slot_field_values.field_key
	Value     string    // slot_field_values.value
	CreatedAt time.Time // slot_field_values.created_at
	UpdatedAt time.Time // slot_field_values.updated_at
}
