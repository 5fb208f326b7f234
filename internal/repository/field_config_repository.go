package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/slotforge/slot-engine/internal/model"
)

// ErrFieldKeyExists is returned when creating a field config whose key
// is already taken. Handlers should translate this into an HTTP 409.
var ErrFieldKeyExists = errors.New("field key already exists")

// FieldConfigRepo provides CRUD for administrator-defined field
// configs. The engine only reads enabled configs (inside its own
// transactions); the write methods back the admin endpoints.
type FieldConfigRepo struct {
	db *sql.DB
}

// NewFieldConfigRepo returns a FieldConfigRepo bound to the database.
func NewFieldConfigRepo(db *sql.DB) *FieldConfigRepo { return &FieldConfigRepo{db: db} }

const fieldConfigColumns = `id, field_key, label, field_type, is_required, is_enabled,
	show_in_list, is_searchable, validation_rule, options, default_value, display_order,
	is_system_generated, created_at, updated_at`

// ListEnabledTx returns enabled configs inside an engine transaction so
// a validation pass sees one consistent schema snapshot.
func (r *FieldConfigRepo) ListEnabledTx(ctx context.Context, tx *sql.Tx) ([]model.FieldConfig, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+fieldConfigColumns+` FROM field_configs WHERE is_enabled = 1 ORDER BY display_order, field_key`)
	if err != nil {
		return nil, err
	}
	return collectFieldConfigs(rows)
}

// List returns all configs, or only enabled ones, ordered for display.
func (r *FieldConfigRepo) List(ctx context.Context, includeDisabled bool) ([]model.FieldConfig, error) {
	q := `SELECT ` + fieldConfigColumns + ` FROM field_configs`
	if !includeDisabled {
		q += ` WHERE is_enabled = 1`
	}
	q += ` ORDER BY display_order, field_key`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectFieldConfigs(rows)
}

// Create inserts a new user-editable field config. The key is stored
// lower-cased; a duplicate key returns ErrFieldKeyExists.
func (r *FieldConfigRepo) Create(ctx context.Context, fc *model.FieldConfig) error {
	fc.FieldKey = strings.ToLower(strings.TrimSpace(fc.FieldKey))
	const q = `INSERT INTO field_configs
		(field_key, label, field_type, is_required, is_enabled, show_in_list, is_searchable,
		 validation_rule, options, default_value, display_order, is_system_generated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		fc.FieldKey, fc.Label, fc.FieldType, fc.IsRequired, fc.IsEnabled, fc.ShowInList,
		fc.IsSearchable, fc.ValidationRule, fc.Options, fc.DefaultValue, fc.DisplayOrder,
		fc.IsSystemGenerated)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrFieldKeyExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fc.ID = uint64(id)
	return nil
}

// Update rewrites the mutable attributes of a config. field_key is
// immutable once slot data references it, and system-generated configs
// belong to the engine, so both are excluded by the WHERE/SET shape;
// updating a system row reports sql.ErrNoRows like a missing one.
func (r *FieldConfigRepo) Update(ctx context.Context, fc *model.FieldConfig) error {
	const q = `UPDATE field_configs SET
		label = ?, field_type = ?, is_required = ?, is_enabled = ?, show_in_list = ?,
		is_searchable = ?, validation_rule = ?, options = ?, default_value = ?, display_order = ?
		WHERE id = ? AND is_system_generated = 0`
	res, err := r.db.ExecContext(ctx, q,
		fc.Label, fc.FieldType, fc.IsRequired, fc.IsEnabled, fc.ShowInList,
		fc.IsSearchable, fc.ValidationRule, fc.Options, fc.DefaultValue, fc.DisplayOrder,
		fc.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEnabled flips the enabled flag. Disabling a config hides the field
// from validation and forms without destroying stored values.
func (r *FieldConfigRepo) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE field_configs SET is_enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func collectFieldConfigs(rows *sql.Rows) ([]model.FieldConfig, error) {
	defer rows.Close()
	configs := make([]model.FieldConfig, 0)
	for rows.Next() {
		var fc model.FieldConfig
		if err := rows.Scan(
			&fc.ID, &fc.FieldKey, &fc.Label, &fc.FieldType, &fc.IsRequired, &fc.IsEnabled,
			&fc.ShowInList, &fc.IsSearchable, &fc.ValidationRule, &fc.Options, &fc.DefaultValue,
			&fc.DisplayOrder, &fc.IsSystemGenerated, &fc.CreatedAt, &fc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		configs = append(configs, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}
