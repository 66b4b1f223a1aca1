package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDate     FieldType = "date"
	FieldTypeFile     FieldType = "file"
)

// FormField defines one question on an admission form. Fields with a
// positive Score weight feed the application score.
type FormField struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	Type             FieldType `json:"type"`
	Required         bool      `json:"required"`
	Score            float64   `json:"score,omitempty"`
	RequiresDocument bool      `json:"requiresDocument,omitempty"`
	Options          []string  `json:"options,omitempty"`
}

// FormFields is the JSONB-persisted field schema of a form.
type FormFields []FormField

// Value marshals the schema to JSON for persistence.
func (f FormFields) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal form fields: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the schema.
func (f *FormFields) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FormFields", value)
	}
	if len(data) == 0 {
		*f = nil
		return nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("unmarshal form fields: %w", err)
	}
	return nil
}

// Form is a hall-scoped admission form whose schema drives scoring.
type Form struct {
	ID        string     `db:"id" json:"id"`
	HallID    string     `db:"hall_id" json:"hall_id"`
	Title     string     `db:"title" json:"title"`
	Session   string     `db:"session" json:"session"`
	Fields    FormFields `db:"fields" json:"fields"`
	Published bool       `db:"published" json:"published"`
	Deadline  *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
