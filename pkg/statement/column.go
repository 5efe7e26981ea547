package statement

import (
	"fmt"

	"github.com/google/uuid"
)

// ColumnType enumerates the value types a custom column may hold.
type ColumnType string

const (
	ColumnText        ColumnType = "text"
	ColumnLongText    ColumnType = "long_text"
	ColumnNumber      ColumnType = "number"
	ColumnDate        ColumnType = "date"
	ColumnEnum        ColumnType = "enum"
	ColumnMultiSelect ColumnType = "multi_select"
	ColumnCheckbox    ColumnType = "checkbox"
	ColumnURL         ColumnType = "url"
)

// ColumnDefinition describes one user-defined column attached to a
// document's statement table. Name is unique per document. Position is the
// creation order, which fixes the column's place in exports.
type ColumnDefinition struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	Name         string     `json:"name"`
	Type         ColumnType `json:"column_type"`
	Options      []string   `json:"options,omitempty"`
	DefaultValue any        `json:"default_value,omitempty"`
	Position     int        `json:"position"`
}

// NewColumn creates a column definition with a fresh id.
func NewColumn(documentID, name string, columnType ColumnType) *ColumnDefinition {
	return &ColumnDefinition{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Name:       name,
		Type:       columnType,
	}
}

// Validate checks structural requirements: a non-empty name, a known type,
// and options present exactly when the type requires them.
func (c *ColumnDefinition) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: column name is required", ErrInvalidColumn)
	}
	switch c.Type {
	case ColumnText, ColumnLongText, ColumnNumber, ColumnDate,
		ColumnEnum, ColumnMultiSelect, ColumnCheckbox, ColumnURL:
	default:
		return fmt.Errorf("%w: unknown column type %q", ErrInvalidColumn, c.Type)
	}
	needsOptions := c.Type == ColumnEnum || c.Type == ColumnMultiSelect
	if needsOptions && len(c.Options) == 0 {
		return fmt.Errorf("%w: column %q of type %s requires options", ErrInvalidColumn, c.Name, c.Type)
	}
	if !needsOptions && len(c.Options) > 0 {
		return fmt.Errorf("%w: column %q of type %s does not take options", ErrInvalidColumn, c.Name, c.Type)
	}
	return nil
}

// Template is a reusable set of column definitions that can be applied to
// any document.
type Template struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Columns     []*ColumnDefinition `json:"columns"`
}

// NewTemplate creates a template with a fresh id.
func NewTemplate(name string, columns []*ColumnDefinition) *Template {
	return &Template{
		ID:      uuid.New().String(),
		Name:    name,
		Columns: columns,
	}
}
