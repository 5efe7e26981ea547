package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/coolbeans/statext/pkg/statement"
)

// AddColumn registers a custom column definition for a document. Column
// names are unique per document; the column's Position is its creation
// order, which fixes its place in exports.
func (s *Store) AddColumn(col *statement.ColumnDefinition) error {
	if col == nil {
		return fmt.Errorf("%w: nil column", statement.ErrInvalidColumn)
	}
	if err := col.Validate(); err != nil {
		return err
	}
	if col.DocumentID == "" {
		return fmt.Errorf("%w: column %q has no document", statement.ErrInvalidColumn, col.Name)
	}

	t, _ := s.table(col.DocumentID, true)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.columnByName(col.Name) != nil {
		return fmt.Errorf("%w: column %q already defined", statement.ErrInvalidColumn, col.Name)
	}
	col.Position = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// Columns returns a document's column definitions in creation order.
func (s *Store) Columns(documentID string) []*statement.ColumnDefinition {
	t, ok := s.table(documentID, false)
	if !ok {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*statement.ColumnDefinition, len(t.columns))
	copy(out, t.columns)
	return out
}

// DeleteColumn removes a column definition from a document. Statement
// custom-field values under the column's name are left in place; they
// simply stop exporting.
func (s *Store) DeleteColumn(documentID, columnID string) error {
	t, ok := s.table(documentID, false)
	if !ok {
		return fmt.Errorf("column %s: %w", columnID, statement.ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, col := range t.columns {
		if col.ID == columnID {
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			for j, remaining := range t.columns {
				remaining.Position = j
			}
			return nil
		}
	}
	return fmt.Errorf("column %s: %w", columnID, statement.ErrNotFound)
}

// SaveTemplate stores a reusable column template.
func (s *Store) SaveTemplate(tpl *statement.Template) error {
	if tpl == nil || tpl.Name == "" {
		return fmt.Errorf("%w: template requires a name", statement.ErrInvalidColumn)
	}
	for _, col := range tpl.Columns {
		if col.Name == "" {
			return fmt.Errorf("%w: template %q has an unnamed column", statement.ErrInvalidColumn, tpl.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	if _, exists := s.templates[tpl.ID]; !exists {
		s.templateSeq = append(s.templateSeq, tpl.ID)
	}
	s.templates[tpl.ID] = tpl
	return nil
}

// Templates returns all saved templates in creation order.
func (s *Store) Templates() []*statement.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*statement.Template, 0, len(s.templateSeq))
	for _, id := range s.templateSeq {
		out = append(out, s.templates[id])
	}
	return out
}

// ApplyTemplate clones a template's columns onto a document with fresh
// column ids. Columns whose names already exist on the document are
// skipped. Returns the number of columns added.
func (s *Store) ApplyTemplate(templateID, documentID string) (int, error) {
	s.mu.RLock()
	tpl, ok := s.templates[templateID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("template %s: %w", templateID, statement.ErrNotFound)
	}

	added := 0
	for _, col := range tpl.Columns {
		clone := *col
		clone.ID = uuid.New().String()
		clone.DocumentID = documentID
		clone.Options = append([]string(nil), col.Options...)
		if err := s.AddColumn(&clone); err != nil {
			// Duplicate names are expected when re-applying a template.
			continue
		}
		added++
	}
	return added, nil
}
