package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/statext/pkg/document"
	"github.com/coolbeans/statext/pkg/statement"
	"github.com/coolbeans/statext/pkg/store"
)

const templatesFileName = "templates.json"

// statementSnapshot is the per-document statements.json payload. It
// carries the full lineage, superseded statements included, plus the
// group membership lists the display order depends on.
type statementSnapshot struct {
	DocumentID string                 `json:"document_id"`
	SavedAt    time.Time              `json:"saved_at"`
	Statements []*statement.Statement `json:"statements"`
	Groups     map[string][]string    `json:"groups,omitempty"`
}

// columnSnapshot is the per-document columns.json payload.
type columnSnapshot struct {
	DocumentID string                        `json:"document_id"`
	Columns    []*statement.ColumnDefinition `json:"columns"`
}

// templateSnapshot is the library-wide templates.json payload.
type templateSnapshot struct {
	Templates []*statement.Template `json:"templates"`
}

// SaveStatements persists a document's full statement lineage and group
// structure. The snapshot lists visible statements first in display
// order, then superseded ones.
func (lib *Library) SaveStatements(documentID string, statements []*statement.Statement, groups map[string][]string) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return fmt.Errorf("document not found: %s", documentID)
	}

	snap := statementSnapshot{
		DocumentID: documentID,
		SavedAt:    time.Now().UTC(),
		Statements: statements,
		Groups:     groups,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statements: %w", err)
	}
	return lib.writeDocumentFile(entry.StorageHash, statementsFileName, data)
}

// LoadStatements reads a document's persisted statement lineage.
func (lib *Library) LoadStatements(documentID string) ([]*statement.Statement, map[string][]string, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return nil, nil, fmt.Errorf("document not found: %s", documentID)
	}

	data, err := lib.readDocumentFile(entry.StorageHash, statementsFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read statements for %s: %w", documentID, err)
	}

	var snap statementSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("failed to parse statements for %s: %w", documentID, err)
	}
	return snap.Statements, snap.Groups, nil
}

// SaveColumns persists a document's custom column definitions.
func (lib *Library) SaveColumns(documentID string, columns []*statement.ColumnDefinition) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return fmt.Errorf("document not found: %s", documentID)
	}

	snap := columnSnapshot{DocumentID: documentID, Columns: columns}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	return lib.writeDocumentFile(entry.StorageHash, columnsFileName, data)
}

// LoadColumns reads a document's persisted column definitions. A
// missing columns file yields an empty slice, not an error.
func (lib *Library) LoadColumns(documentID string) ([]*statement.ColumnDefinition, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return nil, fmt.Errorf("document not found: %s", documentID)
	}

	data, err := lib.readDocumentFile(entry.StorageHash, columnsFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read columns for %s: %w", documentID, err)
	}

	var snap columnSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse columns for %s: %w", documentID, err)
	}
	return snap.Columns, nil
}

// SaveTemplates persists the library-wide column templates.
func (lib *Library) SaveTemplates(templates []*statement.Template) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	data, err := json.MarshalIndent(templateSnapshot{Templates: templates}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal templates: %w", err)
	}
	return os.WriteFile(filepath.Join(lib.path, templatesFileName), data, 0644)
}

// LoadTemplates reads the persisted column templates, if any.
func (lib *Library) LoadTemplates() ([]*statement.Template, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(lib.path, templatesFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	var snap templateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return snap.Templates, nil
}

// Persist snapshots one document's current state out of the store: its
// statement lineage, group structure and columns.
func (lib *Library) Persist(st *store.Store, documentID string) error {
	statements := st.List(documentID, true)
	if err := lib.SaveStatements(documentID, statements, st.Groups(documentID)); err != nil {
		return err
	}
	return lib.SaveColumns(documentID, st.Columns(documentID))
}

// Hydrate loads every persisted document back into the registry and
// store. Documents whose statement snapshot is missing or unreadable
// are registered but left without statements.
func (lib *Library) Hydrate(registry *document.Registry, st *store.Store) error {
	for _, entry := range lib.ListDocuments() {
		registry.Restore(entry.Document)

		statements, groups, err := lib.LoadStatements(entry.Document.ID)
		if err != nil {
			continue
		}
		columns, err := lib.LoadColumns(entry.Document.ID)
		if err != nil {
			return err
		}
		st.Restore(entry.Document.ID, statements, groups, columns)
	}

	templates, err := lib.LoadTemplates()
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		if err := st.SaveTemplate(tpl); err != nil {
			return fmt.Errorf("restoring template %s: %w", tpl.Name, err)
		}
	}
	return nil
}
