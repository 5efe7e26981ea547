// Package store owns the authoritative statement table per document: the
// identity of every statement, the document-wide display order,
// supersession state, the custom column registry, and column templates.
// All mutating operations on one document are serialized by a per-document
// lock, so every operation is atomic with respect to readers.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coolbeans/statext/pkg/metrics"
	"github.com/coolbeans/statext/pkg/statement"
)

// Store holds statement tables for any number of documents.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*docTable
	owners map[string]string // statement id -> document id

	templates   map[string]*statement.Template
	templateSeq []string // template ids in creation order

	strict  bool
	metrics *metrics.Metrics
}

// docTable is the per-document table. Its lock serializes all mutating
// operations on the document.
type docTable struct {
	mu         sync.RWMutex
	statements map[string]*statement.Statement
	order      []string // visible statement ids in display order
	columns    []*statement.ColumnDefinition
	groups     map[string][]string // group parent id -> member ids
}

// Option configures a Store.
type Option func(*Store)

// WithStrictColumns makes UpdateCustomFields reject keys that have no
// matching column definition. The default is lenient: unknown keys are
// accepted to support ad hoc fields.
func WithStrictColumns() Option {
	return func(s *Store) { s.strict = true }
}

// WithMetrics attaches operation metrics to the store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables:    make(map[string]*docTable),
		owners:    make(map[string]string),
		templates: make(map[string]*statement.Template),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether unknown custom-field keys are rejected.
func (s *Store) Strict() bool {
	return s.strict
}

// table returns the docTable for a document, creating it when create is
// set.
func (s *Store) table(documentID string, create bool) (*docTable, bool) {
	s.mu.RLock()
	t, ok := s.tables[documentID]
	s.mu.RUnlock()
	if ok || !create {
		return t, ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.tables[documentID]; ok {
		return t, true
	}
	t = &docTable{
		statements: make(map[string]*statement.Statement),
		groups:     make(map[string][]string),
	}
	s.tables[documentID] = t
	return t, true
}

// Populate installs the full statement set for a document in the given
// order, replacing any previous table contents. The new set becomes
// visible atomically; readers never observe a partially populated table.
func (s *Store) Populate(documentID string, statements []*statement.Statement) {
	t, _ := s.table(documentID, true)

	t.mu.Lock()
	old := make([]string, 0, len(t.statements))
	for id := range t.statements {
		old = append(old, id)
	}

	t.statements = make(map[string]*statement.Statement, len(statements))
	t.order = make([]string, 0, len(statements))
	t.groups = make(map[string][]string)
	for i, st := range statements {
		st.OrderIndex = i
		t.statements[st.ID] = st
		t.order = append(t.order, st.ID)
	}
	t.mu.Unlock()

	s.mu.Lock()
	for _, id := range old {
		delete(s.owners, id)
	}
	for _, st := range statements {
		s.owners[st.ID] = documentID
	}
	s.mu.Unlock()

	s.updateVisibleGauge()
}

// Restore installs a previously persisted table for a document:
// statements in snapshot order (superseded ones flagged on the
// statement itself), group membership lists, and column definitions.
// Visible display order is the snapshot order of the non-superseded
// statements.
func (s *Store) Restore(documentID string, statements []*statement.Statement, groups map[string][]string, columns []*statement.ColumnDefinition) {
	t, _ := s.table(documentID, true)

	t.mu.Lock()
	old := make([]string, 0, len(t.statements))
	for id := range t.statements {
		old = append(old, id)
	}

	t.statements = make(map[string]*statement.Statement, len(statements))
	t.order = make([]string, 0, len(statements))
	t.groups = make(map[string][]string, len(groups))
	for parent, members := range groups {
		t.groups[parent] = append([]string(nil), members...)
	}
	for _, st := range statements {
		t.statements[st.ID] = st
		if !st.IsSuperseded {
			t.order = append(t.order, st.ID)
		}
	}
	t.renumber()
	t.columns = append([]*statement.ColumnDefinition(nil), columns...)
	t.mu.Unlock()

	s.mu.Lock()
	for _, id := range old {
		delete(s.owners, id)
	}
	for _, st := range statements {
		s.owners[st.ID] = documentID
	}
	s.mu.Unlock()

	s.updateVisibleGauge()
}

// Groups returns a copy of the document's group membership lists.
func (s *Store) Groups(documentID string) map[string][]string {
	t, ok := s.table(documentID, false)
	if !ok {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]string, len(t.groups))
	for parent, members := range t.groups {
		out[parent] = append([]string(nil), members...)
	}
	return out
}

// Drop removes a document's table entirely, including superseded
// statements and column definitions.
func (s *Store) Drop(documentID string) {
	s.mu.Lock()
	t, ok := s.tables[documentID]
	if ok {
		delete(s.tables, documentID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	ids := make([]string, 0, len(t.statements))
	for id := range t.statements {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	s.mu.Lock()
	for _, id := range ids {
		delete(s.owners, id)
	}
	s.mu.Unlock()

	s.updateVisibleGauge()
}

// DocumentOf returns the owning document of a statement id.
func (s *Store) DocumentOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.owners[id]
	return docID, ok
}

// List returns the document's non-superseded statements in display order.
// With includeSuperseded set, superseded statements follow the visible
// ones, ordered by creation time, for lineage and audit views.
// Returned statements are clones; mutating them does not touch the store.
func (s *Store) List(documentID string, includeSuperseded bool) []*statement.Statement {
	t, ok := s.table(documentID, false)
	if !ok {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*statement.Statement, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.statements[id].Clone())
	}

	if includeSuperseded {
		var hidden []*statement.Statement
		for _, st := range t.statements {
			if st.IsSuperseded {
				hidden = append(hidden, st.Clone())
			}
		}
		sort.Slice(hidden, func(i, j int) bool {
			if hidden[i].CreatedAt.Equal(hidden[j].CreatedAt) {
				return hidden[i].ID < hidden[j].ID
			}
			return hidden[i].CreatedAt.Before(hidden[j].CreatedAt)
		})
		out = append(out, hidden...)
	}
	return out
}

// Get returns a clone of a single statement, superseded or not.
func (s *Store) Get(id string) (*statement.Statement, error) {
	docID, ok := s.DocumentOf(id)
	if !ok {
		return nil, fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	t, _ := s.table(docID, false)

	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statements[id]
	if !ok {
		return nil, fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	return st.Clone(), nil
}

// UpdateCustomFields merges the supplied keys into the statement's custom
// fields, replace-by-key. In strict mode every key must name a defined
// column for the statement's document.
func (s *Store) UpdateCustomFields(id string, fields map[string]any) error {
	docID, ok := s.DocumentOf(id)
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	t, _ := s.table(docID, false)

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statements[id]
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}

	if s.strict {
		for key := range fields {
			if t.columnByName(key) == nil {
				return fmt.Errorf("%w: no column named %q", statement.ErrInvalidColumn, key)
			}
		}
	}

	if st.CustomFields == nil {
		st.CustomFields = make(map[string]any, len(fields))
	}
	for key, value := range fields {
		st.CustomFields[key] = value
	}
	return nil
}

// RenameSection updates a statement's section reference in place. Section
// renames are one of the few permitted in-place mutations.
func (s *Store) RenameSection(id string, sectionRef string) error {
	docID, ok := s.DocumentOf(id)
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	t, _ := s.table(docID, false)

	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statements[id]
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	st.SectionRef = sectionRef
	return nil
}

// Reorder moves a visible statement to newIndex within its document's
// display order, shifting everything between the old and new position.
// Moving a grouped statement outside its group's contiguous block
// detaches it from the group.
func (s *Store) Reorder(id string, newIndex int) error {
	docID, ok := s.DocumentOf(id)
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	t, _ := s.table(docID, false)

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statements[id]
	if !ok || st.IsSuperseded {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	if newIndex < 0 || newIndex >= len(t.order) {
		return fmt.Errorf("%w: index %d outside [0, %d]", statement.ErrInvalidRange, newIndex, len(t.order)-1)
	}

	oldIndex := t.indexOf(id)
	if oldIndex == newIndex {
		return nil
	}

	if parent := t.groupOf(id); parent != "" {
		start, end := t.groupBlock(parent)
		if newIndex < start+1 || newIndex > end {
			// Moving out of the group's contiguous block detaches the
			// statement from the group.
			t.detachMember(parent, id)
		} else {
			// Moving within the block reorders the membership list,
			// which owns intra-group ordering.
			t.detachMember(parent, id)
			t.spliceMembers(parent, newIndex-start-1, id)
		}
	}

	t.order = append(t.order[:oldIndex], t.order[oldIndex+1:]...)
	t.order = append(t.order[:newIndex], append([]string{id}, t.order[newIndex:]...)...)
	t.normalizeGroups()
	t.renumber()
	return nil
}

// Delete permanently removes a statement and compacts the display order.
// Deleting a group parent dissolves the group; its members stay.
func (s *Store) Delete(id string) error {
	docID, ok := s.DocumentOf(id)
	if !ok {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	t, _ := s.table(docID, false)

	t.mu.Lock()
	t.remove(id)
	t.mu.Unlock()

	s.mu.Lock()
	delete(s.owners, id)
	s.mu.Unlock()

	s.updateVisibleGauge()
	return nil
}

// DeleteBatch removes a set of statements from one document. Ids that do
// not resolve are skipped rather than failing the batch. Returns the
// number actually deleted.
func (s *Store) DeleteBatch(documentID string, ids []string) int {
	t, ok := s.table(documentID, false)
	if !ok {
		return 0
	}

	t.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.statements[id]; !ok {
			// Skipped ids may belong to other documents; their owner
			// entries must survive.
			continue
		}
		t.remove(id)
		removed = append(removed, id)
	}
	t.mu.Unlock()

	s.mu.Lock()
	for _, id := range removed {
		delete(s.owners, id)
	}
	s.mu.Unlock()

	s.updateVisibleGauge()
	return len(removed)
}

// VisibleCount returns the number of non-superseded statements for a
// document.
func (s *Store) VisibleCount(documentID string) int {
	t, ok := s.table(documentID, false)
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// updateVisibleGauge recomputes the visible-statement gauge.
func (s *Store) updateVisibleGauge() {
	if s.metrics == nil {
		return
	}
	s.mu.RLock()
	total := 0
	for _, t := range s.tables {
		t.mu.RLock()
		total += len(t.order)
		t.mu.RUnlock()
	}
	s.mu.RUnlock()
	s.metrics.SetVisibleStatements(total)
}

// ----- docTable internals (callers hold the table lock) -----

// indexOf returns the position of a visible statement, or -1.
func (t *docTable) indexOf(id string) int {
	for i, other := range t.order {
		if other == id {
			return i
		}
	}
	return -1
}

// renumber reassigns OrderIndex values from display positions, keeping
// the one-owner-per-index invariant.
func (t *docTable) renumber() {
	for i, id := range t.order {
		t.statements[id].OrderIndex = i
	}
}

// remove deletes a statement from the table, its order view, and any
// group membership. Removing a group parent dissolves the group.
func (t *docTable) remove(id string) {
	if idx := t.indexOf(id); idx >= 0 {
		t.order = append(t.order[:idx], t.order[idx+1:]...)
	}
	if parent := t.groupOf(id); parent != "" {
		t.detachMember(parent, id)
	}
	delete(t.groups, id)
	delete(t.statements, id)
	t.normalizeGroups()
	t.renumber()
}

// groupOf returns the group parent id of a member, or "".
func (t *docTable) groupOf(id string) string {
	for parent, members := range t.groups {
		for _, m := range members {
			if m == id {
				return parent
			}
		}
	}
	return ""
}

// groupBlock returns the display positions spanned by a group: the
// parent's index and the index of its last member.
func (t *docTable) groupBlock(parent string) (int, int) {
	start := t.indexOf(parent)
	return start, start + len(t.groups[parent])
}

// spliceMembers inserts ids into a group's member list at pos, clamped
// to the list bounds.
func (t *docTable) spliceMembers(parent string, pos int, ids ...string) {
	members := t.groups[parent]
	if pos < 0 {
		pos = 0
	}
	if pos > len(members) {
		pos = len(members)
	}
	tail := append([]string(nil), members[pos:]...)
	t.groups[parent] = append(append(members[:pos], ids...), tail...)
}

// detachMember removes one member from a group.
func (t *docTable) detachMember(parent, id string) {
	members := t.groups[parent]
	for i, m := range members {
		if m == id {
			t.groups[parent] = append(members[:i], members[i+1:]...)
			return
		}
	}
}

// normalizeGroups restores group contiguity: each group's visible members
// are placed immediately after their parent, in membership order. Nested
// group parents carry their own members with them. The membership list is
// the source of truth for ordering within a block, so restoring
// contiguity is deterministic.
func (t *docTable) normalizeGroups() {
	if len(t.groups) == 0 {
		return
	}

	memberOf := make(map[string]string)
	for parent, members := range t.groups {
		for _, m := range members {
			memberOf[m] = parent
		}
	}

	newOrder := make([]string, 0, len(t.order))
	emitted := make(map[string]bool, len(t.order))
	var emit func(id string)
	emit = func(id string) {
		if emitted[id] || t.indexOf(id) < 0 {
			return
		}
		emitted[id] = true
		newOrder = append(newOrder, id)
		for _, member := range t.groups[id] {
			emit(member)
		}
	}

	for _, id := range t.order {
		if parent, isMember := memberOf[id]; isMember && t.indexOf(parent) >= 0 {
			continue // emitted under its parent
		}
		emit(id)
	}
	t.order = newOrder
}

// columnByName returns the column definition with the given name, or nil.
func (t *docTable) columnByName(name string) *statement.ColumnDefinition {
	for _, col := range t.columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}
