package store

import (
	"errors"
	"testing"

	"github.com/coolbeans/statext/pkg/statement"
)

const testDocID = "doc-1"

// populateStatements installs n original statements and returns them in
// display order.
func populateStatements(t *testing.T, s *Store, n int) []*statement.Statement {
	t.Helper()

	statements := make([]*statement.Statement, 0, n)
	for i := 0; i < n; i++ {
		st := statement.New(testDocID)
		st.SectionRef = "1." + string(rune('0'+i))
		st.RegulationText = "clause " + string(rune('a'+i))
		st.Type = statement.TypeObligation
		statements = append(statements, st)
	}
	s.Populate(testDocID, statements)
	return statements
}

func assertOrder(t *testing.T, s *Store, wantIDs []string) {
	t.Helper()

	got := s.List(testDocID, false)
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d visible statements, want %d", len(got), len(wantIDs))
	}
	for i, st := range got {
		if st.ID != wantIDs[i] {
			t.Fatalf("position %d holds %s, want %s", i, st.ID, wantIDs[i])
		}
		if st.OrderIndex != i {
			t.Errorf("statement at position %d has OrderIndex %d", i, st.OrderIndex)
		}
	}
}

func TestPopulateAssignsOrder(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)

	listed := s.List(testDocID, false)
	if len(listed) != 3 {
		t.Fatalf("got %d statements, want 3", len(listed))
	}
	for i, st := range listed {
		if st.ID != statements[i].ID {
			t.Errorf("position %d holds %s, want %s", i, st.ID, statements[i].ID)
		}
		if st.OrderIndex != i {
			t.Errorf("OrderIndex = %d, want %d", st.OrderIndex, i)
		}
	}
}

func TestPopulateReplacesPrevious(t *testing.T) {
	s := New()
	old := populateStatements(t, s, 2)

	replacement := []*statement.Statement{statement.New(testDocID)}
	s.Populate(testDocID, replacement)

	if got := s.VisibleCount(testDocID); got != 1 {
		t.Errorf("VisibleCount = %d, want 1", got)
	}
	if _, err := s.Get(old[0].ID); !errors.Is(err, statement.ErrNotFound) {
		t.Errorf("Get(old) error = %v, want ErrNotFound", err)
	}
}

func TestListReturnsClones(t *testing.T) {
	s := New()
	populateStatements(t, s, 1)

	listed := s.List(testDocID, false)
	listed[0].RegulationText = "mutated"

	again := s.List(testDocID, false)
	if again[0].RegulationText == "mutated" {
		t.Error("mutating a listed statement leaked into the store")
	}
}

func TestGetUnknown(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); !errors.Is(err, statement.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdateCustomFieldsLenient(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 1)

	err := s.UpdateCustomFields(statements[0].ID, map[string]any{"Owner": "alice"})
	if err != nil {
		t.Fatalf("UpdateCustomFields failed: %v", err)
	}

	got, err := s.Get(statements[0].ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CustomFields["Owner"] != "alice" {
		t.Errorf("CustomFields[Owner] = %v, want alice", got.CustomFields["Owner"])
	}
}

func TestUpdateCustomFieldsStrict(t *testing.T) {
	s := New(WithStrictColumns())
	statements := populateStatements(t, s, 1)

	if err := s.UpdateCustomFields(statements[0].ID, map[string]any{"Owner": "alice"}); !errors.Is(err, statement.ErrInvalidColumn) {
		t.Errorf("strict update without column = %v, want ErrInvalidColumn", err)
	}

	col := statement.NewColumn(testDocID, "Owner", statement.ColumnText)
	if err := s.AddColumn(col); err != nil {
		t.Fatalf("AddColumn failed: %v", err)
	}
	if err := s.UpdateCustomFields(statements[0].ID, map[string]any{"Owner": "alice"}); err != nil {
		t.Errorf("strict update with column failed: %v", err)
	}
}

func TestUpdateCustomFieldsMergesByKey(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 1)
	id := statements[0].ID

	if err := s.UpdateCustomFields(id, map[string]any{"a": 1, "b": 2}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if err := s.UpdateCustomFields(id, map[string]any{"b": 3}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	got, _ := s.Get(id)
	if got.CustomFields["a"] != 1 {
		t.Errorf("CustomFields[a] = %v, want 1 (untouched key lost)", got.CustomFields["a"])
	}
	if got.CustomFields["b"] != 3 {
		t.Errorf("CustomFields[b] = %v, want 3", got.CustomFields["b"])
	}
}

func TestRenameSection(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 1)

	if err := s.RenameSection(statements[0].ID, "9.9"); err != nil {
		t.Fatalf("RenameSection failed: %v", err)
	}
	got, _ := s.Get(statements[0].ID)
	if got.SectionRef != "9.9" {
		t.Errorf("SectionRef = %q, want %q", got.SectionRef, "9.9")
	}
}

func TestReorder(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 4)
	ids := idsOf(statements)

	// Move the first statement to the end.
	if err := s.Reorder(ids[0], 3); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	assertOrder(t, s, []string{ids[1], ids[2], ids[3], ids[0]})

	// And back to the front.
	if err := s.Reorder(ids[0], 0); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	assertOrder(t, s, ids)
}

func TestReorderBounds(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)

	if err := s.Reorder(statements[0].ID, -1); !errors.Is(err, statement.ErrInvalidRange) {
		t.Errorf("Reorder(-1) error = %v, want ErrInvalidRange", err)
	}
	if err := s.Reorder(statements[0].ID, 3); !errors.Is(err, statement.ErrInvalidRange) {
		t.Errorf("Reorder(3) error = %v, want ErrInvalidRange", err)
	}
	if err := s.Reorder(statements[0].ID, 0); err != nil {
		t.Errorf("no-op Reorder error = %v, want nil", err)
	}
}

func TestDeleteCompactsOrder(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)
	ids := idsOf(statements)

	if err := s.Delete(ids[1]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	assertOrder(t, s, []string{ids[0], ids[2]})

	if _, err := s.Get(ids[1]); !errors.Is(err, statement.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteBatchSkipsUnknown(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)
	ids := idsOf(statements)

	deleted := s.DeleteBatch(testDocID, []string{ids[0], "no-such-id", ids[2]})
	if deleted != 2 {
		t.Errorf("DeleteBatch = %d, want 2", deleted)
	}
	assertOrder(t, s, []string{ids[1]})
}

func TestDeleteBatchKeepsOtherDocumentStatements(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 1)

	other := statement.New("doc-2")
	other.RegulationText = "other document clause"
	s.Populate("doc-2", []*statement.Statement{other})

	// A foreign id is skipped, and the skip must not disturb its
	// owning document.
	if deleted := s.DeleteBatch(testDocID, []string{other.ID}); deleted != 0 {
		t.Errorf("DeleteBatch = %d, want 0", deleted)
	}

	if got := s.List("doc-2", false); len(got) != 1 || got[0].ID != other.ID {
		t.Fatalf("doc-2 listing = %v, want the untouched statement", got)
	}
	if _, err := s.Get(other.ID); err != nil {
		t.Errorf("Get(other) error = %v, want nil", err)
	}
	if doc, ok := s.DocumentOf(other.ID); !ok || doc != "doc-2" {
		t.Errorf("DocumentOf(other) = %q, %v, want doc-2, true", doc, ok)
	}
	assertOrder(t, s, []string{statements[0].ID})
}

func TestListIncludeSuperseded(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)
	ids := idsOf(statements)

	err := s.Apply(testDocID, func(tx *Tx) error {
		tx.Supersede(ids[1])
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	visible := s.List(testDocID, false)
	if len(visible) != 2 {
		t.Fatalf("got %d visible, want 2", len(visible))
	}
	for _, st := range visible {
		if st.IsSuperseded {
			t.Errorf("superseded statement %s in default listing", st.ID)
		}
	}

	all := s.List(testDocID, true)
	if len(all) != 3 {
		t.Fatalf("got %d with superseded, want 3", len(all))
	}
	last := all[len(all)-1]
	if last.ID != ids[1] || !last.IsSuperseded {
		t.Errorf("superseded statement not appended to listing")
	}
}

func TestDocumentOf(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 1)

	docID, ok := s.DocumentOf(statements[0].ID)
	if !ok || docID != testDocID {
		t.Errorf("DocumentOf = %q, %v; want %q, true", docID, ok, testDocID)
	}
	if _, ok := s.DocumentOf("missing"); ok {
		t.Error("DocumentOf found an unknown statement")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 3)
	ids := idsOf(statements)

	err := s.Apply(testDocID, func(tx *Tx) error {
		tx.Supersede(ids[2])
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	col := statement.NewColumn(testDocID, "Owner", statement.ColumnText)
	if err := s.AddColumn(col); err != nil {
		t.Fatalf("AddColumn failed: %v", err)
	}

	snapshot := s.List(testDocID, true)
	groups := s.Groups(testDocID)
	columns := s.Columns(testDocID)

	restored := New()
	restored.Restore(testDocID, snapshot, groups, columns)

	if got := restored.VisibleCount(testDocID); got != 2 {
		t.Errorf("restored VisibleCount = %d, want 2", got)
	}
	if got := restored.List(testDocID, true); len(got) != 3 {
		t.Errorf("restored full listing = %d statements, want 3", len(got))
	}
	if got := restored.Columns(testDocID); len(got) != 1 || got[0].Name != "Owner" {
		t.Errorf("restored columns = %v, want the Owner column", got)
	}
	if docID, ok := restored.DocumentOf(ids[0]); !ok || docID != testDocID {
		t.Errorf("restored DocumentOf = %q, %v", docID, ok)
	}
}

func TestDrop(t *testing.T) {
	s := New()
	statements := populateStatements(t, s, 2)

	s.Drop(testDocID)

	if got := s.VisibleCount(testDocID); got != 0 {
		t.Errorf("VisibleCount after Drop = %d, want 0", got)
	}
	if _, ok := s.DocumentOf(statements[0].ID); ok {
		t.Error("DocumentOf still resolves after Drop")
	}
}

func idsOf(statements []*statement.Statement) []string {
	ids := make([]string, len(statements))
	for i, st := range statements {
		ids[i] = st.ID
	}
	return ids
}
