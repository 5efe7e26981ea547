package edit

import (
	"errors"
	"strings"
	"testing"

	"github.com/coolbeans/statext/pkg/statement"
	"github.com/coolbeans/statext/pkg/store"
)

const testDocID = "doc-1"

func newEngine(t *testing.T, texts ...string) (*Engine, *store.Store, []string) {
	t.Helper()

	s := store.New()
	statements := make([]*statement.Statement, 0, len(texts))
	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		st := statement.New(testDocID)
		st.SectionRef = "1." + string(rune('1'+i))
		st.HierarchyPath = "1 > " + st.SectionRef
		st.RegulationText = text
		st.Type = statement.TypeObligation
		statements = append(statements, st)
		ids = append(ids, st.ID)
	}
	s.Populate(testDocID, statements)
	return NewEngine(s), s, ids
}

func visibleTexts(s *store.Store) []string {
	var out []string
	for _, st := range s.List(testDocID, false) {
		out = append(out, st.RegulationText)
	}
	return out
}

func TestSplitBasic(t *testing.T) {
	e, s, ids := newEngine(t, "First clause. Second clause.", "untouched")

	visible, err := e.Split(ids[0], []Range{{Start: 0, End: 13}, {Start: 14, End: 28}}, false)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(visible) != 3 {
		t.Fatalf("got %d visible statements, want 3", len(visible))
	}
	if visible[0].RegulationText != "First clause." {
		t.Errorf("child 0 text = %q", visible[0].RegulationText)
	}
	if visible[1].RegulationText != "Second clause." {
		t.Errorf("child 1 text = %q", visible[1].RegulationText)
	}
	if visible[2].ID != ids[1] {
		t.Errorf("trailing statement moved: %s", visible[2].ID)
	}

	for i, child := range visible[:2] {
		if child.EditKind != statement.KindSplitChild {
			t.Errorf("child %d kind = %s", i, child.EditKind)
		}
		if len(child.OriginIDs) != 1 || child.OriginIDs[0] != ids[0] {
			t.Errorf("child %d origins = %v", i, child.OriginIDs)
		}
		if child.OrderIndex != i {
			t.Errorf("child %d OrderIndex = %d", i, child.OrderIndex)
		}
	}

	base, err := s.Get(ids[0])
	if err != nil {
		t.Fatalf("base vanished: %v", err)
	}
	if !base.IsSuperseded {
		t.Error("base not superseded after split")
	}
	if base.RegulationText != "First clause. Second clause." {
		t.Error("base text mutated by split")
	}
}

func TestSplitSectionRefs(t *testing.T) {
	e, s, ids := newEngine(t, "abcdefghij")

	_, err := e.Split(ids[0], []Range{
		{Start: 0, End: 5, SectionRef: "1.1a"},
		{Start: 5, End: 10},
	}, false)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	visible := s.List(testDocID, false)
	if visible[0].SectionRef != "1.1a" {
		t.Errorf("child 0 SectionRef = %q, want user-supplied 1.1a", visible[0].SectionRef)
	}
	if visible[1].SectionRef != "1.1-2" {
		t.Errorf("child 1 SectionRef = %q, want generated 1.1-2", visible[1].SectionRef)
	}
	if visible[0].HierarchyPath != "1 > 1.1" {
		t.Errorf("child 0 HierarchyPath = %q, want inherited", visible[0].HierarchyPath)
	}
}

func TestSplitGapDropsText(t *testing.T) {
	e, s, ids := newEngine(t, "keep one DROP keep two")

	_, err := e.Split(ids[0], []Range{{Start: 0, End: 8}, {Start: 14, End: 22}}, false)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	joined := strings.Join(visibleTexts(s), "|")
	if strings.Contains(joined, "DROP") {
		t.Errorf("gap text survived the split: %q", joined)
	}
}

func TestSplitInheritCustomColumns(t *testing.T) {
	e, s, ids := newEngine(t, "some regulation text")
	if err := s.UpdateCustomFields(ids[0], map[string]any{"Owner": "alice"}); err != nil {
		t.Fatalf("UpdateCustomFields failed: %v", err)
	}

	_, err := e.Split(ids[0], []Range{{Start: 0, End: 4}, {Start: 5, End: 20}}, true)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	for i, st := range s.List(testDocID, false) {
		if st.CustomFields["Owner"] != "alice" {
			t.Errorf("child %d did not inherit custom fields: %v", i, st.CustomFields)
		}
	}
}

func TestSplitWithoutInheritEmptyFields(t *testing.T) {
	e, s, ids := newEngine(t, "some regulation text")
	if err := s.UpdateCustomFields(ids[0], map[string]any{"Owner": "alice"}); err != nil {
		t.Fatalf("UpdateCustomFields failed: %v", err)
	}

	_, err := e.Split(ids[0], []Range{{Start: 0, End: 4}, {Start: 5, End: 20}}, false)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	for i, st := range s.List(testDocID, false) {
		if len(st.CustomFields) != 0 {
			t.Errorf("child %d inherited fields without the flag: %v", i, st.CustomFields)
		}
	}
}

func TestSplitValidation(t *testing.T) {
	tests := []struct {
		name    string
		ranges  []Range
		wantErr error
	}{
		{"single range", []Range{{Start: 0, End: 5}}, statement.ErrInvalidRange},
		{"empty range", []Range{{Start: 3, End: 3}, {Start: 4, End: 8}}, statement.ErrInvalidRange},
		{"inverted range", []Range{{Start: 5, End: 2}, {Start: 6, End: 8}}, statement.ErrInvalidRange},
		{"past end", []Range{{Start: 0, End: 4}, {Start: 4, End: 99}}, statement.ErrInvalidRange},
		{"negative start", []Range{{Start: -1, End: 4}, {Start: 5, End: 8}}, statement.ErrInvalidRange},
		{"overlap", []Range{{Start: 0, End: 6}, {Start: 4, End: 10}}, statement.ErrOverlappingRanges},
		{"overlap out of order", []Range{{Start: 4, End: 10}, {Start: 0, End: 6}}, statement.ErrOverlappingRanges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s, ids := newEngine(t, "0123456789")

			_, err := e.Split(ids[0], tt.ranges, false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Split error = %v, want %v", err, tt.wantErr)
			}

			// Failed validation must leave the store untouched.
			visible := s.List(testDocID, false)
			if len(visible) != 1 || visible[0].ID != ids[0] || visible[0].IsSuperseded {
				t.Error("failed split modified the store")
			}
		})
	}
}

func TestSplitSupersededBase(t *testing.T) {
	e, _, ids := newEngine(t, "0123456789")

	if _, err := e.Split(ids[0], []Range{{Start: 0, End: 5}, {Start: 5, End: 10}}, false); err != nil {
		t.Fatalf("first split failed: %v", err)
	}
	_, err := e.Split(ids[0], []Range{{Start: 0, End: 5}, {Start: 5, End: 10}}, false)
	if !errors.Is(err, statement.ErrSuperseded) {
		t.Errorf("second split error = %v, want ErrSuperseded", err)
	}
}

func TestMergeBasic(t *testing.T) {
	e, s, ids := newEngine(t, "part one", "part two", "part three", "untouched")

	visible, err := e.Merge([]string{ids[0], ids[1], ids[2]}, " ", "")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(visible) != 2 {
		t.Fatalf("got %d visible statements, want 2", len(visible))
	}
	merged := visible[0]
	if merged.RegulationText != "part one part two part three" {
		t.Errorf("merged text = %q", merged.RegulationText)
	}
	if merged.EditKind != statement.KindMergeResult {
		t.Errorf("merged kind = %s", merged.EditKind)
	}
	if len(merged.OriginIDs) != 3 {
		t.Errorf("merged origins = %v", merged.OriginIDs)
	}
	if merged.SectionRef != "1.1" {
		t.Errorf("merged SectionRef = %q, want first input's 1.1", merged.SectionRef)
	}
	if visible[1].ID != ids[3] {
		t.Errorf("unrelated statement displaced: %s", visible[1].ID)
	}

	for _, id := range ids[:3] {
		st, err := s.Get(id)
		if err != nil {
			t.Fatalf("input %s vanished: %v", id, err)
		}
		if !st.IsSuperseded {
			t.Errorf("input %s not superseded", id)
		}
	}
}

func TestMergeInputOrderNotDisplayOrder(t *testing.T) {
	e, _, ids := newEngine(t, "alpha", "beta", "gamma")

	// Merge in reverse display order; the text follows the input order,
	// the position follows the earliest input.
	visible, err := e.Merge([]string{ids[2], ids[0]}, " + ", "")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if visible[0].RegulationText != "gamma + alpha" {
		t.Errorf("merged text = %q, want input order preserved", visible[0].RegulationText)
	}
	if visible[0].OrderIndex != 0 {
		t.Errorf("merged OrderIndex = %d, want the earliest input's slot", visible[0].OrderIndex)
	}
	if visible[1].RegulationText != "beta" {
		t.Errorf("remaining statement = %q", visible[1].RegulationText)
	}
}

func TestMergeTooFew(t *testing.T) {
	e, _, ids := newEngine(t, "alpha", "beta")

	if _, err := e.Merge([]string{ids[0]}, " ", ""); !errors.Is(err, statement.ErrInsufficientMembers) {
		t.Errorf("Merge(1) error = %v, want ErrInsufficientMembers", err)
	}
}

func TestMergeCrossDocument(t *testing.T) {
	e, s, ids := newEngine(t, "alpha", "beta")

	other := statement.New("doc-2")
	other.RegulationText = "foreign"
	s.Populate("doc-2", []*statement.Statement{other})

	if _, err := e.Merge([]string{ids[0], other.ID}, " ", ""); !errors.Is(err, statement.ErrCrossDocument) {
		t.Errorf("cross-document merge error = %v, want ErrCrossDocument", err)
	}
}

func TestMergeSupersededInput(t *testing.T) {
	e, _, ids := newEngine(t, "alpha", "beta", "gamma")

	if _, err := e.Merge([]string{ids[0], ids[1]}, " ", ""); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	_, err := e.Merge([]string{ids[0], ids[2]}, " ", "")
	if !errors.Is(err, statement.ErrNotFound) {
		t.Errorf("merge of superseded input error = %v, want ErrNotFound", err)
	}
}

func TestGroupBasic(t *testing.T) {
	e, s, ids := newEngine(t, "lead-in", "member one", "member two", "trailer")

	visible, err := e.Group("Security duties", []string{ids[1], ids[2]})
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}

	if len(visible) != 5 {
		t.Fatalf("got %d visible statements, want 5", len(visible))
	}

	parent := visible[1]
	if parent.EditKind != statement.KindGroupParent {
		t.Fatalf("statement after lead-in is %s, want group parent", parent.EditKind)
	}
	if parent.RegulationText != "Security duties" || parent.SectionTitle != "Security duties" {
		t.Errorf("parent title = %q / %q", parent.RegulationText, parent.SectionTitle)
	}
	if visible[2].ID != ids[1] || visible[3].ID != ids[2] {
		t.Errorf("members not contiguous after parent: %v", visibleTexts(s))
	}
	if visible[4].ID != ids[3] {
		t.Errorf("trailer displaced")
	}

	// Grouping supersedes nothing.
	for _, id := range ids {
		st, _ := s.Get(id)
		if st.IsSuperseded {
			t.Errorf("grouping superseded member %s", id)
		}
	}
}

func TestGroupMembersStayEditable(t *testing.T) {
	e, s, ids := newEngine(t, "member one text", "member two text")

	if _, err := e.Group("Heading", []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if err := s.UpdateCustomFields(ids[0], map[string]any{"note": "still editable"}); err != nil {
		t.Errorf("grouped member rejected an edit: %v", err)
	}
}

func TestGroupSplitMemberKeepsContiguity(t *testing.T) {
	e, s, ids := newEngine(t, "before", "first. second.", "other member", "after")

	if _, err := e.Group("Heading", []string{ids[1], ids[2]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if _, err := e.Split(ids[1], []Range{{Start: 0, End: 6}, {Start: 7, End: 14}}, false); err != nil {
		t.Fatalf("Split of grouped member failed: %v", err)
	}

	visible := s.List(testDocID, false)
	if len(visible) != 6 {
		t.Fatalf("got %d visible statements, want 6", len(visible))
	}
	// Order: before, parent, child1, child2, other member, after.
	if visible[1].EditKind != statement.KindGroupParent {
		t.Fatalf("group parent not at position 1")
	}
	if visible[2].RegulationText != "first." || visible[3].RegulationText != "second." {
		t.Errorf("split children not in the base's group slot: %v", visibleTexts(s))
	}
	if visible[4].ID != ids[2] {
		t.Errorf("other member pushed out of the group block")
	}
	if visible[5].ID != ids[3] {
		t.Errorf("trailing statement displaced")
	}
}

func TestGroupRegroupMoves(t *testing.T) {
	e, s, ids := newEngine(t, "a", "b", "c", "d")

	if _, err := e.Group("First", []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("first Group failed: %v", err)
	}
	if _, err := e.Group("Second", []string{ids[1], ids[3]}); err != nil {
		t.Fatalf("second Group failed: %v", err)
	}

	visible := s.List(testDocID, false)
	// First group keeps only "a"; second group holds "b" and "d".
	var parents []*statement.Statement
	for _, st := range visible {
		if st.EditKind == statement.KindGroupParent {
			parents = append(parents, st)
		}
	}
	if len(parents) != 2 {
		t.Fatalf("got %d group parents, want 2", len(parents))
	}

	// The second group's members must sit directly after its parent.
	secondIdx := -1
	for i, st := range visible {
		if st.EditKind == statement.KindGroupParent && st.RegulationText == "Second" {
			secondIdx = i
			break
		}
	}
	if secondIdx < 0 || secondIdx+2 >= len(visible) {
		t.Fatalf("second group parent misplaced: %v", visibleTexts(s))
	}
	if visible[secondIdx+1].ID != ids[1] || visible[secondIdx+2].ID != ids[3] {
		t.Errorf("second group not contiguous: %v", visibleTexts(s))
	}
}

func TestGroupTooFew(t *testing.T) {
	e, _, ids := newEngine(t, "a", "b")
	if _, err := e.Group("Heading", []string{ids[0]}); !errors.Is(err, statement.ErrInsufficientMembers) {
		t.Errorf("Group(1) error = %v, want ErrInsufficientMembers", err)
	}
}

func TestMoveUpDown(t *testing.T) {
	e, s, ids := newEngine(t, "a", "b", "c")

	if _, err := e.MoveUp(ids[1]); err != nil {
		t.Fatalf("MoveUp failed: %v", err)
	}
	got := visibleTexts(s)
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after MoveUp order = %v, want %v", got, want)
		}
	}

	if _, err := e.MoveDown(ids[1]); err != nil {
		t.Fatalf("MoveDown failed: %v", err)
	}
	got = visibleTexts(s)
	want = []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after MoveDown order = %v, want %v", got, want)
		}
	}
}

func TestMoveBoundaryNoOp(t *testing.T) {
	e, s, ids := newEngine(t, "a", "b")

	if _, err := e.MoveUp(ids[0]); err != nil {
		t.Errorf("MoveUp at top = %v, want nil", err)
	}
	if _, err := e.MoveDown(ids[1]); err != nil {
		t.Errorf("MoveDown at bottom = %v, want nil", err)
	}
	got := visibleTexts(s)
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("boundary moves changed order: %v", got)
	}
}

func TestMoveOutOfGroupDetaches(t *testing.T) {
	e, s, ids := newEngine(t, "outside", "member one", "member two")

	if _, err := e.Group("Heading", []string{ids[1], ids[2]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	// Order now: outside, parent, member one, member two.
	// Moving member one up swaps it past the parent and out of the group.
	if _, err := e.MoveUp(ids[1]); err != nil {
		t.Fatalf("MoveUp failed: %v", err)
	}

	groups := s.Groups(testDocID)
	for _, members := range groups {
		for _, m := range members {
			if m == ids[1] {
				t.Error("statement moved out of the block but stayed a member")
			}
		}
	}
}

func TestMoveUpJumpsGroupBlock(t *testing.T) {
	e, s, ids := newEngine(t, "a", "b", "x")

	if _, err := e.Group("Heading", []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	// Order now: Heading, a, b, x. Moving x up must clear the whole
	// block, not land between its members.
	if _, err := e.MoveUp(ids[2]); err != nil {
		t.Fatalf("MoveUp failed: %v", err)
	}

	got := visibleTexts(s)
	want := []string{"x", "Heading", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after MoveUp order = %v, want %v", got, want)
		}
	}
}

func TestMoveDownCarriesGroupBlock(t *testing.T) {
	e, s, ids := newEngine(t, "a", "b", "x")

	if _, err := e.Group("Heading", []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	var parentID string
	for _, st := range s.List(testDocID, false) {
		if st.EditKind == statement.KindGroupParent {
			parentID = st.ID
		}
	}
	if parentID == "" {
		t.Fatal("group parent not found")
	}

	// Moving the parent down takes its members along past x.
	if _, err := e.MoveDown(parentID); err != nil {
		t.Fatalf("MoveDown failed: %v", err)
	}

	got := visibleTexts(s)
	want := []string{"x", "Heading", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after MoveDown order = %v, want %v", got, want)
		}
	}
}

func TestDeleteSkipsUnknown(t *testing.T) {
	e, _, ids := newEngine(t, "a", "b", "c")

	visible, err := e.Delete(testDocID, []string{ids[0], "no-such-id"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("got %d visible after delete, want 2", len(visible))
	}
}

func TestDeleteGroupParentDissolvesGroup(t *testing.T) {
	e, s, ids := newEngine(t, "member one", "member two")

	if _, err := e.Group("Heading", []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("Group failed: %v", err)
	}

	var parentID string
	for _, st := range s.List(testDocID, false) {
		if st.EditKind == statement.KindGroupParent {
			parentID = st.ID
		}
	}
	if parentID == "" {
		t.Fatal("group parent not found")
	}

	if _, err := e.Delete(testDocID, []string{parentID}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	visible := s.List(testDocID, false)
	if len(visible) != 2 {
		t.Fatalf("got %d visible, want the 2 members to survive", len(visible))
	}
	if len(s.Groups(testDocID)) != 0 {
		t.Error("group record survived its parent")
	}
}
