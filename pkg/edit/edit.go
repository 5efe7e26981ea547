// Package edit implements the statement-lineage editing model: split,
// merge, group, reorder, and delete as transformations over the statement
// store. Lineage-preserving operations create new statements linked to
// their origins and mark the consumed originals superseded; nothing is
// lost from the audit trail.
//
// Every operation validates its whole input before applying anything, and
// applies under the document's table lock, so a failed operation leaves
// the store exactly as it was.
package edit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coolbeans/statext/pkg/metrics"
	"github.com/coolbeans/statext/pkg/statement"
	"github.com/coolbeans/statext/pkg/store"
)

// Range selects a half-open [Start, End) span of a statement's regulation
// text for a split, with an optional user-supplied section reference for
// the resulting child.
type Range struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	SectionRef string `json:"user_section_ref,omitempty"`
}

// Engine applies edit operations to a statement store.
type Engine struct {
	store   *store.Store
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an edit engine over the given store.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Split divides a statement's regulation text into the given ranges, in
// input order, producing one split_child per range. Children occupy the
// base's former display slot contiguously; the base is superseded. Gaps
// between ranges are allowed (text outside every range is dropped from
// the split set); overlap is not.
func (e *Engine) Split(baseID string, ranges []Range, inheritCustomColumns bool) ([]*statement.Statement, error) {
	docID, ok := e.store.DocumentOf(baseID)
	if !ok {
		return nil, e.fail("split", fmt.Errorf("statement %s: %w", baseID, statement.ErrNotFound))
	}

	err := e.store.Apply(docID, func(tx *store.Tx) error {
		base, err := tx.Get(baseID)
		if err != nil {
			return err
		}
		if base.IsSuperseded {
			return fmt.Errorf("statement %s: %w", baseID, statement.ErrSuperseded)
		}
		if err := validateRanges(ranges, len(base.RegulationText)); err != nil {
			return err
		}

		children := make([]*statement.Statement, len(ranges))
		childIDs := make([]string, len(ranges))
		for k, r := range ranges {
			child := statement.Derive(docID, statement.KindSplitChild, []string{baseID})
			child.RegulationText = base.RegulationText[r.Start:r.End]
			child.SectionRef = r.SectionRef
			if child.SectionRef == "" {
				child.SectionRef = fmt.Sprintf("%s-%d", base.SectionRef, k+1)
			}
			child.HierarchyPath = base.HierarchyPath
			child.SectionTitle = base.SectionTitle
			child.PageNumber = base.PageNumber
			child.Type = base.Type
			if inheritCustomColumns {
				for key, value := range base.CustomFields {
					child.CustomFields[key] = value
				}
			}
			children[k] = child
			childIDs[k] = child.ID
		}

		baseIndex := tx.IndexOf(baseID)
		groupParent, memberPos := tx.GroupMembership(baseID)

		tx.Supersede(baseID)
		tx.InsertAt(baseIndex, children...)
		if groupParent != "" {
			// Children take the base's place in its group so the group's
			// contiguous block keeps covering the same content.
			tx.SpliceGroupMembers(groupParent, memberPos, childIDs...)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("split", err)
	}

	e.ok("split", docID)
	return e.store.List(docID, false), nil
}

// Merge concatenates the regulation text of the given statements with the
// delimiter, in the order given, into one merge_result occupying the
// earliest input's display slot. All inputs are superseded.
func (e *Engine) Merge(sysIDs []string, delimiter string, sectionRef string) ([]*statement.Statement, error) {
	if len(sysIDs) < 2 {
		return nil, e.fail("merge", fmt.Errorf("%w: merge needs at least 2 statements, got %d", statement.ErrInsufficientMembers, len(sysIDs)))
	}
	docID, err := e.commonDocument(sysIDs)
	if err != nil {
		return nil, e.fail("merge", err)
	}

	err = e.store.Apply(docID, func(tx *store.Tx) error {
		inputs := make([]*statement.Statement, len(sysIDs))
		for i, id := range sysIDs {
			st, err := tx.Get(id)
			if err != nil {
				return err
			}
			if st.IsSuperseded {
				return fmt.Errorf("statement %s is superseded: %w", id, statement.ErrNotFound)
			}
			inputs[i] = st
		}

		parts := make([]string, len(inputs))
		minIndex := tx.Count()
		for i, st := range inputs {
			parts[i] = st.RegulationText
			if idx := tx.IndexOf(st.ID); idx >= 0 && idx < minIndex {
				minIndex = idx
			}
		}

		merged := statement.Derive(docID, statement.KindMergeResult, sysIDs)
		merged.RegulationText = strings.Join(parts, delimiter)
		merged.SectionRef = sectionRef
		if merged.SectionRef == "" {
			merged.SectionRef = inputs[0].SectionRef
		}
		merged.HierarchyPath = inputs[0].HierarchyPath
		merged.SectionTitle = inputs[0].SectionTitle
		merged.PageNumber = inputs[0].PageNumber
		merged.Type = inputs[0].Type

		for _, id := range sysIDs {
			tx.Supersede(id)
		}
		tx.InsertAt(minIndex, merged)
		return nil
	})
	if err != nil {
		return nil, e.fail("merge", err)
	}

	e.ok("merge", docID)
	return e.store.List(docID, false), nil
}

// Group creates a synthetic group_parent over the given statements. The
// members stay visible and independently editable; the parent is an
// organizational wrapper positioned at the earliest member's slot, with
// its members kept contiguous immediately after it.
func (e *Engine) Group(title string, sysIDs []string) ([]*statement.Statement, error) {
	if len(sysIDs) < 2 {
		return nil, e.fail("group", fmt.Errorf("%w: group needs at least 2 statements, got %d", statement.ErrInsufficientMembers, len(sysIDs)))
	}
	docID, err := e.commonDocument(sysIDs)
	if err != nil {
		return nil, e.fail("group", err)
	}

	err = e.store.Apply(docID, func(tx *store.Tx) error {
		minIndex := tx.Count()
		for _, id := range sysIDs {
			st, err := tx.Get(id)
			if err != nil {
				return err
			}
			if st.IsSuperseded {
				return fmt.Errorf("statement %s is superseded: %w", id, statement.ErrNotFound)
			}
			if idx := tx.IndexOf(id); idx < minIndex {
				minIndex = idx
			}
		}

		parent := statement.Derive(docID, statement.KindGroupParent, sysIDs)
		parent.RegulationText = title
		parent.SectionTitle = title

		// A statement joins at most one group; regrouping moves it.
		for _, id := range sysIDs {
			tx.DetachFromGroup(id)
		}
		tx.InsertAt(minIndex, parent)
		tx.CreateGroup(parent.ID, sysIDs)
		return nil
	})
	if err != nil {
		return nil, e.fail("group", err)
	}

	e.ok("group", docID)
	return e.store.List(docID, false), nil
}

// MoveUp moves a statement one position up. Group blocks travel as
// units, so a neighbor that belongs to a group is jumped as a whole.
// Moving the first statement up is a no-op, not an error.
func (e *Engine) MoveUp(id string) ([]*statement.Statement, error) {
	return e.move("move_up", id, -1)
}

// MoveDown moves a statement one position down. Group blocks travel as
// units, so a neighbor that belongs to a group is jumped as a whole.
// Moving the last statement down is a no-op, not an error.
func (e *Engine) MoveDown(id string) ([]*statement.Statement, error) {
	return e.move("move_down", id, +1)
}

func (e *Engine) move(op, id string, direction int) ([]*statement.Statement, error) {
	docID, ok := e.store.DocumentOf(id)
	if !ok {
		return nil, e.fail(op, fmt.Errorf("statement %s: %w", id, statement.ErrNotFound))
	}
	err := e.store.Apply(docID, func(tx *store.Tx) error {
		return tx.SwapAdjacent(id, direction)
	})
	if err != nil {
		return nil, e.fail(op, err)
	}
	e.ok(op, docID)
	return e.store.List(docID, false), nil
}

// Delete removes statements outright, distinct from supersession. Ids
// that do not resolve are skipped; the valid ones are still deleted.
func (e *Engine) Delete(documentID string, ids []string) ([]*statement.Statement, error) {
	deleted := e.store.DeleteBatch(documentID, ids)
	e.log.Info().
		Str("document_id", documentID).
		Int("requested", len(ids)).
		Int("deleted", deleted).
		Msg("statements deleted")
	e.metrics.ObserveEdit("delete", "ok")
	return e.store.List(documentID, false), nil
}

// commonDocument resolves the owning document of every id and requires
// them to agree.
func (e *Engine) commonDocument(ids []string) (string, error) {
	docID := ""
	for _, id := range ids {
		owner, ok := e.store.DocumentOf(id)
		if !ok {
			return "", fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
		}
		if docID == "" {
			docID = owner
			continue
		}
		if owner != docID {
			return "", fmt.Errorf("statement %s belongs to document %s, not %s: %w", id, owner, docID, statement.ErrCrossDocument)
		}
	}
	return docID, nil
}

// validateRanges checks the split precondition: at least two ranges, all
// within bounds, mutually non-overlapping. Input order is preserved for
// the caller; validation sorts a copy.
func validateRanges(ranges []Range, textLen int) error {
	if len(ranges) < 2 {
		return fmt.Errorf("%w: split needs at least 2 ranges, got %d", statement.ErrInvalidRange, len(ranges))
	}
	for _, r := range ranges {
		if r.Start < 0 || r.End > textLen || r.Start >= r.End {
			return fmt.Errorf("%w: [%d, %d) outside text of length %d", statement.ErrInvalidRange, r.Start, r.End, textLen)
		}
	}

	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return fmt.Errorf("%w: [%d, %d) overlaps [%d, %d)", statement.ErrOverlappingRanges,
				sorted[i].Start, sorted[i].End, sorted[i-1].Start, sorted[i-1].End)
		}
	}
	return nil
}

func (e *Engine) ok(op, docID string) {
	e.log.Info().Str("operation", op).Str("document_id", docID).Msg("edit applied")
	e.metrics.ObserveEdit(op, "ok")
}

func (e *Engine) fail(op string, err error) error {
	e.log.Warn().Str("operation", op).Err(err).Msg("edit rejected")
	e.metrics.ObserveEdit(op, "error")
	return err
}
