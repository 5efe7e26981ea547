package store

import (
	"fmt"

	"github.com/coolbeans/statext/pkg/statement"
)

// Tx is the mutation surface handed to an edit operation while it holds a
// document's table lock. Everything done through a Tx lands atomically:
// readers of the store never observe the document between primitive steps.
//
// Operations must validate through the read primitives before touching any
// write primitive; a Tx has no rollback.
type Tx struct {
	store      *Store
	t          *docTable
	documentID string
	created    []string
}

// Apply runs fn against the document's table under its write lock. New
// statements created through the Tx become resolvable store-wide after fn
// returns without error.
func (s *Store) Apply(documentID string, fn func(tx *Tx) error) error {
	t, ok := s.table(documentID, false)
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, statement.ErrNotFound)
	}

	tx := &Tx{store: s, t: t, documentID: documentID}

	t.mu.Lock()
	err := fn(tx)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if len(tx.created) > 0 {
		s.mu.Lock()
		for _, id := range tx.created {
			s.owners[id] = documentID
		}
		s.mu.Unlock()
	}
	s.updateVisibleGauge()
	return nil
}

// DocumentID returns the document this transaction operates on.
func (tx *Tx) DocumentID() string {
	return tx.documentID
}

// Get returns the live statement record for an id. The pointer is only
// valid for the duration of the transaction.
func (tx *Tx) Get(id string) (*statement.Statement, error) {
	st, ok := tx.t.statements[id]
	if !ok {
		return nil, fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}
	return st, nil
}

// IndexOf returns the display position of a visible statement, or -1.
func (tx *Tx) IndexOf(id string) int {
	return tx.t.indexOf(id)
}

// Count returns the number of visible statements.
func (tx *Tx) Count() int {
	return len(tx.t.order)
}

// Supersede marks a statement consumed by an edit: it is flagged, removed
// from the display order, detached from any group, and the remaining
// order compacts. The record itself is retained for lineage.
func (tx *Tx) Supersede(id string) {
	st, ok := tx.t.statements[id]
	if !ok || st.IsSuperseded {
		return
	}
	st.IsSuperseded = true
	if idx := tx.t.indexOf(id); idx >= 0 {
		tx.t.order = append(tx.t.order[:idx], tx.t.order[idx+1:]...)
	}
	if parent := tx.t.groupOf(id); parent != "" {
		tx.t.detachMember(parent, id)
	}
	delete(tx.t.groups, id)
	tx.t.normalizeGroups()
	tx.t.renumber()
}

// InsertAt places new statements into the display order starting at index
// (clamped to the current bounds), in the given order. Later statements
// shift right and the order renumbers.
func (tx *Tx) InsertAt(index int, statements ...*statement.Statement) {
	if index < 0 {
		index = 0
	}
	if index > len(tx.t.order) {
		index = len(tx.t.order)
	}

	ids := make([]string, len(statements))
	for i, st := range statements {
		st.DocumentID = tx.documentID
		tx.t.statements[st.ID] = st
		ids[i] = st.ID
		tx.created = append(tx.created, st.ID)
	}

	tail := append([]string(nil), tx.t.order[index:]...)
	tx.t.order = append(tx.t.order[:index], append(ids, tail...)...)
	tx.t.normalizeGroups()
	tx.t.renumber()
}

// CreateGroup records a group relationship between an already-inserted
// parent and its members, then restores contiguity so members sit
// immediately after the parent.
func (tx *Tx) CreateGroup(parentID string, memberIDs []string) {
	tx.t.groups[parentID] = append([]string(nil), memberIDs...)
	tx.t.normalizeGroups()
	tx.t.renumber()
}

// GroupMembership returns the group parent of a statement and its
// position within the member list, or ("", -1) when ungrouped.
func (tx *Tx) GroupMembership(id string) (string, int) {
	parent := tx.t.groupOf(id)
	if parent == "" {
		return "", -1
	}
	for i, m := range tx.t.groups[parent] {
		if m == id {
			return parent, i
		}
	}
	return "", -1
}

// SpliceGroupMembers inserts ids into a group's member list at pos
// (clamped), then restores contiguity. Used when an edit replaces a
// grouped statement with its derived statements.
func (tx *Tx) SpliceGroupMembers(parent string, pos int, ids ...string) {
	if tx.t.groups[parent] == nil {
		return
	}
	tx.t.spliceMembers(parent, pos, ids...)
	tx.t.normalizeGroups()
	tx.t.renumber()
}

// DetachFromGroup removes a statement from whatever group it belongs to.
func (tx *Tx) DetachFromGroup(id string) {
	if parent := tx.t.groupOf(id); parent != "" {
		tx.t.detachMember(parent, id)
	}
}

// SwapAdjacent moves a visible statement one step in the given direction
// (-1 up, +1 down). Group blocks move as units: a group parent carries
// its members, and a statement adjacent to a group it does not belong to
// jumps the whole block instead of landing inside it. At either boundary
// it is a no-op, not an error.
func (tx *Tx) SwapAdjacent(id string, direction int) error {
	idx := tx.t.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("statement %s: %w", id, statement.ErrNotFound)
	}

	// The moving unit spans the statement's own group block when it is a
	// parent; contiguity guarantees the members follow it directly.
	start, end := idx, idx
	if members, ok := tx.t.groups[id]; ok {
		end = idx + len(members)
	}

	other := start - 1
	if direction > 0 {
		other = end + 1
	}
	if other < 0 || other >= len(tx.t.order) {
		return nil
	}
	otherID := tx.t.order[other]

	parent := tx.t.groupOf(id)
	if parent != "" && tx.t.groupOf(otherID) == parent {
		// Both in the same group: the membership list owns intra-group
		// ordering, so swap there too.
		members := tx.t.groups[parent]
		for i := range members {
			if members[i] == id {
				j := i + direction
				if j >= 0 && j < len(members) {
					members[i], members[j] = members[j], members[i]
				}
				break
			}
		}
		tx.t.order[idx], tx.t.order[other] = tx.t.order[other], tx.t.order[idx]
		tx.t.normalizeGroups()
		tx.t.renumber()
		return nil
	}
	if parent != "" {
		// Crossing the block edge moves the statement out of the group.
		tx.t.detachMember(parent, id)
	}

	// Resolve the neighbor's unit: its outermost group block, or the
	// neighbor alone when ungrouped.
	anchor := otherID
	for p := tx.t.groupOf(anchor); p != ""; p = tx.t.groupOf(anchor) {
		anchor = p
	}

	// Reposition past the neighbor unit. Normalization re-seats grouped
	// members behind their parents, so only the moving id relocates here.
	tx.t.order = append(tx.t.order[:idx], tx.t.order[idx+1:]...)
	target := tx.t.indexOf(anchor)
	if direction > 0 {
		target += 1 + len(tx.t.groups[anchor])
	}
	tail := append([]string(nil), tx.t.order[target:]...)
	tx.t.order = append(tx.t.order[:target], append([]string{id}, tail...)...)

	tx.t.normalizeGroups()
	tx.t.renumber()
	return nil
}
