// Package statement defines the core data model for extracted regulatory
// statements: the statement record itself, its classification taxonomy,
// custom column definitions, and the error taxonomy shared by the store
// and the edit engine.
package statement

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a statement within the fixed taxonomy.
type Type string

const (
	TypeObligation     Type = "Obligation"
	TypeProhibition    Type = "Prohibition"
	TypeRecommendation Type = "Recommendation"
	TypeDefinition     Type = "Definition"
	TypeException      Type = "Exception"
)

// EditKind records how a statement came into existence.
type EditKind string

const (
	// KindOriginal marks statements produced by segmentation.
	KindOriginal EditKind = "original"

	// KindSplitChild marks statements produced by splitting a base statement.
	KindSplitChild EditKind = "split_child"

	// KindMergeResult marks statements produced by merging several statements.
	KindMergeResult EditKind = "merge_result"

	// KindGroupParent marks synthetic organizational parents.
	KindGroupParent EditKind = "group_parent"
)

// Statement is one extracted or derived regulatory clause row.
//
// ID is assigned once and never reused; lineage-preserving edits create new
// statements instead of mutating existing ones. SysID equals ID but is the
// identity edit payloads reference, since edits select targets before the
// store assigns final display order. After creation only CustomFields,
// SectionRef and IsSuperseded may change; RegulationText, OriginIDs and
// EditKind are fixed for the life of the record.
type Statement struct {
	ID         string `json:"id"`
	SysID      string `json:"sys_id"`
	DocumentID string `json:"document_id"`

	// OrderIndex is the document-wide display position, unique among
	// non-superseded statements of the same document.
	OrderIndex int `json:"order_index"`

	SectionRef    string `json:"section_ref"`
	HierarchyPath string `json:"hierarchy_path"`
	SectionTitle  string `json:"section_title,omitempty"`
	PageNumber    int    `json:"page_number,omitempty"`

	RegulationText string `json:"regulation_text"`
	Type           Type   `json:"statement_type"`

	CustomFields map[string]any `json:"custom_fields,omitempty"`

	EditKind EditKind `json:"user_edit_kind"`

	// OriginIDs lists the statements this one was derived from, in order.
	// Empty for originals; back-references only, never used for ordering.
	OriginIDs []string `json:"origin_ids,omitempty"`

	// IsSuperseded is set once the statement has been consumed by a split
	// or merge. Superseded statements are hidden from default listings and
	// rejected as edit targets, but retained for lineage.
	IsSuperseded bool `json:"is_superseded"`

	CreatedAt time.Time `json:"created_at"`
}

// New creates an original statement for a document with a fresh identity.
func New(documentID string) *Statement {
	id := uuid.New().String()
	return &Statement{
		ID:           id,
		SysID:        id,
		DocumentID:   documentID,
		EditKind:     KindOriginal,
		CustomFields: make(map[string]any),
		CreatedAt:    time.Now().UTC(),
	}
}

// Derive creates a statement derived from the given origins by an edit
// operation. The origin id order is preserved for lineage.
func Derive(documentID string, kind EditKind, originIDs []string) *Statement {
	s := New(documentID)
	s.EditKind = kind
	s.OriginIDs = append([]string(nil), originIDs...)
	return s
}

// Clone returns a deep copy of the statement. The copy shares no mutable
// state with the original, so callers may hand clones to readers without
// exposing store internals.
func (s *Statement) Clone() *Statement {
	c := *s
	c.OriginIDs = append([]string(nil), s.OriginIDs...)
	if s.CustomFields != nil {
		c.CustomFields = make(map[string]any, len(s.CustomFields))
		for k, v := range s.CustomFields {
			c.CustomFields[k] = v
		}
	}
	return &c
}

// Visible reports whether the statement belongs in default listings.
func (s *Statement) Visible() bool {
	return !s.IsSuperseded
}
