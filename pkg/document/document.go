// Package document tracks uploaded documents and runs the segmentation
// pipeline that turns their text into the initial statement set. A
// document's readiness status is the only externally observable signal of
// pipeline progress; no partial statements are published while it is
// processing.
package document

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a document's readiness state. Transitions follow
// pending -> processing -> {completed, failed}; both end states are
// terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions lists the allowed status moves.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// Document is one uploaded regulatory document.
type Document struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SourceInfo      string    `json:"source_info,omitempty"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
	TotalStatements int       `json:"total_statements"`
	UploadedAt      time.Time `json:"uploaded_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Registry is the in-memory index of known documents.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document
	seq  []string // document ids in upload order
}

// NewRegistry creates an empty document registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*Document)}
}

// Create registers a new document in the pending state.
func (r *Registry) Create(name, sourceInfo string) *Document {
	now := time.Now().UTC()
	doc := &Document{
		ID:         uuid.New().String(),
		Name:       name,
		SourceInfo: sourceInfo,
		Status:     StatusPending,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.docs[doc.ID] = doc
	r.seq = append(r.seq, doc.ID)
	r.mu.Unlock()
	return doc.clone()
}

// Restore re-registers a document loaded from persistent storage,
// keeping its id and status.
func (r *Registry) Restore(doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; !exists {
		r.seq = append(r.seq, doc.ID)
	}
	r.docs[doc.ID] = doc.clone()
}

// Get returns a document by id.
func (r *Registry) Get(id string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, false
	}
	return doc.clone(), true
}

// List returns all documents in upload order.
func (r *Registry) List() []*Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Document, 0, len(r.seq))
	for _, id := range r.seq {
		out = append(out, r.docs[id].clone())
	}
	return out
}

// Remove deletes a document from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	for i, other := range r.seq {
		if other == id {
			r.seq = append(r.seq[:i], r.seq[i+1:]...)
			break
		}
	}
}

// Transition moves a document to a new status, enforcing the state
// machine. reason is recorded on failure transitions.
func (r *Registry) Transition(id string, to Status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}

	allowed := false
	for _, next := range validTransitions[doc.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("document %s: invalid transition %s -> %s", id, doc.Status, to)
	}

	doc.Status = to
	doc.UpdatedAt = time.Now().UTC()
	if to == StatusFailed {
		doc.Error = reason
	}
	return nil
}

// SetStatementCount records the number of statements extracted for a
// document.
func (r *Registry) SetStatementCount(id string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.TotalStatements = n
		doc.UpdatedAt = time.Now().UTC()
	}
}

func (d *Document) clone() *Document {
	c := *d
	return &c
}
