// Package library persists the document collection to disk. Each
// document gets its own directory keyed by a storage hash, holding the
// original source text, the full statement lineage and the document's
// custom column definitions. A single manifest file indexes the
// collection.
package library

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coolbeans/statext/pkg/document"
)

const (
	manifestFileName   = "library.json"
	documentsDir       = "documents"
	sourceFileName     = "source.txt"
	statementsFileName = "statements.json"
	columnsFileName    = "columns.json"
	manifestVersion    = "1.0.0"
)

// Manifest is the on-disk index of the library.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Documents []*Entry  `json:"documents"`
}

// Entry is one document's manifest record.
type Entry struct {
	Document    *document.Document `json:"document"`
	StorageHash string             `json:"storage_hash"`
}

// Library manages a persistent collection of ingested documents.
type Library struct {
	mu       sync.RWMutex
	path     string
	manifest *Manifest
}

// Init creates a new library at the given path.
func Init(libraryPath string) (*Library, error) {
	documentsPath := filepath.Join(libraryPath, documentsDir)
	if err := os.MkdirAll(documentsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	manifest := &Manifest{
		Version:   manifestVersion,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Documents: []*Entry{},
	}

	lib := &Library{
		path:     libraryPath,
		manifest: manifest,
	}

	if err := lib.saveManifest(); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}

	return lib, nil
}

// Open loads an existing library from disk.
func Open(libraryPath string) (*Library, error) {
	manifestPath := filepath.Join(libraryPath, manifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse library manifest: %w", err)
	}

	return &Library{
		path:     libraryPath,
		manifest: &manifest,
	}, nil
}

// OpenOrInit opens a library, creating it when the manifest does not
// exist yet.
func OpenOrInit(libraryPath string) (*Library, error) {
	lib, err := Open(libraryPath)
	if err == nil {
		return lib, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Init(libraryPath)
	}
	return nil, err
}

// SaveDocument records a document and its source text in the library.
// Saving an already known document updates its manifest entry.
func (lib *Library) SaveDocument(doc *document.Document, sourceText []byte) (*Entry, error) {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("document ID is required")
	}

	storageHash := hashDocumentID(doc.ID)
	if sourceText != nil {
		if err := lib.writeDocumentFile(storageHash, sourceFileName, sourceText); err != nil {
			return nil, fmt.Errorf("failed to save source: %w", err)
		}
	}

	entry := &Entry{Document: doc, StorageHash: storageHash}
	lib.upsertEntry(entry)

	if err := lib.saveManifest(); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}

	return entry, nil
}

// RemoveDocument deletes a document and its files from the library.
func (lib *Library) RemoveDocument(documentID string) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return fmt.Errorf("document not found: %s", documentID)
	}

	documentPath := filepath.Join(lib.path, documentsDir, entry.StorageHash)
	if err := os.RemoveAll(documentPath); err != nil {
		return fmt.Errorf("failed to remove document files: %w", err)
	}

	lib.removeEntry(documentID)

	if err := lib.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	return nil
}

// GetDocument returns the manifest entry for a document.
func (lib *Library) GetDocument(documentID string) *Entry {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.findEntryUnsafe(documentID)
}

// ListDocuments returns all entries, sorted by upload time then ID.
func (lib *Library) ListDocuments() []*Entry {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	result := make([]*Entry, len(lib.manifest.Documents))
	copy(result, lib.manifest.Documents)

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Document, result[j].Document
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.Before(b.UploadedAt)
		}
		return a.ID < b.ID
	})

	return result
}

// LoadSourceText returns the original source text for a document.
func (lib *Library) LoadSourceText(documentID string) ([]byte, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	entry := lib.findEntryUnsafe(documentID)
	if entry == nil {
		return nil, fmt.Errorf("document not found: %s", documentID)
	}

	return lib.readDocumentFile(entry.StorageHash, sourceFileName)
}

// Path returns the library's root directory.
func (lib *Library) Path() string {
	return lib.path
}

// --- Internal helpers ---

func (lib *Library) findEntryUnsafe(documentID string) *Entry {
	for _, entry := range lib.manifest.Documents {
		if entry.Document.ID == documentID {
			return entry
		}
	}
	return nil
}

func (lib *Library) upsertEntry(entry *Entry) {
	for i, existing := range lib.manifest.Documents {
		if existing.Document.ID == entry.Document.ID {
			lib.manifest.Documents[i] = entry
			lib.manifest.UpdatedAt = time.Now().UTC()
			return
		}
	}
	lib.manifest.Documents = append(lib.manifest.Documents, entry)
	lib.manifest.UpdatedAt = time.Now().UTC()
}

func (lib *Library) removeEntry(documentID string) {
	filtered := make([]*Entry, 0, len(lib.manifest.Documents))
	for _, entry := range lib.manifest.Documents {
		if entry.Document.ID != documentID {
			filtered = append(filtered, entry)
		}
	}
	lib.manifest.Documents = filtered
	lib.manifest.UpdatedAt = time.Now().UTC()
}

func (lib *Library) saveManifest() error {
	manifestPath := filepath.Join(lib.path, manifestFileName)
	data, err := json.MarshalIndent(lib.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(manifestPath, data, 0644)
}

func (lib *Library) documentDir(storageHash string) string {
	return filepath.Join(lib.path, documentsDir, storageHash)
}

func (lib *Library) writeDocumentFile(storageHash string, fileName string, data []byte) error {
	dirPath := lib.documentDir(storageHash)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dirPath, fileName), data, 0644)
}

func (lib *Library) readDocumentFile(storageHash string, fileName string) ([]byte, error) {
	return os.ReadFile(filepath.Join(lib.documentDir(storageHash), fileName))
}

func hashDocumentID(documentID string) string {
	hash := sha256.Sum256([]byte(documentID))
	return fmt.Sprintf("%x", hash)
}
