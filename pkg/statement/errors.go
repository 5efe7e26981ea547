package statement

import "errors"

// Sentinel errors shared by the statement store and the edit engine.
// Callers match them with errors.Is; operations wrap them with context
// via fmt.Errorf("...: %w", err).
var (
	// ErrNotFound indicates a statement, document or column id that does
	// not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRange indicates a reorder target or split range outside
	// the valid bounds.
	ErrInvalidRange = errors.New("invalid range")

	// ErrOverlappingRanges indicates split ranges that overlap each other.
	ErrOverlappingRanges = errors.New("overlapping ranges")

	// ErrInsufficientMembers indicates a merge or group below the
	// two-member minimum.
	ErrInsufficientMembers = errors.New("insufficient members")

	// ErrCrossDocument indicates an operation spanning statements from
	// different documents.
	ErrCrossDocument = errors.New("statements belong to different documents")

	// ErrInvalidColumn indicates a custom-field key with no matching
	// column definition while the store is in strict mode, or a malformed
	// column definition.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrSuperseded indicates an edit targeting a statement already
	// consumed by a previous split or merge.
	ErrSuperseded = errors.New("statement is superseded")

	// ErrSegmentationFailure indicates input from which no statements
	// could be extracted.
	ErrSegmentationFailure = errors.New("segmentation failure")
)
