package models

import "errors"

// Error taxonomy. Input errors go straight back to the caller, transient
// dependency errors are retried inside the embedding client, state errors
// tell the operator which setup step to re-run.
var (
	// ErrInvalidQuery is a caller input error, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDocumentNotFound means the source path does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrExtraction means a page could be neither text-extracted nor rendered.
	ErrExtraction = errors.New("extraction failed")

	// ErrModelMismatch means the index was built with a different embedding
	// model than the one configured now. Re-ingest or fix the config.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrEmbeddingUnavailable means the embedding service stayed unreachable
	// after bounded retries.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable means the index storage could not be opened.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexEmpty means no chunks have been ingested yet.
	ErrIndexEmpty = errors.New("vector index is empty")
)
