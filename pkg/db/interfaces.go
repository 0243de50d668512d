package db

import (
	"context"
	"errors"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

// ErrNotFound is returned by Update when no document has the given collection ID
var ErrNotFound = errors.New("document not found")

// MutateFunc changes a submission in place and reports whether it changed.
// Returning false skips the write.
type MutateFunc func(sub *model.PersistedSubmission) bool

// SubmissionReader defines the single-field queries over persisted submissions
type SubmissionReader interface {
	FindByType(ctx context.Context, t model.SubmissionType) ([]model.PersistedSubmission, error)
	FindByState(ctx context.Context, s model.SubmissionState) ([]model.PersistedSubmission, error)
	FindBySubmissionIDs(ctx context.Context, ids []string) ([]model.PersistedSubmission, error)
}

// SubmissionWriter defines document writes.
// Upsert writes the whole document, keyed by CollectionID when set. Otherwise it inserts and stores the
// new ID back into sub; if the submission ID is already stored, only the content fields are refreshed.
// Update runs mutate against the current stored document and writes the result in one transaction.
type SubmissionWriter interface {
	Upsert(ctx context.Context, sub *model.PersistedSubmission) (created bool, err error)
	Update(ctx context.Context, collectionID string, mutate MutateFunc) (*model.PersistedSubmission, error)
}

// SubmissionStore defines all persisted-submission operations.
// Both the in-memory MemoryDB and postgres.DB implement this interface.
type SubmissionStore interface {
	SubmissionReader
	SubmissionWriter
}
