package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

// MemoryDB is an in-process submission store. Every method holds one lock, so each
// call is atomic on its own the same way a single document transaction is.
type MemoryDB struct {
	mu             sync.RWMutex
	docs           map[string]model.PersistedSubmission // keyed by collection ID
	bySubmissionID map[string]string                    // submission ID -> collection ID
}

// NewMemoryDB creates an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		docs:           make(map[string]model.PersistedSubmission),
		bySubmissionID: make(map[string]string),
	}
}

// FindByType returns every submission with the given type, ordered by submission time
func (m *MemoryDB) FindByType(ctx context.Context, t model.SubmissionType) ([]model.PersistedSubmission, error) {
	return m.find(ctx, func(s model.PersistedSubmission) bool { return s.Type == t })
}

// FindByState returns every submission with the given state, ordered by submission time
func (m *MemoryDB) FindByState(ctx context.Context, st model.SubmissionState) ([]model.PersistedSubmission, error) {
	return m.find(ctx, func(s model.PersistedSubmission) bool { return s.State == st })
}

// FindBySubmissionIDs returns the stored submissions among ids. Unknown IDs are skipped.
func (m *MemoryDB) FindBySubmissionIDs(ctx context.Context, ids []string) ([]model.PersistedSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.PersistedSubmission, 0, len(ids))
	for _, id := range ids {
		collectionID, ok := m.bySubmissionID[id]
		if !ok {
			continue
		}
		result = append(result, copySubmission(m.docs[collectionID]))
	}
	return result, nil
}

// Upsert writes the whole document
func (m *MemoryDB) Upsert(ctx context.Context, sub *model.PersistedSubmission) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sub.SubmissionID == "" {
		return false, fmt.Errorf("submission has no submission ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.CollectionID != "" {
		if owner, ok := m.bySubmissionID[sub.SubmissionID]; ok && owner != sub.CollectionID {
			return false, fmt.Errorf("submission %s is already stored as %s", sub.SubmissionID, owner)
		}
		_, existed := m.docs[sub.CollectionID]
		m.docs[sub.CollectionID] = copySubmission(*sub)
		m.bySubmissionID[sub.SubmissionID] = sub.CollectionID
		return !existed, nil
	}

	// Insert of a submission that was stored concurrently: refresh content only
	if collectionID, ok := m.bySubmissionID[sub.SubmissionID]; ok {
		existing := m.docs[collectionID]
		existing.SubmissionTime = sub.SubmissionTime
		existing.LastUpdatedAt = sub.LastUpdatedAt
		existing.Questions = sub.Questions
		m.docs[collectionID] = copySubmission(existing)
		*sub = copySubmission(existing)
		return false, nil
	}

	sub.CollectionID = uuid.New().String()
	m.docs[sub.CollectionID] = copySubmission(*sub)
	m.bySubmissionID[sub.SubmissionID] = sub.CollectionID
	return true, nil
}

// Update applies mutate to the stored document under the write lock
func (m *MemoryDB) Update(ctx context.Context, collectionID string, mutate MutateFunc) (*model.PersistedSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection ID %s: %w", collectionID, ErrNotFound)
	}

	updated := copySubmission(existing)
	if mutate(&updated) {
		updated.CollectionID = collectionID
		m.docs[collectionID] = copySubmission(updated)
	}
	return &updated, nil
}

func (m *MemoryDB) find(ctx context.Context, match func(model.PersistedSubmission) bool) ([]model.PersistedSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []model.PersistedSubmission
	for _, doc := range m.docs {
		if match(doc) {
			result = append(result, copySubmission(doc))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmissionTime < result[j].SubmissionTime
	})
	return result, nil
}

// copySubmission detaches the question slice so callers cannot alias stored state
func copySubmission(s model.PersistedSubmission) model.PersistedSubmission {
	if s.Questions != nil {
		questions := make([]model.Question, len(s.Questions))
		copy(questions, s.Questions)
		s.Questions = questions
	}
	return s
}
