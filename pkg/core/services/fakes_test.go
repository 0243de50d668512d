package services

import (
	"context"
	"errors"
	"sync"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/clients/filloutclient"
	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
)

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// mockFetcher returns a canned fetch result
type mockFetcher struct {
	result *filloutclient.FetchResult
	err    error
}

func (m *mockFetcher) ListSubmissions(ctx context.Context) (*filloutclient.FetchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockNotifier records the submissions it was told about
type mockNotifier struct {
	notified []model.PersistedSubmission
	err      error
}

func (m *mockNotifier) NotifyNewSubmissions(ctx context.Context, subs []model.PersistedSubmission) error {
	m.notified = append(m.notified, subs...)
	return m.err
}

// failingStore wraps a MemoryDB and fails writes for chosen submission IDs
type failingStore struct {
	*db.MemoryDB
	failUpsert map[string]bool
	failFind   bool
}

func (f *failingStore) Upsert(ctx context.Context, sub *model.PersistedSubmission) (bool, error) {
	if f.failUpsert[sub.SubmissionID] {
		return false, errors.New("connection reset")
	}
	return f.MemoryDB.Upsert(ctx, sub)
}

func (f *failingStore) FindBySubmissionIDs(ctx context.Context, ids []string) ([]model.PersistedSubmission, error) {
	if f.failFind {
		return nil, errors.New("connection refused")
	}
	return f.MemoryDB.FindBySubmissionIDs(ctx, ids)
}

func testConfig() *config.Config {
	return &config.Config{Sync: config.SyncConfig{Schedule: "FREQ=MINUTELY;INTERVAL=15", MaxConcurrentWrites: 2}}
}

func submission(id, name, pickup, submitted string) model.Submission {
	questions := []model.Question{
		{ID: "q1", Name: model.CustomerNameLabel, Type: "ShortAnswer", Value: model.TextValue(name)},
	}
	if pickup != "" {
		questions = append(questions, model.Question{ID: "q2", Name: model.PickupDateLabel, Type: "ShortAnswer", Value: model.TextValue(pickup)})
	}
	return model.Submission{
		SubmissionID:   id,
		SubmissionTime: submitted,
		LastUpdatedAt:  submitted,
		Questions:      questions,
	}
}

func persisted(sub model.Submission, t model.SubmissionType, s model.SubmissionState) model.PersistedSubmission {
	p := model.NewPersistedSubmission(sub)
	p.Type = t
	p.State = s
	return p
}
