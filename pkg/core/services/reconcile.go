package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/clients/filloutclient"
	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
	"github.com/jakechorley/cake-orders/pkg/metrics"
)

// SubmissionFetcher defines the operation needed to read the remote submission list
type SubmissionFetcher interface {
	ListSubmissions(ctx context.Context) (*filloutclient.FetchResult, error)
}

// NewSubmissionNotifier is told about submissions seen for the first time in a sync pass
type NewSubmissionNotifier interface {
	NotifyNewSubmissions(ctx context.Context, subs []model.PersistedSubmission) error
}

// EventPublisher defines the operation needed to announce changes
type EventPublisher interface {
	Publish(event events.Event)
}

// SyncResult summarises one fetch-and-reconcile pass
type SyncResult struct {
	Fetched  int
	Inserted []model.PersistedSubmission
	Updated  []model.PersistedSubmission
	Rejected []filloutclient.Rejected
	Failed   []*model.PersistenceError
}

// IngestResult is the outcome of reconciling a single pushed submission
type IngestResult struct {
	Submission model.PersistedSubmission
	Created    bool
}

// Reconcile merges remote submissions into persisted ones, joined on submissionId.
// Known records get their content fields refreshed and keep their workflow fields, collection ID
// and operator answers. Unknown records start as new/unviewed with no collection ID.
// Every record carries the operator questions.
// Persisted records without a remote counterpart are not returned.
// When remote holds the same submissionId twice, the later lastUpdatedAt wins.
func Reconcile(remote []model.Submission, persisted []model.PersistedSubmission) []model.PersistedSubmission {
	bySubmissionID := make(map[string]model.PersistedSubmission, len(persisted))
	for _, p := range persisted {
		bySubmissionID[p.SubmissionID] = p
	}

	latest := make(map[string]model.Submission, len(remote))
	order := make([]string, 0, len(remote))
	for _, r := range remote {
		existing, seen := latest[r.SubmissionID]
		if !seen {
			order = append(order, r.SubmissionID)
		}
		if !seen || updatedAfter(r, existing) {
			latest[r.SubmissionID] = r
		}
	}

	result := make([]model.PersistedSubmission, 0, len(order))
	for _, id := range order {
		r := latest[id]
		p, ok := bySubmissionID[id]
		if !ok {
			r.Questions = model.WithOperatorQuestions(r.Questions)
			result = append(result, model.NewPersistedSubmission(r))
			continue
		}
		p.SubmissionTime = r.SubmissionTime
		p.LastUpdatedAt = r.LastUpdatedAt
		p.Questions = model.MergeOperatorQuestions(r.Questions, p.Questions)
		result = append(result, p)
	}
	return result
}

// SyncSubmissions fetches every remote submission, reconciles them against the store and writes each record.
// A failed write is reported in the result and does not stop the others. A fetch failure aborts the pass.
// notifier may be nil.
func SyncSubmissions(
	ctx context.Context,
	fetcher SubmissionFetcher,
	store db.SubmissionStore,
	publisher EventPublisher,
	notifier NewSubmissionNotifier,
	cfg *config.Config,
	logger *zap.Logger,
) (*SyncResult, error) {
	logger.Info("Starting submission sync")

	// Step 1: Fetch remote submissions
	fetched, err := fetcher.ListSubmissions(ctx)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("fetch_failed").Inc()
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	metrics.SubmissionsRejectedTotal.Add(float64(len(fetched.Rejected)))
	logger.Info("Fetched submissions",
		zap.Int("count", len(fetched.Submissions)),
		zap.Int("rejected", len(fetched.Rejected)))

	// Step 2: Load persisted records for the fetched IDs
	ids := make([]string, 0, len(fetched.Submissions))
	for _, s := range fetched.Submissions {
		ids = append(ids, s.SubmissionID)
	}
	persisted, err := store.FindBySubmissionIDs(ctx, ids)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("load_failed").Inc()
		return nil, fmt.Errorf("failed to load persisted submissions: %w", err)
	}
	logger.Debug("Loaded persisted submissions", zap.Int("count", len(persisted)))

	// Step 3: Reconcile and write
	reconciled := Reconcile(fetched.Submissions, persisted)
	result := writeAll(ctx, store, reconciled, cfg.Sync.MaxConcurrentWrites, logger)
	result.Fetched = len(fetched.Submissions)
	result.Rejected = fetched.Rejected

	for _, sub := range append(append([]model.PersistedSubmission{}, result.Inserted...), result.Updated...) {
		sub := sub
		publisher.Publish(events.Event{
			Type:         events.EventSubmissionChanged,
			SubmissionID: sub.SubmissionID,
			CollectionID: sub.CollectionID,
			Submission:   &sub,
			Source:       "sync",
		})
	}

	// Step 4: Tell the operator about new orders
	if notifier != nil && len(result.Inserted) > 0 {
		if err := notifier.NotifyNewSubmissions(ctx, result.Inserted); err != nil {
			logger.Warn("Failed to send new submission notification", zap.Error(err))
		}
	}

	outcome := "ok"
	if len(result.Failed) > 0 {
		outcome = "partial"
	}
	metrics.SyncRunsTotal.WithLabelValues(outcome).Inc()

	publisher.Publish(events.Event{
		Type:   events.EventSyncCompleted,
		Source: "sync",
		Detail: map[string]any{
			"fetched":  result.Fetched,
			"inserted": len(result.Inserted),
			"updated":  len(result.Updated),
			"rejected": len(result.Rejected),
			"failed":   len(result.Failed),
		},
	})

	logger.Info("Submission sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", len(result.Inserted)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// IngestSubmission reconciles and writes one submission, e.g. one delivered by webhook
func IngestSubmission(
	ctx context.Context,
	store db.SubmissionStore,
	publisher EventPublisher,
	sub model.Submission,
	logger *zap.Logger,
) (*IngestResult, error) {
	if sub.SubmissionID == "" {
		return nil, &model.DecodeError{Msg: "submission has no submissionId"}
	}

	persisted, err := store.FindBySubmissionIDs(ctx, []string{sub.SubmissionID})
	if err != nil {
		return nil, &model.PersistenceError{SubmissionID: sub.SubmissionID, Err: err}
	}

	record := Reconcile([]model.Submission{sub}, persisted)[0]
	created, err := store.Upsert(ctx, &record)
	if err != nil {
		metrics.SubmissionsWrittenTotal.WithLabelValues("failed").Inc()
		return nil, &model.PersistenceError{SubmissionID: sub.SubmissionID, Err: err}
	}
	metrics.SubmissionsWrittenTotal.WithLabelValues(writeOutcome(created)).Inc()

	logger.Info("Ingested submission",
		zap.String("submission_id", record.SubmissionID),
		zap.String("collection_id", record.CollectionID),
		zap.Bool("created", created))

	publisher.Publish(events.Event{
		Type:         events.EventSubmissionChanged,
		SubmissionID: record.SubmissionID,
		CollectionID: record.CollectionID,
		Submission:   &record,
		Source:       "webhook",
	})

	return &IngestResult{Submission: record, Created: created}, nil
}

// writeAll upserts every record with at most limit writes in flight
func writeAll(ctx context.Context, store db.SubmissionWriter, records []model.PersistedSubmission, limit int, logger *zap.Logger) *SyncResult {
	if limit <= 0 {
		limit = config.DefaultMaxConcurrentWrites
	}

	var (
		mu     sync.Mutex
		result = &SyncResult{}
		g      errgroup.Group
	)
	g.SetLimit(limit)

	for _, record := range records {
		record := record
		g.Go(func() error {
			created, err := store.Upsert(ctx, &record)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				logger.Error("Failed to write submission",
					zap.String("submission_id", record.SubmissionID),
					zap.Error(err))
				metrics.SubmissionsWrittenTotal.WithLabelValues("failed").Inc()
				result.Failed = append(result.Failed, &model.PersistenceError{SubmissionID: record.SubmissionID, Err: err})
				return nil
			}

			metrics.SubmissionsWrittenTotal.WithLabelValues(writeOutcome(created)).Inc()
			if created {
				result.Inserted = append(result.Inserted, record)
			} else {
				result.Updated = append(result.Updated, record)
			}
			return nil
		})
	}

	// Every goroutine reports its failure in result and returns nil
	_ = g.Wait()
	return result
}

func writeOutcome(created bool) string {
	if created {
		return "inserted"
	}
	return "updated"
}

// updatedAfter reports whether a was updated after b. Unparseable timestamps compare as strings.
func updatedAfter(a, b model.Submission) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a.LastUpdatedAt)
	tb, errB := time.Parse(time.RFC3339Nano, b.LastUpdatedAt)
	if errA != nil || errB != nil {
		return a.LastUpdatedAt > b.LastUpdatedAt
	}
	return ta.After(tb)
}
