package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
)

// DateGroup is the set of submissions sharing a pickup date
type DateGroup struct {
	Date        time.Time
	Submissions []model.PersistedSubmission
}

// ListByType returns the persisted submissions with the given type
func ListByType(ctx context.Context, store db.SubmissionReader, t model.SubmissionType) ([]model.PersistedSubmission, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid submission type %q", t)
	}
	subs, err := store.FindByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s submissions: %w", t, err)
	}
	return subs, nil
}

// ListByState returns the persisted submissions with the given state
func ListByState(ctx context.Context, store db.SubmissionReader, s model.SubmissionState) ([]model.PersistedSubmission, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid submission state %q", s)
	}
	subs, err := store.FindByState(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s submissions: %w", s, err)
	}
	return subs, nil
}

// FilterByName keeps the submissions whose customer name contains needle, ignoring case.
// An empty needle returns subs unchanged.
func FilterByName(subs []model.PersistedSubmission, needle string) []model.PersistedSubmission {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return subs
	}

	filtered := make([]model.PersistedSubmission, 0, len(subs))
	for _, s := range subs {
		if strings.Contains(strings.ToLower(s.CustomerName()), needle) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// GroupByPickupDate buckets submissions by pickup date, latest date first.
// Within a bucket the most recently submitted comes first.
// Submissions without a readable pickup date are bucketed under the day of now.
func GroupByPickupDate(subs []model.PersistedSubmission, now time.Time) []DateGroup {
	buckets := make(map[int64]*DateGroup)
	for _, s := range subs {
		date := s.PickupDateOr(now)
		group, ok := buckets[date.Unix()]
		if !ok {
			group = &DateGroup{Date: date}
			buckets[date.Unix()] = group
		}
		group.Submissions = append(group.Submissions, s)
	}

	groups := make([]DateGroup, 0, len(buckets))
	for _, group := range buckets {
		sort.SliceStable(group.Submissions, func(i, j int) bool {
			return submittedAfter(group.Submissions[i], group.Submissions[j])
		})
		groups = append(groups, *group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date)
	})
	return groups
}

func submittedAfter(a, b model.PersistedSubmission) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a.SubmissionTime)
	tb, errB := time.Parse(time.RFC3339Nano, b.SubmissionTime)
	if errA != nil || errB != nil || ta.Equal(tb) {
		if a.SubmissionTime != b.SubmissionTime {
			return a.SubmissionTime > b.SubmissionTime
		}
		return a.SubmissionID < b.SubmissionID
	}
	return ta.After(tb)
}
