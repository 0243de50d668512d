package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
)

func TestGroupByPickupDate_DescendingByDate(t *testing.T) {
	subs := []model.PersistedSubmission{
		persisted(submission("a", "Anna", "25/06/01", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("b", "Bella", "25/06/03", "2025-05-02T10:00:00Z"), model.TypeNew, model.StateUnviewed),
	}

	groups := GroupByPickupDate(subs, time.Now())

	require.Len(t, groups, 2)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), groups[0].Date)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), groups[1].Date)
	assert.Equal(t, "b", groups[0].Submissions[0].SubmissionID)
	assert.Equal(t, "a", groups[1].Submissions[0].SubmissionID)
}

func TestGroupByPickupDate_NewestSubmissionFirstWithinDate(t *testing.T) {
	subs := []model.PersistedSubmission{
		persisted(submission("older", "Anna", "25/06/01", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("newer", "Bella", "25/06/01", "2025-05-03T10:00:00Z"), model.TypeNew, model.StateUnviewed),
	}

	groups := GroupByPickupDate(subs, time.Now())

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Submissions, 2)
	assert.Equal(t, "newer", groups[0].Submissions[0].SubmissionID)
	assert.Equal(t, "older", groups[0].Submissions[1].SubmissionID)
}

func TestGroupByPickupDate_MissingOrBadDateFallsBackToToday(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
	subs := []model.PersistedSubmission{
		persisted(submission("none", "Anna", "", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("bad", "Bella", "next tuesday", "2025-05-02T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("dated", "Cara", "25/06/05", "2025-05-03T10:00:00Z"), model.TypeNew, model.StateUnviewed),
	}

	groups := GroupByPickupDate(subs, now)

	require.Len(t, groups, 2)
	assert.Equal(t, "dated", groups[0].Submissions[0].SubmissionID)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), groups[1].Date)
	assert.Len(t, groups[1].Submissions, 2)
}

func TestGroupByPickupDate_Empty(t *testing.T) {
	assert.Empty(t, GroupByPickupDate(nil, time.Now()))
}

func TestFilterByName_CaseInsensitiveSubstring(t *testing.T) {
	subs := []model.PersistedSubmission{
		persisted(submission("a", "AnnaB", "", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("b", "Bella", "", "2025-05-02T10:00:00Z"), model.TypeNew, model.StateUnviewed),
	}

	filtered := FilterByName(subs, "anna")

	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].SubmissionID)
}

func TestFilterByName_EmptyNeedleReturnsAll(t *testing.T) {
	subs := []model.PersistedSubmission{
		persisted(submission("a", "AnnaB", "", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("b", "Bella", "", "2025-05-02T10:00:00Z"), model.TypeNew, model.StateUnviewed),
	}

	assert.Len(t, FilterByName(subs, ""), 2)
	assert.Len(t, FilterByName(subs, "   "), 2)
}

func TestFilterByName_NoNameQuestion(t *testing.T) {
	sub := model.NewPersistedSubmission(model.Submission{SubmissionID: "x"})

	assert.Empty(t, FilterByName([]model.PersistedSubmission{sub}, "anna"))
}

func TestListByTypeAndState(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()

	for _, p := range []model.PersistedSubmission{
		persisted(submission("a", "Anna", "", "2025-05-01T10:00:00Z"), model.TypeNew, model.StateUnviewed),
		persisted(submission("b", "Bella", "", "2025-05-02T10:00:00Z"), model.TypeConfirmed, model.StateMessaged),
		persisted(submission("c", "Cara", "", "2025-05-03T10:00:00Z"), model.TypeConfirmed, model.StateViewed),
	} {
		_, err := store.Upsert(ctx, &p)
		require.NoError(t, err)
	}

	confirmed, err := ListByType(ctx, store, model.TypeConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	messaged, err := ListByState(ctx, store, model.StateMessaged)
	require.NoError(t, err)
	require.Len(t, messaged, 1)
	assert.Equal(t, "b", messaged[0].SubmissionID)

	_, err = ListByType(ctx, store, "archived")
	assert.Error(t, err)

	_, err = ListByState(ctx, store, "read")
	assert.Error(t, err)
}
