package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
	"github.com/jakechorley/cake-orders/pkg/metrics"
)

// Filter selects what the board displays: exactly one of Type or State, plus an optional name needle
type Filter struct {
	Type  model.SubmissionType
	State model.SubmissionState
	Name  string
}

// ByType returns a filter on the lifecycle axis
func ByType(t model.SubmissionType) Filter {
	return Filter{Type: t}
}

// ByState returns a filter on the attention axis
func ByState(s model.SubmissionState) Filter {
	return Filter{State: s}
}

// WithName returns a copy of f that also filters on customer name
func (f Filter) WithName(needle string) Filter {
	f.Name = needle
	return f
}

func (f Filter) validate() error {
	switch {
	case f.Type != "" && f.State != "":
		return errors.New("filter must select a type or a state, not both")
	case f.Type != "":
		if !f.Type.IsValid() {
			return fmt.Errorf("invalid submission type %q", f.Type)
		}
	case f.State != "":
		if !f.State.IsValid() {
			return fmt.Errorf("invalid submission state %q", f.State)
		}
	default:
		return errors.New("filter must select a type or a state")
	}
	return nil
}

// Matches reports whether sub still belongs to the filtered view. The name needle is not checked.
func (f Filter) Matches(sub model.PersistedSubmission) bool {
	if f.Type != "" {
		return sub.Type == f.Type
	}
	return sub.State == f.State
}

func (f Filter) matchesName(sub model.PersistedSubmission) bool {
	return len(FilterByName([]model.PersistedSubmission{sub}, f.Name)) == 1
}

func (f Filter) String() string {
	if f.Type != "" {
		return "type=" + string(f.Type)
	}
	return "state=" + string(f.State)
}

// Outcome reports the result of a transition. Changed, Removed and Added are decided together
// with the write, so a caller never observes one without the others.
type Outcome struct {
	Submission model.PersistedSubmission
	Changed    bool
	Removed    bool
	Added      bool
}

// Board owns the operator's working set of submissions and the grouped view being displayed
type Board struct {
	store     db.SubmissionStore
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	locks     *keyedMutex

	mu      sync.RWMutex
	working map[string]model.PersistedSubmission // keyed by submission ID
	filter  Filter
	shown   bool
	view    []DateGroup
}

// NewBoard creates an empty board
func NewBoard(store db.SubmissionStore, publisher EventPublisher, logger *zap.Logger) *Board {
	return &Board{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		locks:     newKeyedMutex(),
		working:   make(map[string]model.PersistedSubmission),
	}
}

// Show queries the store with f, filters by name and groups by pickup date.
// The result replaces the working set and the displayed view.
func (b *Board) Show(ctx context.Context, f Filter) ([]DateGroup, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var (
		subs []model.PersistedSubmission
		err  error
	)
	if f.Type != "" {
		subs, err = ListByType(ctx, b.store, f.Type)
	} else {
		subs, err = ListByState(ctx, b.store, f.State)
	}
	if err != nil {
		return nil, err
	}

	subs = FilterByName(subs, f.Name)
	groups := GroupByPickupDate(subs, b.now())

	b.mu.Lock()
	defer b.mu.Unlock()

	b.working = make(map[string]model.PersistedSubmission, len(subs))
	for _, s := range subs {
		b.working[s.SubmissionID] = s
	}
	b.filter = f
	b.shown = true
	b.view = groups

	b.logger.Debug("Showing submissions",
		zap.String("filter", f.String()),
		zap.String("name", f.Name),
		zap.Int("count", len(subs)),
		zap.Int("groups", len(groups)))

	return copyGroups(groups), nil
}

// Load adds the given submissions to the working set without touching the view.
// It returns the IDs that were not found in the store.
func (b *Board) Load(ctx context.Context, ids ...string) ([]string, error) {
	subs, err := b.store.FindBySubmissionIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	found := make(map[string]bool, len(subs))
	for _, s := range subs {
		b.working[s.SubmissionID] = s
		found[s.SubmissionID] = true
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// View returns the grouped view currently displayed
func (b *Board) View() []DateGroup {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyGroups(b.view)
}

// Filter returns the filter of the last Show. It is the zero Filter before any Show.
func (b *Board) Filter() Filter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter
}

// Get returns a submission from the working set
func (b *Board) Get(submissionID string) (model.PersistedSubmission, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.working[submissionID]
	return sub, ok
}

// Confirm sets type to confirmed
func (b *Board) Confirm(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "confirm", submissionID, func(s *model.PersistedSubmission) bool {
		return setType(s, model.TypeConfirmed)
	})
}

// MarkViewed sets state to viewed unless the submission has already been messaged
func (b *Board) MarkViewed(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "mark_viewed", submissionID, func(s *model.PersistedSubmission) bool {
		if s.State == model.StateMessaged {
			return false
		}
		return setState(s, model.StateViewed)
	})
}

// MarkMessaged sets state to messaged, only for submissions whose type is new
func (b *Board) MarkMessaged(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "mark_messaged", submissionID, func(s *model.PersistedSubmission) bool {
		if s.Type != model.TypeNew {
			return false
		}
		return setState(s, model.StateMessaged)
	})
}

// MarkCompleted sets type to completed
func (b *Board) MarkCompleted(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "mark_completed", submissionID, func(s *model.PersistedSubmission) bool {
		return setType(s, model.TypeCompleted)
	})
}

// MarkDeleted sets type to deleted. The document is kept.
func (b *Board) MarkDeleted(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "mark_deleted", submissionID, func(s *model.PersistedSubmission) bool {
		return setType(s, model.TypeDeleted)
	})
}

// Undelete sets type back to new
func (b *Board) Undelete(ctx context.Context, submissionID string) (*Outcome, error) {
	return b.transition(ctx, "undelete", submissionID, func(s *model.PersistedSubmission) bool {
		return setType(s, model.TypeNew)
	})
}

// transition runs mutate as one read-modify-write of the stored document, then updates
// the working set and the view. Transitions on the same submission never overlap.
func (b *Board) transition(ctx context.Context, op, submissionID string, mutate db.MutateFunc) (*Outcome, error) {
	b.locks.Lock(submissionID)
	defer b.locks.Unlock(submissionID)

	current, ok := b.Get(submissionID)
	if !ok {
		metrics.TransitionsTotal.WithLabelValues(op, "not_found").Inc()
		b.logger.Warn("Transition on submission that is not loaded",
			zap.String("operation", op),
			zap.String("submission_id", submissionID))
		return nil, &model.NotFoundError{SubmissionID: submissionID}
	}

	changed := false
	updated, err := b.store.Update(ctx, current.CollectionID, func(s *model.PersistedSubmission) bool {
		changed = mutate(s)
		return changed
	})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(op, "error").Inc()
		if errors.Is(err, db.ErrNotFound) {
			return nil, &model.NotFoundError{SubmissionID: submissionID}
		}
		return nil, &model.PersistenceError{SubmissionID: submissionID, Err: err}
	}

	outcome := &Outcome{Submission: *updated, Changed: changed}

	b.mu.Lock()
	b.working[submissionID] = *updated
	if b.shown {
		if b.filter.Matches(*updated) {
			var found bool
			b.view, found = replaceInView(b.view, *updated)
			if !found && b.filter.matchesName(*updated) {
				b.view = insertIntoView(b.view, *updated, b.now())
				outcome.Added = true
			}
		} else {
			b.view, outcome.Removed = removeFromView(b.view, submissionID)
		}
	}
	b.mu.Unlock()

	result := "noop"
	if changed {
		result = "applied"
	}
	metrics.TransitionsTotal.WithLabelValues(op, result).Inc()

	b.logger.Info("Applied transition",
		zap.String("operation", op),
		zap.String("submission_id", submissionID),
		zap.String("type", string(updated.Type)),
		zap.String("state", string(updated.State)),
		zap.Bool("changed", changed),
		zap.Bool("removed_from_view", outcome.Removed),
		zap.Bool("added_to_view", outcome.Added))

	if changed {
		b.publisher.Publish(events.Event{
			Type:         events.EventSubmissionChanged,
			SubmissionID: submissionID,
			CollectionID: updated.CollectionID,
			Submission:   updated,
			Source:       op,
		})
	}
	if outcome.Removed {
		b.publisher.Publish(events.Event{
			Type:         events.EventSubmissionRemovedFromView,
			SubmissionID: submissionID,
			CollectionID: updated.CollectionID,
			Submission:   updated,
			Source:       op,
		})
	}
	if outcome.Added {
		b.publisher.Publish(events.Event{
			Type:         events.EventSubmissionAddedToView,
			SubmissionID: submissionID,
			CollectionID: updated.CollectionID,
			Submission:   updated,
			Source:       op,
		})
	}

	return outcome, nil
}

func setType(s *model.PersistedSubmission, t model.SubmissionType) bool {
	if s.Type == t {
		return false
	}
	s.Type = t
	return true
}

func setState(s *model.PersistedSubmission, st model.SubmissionState) bool {
	if s.State == st {
		return false
	}
	s.State = st
	return true
}

// removeFromView drops the submission from its group, and the group once it is empty
func removeFromView(view []DateGroup, submissionID string) ([]DateGroup, bool) {
	for gi, group := range view {
		for si, s := range group.Submissions {
			if s.SubmissionID != submissionID {
				continue
			}
			members := append(append([]model.PersistedSubmission{}, group.Submissions[:si]...), group.Submissions[si+1:]...)
			out := append([]DateGroup{}, view[:gi]...)
			if len(members) > 0 {
				out = append(out, DateGroup{Date: group.Date, Submissions: members})
			}
			return append(out, view[gi+1:]...), true
		}
	}
	return view, false
}

func replaceInView(view []DateGroup, sub model.PersistedSubmission) ([]DateGroup, bool) {
	for gi, group := range view {
		for si, s := range group.Submissions {
			if s.SubmissionID == sub.SubmissionID {
				view[gi].Submissions[si] = sub
				return view, true
			}
		}
	}
	return view, false
}

// insertIntoView puts sub into its pickup-date group, keeping the ordering GroupByPickupDate produces
func insertIntoView(view []DateGroup, sub model.PersistedSubmission, now time.Time) []DateGroup {
	date := sub.PickupDateOr(now)
	for gi, group := range view {
		if !group.Date.Equal(date) {
			continue
		}
		members := append(append([]model.PersistedSubmission{}, group.Submissions...), sub)
		sort.SliceStable(members, func(i, j int) bool {
			return submittedAfter(members[i], members[j])
		})
		view[gi].Submissions = members
		return view
	}

	out := append(append([]DateGroup{}, view...), DateGroup{Date: date, Submissions: []model.PersistedSubmission{sub}})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func copyGroups(groups []DateGroup) []DateGroup {
	out := make([]DateGroup, len(groups))
	for i, g := range groups {
		out[i] = DateGroup{
			Date:        g.Date,
			Submissions: append([]model.PersistedSubmission(nil), g.Submissions...),
		}
	}
	return out
}
