package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/core/services"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{name: "empty", line: "", want: nil},
		{name: "spaces only", line: "   ", want: nil},
		{name: "words", line: "confirm abc def", want: []string{"confirm", "abc", "def"}},
		{name: "repeated spaces", line: "list   --type  new", want: []string{"list", "--type", "new"}},
		{name: "double quotes", line: `list --name "Ada Lovelace"`, want: []string{"list", "--name", "Ada Lovelace"}},
		{name: "single quotes", line: `list --name 'Ada L'`, want: []string{"list", "--name", "Ada L"}},
		{name: "empty quotes", line: `list --name ""`, want: []string{"list", "--name", ""}},
		{name: "other quote inside", line: `list --name "O'Brien"`, want: []string{"list", "--name", "O'Brien"}},
		{name: "unclosed", line: `list --name "Ada`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommandLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilter(t *testing.T) {
	t.Run("defaults to new", func(t *testing.T) {
		f, err := parseFilter("", "")
		require.NoError(t, err)
		assert.Equal(t, services.ByType(model.TypeNew), f)
	})

	t.Run("type", func(t *testing.T) {
		f, err := parseFilter("Confirmed", "")
		require.NoError(t, err)
		assert.Equal(t, services.ByType(model.TypeConfirmed), f)
	})

	t.Run("state", func(t *testing.T) {
		f, err := parseFilter("", "messaged")
		require.NoError(t, err)
		assert.Equal(t, services.ByState(model.StateMessaged), f)
	})

	t.Run("both", func(t *testing.T) {
		_, err := parseFilter("new", "viewed")
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := parseFilter("archived", "")
		assert.Error(t, err)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := parseFilter("", "read")
		assert.Error(t, err)
	})
}

func order(id, name, pickup string) model.PersistedSubmission {
	sub := model.Submission{
		SubmissionID:   id,
		SubmissionTime: "2024-05-01T10:00:00Z",
		LastUpdatedAt:  "2024-05-01T10:00:00Z",
		Questions: []model.Question{
			{ID: "q1", Name: model.CustomerNameLabel, Type: "ShortAnswer", Value: model.TextValue(name)},
			{ID: "q2", Name: model.PickupDateLabel, Type: "ShortAnswer", Value: model.TextValue(pickup)},
		},
	}
	return model.NewPersistedSubmission(sub)
}

func TestRenderGroups(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		renderGroups(&buf, services.ByType(model.TypeNew), nil)

		assert.Contains(t, buf.String(), "0 orders (type=new)")
		assert.Contains(t, buf.String(), "Nothing to show.")
	})

	t.Run("groups", func(t *testing.T) {
		a := order("sub-a", "Ada", "24/06/01")
		b := order("sub-b", "", "24/06/01")
		groups := []services.DateGroup{
			{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Submissions: []model.PersistedSubmission{a, b}},
		}

		var buf bytes.Buffer
		renderGroups(&buf, services.ByState(model.StateUnviewed), groups)
		out := buf.String()

		assert.Contains(t, out, "2 orders (state=unviewed)")
		assert.Contains(t, out, "Sat 01 Jun 2024")
		assert.Contains(t, out, "Ada")
		assert.Contains(t, out, "(no name)")
		assert.Contains(t, out, "sub-a")
		assert.Contains(t, out, "sub-b")
		assert.NotContains(t, out, "Nothing to show.")
	})
}

func TestDescribeOutcome(t *testing.T) {
	sub := order("sub-a", "Ada", "24/06/01")
	sub.Type = model.TypeConfirmed

	changed := describeOutcome("sub-a", &services.Outcome{Submission: sub, Changed: true, Removed: true})
	assert.Contains(t, changed, "✓ Ada sub-a")
	assert.Contains(t, changed, "confirmed/unviewed")
	assert.Contains(t, changed, "[removed from view]")

	same := describeOutcome("sub-a", &services.Outcome{Submission: sub})
	assert.Contains(t, same, "unchanged (confirmed/unviewed)")
	assert.NotContains(t, same, "removed")

	sub.Type = model.TypeNew
	added := describeOutcome("sub-a", &services.Outcome{Submission: sub, Changed: true, Added: true})
	assert.Contains(t, added, "[added to view]")
}

func newTestApp(t *testing.T, subs ...model.PersistedSubmission) *AppContext {
	t.Helper()

	store := db.NewMemoryDB()
	for i := range subs {
		_, err := store.Upsert(context.Background(), &subs[i])
		require.NoError(t, err)
	}

	bus := events.NewBus(10)
	t.Cleanup(bus.Close)

	logger := zap.NewNop()
	return &AppContext{
		Store:  store,
		Bus:    bus,
		Board:  services.NewBoard(store, bus, logger),
		Logger: logger,
		Ctx:    context.Background(),
	}
}

func TestTransitionCmd(t *testing.T) {
	t.Run("applies to every id", func(t *testing.T) {
		app := newTestApp(t, order("sub-a", "Ada", "24/06/01"), order("sub-b", "Bo", "24/06/02"))

		cmd := ConfirmCmd(app)
		require.NoError(t, cmd.RunE(cmd, []string{"sub-a", "sub-b"}))

		stored, err := app.Store.FindByType(context.Background(), model.TypeConfirmed)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("unknown id fails without stopping the rest", func(t *testing.T) {
		app := newTestApp(t, order("sub-a", "Ada", "24/06/01"))

		cmd := DeleteCmd(app)
		err := cmd.RunE(cmd, []string{"missing", "sub-a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2")

		stored, err := app.Store.FindByType(context.Background(), model.TypeDeleted)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "sub-a", stored[0].SubmissionID)
	})

	t.Run("message only applies to new orders", func(t *testing.T) {
		confirmed := order("sub-a", "Ada", "24/06/01")
		confirmed.Type = model.TypeConfirmed
		app := newTestApp(t, confirmed)

		cmd := MessageCmd(app)
		require.NoError(t, cmd.RunE(cmd, []string{"sub-a"}))

		stored, err := app.Store.FindByState(context.Background(), model.StateMessaged)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestRunSession(t *testing.T) {
	app := newTestApp(t, order("sub-a", "Ada", "24/06/01"))
	commands := map[string]*cobra.Command{
		"list":    ListCmd(app),
		"confirm": ConfirmCmd(app),
	}

	input := strings.Join([]string{
		"",
		"show",
		"list --type new",
		"bogus",
		`confirm "sub-a"`,
		"list --name 'nobody'",
		"exit",
		"confirm never-reached",
	}, "\n")

	require.NoError(t, runSession(app, strings.NewReader(input), commands))

	stored, err := app.Store.FindByType(context.Background(), model.TypeConfirmed)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	assert.Equal(t, services.ByType(model.TypeNew).WithName("nobody"), app.Board.Filter())
	assert.Empty(t, app.Board.View())
}

func TestRunInSessionResetsFlags(t *testing.T) {
	app := newTestApp(t, order("sub-a", "Ada", "24/06/01"))
	cmd := ListCmd(app)

	require.NoError(t, runInSession(cmd, []string{"--state", "unviewed"}))
	assert.Equal(t, services.ByState(model.StateUnviewed), app.Board.Filter())

	require.NoError(t, runInSession(cmd, nil))
	assert.Equal(t, services.ByType(model.TypeNew), app.Board.Filter())

	assert.Error(t, runInSession(cmd, []string{"--colour"}))
}
