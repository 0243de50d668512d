package gmailclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

func order(id, name, pickup string) model.PersistedSubmission {
	questions := []model.Question{{ID: "q1", Name: model.CustomerNameLabel, Value: model.TextValue(name)}}
	if pickup != "" {
		questions = append(questions, model.Question{ID: "q2", Name: model.PickupDateLabel, Value: model.TextValue(pickup)})
	}
	return model.NewPersistedSubmission(model.Submission{SubmissionID: id, Questions: questions})
}

func TestBuildDigest(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	subs := []model.PersistedSubmission{
		order("s2", "Bella", "25/06/20"),
		order("s1", "Anna", "25/06/10"),
		order("s3", "", ""),
	}

	subject, body := BuildDigest(subs, now)

	assert.Equal(t, "3 new cake orders", subject)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "3 new cake orders received:", lines[0])
	assert.Equal(t, "- (no name), pickup no pickup date (submission s3)", lines[2])
	assert.Equal(t, "- Anna, pickup Tue 10 Jun 2025 (submission s1)", lines[3])
	assert.Equal(t, "- Bella, pickup Fri 20 Jun 2025 (submission s2)", lines[4])
}

func TestBuildDigest_SingleOrder(t *testing.T) {
	subject, _ := BuildDigest([]model.PersistedSubmission{order("s1", "Anna", "25/06/10")}, time.Now())
	assert.Equal(t, "1 new cake order", subject)
}

func TestNotifyNewSubmissions_SendsDigest(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/send"), r.URL.Path)

		var msg struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		decoded, err := base64.URLEncoding.DecodeString(msg.Raw)
		require.NoError(t, err)
		raw = string(decoded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	client, err := newClient(context.Background(), srv.Client(), "owner@example.com", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	err = client.NotifyNewSubmissions(context.Background(), []model.PersistedSubmission{order("s1", "Anna", "25/06/10")})
	require.NoError(t, err)

	assert.Contains(t, raw, "To: owner@example.com")
	assert.Contains(t, raw, "Subject: 1 new cake order")
	assert.Contains(t, raw, "Anna")
}

func TestNotifyNewSubmissions_NothingToSend(t *testing.T) {
	client := &Client{}
	assert.NoError(t, client.NotifyNewSubmissions(context.Background(), nil))
}
