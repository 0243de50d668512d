package filloutclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/core/model"
)

func submissionJSON(id string) string {
	return fmt.Sprintf(`{
		"submissionId": %q,
		"submissionTime": "2025-06-01T10:00:00.000Z",
		"lastUpdatedAt": "2025-06-01T10:00:00.000Z",
		"questions": [
			{"id": "q1", "name": "Name", "type": "ShortAnswer", "value": "Anna"},
			{"id": "q2", "name": "Date of pickup", "type": "ShortAnswer", "value": "25/06/03"}
		]
	}`, id)
}

func newTestClient(t *testing.T, srv *httptest.Server, pageSize int) *Client {
	t.Helper()
	cfg := config.FilloutConfig{
		BaseURL:  srv.URL,
		FormID:   "form123",
		PageSize: pageSize,
		Timeout:  5 * time.Second,
		APIKey:   "sk_test",
	}
	return NewClient(context.Background(), cfg, zap.NewNop())
}

func TestListSubmissions_PagesUntilTotal(t *testing.T) {
	all := []string{submissionJSON("s1"), submissionJSON("s2"), submissionJSON("s3")}
	var offsets []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/form123/submissions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)

		end := min(offset+limit, len(all))
		responses := make([]json.RawMessage, 0, limit)
		for _, s := range all[offset:end] {
			responses = append(responses, json.RawMessage(s))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"responses":      responses,
			"totalResponses": len(all),
			"pageCount":      2,
		})
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv, 2).ListSubmissions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, offsets)
	require.Len(t, result.Submissions, 3)
	assert.Equal(t, "s1", result.Submissions[0].SubmissionID)
	assert.Equal(t, "s3", result.Submissions[2].SubmissionID)
	assert.Empty(t, result.Rejected)
	assert.Equal(t, "Anna", result.Submissions[0].CustomerName())
}

func TestListSubmissions_RejectsUndecodableRecordsOnly(t *testing.T) {
	bad := `{"submissionId":"bad","submissionTime":"","lastUpdatedAt":"","questions":[{"id":"q","name":"Weird","type":"x","value":{"nested":true}}]}`
	noValue := `{"submissionId":"novalue","submissionTime":"","lastUpdatedAt":"","questions":[{"id":"q","name":"Name","type":"x"}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"responses":[%s,%s,%s],"totalResponses":3,"pageCount":1}`, submissionJSON("good"), bad, noValue)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv, 150).ListSubmissions(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Submissions, 1)
	assert.Equal(t, "good", result.Submissions[0].SubmissionID)

	require.Len(t, result.Rejected, 2)
	for _, rejected := range result.Rejected {
		var decodeErr *model.DecodeError
		assert.True(t, errors.As(rejected.Err, &decodeErr), "expected DecodeError, got %v", rejected.Err)
		assert.NotEmpty(t, rejected.Raw)
	}
}

func TestListSubmissions_RejectsMissingSubmissionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"responses":[{"submissionTime":"","lastUpdatedAt":"","questions":[]}],"totalResponses":1,"pageCount":1}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv, 150).ListSubmissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Submissions)
	assert.Len(t, result.Rejected, 1)
}

func TestListSubmissions_Non2xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 150).ListSubmissions(context.Background())
	require.Error(t, err)

	var netErr *model.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestListSubmissions_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, srv, 150)
	srv.Close()

	_, err := client.ListSubmissions(context.Background())
	require.Error(t, err)

	var netErr *model.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)
}

func TestListSubmissions_MalformedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 150).ListSubmissions(context.Background())
	var decodeErr *model.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestListSubmissions_EmptyForm(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"responses":[],"totalResponses":0,"pageCount":0}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv, 150).ListSubmissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Submissions)
	assert.Equal(t, 1, calls)
}
