package filloutclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/utils"
)

// maxErrorBody caps how much of a failed response body is kept in the error
const maxErrorBody = 512

// Client reads form submissions from the Fillout REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	formID     string
	pageSize   int
	logger     *zap.Logger
}

// Rejected is a fetched submission that could not be decoded
type Rejected struct {
	Raw string
	Err error
}

// FetchResult holds every decoded submission of the form plus the records that were rejected
type FetchResult struct {
	Submissions []model.Submission
	Rejected    []Rejected
}

// page is the body of one submissions list response. Responses are kept raw so each
// record can be decoded (and rejected) on its own.
type page struct {
	Responses      []json.RawMessage `json:"responses"`
	TotalResponses int               `json:"totalResponses"`
	PageCount      int               `json:"pageCount"`
}

// NewClient creates a Fillout client that authenticates with the API key as a bearer token
func NewClient(ctx context.Context, cfg config.FilloutConfig, logger *zap.Logger) *Client {
	return newClient(utils.BearerTokenClient(ctx, cfg.APIKey, cfg.Timeout), cfg, logger)
}

func newClient(httpClient *http.Client, cfg config.FilloutConfig, logger *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		formID:     cfg.FormID,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// ListSubmissions fetches every submission of the form, one page at a time.
// Any transport failure or non-2xx response aborts the fetch with a NetworkError.
// Individual records that do not decode are logged and returned in Rejected.
func (c *Client) ListSubmissions(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}

	for offset := 0; ; {
		p, err := c.getPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for _, raw := range p.Responses {
			var sub model.Submission
			if err := json.Unmarshal(raw, &sub); err != nil {
				var decodeErr *model.DecodeError
				if !errors.As(err, &decodeErr) {
					err = &model.DecodeError{Msg: "submission does not match the expected shape", Raw: string(raw), Err: err}
				}
				c.logger.Warn("Rejected submission that could not be decoded",
					zap.Error(err),
					zap.String("raw", string(raw)))
				result.Rejected = append(result.Rejected, Rejected{Raw: string(raw), Err: err})
				continue
			}
			if sub.SubmissionID == "" {
				c.logger.Warn("Rejected submission without submissionId", zap.String("raw", string(raw)))
				result.Rejected = append(result.Rejected, Rejected{
					Raw: string(raw),
					Err: &model.DecodeError{Msg: "submission has no submissionId", Raw: string(raw)},
				})
				continue
			}
			result.Submissions = append(result.Submissions, sub)
		}

		offset += len(p.Responses)
		if len(p.Responses) == 0 || offset >= p.TotalResponses {
			break
		}
	}

	c.logger.Debug("Fetched submissions",
		zap.String("form_id", c.formID),
		zap.Int("count", len(result.Submissions)),
		zap.Int("rejected", len(result.Rejected)))

	return result, nil
}

func (c *Client) getPage(ctx context.Context, offset int) (*page, error) {
	op := fmt.Sprintf("list submissions of form %s", c.formID)

	endpoint := fmt.Sprintf("%s/forms/%s/submissions", c.baseURL, url.PathEscape(c.formID))
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &model.NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &model.DecodeError{Msg: "submissions page is not valid JSON", Err: err}
	}

	c.logger.Debug("Fetched submissions page",
		zap.Int("offset", offset),
		zap.Int("responses", len(p.Responses)),
		zap.Int("total", p.TotalResponses))

	return &p, nil
}
