package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/core/services"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/metrics"
)

// SecretHeader carries the shared secret configured on the form's webhook
const SecretHeader = "X-Webhook-Secret"

const maxBodyBytes = 1 << 20

// Handler ingests submissions pushed by the forms provider
type Handler struct {
	store     db.SubmissionStore
	publisher services.EventPublisher
	secret    string
	logger    *zap.Logger
}

// NewHandler creates a webhook handler. An empty secret disables the secret check.
func NewHandler(store db.SubmissionStore, publisher services.EventPublisher, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		secret:    secret,
		logger:    logger,
	}
}

type ingestResponse struct {
	CollectionID string `json:"collectionId"`
	SubmissionID string `json:"submissionId"`
	Created      bool   `json:"created"`
}

// Fillout handles POST /webhooks/fillout
func (h *Handler) Fillout(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("Rejected webhook with bad secret", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sub, err := NormalizeSubmission(body)
	if err != nil {
		h.logger.Warn("Rejected webhook payload", zap.Error(err), zap.String("raw", string(body)))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := services.IngestSubmission(r.Context(), h.store, h.publisher, sub, h.logger)
	if err != nil {
		var decodeErr *model.DecodeError
		if errors.As(err, &decodeErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to ingest webhook submission",
			zap.String("submission_id", sub.SubmissionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		CollectionID: result.Submission.CollectionID,
		SubmissionID: result.Submission.SubmissionID,
		Created:      result.Created,
	})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	metrics.WebhookRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
