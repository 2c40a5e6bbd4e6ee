package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/receipt"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxUploadBytes caps receipt images when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// ReceiptsHandler handles receipt uploads, scan jobs and merging a scan
// into a transaction draft.
type ReceiptsHandler struct {
	sessions  Sessions
	blobs     blobstore.Store
	publisher jobs.Publisher
	jobs      jobs.JobStore
	maxBytes  int64
}

// NewReceiptsHandler creates a new receipts handler. maxBytes <= 0 means
// DefaultMaxUploadBytes.
func NewReceiptsHandler(sessions Sessions, blobs blobstore.Store, publisher jobs.Publisher, store jobs.JobStore, maxBytes int64) *ReceiptsHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ReceiptsHandler{
		sessions:  sessions,
		blobs:     blobs,
		publisher: publisher,
		jobs:      store,
		maxBytes:  maxBytes,
	}
}

// UploadReceipt handles POST /api/receipts
// The image comes as the "image" part of a multipart form. It is archived
// and a scan job is queued; the client polls GET /api/jobs/{id}.
func (h *ReceiptsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	userID := middleware.UserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read image")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "image is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		middleware.WriteError(w, http.StatusUnsupportedMediaType, "Only images can be scanned")
		return
	}

	uri, err := h.blobs.Put(ctx, userID, header.Filename, contentType, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to archive receipt image")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to upload image")
		return
	}

	job := &jobs.ScanReceiptJob{
		UserID:   userID,
		ImageURI: uri,
		MIMEType: contentType,
	}
	if err := h.publisher.PublishScanReceipt(ctx, job); err != nil {
		log.Error().Err(err).Str("image_uri", uri).Msg("Failed to enqueue scan job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue scan")
		return
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("image_uri", uri).
		Int("bytes", len(data)).
		Msg("Receipt scan enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"image_uri": uri,
		"status":    string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
// Jobs of other users are reported as missing.
func (h *ReceiptsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil || job.UserID != middleware.UserID(r.Context()) {
		if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *ReceiptsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: middleware.UserID(r.Context()),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

type mergeRequest struct {
	Draft   lifecycle.Draft `json:"draft"`
	Receipt *receipt.Data   `json:"receipt,omitempty"`
	JobID   string          `json:"jobId,omitempty"`
}

// MergeDraft handles POST /api/drafts/merge
// It fills the draft from a scan, given either inline or as the ID of a
// completed scan job, and returns the draft for the user to review.
func (h *ReceiptsHandler) MergeDraft(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data := req.Receipt
	if req.JobID != "" {
		job, err := h.jobs.GetJob(r.Context(), req.JobID)
		if err != nil || job.UserID != middleware.UserID(r.Context()) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		if job.Status != jobs.JobStatusCompleted || job.Result == nil {
			middleware.WriteError(w, http.StatusConflict, "Scan not finished")
			return
		}
		data = job.Result
	}
	if data == nil {
		middleware.WriteError(w, http.StatusBadRequest, "receipt or jobId is required")
		return
	}

	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, lifecycle.MergeReceipt(req.Draft, *data, sess.Accounts()))
}
