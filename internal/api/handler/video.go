package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/iconidentify/vidmux/internal/domain"
	"github.com/iconidentify/vidmux/internal/service"
)

// CatalogBuilder resolves a URL into a format catalog.
type CatalogBuilder interface {
	BuildCatalog(ctx context.Context, url string) (*domain.VideoMetadata, error)
}

// DownloadRunner runs the fetch-and-merge pipeline.
type DownloadRunner interface {
	Download(ctx context.Context, url, formatID string) (*service.Delivery, error)
}

// VideoHandler handles catalog and download requests.
type VideoHandler struct {
	catalog   CatalogBuilder
	downloads DownloadRunner
	logger    *slog.Logger
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(catalog CatalogBuilder, downloads DownloadRunner, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		catalog:   catalog,
		downloads: downloads,
		logger:    logger,
	}
}

// DownloadRequest is the JSON request body for POST /download.
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// DownloadErrorResponse is returned when a download cannot be delivered.
type DownloadErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Lookup handles POST / with form field "url".
func (h *VideoHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	url := r.PostFormValue("url")
	if url == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	meta, err := h.catalog.BuildCatalog(r.Context(), url)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("catalog lookup failed", "url", url, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if meta.Formats == nil {
		meta.Formats = []domain.CatalogEntry{}
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// Download handles POST /download. It answers with either the merged file as
// an attachment or a JSON error, never both.
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDownloadError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Format == "" {
		h.writeDownloadError(w, http.StatusBadRequest, "Invalid parameters")
		return
	}

	delivery, err := h.downloads.Download(r.Context(), req.URL, req.Format)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.writeDownloadError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("download failed", "url", req.URL, "format", req.Format, "error", err)
		h.writeDownloadError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer delivery.Release()

	f, err := delivery.Open()
	if err != nil {
		h.logger.Error("open merged file", "job_id", delivery.JobID, "error", err)
		h.writeDownloadError(w, http.StatusInternalServerError, "merged file unavailable")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": delivery.Filename,
	}))
	w.Header().Set("X-Job-ID", delivery.JobID.String())
	http.ServeContent(w, r, delivery.Filename, delivery.ModTime, f)
}

func (h *VideoHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *VideoHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *VideoHandler) writeDownloadError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, DownloadErrorResponse{Success: false, Error: message})
}
