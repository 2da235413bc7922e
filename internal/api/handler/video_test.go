package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/domain"
)

func TestNewVideoHandler(t *testing.T) {
	handler := NewVideoHandler(&mockCatalog{}, &mockDownloads{}, testLogger())
	if handler == nil {
		t.Fatal("handler should not be nil")
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestVideoHandler_Lookup_Success(t *testing.T) {
	catalog := &mockCatalog{meta: &domain.VideoMetadata{
		Title:     "Sample",
		Thumbnail: "https://img/t.jpg",
		URL:       "https://cdn/stream",
		Formats: []domain.CatalogEntry{
			{FormatID: "22", Resolution: "720p", Ext: "mp4"},
			{FormatID: "137", Resolution: "1080p", Ext: "mp4"},
		},
	}}
	handler := NewVideoHandler(catalog, &mockDownloads{}, testLogger())

	w := httptest.NewRecorder()
	handler.Lookup(w, postForm(url.Values{"url": {"https://youtube.com/watch?v=abc"}}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(catalog.calls) != 1 || catalog.calls[0] != "https://youtube.com/watch?v=abc" {
		t.Errorf("catalog calls = %v", catalog.calls)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"title", "thumbnail", "formats", "url"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q: %v", key, body)
		}
	}
	formats := body["formats"].([]interface{})
	first := formats[0].(map[string]interface{})
	if first["format_id"] != "22" || first["resolution"] != "720p" || first["ext"] != "mp4" {
		t.Errorf("first format = %v", first)
	}
}

func TestVideoHandler_Lookup_EmptyFormatsEncodeAsArray(t *testing.T) {
	catalog := &mockCatalog{meta: &domain.VideoMetadata{Title: "Unknown"}}
	handler := NewVideoHandler(catalog, &mockDownloads{}, testLogger())

	w := httptest.NewRecorder()
	handler.Lookup(w, postForm(url.Values{"url": {"https://example.com"}}))

	if !strings.Contains(w.Body.String(), `"formats":[]`) {
		t.Errorf("formats should encode as [], body = %s", w.Body.String())
	}
}

func TestVideoHandler_Lookup_MissingURL(t *testing.T) {
	catalog := &mockCatalog{}
	handler := NewVideoHandler(catalog, &mockDownloads{}, testLogger())

	w := httptest.NewRecorder()
	handler.Lookup(w, postForm(url.Values{}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(catalog.calls) != 0 {
		t.Error("catalog should not be queried without a url")
	}
}

func TestVideoHandler_Lookup_ExtractionError(t *testing.T) {
	catalog := &mockCatalog{err: fmt.Errorf("%w: ERROR: Unsupported URL", domain.ErrExtraction)}
	handler := NewVideoHandler(catalog, &mockDownloads{}, testLogger())

	w := httptest.NewRecorder()
	handler.Lookup(w, postForm(url.Values{"url": {"https://example.com"}}))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(body["error"], "Unsupported URL") {
		t.Errorf("error = %q, want provider message", body["error"])
	}
}

func TestVideoHandler_Download_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	downloads := &mockDownloads{fs: fs, path: "/dl/job-1_merged.mp4", content: "mp4-bytes"}
	handler := NewVideoHandler(&mockCatalog{}, downloads, testLogger())

	body := bytes.NewBufferString(`{"url":"https://youtube.com/watch?v=abc","format":"137"}`)
	req := httptest.NewRequest(http.MethodPost, "/download", body)
	w := httptest.NewRecorder()

	handler.Download(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "job-1_merged.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Body.String() != "mp4-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ok, _ := afero.Exists(fs, "/dl/job-1_merged.mp4"); ok {
		t.Error("merged file should be removed after delivery")
	}
}

func TestVideoHandler_Download_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"missing format", `{"url":"https://example.com"}`},
		{"missing url", `{"format":"137"}`},
		{"empty url", `{"url":"","format":"137"}`},
		{"invalid json", `not json`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			downloads := &mockDownloads{}
			handler := NewVideoHandler(&mockCatalog{}, downloads, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.Download(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if downloads.calls != 0 {
				t.Error("pipeline should not run for invalid requests")
			}

			var resp DownloadErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success {
				t.Error("success should be false")
			}
			if resp.Error == "" {
				t.Error("error message should be set")
			}
		})
	}
}

func TestVideoHandler_Download_EmptyObjectBody(t *testing.T) {
	handler := NewVideoHandler(&mockCatalog{}, &mockDownloads{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.Download(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want success:false", w.Body.String())
	}
}

func TestVideoHandler_Download_PipelineErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch failure", domain.NewJobError("job-1", "fetch", fmt.Errorf("%w: ERROR: geo restricted", domain.ErrFetch)), http.StatusInternalServerError},
		{"merge failure", domain.NewJobError("job-1", "merge", fmt.Errorf("%w: exit status 1", domain.ErrMerge)), http.StatusInternalServerError},
		{"validation from service", fmt.Errorf("%w: url and format are required", domain.ErrValidation), http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewVideoHandler(&mockCatalog{}, &mockDownloads{err: tt.err}, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(`{"url":"https://example.com","format":"137"}`))
			w := httptest.NewRecorder()
			handler.Download(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, error responses must not look like a file", ct)
			}

			var resp DownloadErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success || resp.Error != tt.err.Error() {
				t.Errorf("resp = %+v, want error %q", resp, tt.err.Error())
			}
		})
	}
}
