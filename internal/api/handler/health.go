package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/repository"
)

var startTime = time.Now()

// Dependency is an external tool the service needs at runtime.
type Dependency interface {
	Available() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	deps         map[string]Dependency
	jobs         repository.JobRepository
	fs           afero.Fs
	downloadPath string
}

// NewHealthHandler creates a new health handler. deps maps a display name
// (e.g. "yt-dlp") to its availability probe.
func NewHealthHandler(deps map[string]Dependency, jobs repository.JobRepository, fs afero.Fs, downloadPath string) *HealthHandler {
	return &HealthHandler{
		deps:         deps,
		jobs:         jobs,
		fs:           fs,
		downloadPath: downloadPath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. It fails when a required binary
// is missing or the download directory is unusable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.deps)+1)
	ready := true

	for name, dep := range h.deps {
		if dep.Available() {
			checks[name] = "ok"
		} else {
			checks[name] = "not found"
			ready = false
		}
	}

	if isDir, err := afero.IsDir(h.fs, h.downloadPath); err != nil || !isDir {
		checks["storage"] = "download directory unavailable"
		ready = false
	} else {
		checks["storage"] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !ready {
		status, code = "error", http.StatusServiceUnavailable
	}

	writeHealth(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64                `json:"uptime_seconds"`
	UptimeHuman    string               `json:"uptime_human"`
	MemAllocMB     int64                `json:"mem_alloc_mb"`
	MemSysMB       int64                `json:"mem_sys_mb"`
	NumGoroutines  int                  `json:"num_goroutines"`
	NumCPU         int                  `json:"num_cpu"`
	DiskUsedBytes  int64                `json:"disk_used_bytes"`
	DiskFreeBytes  int64                `json:"disk_free_bytes"`
	DiskTotalBytes int64                `json:"disk_total_bytes"`
	DiskUsedPct    float64              `json:"disk_used_pct"`
	DownloadPath   string               `json:"download_path"`
	Jobs           *repository.JobStats `json:"jobs,omitempty"`
}

// Stats handles GET /stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		DownloadPath:  h.downloadPath,
	}
	stats.DiskTotalBytes, stats.DiskFreeBytes, stats.DiskUsedBytes, stats.DiskUsedPct = getDiskStats(h.downloadPath)

	if h.jobs != nil {
		if jobStats, err := h.jobs.Stats(r.Context()); err == nil {
			stats.Jobs = jobStats
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func writeHealth(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
