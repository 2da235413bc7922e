package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iconidentify/vidmux/internal/domain"
)

func newJob(id string) *domain.DownloadJob {
	return &domain.DownloadJob{
		ID:       domain.JobID(id),
		FormatID: "22",
		Status:   domain.JobStatusFetching,
	}
}

func TestNewInMemoryJobRepository(t *testing.T) {
	repo := NewInMemoryJobRepository()

	if repo == nil {
		t.Fatal("repo should not be nil")
	}
	if repo.jobs == nil {
		t.Error("jobs map should be initialized")
	}
}

func TestInMemoryJobRepository_Add(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, newJob("job-1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	retrieved, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != "job-1" {
		t.Errorf("ID = %q, want %q", retrieved.ID, "job-1")
	}

	if err := repo.Add(ctx, newJob("job-1")); !errors.Is(err, domain.ErrJobExists) {
		t.Errorf("duplicate Add error = %v, want ErrJobExists", err)
	}
}

func TestInMemoryJobRepository_GetReturnsCopy(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	job := newJob("job-1")
	repo.Add(ctx, job)
	job.Status = domain.JobStatusMerging

	got, _ := repo.Get(ctx, "job-1")
	if got.Status != domain.JobStatusFetching {
		t.Errorf("stored job changed through caller pointer: %q", got.Status)
	}

	got.Status = domain.JobStatusMerging
	again, _ := repo.Get(ctx, "job-1")
	if again.Status != domain.JobStatusFetching {
		t.Errorf("stored job changed through Get result: %q", again.Status)
	}
}

func TestInMemoryJobRepository_GetNotFound(t *testing.T) {
	repo := NewInMemoryJobRepository()

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryJobRepository_UpdateStatus(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	repo.Add(ctx, newJob("job-1"))

	if err := repo.UpdateStatus(ctx, "job-1", domain.JobStatusMerging); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := repo.Get(ctx, "job-1")
	if got.Status != domain.JobStatusMerging {
		t.Errorf("Status = %q, want %q", got.Status, domain.JobStatusMerging)
	}

	if err := repo.UpdateStatus(ctx, "job-1", domain.JobStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if _, err := repo.Get(ctx, "job-1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Error("completed job should no longer be tracked")
	}

	if err := repo.UpdateStatus(ctx, "job-1", domain.JobStatusFailed); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("update after completion error = %v, want ErrJobNotFound", err)
	}
}

func TestInMemoryJobRepository_Stats(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		repo.Add(ctx, newJob(id))
	}
	repo.UpdateStatus(ctx, "b", domain.JobStatusMerging)
	repo.UpdateStatus(ctx, "c", domain.JobStatusCompleted)
	repo.UpdateStatus(ctx, "d", domain.JobStatusFailed)
	repo.UpdateStatus(ctx, "e", domain.JobStatusFailed)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	want := JobStats{Fetching: 1, Merging: 1, Completed: 1, Failed: 2}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestInMemoryJobRepository_Active(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	repo.Add(ctx, newJob("running"))
	repo.Add(ctx, newJob("merging"))
	repo.Add(ctx, newJob("done"))
	repo.UpdateStatus(ctx, "merging", domain.JobStatusMerging)
	repo.UpdateStatus(ctx, "done", domain.JobStatusCompleted)

	ids, err := repo.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	got := map[domain.JobID]bool{}
	for _, id := range ids {
		got[id] = true
	}
	if len(ids) != 2 || !got["running"] || !got["merging"] {
		t.Errorf("Active() = %v, want running and merging", ids)
	}
}

func TestInMemoryJobRepository_Concurrent(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := domain.NewDownloadJob("/tmp", "https://example.com", "22")
			repo.Add(ctx, job)
			repo.UpdateStatus(ctx, job.ID, domain.JobStatusMerging)
			repo.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted)
		}()
	}
	wg.Wait()

	stats, _ := repo.Stats(ctx)
	if stats.Completed != 50 || stats.Fetching != 0 || stats.Merging != 0 {
		t.Errorf("stats = %+v, want 50 completed", *stats)
	}
}
