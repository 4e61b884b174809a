package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/seantiz/thumbnail/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestRecord() *model.Record {
	return &model.Record{
		ID:              model.NewID(),
		Status:          model.StatusPending,
		Engine:          "imaging",
		ImagePath:       "/images/cat.jpg",
		RequestedWidth:  100,
		RequestedHeight: 0,
		Quality:         80,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func intPtr(v int) *int { return &v }

func TestCreateAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRecord()

	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}

	if got.ID != r.ID {
		t.Errorf("ID = %q, want %q", got.ID, r.ID)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Engine != "imaging" || got.ImagePath != "/images/cat.jpg" {
		t.Errorf("Engine/ImagePath = %q/%q", got.Engine, got.ImagePath)
	}
	if got.RequestedWidth != 100 || got.RequestedHeight != 0 || got.Quality != 80 {
		t.Errorf("requested = %dx%d q%d, want 100x0 q80", got.RequestedWidth, got.RequestedHeight, got.Quality)
	}
	if got.FinalWidth != nil || got.ResultBytes != nil || got.StartedAt != nil {
		t.Errorf("unfinished job has outcome fields set: %+v", got)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJob(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestJobLifecycleCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRecord()
	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatal(err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	if err := s.MarkRunning(ctx, r.ID, started); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	finished := started.Add(2 * time.Second)
	done := &model.Record{
		ID:          r.ID,
		Status:      model.StatusCompleted,
		FinalWidth:  intPtr(100),
		FinalHeight: intPtr(50),
		Format:      "jpeg",
		ResultBytes: intPtr(2048),
		DurationMS:  intPtr(12),
		FinishedAt:  &finished,
	}
	if err := s.FinishJob(ctx, done); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.FinalWidth == nil || *got.FinalWidth != 100 || got.FinalHeight == nil || *got.FinalHeight != 50 {
		t.Errorf("final = %v x %v, want 100x50", got.FinalWidth, got.FinalHeight)
	}
	if got.ResultBytes == nil || *got.ResultBytes != 2048 {
		t.Errorf("ResultBytes = %v, want 2048", got.ResultBytes)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v (kept from MarkRunning)", got.StartedAt, started)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
}

func TestFailFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRecord()
	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := s.FinishJob(ctx, &model.Record{
		ID: r.ID, Status: model.StatusFailed, Error: "no such file", FinishedAt: &now,
	}); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}

	got, _ := s.GetJob(ctx, r.ID)
	if got.Status != model.StatusFailed || got.Error != "no such file" {
		t.Errorf("got status %q error %q", got.Status, got.Error)
	}
}

func TestInvalidTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRecord()
	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatal(err)
	}

	// pending -> completed skips running.
	now := time.Now().UTC()
	err := s.FinishJob(ctx, &model.Record{ID: r.ID, Status: model.StatusCompleted, FinishedAt: &now})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending->completed err = %v, want ErrInvalidTransition", err)
	}

	// Non-terminal status passed to FinishJob.
	err = s.FinishJob(ctx, &model.Record{ID: r.ID, Status: model.StatusRunning})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FinishJob(running) err = %v, want ErrInvalidTransition", err)
	}

	// Terminal jobs cannot move again.
	if err := s.MarkRunning(ctx, r.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishJob(ctx, &model.Record{ID: r.ID, Status: model.StatusFailed, FinishedAt: &now}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkRunning(ctx, r.ID, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("failed->running err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.MarkRunning(context.Background(), "ghost", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListJobsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := range 5 {
		r := makeTestRecord()
		r.ImagePath = fmt.Sprintf("/images/%d.png", i)
		r.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateJob(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := s.ListJobs(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	// Newest first.
	if page[0].ImagePath != "/images/4.png" || page[1].ImagePath != "/images/3.png" {
		t.Errorf("page order = [%s %s], want [4 3]", page[0].ImagePath, page[1].ImagePath)
	}

	rest, _, err := s.ListJobs(ctx, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ImagePath != "/images/0.png" {
		t.Errorf("last page = %+v, want only /images/0.png", rest)
	}
}

func TestListJobsEmpty(t *testing.T) {
	s := newTestStore(t)
	jobs, total, err := s.ListJobs(context.Background(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(jobs) != 0 {
		t.Errorf("got %d jobs (total %d), want none", len(jobs), total)
	}
}

func TestGetJobStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	finish := func(engine, status string, dur, size int) {
		r := makeTestRecord()
		r.Engine = engine
		if err := s.CreateJob(ctx, r); err != nil {
			t.Fatal(err)
		}
		if err := s.MarkRunning(ctx, r.ID, now); err != nil {
			t.Fatal(err)
		}
		done := &model.Record{ID: r.ID, Status: status, DurationMS: intPtr(dur), FinishedAt: &now}
		if status == model.StatusCompleted {
			done.ResultBytes = intPtr(size)
		} else {
			done.Error = "boom"
		}
		if err := s.FinishJob(ctx, done); err != nil {
			t.Fatal(err)
		}
	}

	finish("imaging", model.StatusCompleted, 10, 1000)
	finish("imaging", model.StatusCompleted, 30, 500)
	finish("bild", model.StatusFailed, 20, 0)
	if err := s.CreateJob(ctx, makeTestRecord()); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetJobStats(ctx)
	if err != nil {
		t.Fatalf("GetJobStats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 || stats.CountByStatus[model.StatusFailed] != 1 ||
		stats.CountByStatus[model.StatusPending] != 1 {
		t.Errorf("CountByStatus = %v", stats.CountByStatus)
	}
	if stats.CountByEngine["imaging"] != 3 || stats.CountByEngine["bild"] != 1 {
		t.Errorf("CountByEngine = %v", stats.CountByEngine)
	}
	if stats.AvgDurationMS != 20 {
		t.Errorf("AvgDurationMS = %v, want 20", stats.AvgDurationMS)
	}
	if stats.TotalResultBytes != 1500 {
		t.Errorf("TotalResultBytes = %d, want 1500", stats.TotalResultBytes)
	}
}

func TestGetJobStatsEmpty(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.GetJobStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.AvgDurationMS != 0 || len(stats.CountByStatus) != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
