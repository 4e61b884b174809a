// Package store persists the job ledger: one metadata row per thumbnail
// job. Image bytes are never stored.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/seantiz/thumbnail/internal/model"
)

// ErrInvalidTransition is returned when a job status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// JobStats holds aggregate ledger statistics.
type JobStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByEngine    map[string]int `json:"count_by_engine"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
	TotalResultBytes int64          `json:"total_result_bytes"`
}

// Store defines the persistence operations for the job ledger.
type Store interface {
	CreateJob(ctx context.Context, r *model.Record) error
	GetJob(ctx context.Context, id string) (*model.Record, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.Record, int, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	FinishJob(ctx context.Context, r *model.Record) error
	GetJobStats(ctx context.Context) (*JobStats, error)
	Close() error
}
