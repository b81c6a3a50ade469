package export

import (
	"context"
	"time"

	"github.com/trackops/exportd/internal/domain"
)

// JobStore is the persistence surface the pipeline needs. storage.Store
// backs it with postgres; storage.Memory backs tests and dev runs.
type JobStore interface {
	CreateJob(ctx context.Context, j *domain.ExportJob) error
	GetJob(ctx context.Context, id string) (*domain.ExportJob, error)
	HasPending(ctx context.Context, owner string) (bool, error)
	MarkCompleted(ctx context.Context, id, filePath, fileName string, fileSize, totalRecords int64) (bool, error)
	MarkFailed(ctx context.Context, id, msg string) (bool, error)
	DeleteJob(ctx context.Context, id string) (bool, error)
	ListByOwner(ctx context.Context, owner string, status *domain.Status, page, limit int) ([]*domain.ExportJob, int64, error)
	CountByStatus(ctx context.Context, owner string) (map[domain.Status]int64, error)
	ExpiredCompleted(ctx context.Context, now time.Time) ([]*domain.ExportJob, error)
	PurgeTerminal(ctx context.Context, expiredBefore, createdBefore time.Time) (int64, error)
	FileNames(ctx context.Context) (map[string]struct{}, error)
}

// Queue hands accepted job ids from submission to the dispatcher.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, block time.Duration) (string, error)
}
