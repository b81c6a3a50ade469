package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trackops/exportd/internal/dataset"
	"github.com/trackops/exportd/internal/domain"
)

// Actor is the identity attached to a request. Resolution happens upstream;
// only ownership and the admin role matter here.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) Admin() bool { return a.Role == "admin" }

func (a Actor) canAccess(owner string) bool {
	return a.Admin() || (a.UserID != "" && a.UserID == owner)
}

// Service is the request-facing entry point for the export pipeline.
type Service struct {
	store JobStore
	queue Queue
	reg   *dataset.Registry
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store JobStore, queue Queue, reg *dataset.Registry, log *zap.Logger) *Service {
	return &Service{store: store, queue: queue, reg: reg, log: log.Named("exports"), now: time.Now}
}

// Submit accepts a new export job and hands it to the dispatcher. The
// summary comes back before generation runs; submission latency never
// depends on dataset size.
func (s *Service) Submit(ctx context.Context, owner string, t domain.DatasetType, cfg domain.ExportConfig) (domain.JobSummary, error) {
	if owner == "" {
		return domain.JobSummary{}, errors.Wrap(domain.ErrValidation, "missing owner")
	}
	if !s.reg.Known(t) {
		return domain.JobSummary{}, errors.Wrapf(domain.ErrValidation, "unknown dataset type %q", t)
	}
	if cfg.Format == "" {
		cfg.Format = domain.FormatCSV
	}
	if cfg.Format != domain.FormatCSV && cfg.Format != domain.FormatXLSX {
		return domain.JobSummary{}, errors.Wrapf(domain.ErrValidation, "unsupported format %q", cfg.Format)
	}

	if pending, err := s.store.HasPending(ctx, owner); err != nil {
		return domain.JobSummary{}, err
	} else if pending {
		return domain.JobSummary{}, domain.ErrConflict
	}

	now := s.now().UTC()
	job := &domain.ExportJob{
		ID:          uuid.NewString(),
		Owner:       owner,
		DatasetType: t,
		Status:      domain.StatusPending,
		Config:      cfg,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.TTL),
	}
	// the store's pending-per-owner constraint closes the check/insert race
	if err := s.store.CreateJob(ctx, job); err != nil {
		return domain.JobSummary{}, err
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// without a runner the job would sit pending forever; fail it now,
		// detached from a request context the client may have abandoned
		s.log.Error("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		_, _ = s.store.MarkFailed(context.WithoutCancel(ctx), job.ID, "could not schedule generation: "+err.Error())
		return domain.JobSummary{}, errors.Wrap(err, "enqueue export")
	}
	s.log.Info("export submitted",
		zap.String("job_id", job.ID),
		zap.String("owner", owner),
		zap.String("dataset", string(t)))
	return job.Summary(), nil
}

// Get returns one job; the error message on a failed job is visible only to
// its owner or an administrator.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*domain.ExportJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(job.Owner) {
		return nil, domain.ErrAccessDenied
	}
	return job, nil
}

// List pages an owner's job history, newest first. Non-admins are always
// scoped to themselves.
func (s *Service) List(ctx context.Context, actor Actor, owner string, page, limit int, status *domain.Status) ([]*domain.ExportJob, int64, error) {
	if owner == "" || !actor.Admin() {
		owner = actor.UserID
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.ListByOwner(ctx, owner, status, page, limit)
}

type DownloadInfo struct {
	Path        string
	FileName    string
	ContentType string
	Size        int64
}

// Download resolves a job to a servable file. Expiry wins over file
// presence: a stale file on disk is not downloadable.
func (s *Service) Download(ctx context.Context, actor Actor, id string) (*DownloadInfo, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(job.Owner) {
		return nil, domain.ErrAccessDenied
	}
	if job.Status != domain.StatusCompleted || job.FilePath == nil {
		return nil, domain.ErrNotComplete
	}
	if job.Expired(s.now()) {
		return nil, domain.ErrExpired
	}
	info, err := os.Stat(*job.FilePath)
	if err != nil {
		return nil, errors.Wrap(domain.ErrNotFound, "export file missing from disk")
	}
	name := filepath.Base(*job.FilePath)
	if job.FileName != nil {
		name = *job.FileName
	}
	return &DownloadInfo{
		Path:        *job.FilePath,
		FileName:    name,
		ContentType: contentTypeFor(name),
		Size:        info.Size(),
	}, nil
}

// Cancel deletes a job that has not started producing output. Terminal jobs
// are not cancelable; their files are reclaimed by the sweeper.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canAccess(job.Owner) {
		return domain.ErrAccessDenied
	}
	if job.Status != domain.StatusPending {
		return domain.ErrNotCancelable
	}
	ok, err := s.store.DeleteJob(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("export cancelled", zap.String("job_id", id), zap.String("owner", job.Owner))
	return nil
}

// Stats aggregates job counts by status, across all owners for admins.
// Non-admins are scoped to themselves; an anonymous caller gets nothing,
// since an empty owner means the global aggregate.
func (s *Service) Stats(ctx context.Context, actor Actor, owner string) (map[domain.Status]int64, error) {
	if !actor.Admin() {
		if actor.UserID == "" {
			return nil, domain.ErrAccessDenied
		}
		owner = actor.UserID
	}
	return s.store.CountByStatus(ctx, owner)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
