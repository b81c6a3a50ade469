package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trackops/exportd/internal/dataset"
	"github.com/trackops/exportd/internal/domain"
)

// Worker runs one job from pending to a terminal state.
type Worker struct {
	store  JobStore
	reg    *dataset.Registry
	writer FileWriter
	dir    string
	log    *zap.Logger
	now    func() time.Time
}

func NewWorker(store JobStore, reg *dataset.Registry, dir string, log *zap.Logger) *Worker {
	return &Worker{store: store, reg: reg, dir: dir, log: log.Named("worker"), now: time.Now}
}

// Process never returns an error: failures land in the job record and are
// discovered by polling. Nobody awaits this call.
func (w *Worker) Process(ctx context.Context, jobID string) {
	log := w.log.With(zap.String("job_id", jobID))
	// terminal updates must land even after the job deadline has expired,
	// or a timed-out job would sit pending forever
	uctx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during generation", zap.Any("panic", r))
			_, _ = w.store.MarkFailed(uctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		// cancelled before we got to it, or the record is gone
		log.Warn("job not loadable, skipping", zap.Error(err))
		return
	}
	if job.Status != domain.StatusPending {
		log.Warn("job already terminal, skipping", zap.String("status", string(job.Status)))
		return
	}

	path, size, total, err := w.generate(ctx, job)
	if err != nil {
		log.Warn("export failed", zap.String("dataset", string(job.DatasetType)), zap.Error(err))
		if _, ferr := w.store.MarkFailed(uctx, jobID, err.Error()); ferr != nil {
			log.Error("could not record failure", zap.Error(ferr))
		}
		return
	}

	name := filepath.Base(path)
	updated, err := w.store.MarkCompleted(uctx, jobID, path, name, size, total)
	if err != nil {
		log.Error("could not record completion", zap.Error(err))
		return
	}
	if !updated {
		// the owner cancelled mid-flight; don't leave the file behind
		log.Warn("job vanished during generation, removing output", zap.String("file", name))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("output removal failed", zap.Error(err))
		}
		return
	}
	log.Info("export completed",
		zap.String("dataset", string(job.DatasetType)),
		zap.Int64("records", total),
		zap.Int64("bytes", size),
		zap.String("file", name))
}

func (w *Worker) generate(ctx context.Context, job *domain.ExportJob) (path string, size, total int64, err error) {
	cfg, err := w.reg.Normalize(job.DatasetType, job.Config, w.now().UTC())
	if err != nil {
		return "", 0, 0, err
	}
	rows, err := w.reg.Fetch(ctx, job.DatasetType, cfg)
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "fetch rows")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", 0, 0, errors.Wrap(err, "create export dir")
	}
	path = filepath.Join(w.dir, exportFileName(job.DatasetType, job.ID, job.Config.Format, w.now()))
	if err := w.writer.WriteTabular(path, rows, job.Config.Format); err != nil {
		return "", 0, 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "verify output")
	}
	if info.Size() == 0 {
		return "", 0, 0, errors.New("generated file is empty")
	}
	return path, info.Size(), int64(len(rows)), nil
}

// exportFileName builds {dataset}_{jobID}_{timestamp}.{format} with colons
// and dots stripped from the RFC3339 timestamp.
func exportFileName(t domain.DatasetType, id string, f domain.Format, now time.Time) string {
	ts := strings.NewReplacer(":", "", ".", "").Replace(now.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s_%s_%s.%s", t, id, ts, f)
}
