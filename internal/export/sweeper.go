package export

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// orphanSafetyMargin keeps freshly written but not yet recorded files out of
// orphan removal.
const orphanSafetyMargin = time.Hour

// Sweeper reclaims expired export files, purges old terminal records and
// removes orphaned files from the export directory.
type Sweeper struct {
	store     JobStore
	dir       string
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time
	running   atomic.Bool
}

func NewSweeper(store JobStore, dir string, retentionDays int, log *zap.Logger) *Sweeper {
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &Sweeper{
		store:     store,
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.Named("sweeper"),
		now:       time.Now,
	}
}

type CleanupReport struct {
	Skipped        bool  `json:"skipped"`
	FilesReclaimed int   `json:"files_reclaimed"`
	RecordsPurged  int64 `json:"records_purged"`
	OrphansRemoved int   `json:"orphans_removed"`
}

// Run executes one sweep. The three phases are independent: a failing item
// is logged and skipped, never aborting the rest. Scheduled and manual
// triggers share the overlap guard; a second concurrent call is a no-op.
func (s *Sweeper) Run(ctx context.Context) CleanupReport {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("cleanup already running, skipping")
		return CleanupReport{Skipped: true}
	}
	defer s.running.Store(false)

	now := s.now().UTC()
	rep := CleanupReport{
		FilesReclaimed: s.reclaimExpired(ctx, now),
		RecordsPurged:  s.purgeOldRecords(ctx, now),
		OrphansRemoved: s.removeOrphans(ctx, now),
	}
	s.log.Info("cleanup finished",
		zap.Int("files_reclaimed", rep.FilesReclaimed),
		zap.Int64("records_purged", rep.RecordsPurged),
		zap.Int("orphans_removed", rep.OrphansRemoved))
	return rep
}

func (s *Sweeper) reclaimExpired(ctx context.Context, now time.Time) int {
	jobs, err := s.store.ExpiredCompleted(ctx, now)
	if err != nil {
		s.log.Warn("list expired jobs failed", zap.Error(err))
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.FilePath != nil {
			if err := os.Remove(*j.FilePath); err != nil && !os.IsNotExist(err) {
				s.log.Warn("delete expired file failed", zap.String("job_id", j.ID), zap.Error(err))
				continue
			}
		}
		if _, err := s.store.DeleteJob(ctx, j.ID); err != nil {
			s.log.Warn("delete expired job failed", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count
}

func (s *Sweeper) purgeOldRecords(ctx context.Context, now time.Time) int64 {
	n, err := s.store.PurgeTerminal(ctx, now, now.Add(-s.retention))
	if err != nil {
		s.log.Warn("purge old records failed", zap.Error(err))
		return 0
	}
	return n
}

func (s *Sweeper) removeOrphans(ctx context.Context, now time.Time) int {
	known, err := s.store.FileNames(ctx)
	if err != nil {
		s.log.Warn("list known file names failed", zap.Error(err))
		return 0
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read export dir failed", zap.Error(err))
		}
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := known[e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// a write may still be in progress; leave fresh files alone
		if now.Sub(info.ModTime()) < orphanSafetyMargin {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn("delete orphan failed", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		s.log.Info("removed orphaned file", zap.String("file", e.Name()))
		count++
	}
	return count
}

// Start schedules a daily run at hhmm (e.g. "03:00") until ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context, at string) {
	go func() {
		for {
			d := untilNext(s.now(), at)
			s.log.Info("next cleanup scheduled", zap.Duration("in", d))
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
				s.Run(ctx)
			}
		}
	}()
}

func untilNext(now time.Time, at string) time.Duration {
	hh, mm := 3, 0
	if t, err := time.Parse("15:04", at); err == nil {
		hh, mm = t.Hour(), t.Minute()
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
