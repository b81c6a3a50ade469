package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trackops/exportd/internal/dataset"
	"github.com/trackops/exportd/internal/domain"
	"github.com/trackops/exportd/internal/storage"
)

func sampleRows() []*domain.Row {
	return []*domain.Row{
		domain.NewRow().Set("asset_no", "A-1").Set("name", "Pallet jack"),
		domain.NewRow().Set("asset_no", "A-2").Set("name", "Forklift"),
	}
}

func TestProcessCompletesJob(t *testing.T) {
	store := storage.NewMemory()
	dir := t.TempDir()
	w := NewWorker(store, testRegistry(sampleRows(), nil), dir, zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})
	w.Process(ctx, job.ID)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if got.FilePath == nil || got.FileSize == nil || got.TotalRecords == nil {
		t.Fatalf("completed job missing fields: %+v", got)
	}
	if *got.TotalRecords != 2 {
		t.Fatalf("expected 2 records, got %d", *got.TotalRecords)
	}
	if *got.FileSize == 0 {
		t.Fatal("expected non-empty file")
	}
	name := filepath.Base(*got.FilePath)
	if !strings.HasPrefix(name, "assets_"+job.ID+"_") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected file name %q", name)
	}
	if strings.Contains(name, ":") || strings.Count(name, ".") != 1 {
		t.Fatalf("timestamp not sanitized in %q", name)
	}
	if _, err := os.Stat(*got.FilePath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("completed job must not carry an error message, got %q", *got.ErrorMessage)
	}
}

func TestProcessStoredConfigNotMutated(t *testing.T) {
	store := storage.NewMemory()
	reg := dataset.NewRegistry()
	var effective domain.ExportConfig
	reg.Register(domain.DatasetAssets, dataset.FetcherFunc(func(_ context.Context, cfg domain.ExportConfig) ([]*domain.Row, error) {
		effective = cfg
		return sampleRows(), nil
	}), dataset.AssetRules)
	w := NewWorker(store, reg, t.TempDir(), zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})
	w.Process(ctx, job.ID)

	// the fetcher saw the defaulted 30-day window
	if effective.DateRange == nil {
		t.Fatal("expected defaulted date range in effective config")
	}
	from, _ := time.Parse(time.RFC3339, effective.DateRange.From)
	to, _ := time.Parse(time.RFC3339, effective.DateRange.To)
	if got := to.Sub(from); got != 30*24*time.Hour {
		t.Fatalf("expected 30d window, got %s", got)
	}

	// but the stored config still has no range
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Config.DateRange != nil {
		t.Fatal("stored config was mutated by defaulting")
	}
}

func TestProcessFailsOnBadDateRange(t *testing.T) {
	store := storage.NewMemory()
	w := NewWorker(store, testRegistry(sampleRows(), nil), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{
		Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending,
		Config: domain.ExportConfig{
			Format:    domain.FormatCSV,
			DateRange: &domain.DateRange{From: "2026-08-02T00:00:00Z", To: "2026-08-01T00:00:00Z"},
		},
	})
	w.Process(ctx, job.ID)

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "before end") {
		t.Fatalf("expected range error message, got %v", got.ErrorMessage)
	}
	if got.FilePath != nil {
		t.Fatal("failed job must not carry a file path")
	}
}

func TestProcessFailsOnFetchError(t *testing.T) {
	store := storage.NewMemory()
	w := NewWorker(store, testRegistry(nil, errors.New("relation does not exist")), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetScanLogs, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})
	w.Process(ctx, job.ID)

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "relation does not exist") {
		t.Fatalf("expected fetch error captured, got %v", got.ErrorMessage)
	}
}

func TestProcessMissingJobIsSilent(t *testing.T) {
	store := storage.NewMemory()
	w := NewWorker(store, testRegistry(sampleRows(), nil), t.TempDir(), zap.NewNop())
	// must not panic or create files
	w.Process(context.Background(), "no-such-job")
}

func TestProcessCancelledMidFlightRemovesOutput(t *testing.T) {
	store := storage.NewMemory()
	dir := t.TempDir()
	reg := dataset.NewRegistry()
	var jobID string
	// the owner cancels while the fetch is running
	reg.Register(domain.DatasetAssets, dataset.FetcherFunc(func(ctx context.Context, _ domain.ExportConfig) ([]*domain.Row, error) {
		_, _ = store.DeleteJob(ctx, jobID)
		return sampleRows(), nil
	}), dataset.AssetRules)
	w := NewWorker(store, reg, dir, zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})
	jobID = job.ID
	w.Process(ctx, jobID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected dangling output removed, found %d files", len(entries))
	}
}

// deadlineStore refuses writes once the context is done, like the pg store.
type deadlineStore struct {
	*storage.Memory
}

func (s *deadlineStore) MarkCompleted(ctx context.Context, id, filePath, fileName string, fileSize, totalRecords int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Memory.MarkCompleted(ctx, id, filePath, fileName, fileSize, totalRecords)
}

func (s *deadlineStore) MarkFailed(ctx context.Context, id, msg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Memory.MarkFailed(ctx, id, msg)
}

func TestProcessTimeoutStillReachesTerminalStatus(t *testing.T) {
	store := &deadlineStore{Memory: storage.NewMemory()}
	reg := dataset.NewRegistry()
	// a fetch that outlives the job deadline
	reg.Register(domain.DatasetAssets, dataset.FetcherFunc(func(ctx context.Context, _ domain.ExportConfig) ([]*domain.Row, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), dataset.AssetRules)
	w := NewWorker(store, reg, t.TempDir(), zap.NewNop())

	job := seedJob(t, store.Memory, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Process(ctx, job.ID)

	got, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed after timeout, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "context deadline exceeded") {
		t.Fatalf("expected deadline error recorded, got %v", got.ErrorMessage)
	}
}

func TestProcessEmptyDatasetStillCompletes(t *testing.T) {
	store := storage.NewMemory()
	w := NewWorker(store, testRegistry(nil, nil), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	job := seedJob(t, store, &domain.ExportJob{Owner: "user-1", DatasetType: domain.DatasetAssets, Status: domain.StatusPending, Config: domain.ExportConfig{Format: domain.FormatCSV}})
	w.Process(ctx, job.ID)

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if *got.TotalRecords != 0 {
		t.Fatalf("expected zero records, got %d", *got.TotalRecords)
	}
	// placeholder file, but never zero bytes
	if *got.FileSize == 0 {
		t.Fatal("expected placeholder content")
	}
}
