package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trackops/exportd/internal/domain"
)

// Memory is an in-process JobStore used by tests and local dev runs. It
// enforces the same single-pending-per-owner rule the partial unique index
// gives the pg store.
type Memory struct {
	mu   sync.Mutex
	jobs map[string]*domain.ExportJob
}

func NewMemory() *Memory {
	return &Memory{jobs: map[string]*domain.ExportJob{}}
}

func (m *Memory) CreateJob(_ context.Context, j *domain.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.Status == domain.StatusPending {
		for _, existing := range m.jobs {
			if existing.Owner == j.Owner && existing.Status == domain.StatusPending {
				return domain.ErrConflict
			}
		}
	}
	m.jobs[j.ID] = clone(j)
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*domain.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(j), nil
}

func (m *Memory) HasPending(_ context.Context, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Owner == owner && j.Status == domain.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) MarkCompleted(_ context.Context, id, filePath, fileName string, fileSize, totalRecords int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusPending {
		return false, nil
	}
	j.Status = domain.StatusCompleted
	j.FilePath = &filePath
	j.FileName = &fileName
	j.FileSize = &fileSize
	j.TotalRecords = &totalRecords
	return true, nil
}

func (m *Memory) MarkFailed(_ context.Context, id, msg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusPending {
		return false, nil
	}
	j.Status = domain.StatusFailed
	j.ErrorMessage = &msg
	return true, nil
}

func (m *Memory) DeleteJob(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return false, nil
	}
	delete(m.jobs, id)
	return true, nil
}

func (m *Memory) ListByOwner(_ context.Context, owner string, status *domain.Status, page, limit int) ([]*domain.ExportJob, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.ExportJob
	for _, j := range m.jobs {
		if j.Owner != owner {
			continue
		}
		if status != nil && j.Status != *status {
			continue
		}
		matched = append(matched, j)
	}
	sort.Slice(matched, func(i, k int) bool {
		return matched[i].CreatedAt.After(matched[k].CreatedAt)
	})
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*domain.ExportJob, 0, end-start)
	for _, j := range matched[start:end] {
		out = append(out, clone(j))
	}
	return out, total, nil
}

func (m *Memory) CountByStatus(_ context.Context, owner string) (map[domain.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[domain.Status]int64{}
	for _, j := range m.jobs {
		if owner != "" && j.Owner != owner {
			continue
		}
		out[j.Status]++
	}
	return out, nil
}

func (m *Memory) ExpiredCompleted(_ context.Context, now time.Time) ([]*domain.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ExportJob
	for _, j := range m.jobs {
		if j.Status == domain.StatusCompleted && j.ExpiresAt.Before(now) {
			out = append(out, clone(j))
		}
	}
	return out, nil
}

func (m *Memory) PurgeTerminal(_ context.Context, expiredBefore, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.ExpiresAt.Before(expiredBefore) && j.CreatedAt.Before(createdBefore) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) FileNames(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, j := range m.jobs {
		if j.FileName != nil {
			out[*j.FileName] = struct{}{}
		}
	}
	return out, nil
}

// clone deep-copies a job so callers never alias store-owned state.
func clone(j *domain.ExportJob) *domain.ExportJob {
	c := *j
	c.TotalRecords = copyPtr(j.TotalRecords)
	c.FilePath = copyPtr(j.FilePath)
	c.FileName = copyPtr(j.FileName)
	c.FileSize = copyPtr(j.FileSize)
	c.ErrorMessage = copyPtr(j.ErrorMessage)
	if j.Config.DateRange != nil {
		dr := *j.Config.DateRange
		c.Config.DateRange = &dr
	}
	c.Config.PlantCodes = append([]string(nil), j.Config.PlantCodes...)
	c.Config.LocationCodes = append([]string(nil), j.Config.LocationCodes...)
	c.Config.StatusCodes = append([]string(nil), j.Config.StatusCodes...)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
