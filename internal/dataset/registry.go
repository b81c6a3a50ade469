package dataset

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trackops/exportd/internal/domain"
)

// Fetcher produces the flat rows for one dataset type. Descriptive joins
// against the master-data tables happen behind this interface.
type Fetcher interface {
	Fetch(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error)
}

type FetcherFunc func(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error)

func (f FetcherFunc) Fetch(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error) {
	return f(ctx, cfg)
}

// Normalizer applies dataset-specific defaults to a copy of the config and
// validates the result. The stored config is never mutated.
type Normalizer func(cfg domain.ExportConfig, now time.Time) (domain.ExportConfig, error)

type entry struct {
	fetch     Fetcher
	normalize Normalizer
}

// Registry maps dataset types to their fetch and normalization logic so the
// worker stays type-agnostic.
type Registry struct{ entries map[domain.DatasetType]entry }

func NewRegistry() *Registry {
	return &Registry{entries: map[domain.DatasetType]entry{}}
}

func (r *Registry) Register(t domain.DatasetType, f Fetcher, n Normalizer) {
	r.entries[t] = entry{fetch: f, normalize: n}
}

func (r *Registry) Known(t domain.DatasetType) bool {
	_, ok := r.entries[t]
	return ok
}

func (r *Registry) Normalize(t domain.DatasetType, cfg domain.ExportConfig, now time.Time) (domain.ExportConfig, error) {
	e, ok := r.entries[t]
	if !ok {
		return cfg, errors.Wrapf(domain.ErrValidation, "unknown dataset type %q", t)
	}
	if e.normalize == nil {
		return cfg, nil
	}
	return e.normalize(cfg, now)
}

func (r *Registry) Fetch(ctx context.Context, t domain.DatasetType, cfg domain.ExportConfig) ([]*domain.Row, error) {
	e, ok := r.entries[t]
	if !ok {
		return nil, errors.Wrapf(domain.ErrValidation, "unknown dataset type %q", t)
	}
	return e.fetch.Fetch(ctx, cfg)
}
