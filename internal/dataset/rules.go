package dataset

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trackops/exportd/internal/domain"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	maxLookback   = 2 * 365 * 24 * time.Hour
	maxSpan       = 365 * 24 * time.Hour
)

// AssetRules defaults a missing date range to the last 30 days ending now.
// A supplied range is re-validated, never silently corrected.
func AssetRules(cfg domain.ExportConfig, now time.Time) (domain.ExportConfig, error) {
	if cfg.DateRange == nil {
		cfg.DateRange = &domain.DateRange{
			From: now.Add(-defaultWindow).Format(time.RFC3339),
			To:   now.Format(time.RFC3339),
		}
		return cfg, nil
	}
	return cfg, ValidateRange(*cfg.DateRange, now)
}

// RangeRules validates a date range when one is supplied and passes the
// config through untouched otherwise.
func RangeRules(cfg domain.ExportConfig, now time.Time) (domain.ExportConfig, error) {
	if cfg.DateRange == nil {
		return cfg, nil
	}
	return cfg, ValidateRange(*cfg.DateRange, now)
}

func ValidateRange(dr domain.DateRange, now time.Time) error {
	from, err := time.Parse(time.RFC3339, dr.From)
	if err != nil {
		return errors.Wrapf(domain.ErrValidation, "unparseable start date %q", dr.From)
	}
	to, err := time.Parse(time.RFC3339, dr.To)
	if err != nil {
		return errors.Wrapf(domain.ErrValidation, "unparseable end date %q", dr.To)
	}
	switch {
	case !from.Before(to):
		return errors.Wrap(domain.ErrValidation, "date range start must be before end")
	case from.Before(now.Add(-maxLookback)):
		return errors.Wrap(domain.ErrValidation, "date range starts more than 2 years ago")
	case to.After(now):
		return errors.Wrap(domain.ErrValidation, "date range ends in the future")
	case to.Sub(from) > maxSpan:
		return errors.Wrap(domain.ErrValidation, "date range spans more than 365 days")
	}
	return nil
}
