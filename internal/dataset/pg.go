package dataset

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/trackops/exportd/internal/domain"
)

// PG holds the relational fetchers for the built-in dataset types. Joins
// live here so exported rows carry plant and location names, not codes.
type PG struct{ db *pgxpool.Pool }

func NewPG(db *pgxpool.Pool) *PG { return &PG{db} }

func (p *PG) RegisterAll(reg *Registry) {
	reg.Register(domain.DatasetAssets, FetcherFunc(p.assets), AssetRules)
	reg.Register(domain.DatasetScanLogs, FetcherFunc(p.scanLogs), RangeRules)
	reg.Register(domain.DatasetStatusHistory, FetcherFunc(p.statusHistory), RangeRules)
}

func (p *PG) assets(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error) {
	q := `select a.asset_no, a.name, p.name, l.name, a.status_code, a.created_at
  from assets a
  join plants p on p.code = a.plant_code
  join locations l on l.code = a.location_code
 where 1=1`
	q, args := applyFilters(q, cfg, "a.created_at", "a.plant_code", "a.location_code", "a.status_code")
	q += ` order by a.asset_no`

	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query assets")
	}
	defer rows.Close()

	var out []*domain.Row
	for rows.Next() {
		var assetNo, name, plant, location, status string
		var createdAt time.Time
		if err := rows.Scan(&assetNo, &name, &plant, &location, &status, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan asset")
		}
		out = append(out, domain.NewRow().
			Set("asset_no", assetNo).
			Set("name", name).
			Set("plant", plant).
			Set("location", location).
			Set("status", status).
			Set("created_at", createdAt.UTC().Format(time.RFC3339)))
	}
	return out, errors.Wrap(rows.Err(), "query assets")
}

func (p *PG) scanLogs(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error) {
	q := `select s.scanned_at, a.asset_no, a.name, u.display_name, l.name, s.result
  from scan_logs s
  join assets a on a.id = s.asset_id
  join users u on u.id = s.scanned_by
  join locations l on l.code = s.location_code
 where 1=1`
	q, args := applyFilters(q, cfg, "s.scanned_at", "a.plant_code", "s.location_code", "")
	q += ` order by s.scanned_at`

	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query scan logs")
	}
	defer rows.Close()

	var out []*domain.Row
	for rows.Next() {
		var assetNo, name, scannedBy, location, result string
		var scannedAt time.Time
		if err := rows.Scan(&scannedAt, &assetNo, &name, &scannedBy, &location, &result); err != nil {
			return nil, errors.Wrap(err, "scan scan log")
		}
		out = append(out, domain.NewRow().
			Set("scanned_at", scannedAt.UTC().Format(time.RFC3339)).
			Set("asset_no", assetNo).
			Set("asset_name", name).
			Set("scanned_by", scannedBy).
			Set("location", location).
			Set("result", result))
	}
	return out, errors.Wrap(rows.Err(), "query scan logs")
}

func (p *PG) statusHistory(ctx context.Context, cfg domain.ExportConfig) ([]*domain.Row, error) {
	q := `select h.changed_at, a.asset_no, a.name, h.old_status, h.new_status, u.display_name, h.note
  from status_history h
  join assets a on a.id = h.asset_id
  join users u on u.id = h.changed_by
 where 1=1`
	q, args := applyFilters(q, cfg, "h.changed_at", "a.plant_code", "a.location_code", "h.new_status")
	q += ` order by h.changed_at`

	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query status history")
	}
	defer rows.Close()

	var out []*domain.Row
	for rows.Next() {
		var assetNo, name, oldStatus, newStatus, changedBy string
		var note *string
		var changedAt time.Time
		if err := rows.Scan(&changedAt, &assetNo, &name, &oldStatus, &newStatus, &changedBy, &note); err != nil {
			return nil, errors.Wrap(err, "scan status history")
		}
		r := domain.NewRow().
			Set("changed_at", changedAt.UTC().Format(time.RFC3339)).
			Set("asset_no", assetNo).
			Set("asset_name", name).
			Set("old_status", oldStatus).
			Set("new_status", newStatus).
			Set("changed_by", changedBy).
			Set("note", "")
		if note != nil {
			r.Set("note", *note)
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "query status history")
}

// applyFilters appends the common where-clause fragments for the effective
// config. Column arguments left empty skip that filter for the dataset.
func applyFilters(q string, cfg domain.ExportConfig, tsCol, plantCol, locationCol, statusCol string) (string, []any) {
	var args []any
	add := func(frag string, v any) {
		args = append(args, v)
		q += " and " + frag + "$" + strconv.Itoa(len(args))
	}
	if cfg.DateRange != nil {
		add(tsCol+" >= ", cfg.DateRange.From)
		add(tsCol+" < ", cfg.DateRange.To)
	}
	if plantCol != "" && len(cfg.PlantCodes) > 0 {
		add(plantCol+" = any(", cfg.PlantCodes)
		q += ")"
	}
	if locationCol != "" && len(cfg.LocationCodes) > 0 {
		add(locationCol+" = any(", cfg.LocationCodes)
		q += ")"
	}
	if statusCol != "" && len(cfg.StatusCodes) > 0 {
		add(statusCol+" = any(", cfg.StatusCodes)
		q += ")"
	}
	return q, args
}
