package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/trackops/exportd/internal/domain"
)

type Store struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{db} }

const jobColumns = `id, owner_id, dataset_type, status, config,
total_records, file_path, file_name, file_size, error_message,
created_at, expires_at`

// CreateJob persists a new pending job (source of truth). The partial
// unique index on (owner_id) where status='pending' holds the
// single-flight rule even under concurrent submissions.
func (s *Store) CreateJob(ctx context.Context, j *domain.ExportJob) error {
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	_, err = s.db.Exec(ctx, `insert into export_jobs(
id, owner_id, dataset_type, status, config, created_at, expires_at
) values ($1,$2,$3,$4,$5,$6,$7)`,
		j.ID, j.Owner, j.DatasetType, j.Status, cfg, j.CreatedAt, j.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "insert export job")
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	row := s.db.QueryRow(ctx, `select `+jobColumns+` from export_jobs where id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (s *Store) HasPending(ctx context.Context, owner string) (bool, error) {
	var pending bool
	err := s.db.QueryRow(ctx,
		`select exists(select 1 from export_jobs where owner_id = $1 and status = 'pending')`,
		owner).Scan(&pending)
	return pending, errors.Wrap(err, "check pending")
}

// MarkCompleted transitions a pending job to completed. The status guard in
// the where clause means a job already cancelled or failed stays put; the
// caller learns via the bool whether the update landed.
func (s *Store) MarkCompleted(ctx context.Context, id, filePath, fileName string, fileSize, totalRecords int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `update export_jobs
   set status = 'completed', file_path = $2, file_name = $3, file_size = $4, total_records = $5
 where id = $1 and status = 'pending'`,
		id, filePath, fileName, fileSize, totalRecords)
	if err != nil {
		return false, errors.Wrap(err, "mark completed")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkFailed(ctx context.Context, id, msg string) (bool, error) {
	tag, err := s.db.Exec(ctx, `update export_jobs
   set status = 'failed', error_message = $2
 where id = $1 and status = 'pending'`, id, msg)
	if err != nil {
		return false, errors.Wrap(err, "mark failed")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `delete from export_jobs where id = $1`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete export job")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string, status *domain.Status, page, limit int) ([]*domain.ExportJob, int64, error) {
	var total int64
	countQ := `select count(*) from export_jobs where owner_id = $1`
	listQ := `select ` + jobColumns + ` from export_jobs where owner_id = $1`
	args := []any{owner}
	if status != nil {
		args = append(args, *status)
		countQ += ` and status = $2`
		listQ += ` and status = $2`
	}
	if err := s.db.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count jobs")
	}
	listQ += ` order by created_at desc limit $` + strconv.Itoa(len(args)+1) + ` offset $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	var out []*domain.ExportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, errors.Wrap(rows.Err(), "list jobs")
}

// CountByStatus aggregates job counts, across all owners when owner is
// empty.
func (s *Store) CountByStatus(ctx context.Context, owner string) (map[domain.Status]int64, error) {
	q := `select status, count(*) from export_jobs`
	var args []any
	if owner != "" {
		q += ` where owner_id = $1`
		args = append(args, owner)
	}
	q += ` group by status`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	defer rows.Close()

	out := map[domain.Status]int64{}
	for rows.Next() {
		var st domain.Status
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, errors.Wrap(rows.Err(), "count by status")
}

// ExpiredCompleted returns completed jobs whose download window has passed;
// the sweeper deletes their files and records.
func (s *Store) ExpiredCompleted(ctx context.Context, now time.Time) ([]*domain.ExportJob, error) {
	rows, err := s.db.Query(ctx,
		`select `+jobColumns+` from export_jobs where status = 'completed' and expires_at < $1`, now)
	if err != nil {
		return nil, errors.Wrap(err, "list expired")
	}
	defer rows.Close()

	var out []*domain.ExportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, errors.Wrap(rows.Err(), "list expired")
}

// PurgeTerminal bulk-deletes terminal records that expired before
// expiredBefore and were created before createdBefore.
func (s *Store) PurgeTerminal(ctx context.Context, expiredBefore, createdBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `delete from export_jobs
 where status in ('completed','failed')
   and expires_at < $1
   and created_at < $2`, expiredBefore, createdBefore)
	if err != nil {
		return 0, errors.Wrap(err, "purge terminal jobs")
	}
	return tag.RowsAffected(), nil
}

// FileNames returns every file name a job record still references. Orphan
// detection matches directory entries against this set exactly.
func (s *Store) FileNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `select file_name from export_jobs where file_name is not null`)
	if err != nil {
		return nil, errors.Wrap(err, "list file names")
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = struct{}{}
	}
	return out, errors.Wrap(rows.Err(), "list file names")
}

func scanJob(row pgx.Row) (*domain.ExportJob, error) {
	var j domain.ExportJob
	var cfg []byte
	err := row.Scan(&j.ID, &j.Owner, &j.DatasetType, &j.Status, &cfg,
		&j.TotalRecords, &j.FilePath, &j.FileName, &j.FileSize, &j.ErrorMessage,
		&j.CreatedAt, &j.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &j.Config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &j, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
