// Package store is the adapter (C3) for all reads and writes against the
// relational schema: jobs, job_objects, findings. It follows
// internal/db/postgres.go's shape (a struct wrapping a pgxpool.Pool,
// Connect/Close/InitSchema, one statement or short transaction per
// operation) but replaces the forensics-engine schema with the job/
// job-object/finding schema of spec.md §3.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/sentryscan/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by GetJob when the job id is unknown.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateJob is returned by CreateJob when the job id already exists.
var ErrDuplicateJob = errors.New("store: job already exists")

// PostgresStore wraps a bounded connection pool; the spec calls for ~5 for
// the ingestor/API and ~10 for the worker (spec.md §5). Callers set the pool
// size through Connect's maxConns argument; when it is zero or less, the
// DSN's pool_max_conns parameter or the pgxpool default applies.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens a bounded connection pool against connStr and verifies
// connectivity with a ping, following db.Connect in the teacher.
func Connect(ctx context.Context, connStr string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[Store] Connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the job/job_object/finding tables if absent.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[Store] Schema initialized")
	return nil
}

// CreateJob inserts the job row, failing with ErrDuplicateJob on a repeat id.
func (s *PostgresStore) CreateJob(ctx context.Context, jobID, bucket, prefix string, now time.Time) error {
	const sql = `INSERT INTO jobs (job_id, bucket, prefix, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	_, err := s.pool.Exec(ctx, sql, jobID, bucket, prefix, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateJob
		}
		return fmt.Errorf("create job %s: %w", jobID, err)
	}
	return nil
}

// UpsertObject inserts a queued job_object row; a conflict on the natural
// key (job, bucket, key, entity-tag) is a no-op, making retries idempotent.
func (s *PostgresStore) UpsertObject(ctx context.Context, jobID, bucket, key, entityTag string, now time.Time) error {
	const sql = `
		INSERT INTO job_objects (job_id, bucket, key, entity_tag, status, updated_at)
		VALUES ($1, $2, $3, $4, 'queued', $5)
		ON CONFLICT (job_id, bucket, key, entity_tag) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, sql, jobID, bucket, key, entityTag, now)
	if err != nil {
		return fmt.Errorf("upsert object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// SetObjectStatus updates status and last_error, stamping updated_at.
func (s *PostgresStore) SetObjectStatus(ctx context.Context, jobID, bucket, key, entityTag string, status models.ObjectStatus, lastError string, now time.Time) error {
	const sql = `
		UPDATE job_objects
		SET status = $5, last_error = NULLIF($6, ''), updated_at = $7
		WHERE job_id = $1 AND bucket = $2 AND key = $3 AND entity_tag = $4
	`
	_, err := s.pool.Exec(ctx, sql, jobID, bucket, key, entityTag, status, lastError, now)
	if err != nil {
		return fmt.Errorf("set object status %s/%s: %w", bucket, key, err)
	}
	return nil
}

// InsertFindings bulk-inserts records, relying on the unique index over
// (bucket, key, entity_tag, detector, byte_offset) to silently drop
// duplicates, and returns the count actually inserted.
func (s *PostgresStore) InsertFindings(ctx context.Context, findings []models.Finding, now time.Time) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}

	const sql = `
		INSERT INTO findings (job_id, bucket, key, entity_tag, detector, masked_match, context, byte_offset, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bucket, key, entity_tag, detector, byte_offset) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, f := range findings {
		batch.Queue(sql, f.JobID, f.Bucket, f.Key, f.EntityTag, f.Detector, f.MaskedMatch, f.Context, f.ByteOffset, now)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range findings {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert findings batch: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetJob returns the job row or ErrNotFound.
func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (models.Job, error) {
	const sql = `SELECT job_id, bucket, prefix, created_at, updated_at FROM jobs WHERE job_id = $1`
	var j models.Job
	err := s.pool.QueryRow(ctx, sql, jobID).Scan(&j.JobID, &j.Bucket, &j.Prefix, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, ErrNotFound
		}
		return models.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return j, nil
}

// DeleteJob removes the job row; cascade deletes remove its job_objects and
// findings.
func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	const sql = `DELETE FROM jobs WHERE job_id = $1`
	tag, err := s.pool.Exec(ctx, sql, jobID)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObjectsByStatus returns a zero-filled aggregation of job_object
// status for jobID.
func (s *PostgresStore) CountObjectsByStatus(ctx context.Context, jobID string) (models.StatusCounts, error) {
	const sql = `SELECT status, COUNT(*) FROM job_objects WHERE job_id = $1 GROUP BY status`
	rows, err := s.pool.Query(ctx, sql, jobID)
	if err != nil {
		return models.StatusCounts{}, fmt.Errorf("count objects for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var counts models.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.StatusCounts{}, fmt.Errorf("scan status count: %w", err)
		}
		switch models.ObjectStatus(status) {
		case models.StatusQueued:
			counts.Queued = n
		case models.StatusProcessing:
			counts.Processing = n
		case models.StatusSucceeded:
			counts.Succeeded = n
		case models.StatusFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return models.StatusCounts{}, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// CountFindings returns the total finding count for jobID.
func (s *PostgresStore) CountFindings(ctx context.Context, jobID string) (int, error) {
	const sql = `SELECT COUNT(*) FROM findings WHERE job_id = $1`
	var n int
	if err := s.pool.QueryRow(ctx, sql, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count findings for job %s: %w", jobID, err)
	}
	return n, nil
}

// ListFindings returns rows with id strictly greater than cursor, ordered
// by id ascending, limited to limit, optionally filtered by bucket and/or
// key prefix.
func (s *PostgresStore) ListFindings(ctx context.Context, bucket, prefix string, limit int, cursor int64) ([]models.Finding, error) {
	sql, args := buildListFindingsQuery(bucket, prefix, limit, cursor)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	findings := make([]models.Finding, 0, limit)
	for rows.Next() {
		var f models.Finding
		if err := rows.Scan(&f.ID, &f.JobID, &f.Bucket, &f.Key, &f.EntityTag, &f.Detector, &f.MaskedMatch, &f.Context, &f.ByteOffset, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, nil
}

// buildListFindingsQuery assembles the parameterized ListFindings query. It
// is a free function so the query-building logic can be unit tested without
// a live database.
func buildListFindingsQuery(bucket, prefix string, limit int, cursor int64) (string, []any) {
	sql := `
		SELECT id, job_id, bucket, key, entity_tag, detector, masked_match, context, byte_offset, created_at
		FROM findings
		WHERE id > $1
	`
	args := []any{cursor}
	if bucket != "" {
		args = append(args, bucket)
		sql += fmt.Sprintf(" AND bucket = $%d", len(args))
	}
	if prefix != "" {
		args = append(args, escapeLikePattern(prefix)+"%")
		sql += fmt.Sprintf(" AND key LIKE $%d ESCAPE '\\'", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args))
	return sql, args
}

// likeEscaper escapes the LIKE metacharacters % and _, and the escape
// character itself, so a caller-supplied prefix is matched byte-exact
// (spec.md §4.3) rather than as a pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}
