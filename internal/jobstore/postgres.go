// Package jobstore persists job-API bookkeeping — job records, their
// per-phase metrics history, and debug-session snapshot catalogs —
// against PostgreSQL. Grounded on the teacher's internal/db
// (pgxpool-backed PostgresStore, same Connect/Close/InitSchema shape,
// same transaction-batched-insert style). It never persists decrypted
// relational join data, only job/debug metadata, matching SPEC_FULL.md's
// Non-goals.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/oblivious-band-join/internal/api"
	"github.com/rawblock/oblivious-band-join/internal/engine"
)

// schemaSQL is executed once at startup. It lives inline rather than in
// a sibling .sql file read off disk: the teacher's InitSchema reads
// internal/db/schema.sql relative to the working directory, a fragile
// path assumption this package drops in favor of an embedded string.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS join_jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	error         TEXT,
	columns       JSONB,
	row_count     INTEGER
);

CREATE TABLE IF NOT EXISTS join_job_phase_metrics (
	job_id               TEXT NOT NULL REFERENCES join_jobs(id) ON DELETE CASCADE,
	phase                TEXT NOT NULL,
	wall_time_ms         BIGINT NOT NULL,
	boundary_crossings   INTEGER NOT NULL,
	table_size_high_water INTEGER NOT NULL,
	PRIMARY KEY (job_id, phase)
);

CREATE TABLE IF NOT EXISTS join_job_snapshots (
	job_id     TEXT NOT NULL REFERENCES join_jobs(id) ON DELETE CASCADE,
	label      TEXT NOT NULL,
	node       TEXT NOT NULL,
	rows       INTEGER NOT NULL,
	path       TEXT NOT NULL,
	audit_hex  TEXT NOT NULL,
	PRIMARY KEY (job_id, label)
);

CREATE TABLE IF NOT EXISTS shadow_verifications (
	job_id      TEXT NOT NULL REFERENCES join_jobs(id) ON DELETE CASCADE,
	divergent   BOOLEAN NOT NULL,
	got_rows    INTEGER NOT NULL,
	want_rows   INTEGER NOT NULL,
	mismatch    TEXT,
	verified_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, verified_at)
);
`

// Store is the Postgres-backed api.JobStore/api.SnapshotStore
// implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and pings it, matching the teacher's db.Connect.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("jobstore: unable to connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("jobstore: ping failed: %w", err)
	}
	log.Println("[jobstore] connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// Close gracefully closes the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the job/metrics/snapshot tables if absent.
func (s *Store) InitSchema() error {
	if _, err := s.pool.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("jobstore: schema init failed: %w", err)
	}
	log.Println("[jobstore] schema initialized")
	return nil
}

// SaveJob upserts a job's current status/result summary plus its
// per-phase metrics, in one transaction — the same begin/defer-rollback/
// commit shape as the teacher's SaveAnalysisResult.
func (s *Store) SaveJob(job *api.Job) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("jobstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	columnsJSON, err := json.Marshal(job.Columns)
	if err != nil {
		return fmt.Errorf("jobstore: marshal columns: %w", err)
	}

	var finishedAt any
	if !job.FinishedAt.IsZero() {
		finishedAt = job.FinishedAt
	}

	upsertJobSQL := `
		INSERT INTO join_jobs (id, status, created_at, finished_at, error, columns, row_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, finished_at = EXCLUDED.finished_at,
		    error = EXCLUDED.error, columns = EXCLUDED.columns, row_count = EXCLUDED.row_count;
	`
	if _, err := tx.Exec(ctx, upsertJobSQL,
		job.ID, job.Status, job.CreatedAt, finishedAt, job.Error, columnsJSON, len(job.Result),
	); err != nil {
		return fmt.Errorf("jobstore: upsert job: %w", err)
	}

	if job.Metrics != nil {
		insertPhaseSQL := `
			INSERT INTO join_job_phase_metrics (job_id, phase, wall_time_ms, boundary_crossings, table_size_high_water)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (job_id, phase) DO UPDATE
			SET wall_time_ms = EXCLUDED.wall_time_ms, boundary_crossings = EXCLUDED.boundary_crossings,
			    table_size_high_water = EXCLUDED.table_size_high_water;
		`
		for _, pm := range job.Metrics.Phases {
			if _, err := tx.Exec(ctx, insertPhaseSQL,
				job.ID, pm.Name, pm.WallTime.Milliseconds(), pm.BoundaryCrossings, pm.TableSizeHighWater,
			); err != nil {
				return fmt.Errorf("jobstore: insert phase metrics: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// SaveSnapshots catalogs a debug session's labelled dumps, keyed by job
// id plus label, satisfying api.SnapshotStore.
func (s *Store) SaveSnapshots(jobID string, snapshots []engine.SnapshotInfo) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("jobstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertSQL := `
		INSERT INTO join_job_snapshots (job_id, label, node, rows, path, audit_hex)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id, label) DO UPDATE
		SET node = EXCLUDED.node, rows = EXCLUDED.rows, path = EXCLUDED.path, audit_hex = EXCLUDED.audit_hex;
	`
	for _, snap := range snapshots {
		if _, err := tx.Exec(ctx, insertSQL, jobID, snap.Label, snap.Node, snap.Rows, snap.Path, snap.AuditHex); err != nil {
			return fmt.Errorf("jobstore: insert snapshot: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetPool exposes the connection pool, matching the teacher's
// db.PostgresStore.GetPool — for anything needing a raw query path this
// package doesn't wrap.
func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}
