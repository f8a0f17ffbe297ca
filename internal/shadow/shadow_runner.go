// Package shadow runs an oblivious join's result against
// internal/oracle's trusted-but-slow reference evaluator and persists
// any divergence, the same "run two implementations, diff, persist the
// disagreement" shape as the teacher's ShadowRunner (production vs
// experimental heuristics), repointed at oblivious-engine-vs-oracle
// verification instead of production-vs-experimental classifiers.
package shadow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/oracle"
)

// Result captures one verification run's outcome.
type Result struct {
	JobID      string    `json:"jobId"`
	Divergent  bool      `json:"divergent"`
	GotRows    int       `json:"gotRows"`
	WantRows   int       `json:"wantRows"`
	Mismatch   string    `json:"mismatch,omitempty"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Runner verifies ObliviousJoin output against oracle.Evaluate and
// optionally persists the comparison to a shadow_verifications table.
// A nil pool disables persistence, matching the teacher's
// pool-nil-means-don't-persist convention.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner builds a Runner. pool may be nil.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// Verify compares got (an ObliviousJoin result) against the reference
// join over the same tree. tree's tables must be plaintext: the oracle
// never touches a Cryptor, matching oracle.Evaluate's own contract.
func (r *Runner) Verify(ctx context.Context, jobID string, tree *jointree.Tree, got *obltable.Table) (*Result, error) {
	want, err := oracle.Evaluate(tree)
	if err != nil {
		return nil, fmt.Errorf("shadow: reference evaluation failed: %w", err)
	}
	gotRows := toOracleRows(got)

	result := &Result{
		JobID:      jobID,
		GotRows:    len(gotRows),
		WantRows:   len(want),
		VerifiedAt: time.Now(),
	}
	if err := oracle.CompareMultiset(gotRows, want); err != nil {
		result.Divergent = true
		result.Mismatch = err.Error()
		log.Printf("[Shadow] DIVERGENCE on job %s: %s", jobID, result.Mismatch)
	}

	if r.pool != nil {
		if err := r.persist(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func toOracleRows(t *obltable.Table) []oracle.Row {
	rows := make([]oracle.Row, len(t.Tuples))
	for i, tup := range t.Tuples {
		row := make(oracle.Row, len(t.Schema.Columns))
		for j, col := range t.Schema.Columns {
			row[col] = tup.Attributes[j]
		}
		rows[i] = row
	}
	return rows
}

func (r *Runner) persist(ctx context.Context, result *Result) error {
	sql := `INSERT INTO shadow_verifications
		(job_id, divergent, got_rows, want_rows, mismatch, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, sql,
		result.JobID, result.Divergent, result.GotRows, result.WantRows, result.Mismatch, result.VerifiedAt,
	)
	return err
}

// GenerateDriftReport summarizes every persisted verification: how many
// ran and how many diverged, the teacher's GenerateDriftReport shape
// repointed at this package's own table.
func (r *Runner) GenerateDriftReport(ctx context.Context) (totalRuns int, divergences int, err error) {
	sql := `SELECT COUNT(*), COUNT(*) FILTER (WHERE divergent) FROM shadow_verifications`
	row := r.pool.QueryRow(ctx, sql)
	err = row.Scan(&totalRuns, &divergences)
	return
}
