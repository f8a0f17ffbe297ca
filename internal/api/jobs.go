package api

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/oblivious-band-join/internal/engine"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/tableio"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// JobStatus is a job's lifecycle state, mirroring the teacher's block
// scanner progress states (queued/running/done/failed).
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

// NodeSpec describes one table in a submitted join tree: where its rows
// come from on disk and, for every node but the root, the band
// constraint attaching it to its parent. Join-tree construction from
// parsed SQL is out of scope (spec.md/SPEC_FULL §1), so the API accepts
// an already-shaped tree instead of a query string.
type NodeSpec struct {
	Name        string `json:"name"`
	CSVPath     string `json:"csvPath"`
	JoinColumn  string `json:"joinColumn"`
	ParentIndex int    `json:"parentIndex"` // -1 for the root node

	SourceCol string `json:"sourceCol,omitempty"`
	TargetCol string `json:"targetCol,omitempty"`
	Delta1    int64  `json:"delta1,omitempty"`
	Delta2    int64  `json:"delta2,omitempty"`
	Open1     string `json:"open1,omitempty"` // "closed" or "open"
	Open2     string `json:"open2,omitempty"`
}

// JobRequest is the POST /api/v1/jobs body.
type JobRequest struct {
	Nodes     []NodeSpec `json:"nodes"`
	Encrypted bool       `json:"encrypted"`
	Debug     bool       `json:"debug"`
}

// Job is one submitted join run, from acceptance through completion.
type Job struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	FinishedAt time.Time       `json:"finishedAt,omitempty"`
	Error     string           `json:"error,omitempty"`
	Metrics   *engine.Metrics  `json:"metrics,omitempty"`
	Result    [][]int64        `json:"result,omitempty"`
	Columns   []string         `json:"columns,omitempty"`
}

// JobManager owns the in-memory job table and runs jobs against
// internal/engine. It optionally persists job records through a
// jobstore and streams phase progress over a websocket hub; both are
// nil-safe, matching the teacher's dbStore/wsHub degrade-to-nil style.
type JobManager struct {
	mu   sync.Mutex
	jobs map[string]*Job

	store JobStore
	hub   *Hub
}

// JobStore is the persistence seam internal/jobstore implements. A nil
// JobManager.store means "don't persist" — jobs still run and live in
// memory for the lifetime of the process.
type JobStore interface {
	SaveJob(job *Job) error
}

// SnapshotStore is an optional extension a JobStore may also implement
// to catalog a debug session's labelled snapshots. JobManager checks
// for it with a type assertion rather than folding it into JobStore,
// since a store can persist jobs without ever wanting debug snapshots.
type SnapshotStore interface {
	SaveSnapshots(jobID string, snapshots []engine.SnapshotInfo) error
}

// NewJobManager builds a JobManager. store and hub may both be nil.
func NewJobManager(store JobStore, hub *Hub) *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		store: store,
		hub:   hub,
	}
}

// Submit accepts a JobRequest, builds its join tree, and starts the
// join running in the background. It returns immediately with the
// job's id so a caller can poll or listen on the websocket stream.
func (jm *JobManager) Submit(req JobRequest) (*Job, error) {
	tree, err := buildTree(req.Nodes)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	jm.mu.Lock()
	jm.jobs[job.ID] = job
	jm.mu.Unlock()
	jm.persist(job)

	go jm.run(job, tree, req)
	return job, nil
}

// Get returns the job with the given id, or nil if none exists.
func (jm *JobManager) Get(id string) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.jobs[id]
}

func (jm *JobManager) run(job *Job, tree *jointree.Tree, req JobRequest) {
	jm.setStatus(job, StatusRunning, nil)

	var cryptor tuplecrypto.Cryptor
	if req.Encrypted {
		key, err := tuplecrypto.GenerateKey()
		if err != nil {
			jm.fail(job, fmt.Errorf("generate key: %w", err))
			return
		}
		cryptor = tuplecrypto.NewAESCryptor(key)
		if err := encryptTree(cryptor, tree); err != nil {
			jm.fail(job, err)
			return
		}
	}

	eng := engine.New(cryptor, 0)
	eng.OnPhase = func(pm engine.PhaseMetrics) {
		jm.broadcastPhase(job.ID, pm)
	}

	var (
		result  *obltable.Table
		session *engine.DebugSession
		err     error
	)
	if req.Debug {
		result, session, err = eng.ExecuteWithDebugSession(tree, job.ID)
	} else {
		result, err = eng.Execute(tree)
	}
	if err != nil {
		jm.fail(job, err)
		return
	}
	if session != nil {
		jm.persistSnapshots(job.ID, session)
	}
	if cryptor != nil {
		for i := range result.Tuples {
			if status := cryptor.Decrypt(&result.Tuples[i]); status != tuplecrypto.OK {
				jm.fail(job, fmt.Errorf("decrypt result row %d: status=%v", i, status))
				return
			}
		}
	}

	metrics := eng.Metrics()
	jm.mu.Lock()
	job.Status = StatusDone
	job.FinishedAt = time.Now()
	job.Metrics = &metrics
	job.Columns = result.Schema.Columns
	job.Result = toRows(result)
	jm.mu.Unlock()
	jm.persist(job)
	jm.broadcastStatus(job)
}

func (jm *JobManager) setStatus(job *Job, status JobStatus, err error) {
	jm.mu.Lock()
	job.Status = status
	if err != nil {
		job.Error = err.Error()
	}
	jm.mu.Unlock()
	jm.persist(job)
	jm.broadcastStatus(job)
}

func (jm *JobManager) fail(job *Job, err error) {
	jm.mu.Lock()
	job.Status = StatusFailed
	job.FinishedAt = time.Now()
	job.Error = err.Error()
	jm.mu.Unlock()
	jm.persist(job)
	jm.broadcastStatus(job)
}

func (jm *JobManager) persistSnapshots(jobID string, session *engine.DebugSession) {
	store, ok := jm.store.(SnapshotStore)
	if !ok {
		return
	}
	if err := store.SaveSnapshots(jobID, session.Snapshots); err != nil {
		log.Printf("[JobManager] failed to persist snapshot catalog for job %s: %v", jobID, err)
	}
}

func (jm *JobManager) persist(job *Job) {
	if jm.store == nil {
		return
	}
	if err := jm.store.SaveJob(job); err != nil {
		log.Printf("[JobManager] failed to persist job %s: %v", job.ID, err)
	}
}

func (jm *JobManager) broadcastStatus(job *Job) {
	if jm.hub == nil {
		return
	}
	jm.hub.BroadcastJSON(map[string]any{
		"type":   "job_status",
		"jobId":  job.ID,
		"status": job.Status,
		"error":  job.Error,
	})
}

func (jm *JobManager) broadcastPhase(jobID string, pm engine.PhaseMetrics) {
	if jm.hub == nil {
		return
	}
	jm.hub.BroadcastJSON(map[string]any{
		"type":               "phase_metrics",
		"jobId":              jobID,
		"phase":              pm.Name,
		"wallTimeMs":         pm.WallTime.Milliseconds(),
		"boundaryCrossings":  pm.BoundaryCrossings,
		"tableSizeHighWater": pm.TableSizeHighWater,
	})
}

// buildTree turns a flat NodeSpec list into a jointree.Tree, loading
// each node's rows from CSV. nodes[i].ParentIndex references nodes by
// position in the request, matching how a client would naturally lay
// out a tree in JSON without inventing a separate id scheme.
func buildTree(nodes []NodeSpec) (*jointree.Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("job has no nodes")
	}

	tree := jointree.New()
	ids := make([]jointree.NodeID, len(nodes))
	rootIdx := -1

	for i, n := range nodes {
		table, err := tableio.LoadCSV(n.CSVPath, n.Name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", n.Name, err)
		}
		ids[i] = tree.AddNode(n.Name, table, n.JoinColumn)
		if n.ParentIndex < 0 {
			if rootIdx >= 0 {
				return nil, fmt.Errorf("job has more than one root node (%s and %s)", nodes[rootIdx].Name, n.Name)
			}
			rootIdx = i
		}
	}
	if rootIdx < 0 {
		return nil, fmt.Errorf("job has no root node (parentIndex -1)")
	}
	tree.SetRoot(ids[rootIdx])

	for i, n := range nodes {
		if n.ParentIndex < 0 {
			continue
		}
		if n.ParentIndex >= len(nodes) {
			return nil, fmt.Errorf("node %s: parentIndex %d out of range", n.Name, n.ParentIndex)
		}
		tree.AddChild(ids[n.ParentIndex], ids[i], jointree.JoinConstraint{
			SourceCol: n.SourceCol,
			TargetCol: n.TargetCol,
			Delta1:    n.Delta1,
			Delta2:    n.Delta2,
			Open1:     parseOpenness(n.Open1),
			Open2:     parseOpenness(n.Open2),
		})
	}
	return tree, nil
}

func parseOpenness(s string) model.BoundaryOpenness {
	if s == "open" {
		return model.Open
	}
	return model.Closed
}

func encryptTree(cryptor tuplecrypto.Cryptor, tree *jointree.Tree) error {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		for i := range node.Table.Tuples {
			if status := cryptor.Encrypt(&node.Table.Tuples[i]); status != tuplecrypto.OK {
				return fmt.Errorf("encrypt %s row %d: status=%v", node.Name, i, status)
			}
		}
	}
	return nil
}

func toRows(t *obltable.Table) [][]int64 {
	rows := make([][]int64, t.Len())
	for i, tup := range t.Tuples {
		row := make([]int64, len(t.Schema.Columns))
		copy(row, tup.Attributes[:len(t.Schema.Columns)])
		rows[i] = row
	}
	return rows
}
