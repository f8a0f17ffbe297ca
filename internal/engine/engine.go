// Package engine implements ObliviousJoin, spec.md §4.8's orchestrator:
// it validates a join tree, asserts the encryption-state invariant at
// every phase boundary, runs the four phases in order, and publishes the
// phase metrics spec.md §6.4 names. Grounded on the teacher's
// cmd/engine/main.go startup sequencing style (log first, then run,
// bail loud on the first fatal error) and oblivious_join.h's
// LogJoinTree/GetJoinStatistics, which this package's Statistics/
// LogJoinTree functions carry over.
package engine

import (
	"log"
	"time"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/phases"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
)

// ObliviousJoin owns the dispatcher a job runs its four phases through.
// One instance is built per job; it holds no state that outlives a
// single Execute/ExecuteWithDebug call beyond the last run's Metrics.
type ObliviousJoin struct {
	cryptor  tuplecrypto.Cryptor
	maxBatch int

	lastMetrics Metrics

	// OnPhase, if set, is called synchronously as each phase finishes,
	// before the next one starts. internal/api's job runner uses this to
	// broadcast live progress over its websocket hub; it is nil for a
	// plain Execute call and never required for correctness.
	OnPhase func(PhaseMetrics)
}

// New builds an ObliviousJoin. cryptor is nil for ALL_PLAINTEXT jobs, or
// a tuplecrypto.Cryptor for ALL_ENCRYPTED jobs; maxBatch <= 0 uses
// dispatch.DefaultMaxBatch.
func New(cryptor tuplecrypto.Cryptor, maxBatch int) *ObliviousJoin {
	return &ObliviousJoin{cryptor: cryptor, maxBatch: maxBatch}
}

// Metrics returns the phase metrics recorded by the most recent Execute/
// ExecuteWithDebug call.
func (e *ObliviousJoin) Metrics() Metrics { return e.lastMetrics }

// Execute runs spec.md §4.8's orchestration steps 1-4 over tree and
// returns the final joined table. Any fatal error tears down the run:
// no partial result is ever returned.
func (e *ObliviousJoin) Execute(tree *jointree.Tree) (*obltable.Table, error) {
	return e.run(tree, nil)
}

// ExecuteWithDebug is Execute plus a named debug session: every phase
// dumps labelled intermediate-table snapshots into it as it runs, for
// post-mortem diffing across runs.
func (e *ObliviousJoin) ExecuteWithDebug(tree *jointree.Tree, sessionName string) (*obltable.Table, error) {
	result, _, err := e.ExecuteWithDebugSession(tree, sessionName)
	return result, err
}

// ExecuteWithDebugSession is ExecuteWithDebug but also returns the
// DebugSession, for a caller (internal/api's job runner, in particular)
// that wants to persist the snapshot catalog alongside the job record.
func (e *ObliviousJoin) ExecuteWithDebugSession(tree *jointree.Tree, sessionName string) (*obltable.Table, *DebugSession, error) {
	session, err := NewDebugSession(sessionName)
	if err != nil {
		return nil, nil, err
	}
	result, err := e.run(tree, session)
	return result, session, err
}

func (e *ObliviousJoin) run(tree *jointree.Tree, session *DebugSession) (*obltable.Table, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	LogJoinTree(tree)

	if err := requireUniformEncryption("validate", tree); err != nil {
		return nil, err
	}

	d := dispatch.New(e.cryptor, e.maxBatch)
	m := Metrics{}

	run := func(name string, fn func() error) error {
		before := d.Stats()
		start := time.Now()
		if err := fn(); err != nil {
			return err
		}
		if err := d.Flush(); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, name, "", err)
		}
		after := d.Stats()
		pm := PhaseMetrics{
			Name:              name,
			WallTime:          time.Since(start),
			BoundaryCrossings: after.Flushes - before.Flushes,
			TableSizeHighWater: totalTableSize(tree),
		}
		m.Phases = append(m.Phases, pm)
		if err := requireUniformEncryption(name, tree); err != nil {
			return err
		}
		if e.OnPhase != nil {
			e.OnPhase(pm)
		}
		if session != nil {
			session.dumpTree(name, tree)
		}
		return nil
	}

	if err := run("bottom_up", func() error { return phases.BottomUp(tree, d) }); err != nil {
		return nil, err
	}
	if err := run("top_down", func() error { return phases.TopDown(tree, d) }); err != nil {
		return nil, err
	}
	if err := run("distribute_expand", func() error { return phases.DistributeExpand(tree, d) }); err != nil {
		return nil, err
	}

	var result *obltable.Table
	sortStats := &phases.SortBreakdown{}
	if err := run("align_concat", func() error {
		var err error
		result, err = phases.AlignConcatWithStats(tree, d, sortStats)
		return err
	}); err != nil {
		return nil, err
	}
	m.AlignConcatSort = *sortStats

	if err := result.RequireUniformEncryption("align_concat/result"); err != nil {
		return nil, err
	}
	if session != nil {
		session.dump("final_result", result)
	}

	e.lastMetrics = m
	m.Publish()
	return result, nil
}

// requireUniformEncryption asserts spec.md §4.8 step 2/3's invariant
// across every node's table, naming phase and node on the first offender.
func requireUniformEncryption(phase string, tree *jointree.Tree) error {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		if err := node.Table.RequireUniformEncryption(phase); err != nil {
			return err
		}
	}
	return nil
}

func totalTableSize(tree *jointree.Tree) int {
	total := 0
	for id := 0; id < tree.Len(); id++ {
		total += tree.Node(jointree.NodeID(id)).Table.Len()
	}
	return total
}

func logf(format string, args ...any) { log.Printf("[ObliviousJoin] "+format, args...) }
