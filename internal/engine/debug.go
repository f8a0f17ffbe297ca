package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/tableio"
)

// DebugSession is ExecuteWithDebug's named snapshot session: a directory
// on disk that accumulates one labelled table dump per phase per node,
// plus a manifest of each dump's audit fingerprint so two runs of the
// same job can be diffed for byte-identical intermediate state — the
// practical counterpart of spec.md §8's "byte-identical submission
// sequence" obliviousness property. Grounded on
// distribute_expand.cpp's scattered debug_dump_table calls, which this
// package folds into one session abstraction instead of one free
// function per call site.
type DebugSession struct {
	ID   string
	Name string
	Dir  string

	Snapshots []SnapshotInfo
}

// SnapshotInfo records one dump: its stable label, the node it came
// from, row count, and a double-SHA256 audit fingerprint of its
// encrypted-CSV bytes (the teacher's EvidenceEdge.AuditHash pattern,
// adapted from a single sha256 to btcsuite's DoubleHashH since the audit
// trail here covers a whole snapshot file rather than one inference
// edge).
type SnapshotInfo struct {
	Label    string
	Node     string
	Rows     int
	Path     string
	AuditHex string
}

// NewDebugSession creates a fresh per-run snapshot directory under
// os.TempDir()/obliviousjoin-debug/<name>-<id>.
func NewDebugSession(name string) (*DebugSession, error) {
	id := uuid.NewString()
	dir := filepath.Join(os.TempDir(), "obliviousjoin-debug", fmt.Sprintf("%s-%s", name, id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create debug session dir: %w", err)
	}
	return &DebugSession{ID: id, Name: name, Dir: dir}, nil
}

// dumpTree snapshots every node of tree under a label derived from the
// phase that just ran.
func (s *DebugSession) dumpTree(phase string, tree *jointree.Tree) {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		label := fmt.Sprintf("%s_%s", phase, node.Name)
		s.dump(label, node.Table)
	}
}

// dump writes one labelled snapshot. Failures are logged, not fatal: a
// debug session is a best-effort post-mortem aid, not part of the
// engine's correctness contract.
func (s *DebugSession) dump(label string, t *obltable.Table) {
	path := filepath.Join(s.Dir, label+".csv")
	if err := tableio.SaveEncryptedCSV(path, t); err != nil {
		logf("debug session %s: failed to dump %s: %v", s.ID, label, err)
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logf("debug session %s: failed to re-read %s for fingerprint: %v", s.ID, label, err)
		return
	}
	audit := chainhash.DoubleHashH(raw)
	s.Snapshots = append(s.Snapshots, SnapshotInfo{
		Label:    label,
		Node:     t.Name,
		Rows:     t.Len(),
		Path:     path,
		AuditHex: audit.String(),
	})
}
