// Package jointree implements JoinConstraint and JoinTree: the band-join
// predicate between a node and its parent, and the arena-of-nodes tree
// structure spec.md §9's design notes call for in place of the original's
// shared/weak-pointer ownership graph.
package jointree

import "github.com/rawblock/oblivious-band-join/pkg/model"

// Unbounded sentinels stand in for the ±infinity endpoints a band
// predicate may omit (e.g. "parent.ts <= child.ts", which only bounds one
// side).
const (
	NegInf = int64(-1) << 62
	PosInf = int64(1) << 62
)

// JoinConstraint is the band predicate attaching a node to its parent:
// parent.col + delta1 <=/< child.col <=/< parent.col + delta2, read off
// the SourceCol (parent-side) and TargetCol (child-side) column names.
type JoinConstraint struct {
	SourceCol string
	TargetCol string
	Delta1    int64
	Delta2    int64
	Open1     model.BoundaryOpenness
	Open2     model.BoundaryOpenness
}

// Reverse flips a constraint so it can be read from the child's
// perspective: child.col - delta2 <=/< parent.col <=/< child.col - delta1.
// BottomUp counts, per parent row, how many child rows its own
// (unreversed) window contains. TopDown needs the opposite question
// answered per child row — how many parent rows have a window containing
// it — which is exactly a window defined in the reversed constraint's
// terms, centered on the child's own column value.
func (c JoinConstraint) Reverse() JoinConstraint {
	negDelta2, negDelta1 := negateBound(c.Delta2), negateBound(c.Delta1)
	return JoinConstraint{
		SourceCol: c.TargetCol,
		TargetCol: c.SourceCol,
		Delta1:    negDelta2,
		Delta2:    negDelta1,
		Open1:     c.Open2,
		Open2:     c.Open1,
	}
}

func negateBound(d int64) int64 {
	switch d {
	case NegInf:
		return PosInf
	case PosInf:
		return NegInf
	default:
		return -d
	}
}

// StartParams and EndParams pack the constraint into the four-slot
// Operation payload MAKE_START/MAKE_END opcodes expect:
// [sourceColIdx, openness, delta, 0].
// sourceColIdx is resolved by the caller against the relevant schema.
func (c JoinConstraint) StartParams(sourceColIdx int) [4]int64 {
	return [4]int64{int64(sourceColIdx), int64(c.Open1), c.Delta1, 0}
}

func (c JoinConstraint) EndParams(sourceColIdx int) [4]int64 {
	return [4]int64{int64(sourceColIdx), int64(c.Open2), c.Delta2, 0}
}
