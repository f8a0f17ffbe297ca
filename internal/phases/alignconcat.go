package phases

import (
	"time"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
)

// SortBreakdown accumulates spec.md §6.4's "AlignConcat's sort
// breakdown: total sort time and crossings, split between accumulator
// sorts and child sorts" metric. internal/engine passes one in through
// AlignConcatWithStats; AlignConcat itself (and every phases test) uses
// the nil-stats path and pays nothing for the bookkeeping.
type SortBreakdown struct {
	AccumulatorSortTime  time.Duration
	AccumulatorCrossings int
	ChildSortTime        time.Duration
	ChildCrossings       int
}

func (s *SortBreakdown) recordAccumulator(d *dispatch.Dispatcher, start time.Time, flushesBefore int) {
	if s == nil {
		return
	}
	s.AccumulatorSortTime += time.Since(start)
	s.AccumulatorCrossings += d.Stats().Flushes - flushesBefore
}

func (s *SortBreakdown) recordChild(d *dispatch.Dispatcher, start time.Time, flushesBefore int) {
	if s == nil {
		return
	}
	s.ChildSortTime += time.Since(start)
	s.ChildCrossings += d.Stats().Flushes - flushesBefore
}

// AlignConcat runs the final pass: it walks the join tree root-first and
// builds one wide accumulator table A, starting as the root's own
// (already expanded) table. For every child c, it recursively builds c's
// own fully-joined subtree result, establishes row correspondence between
// A and that result by sorting each side onto a shared key, and merges
// them with HorizontalConcat. The table returned for the root is the
// engine's final join result.
//
// Every node's table reaching this phase has already been expanded by
// DistributeExpand to exactly the join result's total row count (every
// node's final_mult sums to that same total), so A and every recursively
// built child result are always equal length and HorizontalConcat's
// length check never fails on well-formed input.
func AlignConcat(tree *jointree.Tree, d *dispatch.Dispatcher) (*obltable.Table, error) {
	return AlignConcatWithStats(tree, d, nil)
}

// AlignConcatWithStats is AlignConcat with its sort time/crossings
// broken down into stats. Pass nil for the plain behavior.
func AlignConcatWithStats(tree *jointree.Tree, d *dispatch.Dispatcher, stats *SortBreakdown) (*obltable.Table, error) {
	root := tree.Root()
	if root == nil {
		return nil, joinerr.TreeShapeErrorf("", "join tree has no root")
	}
	return alignConcatNode(tree, d, root, stats)
}

// alignConcatNode returns node's own table horizontally merged with the
// recursively built result of every child's subtree, correspondence
// between the two sides established by sort key rather than by position.
func alignConcatNode(tree *jointree.Tree, d *dispatch.Dispatcher, node *jointree.Node, stats *SortBreakdown) (*obltable.Table, error) {
	a := node.Table
	if err := restampSequence(d, a); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", node.Name, err)
	}

	for _, childID := range node.ChildIDs {
		child := tree.Node(childID)
		c, err := alignConcatNode(tree, d, child, stats)
		if err != nil {
			return nil, err
		}

		merged, err := mergeChildResult(d, node.Name, a, child, c, stats)
		if err != nil {
			return nil, err
		}
		a = merged
	}
	return a, nil
}

// mergeChildResult sorts a by (this edge's join attribute, a's current
// canonical order as tie-break) and c by its alignment_key, then
// horizontally concatenates the two so row i of each side refers to the
// same final join tuple.
func mergeChildResult(d *dispatch.Dispatcher, nodeName string, a *obltable.Table, child *jointree.Node, c *obltable.Table, stats *SortBreakdown) (*obltable.Table, error) {
	constraint := child.Constraint
	sourceColIdx := a.Schema.ColumnIndex(constraint.SourceCol)
	if sourceColIdx < 0 {
		return nil, joinerr.TreeShapeErrorf(child.Name, "constraint source column %q not found on accumulator at align_concat time", constraint.SourceCol)
	}

	if err := a.Map(d, dispatch.OpSetJoinAttrFromCol, [4]int64{int64(sourceColIdx)}); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", nodeName, err)
	}
	accStart, accFlushes := time.Now(), d.Stats().Flushes
	if err := a.BitonicSort(d, dispatch.OpCmpJoinThenSeq); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", nodeName, err)
	}
	stats.recordAccumulator(d, accStart, accFlushes)

	if err := c.Map(d, dispatch.OpInitCopyIdx, [4]int64{}); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", child.Name, err)
	}
	if err := c.LinearPass(d, dispatch.OpWinCopyIndex, [4]int64{}); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", child.Name, err)
	}
	if err := c.Map(d, dispatch.OpComputeAlignmentKey, [4]int64{}); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", child.Name, err)
	}
	childStart, childFlushes := time.Now(), d.Stats().Flushes
	if err := c.BitonicSort(d, dispatch.OpCmpAlignmentKey); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", child.Name, err)
	}
	stats.recordChild(d, childStart, childFlushes)

	merged, err := a.HorizontalConcat(d, c)
	if err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", nodeName, err)
	}

	if err := restampSequence(d, merged); err != nil {
		return nil, joinerr.Wrap(joinerr.Dispatcher, "align_concat", nodeName, err)
	}
	return merged, nil
}

// restampSequence overwrites Index with each row's current physical
// position (0..n-1). AlignConcat re-sorts its accumulator once per child,
// and CMP_JOIN_THEN_SEQ's tie-break reads Index, so every merge needs to
// leave behind a record of the order it just established for the next
// child's sort to preserve.
func restampSequence(d *dispatch.Dispatcher, t *obltable.Table) error {
	if err := t.Map(d, dispatch.OpInitIndex, [4]int64{}); err != nil {
		return err
	}
	return t.LinearPass(d, dispatch.OpWinIndexInc, [4]int64{})
}
