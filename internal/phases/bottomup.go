// Package phases implements the four passes ObliviousJoin runs over a
// JoinTree in order: BottomUp, TopDown, DistributeExpand, AlignConcat.
// Every one drives internal/obltable and internal/dispatch primitives;
// none of them construct a raw join in Go — the dispatcher's Operation
// sequence is what actually computes the result.
package phases

import (
	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// BottomUp runs the post-order pass: for every internal node v and every
// child c of v, it folds the count of c's rows falling in each v-row's
// band into v's local_mult, so that after the whole pass a node's
// local_mult equals the number of subtree-join rows containing it.
func BottomUp(tree *jointree.Tree, d *dispatch.Dispatcher) error {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		if err := node.Table.Map(d, dispatch.OpInitMeta, [4]int64{}); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, "bottom_up", node.Name, err)
		}
	}

	for _, id := range tree.PostOrder() {
		parent := tree.Node(id)
		for _, childID := range parent.ChildIDs {
			child := tree.Node(childID)
			if err := combineChildIntoParent(d, parent, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// combineChildIntoParent implements spec.md §4.4's combined-stream
// algorithm for one join-tree edge: it builds the SOURCE/START/END
// stream, sorts it by join attribute, prefix-sums child weight into
// local_cumsum, re-sorts to pair each parent's START with its END, and
// multiplies that band count into the parent row's running local_mult.
func combineChildIntoParent(d *dispatch.Dispatcher, parent, child *jointree.Node) error {
	constraint := child.Constraint
	sourceColIdx := parent.Table.Schema.ColumnIndex(constraint.SourceCol)
	targetColIdx := child.Table.Schema.ColumnIndex(constraint.TargetCol)
	if sourceColIdx < 0 || targetColIdx < 0 {
		return joinerr.TreeShapeErrorf(child.Name, "constraint column not resolved at bottom_up time")
	}

	ends, err := localIntervalPerWindow(d, parent.Table, sourceColIdx, constraint, child.Table, targetColIdx)
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "bottom_up", child.Name, err)
	}

	for j := range parent.Table.Tuples {
		if err := d.Submit(dispatch.OpMultiplyTargetLocalMult, [4]int64{}, &parent.Table.Tuples[j], ends[j]); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, "bottom_up", child.Name, err)
		}
	}
	return nil
}

// localIntervalPerWindow computes, for one join-tree edge, the count of
// points rows falling into each windows row's band: it builds the
// SOURCE/START/END stream, sorts it, prefix-sums point weight, and pairs
// each window's START against its END to turn the running sum into a band
// count. It returns the wantEnds END entries of a disposable combined
// table, in windows' own row order (see pairBoundariesAndDiff).
//
// BottomUp calls this once per edge and folds the result straight into
// the window row's running local_mult, which accumulates the product
// across every one of that node's children. TopDown needs the same
// per-edge count in isolation — one child at a time, not folded together
// — so it calls this again for the single edge it is propagating into
// rather than reusing local_mult's all-children product.
func localIntervalPerWindow(d *dispatch.Dispatcher, windows *obltable.Table, windowColIdx int, constraint *jointree.JoinConstraint, points *obltable.Table, pointColIdx int) ([]*model.Tuple, error) {
	combined, err := buildCombinedStream(d, windows, windowColIdx, constraint, points, pointColIdx, dispatch.OpSetWeightFromLocalMult)
	if err != nil {
		return nil, err
	}

	if err := combined.BitonicSort(d, dispatch.OpCmpJoinAttr); err != nil {
		return nil, err
	}
	if err := combined.LinearPass(d, dispatch.OpWinLocalCumsum, [4]int64{}); err != nil {
		return nil, err
	}
	if err := combined.Map(d, dispatch.OpWinLocalInterval, [4]int64{}); err != nil {
		return nil, err
	}

	_, ends, err := pairBoundariesAndDiff(d, combined, dispatch.OpWinLocalBandCount, len(windows.Tuples))
	if err != nil {
		return nil, err
	}
	return ends, nil
}

// buildCombinedStream emits one SOURCE tuple per row of points (weighted
// via weightOp, a SET_WEIGHT_FROM_* opcode reading the point row's own
// multiplicity field) and one START/END pair per row of windows, windows'
// boundaries shifted by constraint's deltas around windowColIdx.
func buildCombinedStream(d *dispatch.Dispatcher, windows *obltable.Table, windowColIdx int, constraint *jointree.JoinConstraint, points *obltable.Table, pointColIdx int, weightOp dispatch.Opcode) (*obltable.Table, error) {
	n := len(points.Tuples) + 2*len(windows.Tuples)
	combined := &obltable.Table{Name: windows.Name + "_x_" + points.Name, Tuples: make([]model.Tuple, n)}

	idx := 0
	for i := range points.Tuples {
		if err := d.Submit(dispatch.OpMakeSource, [4]int64{int64(pointColIdx)}, &points.Tuples[i], &combined.Tuples[idx]); err != nil {
			return nil, err
		}
		if err := d.Submit(weightOp, [4]int64{}, &points.Tuples[i], &combined.Tuples[idx]); err != nil {
			return nil, err
		}
		idx++
	}
	for j := range windows.Tuples {
		if err := d.Submit(dispatch.OpMakeStart, constraint.StartParams(windowColIdx), &windows.Tuples[j], &combined.Tuples[idx]); err != nil {
			return nil, err
		}
		idx++
	}
	for j := range windows.Tuples {
		if err := d.Submit(dispatch.OpMakeEnd, constraint.EndParams(windowColIdx), &windows.Tuples[j], &combined.Tuples[idx]); err != nil {
			return nil, err
		}
		idx++
	}
	return combined, nil
}

// pairBoundariesAndDiff sorts a combined stream so every START/END
// boundary marker groups to the front by original_index, START
// immediately before its END (dispatch.OpCmpPairwise), truncates to the
// statically known 2×wantEnds boundary prefix, then runs bandCountOp over
// each adjacent pair to turn the pair's interval fields into a band count
// written into the END entry. It returns the wantEnds START entries and
// the wantEnds END entries, each in ascending original_index order, which
// — since every window row's original_index spans 0..wantEnds-1 densely —
// is the same order as the windows table itself.
//
// The truncation is a fixed count known before any data is inspected, not
// a filter by Kind: an encrypted tuple's Kind is no more readable outside
// the dispatcher than any other field, so the boundary/source split has
// to come from sort order (dispatch.pairwiseLess) rather than a Go-level
// predicate.
func pairBoundariesAndDiff(d *dispatch.Dispatcher, combined *obltable.Table, bandCountOp dispatch.Opcode, wantEnds int) ([]*model.Tuple, []*model.Tuple, error) {
	if err := combined.BitonicSort(d, dispatch.OpCmpPairwise); err != nil {
		return nil, nil, err
	}
	if 2*wantEnds > len(combined.Tuples) {
		return nil, nil, joinerr.New(joinerr.SizeMismatch, "bottom_up", "", "expected at least %d boundary markers, stream has %d", 2*wantEnds, len(combined.Tuples))
	}
	combined.Truncate(2 * wantEnds)

	for i := 0; i+1 < len(combined.Tuples); i += 2 {
		if err := d.Submit(bandCountOp, [4]int64{}, &combined.Tuples[i], &combined.Tuples[i+1]); err != nil {
			return nil, nil, err
		}
	}

	starts := make([]*model.Tuple, 0, wantEnds)
	ends := make([]*model.Tuple, 0, wantEnds)
	for i := 0; i+1 < len(combined.Tuples); i += 2 {
		starts = append(starts, &combined.Tuples[i])
		ends = append(ends, &combined.Tuples[i+1])
	}
	return starts, ends, nil
}
