package phases

import (
	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
)

// TopDown runs the pre-order pass: the root's final_mult starts equal to
// its local_mult, and every other node's final_mult is its own local_mult
// times the sum, over parent rows whose band contains it, of that
// parent's final_mult divided by the parent's band count on this edge —
// spec.md §4.5's mirror of BottomUp. After the whole pass, every node's
// final_mult sums to the same total: the size of the join result.
func TopDown(tree *jointree.Tree, d *dispatch.Dispatcher) error {
	root := tree.Root()
	if err := root.Table.Map(d, dispatch.OpInitFinalMultFromLocal, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", root.Name, err)
	}

	for _, id := range tree.PreOrder() {
		node := tree.Node(id)
		for _, childID := range node.ChildIDs {
			child := tree.Node(childID)
			if err := propagateParentIntoChild(d, node, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// propagateParentIntoChild mirrors combineChildIntoParent: the window
// this time is centered on each child row, expressed in the parent's
// column via the constraint's reversed form, and the weighted points are
// the parent rows themselves, carrying their own final_mult.
func propagateParentIntoChild(d *dispatch.Dispatcher, parent, child *jointree.Node) error {
	constraint := child.Constraint
	reversed := constraint.Reverse()
	sourceColIdx := parent.Table.Schema.ColumnIndex(constraint.SourceCol)
	targetColIdx := child.Table.Schema.ColumnIndex(constraint.TargetCol)
	if sourceColIdx < 0 || targetColIdx < 0 {
		return joinerr.TreeShapeErrorf(child.Name, "constraint column not resolved at top_down time")
	}

	// OpSetWeightFromFinalMult (below) divides each parent row's
	// final_mult by its local_interval field, which BottomUp never
	// populates — it only ever folds this edge's per-edge count into the
	// parent's running local_mult product across all of its children.
	// Recompute the count for this one edge and stash it fresh, so a
	// parent with multiple children divides by the count specific to this
	// child rather than the product across all of them.
	edgeCounts, err := localIntervalPerWindow(d, parent.Table, sourceColIdx, constraint, child.Table, targetColIdx)
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}
	for j := range parent.Table.Tuples {
		if err := d.Submit(dispatch.OpWriteBackLocalInterval, [4]int64{}, &parent.Table.Tuples[j], edgeCounts[j]); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
		}
	}

	combined, err := buildCombinedStream(d, child.Table, targetColIdx, &reversed, parent.Table, sourceColIdx, dispatch.OpSetWeightFromFinalMult)
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}

	if err := combined.BitonicSort(d, dispatch.OpCmpJoinAttr); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}
	if err := combined.LinearPass(d, dispatch.OpWinForeignSum, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}
	if err := combined.Map(d, dispatch.OpWinForeignInterval, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}

	starts, ends, err := pairBoundariesAndDiff(d, combined, dispatch.OpWinForeignBandCount, len(child.Table.Tuples))
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
	}

	for j := range child.Table.Tuples {
		if err := d.Submit(dispatch.OpUpdateTargetFinalMult, [4]int64{}, &child.Table.Tuples[j], ends[j]); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
		}
		// starts[j].ForeignSum is the running weighted-parent count just
		// before this child row's own window begins, the value
		// AlignConcat's alignment_key needs to tell which parent group a
		// replicated child row belongs to. The combined stream itself is
		// thrown away once this pass returns, so it has to be copied onto
		// the child's own persistent tuple now.
		if err := d.Submit(dispatch.OpWriteBackForeignSum, [4]int64{}, &child.Table.Tuples[j], starts[j]); err != nil {
			return joinerr.Wrap(joinerr.Dispatcher, "top_down", child.Name, err)
		}
	}
	return nil
}
