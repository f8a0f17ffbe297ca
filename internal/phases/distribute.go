package phases

import (
	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
)

// DistributeExpand replicates every row of every node's table final_mult
// times, per spec.md §4.6. It runs independently on each node: seed
// dst_idx with an exclusive prefix sum of final_mult, read off the output
// size, scatter real rows to their dst_idx slot (dispatch.ScatterExpand —
// see DESIGN.md for why this one step isn't expressed as ordinary
// Operations), then forward-fill the DIST_PAD gaps left between a row and
// the next one's dst_idx.
func DistributeExpand(tree *jointree.Tree, d *dispatch.Dispatcher) error {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		if err := expandNode(d, node); err != nil {
			return err
		}
	}
	return nil
}

func expandNode(d *dispatch.Dispatcher, node *jointree.Node) error {
	table := node.Table
	if len(table.Tuples) == 0 {
		return nil
	}

	if err := table.Map(d, dispatch.OpInitDstIdx, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	if err := table.LinearPass(d, dispatch.OpWinComputeDstIdx, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	if err := table.Map(d, dispatch.OpMarkZeroMultPad, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}

	last := &table.Tuples[len(table.Tuples)-1]
	n, err := d.ObtainOutputSize(last)
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}

	expanded, err := d.ScatterExpand(table.Tuples, n)
	if err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	table.Tuples = expanded
	if int64(len(table.Tuples)) != n {
		return joinerr.New(joinerr.SizeMismatch, "distribute_expand", node.Name, "expanded table has %d rows, want %d", len(table.Tuples), n)
	}

	if err := table.Map(d, dispatch.OpInitIndex, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	if err := table.LinearPass(d, dispatch.OpWinIndexInc, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	if err := table.LinearPass(d, dispatch.OpWinExpandCopy, [4]int64{}); err != nil {
		return joinerr.Wrap(joinerr.Dispatcher, "distribute_expand", node.Name, err)
	}
	return nil
}
