package engine

import (
	"fmt"
	"strings"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
)

// LogJoinTree logs the tree shape before a run starts: every node's
// name, row count, and (for non-root nodes) its band constraint to its
// parent. Grounded on oblivious_join.cpp's LogJoinTree.
func LogJoinTree(tree *jointree.Tree) {
	root := tree.Root()
	if root == nil {
		logf("join tree has no root")
		return
	}
	logJoinTreeNode(tree, root, 0)
}

func logJoinTreeNode(tree *jointree.Tree, node *jointree.Node, level int) {
	indent := strings.Repeat("  ", level)
	line := fmt.Sprintf("%s- %s (%d rows)", indent, node.Name, node.Table.Len())
	if node.Constraint != nil {
		c := node.Constraint
		line += fmt.Sprintf(" [join on %s/%s with deviations %d, %d]", c.SourceCol, c.TargetCol, c.Delta1, c.Delta2)
	}
	logf("%s", line)
	for _, childID := range node.ChildIDs {
		logJoinTreeNode(tree, tree.Node(childID), level+1)
	}
}

// Statistics renders oblivious_join.h's GetJoinStatistics summary:
// table/row counts across the tree plus its min/max table size and
// depth.
func Statistics(tree *jointree.Tree) string {
	root := tree.Root()
	if root == nil {
		return "Join Statistics:\n  tree has no root\n"
	}

	totalTables, totalRows := 0, 0
	minRows, maxRows := -1, 0
	maxDepth := 0

	var walk func(node *jointree.Node, depth int)
	walk = func(node *jointree.Node, depth int) {
		totalTables++
		size := node.Table.Len()
		totalRows += size
		if minRows < 0 || size < minRows {
			minRows = size
		}
		if size > maxRows {
			maxRows = size
		}
		if depth > maxDepth {
			maxDepth = depth
		}
		for _, childID := range node.ChildIDs {
			walk(tree.Node(childID), depth+1)
		}
	}
	walk(root, 0)

	var b strings.Builder
	fmt.Fprintf(&b, "Join Statistics:\n")
	fmt.Fprintf(&b, "  Total tables: %d\n", totalTables)
	fmt.Fprintf(&b, "  Total input rows: %d\n", totalRows)
	fmt.Fprintf(&b, "  Min table size: %d\n", minRows)
	fmt.Fprintf(&b, "  Max table size: %d\n", maxRows)
	fmt.Fprintf(&b, "  Tree depth: %d\n", maxDepth+1)
	return b.String()
}
