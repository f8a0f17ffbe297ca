package jointree

import (
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
)

// NodeID is a stable, arena-local identifier. spec.md §9's design notes
// call for ids instead of shared/weak pointers so a node can be referenced
// from elsewhere in the tree (a debug snapshot label, a metrics map key)
// without pinning it in memory or risking a dangling pointer once a phase
// replaces a node's table.
type NodeID int

// NoParent marks the root node's ParentID.
const NoParent NodeID = -1

// Node is one table in the join tree plus its constraint to its parent.
type Node struct {
	ID         NodeID
	Name       string
	Table      *obltable.Table
	JoinColumn string
	Constraint *JoinConstraint // nil iff ID == tree's root
	ParentID   NodeID
	ChildIDs   []NodeID
}

// Tree is the arena: every node lives in nodes, referenced by index.
type Tree struct {
	nodes  []*Node
	rootID NodeID
}

// New returns an empty tree with no root yet.
func New() *Tree {
	return &Tree{rootID: NoParent}
}

// AddNode allocates a new node with no parent and no children yet,
// returning its id. Callers wire it into the tree with SetRoot or
// AddChild.
func (t *Tree) AddNode(name string, table *obltable.Table, joinColumn string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		ID:         id,
		Name:       name,
		Table:      table,
		JoinColumn: joinColumn,
		ParentID:   NoParent,
	})
	return id
}

// SetRoot designates id as the tree's root. It must not already have a
// parent or a constraint.
func (t *Tree) SetRoot(id NodeID) {
	t.rootID = id
}

// AddChild attaches child to parent under constraint (read as: parent's
// SourceCol bounds child's TargetCol).
func (t *Tree) AddChild(parentID, childID NodeID, constraint JoinConstraint) {
	parent := t.nodes[parentID]
	child := t.nodes[childID]
	child.ParentID = parentID
	c := constraint
	child.Constraint = &c
	parent.ChildIDs = append(parent.ChildIDs, childID)
}

func (t *Tree) Root() *Node {
	if t.rootID == NoParent {
		return nil
	}
	return t.nodes[t.rootID]
}

func (t *Tree) RootID() NodeID { return t.rootID }

func (t *Tree) Node(id NodeID) *Node { return t.nodes[id] }

func (t *Tree) Len() int { return len(t.nodes) }

// PreOrder visits the root, then each subtree, root-first. TopDown and
// AlignConcat's accumulator construction both walk in this order.
func (t *Tree) PreOrder() []NodeID {
	var order []NodeID
	var walk func(NodeID)
	walk = func(id NodeID) {
		order = append(order, id)
		for _, c := range t.nodes[id].ChildIDs {
			walk(c)
		}
	}
	if t.rootID != NoParent {
		walk(t.rootID)
	}
	return order
}

// PostOrder visits every subtree before its root. BottomUp walks in this
// order so a node's local multiplicities are known before its parent
// combines them.
func (t *Tree) PostOrder() []NodeID {
	var order []NodeID
	var walk func(NodeID)
	walk = func(id NodeID) {
		for _, c := range t.nodes[id].ChildIDs {
			walk(c)
		}
		order = append(order, id)
	}
	if t.rootID != NoParent {
		walk(t.rootID)
	}
	return order
}

// Validate checks the shape invariants spec.md §7 requires before any
// phase runs: a root is set, every node has a table, every non-root node
// carries a constraint to its parent, and every constraint's column names
// resolve against the relevant schemas.
func (t *Tree) Validate() error {
	if t.rootID == NoParent || len(t.nodes) == 0 {
		return joinerr.TreeShapeErrorf("", "join tree has no root")
	}
	for _, n := range t.nodes {
		if n.Table == nil {
			return joinerr.TreeShapeErrorf(n.Name, "node has no table")
		}
		if n.ID == t.rootID {
			if n.Constraint != nil {
				return joinerr.TreeShapeErrorf(n.Name, "root must not carry a constraint")
			}
			continue
		}
		if n.Constraint == nil {
			return joinerr.TreeShapeErrorf(n.Name, "non-root node has no constraint to its parent")
		}
		parent := t.nodes[n.ParentID]
		if parent.Table.Schema.ColumnIndex(n.Constraint.SourceCol) == -1 {
			return joinerr.TreeShapeErrorf(n.Name, "constraint source column %q not found on parent %q", n.Constraint.SourceCol, parent.Name)
		}
		if n.Table.Schema.ColumnIndex(n.Constraint.TargetCol) == -1 {
			return joinerr.TreeShapeErrorf(n.Name, "constraint target column %q not found on node", n.Constraint.TargetCol)
		}
	}
	if seen := make(map[NodeID]bool, len(t.nodes)); true {
		var walk func(NodeID) error
		walk = func(id NodeID) error {
			if seen[id] {
				return joinerr.TreeShapeErrorf(t.nodes[id].Name, "node reachable more than once (cycle or shared child)")
			}
			seen[id] = true
			for _, c := range t.nodes[id].ChildIDs {
				if err := walk(c); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(t.rootID); err != nil {
			return err
		}
		if len(seen) != len(t.nodes) {
			return joinerr.TreeShapeErrorf("", "tree has %d nodes but only %d reachable from root", len(t.nodes), len(seen))
		}
	}
	return nil
}
