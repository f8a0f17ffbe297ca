package jointree

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func tbl(name string, cols ...string) *obltable.Table {
	return obltable.FromRows(name, model.NewSchema(name, cols), [][]int64{{1}})
}

// buildChain wires a three-table chain customer -> orders -> lineitem,
// seeded scenario 1's shape, so PreOrder/PostOrder are exercised against a
// tree deeper than one edge.
func buildChain(t *testing.T) *Tree {
	tree := New()
	customer := tree.AddNode("customer", tbl("customer", "custkey"), "custkey")
	orders := tree.AddNode("orders", tbl("orders", "custkey", "orderkey"), "custkey")
	lineitem := tree.AddNode("lineitem", tbl("lineitem", "orderkey"), "orderkey")
	tree.SetRoot(customer)
	tree.AddChild(customer, orders, JoinConstraint{
		SourceCol: "custkey", TargetCol: "custkey",
		Delta1: 0, Delta2: 0, Open1: model.Closed, Open2: model.Closed,
	})
	tree.AddChild(orders, lineitem, JoinConstraint{
		SourceCol: "orderkey", TargetCol: "orderkey",
		Delta1: 0, Delta2: 0, Open1: model.Closed, Open2: model.Closed,
	})
	return tree
}

// buildStar wires one root with two children, seeded scenario 6's shape:
// a node whose ChildIDs has more than one entry, which a chain built by
// repeated AddChild(parent, onlyChild, ...) calls never exercises.
func buildStar(t *testing.T) *Tree {
	tree := New()
	root := tree.AddNode("root", tbl("root", "ts"), "ts")
	a := tree.AddNode("a", tbl("a", "ts"), "ts")
	b := tree.AddNode("b", tbl("b", "ts"), "ts")
	tree.SetRoot(root)
	tree.AddChild(root, a, JoinConstraint{
		SourceCol: "ts", TargetCol: "ts",
		Delta1: 0, Delta2: 0, Open1: model.Closed, Open2: model.Closed,
	})
	tree.AddChild(root, b, JoinConstraint{
		SourceCol: "ts", TargetCol: "ts",
		Delta1: 0, Delta2: 0, Open1: model.Closed, Open2: model.Closed,
	})
	return tree
}

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	tree := buildChain(t)
	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingRoot(t *testing.T) {
	tree := New()
	tree.AddNode("orphan", tbl("orphan", "a"), "a")
	if err := tree.Validate(); err == nil {
		t.Fatalf("expected TreeShapeError for missing root")
	}
}

func TestValidateRejectsUnknownJoinColumn(t *testing.T) {
	tree := New()
	customer := tree.AddNode("customer", tbl("customer", "custkey"), "custkey")
	orders := tree.AddNode("orders", tbl("orders", "orderkey"), "orderkey")
	tree.SetRoot(customer)
	tree.AddChild(customer, orders, JoinConstraint{
		SourceCol: "custkey", TargetCol: "nonexistent",
	})
	if err := tree.Validate(); err == nil {
		t.Fatalf("expected TreeShapeError for unknown join column")
	}
}

func TestPreOrderAndPostOrder(t *testing.T) {
	tree := buildChain(t)
	pre := tree.PreOrder()
	post := tree.PostOrder()

	if len(pre) != 3 || len(post) != 3 {
		t.Fatalf("expected 3 nodes in each order, got pre=%v post=%v", pre, post)
	}
	if pre[0] != tree.RootID() {
		t.Errorf("PreOrder[0] = %v, want root", pre[0])
	}
	if post[len(post)-1] != tree.RootID() {
		t.Errorf("PostOrder last = %v, want root", post[len(post)-1])
	}
	lineitem := tree.Node(pre[2])
	if pre[1] != lineitem.ParentID {
		t.Errorf("PreOrder = %v, want orders (lineitem's parent) visited before lineitem", pre)
	}
}

func TestPreOrderAndPostOrderMultiChild(t *testing.T) {
	tree := buildStar(t)
	pre := tree.PreOrder()
	post := tree.PostOrder()

	if len(pre) != 3 || len(post) != 3 {
		t.Fatalf("expected 3 nodes in each order, got pre=%v post=%v", pre, post)
	}
	if pre[0] != tree.RootID() {
		t.Errorf("PreOrder[0] = %v, want root", pre[0])
	}
	if post[len(post)-1] != tree.RootID() {
		t.Errorf("PostOrder last = %v, want root", post[len(post)-1])
	}
	root := tree.Node(tree.RootID())
	if len(root.ChildIDs) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.ChildIDs))
	}
}

func TestValidateDetectsUnreachableNode(t *testing.T) {
	tree := New()
	customer := tree.AddNode("customer", tbl("customer", "custkey"), "custkey")
	tree.AddNode("stray", tbl("stray", "a"), "a")
	tree.SetRoot(customer)
	if err := tree.Validate(); err == nil {
		t.Fatalf("expected TreeShapeError for unreachable node")
	}
}
