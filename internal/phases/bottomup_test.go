package phases

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func schema(cols ...string) model.Schema { return model.NewSchema("t", cols) }

// buildTwoLevelTree builds a root P (window, band [ts, ts+5)) with one
// child C (points). P has rows at ts=0 and ts=10; C has rows at ts=1,
// ts=2, ts=11. P[0]'s band [0,5) contains C's two low rows; P[1]'s band
// [10,15) contains C's one high row.
func buildTwoLevelTree() (*jointree.Tree, jointree.NodeID, jointree.NodeID) {
	p := obltable.FromRows("p", schema("ts"), [][]int64{{0}, {10}})
	c := obltable.FromRows("c", schema("ts"), [][]int64{{1}, {2}, {11}})

	tree := jointree.New()
	pID := tree.AddNode("p", p, "ts")
	cID := tree.AddNode("c", c, "ts")
	tree.SetRoot(pID)
	tree.AddChild(pID, cID, jointree.JoinConstraint{
		SourceCol: "ts", TargetCol: "ts",
		Delta1: 0, Delta2: 5,
		Open1: model.Closed, Open2: model.Open,
	})
	return tree, pID, cID
}

func TestBottomUpComputesBandLocalMult(t *testing.T) {
	tree, pID, cID := buildTwoLevelTree()
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)

	if err := BottomUp(tree, d); err != nil {
		t.Fatalf("BottomUp: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := tree.Node(pID).Table
	if got := p.Tuples[0].LocalMult; got != 2 {
		t.Errorf("p[0].LocalMult = %d, want 2 (matches ts=1,2)", got)
	}
	if got := p.Tuples[1].LocalMult; got != 1 {
		t.Errorf("p[1].LocalMult = %d, want 1 (matches ts=11)", got)
	}

	c := tree.Node(cID).Table
	for i, tup := range c.Tuples {
		if tup.LocalMult != 1 {
			t.Errorf("c[%d].LocalMult = %d, want 1 (leaf)", i, tup.LocalMult)
		}
	}

	var sum int64
	for _, tup := range p.Tuples {
		sum += tup.LocalMult
	}
	if sum != 3 {
		t.Errorf("Σ p.LocalMult = %d, want 3 (total join result size)", sum)
	}
}

func TestBottomUpLeafOnlyTreeLeavesLocalMultAtOne(t *testing.T) {
	single := obltable.FromRows("t", schema("a"), [][]int64{{1}, {2}})
	tree := jointree.New()
	id := tree.AddNode("t", single, "a")
	tree.SetRoot(id)

	d := dispatch.New(nil, dispatch.DefaultMaxBatch)
	if err := BottomUp(tree, d); err != nil {
		t.Fatalf("BottomUp: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for i, tup := range tree.Node(id).Table.Tuples {
		if tup.LocalMult != 1 {
			t.Errorf("row %d LocalMult = %d, want 1", i, tup.LocalMult)
		}
	}
}
