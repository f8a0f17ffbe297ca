package phases

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
)

func TestDistributeExpandReplicatesByFinalMult(t *testing.T) {
	tree, pID, cID := buildTwoLevelTree()
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)

	if err := BottomUp(tree, d); err != nil {
		t.Fatalf("BottomUp: %v", err)
	}
	if err := TopDown(tree, d); err != nil {
		t.Fatalf("TopDown: %v", err)
	}
	if err := DistributeExpand(tree, d); err != nil {
		t.Fatalf("DistributeExpand: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := tree.Node(pID).Table
	if len(p.Tuples) != 3 {
		t.Fatalf("len(p.Tuples) = %d, want 3 (Σ final_mult = 2+1)", len(p.Tuples))
	}
	// p[0].ts=0 has final_mult 2, so it should appear at positions 0 and 1;
	// p[1].ts=10 has final_mult 1, so it appears once at position 2.
	wantTs := []int64{0, 0, 10}
	for i, want := range wantTs {
		if got := p.Tuples[i].Attributes[0]; got != want {
			t.Errorf("p.Tuples[%d].Attributes[0] = %d, want %d", i, got, want)
		}
	}

	c := tree.Node(cID).Table
	if len(c.Tuples) != 3 {
		t.Fatalf("len(c.Tuples) = %d, want 3 (every c row has final_mult 1)", len(c.Tuples))
	}
	wantCTs := []int64{1, 2, 11}
	for i, want := range wantCTs {
		if got := c.Tuples[i].Attributes[0]; got != want {
			t.Errorf("c.Tuples[%d].Attributes[0] = %d, want %d", i, got, want)
		}
	}
}

func TestDistributeExpandZeroFinalMultProducesNoRows(t *testing.T) {
	// A band that matches nothing: every one of c's three rows lies far
	// outside both of p's bands, so final_mult is 0 and the expanded
	// table for p is empty.
	tree, pID, cID := buildTwoLevelTree()
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)

	// Push c's rows far out of every p band.
	c := tree.Node(cID).Table
	for i := range c.Tuples {
		c.Tuples[i].Attributes[0] = 1000 + int64(i)
	}

	if err := BottomUp(tree, d); err != nil {
		t.Fatalf("BottomUp: %v", err)
	}
	if err := TopDown(tree, d); err != nil {
		t.Fatalf("TopDown: %v", err)
	}
	if err := DistributeExpand(tree, d); err != nil {
		t.Fatalf("DistributeExpand: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := tree.Node(pID).Table
	if len(p.Tuples) != 0 {
		t.Errorf("len(p.Tuples) = %d, want 0 (no child row matches either band)", len(p.Tuples))
	}
}
