package oracle

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func buildTree() *jointree.Tree {
	p := obltable.FromRows("p", model.NewSchema("p", []string{"ts"}), [][]int64{{0}, {10}})
	c := obltable.FromRows("c", model.NewSchema("c", []string{"cts"}), [][]int64{{1}, {2}, {11}})

	tree := jointree.New()
	pID := tree.AddNode("p", p, "ts")
	cID := tree.AddNode("c", c, "cts")
	tree.SetRoot(pID)
	tree.AddChild(pID, cID, jointree.JoinConstraint{
		SourceCol: "ts", TargetCol: "cts",
		Delta1: 0, Delta2: 5,
		Open1: model.Closed, Open2: model.Open,
	})
	return tree
}

func TestEvaluateProducesExpectedRows(t *testing.T) {
	rows, err := Evaluate(buildTree())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []Row{
		{"ts": 0, "cts": 1},
		{"ts": 0, "cts": 2},
		{"ts": 10, "cts": 11},
	}
	if err := CompareMultiset(rows, want); err != nil {
		t.Errorf("CompareMultiset: %v", err)
	}
}

func TestCompareMultisetDetectsRowCountMismatch(t *testing.T) {
	got := []Row{{"a": 1}}
	want := []Row{{"a": 1}, {"a": 2}}
	if err := CompareMultiset(got, want); err == nil {
		t.Fatalf("expected row-count mismatch error")
	}
}

func TestCompareMultisetDetectsValueMismatch(t *testing.T) {
	got := []Row{{"a": 1}}
	want := []Row{{"a": 2}}
	if err := CompareMultiset(got, want); err == nil {
		t.Fatalf("expected row mismatch error")
	}
}
