package main

import (
	"path/filepath"
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/tableio"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func writeFixtureCSV(t *testing.T, dir, name string, columns []string, rows [][]int64) string {
	t.Helper()
	schema := model.NewSchema(name, columns)
	table := obltable.FromRows(name, schema, rows)
	path := filepath.Join(dir, name+".csv")
	if err := tableio.SaveCSV(path, table); err != nil {
		t.Fatalf("writeFixtureCSV: %v", err)
	}
	return path
}

func TestBuildTreeWiresParentChildConstraint(t *testing.T) {
	dir := t.TempDir()
	parentPath := writeFixtureCSV(t, dir, "parent", []string{"id", "ts"}, [][]int64{{1, 100}, {2, 200}})
	childPath := writeFixtureCSV(t, dir, "child", []string{"id", "ts"}, [][]int64{{1, 105}, {2, 250}})

	spec := &treeSpec{Nodes: []nodeSpec{
		{Name: "parent", CSVPath: parentPath, JoinColumn: "ts", ParentIndex: -1},
		{Name: "child", CSVPath: childPath, JoinColumn: "ts", ParentIndex: 0,
			SourceCol: "ts", TargetCol: "ts", Delta1: 0, Delta2: 10, Open1: "closed", Open2: "closed"},
	}}

	tree, err := buildTree(spec)
	if err != nil {
		t.Fatalf("buildTree: %v", err)
	}
	if tree.Len() != 2 {
		t.Fatalf("tree.Len() = %d, want 2", tree.Len())
	}
	root := tree.Root()
	if root.Name != "parent" {
		t.Fatalf("root.Name = %q, want parent", root.Name)
	}
	if len(root.ChildIDs) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.ChildIDs))
	}
	child := tree.Node(root.ChildIDs[0])
	if child.Constraint == nil || child.Constraint.Delta2 != 10 {
		t.Fatalf("child constraint = %+v, want Delta2=10", child.Constraint)
	}
}

func TestBuildTreeRejectsMultipleRoots(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFixtureCSV(t, dir, "p1", []string{"id"}, [][]int64{{1}})
	p2 := writeFixtureCSV(t, dir, "p2", []string{"id"}, [][]int64{{1}})

	spec := &treeSpec{Nodes: []nodeSpec{
		{Name: "p1", CSVPath: p1, JoinColumn: "id", ParentIndex: -1},
		{Name: "p2", CSVPath: p2, JoinColumn: "id", ParentIndex: -1},
	}}

	if _, err := buildTree(spec); err == nil {
		t.Fatal("buildTree: want error for two root nodes, got nil")
	}
}

func TestBuildTreeRejectsNoNodes(t *testing.T) {
	if _, err := buildTree(&treeSpec{}); err == nil {
		t.Fatal("buildTree: want error for empty node list, got nil")
	}
}
