package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/tableio"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// nodeSpec is the CLI's on-disk tree description: the same shape as
// internal/api's NodeSpec (same JSON field names) so one tree file can be
// handed to `obliviousjoin run` or POSTed to the HTTP API interchangeably.
// Join-tree construction from parsed SQL stays out of scope; this is the
// already-shaped-tree format both surfaces accept instead.
type nodeSpec struct {
	Name        string `json:"name"`
	CSVPath     string `json:"csvPath"`
	JoinColumn  string `json:"joinColumn"`
	ParentIndex int    `json:"parentIndex"`

	SourceCol string `json:"sourceCol,omitempty"`
	TargetCol string `json:"targetCol,omitempty"`
	Delta1    int64  `json:"delta1,omitempty"`
	Delta2    int64  `json:"delta2,omitempty"`
	Open1     string `json:"open1,omitempty"`
	Open2     string `json:"open2,omitempty"`
}

type treeSpec struct {
	Nodes []nodeSpec `json:"nodes"`
}

// loadTreeSpec reads and parses a tree description file.
func loadTreeSpec(path string) (*treeSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree spec %s: %w", path, err)
	}
	var spec treeSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse tree spec %s: %w", path, err)
	}
	return &spec, nil
}

// buildTree loads every node's CSV and wires the jointree.Tree, mirroring
// internal/api's buildTree (the CLI and the HTTP API read the same shape,
// but neither imports the other to build it).
func buildTree(spec *treeSpec) (*jointree.Tree, error) {
	if len(spec.Nodes) == 0 {
		return nil, fmt.Errorf("tree spec has no nodes")
	}

	tree := jointree.New()
	ids := make([]jointree.NodeID, len(spec.Nodes))
	rootIdx := -1

	for i, n := range spec.Nodes {
		table, err := tableio.LoadCSV(n.CSVPath, n.Name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", n.Name, err)
		}
		ids[i] = tree.AddNode(n.Name, table, n.JoinColumn)
		if n.ParentIndex < 0 {
			if rootIdx >= 0 {
				return nil, fmt.Errorf("tree spec has more than one root node (%s and %s)", spec.Nodes[rootIdx].Name, n.Name)
			}
			rootIdx = i
		}
	}
	if rootIdx < 0 {
		return nil, fmt.Errorf("tree spec has no root node (parentIndex -1)")
	}
	tree.SetRoot(ids[rootIdx])

	for i, n := range spec.Nodes {
		if n.ParentIndex < 0 {
			continue
		}
		if n.ParentIndex >= len(spec.Nodes) {
			return nil, fmt.Errorf("node %s: parentIndex %d out of range", n.Name, n.ParentIndex)
		}
		tree.AddChild(ids[n.ParentIndex], ids[i], jointree.JoinConstraint{
			SourceCol: n.SourceCol,
			TargetCol: n.TargetCol,
			Delta1:    n.Delta1,
			Delta2:    n.Delta2,
			Open1:     parseOpenness(n.Open1),
			Open2:     parseOpenness(n.Open2),
		})
	}
	return tree, nil
}

func parseOpenness(s string) model.BoundaryOpenness {
	if s == "open" {
		return model.Open
	}
	return model.Closed
}
