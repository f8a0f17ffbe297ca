// Package oracle implements a plain, non-oblivious reference join: a
// recursive nested-loop evaluator over a jointree.Tree, used only from
// _test.go files to check an ObliviousJoin result against ground truth.
// Grounded on original_source/impl/src/test/utils/simple_join_executor.cpp
// and join_result_comparator.cpp's multiset-equivalence check; neither
// survives as a dependency here (no SQLite, as spec.md's Non-goals and
// DESIGN.md both note), just the algorithm shape.
package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// Row is one plaintext output row: column name to value, column names
// already disambiguated by the caller (AlignConcat's own HorizontalConcat
// carries no table-prefix, so neither does this reference implementation).
type Row map[string]int64

// Evaluate runs a nested-loop reference join over tree, starting from the
// root and recursively joining in each child's subtree result, mirroring
// SimpleJoinExecutor::join_subtree. It reads tuples directly off each
// node's ObliviousTable, so callers must pass a tree whose tables are
// plaintext (AllPlaintext) — this package never touches a Cryptor.
func Evaluate(tree *jointree.Tree) ([]Row, error) {
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("oracle: tree has no root")
	}
	return joinSubtree(tree, root)
}

func joinSubtree(tree *jointree.Tree, node *jointree.Node) ([]Row, error) {
	rows := tableRows(node)
	for _, childID := range node.ChildIDs {
		child := tree.Node(childID)
		childRows, err := joinSubtree(tree, child)
		if err != nil {
			return nil, err
		}
		rows = joinRows(rows, childRows, *child.Constraint)
	}
	return rows, nil
}

func tableRows(node *jointree.Node) []Row {
	rows := make([]Row, len(node.Table.Tuples))
	for i, tup := range node.Table.Tuples {
		row := make(Row, len(node.Table.Schema.Columns))
		for j, col := range node.Table.Schema.Columns {
			row[col] = tup.Attributes[j]
		}
		rows[i] = row
	}
	return rows
}

// joinRows is simple_join_executor.cpp's join_tables: a nested loop over
// left (the parent's accumulated rows) and right (the child's subtree
// result), keeping every pair satisfying constraint and concatenating
// their columns. Column sets are assumed disjoint, matching the way
// AlignConcat's HorizontalConcat works (no table-qualified prefixing).
func joinRows(left, right []Row, constraint jointree.JoinConstraint) []Row {
	var out []Row
	for _, l := range left {
		for _, r := range right {
			if satisfiesConstraint(l, r, constraint) {
				out = append(out, concatRows(l, r))
			}
		}
	}
	return out
}

func satisfiesConstraint(parent, child Row, c jointree.JoinConstraint) bool {
	base := parent[c.SourceCol]
	val := child[c.TargetCol]

	if c.Delta1 != jointree.NegInf {
		lower := base + c.Delta1
		if c.Open1 == model.Closed {
			if val < lower {
				return false
			}
		} else if val <= lower {
			return false
		}
	}
	if c.Delta2 != jointree.PosInf {
		upper := base + c.Delta2
		if c.Open2 == model.Closed {
			if val > upper {
				return false
			}
		} else if val >= upper {
			return false
		}
	}
	return true
}

func concatRows(a, b Row) Row {
	out := make(Row, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// CompareMultiset reports whether got and want hold the same rows up to
// order — join_result_comparator.cpp's are_equivalent, minus its
// tolerance-based float comparator (every value here is an exact int64).
// On mismatch the error names the row-count difference or an example row
// present on only one side.
func CompareMultiset(got, want []Row) error {
	if len(got) != len(want) {
		return fmt.Errorf("oracle: row count mismatch: got %d, want %d", len(got), len(want))
	}
	gotSet := toMultiset(got)
	wantSet := toMultiset(want)
	for k, n := range wantSet {
		if gotSet[k] != n {
			return fmt.Errorf("oracle: row multiset mismatch, e.g. %s: got %d occurrences, want %d", k, gotSet[k], n)
		}
	}
	for k, n := range gotSet {
		if wantSet[k] != n {
			return fmt.Errorf("oracle: row multiset mismatch, unexpected row %s occurring %d times", k, n)
		}
	}
	return nil
}

func toMultiset(rows []Row) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[normalizeRow(r)]++
	}
	return out
}

// normalizeRow renders a row as a sorted "col:val,col:val" string so two
// rows built from the same column/value pairs in a different column
// order still hash to the same multiset key.
func normalizeRow(r Row) string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%d", c, r[c])
	}
	b.WriteByte('}')
	return b.String()
}
