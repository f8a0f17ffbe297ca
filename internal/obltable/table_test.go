package obltable

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func schema(cols ...string) model.Schema { return model.NewSchema("t", cols) }

func TestFromRowsAndStatus(t *testing.T) {
	tbl := FromRows("orders", schema("orderkey", "custkey"), [][]int64{{1, 10}, {2, 20}})
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
	if got := tbl.Status(); got != AllPlaintext {
		t.Errorf("Status() = %v, want AllPlaintext", got)
	}
	if tbl.Tuples[1].Attributes[1] != 20 {
		t.Errorf("row 1 custkey = %d, want 20", tbl.Tuples[1].Attributes[1])
	}
}

func TestMapAppliesToEveryRow(t *testing.T) {
	tbl := FromRows("t", schema("a"), [][]int64{{1}, {2}, {3}})
	for i := range tbl.Tuples {
		tbl.Tuples[i].LocalMult = 5
	}
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)
	if err := tbl.Map(d, dispatch.OpInitFinalMultFromLocal, [4]int64{}); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for i, tup := range tbl.Tuples {
		if tup.FinalMult != 5 {
			t.Errorf("row %d FinalMult = %d, want 5", i, tup.FinalMult)
		}
	}
}

func TestLinearPassComputesPrefixSum(t *testing.T) {
	tbl := FromRows("t", schema("a"), [][]int64{{0}, {0}, {0}, {0}})
	for i := range tbl.Tuples {
		tbl.Tuples[i].LocalWeight = 1
	}
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)
	tbl.Tuples[0].LocalCumsum = tbl.Tuples[0].LocalWeight
	if err := tbl.LinearPass(d, dispatch.OpWinLocalCumsum, [4]int64{}); err != nil {
		t.Fatalf("LinearPass: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []int64{1, 2, 3, 4}
	for i, w := range want {
		if tbl.Tuples[i].LocalCumsum != w {
			t.Errorf("LocalCumsum[%d] = %d, want %d", i, tbl.Tuples[i].LocalCumsum, w)
		}
	}
}

func TestParallelPassRejectsLengthMismatch(t *testing.T) {
	a := FromRows("a", schema("x"), [][]int64{{1}, {2}})
	b := FromRows("b", schema("x"), [][]int64{{1}})
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)
	if err := a.ParallelPass(d, b, dispatch.OpCmpPairwise, [4]int64{}); err == nil {
		t.Fatalf("expected SizeMismatchError, got nil")
	}
}

func TestHorizontalConcatMergesSchemaAndAttributes(t *testing.T) {
	left := FromRows("customer", schema("custkey"), [][]int64{{10}, {20}})
	right := FromRows("orders", schema("orderkey", "custkey"), [][]int64{{1, 10}, {2, 20}})
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)

	out, err := left.HorizontalConcat(d, right)
	if err != nil {
		t.Fatalf("HorizontalConcat: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(out.Schema.Columns) != 3 {
		t.Fatalf("Schema.Columns = %v, want 3 columns", out.Schema.Columns)
	}
	if out.Tuples[0].Attributes[0] != 10 || out.Tuples[0].Attributes[1] != 1 || out.Tuples[0].Attributes[2] != 10 {
		t.Errorf("row 0 attributes = %v, want [10 1 10 ...]", out.Tuples[0].Attributes[:3])
	}
}

func TestRequireUniformEncryptionRejectsMixed(t *testing.T) {
	tbl := FromRows("t", schema("a"), [][]int64{{1}, {2}})
	tbl.Tuples[0].IsEncrypted = true
	if err := tbl.RequireUniformEncryption("bottomup"); err == nil {
		t.Fatalf("expected EncryptionStateError for mixed table")
	}
}

func TestDistributePassTouchesExpectedPairs(t *testing.T) {
	tbl := FromRows("t", schema("a"), [][]int64{{0}, {0}, {0}, {0}, {0}})
	d := dispatch.New(nil, dispatch.DefaultMaxBatch)
	if err := tbl.DistributePass(d, 2, dispatch.OpCmpDistribute); err != nil {
		t.Fatalf("DistributePass: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := 5 - 2 // n - stride pairs: (0,2),(1,3),(2,4)
	if got := d.Stats().OperationsSubmitted; got != want {
		t.Errorf("OperationsSubmitted = %d, want %d", got, want)
	}
}
