package phases

import (
	"sort"
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/dispatch"
)

func TestAlignConcatProducesExpectedJoinPairs(t *testing.T) {
	tree, _, _ := buildTwoLevelTree()
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
	result, err := AlignConcat(tree, d)
	if err != nil {
		t.Fatalf("AlignConcat: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(result.Tuples) != 3 {
		t.Fatalf("len(result.Tuples) = %d, want 3", len(result.Tuples))
	}

	type pair struct{ pTs, cTs int64 }
	got := make([]pair, len(result.Tuples))
	for i, tup := range result.Tuples {
		got[i] = pair{tup.Attributes[0], tup.Attributes[1]}
	}
	sort.Slice(got, func(i, j int) bool {
		if got[i].pTs != got[j].pTs {
			return got[i].pTs < got[j].pTs
		}
		return got[i].cTs < got[j].cTs
	})

	want := []pair{{0, 1}, {0, 2}, {10, 11}}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("row %d = %+v, want %+v (full result %+v)", i, got[i], w, got)
		}
	}
}
