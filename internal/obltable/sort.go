package obltable

import (
	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// BitonicSort pads the table with SORT_PAD tuples up to the next power of
// two, runs Batcher's odd-even mergesort network (every compare-exchange
// submitted through the dispatcher, so the schedule is fixed by length
// alone), then truncates the padding back off. Padding sorts last under
// every comparator opcode except CMP_DISTRIBUTE, whose ordering is not
// pad-aware. When padding is needed, already-queued operations are
// flushed first, since appending the padding can move the tuple slice.
func (t *Table) BitonicSort(d *dispatch.Dispatcher, opcode dispatch.Opcode) error {
	n := len(t.Tuples)
	if n < 2 {
		return nil
	}
	padded := nextPowerOfTwo(n)
	if padded > n {
		if err := d.Flush(); err != nil {
			return err
		}
	}
	for i := n; i < padded; i++ {
		t.Append(model.Tuple{Kind: model.SortPadKind})
	}

	var submitErr error
	exchange := func(i, j int) {
		if submitErr != nil {
			return
		}
		submitErr = d.Submit(opcode, [4]int64{}, t.ptr(i), t.ptr(j))
	}

	oddEvenMergeSort(0, padded, exchange)
	if submitErr != nil {
		return submitErr
	}

	t.Truncate(n)
	return nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// oddEvenMergeSort and oddEvenMerge are Batcher's classical recursive
// odd-even mergesort network: every step is an ascending compare-exchange
// of the form "ensure element i is not greater than element j", so unlike
// the bitonic construction it never needs direction-flipped stages.
func oddEvenMergeSort(lo, n int, exchange func(i, j int)) {
	if n <= 1 {
		return
	}
	m := n / 2
	oddEvenMergeSort(lo, m, exchange)
	oddEvenMergeSort(lo+m, m, exchange)
	oddEvenMerge(lo, n, 1, exchange)
}

func oddEvenMerge(lo, n, r int, exchange func(i, j int)) {
	m := r * 2
	if m < n {
		oddEvenMerge(lo, n, m, exchange)
		oddEvenMerge(lo+r, n, m, exchange)
		for i := lo + r; i+r < lo+n; i += m {
			exchange(i, i+r)
		}
	} else {
		exchange(lo, lo+r)
	}
}
