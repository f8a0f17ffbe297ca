package dispatch

import "github.com/rawblock/oblivious-band-join/pkg/model"

// EndKind/SourceKind/StartKind alias the model package's constants so this
// file reads the same way spec.md's opcode table names them.
const (
	EndKind    = model.EndKind
	SourceKind = model.SourceKind
	StartKind  = model.StartKind
)

// epsilonRank places a boundary marker just before or just after every
// SOURCE point sharing its exact JoinAttr value, which is what makes a
// prefix sum of LocalWeight over the combined, sorted stream double as a
// containment count: a CLOSED start (rank 0) sits before same-valued
// points so they fall inside its window; an OPEN start (rank 2) sits
// after them so they don't. END mirrors this in the opposite sense: OPEN
// (rank 0) excludes same-valued points, CLOSED (rank 2) includes them.
// SOURCE points themselves always rank in the middle, at 1.
func epsilonRank(k model.TupleKind, o model.BoundaryOpenness) int {
	switch k {
	case StartKind:
		if o == model.Closed {
			return 0
		}
		return 2
	case EndKind:
		if o == model.Open {
			return 0
		}
		return 2
	default:
		return 1
	}
}

func isPad(k model.TupleKind) bool {
	return k == model.SortPadKind || k == model.DistPadKind
}

// padAware wraps an ordering so that, whenever it is used as a bitonic
// sort comparator, SORT_PAD/DIST_PAD entries always sort after every real
// entry regardless of what the wrapped ordering would otherwise say.
func padAware(less func(a, b *model.Tuple) bool) func(a, b *model.Tuple) bool {
	return func(a, b *model.Tuple) bool {
		pa, pb := isPad(a.Kind), isPad(b.Kind)
		if pa != pb {
			return pb
		}
		if pa && pb {
			return false
		}
		return less(a, b)
	}
}

func combinedOrder(a, b *model.Tuple) bool {
	if a.JoinAttr != b.JoinAttr {
		return a.JoinAttr < b.JoinAttr
	}
	if ra, rb := epsilonRank(a.Kind, a.Openness), epsilonRank(b.Kind, b.Openness); ra != rb {
		return ra < rb
	}
	return a.OrigIndex < b.OrigIndex
}

var combinedOrderLess = padAware(combinedOrder)
var endFirstLess = padAware(combinedOrder)

func joinThenOther(a, b *model.Tuple) bool {
	if a.JoinAttr != b.JoinAttr {
		return a.JoinAttr < b.JoinAttr
	}
	return a.OrigIndex < b.OrigIndex
}

var joinThenOtherLess = padAware(joinThenOther)

// joinThenSeq orders by join attribute first, breaking ties by Index
// rather than OrigIndex. AlignConcat's accumulator table restamps Index to
// the row's current canonical position after every child merge (see
// internal/phases/alignconcat.go), so using it as the tie-break preserves
// whatever row correspondence the previous child's alignment established
// instead of reverting to the accumulator's original load order.
func joinThenSeq(a, b *model.Tuple) bool {
	if a.JoinAttr != b.JoinAttr {
		return a.JoinAttr < b.JoinAttr
	}
	return a.Index < b.Index
}

var joinThenSeqLess = padAware(joinThenSeq)

// pairwiseLess sorts a combined stream so every START/END boundary marker
// sorts before every SOURCE (or other) entry, groups boundaries by the
// original_index of the row they came from, and places START immediately
// before its matching END. The boundary-first ordering lets a caller
// truncate to a statically known 2×|windows| prefix instead of filtering
// by Kind outside the dispatcher, which would require reading a field an
// encrypted tuple cannot expose outside a trusted-boundary crossing.
func pairwiseLess(a, b *model.Tuple) bool {
	ra, rb := boundaryRank(a.Kind), boundaryRank(b.Kind)
	if ra != rb {
		return ra < rb
	}
	if a.OrigIndex != b.OrigIndex {
		return a.OrigIndex < b.OrigIndex
	}
	return a.Kind < b.Kind
}

func boundaryRank(k model.TupleKind) int {
	if k == StartKind || k == EndKind {
		return 0
	}
	return 1
}

var pairwiseLessPadAware = padAware(pairwiseLess)

func padLastLess(a, b *model.Tuple) bool {
	pa, pb := isPad(a.Kind), isPad(b.Kind)
	if pa != pb {
		return pb // a (non-pad) sorts before b (pad)
	}
	return a.OrigIndex < b.OrigIndex
}

func alignmentKey(a, b *model.Tuple) bool {
	if a.AlignmentKey != b.AlignmentKey {
		return a.AlignmentKey < b.AlignmentKey
	}
	return a.OrigIndex < b.OrigIndex
}

var alignmentKeyLess = padAware(alignmentKey)

func distributeLess(a, b *model.Tuple) bool {
	return a.DstIdx < b.DstIdx
}

func compareAndSwap(less func(a, b *model.Tuple) bool, t1, t2 *model.Tuple) {
	if less(t2, t1) {
		*t1, *t2 = *t2, *t1
	}
}

// apply executes one Operation's effect on its one or two tuple operands.
// It is the only place in the engine that branches on an Opcode; every
// phase package only ever drives this switch indirectly, by submitting
// Operations to a Dispatcher.
func apply(op Operation, t1, t2 *model.Tuple) {
	switch op.Opcode {
	case OpInitMeta:
		t1.LocalMult, t1.FinalMult = 1, 0
		t1.ForeignSum, t1.LocalCumsum, t1.LocalInterval = 0, 0, 0
		t1.ForeignInterval, t1.LocalWeight = 0, 0
		t1.CopyIndex, t1.AlignmentKey, t1.DstIdx, t1.Index = 0, 0, 0, 0

	case OpInitFinalMultFromLocal:
		t1.FinalMult = t1.LocalMult

	case OpInitCopyIdx:
		t1.CopyIndex = 0

	case OpInitDstIdx:
		t1.DstIdx = 0

	case OpInitIndex:
		t1.Index = 0

	case OpInitForeignTemps:
		t1.ForeignSum, t1.ForeignInterval = 0, 0

	case OpMakeSource:
		t2.Kind = SourceKind
		t2.Openness = model.OpennessNone
		t2.OrigIndex = t1.OrigIndex
		t2.JoinAttr = t1.Attributes[op.Params[0]]
		t2.LocalWeight = 0

	case OpMakeStart:
		t2.Kind = StartKind
		t2.Openness = model.BoundaryOpenness(op.Params[1])
		t2.OrigIndex = t1.OrigIndex
		t2.JoinAttr = t1.Attributes[op.Params[0]] + op.Params[2]
		t2.LocalWeight = 0

	case OpMakeEnd:
		t2.Kind = EndKind
		t2.Openness = model.BoundaryOpenness(op.Params[1])
		t2.OrigIndex = t1.OrigIndex
		t2.JoinAttr = t1.Attributes[op.Params[0]] + op.Params[2]
		t2.LocalWeight = 0

	case OpCmpJoinAttr:
		compareAndSwap(combinedOrderLess, t1, t2)
	case OpCmpJoinThenOther:
		compareAndSwap(joinThenOtherLess, t1, t2)
	case OpCmpJoinThenSeq:
		compareAndSwap(joinThenSeqLess, t1, t2)
	case OpCmpPairwise:
		compareAndSwap(pairwiseLessPadAware, t1, t2)
	case OpCmpEndFirst:
		compareAndSwap(endFirstLess, t1, t2)
	case OpCmpPadLast:
		compareAndSwap(padLastLess, t1, t2)
	case OpCmpAlignmentKey:
		compareAndSwap(alignmentKeyLess, t1, t2)
	case OpCmpDistribute:
		compareAndSwap(distributeLess, t1, t2)

	case OpWinLocalCumsum:
		t2.LocalCumsum = t1.LocalCumsum + t2.LocalWeight
	case OpWinLocalInterval:
		t1.LocalInterval = t1.LocalCumsum
	case OpWinComputeDstIdx:
		t2.DstIdx = t1.DstIdx + t1.FinalMult
	case OpWinForeignSum:
		t2.ForeignSum = t1.ForeignSum + t2.LocalWeight
	case OpWinForeignInterval:
		t1.ForeignInterval = t1.ForeignSum
	case OpWinLocalBandCount:
		t2.LocalInterval = t2.LocalInterval - t1.LocalInterval
	case OpWinForeignBandCount:
		t2.ForeignInterval = t2.ForeignInterval - t1.ForeignInterval
	case OpWinCopyIndex:
		if t2.OrigIndex == t1.OrigIndex {
			t2.CopyIndex = t1.CopyIndex + 1
		} else {
			t2.CopyIndex = 0
		}
	case OpWinIndexInc:
		t2.Index = t1.Index + 1
	case OpWinExpandCopy:
		if t2.Kind == model.DistPadKind {
			*t2 = *t1
		}

	case OpMarkZeroMultPad:
		if t1.FinalMult == 0 {
			t1.Kind = model.DistPadKind
		}
	case OpComputeAlignmentKey:
		// Every row reaching this op survived DistributeExpand with
		// final_mult > 0, which requires local_mult > 0 (final_mult is
		// their product), so the division below never sees a zero divisor.
		t1.AlignmentKey = t1.ForeignSum + t1.CopyIndex/t1.LocalMult
	case OpCreateDistPad:
		*t1 = model.Tuple{Kind: model.DistPadKind}
	case OpSetJoinAttrFromCol:
		t1.JoinAttr = t1.Attributes[op.Params[0]]

	case OpUpdateTargetFinalMult:
		t1.FinalMult = t1.LocalMult * t2.ForeignInterval
	case OpWriteBackForeignSum:
		t1.ForeignSum = t2.ForeignSum
	case OpMultiplyTargetLocalMult:
		t1.LocalMult = t1.LocalMult * t2.LocalInterval
	case OpWriteBackLocalInterval:
		t1.LocalInterval = t2.LocalInterval

	case OpSetWeightFromLocalMult:
		t2.LocalWeight = t1.LocalMult
	case OpSetWeightFromFinalMult:
		// spec.md §4.5's lead-in formula: c.final_mult = Σ over matching p of
		// (p.final_mult / p.local_mult_on_this_edge) × c.local_mult. The
		// divisor has to be the band count p matched against THIS child's
		// edge specifically, not p.local_mult (the product folded in across
		// every one of p's children during BottomUp) — a node with more
		// than one child would otherwise divide p.final_mult by a count
		// that includes rows from other edges entirely, and every child of
		// p would end up undercounted. TopDown recomputes that per-edge
		// count fresh for this edge and stashes it onto p.local_interval
		// via OpWriteBackLocalInterval just before this op runs. A zero
		// local_interval always pairs with a zero final_mult (final_mult is
		// a product that includes it), so the weight is 0 either way.
		if t1.LocalInterval == 0 {
			t2.LocalWeight = 0
		} else {
			t2.LocalWeight = t1.FinalMult / t1.LocalInterval
		}

	case OpHorizontalConcat:
		left, right := int(op.Params[0]), int(op.Params[1])
		var merged [model.MaxAttributes]int64
		copy(merged[:left], t1.Attributes[:left])
		copy(merged[left:left+right], t2.Attributes[:right])
		t1.Attributes = merged
	}
}

// CompareOpcodeLess resolves a comparator Opcode to the Go ordering
// function it implements, for a caller that needs the ordering itself
// rather than a submitted compare-and-swap. internal/obltable's
// BitonicSort does not use it: it submits the comparator opcode for
// every compare-exchange.
func CompareOpcodeLess(op Opcode) func(a, b *model.Tuple) bool {
	switch op {
	case OpCmpJoinAttr:
		return combinedOrderLess
	case OpCmpJoinThenOther:
		return joinThenOtherLess
	case OpCmpJoinThenSeq:
		return joinThenSeqLess
	case OpCmpPairwise:
		return pairwiseLessPadAware
	case OpCmpEndFirst:
		return endFirstLess
	case OpCmpPadLast:
		return padLastLess
	case OpCmpAlignmentKey:
		return alignmentKeyLess
	case OpCmpDistribute:
		return distributeLess
	default:
		return joinThenOtherLess
	}
}
