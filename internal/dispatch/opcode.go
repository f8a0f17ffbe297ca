// Package dispatch implements the batched trusted-boundary dispatcher the
// phases submit every tuple-level operation through, grounded on
// original_source/app/batch/ecall_batch_collector.h: rather than crossing
// into the enclave once per tuple, callers queue (opcode, operands) pairs
// and the dispatcher decrypts, applies, and re-encrypts an entire batch in
// one crossing.
package dispatch

// Opcode is the closed catalogue of operations a phase may submit to the
// dispatcher, taken from spec.md §6.2. Every phase package only ever
// refers to tuples through one of these; none of them inspect a Tuple's
// fields directly outside this package and internal/phases.
type Opcode int

const (
	// Meta/init opcodes set up scratch fields before a pass begins.
	OpInitMeta Opcode = iota
	OpInitFinalMultFromLocal
	OpInitCopyIdx
	OpInitDstIdx
	OpInitIndex
	OpInitForeignTemps

	// Boundary construction turns a source row into one, two, or three
	// entries of the combined SOURCE/START/END stream.
	OpMakeSource
	OpMakeStart
	OpMakeEnd

	// Comparators back bitonic_sort and distribute_pass; each performs its
	// comparison and any resulting swap in one trusted-boundary call so the
	// outcome of the comparison is never itself revealed to the caller.
	OpCmpJoinAttr
	OpCmpJoinThenOther
	OpCmpJoinThenSeq
	OpCmpPairwise
	OpCmpEndFirst
	OpCmpPadLast
	OpCmpAlignmentKey
	OpCmpDistribute

	// Window functions are the sequential, prefix-sum-shaped passes that
	// give bottom-up/top-down/distribute-expand their running totals.
	OpWinLocalCumsum
	OpWinLocalInterval
	OpWinComputeDstIdx
	OpWinForeignSum
	OpWinForeignInterval
	OpWinCopyIndex
	OpWinIndexInc
	OpWinExpandCopy

	// Transforms mutate a single tuple in place based on its own fields.
	OpMarkZeroMultPad

	// OpComputeAlignmentKey sets t1.AlignmentKey := t1.ForeignSum +
	// t1.CopyIndex/t1.LocalMult, per spec.md §4.7 step 4: foreign_sum fixes
	// which group of the parent's replicated rows this row belongs to, and
	// copy_index/local_mult selects the right member within that group.
	OpComputeAlignmentKey
	OpCreateDistPad
	OpSetJoinAttrFromCol

	// Reduction and target-update close out a phase.
	OpObtainOutputSize
	OpUpdateTargetFinalMult

	// OpWriteBackForeignSum copies a combined-stream START entry's
	// foreign_sum (the running weighted-parent count just before this
	// child's window begins) onto the child's own persistent tuple:
	// t1.ForeignSum = t2.ForeignSum. TopDown's combined stream is a
	// throwaway table computed fresh per edge; AlignConcat's
	// alignment_key formula (spec.md §4.7 step 4) needs foreign_sum to
	// still identify which parent group a child row belongs to, so
	// TopDown has to persist it back before the combined stream is
	// discarded.
	OpWriteBackForeignSum

	// OpHorizontalConcat writes t1's first leftCols attributes followed by
	// t2's first rightCols attributes into t1, backing HorizontalConcat.
	// Params[0]=leftCols, Params[1]=rightCols.
	OpHorizontalConcat

	// OpSetWeightFromLocalMult and OpSetWeightFromFinalMult write a source
	// row's already-computed multiplicity into the LocalWeight field of a
	// derived SOURCE marker just built by OpMakeSource, so the subsequent
	// prefix sum counts each row by its multiplicity rather than by one.
	// OpSetWeightFromLocalMult copies local_mult directly (BottomUp).
	// OpSetWeightFromFinalMult divides final_mult by local_interval first
	// (TopDown), where local_interval holds the per-edge band count
	// OpWriteBackLocalInterval just stashed for the one child edge being
	// propagated into, not the all-children product local_mult holds.
	OpSetWeightFromLocalMult
	OpSetWeightFromFinalMult

	// OpWinLocalBandCount and OpWinForeignBandCount close out a paired
	// START/END scan: applied to a (START, END) pair sharing one
	// original_index, each overwrites the END's interval field with
	// END.interval − START.interval, the count of matching rows that
	// original's band actually covers.
	OpWinLocalBandCount
	OpWinForeignBandCount

	// OpMultiplyTargetLocalMult folds a just-computed child-interval into
	// a parent row's running local_mult across however many children it
	// has, via parallel_pass: t1.local_mult *= t2.local_interval.
	OpMultiplyTargetLocalMult

	// OpWriteBackLocalInterval copies a just-recomputed per-edge band
	// count onto a parent row's persistent local_interval field:
	// t1.local_interval = t2.local_interval. local_interval is otherwise
	// idle on a persistent tuple once OpInitMeta zeroes it, so TopDown
	// reuses it to stash the one-child-edge count OpSetWeightFromFinalMult
	// needs, as opposed to local_mult, which already holds the product
	// across every child edge and cannot be overwritten without corrupting
	// OpComputeAlignmentKey's later read of it.
	OpWriteBackLocalInterval
)

func (o Opcode) String() string {
	switch o {
	case OpInitMeta:
		return "INIT_META"
	case OpInitFinalMultFromLocal:
		return "INIT_FINAL_MULT_FROM_LOCAL"
	case OpInitCopyIdx:
		return "INIT_COPY_IDX"
	case OpInitDstIdx:
		return "INIT_DST_IDX"
	case OpInitIndex:
		return "INIT_INDEX"
	case OpInitForeignTemps:
		return "INIT_FOREIGN_TEMPS"
	case OpMakeSource:
		return "MAKE_SOURCE"
	case OpMakeStart:
		return "MAKE_START"
	case OpMakeEnd:
		return "MAKE_END"
	case OpCmpJoinAttr:
		return "CMP_JOIN_ATTR"
	case OpCmpJoinThenOther:
		return "CMP_JOIN_THEN_OTHER"
	case OpCmpJoinThenSeq:
		return "CMP_JOIN_THEN_SEQ"
	case OpCmpPairwise:
		return "CMP_PAIRWISE"
	case OpCmpEndFirst:
		return "CMP_END_FIRST"
	case OpCmpPadLast:
		return "CMP_PAD_LAST"
	case OpCmpAlignmentKey:
		return "CMP_ALIGNMENT_KEY"
	case OpCmpDistribute:
		return "CMP_DISTRIBUTE"
	case OpWinLocalCumsum:
		return "WIN_LOCAL_CUMSUM"
	case OpWinLocalInterval:
		return "WIN_LOCAL_INTERVAL"
	case OpWinComputeDstIdx:
		return "WIN_COMPUTE_DST_IDX"
	case OpWinForeignSum:
		return "WIN_FOREIGN_SUM"
	case OpWinForeignInterval:
		return "WIN_FOREIGN_INTERVAL"
	case OpWinCopyIndex:
		return "WIN_COPY_INDEX"
	case OpWinIndexInc:
		return "WIN_INDEX_INC"
	case OpWinExpandCopy:
		return "WIN_EXPAND_COPY"
	case OpMarkZeroMultPad:
		return "MARK_ZERO_MULT_PAD"
	case OpComputeAlignmentKey:
		return "COMPUTE_ALIGNMENT_KEY"
	case OpCreateDistPad:
		return "CREATE_DIST_PAD"
	case OpSetJoinAttrFromCol:
		return "SET_JOIN_ATTR_FROM_COL"
	case OpObtainOutputSize:
		return "OBTAIN_OUTPUT_SIZE"
	case OpUpdateTargetFinalMult:
		return "UPDATE_TARGET_FINAL_MULT"
	case OpHorizontalConcat:
		return "HORIZONTAL_CONCAT"
	case OpSetWeightFromLocalMult:
		return "SET_WEIGHT_FROM_LOCAL_MULT"
	case OpSetWeightFromFinalMult:
		return "SET_WEIGHT_FROM_FINAL_MULT"
	case OpWinLocalBandCount:
		return "WIN_LOCAL_BAND_COUNT"
	case OpWinForeignBandCount:
		return "WIN_FOREIGN_BAND_COUNT"
	case OpMultiplyTargetLocalMult:
		return "MULTIPLY_TARGET_LOCAL_MULT"
	case OpWriteBackLocalInterval:
		return "WRITE_BACK_LOCAL_INTERVAL"
	default:
		return "UNKNOWN_OPCODE"
	}
}

// NoOperand marks an Operation with only one tuple operand.
const NoOperand = -1

// Operation is one queued unit of work: an opcode, up to two operand
// indices into the dispatcher's batch-local tuple registry, and up to four
// scalar parameters (a join delta, a column index, a stride...). Its shape
// never depends on tuple content, only on which opcode a phase is driving.
type Operation struct {
	Opcode Opcode
	Idx1   int
	Idx2   int
	Params [4]int64
}
