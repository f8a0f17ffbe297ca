package dispatch

import (
	"log"

	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// OpTrace is one applied operation, as TracingBackend records it.
type OpTrace struct {
	Opcode    Opcode
	Idx1Attr  int64 // t1.OrigIndex at apply time
	Idx2Attr  int64 // t2.OrigIndex at apply time, or -1 if t2 is nil
}

// TracingBackend wraps another Backend and records every applied
// operation, for a debugging granularity finer than internal/engine's
// per-phase-per-node snapshots: a full per-operation trace of exactly
// what ran against which tuples, in order. This is the adapted
// counterpart of the teacher's verbose CUDA-offload logging
// (cuda_matcher_nvidia.go's "[CUDA] Offloading N inputs..." line before
// every kernel call) — same idea of narrating each unit of work as it
// crosses the boundary, minus the GPU transfer it no longer describes.
type TracingBackend struct {
	inner Backend
	trace []OpTrace
	log   bool
}

// NewTracingBackend wraps inner (DefaultBackend if nil). If logEach is
// true every operation is also logged as it runs, matching the
// teacher's habit of narrating expensive offloaded work live.
func NewTracingBackend(inner Backend, logEach bool) *TracingBackend {
	if inner == nil {
		inner = DefaultBackend
	}
	return &TracingBackend{inner: inner, log: logEach}
}

func (b *TracingBackend) Apply(op Operation, t1, t2 *model.Tuple) {
	entry := OpTrace{Opcode: op.Opcode, Idx1Attr: t1.OrigIndex, Idx2Attr: -1}
	if t2 != nil {
		entry.Idx2Attr = t2.OrigIndex
	}
	b.trace = append(b.trace, entry)
	if b.log {
		log.Printf("[TracingBackend] %s t1.orig=%d t2.orig=%d", op.Opcode, entry.Idx1Attr, entry.Idx2Attr)
	}
	b.inner.Apply(op, t1, t2)
}

// Trace returns every operation recorded so far, in submission order.
func (b *TracingBackend) Trace() []OpTrace { return b.trace }

// Reset clears the recorded trace without detaching the wrapped backend.
func (b *TracingBackend) Reset() { b.trace = b.trace[:0] }
