package dispatch

import "github.com/rawblock/oblivious-band-join/pkg/model"

// Backend executes one Operation against its one or two operand tuples.
// Dispatcher.Flush calls it once per queued op, strictly in submission
// order — the oblivious-execution contract spec.md §9 requires (a fixed,
// data-independent sequence of primitive steps) depends on that order
// never being reshuffled, which rules out a backend that parallelizes
// across ops sharing tuples. This is the seam the teacher's build-tag
// selected cuda/cpu matcher pair occupied (swap the thing that executes
// the per-item work behind a common signature); here it is a runtime
// interface instead of a build tag; since there is no combinatorial
// per-item workload in a band join for a GPU kernel to accelerate (see
// DESIGN.md), both implementations below run on the CPU and differ only
// in whether they also record a trace.
type Backend interface {
	Apply(op Operation, t1, t2 *model.Tuple)
}

// cpuBackend is the default: it runs the same apply() switch Flush has
// always used, wrapped so it satisfies Backend.
type cpuBackend struct{}

func (cpuBackend) Apply(op Operation, t1, t2 *model.Tuple) { apply(op, t1, t2) }

// DefaultBackend is what New builds a Dispatcher with.
var DefaultBackend Backend = cpuBackend{}
