package engine

import (
	"fmt"
	"time"

	"github.com/rawblock/oblivious-band-join/internal/phases"
)

// PhaseMetrics is one phase's entry in spec.md §6.4's published metrics:
// wall time, trusted-boundary crossing count, and table-size high-water
// mark (summed over every node) as of the end of that phase.
type PhaseMetrics struct {
	Name               string
	WallTime           time.Duration
	BoundaryCrossings  int
	TableSizeHighWater int
}

// Metrics is everything Execute publishes after a run: the per-phase
// breakdown plus AlignConcat's accumulator-vs-child sort split.
type Metrics struct {
	Phases          []PhaseMetrics
	AlignConcatSort phases.SortBreakdown
}

// Publish logs Metrics at the teacher's log verbosity, matching
// oblivious_join.h's GetJoinStatistics dump. It is also returned
// programmatically via ObliviousJoin.Metrics for callers (internal/api's
// job-status endpoint, in particular) that want it structured.
func (m Metrics) Publish() {
	logf("=== phase metrics ===")
	for _, p := range m.Phases {
		logf("  %-18s wall=%-12v crossings=%-4d table_high_water=%d",
			p.Name, p.WallTime, p.BoundaryCrossings, p.TableSizeHighWater)
	}
	logf("  align_concat sort breakdown: accumulator=%v/%d crossings, child=%v/%d crossings",
		m.AlignConcatSort.AccumulatorSortTime, m.AlignConcatSort.AccumulatorCrossings,
		m.AlignConcatSort.ChildSortTime, m.AlignConcatSort.ChildCrossings)
}

// String renders Metrics the way a CLI summary line would, for a caller
// that wants the numbers without scraping log output.
func (m Metrics) String() string {
	out := ""
	for _, p := range m.Phases {
		out += fmt.Sprintf("%s: %v (%d crossings, high water %d)\n", p.Name, p.WallTime, p.BoundaryCrossings, p.TableSizeHighWater)
	}
	return out
}
