package dispatch

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func TestTracingBackendRecordsAppliedOpsInOrder(t *testing.T) {
	tracer := NewTracingBackend(nil, false)
	d := NewWithBackend(nil, DefaultMaxBatch, tracer)

	a := &model.Tuple{OrigIndex: 1}
	b := &model.Tuple{OrigIndex: 2}
	c := &model.Tuple{OrigIndex: 3}

	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit(OpWinIndexInc, [4]int64{}, b, c); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	trace := tracer.Trace()
	if len(trace) != 2 {
		t.Fatalf("len(Trace()) = %d, want 2", len(trace))
	}
	if trace[0].Idx1Attr != 1 || trace[0].Idx2Attr != 2 {
		t.Errorf("trace[0] = %+v, want orig 1/2", trace[0])
	}
	if trace[1].Idx1Attr != 2 || trace[1].Idx2Attr != 3 {
		t.Errorf("trace[1] = %+v, want orig 2/3", trace[1])
	}
}

func TestTracingBackendStillAppliesToWrappedBackend(t *testing.T) {
	tracer := NewTracingBackend(nil, false)
	d := NewWithBackend(nil, DefaultMaxBatch, tracer)

	a := &model.Tuple{Index: 0}
	b := &model.Tuple{}
	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if b.Index != 1 {
		t.Errorf("b.Index = %d, want 1 (OpWinIndexInc must still run)", b.Index)
	}
}

func TestTracingBackendResetClearsTrace(t *testing.T) {
	tracer := NewTracingBackend(nil, false)
	d := NewWithBackend(nil, DefaultMaxBatch, tracer)
	a, b := &model.Tuple{}, &model.Tuple{}
	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	tracer.Reset()
	if len(tracer.Trace()) != 0 {
		t.Fatalf("Trace() after Reset = %d entries, want 0", len(tracer.Trace()))
	}
}
