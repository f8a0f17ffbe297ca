package jointree

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func TestReverseFlipsColumnsAndBounds(t *testing.T) {
	c := JoinConstraint{
		SourceCol: "ts", TargetCol: "event_ts",
		Delta1: -5, Delta2: 10,
		Open1: model.Closed, Open2: model.Open,
	}
	r := c.Reverse()

	if r.SourceCol != "event_ts" || r.TargetCol != "ts" {
		t.Fatalf("Reverse columns = %q/%q, want event_ts/ts", r.SourceCol, r.TargetCol)
	}
	if r.Delta1 != -10 || r.Delta2 != 5 {
		t.Errorf("Reverse deltas = %d/%d, want -10/5", r.Delta1, r.Delta2)
	}
	if r.Open1 != model.Open || r.Open2 != model.Closed {
		t.Errorf("Reverse openness = %v/%v, want Open/Closed", r.Open1, r.Open2)
	}
}

func TestReverseHandlesInfiniteBounds(t *testing.T) {
	c := JoinConstraint{Delta1: NegInf, Delta2: PosInf}
	r := c.Reverse()
	if r.Delta1 != NegInf || r.Delta2 != PosInf {
		t.Errorf("Reverse of [-inf,inf] = [%d,%d], want unchanged", r.Delta1, r.Delta2)
	}
}
