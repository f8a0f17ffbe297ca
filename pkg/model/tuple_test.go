package model

import "testing"

func TestSchemaColumnIndex(t *testing.T) {
	s := NewSchema("orders", []string{"orderkey", "custkey"})

	if got := s.ColumnIndex("custkey"); got != 1 {
		t.Errorf("ColumnIndex(custkey) = %d, want 1", got)
	}
	if got := s.ColumnIndex("missing"); got != -1 {
		t.Errorf("ColumnIndex(missing) = %d, want -1", got)
	}
}

func TestSchemaConcat(t *testing.T) {
	left := NewSchema("customer", []string{"custkey"})
	right := NewSchema("orders", []string{"orderkey", "custkey"})

	got := left.Concat(right)
	want := []string{"custkey", "orderkey", "custkey"}

	if len(got.Columns) != len(want) {
		t.Fatalf("Concat columns = %v, want %v", got.Columns, want)
	}
	for i, c := range want {
		if got.Columns[i] != c {
			t.Errorf("Concat.Columns[%d] = %q, want %q", i, got.Columns[i], c)
		}
	}
}

func TestTupleKindString(t *testing.T) {
	cases := map[TupleKind]string{
		SourceKind:  "SOURCE",
		StartKind:   "START",
		EndKind:     "END",
		TargetKind:  "TARGET",
		SortPadKind: "SORT_PAD",
		DistPadKind: "DIST_PAD",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("TupleKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestTupleCloneIsIndependent(t *testing.T) {
	a := Tuple{JoinAttr: 5}
	a.Attributes[0] = 1
	b := a.Clone()
	b.Attributes[0] = 2
	b.JoinAttr = 9

	if a.Attributes[0] != 1 || a.JoinAttr != 5 {
		t.Errorf("mutating clone affected original: %+v", a)
	}
}
