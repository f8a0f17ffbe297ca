// Package obltable implements ObliviousTable: a fixed-shape sequence of
// model.Tuple values plus the five data-oblivious primitives (map,
// linear_pass, parallel_pass, distribute_pass, bitonic_sort) and
// horizontal_concat spec.md §4.2 names, each one submitting its work to an
// internal/dispatch.Dispatcher rather than touching tuples directly.
package obltable

import (
	"github.com/rawblock/oblivious-band-join/internal/dispatch"
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// EncryptionStatus summarizes whether a table's tuples are uniformly
// plaintext, uniformly encrypted, or a mix spec.md §7 treats as fatal
// between phase boundaries.
type EncryptionStatus int

const (
	AllPlaintext EncryptionStatus = iota
	AllEncrypted
	Mixed
)

func (s EncryptionStatus) String() string {
	switch s {
	case AllPlaintext:
		return "ALL_PLAINTEXT"
	case AllEncrypted:
		return "ALL_ENCRYPTED"
	default:
		return "MIXED"
	}
}

// Table is an ObliviousTable: a name (for logging/debug snapshots), a
// Schema describing its attribute columns, and the tuples themselves.
type Table struct {
	Name   string
	Schema model.Schema
	Tuples []model.Tuple
}

// New builds an empty table with the given name and schema.
func New(name string, schema model.Schema) *Table {
	return &Table{Name: name, Schema: schema}
}

// FromRows builds a table of TargetKind tuples, one per row, each row's
// values copied into Attributes in schema column order. It is the load
// path internal/tableio uses.
func FromRows(name string, schema model.Schema, rows [][]int64) *Table {
	t := &Table{Name: name, Schema: schema, Tuples: make([]model.Tuple, len(rows))}
	for i, row := range rows {
		tup := model.Tuple{Kind: model.TargetKind, OrigIndex: int64(i)}
		n := len(row)
		if n > model.MaxAttributes {
			n = model.MaxAttributes
		}
		copy(tup.Attributes[:n], row[:n])
		t.Tuples[i] = tup
	}
	return t
}

func (t *Table) Len() int { return len(t.Tuples) }

// Status derives the table's encryption status by scanning every tuple.
// A zero-length table reports AllPlaintext.
func (t *Table) Status() EncryptionStatus {
	if len(t.Tuples) == 0 {
		return AllPlaintext
	}
	enc, plain := 0, 0
	for _, tup := range t.Tuples {
		if tup.IsEncrypted {
			enc++
		} else {
			plain++
		}
	}
	switch {
	case plain == 0:
		return AllEncrypted
	case enc == 0:
		return AllPlaintext
	default:
		return Mixed
	}
}

// RequireUniformEncryption returns an EncryptionStateError naming phase
// and this table if its tuples are in a MIXED state.
func (t *Table) RequireUniformEncryption(phase string) error {
	if t.Status() == Mixed {
		return joinerr.EncryptionStateErrorf(phase, t.Name, "table has both encrypted and plaintext tuples")
	}
	return nil
}

func (t *Table) ptr(i int) *model.Tuple { return &t.Tuples[i] }

// Map submits opcode against every tuple individually (a single-operand
// Operation per row), the primitive every INIT_*/transform opcode drives.
func (t *Table) Map(d *dispatch.Dispatcher, opcode dispatch.Opcode, params [4]int64) error {
	for i := range t.Tuples {
		if err := d.Submit(opcode, params, t.ptr(i), nil); err != nil {
			return err
		}
	}
	return nil
}

// LinearPass folds opcode sequentially over the table: tuple i-1 is always
// t1 (the running accumulator) and tuple i is t2 (the one being updated),
// visited left to right. Index 0 never receives an op; callers seed it
// via Map with an INIT_* opcode before calling LinearPass.
func (t *Table) LinearPass(d *dispatch.Dispatcher, opcode dispatch.Opcode, params [4]int64) error {
	for i := 1; i < len(t.Tuples); i++ {
		if err := d.Submit(opcode, params, t.ptr(i-1), t.ptr(i)); err != nil {
			return err
		}
	}
	return nil
}

// ParallelPass submits opcode against corresponding rows of two
// equal-length tables. It is a SizeMismatchError for the lengths to
// differ. The phases do not call it: BottomUp and TopDown build their
// combined streams by submitting per-row operations directly.
func (t *Table) ParallelPass(d *dispatch.Dispatcher, other *Table, opcode dispatch.Opcode, params [4]int64) error {
	if len(t.Tuples) != len(other.Tuples) {
		return joinerr.SizeMismatchErrorf("parallel_pass", t.Name, "len(%s)=%d != len(%s)=%d", t.Name, len(t.Tuples), other.Name, len(other.Tuples))
	}
	for i := range t.Tuples {
		if err := d.Submit(opcode, params, t.ptr(i), other.ptr(i)); err != nil {
			return err
		}
	}
	return nil
}

// DistributePass applies opcode to every pair (tuple[i], tuple[i+stride])
// for i = 0..n-stride-1, spec.md §4.6's generic distribution primitive.
// internal/phases' DistributeExpand does not chain this primitive for its
// own correctness-critical placement (see DESIGN.md); it is still a fully
// exercised, independently testable primitive other call sites may use.
func (t *Table) DistributePass(d *dispatch.Dispatcher, stride int, opcode dispatch.Opcode) error {
	n := len(t.Tuples)
	for i := 0; i+stride < n; i++ {
		if err := d.Submit(opcode, [4]int64{int64(stride)}, t.ptr(i), t.ptr(i+stride)); err != nil {
			return err
		}
	}
	return nil
}

// HorizontalConcat builds a new table whose schema is t.Schema followed by
// other.Schema and whose i-th row is t's i-th row's attributes followed
// by other's i-th row's attributes. Both tables must have the same
// length; AlignConcat calls this once per join-tree edge after both
// sides have been expanded to the same row count.
func (t *Table) HorizontalConcat(d *dispatch.Dispatcher, other *Table) (*Table, error) {
	if len(t.Tuples) != len(other.Tuples) {
		return nil, joinerr.SizeMismatchErrorf("horizontal_concat", t.Name, "len(%s)=%d != len(%s)=%d", t.Name, len(t.Tuples), other.Name, len(other.Tuples))
	}
	leftCols := int64(len(t.Schema.Columns))
	rightCols := int64(len(other.Schema.Columns))

	// t's rows are copied directly below, so operations still queued
	// against them have to run first.
	if err := d.Flush(); err != nil {
		return nil, err
	}
	out := &Table{
		Name:   t.Name + "_" + other.Name,
		Schema: t.Schema.Concat(other.Schema),
		Tuples: make([]model.Tuple, len(t.Tuples)),
	}
	copy(out.Tuples, t.Tuples)

	for i := range out.Tuples {
		if err := d.Submit(dispatch.OpHorizontalConcat, [4]int64{leftCols, rightCols}, &out.Tuples[i], other.ptr(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Truncate shortens the table to the first n rows (used after a bitonic
// sort moved SORT_PAD padding to the tail).
func (t *Table) Truncate(n int) {
	if n < len(t.Tuples) {
		t.Tuples = t.Tuples[:n]
	}
}

// Append grows the table by the given tuples, used to pad up to a target
// length (next power of two for bitonic_sort).
func (t *Table) Append(tuples ...model.Tuple) {
	t.Tuples = append(t.Tuples, tuples...)
}
