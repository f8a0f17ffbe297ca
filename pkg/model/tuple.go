// Package model holds the fixed-shape records the oblivious join engine
// moves between trust boundaries: Tuple, Schema, and the small set of
// enums that discriminate a tuple's role during a phase.
package model

// MaxAttributes bounds how many original-schema columns a Tuple carries.
// Oblivious primitives move tuples bit-for-bit without branching on shape,
// so every tuple has identical size regardless of the schema it came from.
const MaxAttributes = 32

// TupleKind discriminates the role a tuple plays during a phase.
type TupleKind int32

const (
	// SourceKind marks a tuple contributing a multiplicity weight into a
	// combined stream (the child in BottomUp, the parent in TopDown).
	SourceKind TupleKind = iota
	// StartKind marks the opening boundary marker of a dual-entry pair.
	StartKind
	// EndKind marks the closing boundary marker of a dual-entry pair.
	EndKind
	// TargetKind marks an original (non-boundary, non-source) row of a table.
	TargetKind
	// SortPadKind marks bitonic-sort padding; it always sorts last.
	SortPadKind
	// DistPadKind marks distribute-expand padding inserted in phase 3.
	DistPadKind
)

func (k TupleKind) String() string {
	switch k {
	case SourceKind:
		return "SOURCE"
	case StartKind:
		return "START"
	case EndKind:
		return "END"
	case TargetKind:
		return "TARGET"
	case SortPadKind:
		return "SORT_PAD"
	case DistPadKind:
		return "DIST_PAD"
	default:
		return "UNKNOWN"
	}
}

// BoundaryOpenness records whether a START/END boundary is open or closed.
// It is meaningless outside of StartKind/EndKind tuples.
type BoundaryOpenness int32

const (
	OpennessNone BoundaryOpenness = iota
	Closed
	Open
)

func (o BoundaryOpenness) String() string {
	switch o {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	default:
		return "NONE"
	}
}

// Tuple is a fixed-shape record. Every field is always present regardless
// of which phase or schema produced the tuple; primitives read and write
// only the fields relevant to the opcode they are executing, but the
// layout never changes shape based on tuple content.
type Tuple struct {
	Kind      TupleKind
	Openness  BoundaryOpenness
	JoinAttr  int64
	OrigIndex int64

	LocalMult int64
	FinalMult int64

	ForeignSum      int64
	LocalCumsum     int64
	LocalInterval   int64
	ForeignInterval int64
	LocalWeight     int64

	CopyIndex    int64
	AlignmentKey int64

	DstIdx int64
	Index  int64

	Attributes [MaxAttributes]int64

	IsEncrypted bool
	Nonce       uint64
}

// Clone returns a value copy; Tuple has no pointer fields so a plain
// struct copy already satisfies the oblivious-primitive contract that
// callers never alias scratch state across tuples.
func (t Tuple) Clone() Tuple { return t }

// Schema is an ordered list of up to MaxAttributes column names, stored
// once per table rather than once per tuple. Column lookup is by name;
// resolved indices are cached here and passed to primitives as params.
type Schema struct {
	Name    string
	Columns []string
	index   map[string]int
}

// NewSchema builds a Schema and its name->index cache.
func NewSchema(name string, columns []string) Schema {
	if len(columns) > MaxAttributes {
		columns = columns[:MaxAttributes]
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return Schema{Name: name, Columns: columns, index: idx}
}

// ColumnIndex resolves a column name to its attribute slot, or -1 if the
// schema has no such column.
func (s Schema) ColumnIndex(col string) int {
	if s.index == nil {
		for i, c := range s.Columns {
			if c == col {
				return i
			}
		}
		return -1
	}
	if i, ok := s.index[col]; ok {
		return i
	}
	return -1
}

// Concat returns a schema naming this schema's columns followed by
// other's, used by ObliviousTable.HorizontalConcat.
func (s Schema) Concat(other Schema) Schema {
	cols := make([]string, 0, len(s.Columns)+len(other.Columns))
	cols = append(cols, s.Columns...)
	cols = append(cols, other.Columns...)
	return NewSchema(s.Name, cols)
}
