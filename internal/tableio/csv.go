// Package tableio loads and saves ObliviousTables as CSV, the on-disk
// format cmd/obliviousjoin's encrypt/decrypt subcommands and
// internal/engine's debug-session snapshots both use. It is not part of
// spec.md's own scope (the spec treats table construction as a given),
// but the engine cannot be run end to end without a way to get rows in
// and snapshots out, so it is built the same way the teacher builds its
// own I/O: stdlib encoding/csv, no third-party CSV or serialization
// library appears anywhere in the example pack.
package tableio

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// LoadCSV reads a plaintext table: the header row is the schema's column
// names, every row after it is parsed as one int64 per column. name
// becomes the table's Name and the schema's Name.
func LoadCSV(path, name string) (*obltable.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tableio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("tableio: read header from %s: %w", path, err)
	}

	var rows [][]int64
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("tableio: read row from %s: %w", path, err)
		}
		row := make([]int64, len(rec))
		for i, v := range rec {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("tableio: parse column %q row value %q: %w", header[i], v, err)
			}
			row[i] = n
		}
		rows = append(rows, row)
	}

	schema := model.NewSchema(name, header)
	t := obltable.FromRows(name, schema, rows)
	return t, nil
}

// SaveCSV writes t's schema as the header row and, per tuple, its first
// len(Schema.Columns) attributes. It is only meaningful for a table in
// AllPlaintext state; an encrypted table's Attributes no longer line up
// with its schema and must go through SaveEncryptedCSV instead.
func SaveCSV(path string, t *obltable.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tableio: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Schema.Columns); err != nil {
		return fmt.Errorf("tableio: write header to %s: %w", path, err)
	}
	n := len(t.Schema.Columns)
	rec := make([]string, n)
	for _, tup := range t.Tuples {
		for i := 0; i < n; i++ {
			rec[i] = strconv.FormatInt(tup.Attributes[i], 10)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("tableio: write row to %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// encryptedColumns is the header an encrypted-CSV file always carries:
// the table's schema name followed by one "tuple_hex" column holding the
// full fixed-shape Tuple (every scratch field plus all MaxAttributes
// slots, whatever their current encrypted or plaintext values are), so a
// round trip never depends on which phase produced the snapshot.
var encryptedColumns = []string{"schema_name", "tuple_hex"}

// SaveEncryptedCSV dumps every tuple of t verbatim (ciphertext or
// plaintext, whichever it currently holds) plus the schema name needed
// to rebuild a Schema on load. Column names are carried once, in the
// Table itself, matching spec.md §6.1's note that column-name metadata
// may be left outside the encrypted payload.
func SaveEncryptedCSV(path string, t *obltable.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tableio: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encryptedColumns); err != nil {
		return err
	}
	if err := w.Write(append([]string{t.Schema.Name}, t.Schema.Columns...)); err != nil {
		return err
	}
	for _, tup := range t.Tuples {
		if err := w.Write([]string{t.Schema.Name, hex.EncodeToString(serializeTuple(&tup))}); err != nil {
			return fmt.Errorf("tableio: write row to %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// LoadEncryptedCSV is SaveEncryptedCSV's inverse: it reconstructs the
// schema from the second row and every tuple from its hex payload.
func LoadEncryptedCSV(path string) (*obltable.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tableio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("tableio: read header from %s: %w", path, err)
	}
	schemaRow, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("tableio: read schema row from %s: %w", path, err)
	}
	schema := model.NewSchema(schemaRow[0], schemaRow[1:])

	t := &obltable.Table{Name: schema.Name, Schema: schema}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("tableio: read row from %s: %w", path, err)
		}
		raw, err := hex.DecodeString(rec[1])
		if err != nil {
			return nil, fmt.Errorf("tableio: decode tuple_hex in %s: %w", path, err)
		}
		tup, err := deserializeTuple(raw)
		if err != nil {
			return nil, fmt.Errorf("tableio: deserialize tuple in %s: %w", path, err)
		}
		t.Tuples = append(t.Tuples, tup)
	}
	return t, nil
}

// tupleBytes is the fixed serialized size of one Tuple: two int32 tags,
// fourteen int64 scratch fields (including Nonce), one bool-as-byte for
// IsEncrypted, and MaxAttributes int64 columns. The layout mirrors
// internal/tuplecrypto's own field order so a dump taken mid-encryption
// and one taken plaintext serialize identically in shape.
const tupleBytes = 4 + 4 + 14*8 + 1 + model.MaxAttributes*8

func serializeTuple(t *model.Tuple) []byte {
	buf := make([]byte, tupleBytes)
	binary.BigEndian.PutUint32(buf[0:4], uint32(t.Kind))
	binary.BigEndian.PutUint32(buf[4:8], uint32(t.Openness))
	off := 8
	for _, v := range []int64{
		t.JoinAttr, t.OrigIndex, t.LocalMult, t.FinalMult, t.ForeignSum,
		t.LocalCumsum, t.LocalInterval, t.ForeignInterval, t.LocalWeight,
		t.CopyIndex, t.AlignmentKey, t.DstIdx, t.Index, int64(t.Nonce),
	} {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(v))
		off += 8
	}
	if t.IsEncrypted {
		buf[off] = 1
	}
	off++
	for i := 0; i < model.MaxAttributes; i++ {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(t.Attributes[i]))
		off += 8
	}
	return buf
}

func deserializeTuple(buf []byte) (model.Tuple, error) {
	if len(buf) != tupleBytes {
		return model.Tuple{}, fmt.Errorf("tableio: tuple payload is %d bytes, want %d", len(buf), tupleBytes)
	}
	var t model.Tuple
	t.Kind = model.TupleKind(binary.BigEndian.Uint32(buf[0:4]))
	t.Openness = model.BoundaryOpenness(binary.BigEndian.Uint32(buf[4:8]))
	off := 8
	fields := []*int64{
		&t.JoinAttr, &t.OrigIndex, &t.LocalMult, &t.FinalMult, &t.ForeignSum,
		&t.LocalCumsum, &t.LocalInterval, &t.ForeignInterval, &t.LocalWeight,
		&t.CopyIndex, &t.AlignmentKey, &t.DstIdx, &t.Index,
	}
	for _, f := range fields {
		*f = int64(binary.BigEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	t.Nonce = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	t.IsEncrypted = buf[off] == 1
	off++
	for i := 0; i < model.MaxAttributes; i++ {
		t.Attributes[i] = int64(binary.BigEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	return t, nil
}
