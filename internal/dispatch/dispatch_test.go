package dispatch

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func TestSubmitDedupsTuplesByIdentity(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	a := &model.Tuple{OrigIndex: 1}
	b := &model.Tuple{OrigIndex: 2}

	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(d.tuples) != 2 {
		t.Fatalf("len(tuples) = %d, want 2 (deduped)", len(d.tuples))
	}
}

func TestFlushAppliesOpsInOrder(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	a := &model.Tuple{Index: 0}
	b := &model.Tuple{}
	c := &model.Tuple{}

	if err := d.Submit(OpWinIndexInc, [4]int64{}, a, b); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit(OpWinIndexInc, [4]int64{}, b, c); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if b.Index != 1 || c.Index != 2 {
		t.Errorf("b.Index=%d c.Index=%d, want 1, 2", b.Index, c.Index)
	}
}

func TestAutoFlushAtMaxBatch(t *testing.T) {
	d := New(nil, 2)
	a := &model.Tuple{}
	b := &model.Tuple{}

	if err := d.Submit(OpInitMeta, [4]int64{}, a, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit(OpInitMeta, [4]int64{}, b, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(d.ops) != 0 {
		t.Errorf("expected auto-flush at maxBatch=2, ops still queued: %d", len(d.ops))
	}
	if d.stats.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", d.stats.Flushes)
	}
}

func TestFlushDecryptsAndReencrypts(t *testing.T) {
	key, err := tuplecrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cryptor := tuplecrypto.NewAESCryptor(key)
	d := New(cryptor, DefaultMaxBatch)

	a := &model.Tuple{LocalMult: 5}
	if status := cryptor.Encrypt(a); status != tuplecrypto.OK {
		t.Fatalf("Encrypt: %v", status)
	}

	if err := d.Submit(OpInitFinalMultFromLocal, [4]int64{}, a, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !a.IsEncrypted {
		t.Fatalf("expected tuple re-encrypted after flush")
	}
	if status := cryptor.Decrypt(a); status != tuplecrypto.OK {
		t.Fatalf("Decrypt: %v", status)
	}
	if a.FinalMult != 5 {
		t.Errorf("FinalMult = %d, want 5 (opcode should have run despite encryption)", a.FinalMult)
	}
}

func TestFlushWithoutCryptorRejectsEncryptedTuple(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	a := &model.Tuple{IsEncrypted: true}

	if err := d.Submit(OpInitMeta, [4]int64{}, a, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err == nil {
		t.Fatalf("expected EncryptionStateError, got nil")
	}
}

func TestObtainOutputSizeFlushesFirst(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	a := &model.Tuple{DstIdx: 3, FinalMult: 2}
	b := &model.Tuple{FinalMult: 9}

	// queue an op that would not affect a, just to prove Flush happens.
	if err := d.Submit(OpInitMeta, [4]int64{}, b, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	size, err := d.ObtainOutputSize(a)
	if err != nil {
		t.Fatalf("ObtainOutputSize: %v", err)
	}
	if size != 5 {
		t.Errorf("ObtainOutputSize = %d, want 5", size)
	}
	if len(d.ops) != 0 {
		t.Errorf("expected queued ops flushed, got %d still queued", len(d.ops))
	}
}

func TestCompareAndSwapOrdersCombinedStream(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	hi := &model.Tuple{JoinAttr: 10, Kind: model.SourceKind}
	lo := &model.Tuple{JoinAttr: 2, Kind: model.SourceKind}

	if err := d.Submit(OpCmpJoinAttr, [4]int64{}, hi, lo); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if hi.JoinAttr != 2 || lo.JoinAttr != 10 {
		t.Errorf("after compare-swap: hi.JoinAttr=%d lo.JoinAttr=%d, want 2, 10", hi.JoinAttr, lo.JoinAttr)
	}
}

func TestPadLastComparatorOrdersNonPadFirst(t *testing.T) {
	d := New(nil, DefaultMaxBatch)
	pad := &model.Tuple{OrigIndex: 1, Kind: model.DistPadKind}
	real := &model.Tuple{OrigIndex: 2, Kind: model.TargetKind}

	if err := d.Submit(OpCmpPadLast, [4]int64{}, pad, real); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pad.Kind != model.TargetKind || real.Kind != model.DistPadKind {
		t.Errorf("expected non-pad to move first: pad.Kind=%v real.Kind=%v", pad.Kind, real.Kind)
	}
}
