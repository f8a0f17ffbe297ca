package dispatch

import (
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// ScatterExpand places every row of rows at its own dst_idx within a fresh
// n-length buffer, leaving every other slot a zeroed DIST_PAD placeholder.
// It stands in for spec.md §4.6's distribute_pass network (see DESIGN.md):
// routing a tuple by the value of its own dst_idx field is inherently
// data-dependent indexing, something no (opcode, fixed idx1, fixed idx2)
// Operation can express, so this one step runs as its own simulated
// trusted-boundary crossing — decrypt every row, compute plaintext
// placement, re-encrypt the output — the same shape Flush already gives
// every ordinary batch. Everything else in DistributeExpand (seeding
// dst_idx, marking zero-mult rows, the final forward-fill copy) stays on
// the ordinary map/linear_pass path because none of those steps choose
// their operand by a data value.
func (d *Dispatcher) ScatterExpand(rows []model.Tuple, n int64) ([]model.Tuple, error) {
	if err := d.Flush(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, joinerr.New(joinerr.SizeMismatch, "distribute_expand", "", "negative output size %d", n)
	}

	plain := make([]model.Tuple, len(rows))
	copy(plain, rows)
	wasEncrypted := len(plain) > 0 && plain[0].IsEncrypted
	if wasEncrypted {
		if d.cryptor == nil {
			return nil, joinerr.New(joinerr.EncryptionState, "distribute_expand", "", "tuples are encrypted but dispatcher has no cryptor")
		}
		for i := range plain {
			if status := d.cryptor.Decrypt(&plain[i]); status != tuplecrypto.OK {
				return nil, joinerr.New(joinerr.Crypto, "distribute_expand", "", "decrypt before scatter: status=%v", status)
			}
		}
	}

	out := make([]model.Tuple, n)
	for i := range out {
		out[i] = model.Tuple{Kind: model.DistPadKind}
	}
	for i := range plain {
		t := plain[i]
		if t.FinalMult <= 0 {
			continue
		}
		if t.DstIdx < 0 || t.DstIdx+t.FinalMult > n {
			return nil, joinerr.New(joinerr.SizeMismatch, "distribute_expand", "", "dst_idx=%d final_mult=%d exceeds output size %d", t.DstIdx, t.FinalMult, n)
		}
		out[t.DstIdx] = t
	}

	if wasEncrypted {
		for i := range out {
			if status := d.cryptor.Encrypt(&out[i]); status != tuplecrypto.OK {
				return nil, joinerr.New(joinerr.Crypto, "distribute_expand", "", "re-encrypt after scatter: status=%v", status)
			}
		}
	}
	return out, nil
}
