package dispatch

import (
	"github.com/rawblock/oblivious-band-join/internal/joinerr"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// DefaultMaxBatch mirrors ecall_batch_collector.h's default collector
// capacity: large enough to amortize a crossing across a whole phase's
// pass over a modestly sized table, small enough to keep peak buffered
// state bounded.
const DefaultMaxBatch = 4096

// Stats counts dispatcher activity for internal/engine's phase metrics.
type Stats struct {
	OperationsSubmitted int
	Flushes             int
	MaxBatchSize        int
	TuplesTouched       int64
}

// Dispatcher batches Operations and the tuples they reference, then
// executes an entire batch in one simulated trusted-boundary crossing:
// every touched tuple is decrypted (if it entered encrypted), every queued
// Operation runs in submission order, and every tuple that entered
// encrypted is re-encrypted before the batch is released. Tuple dedup is
// by pointer identity, matching ecall_batch_collector.h's entry_map so a
// tuple referenced by ten queued ops is only crossed once.
type Dispatcher struct {
	cryptor  tuplecrypto.Cryptor
	maxBatch int
	backend  Backend

	ops        []Operation
	tuples     []*model.Tuple
	tupleIndex map[*model.Tuple]int

	stats Stats
}

// New builds a Dispatcher with DefaultBackend. cryptor may be nil,
// meaning every tuple it ever sees is expected to already be plaintext
// (ALL_PLAINTEXT mode); Flush returns an EncryptionStateError if it
// finds an encrypted tuple with a nil cryptor.
func New(cryptor tuplecrypto.Cryptor, maxBatch int) *Dispatcher {
	return NewWithBackend(cryptor, maxBatch, DefaultBackend)
}

// NewWithBackend is New plus an explicit Backend, for a caller (a CLI
// debug flag, a test) that wants every applied operation to go through
// something other than the plain CPU switch, e.g. a TracingBackend.
func NewWithBackend(cryptor tuplecrypto.Cryptor, maxBatch int, backend Backend) *Dispatcher {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if backend == nil {
		backend = DefaultBackend
	}
	return &Dispatcher{
		cryptor:    cryptor,
		maxBatch:   maxBatch,
		backend:    backend,
		tupleIndex: make(map[*model.Tuple]int),
	}
}

func (d *Dispatcher) Stats() Stats { return d.stats }

func (d *Dispatcher) register(t *model.Tuple) int {
	if t == nil {
		return NoOperand
	}
	if idx, ok := d.tupleIndex[t]; ok {
		return idx
	}
	idx := len(d.tuples)
	d.tuples = append(d.tuples, t)
	d.tupleIndex[t] = idx
	return idx
}

// Submit queues one Operation against one or two tuples. t2 may be nil for
// single-operand opcodes. Submit auto-flushes once the batch reaches
// maxBatch queued operations.
func (d *Dispatcher) Submit(opcode Opcode, params [4]int64, t1, t2 *model.Tuple) error {
	idx1 := d.register(t1)
	idx2 := d.register(t2)
	d.ops = append(d.ops, Operation{Opcode: opcode, Idx1: idx1, Idx2: idx2, Params: params})
	d.stats.OperationsSubmitted++
	if len(d.ops) >= d.maxBatch {
		return d.Flush()
	}
	return nil
}

// ObtainOutputSize reads a tuple's dst_idx+final_mult, the reduction the
// spec's OBTAIN_OUTPUT_SIZE opcode names. It flushes first so the read
// observes every queued mutation.
func (d *Dispatcher) ObtainOutputSize(t *model.Tuple) (int64, error) {
	if err := d.Flush(); err != nil {
		return 0, err
	}
	return t.DstIdx + t.FinalMult, nil
}

// Flush performs one simulated trusted-boundary crossing: decrypt every
// touched tuple that entered this batch encrypted, apply every queued
// Operation in submission order, then re-encrypt whatever entered
// encrypted. A no-op when nothing is queued.
func (d *Dispatcher) Flush() error {
	if len(d.ops) == 0 {
		return nil
	}

	wasEncrypted := make([]bool, len(d.tuples))
	for i, t := range d.tuples {
		wasEncrypted[i] = t.IsEncrypted
		if !t.IsEncrypted {
			continue
		}
		if d.cryptor == nil {
			return joinerr.New(joinerr.EncryptionState, "dispatch", "", "tuple is encrypted but dispatcher has no cryptor")
		}
		if status := d.cryptor.Decrypt(t); status != tuplecrypto.OK {
			return joinerr.New(joinerr.Crypto, "dispatch", "", "decrypt before flush: status=%v", status)
		}
	}

	for _, op := range d.ops {
		t1 := d.tuples[op.Idx1]
		var t2 *model.Tuple
		if op.Idx2 != NoOperand {
			t2 = d.tuples[op.Idx2]
		}
		d.backend.Apply(op, t1, t2)
	}

	for i, t := range d.tuples {
		if !wasEncrypted[i] {
			continue
		}
		if status := d.cryptor.Encrypt(t); status != tuplecrypto.OK {
			return joinerr.New(joinerr.Crypto, "dispatch", "", "re-encrypt after flush: status=%v", status)
		}
	}

	if n := len(d.ops); n > d.stats.MaxBatchSize {
		d.stats.MaxBatchSize = n
	}
	d.stats.Flushes++
	d.stats.TuplesTouched += int64(len(d.tuples))

	d.ops = d.ops[:0]
	d.tuples = d.tuples[:0]
	for k := range d.tupleIndex {
		delete(d.tupleIndex, k)
	}
	return nil
}
