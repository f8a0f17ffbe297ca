// Package tuplecrypto provides the one real implementation of the
// TupleCryptor interface spec.md §6.1 treats as an opaque, externally
// supplied collaborator: a trusted transform that encrypts/decrypts a
// single tuple under a key conceptually held inside a TEE.
//
// The core engine never constructs field-level semantics out of this
// package; it only calls Encrypt/Decrypt and checks the returned Status.
// This implementation exists so the engine is runnable end to end, in
// the same spirit as original_source/app/sgx_compat's dummy enclave
// shims — a stand-in for a boundary the core treats as opaque, not a
// hardened confidentiality mechanism.
package tuplecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/rawblock/oblivious-band-join/pkg/model"
)

// Status mirrors the four outcomes spec.md §6.1 names.
type Status int

const (
	OK Status = iota
	AlreadyEncrypted
	NotEncrypted
	InvalidParam
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case AlreadyEncrypted:
		return "ALREADY_ENCRYPTED"
	case NotEncrypted:
		return "NOT_ENCRYPTED"
	case InvalidParam:
		return "INVALID_PARAM"
	default:
		return "UNKNOWN"
	}
}

// Cryptor is the interface the dispatcher calls into at each trusted
// boundary crossing. Encrypt/Decrypt transform every field of a tuple
// except IsEncrypted and Nonce, per spec.md §6.1.
type Cryptor interface {
	Encrypt(t *model.Tuple) Status
	Decrypt(t *model.Tuple) Status
}

// fieldBytes is the fixed serialized size of everything encrypted: two
// int32 metadata fields, thirteen int64 scratch/multiplicity fields, and
// MaxAttributes int64 columns. It never depends on tuple content, which
// is what lets the cipher run over a constant-size buffer regardless of
// schema.
const fieldBytes = 4 + 4 + 13*8 + model.MaxAttributes*8

// AESCryptor implements Cryptor with AES-CTR under a 32-byte key, the
// same primitive and key size original_source/impl/src/common/constants.h
// names (AES_KEY_SIZE 32, "AES-CTR mode" per impl/src/app/types.h).
type AESCryptor struct {
	key [32]byte
}

// NewAESCryptor builds a cryptor around a caller-supplied key. In a real
// deployment the key would be provisioned into the TEE out of band; here
// it is just a 32-byte buffer the caller owns.
func NewAESCryptor(key [32]byte) *AESCryptor {
	return &AESCryptor{key: key}
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("tuplecrypto: generate key: %w", err)
	}
	return key, nil
}

func (c *AESCryptor) Encrypt(t *model.Tuple) Status {
	if t == nil {
		return InvalidParam
	}
	if t.IsEncrypted {
		return AlreadyEncrypted
	}
	nonce, err := randomNonce()
	if err != nil {
		return InvalidParam
	}
	if err := c.transform(t, nonce); err != nil {
		return InvalidParam
	}
	t.Nonce = nonce
	t.IsEncrypted = true
	return OK
}

func (c *AESCryptor) Decrypt(t *model.Tuple) Status {
	if t == nil {
		return InvalidParam
	}
	if !t.IsEncrypted {
		return NotEncrypted
	}
	if err := c.transform(t, t.Nonce); err != nil {
		return InvalidParam
	}
	t.Nonce = 0
	t.IsEncrypted = false
	return OK
}

// transform runs the CTR keystream for the given nonce over every field
// except IsEncrypted/Nonce. CTR mode is an involution given the same
// keystream, so the same method implements both directions.
func (c *AESCryptor) transform(t *model.Tuple, nonce uint64) error {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return err
	}

	var iv [aes.BlockSize]byte
	binary.BigEndian.PutUint64(iv[:8], nonce)
	stream := cipher.NewCTR(block, iv[:])

	buf := make([]byte, fieldBytes)
	encodeFields(t, buf)
	stream.XORKeyStream(buf, buf)
	decodeFields(t, buf)
	return nil
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func encodeFields(t *model.Tuple, buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(t.Kind))
	binary.BigEndian.PutUint32(buf[4:8], uint32(t.Openness))
	off := 8
	for _, v := range []int64{
		t.JoinAttr, t.OrigIndex, t.LocalMult, t.FinalMult, t.ForeignSum,
		t.LocalCumsum, t.LocalInterval, t.ForeignInterval, t.LocalWeight,
		t.CopyIndex, t.AlignmentKey, t.DstIdx, t.Index,
	} {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(v))
		off += 8
	}
	for i := 0; i < model.MaxAttributes; i++ {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(t.Attributes[i]))
		off += 8
	}
}

func decodeFields(t *model.Tuple, buf []byte) {
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
	for i := 0; i < model.MaxAttributes; i++ {
		t.Attributes[i] = int64(binary.BigEndian.Uint64(buf[off : off+8]))
		off += 8
	}
}
