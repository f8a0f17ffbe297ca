package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
)

// loadOrCreateKey reads a hex-encoded 32-byte key from path, generating and
// persisting a fresh one if the file doesn't exist yet. The original
// tools/encrypt_tables.cpp never surfaces a key at all — it is sealed
// inside the SGX enclave and never crosses into untrusted code. Nothing in
// this codebase has an enclave to seal it in, so the key has to live
// somewhere a caller can hold onto it across an encrypt/decrypt pair; a
// plain hex file is the least surprising stand-in.
func loadOrCreateKey(path string) ([32]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return decodeKey(raw)
	}
	if !os.IsNotExist(err) {
		return [32]byte{}, fmt.Errorf("read key file %s: %w", path, err)
	}

	key, err := tuplecrypto.GenerateKey()
	if err != nil {
		return key, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])), 0600); err != nil {
		return key, fmt.Errorf("write key file %s: %w", path, err)
	}
	fmt.Printf("Generated new key and saved to %s\n", path)
	return key, nil
}

func decodeKey(raw []byte) ([32]byte, error) {
	var key [32]byte
	decoded, err := hex.DecodeString(string(trimNewline(raw)))
	if err != nil {
		return key, fmt.Errorf("decode key: %w", err)
	}
	if len(decoded) != len(key) {
		return key, fmt.Errorf("key file has %d bytes, want %d", len(decoded), len(key))
	}
	copy(key[:], decoded)
	return key, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
