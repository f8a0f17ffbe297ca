package tuplecrypto

import (
	"testing"

	"github.com/rawblock/oblivious-band-join/pkg/model"
)

func freshCryptor(t *testing.T) *AESCryptor {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return NewAESCryptor(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := freshCryptor(t)

	orig := model.Tuple{Kind: model.TargetKind, JoinAttr: 42, OrigIndex: 3, LocalMult: 7}
	orig.Attributes[0] = 99

	tup := orig
	if status := c.Encrypt(&tup); status != OK {
		t.Fatalf("Encrypt status = %v, want OK", status)
	}
	if !tup.IsEncrypted {
		t.Fatalf("expected IsEncrypted after Encrypt")
	}
	if tup.JoinAttr == orig.JoinAttr {
		t.Errorf("JoinAttr unchanged after encryption: %d", tup.JoinAttr)
	}

	if status := c.Decrypt(&tup); status != OK {
		t.Fatalf("Decrypt status = %v, want OK", status)
	}
	if tup != orig {
		t.Errorf("round trip mismatch: got %+v, want %+v", tup, orig)
	}
}

func TestEncryptTwiceFails(t *testing.T) {
	c := freshCryptor(t)
	tup := model.Tuple{JoinAttr: 1}

	if status := c.Encrypt(&tup); status != OK {
		t.Fatalf("first Encrypt status = %v, want OK", status)
	}
	if status := c.Encrypt(&tup); status != AlreadyEncrypted {
		t.Errorf("second Encrypt status = %v, want AlreadyEncrypted", status)
	}
}

func TestDecryptUnencryptedFails(t *testing.T) {
	c := freshCryptor(t)
	tup := model.Tuple{JoinAttr: 1}

	if status := c.Decrypt(&tup); status != NotEncrypted {
		t.Errorf("Decrypt status = %v, want NotEncrypted", status)
	}
}

func TestDecryptNilIsInvalidParam(t *testing.T) {
	c := freshCryptor(t)
	if status := c.Decrypt(nil); status != InvalidParam {
		t.Errorf("Decrypt(nil) status = %v, want InvalidParam", status)
	}
}
