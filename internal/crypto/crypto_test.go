package crypto

import (
	"strings"
	"testing"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestRoundTrip(t *testing.T) {
	enc, err := EncryptString(key, "consumer-secret-value")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := DecryptString(key, enc)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "consumer-secret-value" {
		t.Errorf("got %q", plain)
	}
}

func TestNonceVariesPerSeal(t *testing.T) {
	a, _ := EncryptString(key, "same")
	b, _ := EncryptString(key, "same")
	if a == b {
		t.Error("two seals of the same plaintext must differ")
	}
}

func TestWrongKeyFails(t *testing.T) {
	enc, _ := EncryptString(key, "secret")
	other := []byte("ffffffffffffffffffffffffffffffff")
	if _, err := DecryptString(other, enc); err == nil {
		t.Error("decryption with the wrong key must fail")
	}
}

func TestTamperedCiphertextFails(t *testing.T) {
	enc, _ := EncryptString(key, "secret")
	tampered := strings.Replace(enc, enc[:1], "A", 1)
	if tampered == enc {
		tampered = "B" + enc[1:]
	}
	if _, err := DecryptString(key, tampered); err == nil {
		t.Error("tampered ciphertext must fail")
	}
}

func TestShortKeyRejected(t *testing.T) {
	if _, err := EncryptString([]byte("short"), "x"); err == nil {
		t.Error("short key must be rejected")
	}
	if _, err := DecryptString([]byte("short"), "eA=="); err == nil {
		t.Error("short key must be rejected")
	}
}
