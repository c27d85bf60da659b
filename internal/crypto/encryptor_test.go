package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewEncryptor_InvalidKeys(t *testing.T) {
	if _, err := NewEncryptor("not-valid-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	if _, err := NewEncryptor(short); err == nil {
		t.Fatal("expected error for wrong key length")
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	enc, err := NewEncryptor(generateTestKey(t))
	if err != nil {
		t.Fatal(err)
	}

	record := `{"authn_token":"<authnToken>abc</authnToken>"}`
	sealed, err := enc.Encrypt(record)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected sealed prefix, got %q", sealed)
	}
	if strings.Contains(sealed, "authnToken") {
		t.Fatal("sealed value leaks plaintext")
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if opened != record {
		t.Fatalf("expected %q, got %q", record, opened)
	}
}

func TestEncrypt_UniqueNonce(t *testing.T) {
	enc, _ := NewEncryptor(generateTestKey(t))
	c1, _ := enc.Encrypt("same-token")
	c2, _ := enc.Encrypt("same-token")
	if c1 == c2 {
		t.Fatal("two encryptions of the same plaintext should differ")
	}
}

func TestPassphraseDerivationIsStable(t *testing.T) {
	enc1, err := NewEncryptorFromPassphrase("correct horse", "host-a")
	if err != nil {
		t.Fatal(err)
	}
	enc2, _ := NewEncryptorFromPassphrase("correct horse", "host-a")
	other, _ := NewEncryptorFromPassphrase("correct horse", "host-b")

	sealed, _ := enc1.Encrypt("secret")
	if got, err := enc2.Decrypt(sealed); err != nil || got != "secret" {
		t.Fatalf("same passphrase and salt should open the value, got %q, %v", got, err)
	}
	if _, err := other.Decrypt(sealed); err == nil {
		t.Fatal("different salt should not open the value")
	}
	if _, err := NewEncryptorFromPassphrase("", "x"); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}

func TestDecrypt_Rejects(t *testing.T) {
	enc, _ := NewEncryptor(generateTestKey(t))
	sealed, _ := enc.Encrypt("secret")

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	raw[len(raw)-1] ^= 0xff
	tampered := sealedPrefix + base64.StdEncoding.EncodeToString(raw)

	for name, v := range map[string]string{
		"empty":     "",
		"plaintext": `{"authn_token":"x"}`,
		"tampered":  tampered,
		"short":     sealedPrefix + "AAAA",
	} {
		if _, err := enc.Decrypt(v); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
