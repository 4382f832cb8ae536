package postgres

import (
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("01234567890123456789012345678901")

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	encryptor, err := NewSecretEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewSecretEncryptor: %v", err)
	}

	original := credentialSecrets{
		AccessToken:  "AQVx-access",
		RefreshToken: "AQWy-refresh",
		Details:      []byte(`{"profile_id":"abc","name":"Ada"}`),
	}
	aad := rowAAD("ws-1", "linkedin")

	blob, err := encryptor.Encrypt(original, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if len(blob) < 1+nonceSize {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	if blob[0] != secretVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], secretVersion)
	}

	var decrypted credentialSecrets
	if err := encryptor.Decrypt(blob, aad, &decrypted); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if decrypted.AccessToken != original.AccessToken {
		t.Errorf("AccessToken: got %q, want %q", decrypted.AccessToken, original.AccessToken)
	}
	if decrypted.RefreshToken != original.RefreshToken {
		t.Errorf("RefreshToken: got %q, want %q", decrypted.RefreshToken, original.RefreshToken)
	}
	if string(decrypted.Details) != string(original.Details) {
		t.Errorf("Details: got %s, want %s", decrypted.Details, original.Details)
	}
}

func TestSecretEncryptor_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"too short", 16},
		{"too long", 64},
		{"empty", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSecretEncryptor(make([]byte, tt.keySize))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestNewSecretEncryptorFromHex(t *testing.T) {
	if _, err := NewSecretEncryptorFromHex(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("valid 64-char key rejected: %v", err)
	}
	if _, err := NewSecretEncryptorFromHex("not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewSecretEncryptorFromHex(strings.Repeat("ab", 16)); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize for 32-char key, got %v", err)
	}
}

func TestSecretEncryptor_DecryptInvalidBlob(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{0x01, 0x02}},
		{"wrong version", append([]byte{0x99}, make([]byte, 100)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result string
			if err := encryptor.Decrypt(tt.blob, nil, &result); err == nil {
				t.Error("expected error for invalid blob")
			}
		})
	}
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewSecretEncryptor(testKey)
	enc2, _ := NewSecretEncryptor([]byte("10987654321098765432109876543210"))

	blob, err := enc1.Encrypt("secret data", nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var result string
	if err := enc2.Decrypt(blob, nil, &result); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretEncryptor_BlobBoundToRow(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)

	blob, err := encryptor.EncryptString("page-token", rowAAD("ws-1", "facebook"))
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	if _, err := encryptor.DecryptString(blob, rowAAD("ws-2", "facebook")); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("blob opened under another workspace: %v", err)
	}
	if _, err := encryptor.DecryptString(blob, rowAAD("ws-1", "instagram")); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("blob opened under another platform: %v", err)
	}
}

func TestSecretEncryptor_UniqueNonce(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)

	nonces := make(map[string]bool)
	for i := 0; i < 10; i++ {
		blob, err := encryptor.Encrypt("same value", nil)
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		nonce := string(blob[1 : 1+nonceSize])
		if nonces[nonce] {
			t.Errorf("duplicate nonce at index %d", i)
		}
		nonces[nonce] = true
	}
}

func TestSecretEncryptor_StringHelpers(t *testing.T) {
	encryptor, _ := NewSecretEncryptor(testKey)
	aad := []byte("oauth-state")

	blob, err := encryptor.EncryptString("request-token-secret", aad)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	decrypted, err := encryptor.DecryptString(blob, aad)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if decrypted != "request-token-secret" {
		t.Errorf("got %q, want %q", decrypted, "request-token-secret")
	}
}
