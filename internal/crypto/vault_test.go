package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func testCreds() Credentials {
	return Credentials{
		Username:       "trader01",
		Password:       "hunter2",
		SharedSecret:   "REJhdSs3dmRWaVdUc3BIcUZNNG5PSg==",
		IdentitySecret: "aWRlbnRpdHlzZWNyZXQwMDAwMDAwMDAw",
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptCredentials(testCreds(), "vault-pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptCredentials(blob, "vault-pass")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testCreds() {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptCredentials(testCreds(), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptCredentials(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure with the wrong password")
	}
}

func TestEncryptRejectsEmptyPassword(t *testing.T) {
	if _, err := EncryptCredentials(testCreds(), ""); err == nil {
		t.Fatal("expected an error for an empty password")
	}
}

func TestLoadCredentialsPlainTakesPrecedence(t *testing.T) {
	got, err := LoadCredentials(VaultConfig{
		PlainUsername: "dev",
		PlainPassword: "devpass",
		SharedSecret:  "c2VjcmV0",
		VaultPath:     "/nonexistent/vault.json",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Username != "dev" || got.Password != "devpass" || got.SharedSecret != "c2VjcmV0" {
		t.Fatalf("plain credentials not honoured: %+v", got)
	}
}

func TestLoadCredentialsFromVaultFile(t *testing.T) {
	blob, err := EncryptCredentials(testCreds(), "vault-pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vault.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write vault: %v", err)
	}

	got, err := LoadCredentials(VaultConfig{VaultPath: path, VaultPassword: "vault-pass"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != testCreds() {
		t.Fatalf("vault load mismatch: %+v", got)
	}
}

func TestLoadCredentialsNoSource(t *testing.T) {
	if _, err := LoadCredentials(VaultConfig{}); err == nil {
		t.Fatal("expected an error when no source is configured")
	}
}
