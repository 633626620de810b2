// Package crypto provides encryption at rest for account credentials: the
// password, shared secret and identity secret never sit on disk in the clear.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-credentials JSON schema version.
	currentVersion = 1
)

// Credentials is the secret material for one trading account.
type Credentials struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	SharedSecret   string `json:"shared_secret"`
	IdentitySecret string `json:"identity_secret"`
	APIKey         string `json:"api_key,omitempty"`
}

// encryptedBlobJSON is the on-disk format for encrypted credentials.
type encryptedBlobJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// VaultConfig carries the information LoadCredentials needs. Populate the
// fields from environment variables or a config file.
type VaultConfig struct {
	// PlainPassword and PlainUsername, when both set, bypass the vault file
	// entirely. Intended for development only.
	PlainUsername string
	PlainPassword string

	// SharedSecret and IdentitySecret accompany the plain-credential path.
	SharedSecret   string
	IdentitySecret string

	// VaultPath is the path to a JSON file produced by EncryptCredentials.
	VaultPath string

	// VaultPassword decrypts the file at VaultPath.
	VaultPassword string
}

// EncryptCredentials encrypts account credentials with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated
// encryption. It returns the JSON blob suitable for writing to disk.
func EncryptCredentials(creds Credentials, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if creds.Username == "" {
		return nil, errors.New("crypto: username must not be empty")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("crypto: encoding credentials: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := encryptedBlobJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// DecryptCredentials decrypts a JSON blob produced by EncryptCredentials.
func DecryptCredentials(encryptedJSON []byte, password string) (Credentials, error) {
	if password == "" {
		return Credentials{}, errors.New("crypto: password must not be empty")
	}

	var stored encryptedBlobJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return Credentials{}, fmt.Errorf("crypto: parsing encrypted blob: %w", err)
	}
	if stored.Version != currentVersion {
		return Credentials{}, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, fmt.Errorf("crypto: decoding credentials: %w", err)
	}
	return creds, nil
}

// LoadCredentials resolves account credentials from the provided
// configuration.
//
// Resolution order:
//  1. If PlainUsername and PlainPassword are both set, return them directly.
//  2. If VaultPath is set, read the file and decrypt with VaultPassword.
//  3. Otherwise, return an error.
func LoadCredentials(cfg VaultConfig) (Credentials, error) {
	if cfg.PlainUsername != "" && cfg.PlainPassword != "" {
		return Credentials{
			Username:       cfg.PlainUsername,
			Password:       cfg.PlainPassword,
			SharedSecret:   cfg.SharedSecret,
			IdentitySecret: cfg.IdentitySecret,
		}, nil
	}

	if cfg.VaultPath != "" {
		data, err := os.ReadFile(cfg.VaultPath)
		if err != nil {
			return Credentials{}, fmt.Errorf("crypto: reading vault file: %w", err)
		}
		return DecryptCredentials(data, cfg.VaultPassword)
	}

	return Credentials{}, errors.New("crypto: no credential source configured (set plain credentials or a vault path)")
}
