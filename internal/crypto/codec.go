// Package crypto encrypts the sensitive fields of the settings record.
//
// Field values are sealed with AES-256-GCM under a key derived from the
// record's signing secret and serialized as "<nonceHex>:<ciphertextHex>".
// The signing secret is stored alongside the ciphertext, so this protects
// against casual disclosure of the settings file, not against an attacker
// who can read it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/cosconsole/internal/model"
)

const (
	keySalt   = "cos-config-salt"
	keySize   = 32
	nonceSize = 12

	// scrypt cost parameters.
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1

	maxCachedKeys = 8

	// Earlier releases sealed fields with AES-CBC and a 16-byte IV.
	cbcIVSize    = 16
	cbcBlockSize = 16
)

var (
	// ErrDecryption matches every *DecryptionError.
	ErrDecryption = errors.New("crypto: decryption failed")

	// ErrEmptySecret is returned when encrypting without a signing secret.
	ErrEmptySecret = errors.New("crypto: signing secret is empty")
)

// DecryptionError reports a composite value that could not be decrypted.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto: decrypt: %s: %v", e.Reason, e.Err)
	}
	return "crypto: decrypt: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// DeriveKey derives the 32-byte field key for secret with scrypt and a fixed
// application salt.
func DeriveKey(secret string) []byte {
	key, err := scrypt.Key([]byte(secret), []byte(keySalt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		panic("crypto: invalid scrypt parameters: " + err.Error())
	}
	return key
}

// LooksEncrypted reports whether value has the shape of a composite
// ciphertext: two non-empty colon-separated parts, the first one a
// hex-encoded nonce.
func LooksEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	return len(parts) == 2 &&
		len(parts[0]) == nonceSize*2 &&
		parts[1] != ""
}

// LooksCBCEncrypted reports whether value has the shape written by the
// AES-CBC format of earlier releases: a 32-hex IV and whole cipher blocks.
// Such values cannot be decrypted and are otherwise taken as plaintext.
func LooksCBCEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != cbcIVSize*2 {
		return false
	}
	n := len(parts[1])
	if n == 0 || n%(cbcBlockSize*2) != 0 {
		return false
	}
	_, err := hex.DecodeString(parts[0] + parts[1])
	return err == nil
}

// Codec encrypts and decrypts field values. Derived keys are memoised per
// secret so repeated settings reads pay the scrypt cost once.
type Codec struct {
	mu   sync.Mutex
	aead map[[sha256.Size]byte]cipher.AEAD
}

// NewCodec returns a Codec with an empty key cache.
func NewCodec() *Codec {
	return &Codec{aead: make(map[[sha256.Size]byte]cipher.AEAD)}
}

func (c *Codec) cipherFor(secret string) (cipher.AEAD, error) {
	id := sha256.Sum256([]byte(secret))

	c.mu.Lock()
	defer c.mu.Unlock()

	if gcm, ok := c.aead[id]; ok {
		return gcm, nil
	}

	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// The secret only changes on an operator reset; keep the cache small.
	if len(c.aead) >= maxCachedKeys {
		clear(c.aead)
	}
	c.aead[id] = gcm
	return gcm, nil
}

// EncryptField seals plaintext under a fresh random nonce. An empty plaintext
// encrypts to an empty string.
func (c *Codec) EncryptField(plaintext, secret string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if secret == "" {
		return "", ErrEmptySecret
	}

	gcm, err := c.cipherFor(secret)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptField opens a composite produced by EncryptField. An empty composite
// decrypts to an empty string. Any malformed input, wrong secret or tampered
// ciphertext yields a *DecryptionError.
func (c *Codec) DecryptField(composite, secret string) (string, error) {
	if composite == "" {
		return "", nil
	}

	parts := strings.Split(composite, ":")
	if len(parts) != 2 {
		return "", &DecryptionError{Reason: fmt.Sprintf("expected 1 delimiter, found %d", len(parts)-1)}
	}
	if len(parts[0]) != nonceSize*2 {
		return "", &DecryptionError{Reason: fmt.Sprintf("nonce must be %d hex characters, got %d", nonceSize*2, len(parts[0]))}
	}
	nonce, err := decodeHex(parts[0])
	if err != nil {
		return "", &DecryptionError{Reason: "malformed nonce", Err: err}
	}
	sealed, err := decodeHex(parts[1])
	if err != nil {
		return "", &DecryptionError{Reason: "malformed ciphertext", Err: err}
	}

	gcm, err := c.cipherFor(secret)
	if err != nil {
		return "", &DecryptionError{Reason: "cipher setup", Err: err}
	}
	if len(sealed) < gcm.Overhead() {
		return "", &DecryptionError{Reason: "ciphertext too short"}
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plaintext), nil
}

// EncryptSensitiveFields returns a copy of s with the bucket credential pair
// encrypted under secret.
func (c *Codec) EncryptSensitiveFields(s model.Settings, secret string) (model.Settings, error) {
	id, err := c.EncryptField(s.COS.SecretID, secret)
	if err != nil {
		return s, fmt.Errorf("cosConfig.secretId: %w", err)
	}
	key, err := c.EncryptField(s.COS.SecretKey, secret)
	if err != nil {
		return s, fmt.Errorf("cosConfig.secretKey: %w", err)
	}
	s.COS.SecretID = id
	s.COS.SecretKey = key
	return s, nil
}

// DecryptSensitiveFields returns a copy of s with the bucket credential pair
// decrypted. Values that do not look encrypted pass through untouched. A
// value that fails to decrypt is kept as stored and its error is reported.
func (c *Codec) DecryptSensitiveFields(s model.Settings, secret string) (model.Settings, error) {
	var errs []error

	s.COS.SecretID, errs = c.decryptInto(s.COS.SecretID, secret, "cosConfig.secretId", errs)
	s.COS.SecretKey, errs = c.decryptInto(s.COS.SecretKey, secret, "cosConfig.secretKey", errs)

	return s, errors.Join(errs...)
}

func (c *Codec) decryptInto(value, secret, field string, errs []error) (string, []error) {
	if !LooksEncrypted(value) {
		if LooksCBCEncrypted(value) {
			slog.Warn("crypto: field holds an AES-CBC value from an earlier release and is read as plaintext; re-enter it",
				"field", field)
		}
		return value, errs
	}
	plain, err := c.DecryptField(value, secret)
	if err != nil {
		return value, append(errs, fmt.Errorf("%s: %w", field, err))
	}
	return plain, errs
}

// decodeHex accepts only the canonical lowercase form written by EncryptField.
func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(b) != s {
		return nil, errors.New("non-canonical hex encoding")
	}
	return b, nil
}
