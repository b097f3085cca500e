// Package secret encrypts stored connection passwords with a key bound to
// the current machine and OS user.
//
// Blob format: base64(nonce[12] || ciphertext || tag[16]), standard alphabet.
// A blob written on one host or by one user cannot be opened by another.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/user"
	"unicode/utf8"
)

const (
	nonceSize = 12
	tagSize   = 16

	// MinBlobSize is the decoded length of an encrypted empty string.
	MinBlobSize = nonceSize + tagSize
)

var (
	// ErrInvalidData indicates a blob that is not base64 or too short to
	// hold a nonce and tag, or plaintext that is not UTF-8.
	ErrInvalidData = errors.New("invalid encrypted data")

	// ErrAuthentication indicates the blob was tampered with or was sealed
	// under a different key.
	ErrAuthentication = errors.New("message authentication failed")
)

// Cipher seals and opens password blobs.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-256-GCM key from SHA-256(material).
func NewCipher(material string) (*Cipher, error) {
	key := sha256.Sum256([]byte(material))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// ForMachine returns a Cipher keyed to this host and OS user.
func ForMachine() (*Cipher, error) {
	return NewCipher(MachineMaterial())
}

// MachineMaterial returns "sqlplan:<hostname>:<username>". Lookups that
// fail contribute an empty component rather than an error.
func MachineMaterial() string {
	host, _ := os.Hostname()
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	} else {
		name = os.Getenv("USER")
	}
	return "sqlplan:" + host + ":" + name
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+tagSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if len(data) < MinBlobSize {
		return "", ErrInvalidData
	}
	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrAuthentication
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidData
	}
	return string(plain), nil
}
