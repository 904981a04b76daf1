package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// encMagic identifies encrypted backup files.
const encMagic = "SOOTHENC"

// Argon2id parameters (RFC 9106 recommendations).
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32 // AES-256
	saltLen      = 32
)

// deriveKey derives an AES-256 key from a password with Argon2id.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// EncryptFile encrypts src into dst with AES-256-GCM. The output layout
// is magic || salt || nonce || ciphertext.
func EncryptFile(src, dst, password string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read plaintext: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(encMagic)
	out.Write(salt)
	out.Write(nonce)
	out.Write(gcm.Seal(nil, nonce, plaintext, nil))

	if err := os.WriteFile(dst, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write ciphertext: %w", err)
	}
	return nil
}

// DecryptFile reverses EncryptFile.
func DecryptFile(src, dst, password string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read ciphertext: %w", err)
	}

	if len(data) < len(encMagic)+saltLen || string(data[:len(encMagic)]) != encMagic {
		return fmt.Errorf("not an encrypted backup file")
	}
	data = data[len(encMagic):]

	salt := data[:saltLen]
	data = data[saltLen:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return fmt.Errorf("encrypted backup truncated")
	}
	nonce := data[:gcm.NonceSize()]
	ciphertext := data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	if err := os.WriteFile(dst, plaintext, 0o600); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	return nil
}
