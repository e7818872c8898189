package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const saltSize = 16

// GenerateHMAC returns the hex HMAC-SHA256 of the joined parts
func GenerateHMAC(secret string, parts ...string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a signature produced by GenerateHMAC in constant time
func VerifyHMAC(signature, secret string, parts ...string) bool {
	expected, err := hex.DecodeString(GenerateHMAC(secret, parts...))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// DeriveKey stretches a passphrase into a 32-byte AES key
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// SealPrivateKey encrypts a hex private key under a passphrase. The output is
// hex(salt || nonce || ciphertext).
func SealPrivateKey(privateKeyHex, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	sealed, err := Encrypt(strings.TrimPrefix(privateKeyHex, "0x"), key)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + sealed, nil
}

// OpenPrivateKey reverses SealPrivateKey
func OpenPrivateKey(sealed, passphrase string) (string, error) {
	if len(sealed) <= saltSize*2 {
		return "", fmt.Errorf("sealed key too short")
	}
	salt, err := hex.DecodeString(sealed[:saltSize*2])
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	return Decrypt(sealed[saltSize*2:], key)
}

// Encrypt seals a string with AES-GCM. The output is hex(nonce || ciphertext).
func Encrypt(data string, key []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("input data is empty")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(gcm.Seal(nonce, nonce, []byte(data), nil)), nil
}

// Decrypt opens a string produced by Encrypt. A wrong key or any modified
// byte fails authentication.
func Decrypt(encryptedData string, key []byte) (string, error) {
	if len(encryptedData) == 0 {
		return "", fmt.Errorf("encrypted data is empty")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	data, err := hex.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) <= gcm.NonceSize()+gcm.Overhead() {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
