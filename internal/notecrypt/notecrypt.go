// Package notecrypt encrypts per-user records at rest.
//
// The user's identifier is the passphrase. The key is a single SHA-256 over
// identifier and a random salt, with no stretching, so anyone holding the
// identifier can decrypt that user's records. The identifier is protected
// only by session access control. Replacing the derivation changes the
// ciphertext format and needs a migration of existing rows.
package notecrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	versionPrefix = "v1:"
	saltSize      = 16
	nonceSize     = 12
	keySize       = 32

	legacyMagic    = "Salted__"
	legacySaltSize = 8
)

// Placeholder is shown in place of a body that failed to decrypt.
const Placeholder = "[This note could not be decrypted]"

// ErrEmptyKey is returned when no user identifier is supplied.
var ErrEmptyKey = errors.New("notecrypt: empty user key")

// DecryptionError reports ciphertext that cannot be opened with the given key,
// either because the key is wrong or the payload is corrupted or foreign.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string {
	if e.Cause == nil {
		return "notecrypt: decryption failed"
	}
	return "notecrypt: decryption failed: " + e.Cause.Error()
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// IsDecryptionError reports whether err is or wraps a DecryptionError.
func IsDecryptionError(err error) bool {
	var target *DecryptionError
	return errors.As(err, &target)
}

// Encrypt seals plaintext under userKey. The result is a printable string that
// carries its own salt and nonce.
func Encrypt(plaintext, userKey string) (string, error) {
	if userKey == "" {
		return "", ErrEmptyKey
	}

	buf := make([]byte, saltSize+nonceSize, saltSize+nonceSize+len(plaintext)+16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("notecrypt: read random: %w", err)
	}
	salt := buf[:saltSize]
	nonce := buf[saltSize : saltSize+nonceSize]

	aead, err := newAEAD(deriveKey(userKey, salt))
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(buf, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt, or by the passphrase format
// of the earlier deployment ("Salted__" header, AES-256-CBC).
func Decrypt(ciphertext, userKey string) (string, error) {
	if userKey == "" {
		return "", ErrEmptyKey
	}

	if encoded, ok := strings.CutPrefix(ciphertext, versionPrefix); ok {
		return decryptV1(encoded, userKey)
	}
	return decryptLegacy(ciphertext, userKey)
}

func decryptV1(encoded, userKey string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	if len(data) < saltSize+nonceSize+1 {
		return "", &DecryptionError{Cause: errors.New("ciphertext too short")}
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]

	aead, err := newAEAD(deriveKey(userKey, salt))
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, data[saltSize+nonceSize:], nil)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	return string(plaintext), nil
}

// decryptLegacy reads OpenSSL-compatible passphrase ciphertext
// (EVP_BytesToKey with MD5, one round). CBC has no integrity tag, so a wrong
// key is detected by the padding check plus a UTF-8 check on the result.
func decryptLegacy(encoded, userKey string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	if len(data) < len(legacyMagic)+legacySaltSize+aes.BlockSize || !bytes.HasPrefix(data, []byte(legacyMagic)) {
		return "", &DecryptionError{Cause: errors.New("unrecognised ciphertext format")}
	}

	salt := data[len(legacyMagic) : len(legacyMagic)+legacySaltSize]
	body := data[len(legacyMagic)+legacySaltSize:]
	if len(body)%aes.BlockSize != 0 {
		return "", &DecryptionError{Cause: errors.New("ciphertext is not a whole number of blocks")}
	}

	key, iv := evpBytesToKey([]byte(userKey), salt, keySize, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	if !utf8.Valid(plain) {
		return "", &DecryptionError{Cause: errors.New("plaintext is not valid UTF-8")}
	}
	return string(plain), nil
}

func deriveKey(userKey string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(userKey))
	h.Write(salt)
	return h.Sum(nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func evpBytesToKey(password, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var (
		out  []byte
		prev []byte
	)
	for len(out) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+ivLen]
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
