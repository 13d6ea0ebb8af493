// Package cryptox implements the payload sealing used by ciphertalk clients.
//
// The server stores message payloads as opaque base64 blobs and never calls
// Open on them; this package exists so that client code and the test suites
// can produce and verify realistic payloads. The algorithm label stored with
// each message selects the AEAD construction on the client side.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm labels carried in the message `algorithm` column. The set is
// open-ended on the server; these are the two the reference clients use.
const (
	AlgorithmAES      = "AES"
	AlgorithmChaCha20 = "ChaCha20"
)

func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case AlgorithmAES:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case AlgorithmChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", algorithm)
	}
}

// Seal encrypts plaintext with the named algorithm and a fresh random nonce.
// The ciphertext and nonce are returned base64-encoded, matching the wire
// format of message payloads.
func Seal(algorithm string, key, plaintext []byte) (blob, nonce string, err error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return "", "", err
	}

	rawNonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(rawNonce); err != nil {
		return "", "", err
	}

	ciphertext := aead.Seal(nil, rawNonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(rawNonce), nil
}

// Open decrypts a base64 blob produced by Seal.
func Open(algorithm string, key []byte, blob, nonce string) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("invalid blob encoding: %w", err)
	}
	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce encoding: %w", err)
	}

	return aead.Open(nil, rawNonce, ciphertext, nil)
}
