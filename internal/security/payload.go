package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrPayloadInvalid is returned when an opaque payload cannot be opened with
// the given key.
var ErrPayloadInvalid = errors.New("payload invalid or wrong key")

func payloadAEAD(secret string) ([]byte, error) {
	key := sha256.Sum256([]byte(secret))
	return key[:], nil
}

// EncryptJSON seals an arbitrary JSON-marshalable payload into a single
// portable string. The same secret decrypts it; payloads round-trip exactly.
func EncryptJSON(v any, secret string) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	key, _ := payloadAEAD(secret)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptJSON opens a string produced by EncryptJSON and unmarshals the
// payload into out.
func DecryptJSON(opaque, secret string, out any) error {
	raw, err := base64.RawURLEncoding.DecodeString(opaque)
	if err != nil {
		return ErrPayloadInvalid
	}

	key, _ := payloadAEAD(secret)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return ErrPayloadInvalid
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ErrPayloadInvalid
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
