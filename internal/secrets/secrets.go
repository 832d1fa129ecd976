// Package secrets encrypts values stored at rest, such as bank access tokens.
package secrets

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
)

// ErrDecrypt is returned when a token cannot be verified with any known key.
var ErrDecrypt = errors.New("failed to decrypt value")

// Box encrypts and decrypts with fernet. The first key encrypts; every key
// is tried on decryption so old keys can be rotated out.
type Box struct {
	keys []*fernet.Key
}

// NewBox parses one or more base64 fernet keys.
// Returns apperrors.ErrEncryptionNotConfigured when no key is given.
func NewBox(encodedKeys ...string) (*Box, error) {
	var keys []*fernet.Key
	for _, encoded := range encodedKeys {
		if encoded == "" {
			continue
		}
		k, err := fernet.DecodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, apperrors.ErrEncryptionNotConfigured
	}
	return &Box{keys: keys}, nil
}

// GenerateKey returns a new random key in its base64 form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return k.Encode(), nil
}

// Encrypt returns the fernet token for plaintext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), b.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a token produced by Encrypt. A negative ttl
// disables the age check, so stored tokens never expire.
func (b *Box) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), -1, b.keys)
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}
