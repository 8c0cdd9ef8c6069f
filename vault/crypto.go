package vault

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/sagarc03/diskcli/keystore"
)

const nonceSize = 24

// seal encrypts plaintext with secretbox. The random nonce is prepended to
// the ciphertext.
func seal(plaintext []byte, key *[keystore.KeySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// open reverses seal. Any authentication failure is reported as
// ErrCorruptToken.
func open(data []byte, key *[keystore.KeySize]byte) ([]byte, error) {
	if len(data) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorruptToken, len(data))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	plaintext, ok := secretbox.Open(nil, data[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrCorruptToken
	}
	return plaintext, nil
}
