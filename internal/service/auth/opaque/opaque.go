// Package opaque hides raw user ids inside token payloads.
//
// A user id (16 bytes uuid) is encrypted as a single AES block with a key
// derived from the application secret. Single block encryption is a keyed
// permutation, so the mapping is a bijection: no collisions and no
// information loss, while the value is not enumerable without the key.
package opaque

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
)

// HKDF info string. Changing it changes every reference ever issued
var hkdfInfo = []byte("tokenauth.subject.v1")

const keySize = 32

var encoding = base64.RawURLEncoding

// Reference wraps and unwraps user ids
// Safe for concurrent use: it holds immutable cipher state only
type Reference struct {
	block cipher.Block
}

// New derives a dedicated key from secret, so the signing key itself never encrypts anything
func New(secret []byte) (*Reference, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret must not be empty")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("error while deriving reference key. Err: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error while creating cipher. Err: %w", err)
	}

	return &Reference{block: block}, nil
}

func (r *Reference) Wrap(id uuid.UUID) string {
	var dst [aes.BlockSize]byte
	r.block.Encrypt(dst[:], id[:])
	return encoding.EncodeToString(dst[:])
}

func (r *Reference) Unwrap(ref string) (uuid.UUID, error) {
	src, err := encoding.DecodeString(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrReference, err)
	}
	if len(src) != aes.BlockSize {
		return uuid.Nil, fmt.Errorf("%w: wrong length %d", apperrors.ErrReference, len(src))
	}

	var id uuid.UUID
	r.block.Decrypt(id[:], src)
	return id, nil
}
