package persist

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealVersion = "v1"
	sealInfo    = "goSession/sealed-kv/v1"
	minSaltLen  = 16
)

var (
	// ErrSealCorrupt is returned by Get when a stored value fails to decode
	// or authenticate, including values sealed under another passphrase. It
	// matches goSession.ErrCorruptValue, so the store discards the entry.
	ErrSealCorrupt = fmt.Errorf("sealed value corrupt: %w", goSession.ErrCorruptValue)
	// ErrSealConfig is returned by NewSealedKV for unusable key material.
	ErrSealConfig = errors.New("invalid seal configuration")
)

// SealParams are the Argon2id cost parameters for the key-encryption key.
type SealParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultSealParams follows the Argon2id interactive profile.
func DefaultSealParams() SealParams {
	return SealParams{Time: 1, MemoryKB: 64 * 1024, Threads: 4}
}

// SealedKV encrypts values before handing them to the inner store. Stored
// form is "v1." followed by base64url(nonce || ciphertext). The key name is
// authenticated as associated data.
type SealedKV struct {
	inner KV
	aead  cipher.AEAD
}

// NewSealedKV derives the AEAD key from passphrase and salt. salt must be at
// least 16 bytes and stable for the lifetime of the stored data.
func NewSealedKV(inner KV, passphrase, salt []byte, params SealParams) (*SealedKV, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner store required", ErrSealConfig)
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase required", ErrSealConfig)
	}
	if len(salt) < minSaltLen {
		return nil, fmt.Errorf("%w: salt must be >= %d bytes", ErrSealConfig, minSaltLen)
	}
	if params.Time == 0 || params.MemoryKB < 8 || params.Threads == 0 {
		return nil, fmt.Errorf("%w: argon2 parameters out of range", ErrSealConfig)
	}

	kek := argon2.IDKey(passphrase, salt, params.Time, params.MemoryKB, params.Threads, 32)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, kek, salt, []byte(sealInfo)), key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &SealedKV{inner: inner, aead: aead}, nil
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, bool, error) {
	stored, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	plain, err := s.open(key, stored)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedKV) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedKV) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), associatedData(key))
	return sealVersion + "." + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SealedKV) open(key, stored string) (string, error) {
	version, body, found := strings.Cut(stored, ".")
	if !found || version != sealVersion {
		return "", ErrSealCorrupt
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrSealCorrupt
	}

	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, associatedData(key))
	if err != nil {
		return "", ErrSealCorrupt
	}
	return string(plain), nil
}

func associatedData(key string) []byte {
	return []byte(sealInfo + ":" + key)
}
