package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// FamilyID names one refresh-token lineage. Rotation keeps the family and
// replaces the secret.
type FamilyID [16]byte

// RefreshSecret is the per-rotation random half of a refresh token. Only its
// SHA-256 is stored server side.
type RefreshSecret [32]byte

// ErrRefreshTokenMalformed is returned for tokens that do not decode to a
// family id and secret.
var ErrRefreshTokenMalformed = errors.New("malformed refresh token")

var b64 = base64.RawURLEncoding

func NewFamilyID() (FamilyID, error) {
	var fid FamilyID
	_, err := rand.Read(fid[:])
	return fid, err
}

func (f FamilyID) String() string { return b64.EncodeToString(f[:]) }

func ParseFamilyID(s string) (FamilyID, error) {
	var fid FamilyID
	if b64.DecodedLen(len(s)) != len(fid) {
		return fid, fmt.Errorf("family id: want %d bytes", len(fid))
	}
	if _, err := b64.Decode(fid[:], []byte(s)); err != nil {
		return fid, fmt.Errorf("family id: %w", err)
	}
	return fid, nil
}

func NewRefreshSecret() (RefreshSecret, error) {
	var s RefreshSecret
	_, err := rand.Read(s[:])
	return s, err
}

func HashRefreshSecret(s RefreshSecret) [32]byte { return sha256.Sum256(s[:]) }

// EncodeRefreshToken returns base64url(family || secret).
func EncodeRefreshToken(family string, secret RefreshSecret) (string, error) {
	fid, err := ParseFamilyID(family)
	if err != nil {
		return "", err
	}
	raw := append(fid[:len(fid):len(fid)], secret[:]...)
	return b64.EncodeToString(raw), nil
}

// DecodeRefreshToken splits a token produced by EncodeRefreshToken.
func DecodeRefreshToken(token string) (family string, secret RefreshSecret, err error) {
	var fid FamilyID
	raw, err := b64.DecodeString(token)
	if err != nil || len(raw) != len(fid)+len(secret) {
		return "", secret, ErrRefreshTokenMalformed
	}
	copy(fid[:], raw)
	copy(secret[:], raw[len(fid):])
	return fid.String(), secret, nil
}
