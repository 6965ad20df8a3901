package internal

import (
	"errors"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	fid, err := NewFamilyID()
	if err != nil {
		t.Fatalf("NewFamilyID: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	token, err := EncodeRefreshToken(fid.String(), secret)
	if err != nil {
		t.Fatalf("EncodeRefreshToken: %v", err)
	}
	family, got, err := DecodeRefreshToken(token)
	if err != nil || family != fid.String() || got != secret {
		t.Fatalf("decode mismatch: family=%q err=%v", family, err)
	}
	if _, err := EncodeRefreshToken("short", secret); err == nil {
		t.Fatal("expected bad family id to be rejected")
	}
	if _, _, err := DecodeRefreshToken(token[:len(token)-2]); !errors.Is(err, ErrRefreshTokenMalformed) {
		t.Fatalf("expected ErrRefreshTokenMalformed, got %v", err)
	}
}

func FuzzDecodeRefreshToken(f *testing.F) {
	for _, seed := range []string{"", "abc", "!!!not-base64!!!", "dG9vLXNob3J0"} {
		f.Add(seed)
	}
	if fid, err := NewFamilyID(); err == nil {
		if secret, err := NewRefreshSecret(); err == nil {
			if token, err := EncodeRefreshToken(fid.String(), secret); err == nil {
				f.Add(token)
			}
		}
	}

	f.Fuzz(func(t *testing.T, input string) {
		family, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}
		again, err := EncodeRefreshToken(family, secret)
		if err != nil {
			t.Fatalf("decoded family %q does not re-encode: %v", family, err)
		}
		family2, secret2, err := DecodeRefreshToken(again)
		if err != nil || family2 != family || secret2 != secret {
			t.Fatalf("re-encoded token does not decode to the same parts")
		}
	})
}
