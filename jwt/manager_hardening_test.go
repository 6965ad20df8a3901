package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestCreateAndParseAccessEd25519(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "gosession-local",
		Audience:      "app",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.CreateAccess("u1", "fam1", "a@b.com")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.ParseAccess(access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "u1" || claims.SID != "fam1" || claims.Email != "a@b.com" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseAccessRejectsExpiredUsingClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Now:           clock,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.ParseAccess(access); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestParseAccessKeyIDRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	access, err := m.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(access); err != nil {
		t.Fatalf("expected kid k1 to verify: %v", err)
	}

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PublicKey:     pub2,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k2": pub2},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.ParseAccess(access); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func TestExpiry(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Now:           func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	access, err := m.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	exp, ok := Expiry(access)
	if !ok || !exp.Equal(time.Unix(1_700_000_000, 0).Add(5*time.Minute)) {
		t.Fatalf("unexpected expiry %v ok=%v", exp, ok)
	}

	for _, opaque := range []string{"", "tok1", "a.b", "a.b.c"} {
		if _, ok := Expiry(opaque); ok {
			t.Fatalf("expected %q to have no expiry", opaque)
		}
	}
}

func TestParseAccessErrorsAreClassified(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	signer, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		KeyID:         "old",
		Now:           func() time.Time { return now.Add(time.Hour) },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	verifier, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		KeyID:         "new",
		VerifyKeys:    map[string][]byte{"new": []byte("another-secret-another-secret-32"), "old": []byte("0123456789abcdef0123456789abcdef")},
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	future, err := signer.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := verifier.ParseAccess(future); !errors.Is(err, ErrFutureIssuedAt) {
		t.Fatalf("expected ErrFutureIssuedAt, got %v", err)
	}

	stranger, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		KeyID:         "gone",
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	unknown, err := stranger.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := verifier.ParseAccess(unknown); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.CreateAccess("u1", "fam1", ""); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rs256"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseAccessAllowExpired(t *testing.T) {
	key := []byte("allow-expired-signing-key-0123456789")
	past := func() time.Time { return time.Now().Add(-time.Hour) }
	issuing, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, Issuer: "iss-a", Now: past})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	verifying, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, Issuer: "iss-a"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	expired, err := issuing.CreateAccess("u1", "fam1", "")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	if _, err := verifying.ParseAccess(expired); err == nil {
		t.Fatal("ParseAccess must reject an expired token")
	}
	claims, err := verifying.ParseAccessAllowExpired(expired)
	if err != nil || claims.UID != "u1" {
		t.Fatalf("expected expired token accepted, got %+v %v", claims, err)
	}

	otherIssuer, _ := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, Issuer: "iss-b"})
	if _, err := otherIssuer.ParseAccessAllowExpired(expired); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
	otherKey, _ := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("a-different-signing-key-0123456789"), Issuer: "iss-a"})
	if _, err := otherKey.ParseAccessAllowExpired(expired); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}
