package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the access-token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const (
	maxLeeway           = 2 * time.Minute
	defaultMaxFutureIAT = 10 * time.Minute
	maxMaxFutureIAT     = 24 * time.Hour
)

var (
	// ErrInvalidConfig is returned by NewManager.
	ErrInvalidConfig = errors.New("invalid jwt config")
	// ErrUnknownKey is returned when a token names no key this manager trusts.
	ErrUnknownKey = errors.New("unknown signing key")
	// ErrFutureIssuedAt is returned for tokens issued further ahead than
	// MaxFutureIAT.
	ErrFutureIssuedAt = errors.New("token issued in the future")
)

// Config configures a [Manager]. For HS256 PrivateKey holds the shared
// secret; for Ed25519 it holds the private key (raw or PEM) and PublicKey or
// VerifyKeys the verification keys.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	// Now overrides time.Now for issuance. Verification uses the same clock.
	Now func() time.Time
}

// Manager issues and verifies access tokens for the local identity authority.
// Keys are decoded once, in NewManager.
type Manager struct {
	config  Config
	method  jwt.SigningMethod
	signKey any
	// verify holds the trusted keys by kid. The "" entry is used for tokens
	// without a kid when no KeyID is configured.
	verify map[string]any
	parser *jwt.Parser
	// lenient checks signature and algorithm only.
	lenient *jwt.Parser
}

// AccessClaims is the access-token payload: the user id, the refresh family
// the token was minted for, and the account e-mail.
type AccessClaims struct {
	UID   string `json:"uid"`
	SID   string `json:"sid"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg, decodes its keys and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.AccessTTL <= 0:
		return nil, fmt.Errorf("%w: AccessTTL must be > 0", ErrInvalidConfig)
	case cfg.Leeway < 0 || cfg.Leeway > maxLeeway:
		return nil, fmt.Errorf("%w: Leeway must be within [0, %s]", ErrInvalidConfig, maxLeeway)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultMaxFutureIAT
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > maxMaxFutureIAT {
		return nil, fmt.Errorf("%w: MaxFutureIAT must be within (0, %s]", ErrInvalidConfig, maxMaxFutureIAT)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, verify: map[string]any{}}
	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		err = m.loadHMAC()
	case MethodEd25519:
		err = m.loadEd25519()
	default:
		err = fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
	}
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	m.lenient = jwt.NewParser(jwt.WithValidMethods([]string{m.method.Alg()}), jwt.WithoutClaimsValidation())
	return m, nil
}

func (m *Manager) loadHMAC() error {
	if len(m.config.PrivateKey) == 0 {
		return fmt.Errorf("%w: hs256 requires PrivateKey", ErrInvalidConfig)
	}
	m.method = jwt.SigningMethodHS256
	m.signKey = m.config.PrivateKey
	if len(m.config.VerifyKeys) == 0 {
		m.verify[m.config.KeyID] = m.config.PrivateKey
	}
	for kid, key := range m.config.VerifyKeys {
		if strings.TrimSpace(kid) == "" || len(key) == 0 {
			return fmt.Errorf("%w: VerifyKeys entry %q", ErrInvalidConfig, kid)
		}
		m.verify[kid] = key
	}
	return m.checkKeyID()
}

func (m *Manager) loadEd25519() error {
	m.method = jwt.SigningMethodEdDSA
	if len(m.config.PrivateKey) > 0 {
		priv, err := parseEdPrivateKey(m.config.PrivateKey)
		if err != nil {
			return err
		}
		m.signKey = priv
	}
	if len(m.config.PublicKey) == 0 && len(m.config.VerifyKeys) == 0 {
		return fmt.Errorf("%w: ed25519 requires PublicKey or VerifyKeys", ErrInvalidConfig)
	}
	if len(m.config.PublicKey) > 0 {
		pub, err := parseEdPublicKey(m.config.PublicKey)
		if err != nil {
			return err
		}
		if len(m.config.VerifyKeys) == 0 {
			m.verify[m.config.KeyID] = pub
		}
	}
	for kid, key := range m.config.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return fmt.Errorf("%w: VerifyKeys contains an empty kid", ErrInvalidConfig)
		}
		pub, err := parseEdPublicKey(key)
		if err != nil {
			return fmt.Errorf("kid %q: %w", kid, err)
		}
		m.verify[kid] = pub
	}
	return m.checkKeyID()
}

func (m *Manager) checkKeyID() error {
	if m.config.KeyID != "" && len(m.config.VerifyKeys) > 0 {
		if _, ok := m.verify[m.config.KeyID]; !ok {
			return fmt.Errorf("%w: KeyID %q not in VerifyKeys", ErrInvalidConfig, m.config.KeyID)
		}
	}
	return nil
}

// CreateAccess signs an access token for uid, bound to the refresh family sid.
func (m *Manager) CreateAccess(uid, sid, email string) (string, error) {
	if m.signKey == nil {
		return "", fmt.Errorf("%w: no private key configured", ErrUnknownKey)
	}

	now := m.config.Now()
	claims := AccessClaims{
		UID:   uid,
		SID:   sid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// ParseAccess verifies token and returns its claims. Expired tokens,
// unexpected algorithms and unknown key ids are rejected.
func (m *Manager) ParseAccess(token string) (*AccessClaims, error) {
	var claims AccessClaims
	parsed, err := m.parser.ParseWithClaims(token, &claims, m.keyFor)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, ErrFutureIssuedAt
	}
	return &claims, nil
}

// ParseAccessAllowExpired verifies the signature, issuer and audience of
// token but accepts it past its exp. It is meant for revocation, where an
// expired token must still identify its owner.
func (m *Manager) ParseAccessAllowExpired(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if _, err := m.lenient.ParseWithClaims(token, &claims, m.keyFor); err != nil {
		return nil, err
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	if m.config.Audience != "" && !slices.Contains(claims.Audience, m.config.Audience) {
		return nil, jwt.ErrTokenInvalidAudience
	}
	if claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &claims, nil
}

// keyFor resolves the verification key from the token's kid header. A kid is
// mandatory once KeyID or VerifyKeys is configured.
func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" && (m.config.KeyID != "" || len(m.config.VerifyKeys) > 0) {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKey)
	}
	key, ok := m.verify[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 private key", ErrInvalidConfig)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 private key type", ErrInvalidConfig)
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key", ErrInvalidConfig)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ed25519 public key type", ErrInvalidConfig)
	}
	return pub, nil
}
