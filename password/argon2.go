package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	floorMemoryKB    uint32 = 8 * 1024
	floorTime        uint32 = 1
	floorParallelism uint8  = 1
	floorSaltBytes   uint32 = 16
	floorKeyBytes    uint32 = 16
)

const (
	// DefaultMinPasswordBytes matches the sign-up minimum secret length.
	DefaultMinPasswordBytes = 6
	// DefaultMaxPasswordBytes bounds the work an attacker can force per attempt.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordLength is returned when a password falls outside the
	// configured byte bounds.
	ErrPasswordLength = errors.New("password length out of bounds")
	// ErrMalformedHash is returned for stored hashes that are not Argon2id PHC
	// strings this package can verify.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrInvalidConfig is returned by NewArgon2 for parameters below the
	// accepted floor.
	ErrInvalidConfig = errors.New("invalid password config")
)

// Config holds Argon2id cost parameters and password byte bounds. Zero
// MinPasswordBytes and MaxPasswordBytes select the defaults.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
}

// DefaultConfig returns the OWASP-recommended Argon2id baseline.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c *Config) applyDefaults() {
	if c.MinPasswordBytes == 0 {
		c.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if c.MaxPasswordBytes == 0 {
		c.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, floorMemoryKB)
	case c.Time < floorTime:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, floorTime)
	case c.Parallelism < floorParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, floorParallelism)
	case c.SaltLength < floorSaltBytes:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, floorSaltBytes)
	case c.KeyLength < floorKeyBytes:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, floorKeyBytes)
	case c.MinPasswordBytes < 1 || c.MaxPasswordBytes < c.MinPasswordBytes:
		return fmt.Errorf("%w: password byte bounds", ErrInvalidConfig)
	}
	return nil
}

// Argon2 hashes and verifies account passwords for the local identity
// authority.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash under a fresh random salt. The
// password is hashed byte for byte, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if n := len(password); n < a.config.MinPasswordBytes || n > a.config.MaxPasswordBytes {
		return "", ErrPasswordLength
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	d := digest{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	d.key = d.derive(password, a.config.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches encoded. Oversized inputs are
// rejected before any hashing work.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordLength
	}

	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	computed := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade reports whether encoded is weaker than, or shaped differently
// from, what Hash produces today.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	return d.memory < a.config.Memory ||
		d.time < a.config.Time ||
		d.parallelism < a.config.Parallelism ||
		uint32(len(d.key)) != a.config.KeyLength, nil
}

// Upgrade verifies password against encoded and, when the stored parameters
// are outdated, returns a fresh hash to persist. upgraded is empty when the
// stored hash is current or the password does not match.
func (a *Argon2) Upgrade(password, encoded string) (ok bool, upgraded string, err error) {
	ok, err = a.Verify(password, encoded)
	if err != nil || !ok {
		return ok, "", err
	}
	stale, err := a.NeedsUpgrade(encoded)
	if err != nil || !stale {
		return true, "", err
	}
	upgraded, err = a.Hash(password)
	if err != nil {
		return true, "", err
	}
	return true, upgraded, nil
}

// digest is one decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d digest) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		d.memory, d.time, d.parallelism,
		base64.StdEncoding.EncodeToString(d.salt),
		base64.StdEncoding.EncodeToString(d.key),
	)
}

func parseDigest(encoded string) (digest, error) {
	var d digest

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return d, fmt.Errorf("%w: expected 5 fields", ErrMalformedHash)
	}
	if fields[1] != algorithmID {
		return d, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}

	v, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return d, fmt.Errorf("%w: missing version", ErrMalformedHash)
	}
	if version, err := strconv.Atoi(v); err != nil || version != argon2.Version {
		return d, fmt.Errorf("%w: version %q", ErrMalformedHash, v)
	}

	if err := d.parseParams(fields[3]); err != nil {
		return d, err
	}

	var err error
	if d.salt, err = decodeB64(fields[4]); err != nil || len(d.salt) < int(floorSaltBytes) {
		return d, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if d.key, err = decodeB64(fields[5]); err != nil || len(d.key) == 0 {
		return d, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return d, nil
}

// parseParams reads exactly m, t and p, each once.
func (d *digest) parseParams(field string) error {
	seen := 0
	for _, pair := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: parameter %q", ErrMalformedHash, pair)
		}
		switch name {
		case "m":
			n, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(n) < floorMemoryKB {
				return fmt.Errorf("%w: memory %q", ErrMalformedHash, raw)
			}
			d.memory = uint32(n)
			seen |= 1
		case "t":
			n, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(n) < floorTime {
				return fmt.Errorf("%w: time %q", ErrMalformedHash, raw)
			}
			d.time = uint32(n)
			seen |= 2
		case "p":
			n, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(n) < floorParallelism {
				return fmt.Errorf("%w: parallelism %q", ErrMalformedHash, raw)
			}
			d.parallelism = uint8(n)
			seen |= 4
		default:
			return fmt.Errorf("%w: parameter %q", ErrMalformedHash, name)
		}
	}
	if seen != 7 || strings.Count(field, ",") != 2 {
		return fmt.Errorf("%w: parameters %q", ErrMalformedHash, field)
	}
	return nil
}

// decodeB64 accepts padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
