package goSession

import (
	"errors"
	"time"
)

// Config holds every Store tuning knob. It is copied on Build and treated as
// immutable afterwards.
type Config struct {
	Identity    IdentityConfig
	Validation  ValidationConfig
	Persistence PersistenceConfig
	Refresh     RefreshConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Notify      NotifyConfig
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig bounds remote identity calls.
type IdentityConfig struct {
	// Timeout caps each SignIn, SignUp, Refresh and SignOut call. Zero
	// disables the bound.
	Timeout time.Duration
	// RemoteSignOut enables the best-effort remote sign-out when the identity
	// service implements IdentitySignOuter.
	RemoteSignOut bool
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig drives the local sign-up preconditions.
type ValidationConfig struct {
	MinSecretLength    int
	RequireDisplayName bool
	// CheckEmailSyntax rejects addresses net/mail cannot parse.
	CheckEmailSyntax bool
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig names the three persisted entries.
type PersistenceConfig struct {
	AccessTokenKey  string
	RefreshTokenKey string
	ProfileKey      string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig drives EnsureFresh.
type RefreshConfig struct {
	// Leeway is how long before the access token's exp EnsureFresh refreshes.
	Leeway time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles counters and the identity latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig configures observer delivery.
type NotifyConfig struct {
	// SubscriberBuffer is the default channel capacity for Subscribe. When a
	// subscriber falls behind, the oldest undelivered state is dropped.
	SubscriberBuffer int
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration Build uses when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Identity: IdentityConfig{
			Timeout:       15 * time.Second,
			RemoteSignOut: true,
		},
		Validation: ValidationConfig{
			MinSecretLength:    6,
			RequireDisplayName: false,
			CheckEmailSyntax:   true,
		},
		Persistence: PersistenceConfig{
			AccessTokenKey:  "authToken",
			RefreshTokenKey: "refreshToken",
			ProfileKey:      "user",
		},
		Refresh: RefreshConfig{
			Leeway: 60 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Notify: NotifyConfig{
			SubscriberBuffer: 4,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Identity.Timeout < 0 {
		return errors.New("Identity Timeout must be >= 0")
	}

	if c.Validation.MinSecretLength < 1 {
		return errors.New("Validation MinSecretLength must be >= 1")
	}

	keys := []string{c.Persistence.AccessTokenKey, c.Persistence.RefreshTokenKey, c.Persistence.ProfileKey}
	for _, k := range keys {
		if k == "" {
			return errors.New("Persistence keys must be non-empty")
		}
	}
	if keys[0] == keys[1] || keys[0] == keys[2] || keys[1] == keys[2] {
		return errors.New("Persistence keys must be distinct")
	}

	if c.Refresh.Leeway < 0 {
		return errors.New("Refresh Leeway must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	if c.Notify.SubscriberBuffer <= 0 {
		return errors.New("Notify SubscriberBuffer must be > 0")
	}

	return nil
}
