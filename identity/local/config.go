package local

import (
	"errors"
	"strings"
	"time"
)

// PendingConfirmationMessage is returned by SignUp when the account must be
// confirmed before it can sign in.
const PendingConfirmationMessage = "Registration successful. Please check your email to confirm your account."

// RegisteredMessage accompanies a sign-up that issued a session.
const RegisteredMessage = "Registration successful!"

// Config tunes the local authority.
type Config struct {
	// Prefix namespaces every Redis key. Defaults to "gsl".
	Prefix string
	// RefreshTTL bounds the lifetime of a refresh family since its last rotation.
	RefreshTTL time.Duration
	// RequireConfirmation makes SignUp return a pending outcome until
	// Confirm is called for the address.
	RequireConfirmation bool

	MaxSignInFailures  int
	SignInCooldown     time.Duration
	MaxRefreshAttempts int
	RefreshCooldown    time.Duration
}

// DefaultConfig returns a Config suitable for demos and tests.
func DefaultConfig() Config {
	return Config{
		Prefix:             "gsl",
		RefreshTTL:         7 * 24 * time.Hour,
		MaxSignInFailures:  5,
		SignInCooldown:     15 * time.Minute,
		MaxRefreshAttempts: 30,
		RefreshCooldown:    time.Minute,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return errors.New("local: prefix must not be empty")
	}
	if strings.ContainsAny(c.Prefix, " :") {
		return errors.New("local: prefix must not contain spaces or colons")
	}
	if c.RefreshTTL <= 0 {
		return errors.New("local: RefreshTTL must be > 0")
	}
	if c.MaxSignInFailures < 0 || c.MaxRefreshAttempts < 0 {
		return errors.New("local: attempt limits must be >= 0")
	}
	if c.MaxSignInFailures > 0 && c.SignInCooldown <= 0 {
		return errors.New("local: SignInCooldown must be > 0 when MaxSignInFailures is set")
	}
	if c.MaxRefreshAttempts > 0 && c.RefreshCooldown <= 0 {
		return errors.New("local: RefreshCooldown must be > 0 when MaxRefreshAttempts is set")
	}
	return nil
}
