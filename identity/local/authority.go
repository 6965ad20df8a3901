package local

import (
	"context"
	"errors"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	_ goSession.IdentityService   = (*Authority)(nil)
	_ goSession.IdentitySignOuter = (*Authority)(nil)
)

// dummyPassword is hashed once at construction so unknown accounts cost the
// same Argon2 work as wrong passwords.
const dummyPassword = "goSession-local-dummy"

// Authority issues and rotates sessions for accounts stored in Redis.
type Authority struct {
	store     *store
	tokens    *jwt.Manager
	hasher    *password.Argon2
	limiter   *rate.Limiter
	config    Config
	dummyHash string
}

// New wires an Authority. tokens signs access tokens and hasher protects
// account passwords.
func New(client redis.UniversalClient, tokens *jwt.Manager, hasher *password.Argon2, cfg Config) (*Authority, error) {
	if client == nil {
		return nil, errors.New("local: redis client is required")
	}
	if tokens == nil {
		return nil, errors.New("local: jwt manager is required")
	}
	if hasher == nil {
		return nil, errors.New("local: password hasher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	return &Authority{
		store: &store{
			redis:  client,
			prefix: cfg.Prefix,
			ttl:    cfg.RefreshTTL,
		},
		tokens:  tokens,
		hasher:  hasher,
		limiter: rate.New(client, rate.Config{
			MaxSignInFailures:     cfg.MaxSignInFailures,
			SignInCooldown:        cfg.SignInCooldown,
			EnableRefreshThrottle: cfg.MaxRefreshAttempts > 0,
			MaxRefreshAttempts:    cfg.MaxRefreshAttempts,
			RefreshCooldown:       cfg.RefreshCooldown,
		}),
		config:    cfg,
		dummyHash: dummy,
	}, nil
}

// SignIn verifies the password for email and opens a new refresh family.
func (a *Authority) SignIn(ctx context.Context, email, secret string) (*goSession.Session, error) {
	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return nil, userError(ErrInvalidCredentials)
	}

	if err := a.limiter.CheckSignIn(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, userError(ErrSignInRateLimited)
		}
		return nil, unavailable(err)
	}

	acct, found, err := a.store.loadAccount(ctx, email)
	if err != nil {
		return nil, unavailable(err)
	}

	var (
		ok       bool
		upgraded string
	)
	if found {
		ok, upgraded, err = a.hasher.Upgrade(secret, acct.Hash)
	} else {
		_, err = a.hasher.Verify(secret, a.dummyHash)
	}
	if err != nil && !errors.Is(err, password.ErrPasswordLength) {
		return nil, unavailable(err)
	}
	if !found || !ok {
		if err := a.limiter.RecordSignInFailure(ctx, email); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			return nil, unavailable(err)
		}
		return nil, userError(ErrInvalidCredentials)
	}

	if !acct.Confirmed {
		return nil, userError(ErrEmailNotConfirmed)
	}
	if err := a.limiter.ResetSignIn(ctx, email); err != nil {
		return nil, unavailable(err)
	}
	if upgraded != "" {
		if err := a.store.updateHash(ctx, email, upgraded); err != nil {
			return nil, unavailable(err)
		}
		acct.Hash = upgraded
	}

	return a.issue(ctx, acct)
}

// SignUp creates an account. With RequireConfirmation the outcome is pending
// and carries [PendingConfirmationMessage]; otherwise a session is issued.
func (a *Authority) SignUp(ctx context.Context, email, secret, displayName string) (goSession.SignUpOutcome, error) {
	email = normalizeEmail(email)
	if email == "" {
		return goSession.SignUpOutcome{}, userError(ErrInvalidCredentials)
	}

	hash, err := a.hasher.Hash(secret)
	if err != nil {
		if errors.Is(err, password.ErrPasswordLength) {
			return goSession.SignUpOutcome{}, userError(ErrWeakPassword)
		}
		return goSession.SignUpOutcome{}, unavailable(err)
	}

	acct := account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      fallbackName(strings.TrimSpace(displayName), email),
		Hash:      hash,
		Confirmed: !a.config.RequireConfirmation,
	}
	if err := a.store.createAccount(ctx, acct); err != nil {
		if errors.Is(err, errAccountExists) {
			return goSession.SignUpOutcome{}, userError(ErrAccountExists)
		}
		return goSession.SignUpOutcome{}, unavailable(err)
	}

	if a.config.RequireConfirmation {
		return goSession.SignUpOutcome{Message: PendingConfirmationMessage}, nil
	}

	sess, err := a.issue(ctx, acct)
	if err != nil {
		return goSession.SignUpOutcome{}, err
	}
	return goSession.SignUpOutcome{Session: sess, Message: RegisteredMessage}, nil
}

// Confirm activates a pending account.
func (a *Authority) Confirm(ctx context.Context, email string) error {
	ok, err := a.store.confirmAccount(ctx, normalizeEmail(email))
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return userError(ErrAccountNotFound)
	}
	return nil
}

// Refresh rotates refreshToken and mints a new access token. A token that was
// already rotated revokes its family.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (*goSession.Session, error) {
	family, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil, userError(ErrRefreshInvalid)
	}

	if err := a.limiter.CheckRefresh(ctx, family); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, userError(ErrRefreshRateLimited)
		}
		return nil, unavailable(err)
	}

	next, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, unavailable(err)
	}

	rot, err := a.store.rotateFamily(ctx, family, internal.HashRefreshSecret(secret), internal.HashRefreshSecret(next))
	if err != nil {
		return nil, unavailable(err)
	}

	switch rot.status {
	case rotateStatusRotated:
	case rotateStatusMismatch:
		if err := a.store.dropFamily(ctx, family, rot.uid); err != nil {
			return nil, unavailable(err)
		}
		return nil, userError(ErrRefreshReused)
	case rotateStatusNotFound:
		return nil, userError(ErrRefreshInvalid)
	default:
		return nil, unavailable(errors.New("unexpected rotation status"))
	}

	acct, found, err := a.store.loadAccount(ctx, rot.email)
	if err != nil {
		return nil, unavailable(err)
	}
	if !found || acct.ID != rot.uid {
		if err := a.store.dropFamily(ctx, family, rot.uid); err != nil {
			return nil, unavailable(err)
		}
		return nil, userError(ErrRefreshInvalid)
	}

	token, err := internal.EncodeRefreshToken(family, next)
	if err != nil {
		return nil, unavailable(err)
	}
	access, err := a.tokens.CreateAccess(acct.ID, family, acct.Email)
	if err != nil {
		return nil, unavailable(err)
	}

	return sessionFor(acct, access, token), nil
}

// SignOut revokes every refresh family of the user the access token names.
// An expired but authentic access token still signs its owner out.
func (a *Authority) SignOut(ctx context.Context, accessToken string) error {
	claims, err := a.tokens.ParseAccessAllowExpired(accessToken)
	if err != nil {
		return userError(ErrAccessTokenInvalid)
	}
	if _, err := a.store.revokeUser(ctx, claims.UID); err != nil {
		return unavailable(err)
	}
	return nil
}

// LiveSessions reports how many refresh families email currently holds.
func (a *Authority) LiveSessions(ctx context.Context, email string) (int64, error) {
	acct, found, err := a.store.loadAccount(ctx, normalizeEmail(email))
	if err != nil {
		return 0, unavailable(err)
	}
	if !found {
		return 0, userError(ErrAccountNotFound)
	}
	n, err := a.store.liveFamilies(ctx, acct.ID)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (a *Authority) issue(ctx context.Context, acct account) (*goSession.Session, error) {
	fid, err := internal.NewFamilyID()
	if err != nil {
		return nil, unavailable(err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, unavailable(err)
	}
	family := fid.String()

	if err := a.store.saveFamily(ctx, family, acct.ID, acct.Email, internal.HashRefreshSecret(secret)); err != nil {
		return nil, unavailable(err)
	}

	refresh, err := internal.EncodeRefreshToken(family, secret)
	if err != nil {
		return nil, unavailable(err)
	}
	access, err := a.tokens.CreateAccess(acct.ID, family, acct.Email)
	if err != nil {
		return nil, unavailable(err)
	}

	return sessionFor(acct, access, refresh), nil
}

func sessionFor(acct account, access, refresh string) *goSession.Session {
	return &goSession.Session{
		UserID:       acct.ID,
		Email:        acct.Email,
		DisplayName:  acct.Name,
		AvatarURL:    acct.Avatar,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// fallbackName falls back to the e-mail local part, then "User".
func fallbackName(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "User"
}
