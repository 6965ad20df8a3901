package flows

import (
	"context"
	"errors"
)

// ErrNoRefreshToken is returned when no refresh token is on record.
var ErrNoRefreshToken = errors.New("no refresh token")

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Identity func(ctx context.Context, refreshToken string) (*Session, error)
	Remote   Remote
	Commit   CommitDeps
	Warn     func(string, ...any)
}

// RefreshResult carries either the renewed session or failure metadata.
// On any failure the persisted credentials have already been cleared.
type RefreshResult struct {
	Failure  FailureKind
	Err      error
	ClearErr error
	Session  *Session
	Rotated  bool
}

// RunRefresh exchanges the current refresh token for a new access token.
// Profile fields the service leaves blank are carried over from current, and
// the old refresh token is kept when the service does not rotate it. Every
// failure is terminal: persistence is cleared before returning.
func RunRefresh(ctx context.Context, current *Session, deps RefreshDeps) RefreshResult {
	if current == nil || current.RefreshToken == "" {
		return fail(ctx, deps, FailureNoRefreshToken, ErrNoRefreshToken)
	}

	var renewed *Session
	err := deps.Remote.call(ctx, func(ctx context.Context) error {
		var err error
		renewed, err = deps.Identity(ctx, current.RefreshToken)
		return err
	})
	if err != nil {
		return fail(ctx, deps, FailureIdentity, err)
	}
	if renewed == nil || renewed.AccessToken == "" {
		return fail(ctx, deps, FailureMalformed, ErrMalformedSession)
	}

	next := merge(current, renewed)
	if next.UserID != current.UserID {
		return fail(ctx, deps, FailureMalformed, ErrMalformedSession)
	}

	if cerr := RunCommit(ctx, next, deps.Commit); cerr != nil {
		return fail(ctx, deps, FailureCommit, cerr)
	}
	return RefreshResult{
		Session: next,
		Rotated: next.RefreshToken != current.RefreshToken,
	}
}

func merge(current, renewed *Session) *Session {
	next := renewed.Clone()
	if next.UserID == "" {
		next.UserID = current.UserID
	}
	if next.Email == "" {
		next.Email = current.Email
	}
	if next.DisplayName == "" {
		next.DisplayName = current.DisplayName
	}
	if next.AvatarURL == "" {
		next.AvatarURL = current.AvatarURL
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	return next
}

func fail(ctx context.Context, deps RefreshDeps, kind FailureKind, err error) RefreshResult {
	clearErr := RunClear(ctx, deps.Commit.Persistence, deps.Commit.Keys)
	if clearErr != nil {
		warn(deps.Warn, "goSession: clearing credentials after refresh failure: %v", clearErr)
	}
	return RefreshResult{Failure: kind, Err: err, ClearErr: clearErr}
}
