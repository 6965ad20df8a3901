package flows

import "context"

// SignInDeps captures sign-in flow dependencies.
type SignInDeps struct {
	Identity func(ctx context.Context, email, secret string) (*Session, error)
	Remote   Remote
	Commit   CommitDeps
}

// SignInResult carries either the committed session or failure metadata.
type SignInResult struct {
	Failure FailureKind
	Err     error
	Session *Session
}

// RunSignIn exchanges credentials for a session and commits it. Nothing is
// written unless the remote call succeeds.
func RunSignIn(ctx context.Context, email, secret string, deps SignInDeps) SignInResult {
	var sess *Session
	err := deps.Remote.call(ctx, func(ctx context.Context) error {
		var err error
		sess, err = deps.Identity(ctx, email, secret)
		return err
	})
	if err != nil {
		return SignInResult{Failure: FailureIdentity, Err: err}
	}
	if !usable(sess) {
		return SignInResult{Failure: FailureMalformed, Err: ErrMalformedSession}
	}

	sess = sess.Clone()
	if cerr := RunCommit(ctx, sess, deps.Commit); cerr != nil {
		return SignInResult{Failure: FailureCommit, Err: cerr}
	}
	return SignInResult{Session: sess}
}
