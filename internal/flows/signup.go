package flows

import "context"

// SignUpRequest is the flow-level view of a registration attempt.
type SignUpRequest struct {
	Email       string
	Secret      string
	DisplayName string
}

// SignUpDeps captures sign-up flow dependencies.
type SignUpDeps struct {
	Validate func() error
	Identity func(ctx context.Context, email, secret, displayName string) (SignUpOutcome, error)
	Remote   Remote
	Commit   CommitDeps
}

// SignUpResult carries the outcome or failure metadata.
type SignUpResult struct {
	Failure FailureKind
	Err     error
	Outcome SignUpOutcome
}

// RunSignUp validates locally, then registers remotely. A session-issued
// outcome is committed like a sign-in; a pending outcome writes nothing.
func RunSignUp(ctx context.Context, req SignUpRequest, deps SignUpDeps) SignUpResult {
	if deps.Validate != nil {
		if err := deps.Validate(); err != nil {
			return SignUpResult{Failure: FailureValidation, Err: err}
		}
	}

	var outcome SignUpOutcome
	err := deps.Remote.call(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = deps.Identity(ctx, req.Email, req.Secret, req.DisplayName)
		return err
	})
	if err != nil {
		return SignUpResult{Failure: FailureIdentity, Err: err}
	}

	if outcome.Pending() {
		return SignUpResult{Outcome: SignUpOutcome{Message: outcome.Message}}
	}
	if !usable(outcome.Session) {
		return SignUpResult{Failure: FailureMalformed, Err: ErrMalformedSession}
	}

	sess := outcome.Session.Clone()
	if cerr := RunCommit(ctx, sess, deps.Commit); cerr != nil {
		return SignUpResult{Failure: FailureCommit, Err: cerr}
	}
	return SignUpResult{Outcome: SignUpOutcome{Session: sess, Message: outcome.Message}}
}
