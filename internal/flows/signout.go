package flows

import "context"

// SignOutDeps captures sign-out flow dependencies. Identity may be nil when
// the service has no remote sign-out.
type SignOutDeps struct {
	Identity    func(ctx context.Context, accessToken string) error
	Remote      Remote
	Persistence Persistence
	Keys        Keys
	Warn        func(string, ...any)
}

// SignOutResult reports the best-effort failures. Neither blocks local
// sign-out.
type SignOutResult struct {
	RemoteErr error
	ClearErr  error
}

// RunSignOut notifies the identity service when a token is held, then deletes
// every persisted entry regardless of the remote outcome.
func RunSignOut(ctx context.Context, accessToken string, deps SignOutDeps) SignOutResult {
	var res SignOutResult

	if deps.Identity != nil && accessToken != "" {
		res.RemoteErr = deps.Remote.call(context.WithoutCancel(ctx), func(ctx context.Context) error {
			return deps.Identity(ctx, accessToken)
		})
		if res.RemoteErr != nil {
			warn(deps.Warn, "goSession: remote sign-out failed: %v", res.RemoteErr)
		}
	}

	res.ClearErr = RunClear(ctx, deps.Persistence, deps.Keys)
	if res.ClearErr != nil {
		warn(deps.Warn, "goSession: clearing credentials on sign-out: %v", res.ClearErr)
	}
	return res
}
