package flows

import "context"

// BootstrapOutcome classifies what was found in persistence.
type BootstrapOutcome uint8

const (
	BootstrapEmpty BootstrapOutcome = iota
	BootstrapRestored
	BootstrapPartial
	BootstrapCorrupt
	BootstrapReadFailed
)

func (o BootstrapOutcome) String() string {
	switch o {
	case BootstrapEmpty:
		return "empty"
	case BootstrapRestored:
		return "restored"
	case BootstrapPartial:
		return "partial"
	case BootstrapCorrupt:
		return "corrupt"
	case BootstrapReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// BootstrapDeps captures bootstrap flow dependencies.
type BootstrapDeps struct {
	Persistence Persistence
	Keys        Keys
	Warn        func(string, ...any)
}

// BootstrapResult carries the restored session, if any. Err is informational
// and never surfaces to Store callers.
type BootstrapResult struct {
	Outcome BootstrapOutcome
	Session *Session
	Err     error
}

// RunBootstrap reads the three persisted entries and restores a session when
// both an access token and a decodable profile are present. Partial, corrupt
// or unreadable entries are cleared so that storage converges with the
// logged-out phase; entries are left alone when a read failed, since the
// failure may be transient.
func RunBootstrap(ctx context.Context, deps BootstrapDeps) BootstrapResult {
	var found [3]entry
	for i, want := range []struct {
		scope scope
		key   string
	}{
		{scopeSecure, deps.Keys.AccessToken},
		{scopeSecure, deps.Keys.RefreshToken},
		{scopePlain, deps.Keys.Profile},
	} {
		e, err := read(ctx, deps.Persistence, want.scope, want.key)
		if err != nil {
			return BootstrapResult{Outcome: BootstrapReadFailed, Err: err}
		}
		found[i] = e
	}
	access, refresh, profile := found[0], found[1], found[2]

	if access.corrupt || refresh.corrupt || profile.corrupt {
		discard(ctx, deps)
		return BootstrapResult{Outcome: BootstrapCorrupt, Err: ErrCorruptValue}
	}

	hasAccess := access.present && access.value != ""
	hasProfile := profile.present && profile.value != ""

	switch {
	case !hasAccess && !hasProfile && !refresh.present:
		return BootstrapResult{Outcome: BootstrapEmpty}
	case !hasAccess || !hasProfile:
		discard(ctx, deps)
		return BootstrapResult{Outcome: BootstrapPartial}
	}

	decoded, err := DecodeProfile(profile.value)
	if err != nil {
		discard(ctx, deps)
		return BootstrapResult{Outcome: BootstrapCorrupt, Err: err}
	}

	return BootstrapResult{
		Outcome: BootstrapRestored,
		Session: sessionFromProfile(decoded, access.value, refresh.value),
	}
}

func discard(ctx context.Context, deps BootstrapDeps) {
	if err := RunClear(ctx, deps.Persistence, deps.Keys); err != nil {
		warn(deps.Warn, "goSession: discarding partial credentials failed: %v", err)
	}
}
