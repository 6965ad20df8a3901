package flows

import (
	"context"
	"errors"
	"fmt"
)

type scope uint8

const (
	scopeSecure scope = iota
	scopePlain
)

func (s scope) String() string {
	if s == scopePlain {
		return "plain"
	}
	return "secure"
}

type entry struct {
	scope   scope
	key     string
	value   string
	present bool
	corrupt bool
}

// CommitDeps captures persistence commit dependencies.
type CommitDeps struct {
	Persistence Persistence
	Keys        Keys
	Warn        func(string, ...any)
}

// CommitError identifies the write that failed and whether the prior entries
// were restored.
type CommitError struct {
	Op          string
	Key         string
	Err         error
	RollbackErr error
}

func (e *CommitError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("%s %s: %v (rollback: %v)", e.Op, e.Key, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Clean reports whether persistence was left as it was before the commit,
// either because no write happened or because every write was undone.
func (e *CommitError) Clean() bool {
	return e != nil && e.RollbackErr == nil
}

// RunCommit writes sess to persistence as a unit: access token and refresh
// token to the secure store, profile to the plain store. When sess carries no
// refresh token any stored one is removed. The prior value of each entry is
// snapshotted first and restored if any write fails, so a failed commit leaves
// persistence as it was. An unreadable entry snapshots as absent. Writes are not abandoned on ctx cancellation.
func RunCommit(ctx context.Context, sess *Session, deps CommitDeps) *CommitError {
	ctx = context.WithoutCancel(ctx)

	profile, err := EncodeProfile(sess.Profile())
	if err != nil {
		return &CommitError{Op: "encode", Key: deps.Keys.Profile, Err: err}
	}

	next := []entry{
		{scope: scopeSecure, key: deps.Keys.AccessToken, value: sess.AccessToken, present: true},
		{scope: scopeSecure, key: deps.Keys.RefreshToken, value: sess.RefreshToken, present: sess.RefreshToken != ""},
		{scope: scopePlain, key: deps.Keys.Profile, value: profile, present: true},
	}

	prior := make([]entry, 0, len(next))
	for _, e := range next {
		snap, err := read(ctx, deps.Persistence, e.scope, e.key)
		if err != nil {
			return &CommitError{Op: "snapshot", Key: e.key, Err: err}
		}
		prior = append(prior, snap)
	}

	for i, e := range next {
		if err := apply(ctx, deps.Persistence, e); err != nil {
			var rollbackErr error
			for j := i; j >= 0; j-- {
				if rerr := apply(ctx, deps.Persistence, prior[j]); rerr != nil {
					warn(deps.Warn, "goSession: rollback of %s key %q failed", prior[j].scope, prior[j].key)
					rollbackErr = errors.Join(rollbackErr, rerr)
				}
			}
			return &CommitError{Op: "write", Key: e.key, Err: err, RollbackErr: rollbackErr}
		}
	}

	return nil
}

// RunClear deletes every key from both stores. All deletions are attempted;
// the joined error reports the ones that failed.
func RunClear(ctx context.Context, p Persistence, keys Keys) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, key := range []string{keys.AccessToken, keys.RefreshToken, keys.Profile} {
		if err := p.DeleteSecure(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete secure %q: %w", key, err))
		}
		if err := p.DeletePlain(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete plain %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func read(ctx context.Context, p Persistence, s scope, key string) (entry, error) {
	var (
		value string
		ok    bool
		err   error
	)
	if s == scopePlain {
		value, ok, err = p.GetPlain(ctx, key)
	} else {
		value, ok, err = p.GetSecure(ctx, key)
	}
	switch {
	case errors.Is(err, ErrCorruptValue):
		return entry{scope: s, key: key, corrupt: true}, nil
	case err != nil:
		return entry{}, err
	}
	return entry{scope: s, key: key, value: value, present: ok}, nil
}

func apply(ctx context.Context, p Persistence, e entry) error {
	switch {
	case e.scope == scopePlain && e.present:
		return p.SetPlain(ctx, e.key, e.value)
	case e.scope == scopePlain:
		return p.DeletePlain(ctx, e.key)
	case e.present:
		return p.SetSecure(ctx, e.key, e.value)
	default:
		return p.DeleteSecure(ctx, e.key)
	}
}
