package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

var testKeys = Keys{AccessToken: "authToken", RefreshToken: "refreshToken", Profile: "user"}

type memPersistence struct {
	mu       sync.Mutex
	secure   map[string]string
	plain    map[string]string
	failSet  map[string]bool
	failGet  bool
	failDel  bool
	setCalls int
	delCalls int
}

func newMem() *memPersistence {
	return &memPersistence{
		secure:  map[string]string{},
		plain:   map[string]string{},
		failSet: map[string]bool{},
	}
}

var errDisk = errors.New("disk full")

func (m *memPersistence) get(store map[string]string, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", false, errDisk
	}
	v, ok := store[key]
	return v, ok, nil
}

func (m *memPersistence) set(store map[string]string, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failSet[key] {
		return errDisk
	}
	store[key] = value
	return nil
}

func (m *memPersistence) del(store map[string]string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delCalls++
	if m.failDel {
		return errDisk
	}
	delete(store, key)
	return nil
}

func (m *memPersistence) GetSecure(_ context.Context, k string) (string, bool, error) {
	return m.get(m.secure, k)
}
func (m *memPersistence) SetSecure(_ context.Context, k, v string) error { return m.set(m.secure, k, v) }
func (m *memPersistence) DeleteSecure(_ context.Context, k string) error { return m.del(m.secure, k) }
func (m *memPersistence) GetPlain(_ context.Context, k string) (string, bool, error) {
	return m.get(m.plain, k)
}
func (m *memPersistence) SetPlain(_ context.Context, k, v string) error { return m.set(m.plain, k, v) }
func (m *memPersistence) DeletePlain(_ context.Context, k string) error { return m.del(m.plain, k) }

func (m *memPersistence) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secure) == 0 && len(m.plain) == 0
}

func seed(t *testing.T, m *memPersistence, s *Session) {
	t.Helper()
	if cerr := RunCommit(context.Background(), s, CommitDeps{Persistence: m, Keys: testKeys}); cerr != nil {
		t.Fatalf("seed commit: %v", cerr)
	}
}

func TestBootstrapRestoresSession(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u1", Email: "a@b.com", DisplayName: "a", AccessToken: "tok1", RefreshToken: "ref1"})

	res := RunBootstrap(context.Background(), BootstrapDeps{Persistence: m, Keys: testKeys})
	if res.Outcome != BootstrapRestored {
		t.Fatalf("expected restored, got %s", res.Outcome)
	}
	if res.Session.UserID != "u1" || res.Session.AccessToken != "tok1" || res.Session.RefreshToken != "ref1" {
		t.Fatalf("unexpected session %+v", res.Session)
	}
}

func TestBootstrapPartialIsClearedAndEmptyAfter(t *testing.T) {
	m := newMem()
	m.secure["authToken"] = "tok1"

	res := RunBootstrap(context.Background(), BootstrapDeps{Persistence: m, Keys: testKeys})
	if res.Outcome != BootstrapPartial || res.Session != nil {
		t.Fatalf("expected partial without session, got %s %+v", res.Outcome, res.Session)
	}
	if !m.empty() {
		t.Fatalf("expected partial data discarded")
	}

	again := RunBootstrap(context.Background(), BootstrapDeps{Persistence: m, Keys: testKeys})
	if again.Session != nil {
		t.Fatalf("expected no session on second bootstrap")
	}
}

func TestBootstrapCorruptProfile(t *testing.T) {
	m := newMem()
	m.secure["authToken"] = "tok1"
	m.plain["user"] = "{not json"

	res := RunBootstrap(context.Background(), BootstrapDeps{Persistence: m, Keys: testKeys})
	if res.Outcome != BootstrapCorrupt || !errors.Is(res.Err, ErrProfileCorrupt) {
		t.Fatalf("expected corrupt, got %s %v", res.Outcome, res.Err)
	}
}

func TestBootstrapReadFailureLeavesData(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u1", AccessToken: "tok1"})
	m.failGet = true

	res := RunBootstrap(context.Background(), BootstrapDeps{Persistence: m, Keys: testKeys})
	if res.Outcome != BootstrapReadFailed || res.Session != nil {
		t.Fatalf("expected read failure, got %s", res.Outcome)
	}
	m.failGet = false
	if _, ok, _ := m.GetSecure(context.Background(), "authToken"); !ok {
		t.Fatalf("read failure must not discard credentials")
	}
}

func TestCommitRollbackRestoresPriorEntries(t *testing.T) {
	for _, failing := range []string{"authToken", "refreshToken", "user"} {
		t.Run(failing, func(t *testing.T) {
			m := newMem()
			m.failSet[failing] = true

			cerr := RunCommit(context.Background(),
				&Session{UserID: "u1", AccessToken: "tok1", RefreshToken: "ref1"},
				CommitDeps{Persistence: m, Keys: testKeys})
			if cerr == nil {
				t.Fatalf("expected commit error")
			}
			if !cerr.Clean() || !errors.Is(cerr, errDisk) {
				t.Fatalf("expected clean rollback, got %v", cerr)
			}
			if !m.empty() {
				t.Fatalf("expected no entries left, secure=%v plain=%v", m.secure, m.plain)
			}
		})
	}
}

func TestCommitRollbackKeepsPreviousSession(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u0", AccessToken: "old", RefreshToken: "oldref"})
	m.failSet["user"] = true

	cerr := RunCommit(context.Background(), &Session{UserID: "u1", AccessToken: "new"},
		CommitDeps{Persistence: m, Keys: testKeys})
	if cerr == nil {
		t.Fatalf("expected commit error")
	}
	if m.secure["authToken"] != "old" || m.secure["refreshToken"] != "oldref" {
		t.Fatalf("prior credentials not restored: %v", m.secure)
	}
}

func TestCommitWithoutRefreshTokenRemovesStaleOne(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u0", AccessToken: "old", RefreshToken: "oldref"})

	if cerr := RunCommit(context.Background(), &Session{UserID: "u1", AccessToken: "new"},
		CommitDeps{Persistence: m, Keys: testKeys}); cerr != nil {
		t.Fatalf("commit: %v", cerr)
	}
	if _, ok := m.secure["refreshToken"]; ok {
		t.Fatalf("stale refresh token survived")
	}
}

func TestSignInIdentityFailureWritesNothing(t *testing.T) {
	m := newMem()
	res := RunSignIn(context.Background(), "a@b.com", "pw123456", SignInDeps{
		Identity: func(context.Context, string, string) (*Session, error) {
			return nil, errors.New("Invalid login credentials")
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureIdentity {
		t.Fatalf("expected identity failure, got %v", res.Failure)
	}
	if m.setCalls != 0 {
		t.Fatalf("expected no writes, got %d", m.setCalls)
	}
}

func TestSignInMalformedPayload(t *testing.T) {
	m := newMem()
	res := RunSignIn(context.Background(), "a@b.com", "pw123456", SignInDeps{
		Identity: func(context.Context, string, string) (*Session, error) {
			return &Session{UserID: "u1"}, nil
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureMalformed || !errors.Is(res.Err, ErrMalformedSession) {
		t.Fatalf("expected malformed, got %v %v", res.Failure, res.Err)
	}
}

func TestSignUpValidationSkipsIdentity(t *testing.T) {
	calls := 0
	res := RunSignUp(context.Background(), SignUpRequest{}, SignUpDeps{
		Validate: func() error { return errors.New("Passwords do not match") },
		Identity: func(context.Context, string, string, string) (SignUpOutcome, error) {
			calls++
			return SignUpOutcome{}, nil
		},
	})
	if res.Failure != FailureValidation || calls != 0 {
		t.Fatalf("expected validation failure with zero calls, got %v calls=%d", res.Failure, calls)
	}
}

func TestSignUpPendingWritesNothing(t *testing.T) {
	m := newMem()
	res := RunSignUp(context.Background(), SignUpRequest{Email: "a@b.com"}, SignUpDeps{
		Identity: func(context.Context, string, string, string) (SignUpOutcome, error) {
			return SignUpOutcome{Message: "check your email"}, nil
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureNone || !res.Outcome.Pending() || res.Outcome.Message != "check your email" {
		t.Fatalf("unexpected result %+v", res)
	}
	if m.setCalls != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestRefreshKeepsUnrotatedTokenAndProfile(t *testing.T) {
	m := newMem()
	current := &Session{UserID: "u1", Email: "a@b.com", DisplayName: "A", AccessToken: "tok1", RefreshToken: "ref1"}
	seed(t, m, current)

	res := RunRefresh(context.Background(), current, RefreshDeps{
		Identity: func(_ context.Context, token string) (*Session, error) {
			if token != "ref1" {
				t.Fatalf("unexpected refresh token %q", token)
			}
			return &Session{AccessToken: "tok2"}, nil
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureNone {
		t.Fatalf("refresh failed: %v", res.Err)
	}
	if res.Rotated || res.Session.RefreshToken != "ref1" || res.Session.DisplayName != "A" {
		t.Fatalf("unexpected session %+v", res.Session)
	}
	if m.secure["authToken"] != "tok2" {
		t.Fatalf("access token not persisted")
	}
}

func TestRefreshFailureClears(t *testing.T) {
	m := newMem()
	current := &Session{UserID: "u1", AccessToken: "tok1", RefreshToken: "ref1"}
	seed(t, m, current)

	res := RunRefresh(context.Background(), current, RefreshDeps{
		Identity: func(context.Context, string) (*Session, error) {
			return nil, errors.New("Invalid Refresh Token")
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureIdentity {
		t.Fatalf("expected identity failure, got %v", res.Failure)
	}
	if !m.empty() {
		t.Fatalf("expected persistence cleared")
	}
}

func TestRefreshWithoutTokenNeverCallsIdentity(t *testing.T) {
	m := newMem()
	calls := 0
	res := RunRefresh(context.Background(), &Session{UserID: "u1", AccessToken: "tok1"}, RefreshDeps{
		Identity: func(context.Context, string) (*Session, error) {
			calls++
			return nil, nil
		},
		Commit: CommitDeps{Persistence: m, Keys: testKeys},
	})
	if res.Failure != FailureNoRefreshToken || !errors.Is(res.Err, ErrNoRefreshToken) || calls != 0 {
		t.Fatalf("unexpected result %+v calls=%d", res, calls)
	}
}

func TestSignOutClearsDespiteRemoteFailure(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u1", AccessToken: "tok1", RefreshToken: "ref1"})

	var warned int
	res := RunSignOut(context.Background(), "tok1", SignOutDeps{
		Identity:    func(context.Context, string) error { return errors.New("offline") },
		Persistence: m,
		Keys:        testKeys,
		Warn:        func(string, ...any) { warned++ },
	})
	if res.RemoteErr == nil || res.ClearErr != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if !m.empty() || warned != 1 {
		t.Fatalf("expected cleared stores and one warning, warned=%d", warned)
	}
}

func TestSignOutOnEmptyStoresIsNotAnError(t *testing.T) {
	m := newMem()
	res := RunSignOut(context.Background(), "", SignOutDeps{Persistence: m, Keys: testKeys})
	if res.ClearErr != nil || res.RemoteErr != nil {
		t.Fatalf("unexpected errors %+v", res)
	}
	if m.delCalls != 6 {
		t.Fatalf("expected six deletions, got %d", m.delCalls)
	}
}

// unreadable wraps memPersistence and reports the named secure keys as
// present but undecodable.
type unreadable struct {
	*memPersistence
	keys map[string]bool
}

func (u unreadable) GetSecure(ctx context.Context, k string) (string, bool, error) {
	if u.keys[k] {
		return "", false, fmt.Errorf("sealed: %w", ErrCorruptValue)
	}
	return u.memPersistence.GetSecure(ctx, k)
}

func TestBootstrapDiscardsUnreadableEntries(t *testing.T) {
	m := newMem()
	seed(t, m, &Session{UserID: "u1", AccessToken: "tok1", RefreshToken: "ref1"})
	p := unreadable{memPersistence: m, keys: map[string]bool{"refreshToken": true}}

	res := RunBootstrap(context.Background(), BootstrapDeps{Persistence: p, Keys: testKeys})
	if res.Outcome != BootstrapCorrupt || res.Session != nil || !errors.Is(res.Err, ErrCorruptValue) {
		t.Fatalf("expected corrupt outcome, got %s %v", res.Outcome, res.Err)
	}
	if !m.empty() {
		t.Fatalf("expected unreadable credentials discarded")
	}
}

func TestCommitTreatsUnreadableEntryAsAbsent(t *testing.T) {
	m := newMem()
	m.secure["authToken"] = "sealed-garbage"
	p := unreadable{memPersistence: m, keys: map[string]bool{"authToken": true}}

	if cerr := RunCommit(context.Background(), &Session{UserID: "u1", AccessToken: "tok1"},
		CommitDeps{Persistence: p, Keys: testKeys}); cerr != nil {
		t.Fatalf("commit over unreadable entry: %v", cerr)
	}
	if m.secure["authToken"] != "tok1" {
		t.Fatalf("expected token overwritten, got %q", m.secure["authToken"])
	}

	m.failSet["user"] = true
	delete(m.plain, "user")
	m.secure["authToken"] = "sealed-garbage"
	cerr := RunCommit(context.Background(), &Session{UserID: "u1", AccessToken: "tok2"},
		CommitDeps{Persistence: p, Keys: testKeys})
	if cerr == nil || !cerr.Clean() {
		t.Fatalf("expected clean rollback, got %v", cerr)
	}
	if _, ok := m.secure["authToken"]; ok {
		t.Fatalf("rollback must remove the unreadable entry, not restore it")
	}
}
