package goSession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

var errDisk = errors.New("disk full")

type fakePersistence struct {
	mu       sync.Mutex
	secure   map[string]string
	plain    map[string]string
	failSet  map[string]bool
	failNext map[string]bool
	failGet  bool
	failDel  bool
	onSet    func(key string)
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		secure:   map[string]string{},
		plain:    map[string]string{},
		failSet:  map[string]bool{},
		failNext: map[string]bool{},
	}
}

func (p *fakePersistence) get(store map[string]string, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failGet {
		return "", false, errDisk
	}
	v, ok := store[key]
	return v, ok, nil
}

func (p *fakePersistence) set(store map[string]string, key, value string) error {
	p.mu.Lock()
	fail := p.failSet[key] || p.failNext[key]
	delete(p.failNext, key)
	if !fail {
		store[key] = value
	}
	onSet := p.onSet
	p.mu.Unlock()
	if onSet != nil {
		onSet(key)
	}
	if fail {
		return errDisk
	}
	return nil
}

func (p *fakePersistence) del(store map[string]string, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDel {
		return errDisk
	}
	delete(store, key)
	return nil
}

func (p *fakePersistence) GetSecure(_ context.Context, k string) (string, bool, error) {
	return p.get(p.secure, k)
}
func (p *fakePersistence) SetSecure(_ context.Context, k, v string) error { return p.set(p.secure, k, v) }
func (p *fakePersistence) DeleteSecure(_ context.Context, k string) error { return p.del(p.secure, k) }
func (p *fakePersistence) GetPlain(_ context.Context, k string) (string, bool, error) {
	return p.get(p.plain, k)
}
func (p *fakePersistence) SetPlain(_ context.Context, k, v string) error { return p.set(p.plain, k, v) }
func (p *fakePersistence) DeletePlain(_ context.Context, k string) error { return p.del(p.plain, k) }

func (p *fakePersistence) secureValue(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.secure[key]
	return v, ok
}

func (p *fakePersistence) plainValue(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.plain[key]
	return v, ok
}

func (p *fakePersistence) empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.secure) == 0 && len(p.plain) == 0
}

func (p *fakePersistence) failWrites(key string, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSet[key] = fail
}

// failNextWrite fails only the next write of key.
func (p *fakePersistence) failNextWrite(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext[key] = true
}

func (p *fakePersistence) setFailGet(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failGet = fail
}

func (p *fakePersistence) setFailDel(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDel = fail
}

func encodeTestProfile(sess *Session) (string, error) {
	return flows.EncodeProfile(sess.Profile())
}

// seed writes sess the way a committed sign-in would.
func (p *fakePersistence) seed(t *testing.T, sess *Session) {
	t.Helper()
	raw, err := encodeTestProfile(sess)
	if err != nil {
		t.Fatalf("encode profile: %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secure["authToken"] = sess.AccessToken
	if sess.RefreshToken != "" {
		p.secure["refreshToken"] = sess.RefreshToken
	}
	p.plain["user"] = raw
}

type messageErr struct {
	msg string
}

func (e *messageErr) Error() string       { return "identity: " + e.msg }
func (e *messageErr) UserMessage() string { return e.msg }

type fakeIdentity struct {
	signIn  func(ctx context.Context, email, secret string) (*Session, error)
	signUp  func(ctx context.Context, email, secret, name string) (SignUpOutcome, error)
	refresh func(ctx context.Context, token string) (*Session, error)
	signOut func(ctx context.Context, token string) error

	signInCalls  atomic.Int32
	signUpCalls  atomic.Int32
	refreshCalls atomic.Int32
	signOutCalls atomic.Int32
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, secret string) (*Session, error) {
	f.signInCalls.Add(1)
	if f.signIn == nil {
		return nil, &messageErr{msg: "Invalid login credentials"}
	}
	return f.signIn(ctx, email, secret)
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, secret, name string) (SignUpOutcome, error) {
	f.signUpCalls.Add(1)
	if f.signUp == nil {
		return SignUpOutcome{}, &messageErr{msg: "Signups not allowed"}
	}
	return f.signUp(ctx, email, secret, name)
}

func (f *fakeIdentity) Refresh(ctx context.Context, token string) (*Session, error) {
	f.refreshCalls.Add(1)
	if f.refresh == nil {
		return nil, &messageErr{msg: "Invalid Refresh Token"}
	}
	return f.refresh(ctx, token)
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	f.signOutCalls.Add(1)
	if f.signOut == nil {
		return nil
	}
	return f.signOut(ctx, token)
}

func staticSession(sess Session) func(context.Context, string, string) (*Session, error) {
	return func(context.Context, string, string) (*Session, error) {
		out := sess
		return &out, nil
	}
}

// blockingSignIn parks until ctx is done and reports entry on entered.
func blockingSignIn(entered chan<- struct{}) func(context.Context, string, string) (*Session, error) {
	return func(ctx context.Context, _, _ string) (*Session, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type testStoreOption func(*Builder)

func newTestStore(t *testing.T, p *fakePersistence, id *fakeIdentity, opts ...testStoreOption) *Store {
	t.Helper()

	b := New().
		WithPersistence(p).
		WithIdentityService(id).
		WithMetricsEnabled(true).
		WithLogger(t.Logf)
	for _, opt := range opts {
		opt(b)
	}

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func bootstrapped(t *testing.T, p *fakePersistence, id *fakeIdentity, opts ...testStoreOption) *Store {
	t.Helper()
	s := newTestStore(t, p, id, opts...)
	s.Bootstrap(context.Background())
	return s
}

func withConfig(mutate func(*Config)) testStoreOption {
	return func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Metrics.Enabled = true
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertCleared(t *testing.T, p *fakePersistence) {
	t.Helper()
	for _, key := range []string{"authToken", "refreshToken", "user"} {
		if _, ok := p.secureValue(key); ok {
			t.Fatalf("secure store still holds %q", key)
		}
		if _, ok := p.plainValue(key); ok {
			t.Fatalf("plain store still holds %q", key)
		}
	}
}
