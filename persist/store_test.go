package persist

import (
	"context"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

type fixedIdentity struct{}

func (fixedIdentity) SignIn(_ context.Context, email, _ string) (*goSession.Session, error) {
	return &goSession.Session{UserID: "u1", Email: email, DisplayName: "Jay", AccessToken: "tok-new", RefreshToken: "ref-new"}, nil
}

func (fixedIdentity) SignUp(context.Context, string, string, string) (goSession.SignUpOutcome, error) {
	return goSession.SignUpOutcome{Message: "pending"}, nil
}

func (fixedIdentity) Refresh(context.Context, string) (*goSession.Session, error) {
	return nil, goSession.ErrNoRefreshToken
}

func TestStoreRecoversFromRotatedSealPassphrase(t *testing.T) {
	ctx := context.Background()
	inner, plain := NewMemoryKV(), NewMemoryKV()

	old, err := NewSealedKV(inner, []byte("old-pass"), testSalt(), fastParams())
	if err != nil {
		t.Fatalf("old sealed kv: %v", err)
	}
	_ = old.Set(ctx, "authToken", "tok-old")
	_ = old.Set(ctx, "refreshToken", "ref-old")
	_ = plain.Set(ctx, "user", `{"id":"u0","email":"a@b.com","name":"Old"}`)

	rotated, err := NewSealedKV(inner, []byte("new-pass"), testSalt(), fastParams())
	if err != nil {
		t.Fatalf("new sealed kv: %v", err)
	}
	store, err := goSession.New().
		WithPersistence(NewSplit(rotated, plain)).
		WithIdentityService(fixedIdentity{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	store.Bootstrap(ctx)
	if st := store.State(); st.Phase != goSession.PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated after bootstrap, got %s", st.Phase)
	}
	if inner.Len() != 0 || plain.Len() != 0 {
		t.Fatalf("unreadable credentials were not discarded: secure=%d plain=%d", inner.Len(), plain.Len())
	}

	for i := 0; i < 2; i++ {
		if _, err := store.SignIn(ctx, goSession.Credentials{Email: "a@b.com", Secret: "pw123456"}); err != nil {
			t.Fatalf("SignIn #%d: %v", i+1, err)
		}
	}
	if tok, _, err := rotated.Get(ctx, "authToken"); err != nil || tok != "tok-new" {
		t.Fatalf("expected new token sealed under the new passphrase, got %q %v", tok, err)
	}
}

func TestCommitOverwritesUnreadableEntryWithoutBootstrapCleanup(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryKV()
	_ = inner.Set(ctx, "authToken", "v1.garbage")

	sealed, err := NewSealedKV(inner, []byte("pass"), testSalt(), fastParams())
	if err != nil {
		t.Fatalf("sealed kv: %v", err)
	}
	store, err := goSession.New().
		WithPersistence(NewSplit(sealed, NewMemoryKV())).
		WithIdentityService(fixedIdentity{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()
	store.Bootstrap(ctx)

	// corrupted after bootstrap already ran
	_ = inner.Set(ctx, "authToken", "v1.garbage")
	if _, err := store.SignIn(ctx, goSession.Credentials{Email: "a@b.com", Secret: "pw123456"}); err != nil {
		t.Fatalf("SignIn over unreadable entry: %v", err)
	}
	if tok, _, err := sealed.Get(ctx, "authToken"); err != nil || tok != "tok-new" {
		t.Fatalf("unexpected token %q %v", tok, err)
	}
}
