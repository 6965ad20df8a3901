package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity/local"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/persist"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-pass-1"
)

// runDemo walks one account through sign-up, refresh, a process restart,
// sign-out and sign-in. It returns the second store so callers can read its
// metrics.
func runDemo(ctx context.Context, w io.Writer, logf func(string, ...any)) (*goSession.Store, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start miniredis: %w", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	authority, err := newDemoAuthority(client)
	if err != nil {
		return nil, err
	}
	split, err := newDemoPersistence(client)
	if err != nil {
		return nil, err
	}

	open := func() (*goSession.Store, error) {
		return goSession.New().
			WithPersistence(split).
			WithIdentityService(authority).
			WithMetricsEnabled(true).
			WithLatencyHistograms(true).
			WithLogger(logf).
			Build()
	}

	first, err := open()
	if err != nil {
		return nil, err
	}
	first.Bootstrap(ctx)
	step(w, "bootstrap", first.State())

	out, err := first.SignUp(ctx, goSession.SignUpRequest{
		Email:         demoEmail,
		Secret:        demoPassword,
		ConfirmSecret: demoPassword,
		DisplayName:   "Demo User",
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	fmt.Fprintf(w, "sign up: %s\n", out.Message)
	step(w, "sign up", first.State())

	before := out.Session.RefreshToken
	refreshed, err := first.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if refreshed.RefreshToken == before {
		return nil, errors.New("refresh: token was not rotated")
	}
	step(w, "refresh", first.State())
	first.Close()

	second, err := open()
	if err != nil {
		return nil, err
	}
	defer second.Close()
	second.Bootstrap(ctx)
	step(w, "restart", second.State())
	if !second.State().IsAuthenticated() {
		return nil, errors.New("restart: persisted session was not restored")
	}

	second.SignOut(ctx)
	step(w, "sign out", second.State())
	live, err := authority.LiveSessions(ctx, demoEmail)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "sign out: %d remote sessions remain\n", live)

	if _, err := second.SignIn(ctx, goSession.Credentials{Email: demoEmail, Secret: "wrong-pass"}); err != nil {
		fmt.Fprintf(w, "sign in: rejected: %v\n", err)
	} else {
		return nil, errors.New("sign in: wrong password accepted")
	}

	if _, err := second.SignIn(ctx, goSession.Credentials{Email: demoEmail, Secret: demoPassword}); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	step(w, "sign in", second.State())

	second.SignOut(ctx)
	step(w, "sign out", second.State())
	return second, nil
}

func step(w io.Writer, name string, st goSession.State) {
	if st.Session == nil {
		fmt.Fprintf(w, "%s: %s\n", name, st.Phase)
		return
	}
	fmt.Fprintf(w, "%s: %s as %s <%s>\n", name, st.Phase, st.Session.DisplayName, st.Session.Email)
}

func newDemoAuthority(client redis.UniversalClient) (*local.Authority, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
		Issuer:        "sessionctl-demo",
	})
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewArgon2(password.Config{
		Memory:      16 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return nil, err
	}
	return local.New(client, tokens, hasher, local.DefaultConfig())
}

// newDemoPersistence stores the profile in the clear and seals tokens under a
// throwaway passphrase.
func newDemoPersistence(client redis.UniversalClient) (*persist.Split, error) {
	secret := make([]byte, 48)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	split := persist.NewRedisSplit(client, "demo", time.Hour)
	sealed, err := persist.NewSealedKV(split.Secure, secret[:32], secret[32:], persist.SealParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1})
	if err != nil {
		return nil, err
	}
	split.Secure = sealed
	return split, nil
}
