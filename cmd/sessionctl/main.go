// Command sessionctl drives a goSession store from the command line.
//
// Sessions persist in Redis between invocations, so "signin" followed by
// "status" in a new process restores the session. The identity service is a
// Supabase-style REST authority at SESSION_IDENTITY_URL. "demo" needs neither:
// it runs the whole lifecycle against an in-process Redis and the local
// authority.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity/rest"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/persist"
	"github.com/redis/go-redis/v9"
)

const usage = `usage: sessionctl [-env file] [-metrics] <command> [flags]

commands:
  status                          restore and print the persisted session
  signin  -email E -password P    sign in and persist the session
  signup  -email E -password P [-confirm C] [-name N]
  signout                         clear the session locally and remotely
  refresh                         rotate the access token
  token                           print a fresh access token
  demo                            run the lifecycle against in-process Redis
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessionctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	envFile := fs.String("env", ".env", "optional env file")
	showMetrics := fs.Bool("metrics", false, "print Prometheus metrics after the command")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := log.New(stderr, "sessionctl: ", 0)
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "demo" {
		store, err := runDemo(ctx, stdout, logger.Printf)
		if err != nil {
			logger.Printf("demo: %v", err)
			return 1
		}
		if *showMetrics {
			fmt.Fprint(stdout, prometheus.NewPrometheusExporter(store).Render())
		}
		return 0
	}

	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		logger.Print(err)
		return 1
	}
	store, cleanup, err := openStore(cfg, *showMetrics, logger.Printf)
	if err != nil {
		logger.Print(err)
		return 1
	}
	defer cleanup()

	store.Bootstrap(ctx)
	if err := handler(ctx, store, cmdArgs, stdout); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		logger.Printf("%s: %v", cmd, err)
		return 1
	}

	if *showMetrics {
		fmt.Fprint(stdout, prometheus.NewPrometheusExporter(store).Render())
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

type command func(ctx context.Context, store *goSession.Store, args []string, w io.Writer) error

var commands = map[string]command{
	"status":  statusCmd,
	"signin":  signInCmd,
	"signup":  signUpCmd,
	"signout": signOutCmd,
	"refresh": refreshCmd,
	"token":   tokenCmd,
}

// openStore wires Redis persistence, optionally sealing the token scope, and
// the REST identity client.
func openStore(cfg *cliConfig, metrics bool, logf func(string, ...any)) (*goSession.Store, func(), error) {
	if cfg.IdentityURL == "" {
		return nil, nil, errors.New("config: SESSION_IDENTITY_URL must be set")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{cfg.RedisAddr},
	})

	split := persist.NewRedisSplit(client, cfg.RedisPrefix, 0)
	if cfg.SealPassphrase != "" {
		sealed, err := persist.NewSealedKV(split.Secure, []byte(cfg.SealPassphrase), []byte(cfg.SealSalt), persist.DefaultSealParams())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		split.Secure = sealed
	}

	sc := goSession.DefaultConfig()
	sc.Identity.Timeout = cfg.Timeout()

	store, err := goSession.New().
		WithConfig(sc).
		WithPersistence(split).
		WithIdentityService(rest.NewClient(cfg.IdentityURL, cfg.IdentityAPIKey)).
		WithMetricsEnabled(metrics).
		WithLatencyHistograms(metrics).
		WithLogger(logf).
		Build()
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return store, func() {
		store.Close()
		_ = client.Close()
	}, nil
}

func statusCmd(_ context.Context, store *goSession.Store, _ []string, w io.Writer) error {
	printState(w, store.State())
	return nil
}

func signInCmd(ctx context.Context, store *goSession.Store, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", os.Getenv("SESSION_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return usageError("signin: " + err.Error())
	}

	if _, err := store.SignIn(ctx, goSession.Credentials{Email: *email, Secret: *password}); err != nil {
		return err
	}
	printState(w, store.State())
	return nil
}

func signUpCmd(ctx context.Context, store *goSession.Store, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", os.Getenv("SESSION_PASSWORD"), "account password")
	confirm := fs.String("confirm", "", "password confirmation; defaults to -password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return usageError("signup: " + err.Error())
	}
	if *confirm == "" {
		*confirm = *password
	}

	out, err := store.SignUp(ctx, goSession.SignUpRequest{
		Email:         *email,
		Secret:        *password,
		ConfirmSecret: *confirm,
		DisplayName:   *name,
	})
	if err != nil {
		return err
	}
	if out.Message != "" {
		fmt.Fprintln(w, out.Message)
	}
	printState(w, store.State())
	return nil
}

func signOutCmd(ctx context.Context, store *goSession.Store, _ []string, w io.Writer) error {
	store.SignOut(ctx)
	printState(w, store.State())
	return nil
}

func refreshCmd(ctx context.Context, store *goSession.Store, _ []string, w io.Writer) error {
	if _, err := store.Refresh(ctx); err != nil {
		return err
	}
	printState(w, store.State())
	return nil
}

func tokenCmd(ctx context.Context, store *goSession.Store, _ []string, w io.Writer) error {
	sess, err := store.EnsureFresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, sess.AccessToken)
	return nil
}

func printState(w io.Writer, st goSession.State) {
	fmt.Fprintf(w, "phase: %s\n", st.Phase)
	if st.Session == nil {
		return
	}
	fmt.Fprintf(w, "user:  %s <%s>\n", st.Session.DisplayName, st.Session.Email)
	fmt.Fprintf(w, "id:    %s\n", st.Session.UserID)
}
