package flows

import (
	"context"
	"errors"
)

// Persistence is the split key/value surface every flow reads and writes.
// Absent keys report ok=false with a nil error.
type Persistence interface {
	GetSecure(ctx context.Context, key string) (string, bool, error)
	SetSecure(ctx context.Context, key, value string) error
	DeleteSecure(ctx context.Context, key string) error
	GetPlain(ctx context.Context, key string) (string, bool, error)
	SetPlain(ctx context.Context, key, value string) error
	DeletePlain(ctx context.Context, key string) error
}

// ErrCorruptValue marks an entry that exists but can never be read back, such
// as a value sealed under a rotated key. Flows treat it as absent and
// overwrite or delete it.
var ErrCorruptValue = errors.New("persisted value unreadable")

// Keys names the three persisted entries.
type Keys struct {
	AccessToken  string
	RefreshToken string
	Profile      string
}

// Deps groups flow dependency sets. The Store builds this once and hands the
// matching set to each flow.
type Deps struct {
	Bootstrap BootstrapDeps
	SignIn    SignInDeps
	SignUp    SignUpDeps
	Refresh   RefreshDeps
	SignOut   SignOutDeps
}

func warn(fn func(string, ...any), format string, args ...any) {
	if fn != nil {
		fn(format, args...)
	}
}
