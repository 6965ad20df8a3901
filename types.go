package goSession

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// Session is the authenticated identity held client-side: UserID, Email,
// DisplayName, AvatarURL, AccessToken and the optional RefreshToken.
type Session = flows.Session

// Profile is the non-sensitive part of a [Session], cached in the plain store
// as JSON ({"id","email","name","avatar"}).
type Profile = flows.Profile

// SignUpOutcome is the tagged result of [Store.SignUp]: either Session is set,
// or Pending reports true and Message carries the confirmation notice.
type SignUpOutcome = flows.SignUpOutcome

// Phase is the lifecycle position of a [Store].
type Phase uint8

const (
	// PhaseBootstrapping is the initial phase; persistence has not been read.
	PhaseBootstrapping Phase = iota
	// PhaseUnauthenticated holds no session.
	PhaseUnauthenticated
	// PhaseAuthenticated holds a committed session.
	PhaseAuthenticated
	// PhaseRefreshing holds the prior session while a refresh is in flight.
	PhaseRefreshing
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of the store. Session is non-nil iff Phase is
// PhaseAuthenticated or PhaseRefreshing. Session is a copy; mutating it does
// not affect the store.
type State struct {
	Phase   Phase
	Session *Session
}

// HasCheckedAuth reports whether persistence has been consulted.
func (s State) HasCheckedAuth() bool {
	return s.Phase != PhaseBootstrapping
}

// IsAuthenticated reports whether a usable session is held. A refreshing
// session is still usable.
func (s State) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated || s.Phase == PhaseRefreshing
}

// Credentials is an e-mail and secret pair for [Store.SignIn].
type Credentials struct {
	Email  string
	Secret string
}

// SignUpRequest is the registration input for [Store.SignUp].
type SignUpRequest struct {
	Email         string
	Secret        string
	ConfirmSecret string
	DisplayName   string
}

// CredentialPersistence is scoped key/value storage split into a sensitive
// store for tokens and a plain store for the profile cache. Get reports
// ok=false with a nil error for absent keys, and Delete of an absent key is a
// no-op. Each single-key read and write must be atomic.
type CredentialPersistence interface {
	GetSecure(ctx context.Context, key string) (string, bool, error)
	SetSecure(ctx context.Context, key, value string) error
	DeleteSecure(ctx context.Context, key string) error
	GetPlain(ctx context.Context, key string) (string, bool, error)
	SetPlain(ctx context.Context, key, value string) error
	DeletePlain(ctx context.Context, key string) error
}

// IdentityService is the remote authority that issues sessions. Implementations
// normalize their wire shapes into [Session] before returning.
type IdentityService interface {
	SignIn(ctx context.Context, email, secret string) (*Session, error)
	SignUp(ctx context.Context, email, secret, displayName string) (SignUpOutcome, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// IdentitySignOuter is implemented by identity services that accept a
// best-effort remote sign-out.
type IdentitySignOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}

// MessageError is implemented by identity errors that carry a message meant
// for the user.
type MessageError interface {
	error
	UserMessage() string
}

// AuditEvent is one structured audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies one counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricBootstrapRestored    = MetricID(internalmetrics.MetricBootstrapRestored)
	MetricBootstrapEmpty       = MetricID(internalmetrics.MetricBootstrapEmpty)
	MetricBootstrapCorrupt     = MetricID(internalmetrics.MetricBootstrapCorrupt)
	MetricSignInSuccess        = MetricID(internalmetrics.MetricSignInSuccess)
	MetricSignInFailure        = MetricID(internalmetrics.MetricSignInFailure)
	MetricSignUpSuccess        = MetricID(internalmetrics.MetricSignUpSuccess)
	MetricSignUpPending        = MetricID(internalmetrics.MetricSignUpPending)
	MetricSignUpRejected       = MetricID(internalmetrics.MetricSignUpRejected)
	MetricSignUpFailure        = MetricID(internalmetrics.MetricSignUpFailure)
	MetricSignOut              = MetricID(internalmetrics.MetricSignOut)
	MetricRemoteSignOutFailure = MetricID(internalmetrics.MetricRemoteSignOutFailure)
	MetricRefreshSuccess       = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure       = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshNoToken       = MetricID(internalmetrics.MetricRefreshNoToken)
	MetricPersistenceFailure   = MetricID(internalmetrics.MetricPersistenceFailure)
	MetricPersistenceRollback  = MetricID(internalmetrics.MetricPersistenceRollback)
	MetricOperationRejected    = MetricID(internalmetrics.MetricOperationRejected)
	MetricIdentityLatency      = MetricID(internalmetrics.MetricIdentityLatency)
)

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot
