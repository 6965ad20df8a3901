package goSession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/jwt"
)

// Store owns the authenticated-session state machine. It is created by
// [Builder.Build] in PhaseBootstrapping and must be bootstrapped once before
// SignIn, SignUp or Refresh are accepted.
//
// Operations never interleave. SignIn, SignUp and Refresh are rejected with
// ErrOperationInFlight while another operation runs; SignOut cancels the
// running operation and queues behind it.
type Store struct {
	config      Config
	persistence CredentialPersistence
	identity    IdentityService
	now         func() time.Time
	warn        func(string, ...any)
	audit       *internalaudit.Dispatcher
	metrics     *internalmetrics.Metrics
	flowDeps    flows.Deps

	opMu            sync.Mutex
	cancelMu        sync.Mutex
	cancelOp        context.CancelFunc
	opDone          chan struct{} // closed once the running operation releases opMu
	pendingSignOuts atomic.Int32

	mu           sync.RWMutex
	state        State
	bootstrapped bool
	mutated      bool
	closed       bool
	subs         map[uint64]*subscriber
	nextSubID    uint64
}

// State returns a snapshot of the current phase and session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Phase: s.state.Phase, Session: s.state.Session.Clone()}
}

// AccessToken returns the current access token while a session is held.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session == nil || s.state.Session.AccessToken == "" {
		return "", false
	}
	return s.state.Session.AccessToken, true
}

// Bootstrap restores a persisted session. Any read failure, partial data or
// undecodable profile resolves to PhaseUnauthenticated; Bootstrap never fails.
//
// Repeated calls before any other operation re-read persistence and converge
// on the same state. Once SignIn, SignUp, SignOut or Refresh has run,
// Bootstrap is a no-op.
func (s *Store) Bootstrap(ctx context.Context) {
	s.opMu.Lock()
	busy := s.markBusy()
	defer s.markIdle(busy)
	defer s.opMu.Unlock()

	s.mu.RLock()
	skip := s.mutated || s.closed
	from := s.state.Phase
	s.mu.RUnlock()
	if skip {
		return
	}

	res := flows.RunBootstrap(ctx, s.flowDeps.Bootstrap)

	next := State{Phase: PhaseUnauthenticated}
	switch res.Outcome {
	case flows.BootstrapRestored:
		next = State{Phase: PhaseAuthenticated, Session: res.Session}
		s.metrics.Inc(internalmetrics.MetricBootstrapRestored)
	case flows.BootstrapEmpty:
		s.metrics.Inc(internalmetrics.MetricBootstrapEmpty)
	default:
		s.metrics.Inc(internalmetrics.MetricBootstrapCorrupt)
		s.warn("goSession: bootstrap discarded persisted credentials (%s)", res.Outcome)
	}

	s.emitAudit(ctx, auditEventBootstrap, res.Outcome == flows.BootstrapRestored || res.Outcome == flows.BootstrapEmpty,
		userIDOf(next.Session), from, next.Phase, nil, map[string]string{"outcome": res.Outcome.String()})

	s.mu.Lock()
	s.bootstrapped = true
	s.setStateLocked(next)
	s.mu.Unlock()
}

// SignIn exchanges credentials for a session, commits it to persistence and
// then publishes PhaseAuthenticated. The caller validates field syntax.
//
// Failures leave state and persistence unchanged: a rejected remote call
// returns *AuthenticationError; a failed commit is rolled back and returns
// *PersistenceError.
func (s *Store) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	from := s.State().Phase
	email := strings.TrimSpace(creds.Email)
	res := flows.RunSignIn(opCtx, email, creds.Secret, s.flowDeps.SignIn)

	switch res.Failure {
	case flows.FailureNone:
		s.publish(State{Phase: PhaseAuthenticated, Session: res.Session})
		s.metrics.Inc(internalmetrics.MetricSignInSuccess)
		s.emitAudit(ctx, auditEventSignInSuccess, true, res.Session.UserID, from, PhaseAuthenticated, nil, nil)
		return res.Session.Clone(), nil
	case flows.FailureCommit:
		s.metrics.Inc(internalmetrics.MetricSignInFailure)
		return nil, s.commitFailure(ctx, "sign_in", from, res.Err)
	default:
		s.metrics.Inc(internalmetrics.MetricSignInFailure)
		authErr := authenticationError("sign_in", res.Err)
		s.emitAudit(ctx, auditEventSignInFailure, false, "", from, from, authErr, nil)
		return nil, authErr
	}
}

// SignUp validates req locally, registers remotely and, when the service
// issues a session immediately, commits it like SignIn. A pending outcome
// writes nothing and leaves the phase unchanged; its Message should be shown
// to the user.
func (s *Store) SignUp(ctx context.Context, req SignUpRequest) (SignUpOutcome, error) {
	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return SignUpOutcome{}, err
	}
	defer done()

	from := s.State().Phase
	deps := s.flowDeps.SignUp
	deps.Validate = func() error {
		return ValidateSignUp(s.config.Validation, req)
	}
	res := flows.RunSignUp(opCtx, flows.SignUpRequest{
		Email:       strings.TrimSpace(req.Email),
		Secret:      req.Secret,
		DisplayName: strings.TrimSpace(req.DisplayName),
	}, deps)

	switch res.Failure {
	case flows.FailureNone:
		if res.Outcome.Pending() {
			s.metrics.Inc(internalmetrics.MetricSignUpPending)
			s.emitAudit(ctx, auditEventSignUpPending, true, "", from, from, nil, nil)
			return res.Outcome, nil
		}
		s.publish(State{Phase: PhaseAuthenticated, Session: res.Outcome.Session})
		s.metrics.Inc(internalmetrics.MetricSignUpSuccess)
		s.emitAudit(ctx, auditEventSignUpSuccess, true, res.Outcome.Session.UserID, from, PhaseAuthenticated, nil, nil)
		return SignUpOutcome{Session: res.Outcome.Session.Clone(), Message: res.Outcome.Message}, nil
	case flows.FailureValidation:
		s.metrics.Inc(internalmetrics.MetricSignUpRejected)
		s.emitAudit(ctx, auditEventSignUpRejected, false, "", from, from, res.Err, nil)
		return SignUpOutcome{}, res.Err
	case flows.FailureCommit:
		s.metrics.Inc(internalmetrics.MetricSignUpFailure)
		return SignUpOutcome{}, s.commitFailure(ctx, "sign_up", from, res.Err)
	default:
		s.metrics.Inc(internalmetrics.MetricSignUpFailure)
		authErr := authenticationError("sign_up", res.Err)
		s.emitAudit(ctx, auditEventSignUpFailure, false, "", from, from, authErr, nil)
		return SignUpOutcome{}, authErr
	}
}

// SignOut clears both persistence stores and publishes PhaseUnauthenticated
// from any phase. A running operation is cancelled first. The remote sign-out
// is best-effort; its failure is logged and audited, never returned.
func (s *Store) SignOut(ctx context.Context) {
	s.pendingSignOuts.Add(1)
	s.cancelMu.Lock()
	if s.cancelOp != nil {
		s.cancelOp()
	}
	s.cancelMu.Unlock()

	s.opMu.Lock()
	s.pendingSignOuts.Add(-1)
	busy := s.markBusy()
	defer s.markIdle(busy)
	defer s.opMu.Unlock()

	prev := s.State()
	token := ""
	if prev.Session != nil {
		token = prev.Session.AccessToken
	}

	res := flows.RunSignOut(ctx, token, s.flowDeps.SignOut)
	if res.RemoteErr != nil {
		s.metrics.Inc(internalmetrics.MetricRemoteSignOutFailure)
	}
	if res.ClearErr != nil {
		s.metrics.Inc(internalmetrics.MetricPersistenceFailure)
	}
	s.metrics.Inc(internalmetrics.MetricSignOut)

	var meta map[string]string
	if res.RemoteErr != nil {
		meta = map[string]string{"remote": "failed"}
	}
	s.emitAudit(ctx, auditEventSignOut, res.ClearErr == nil, userIDOf(prev.Session), prev.Phase, PhaseUnauthenticated, res.ClearErr, meta)

	s.mu.Lock()
	s.bootstrapped = true
	s.mutated = true
	s.setStateLocked(State{Phase: PhaseUnauthenticated})
	s.mu.Unlock()
}

// Refresh exchanges the held refresh token for a new access token. While the
// call runs the phase is PhaseRefreshing and the prior session stays readable.
//
// Every failure signs the store out: persistence is cleared and
// PhaseUnauthenticated is published. Without a refresh token Refresh returns
// ErrNoRefreshToken without contacting the identity service.
func (s *Store) Refresh(ctx context.Context) (*Session, error) {
	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	prev := s.State()
	if prev.Session != nil && prev.Session.RefreshToken != "" {
		s.publish(State{Phase: PhaseRefreshing, Session: prev.Session})
	}

	res := flows.RunRefresh(opCtx, prev.Session, s.flowDeps.Refresh)
	if res.Failure == flows.FailureNone {
		s.publish(State{Phase: PhaseAuthenticated, Session: res.Session})
		s.metrics.Inc(internalmetrics.MetricRefreshSuccess)
		meta := map[string]string{"rotated": "false"}
		if res.Rotated {
			meta["rotated"] = "true"
		}
		s.emitAudit(ctx, auditEventRefreshSuccess, true, res.Session.UserID, PhaseRefreshing, PhaseAuthenticated, nil, meta)
		return res.Session.Clone(), nil
	}

	s.publish(State{Phase: PhaseUnauthenticated})
	if res.ClearErr != nil {
		s.metrics.Inc(internalmetrics.MetricPersistenceFailure)
	}

	var out error
	switch res.Failure {
	case flows.FailureNoRefreshToken:
		s.metrics.Inc(internalmetrics.MetricRefreshNoToken)
		out = ErrNoRefreshToken
	case flows.FailureCommit:
		s.metrics.Inc(internalmetrics.MetricRefreshFailure)
		out = persistenceError(res.Err)
	default:
		s.metrics.Inc(internalmetrics.MetricRefreshFailure)
		out = authenticationError("refresh", res.Err)
	}
	s.emitAudit(ctx, auditEventRefreshFailure, false, userIDOf(prev.Session), prev.Phase, PhaseUnauthenticated, out, nil)
	return nil, out
}

// EnsureFresh returns the current session, refreshing it first when the
// access token is a JWT whose exp falls within Config.Refresh.Leeway. Opaque
// access tokens are returned as they are.
//
// When another operation holds the store, a token that has not expired yet is
// returned as it is; an expired one waits for that operation and re-checks.
func (s *Store) EnsureFresh(ctx context.Context) (*Session, error) {
	for {
		st := s.State()
		if !st.IsAuthenticated() {
			return nil, ErrNotAuthenticated
		}

		exp, ok := jwt.Expiry(st.Session.AccessToken)
		if !ok || s.now().Add(s.config.Refresh.Leeway).Before(exp) {
			return st.Session, nil
		}

		sess, err := s.Refresh(ctx)
		if !errors.Is(err, ErrOperationInFlight) {
			return sess, err
		}
		if s.now().Before(exp) {
			return st.Session, nil
		}
		if err := s.WaitIdle(ctx); err != nil {
			return nil, err
		}
	}
}

// WaitIdle blocks until no operation holds the store or ctx is done.
func (s *Store) WaitIdle(ctx context.Context) error {
	for {
		s.cancelMu.Lock()
		done := s.opDone
		s.cancelMu.Unlock()

		if done == nil {
			if s.pendingSignOuts.Load() == 0 {
				return nil
			}
			// a SignOut is queued but does not hold the lock yet
			t := time.NewTimer(time.Millisecond)
			select {
			case <-t.C:
				continue
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) markBusy() chan struct{} {
	done := make(chan struct{})
	s.cancelMu.Lock()
	s.opDone = done
	s.cancelMu.Unlock()
	return done
}

func (s *Store) markIdle(done chan struct{}) {
	s.cancelMu.Lock()
	if s.opDone == done {
		s.opDone = nil
	}
	s.cancelMu.Unlock()
	close(done)
}

// Close stops observer delivery and flushes the audit dispatcher. Later
// SignIn, SignUp and Refresh calls return ErrStoreClosed; SignOut still
// clears persistence.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.close()
		delete(s.subs, id)
	}
	s.mu.Unlock()

	s.audit.Close()
}

// begin acquires the operation lock without waiting and registers a cancel
// func for SignOut.
func (s *Store) begin(ctx context.Context) (context.Context, func(), error) {
	if s.pendingSignOuts.Load() > 0 || !s.opMu.TryLock() {
		s.metrics.Inc(internalmetrics.MetricOperationRejected)
		return nil, nil, ErrOperationInFlight
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		s.opMu.Unlock()
		return nil, nil, ErrStoreClosed
	case !s.bootstrapped:
		s.mu.Unlock()
		s.opMu.Unlock()
		s.metrics.Inc(internalmetrics.MetricOperationRejected)
		return nil, nil, ErrBootstrapPending
	}
	s.mutated = true
	s.mu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	busy := make(chan struct{})
	s.cancelMu.Lock()
	s.cancelOp = cancel
	s.opDone = busy
	s.cancelMu.Unlock()

	return opCtx, func() {
		s.cancelMu.Lock()
		s.cancelOp = nil
		s.cancelMu.Unlock()
		cancel()
		s.opMu.Unlock()
		s.markIdle(busy)
	}, nil
}

func (s *Store) publish(next State) {
	s.mu.Lock()
	s.setStateLocked(next)
	s.mu.Unlock()
}

// commitFailure maps a failed commit. A clean rollback leaves the prior state
// in place. When the rollback itself failed, persistence no longer matches
// any state, so it is cleared and the store signs out.
func (s *Store) commitFailure(ctx context.Context, op string, from Phase, err error) error {
	out := persistenceError(err)
	s.metrics.Inc(internalmetrics.MetricPersistenceFailure)

	var cerr *flows.CommitError
	if errors.As(err, &cerr) && cerr.Clean() {
		if cerr.Op == "write" {
			s.metrics.Inc(internalmetrics.MetricPersistenceRollback)
			s.emitAudit(ctx, auditEventPersistenceRollback, true, "", from, from, out, map[string]string{"op": op, "key": cerr.Key})
		}
		return out
	}

	if clearErr := flows.RunClear(ctx, s.persistence, s.flowDeps.SignOut.Keys); clearErr != nil {
		s.warn("goSession: clearing credentials after failed rollback: %v", clearErr)
	}
	s.publish(State{Phase: PhaseUnauthenticated})
	s.emitAudit(ctx, auditEventPersistenceRollback, false, "", from, PhaseUnauthenticated, out, map[string]string{"op": op})
	return out
}

func persistenceError(err error) error {
	var cerr *flows.CommitError
	if errors.As(err, &cerr) {
		return &PersistenceError{Op: cerr.Op, Key: cerr.Key, Err: cerr.Err}
	}
	return &PersistenceError{Op: "write", Err: err}
}

func authenticationError(op string, err error) error {
	var msgErr MessageError
	switch {
	case errors.As(err, &msgErr):
		return &AuthenticationError{Op: op, Message: msgErr.UserMessage(), Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AuthenticationError{Op: op, Message: "The identity service did not respond in time", Err: err}
	case errors.Is(err, context.Canceled):
		return &AuthenticationError{Op: op, Message: "The request was cancelled", Err: err}
	default:
		return &AuthenticationError{Op: op, Message: err.Error(), Err: err}
	}
}

func userIDOf(sess *Session) string {
	if sess == nil {
		return ""
	}
	return sess.UserID
}
