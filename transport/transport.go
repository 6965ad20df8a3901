package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Source supplies the session for outgoing requests. *goSession.Store
// implements it.
type Source interface {
	EnsureFresh(ctx context.Context) (*goSession.Session, error)
	Refresh(ctx context.Context) (*goSession.Session, error)
}

// idleWaiter is implemented by sources that can wait out a refresh started
// by another request.
type idleWaiter interface {
	WaitIdle(ctx context.Context) error
}

var (
	_ Source     = (*goSession.Store)(nil)
	_ idleWaiter = (*goSession.Store)(nil)
)

// maxDrainBytes bounds how much of a discarded 401 body is read so the
// connection can be reused.
const maxDrainBytes = 4 << 10

// Transport injects the bearer token from Source. The zero Base uses
// http.DefaultTransport.
type Transport struct {
	Source Source
	Base   http.RoundTripper
	// AllowAnonymous sends requests without Authorization while no session
	// is held instead of failing with goSession.ErrNotAuthenticated.
	AllowAnonymous bool
}

// New returns a Transport over base.
func New(src Source, base http.RoundTripper) *Transport {
	return &Transport{Source: src, Base: base}
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		return nil, errors.New("transport: nil session source")
	}
	ctx := req.Context()

	sess, err := t.Source.EnsureFresh(ctx)
	if err != nil {
		if t.AllowAnonymous && errors.Is(err, goSession.ErrNotAuthenticated) {
			return t.base().RoundTrip(req)
		}
		return nil, err
	}

	resp, err := t.base().RoundTrip(authorized(req, sess.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !replayable(req) {
		return resp, err
	}

	renewed, rerr := t.renew(ctx, sess.AccessToken)
	if rerr != nil {
		// The original 401 is the most useful thing to hand back.
		return resp, nil
	}

	retry, err := rewind(req)
	if err != nil {
		return resp, nil
	}
	drain(resp)
	return t.base().RoundTrip(authorized(retry, renewed.AccessToken))
}

// renew refreshes after a 401. When a concurrent request is already
// refreshing, it waits for that refresh and reuses its token instead.
func (t *Transport) renew(ctx context.Context, rejected string) (*goSession.Session, error) {
	renewed, err := t.Source.Refresh(ctx)
	if !errors.Is(err, goSession.ErrOperationInFlight) {
		return renewed, err
	}
	w, ok := t.Source.(idleWaiter)
	if !ok {
		return nil, err
	}
	if err := w.WaitIdle(ctx); err != nil {
		return nil, err
	}
	renewed, err = t.Source.EnsureFresh(ctx)
	if err != nil {
		return nil, err
	}
	if renewed.AccessToken == rejected {
		return nil, goSession.ErrOperationInFlight
	}
	return renewed, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func authorized(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.Body = body
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
