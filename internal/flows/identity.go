package flows

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedSession is returned when the identity service reports success
// but the payload lacks a user id or access token.
var ErrMalformedSession = errors.New("identity service returned an incomplete session")

// FailureKind classifies flow failures for root-level mapping.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	FailureValidation
	FailureIdentity
	FailureMalformed
	FailureCommit
	FailureNoRefreshToken
)

// Remote bounds identity service calls and reports their latency.
type Remote struct {
	Timeout        time.Duration
	Now            func() time.Time
	ObserveLatency func(time.Duration)
}

func (r Remote) call(ctx context.Context, fn func(context.Context) error) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	err := fn(ctx)
	if r.ObserveLatency != nil {
		r.ObserveLatency(now().Sub(start))
	}
	return err
}
