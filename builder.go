package goSession

import (
	"context"
	"errors"
	"log"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// Builder assembles a [Store]. A Builder is single use.
type Builder struct {
	config      Config
	persistence CredentialPersistence
	identity    IdentityService
	auditSink   AuditSink
	now         func() time.Time
	logf        func(string, ...any)

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithPersistence sets the credential store. Required.
func (b *Builder) WithPersistence(p CredentialPersistence) *Builder {
	b.persistence = p
	return b
}

// WithIdentityService sets the remote identity authority. Required. When it
// also implements [IdentitySignOuter], SignOut notifies it.
func (b *Builder) WithIdentityService(svc IdentityService) *Builder {
	b.identity = svc
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the identity latency histogram. It requires
// metrics to be enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for EnsureFresh, latency and audit stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithLogger overrides the warning logger. The default writes through the
// standard log package.
func (b *Builder) WithLogger(logf func(string, ...any)) *Builder {
	b.logf = logf
	return b
}

// Build validates the configuration and returns a Store in
// PhaseBootstrapping. Call [Store.Bootstrap] before any other operation.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.persistence == nil {
		return nil, errors.New("credential persistence required")
	}
	if b.identity == nil {
		return nil, errors.New("identity service required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logf := b.logf
	if logf == nil {
		logf = log.Printf
	}

	s := &Store{
		config:      cfg,
		persistence: b.persistence,
		identity:    b.identity,
		now:         now,
		warn:        logf,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		state: State{Phase: PhaseBootstrapping},
		subs:  make(map[uint64]*subscriber),
	}

	if cfg.Audit.Enabled {
		s.audit = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	s.flowDeps = s.buildFlowDeps()

	b.built = true
	return s, nil
}

func (s *Store) buildFlowDeps() flows.Deps {
	keys := flows.Keys{
		AccessToken:  s.config.Persistence.AccessTokenKey,
		RefreshToken: s.config.Persistence.RefreshTokenKey,
		Profile:      s.config.Persistence.ProfileKey,
	}
	remote := flows.Remote{
		Timeout: s.config.Identity.Timeout,
		Now:     s.now,
		ObserveLatency: func(d time.Duration) {
			s.metrics.Observe(internalmetrics.MetricIdentityLatency, d)
		},
	}
	commit := flows.CommitDeps{
		Persistence: s.persistence,
		Keys:        keys,
		Warn:        s.warn,
	}

	var remoteSignOut func(ctx context.Context, accessToken string) error
	if outer, ok := s.identity.(IdentitySignOuter); ok && s.config.Identity.RemoteSignOut {
		remoteSignOut = outer.SignOut
	}

	return flows.Deps{
		Bootstrap: flows.BootstrapDeps{
			Persistence: s.persistence,
			Keys:        keys,
			Warn:        s.warn,
		},
		SignIn: flows.SignInDeps{
			Identity: s.identity.SignIn,
			Remote:   remote,
			Commit:   commit,
		},
		SignUp: flows.SignUpDeps{
			Identity: s.identity.SignUp,
			Remote:   remote,
			Commit:   commit,
		},
		Refresh: flows.RefreshDeps{
			Identity: s.identity.Refresh,
			Remote:   remote,
			Commit:   commit,
			Warn:     s.warn,
		},
		SignOut: flows.SignOutDeps{
			Identity:    remoteSignOut,
			Remote:      remote,
			Persistence: s.persistence,
			Keys:        keys,
			Warn:        s.warn,
		},
	}
}
