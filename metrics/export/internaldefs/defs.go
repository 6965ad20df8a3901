package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one store counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one store histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricBootstrapRestored, Name: "gosession_bootstrap_restored_total", Help: "Bootstraps that restored a persisted session."},
	{ID: goSession.MetricBootstrapEmpty, Name: "gosession_bootstrap_empty_total", Help: "Bootstraps that found no persisted session."},
	{ID: goSession.MetricBootstrapCorrupt, Name: "gosession_bootstrap_corrupt_total", Help: "Bootstraps that discarded partial, corrupt or unreadable credentials."},
	{ID: goSession.MetricSignInSuccess, Name: "gosession_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: goSession.MetricSignInFailure, Name: "gosession_sign_in_failure_total", Help: "Failed sign-ins."},
	{ID: goSession.MetricSignUpSuccess, Name: "gosession_sign_up_success_total", Help: "Sign-ups that issued a session."},
	{ID: goSession.MetricSignUpPending, Name: "gosession_sign_up_pending_total", Help: "Sign-ups awaiting confirmation."},
	{ID: goSession.MetricSignUpRejected, Name: "gosession_sign_up_rejected_total", Help: "Sign-ups rejected by local validation."},
	{ID: goSession.MetricSignUpFailure, Name: "gosession_sign_up_failure_total", Help: "Sign-ups rejected by the identity service or persistence."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Sign-outs."},
	{ID: goSession.MetricRemoteSignOutFailure, Name: "gosession_remote_sign_out_failure_total", Help: "Best-effort remote sign-outs that failed."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refreshes that forced a sign-out."},
	{ID: goSession.MetricRefreshNoToken, Name: "gosession_refresh_no_token_total", Help: "Refreshes attempted without a refresh token."},
	{ID: goSession.MetricPersistenceFailure, Name: "gosession_persistence_failure_total", Help: "Credential persistence failures."},
	{ID: goSession.MetricPersistenceRollback, Name: "gosession_persistence_rollback_total", Help: "Commits rolled back after a write failure."},
	{ID: goSession.MetricOperationRejected, Name: "gosession_operation_rejected_total", Help: "Operations rejected as re-entrant or before bootstrap."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricIdentityLatency, Name: "gosession_identity_latency_seconds", Help: "Identity service call latency."},
}

// HistogramBounds are the upper bounds of the store's latency buckets in
// seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in a form valid in
// instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into le-style running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
