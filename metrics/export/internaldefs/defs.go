package internaldefs

import (
	goNameAuth "github.com/MrEthical07/goNameAuth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goNameAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goNameAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goNameAuth.MetricLoginStarted, Name: "lwn_login_started_total", Help: "Login attempts admitted past name validation and throttling."},
	{ID: goNameAuth.MetricLoginSuccess, Name: "lwn_login_success_total", Help: "Logins that established a session."},
	{ID: goNameAuth.MetricLoginFailure, Name: "lwn_login_failure_total", Help: "Logins that ended in a failure other than cancellation."},
	{ID: goNameAuth.MetricLoginCancelled, Name: "lwn_login_cancelled_total", Help: "Logins cancelled by the caller."},
	{ID: goNameAuth.MetricLoginRateLimited, Name: "lwn_login_rate_limited_total", Help: "Logins refused by attempt throttling."},
	{ID: goNameAuth.MetricResolutionFailure, Name: "lwn_resolution_failure_total", Help: "Logins failed because the name did not resolve."},
	{ID: goNameAuth.MetricAuthenticatorUnavailable, Name: "lwn_authenticator_unavailable_total", Help: "Logins failed because the authenticator document was unavailable."},
	{ID: goNameAuth.MetricAuthenticatorTimeout, Name: "lwn_authenticator_timeout_total", Help: "Logins failed because the authenticator fetch timed out."},
	{ID: goNameAuth.MetricNoEligibleFlow, Name: "lwn_no_eligible_flow_total", Help: "Logins with no flow usable in the caller's environment."},
	{ID: goNameAuth.MetricAllFlowsFailed, Name: "lwn_all_flows_failed_total", Help: "Logins where every attempted flow failed."},
	{ID: goNameAuth.MetricAddressMismatch, Name: "lwn_address_mismatch_total", Help: "Logins refused for an address mismatch in strict mode."},
	{ID: goNameAuth.MetricAddressMismatchWarning, Name: "lwn_address_mismatch_warning_total", Help: "Address mismatches reported as warnings."},
	{ID: goNameAuth.MetricFlowSkipped, Name: "lwn_flow_skipped_total", Help: "Flows skipped without user interaction."},
	{ID: goNameAuth.MetricFlowFailed, Name: "lwn_flow_failed_total", Help: "Flows that failed after initiation."},
	{ID: goNameAuth.MetricFlowSucceeded, Name: "lwn_flow_succeeded_total", Help: "Flows that produced a session."},
	{ID: goNameAuth.MetricRateLimitHit, Name: "lwn_rate_limit_hit_total", Help: "Throttle checks that denied or exhausted a budget."},
}

var HistogramDefs = []HistogramDef{
	{ID: goNameAuth.MetricLoginLatency, Name: "lwn_login_latency_seconds", Help: "Time from admission to the terminal outcome of a login."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.1, 0.5, 1, 2.5, 5, 15, 60}

var HistogramBounds = []string{
	"0.1",
	"0.5",
	"1",
	"2.5",
	"5",
	"15",
	"60",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_1",
	"0_5",
	"1",
	"2_5",
	"5",
	"15",
	"60",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
