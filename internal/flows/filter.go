package flows

import (
	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

// ExclusionReason says why FilterFlows dropped a flow.
type ExclusionReason string

const (
	ExcludedPlatformMismatch ExclusionReason = "platform_mismatch"
	ExcludedProviderAbsent   ExclusionReason = "provider_absent"
)

// Exclusion records one flow removed by the filter, by document index.
type Exclusion struct {
	Index  int
	Spec   authdoc.FlowSpec
	Reason ExclusionReason
}

// Candidate is a flow that survived filtering, with its index in the document.
type Candidate struct {
	Index int
	Spec  authdoc.FlowSpec
}

// FilterFlows returns the flows eligible under caps, preserving document order.
// Extension flows that defer to the injected provider are never excluded here;
// presence is probed when the flow is attempted.
func FilterFlows(flows []authdoc.FlowSpec, caps connect.CapabilityContext) ([]Candidate, []Exclusion) {
	candidates := make([]Candidate, 0, len(flows))
	var excluded []Exclusion

	for i, spec := range flows {
		if reason, drop := excludeFlow(spec, caps); drop {
			excluded = append(excluded, Exclusion{Index: i, Spec: spec, Reason: reason})
			continue
		}
		candidates = append(candidates, Candidate{Index: i, Spec: spec})
	}

	return candidates, excluded
}

func excludeFlow(spec authdoc.FlowSpec, caps connect.CapabilityContext) (ExclusionReason, bool) {
	if spec.Platform != "" && spec.Platform != caps.Platform {
		return ExcludedPlatformMismatch, true
	}
	if id := spec.ProviderID(); id != "" && !caps.HasProvider(id) {
		return ExcludedProviderAbsent, true
	}
	return "", false
}
