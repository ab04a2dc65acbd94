package engine

import "strings"

// ReasonCode is the stable machine-readable code attached to a rejection.
// Codes map 1:1 to rules and are part of the wire contract.
type ReasonCode string

const (
	ReasonUnauthorizedRole       ReasonCode = "UNAUTHORIZED_ROLE"
	ReasonKillswitchActive       ReasonCode = "KILLSWITCH_ACTIVE"
	ReasonTemplateHashMissing    ReasonCode = "TEMPLATE_HASH_MISSING"
	ReasonTemplateNotInAllowlist ReasonCode = "TEMPLATE_NOT_IN_ALLOWLIST"
	ReasonCapabilityEscalation   ReasonCode = "CAPABILITY_ESCALATION_DENIED"
	ReasonBudgetInsufficient     ReasonCode = "BUDGET_INSUFFICIENT"
	ReasonPopulationLimit        ReasonCode = "POPULATION_LIMIT_EXCEEDED"
)

// DecisionKind distinguishes the shape of a terminal decision.
type DecisionKind int

const (
	KindReject DecisionKind = iota + 1
	KindApprove
	KindApproveWithConstraints
)

// String returns the lowercase decision kind name.
func (k DecisionKind) String() string {
	switch k {
	case KindReject:
		return "reject"
	case KindApprove:
		return "approve"
	case KindApproveWithConstraints:
		return "approve_with_constraints"
	default:
		return "unspecified"
	}
}

// RiskTier classifies how much scrutiny a creation request warrants.
type RiskTier int

const (
	RiskLow RiskTier = iota + 1
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the lowercase tier name.
func (t RiskTier) String() string {
	switch t {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unspecified"
	}
}

// ParseRiskTier maps a tier name to its RiskTier. Unknown names parse as
// RiskLow so a sloppy profile never lowers scrutiny below the floor.
func ParseRiskTier(s string) RiskTier {
	switch s {
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return RiskLow
	}
}

// Network access levels, least to most privileged.
const (
	NetworkNone       = "none"
	NetworkInternal   = "internal"
	NetworkRestricted = "restricted"
	NetworkOpen       = "open"
)

// Autonomy levels, least to most privileged.
const (
	AutonomySupervised = "supervised"
	AutonomyScoped     = "scoped"
	AutonomyFull       = "full"
)

var networkRanks = map[string]int{
	NetworkNone:       0,
	NetworkInternal:   1,
	NetworkRestricted: 2,
	NetworkOpen:       3,
}

var autonomyRanks = map[string]int{
	AutonomySupervised: 0,
	AutonomyScoped:     1,
	AutonomyFull:       2,
}

// NetworkRank orders network access levels. Unknown levels rank above every
// known level, so an unrecognized declaration always exceeds any ceiling.
func NetworkRank(level string) int {
	if r, ok := networkRanks[level]; ok {
		return r
	}
	return len(networkRanks)
}

// AutonomyRank orders autonomy levels, with the same unknown-ranks-highest rule.
func AutonomyRank(level string) int {
	if r, ok := autonomyRanks[level]; ok {
		return r
	}
	return len(autonomyRanks)
}

// HumanOverrideAlwaysAllowed is the only permitted value of
// ethics.human_override. The field is immutable across the pipeline.
const HumanOverrideAlwaysAllowed = "always_allowed"

// Canonical governed field paths. The escalation check and the resolver's
// locked-fields set both key off these, so the match is a shared constant
// rather than ad-hoc string comparison at each call site.
const (
	PathCapabilities   = "capabilities"
	PathResourceLimits = "resource_limits"
	PathRuntime        = "runtime"
	PathEthics         = "ethics"
	PathAutonomy       = "capabilities.autonomy_level"
)

// GovernedPathPrefixes returns the field path prefixes whose customization is
// treated as a capability escalation.
func GovernedPathPrefixes() []string {
	return []string{PathCapabilities, PathResourceLimits, PathRuntime, PathEthics}
}

// IsGovernedPath reports whether a customized field path falls under a
// governed prefix.
func IsGovernedPath(path string) bool {
	for _, prefix := range GovernedPathPrefixes() {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			return true
		}
	}
	return false
}

// GovernedPaths filters a customization set down to the governed paths.
func GovernedPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsGovernedPath(p) {
			out = append(out, p)
		}
	}
	return out
}

// ActorContext identifies the caller requesting agent creation. The engine
// trusts this identity as handed in; authenticating it is the transport's job.
type ActorContext struct {
	ActorID   string
	Role      string
	Subsystem string
}

// CapabilitySet declares the candidate agent's capability envelope.
type CapabilitySet struct {
	NetworkAccess string
	AutonomyLevel string
	Tools         []string
	Connectors    []string
}

// ResourceLimits declares the candidate agent's resource envelope.
type ResourceLimits struct {
	MaxParallelTasks  int
	MaxMemoryMB       int
	MaxRuntimeSeconds int
}

// RuntimeParams declares the candidate agent's model runtime settings.
type RuntimeParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// EthicsFlags carries the non-negotiable ethics fields.
type EthicsFlags struct {
	HumanOverride string
}

// AgentConfig is the full declarative configuration of a candidate agent.
// Governed concerns are first-class fields; Metadata is the open extension
// map for agent-type-specific settings validated by the template's schema.
type AgentConfig struct {
	AgentType      string
	Capabilities   CapabilitySet
	ResourceLimits ResourceLimits
	Runtime        RuntimeParams
	Ethics         EthicsFlags
	Metadata       map[string]any
}

// RequestContext describes how the candidate config relates to its template.
type RequestContext struct {
	// CustomizedPaths lists the field paths changed relative to the template
	// default, dotted snake_case ("resource_limits.max_parallel_tasks").
	CustomizedPaths []string
}

// Customized reports whether any field deviates from the template default.
func (rc RequestContext) Customized() bool {
	return len(rc.CustomizedPaths) > 0
}

// DecisionRequest is the immutable input to a creation decision.
type DecisionRequest struct {
	RequestID    string
	Actor        ActorContext
	Config       AgentConfig
	ConfigHash   string
	TemplateName string
	TemplateHash string
	Context      RequestContext

	// CostEstimate is the caller-declared marginal creation cost. Zero means
	// "use the agent type's static creation cost".
	CostEstimate float64

	// KillswitchActive mirrors the platform-wide creation halt flag as seen
	// by the caller at request time.
	KillswitchActive bool
}
