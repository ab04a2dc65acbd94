package api

import "time"

// --- Decision endpoint ---

// ActorJSON identifies the requesting actor.
type ActorJSON struct {
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	Subsystem string `json:"subsystem,omitempty"`
}

// CapabilitiesJSON declares the candidate agent's capability envelope.
type CapabilitiesJSON struct {
	NetworkAccess string   `json:"network_access"`
	AutonomyLevel string   `json:"autonomy_level"`
	Tools         []string `json:"tools,omitempty"`
	Connectors    []string `json:"connectors,omitempty"`
}

// ResourceLimitsJSON declares the candidate agent's resource envelope.
type ResourceLimitsJSON struct {
	MaxParallelTasks  int `json:"max_parallel_tasks,omitempty"`
	MaxMemoryMB       int `json:"max_memory_mb,omitempty"`
	MaxRuntimeSeconds int `json:"max_runtime_seconds,omitempty"`
}

// RuntimeJSON declares the candidate agent's model runtime settings.
type RuntimeJSON struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// EthicsJSON carries the non-negotiable ethics fields.
type EthicsJSON struct {
	HumanOverride string `json:"human_override"`
}

// AgentConfigJSON is the declarative configuration of the candidate agent.
type AgentConfigJSON struct {
	AgentType      string             `json:"agent_type"`
	Capabilities   CapabilitiesJSON   `json:"capabilities"`
	ResourceLimits ResourceLimitsJSON `json:"resource_limits"`
	Runtime        RuntimeJSON        `json:"runtime"`
	Ethics         EthicsJSON         `json:"ethics"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
}

// RequestContextJSON describes how the config relates to its template.
type RequestContextJSON struct {
	CustomizedPaths []string `json:"customized_paths,omitempty"`
}

// DecisionReq is the body of POST /v1/decisions.
type DecisionReq struct {
	RequestID        string             `json:"request_id,omitempty"`
	Actor            ActorJSON          `json:"actor"`
	Config           AgentConfigJSON    `json:"config"`
	ConfigHash       string             `json:"config_hash,omitempty"`
	TemplateName     string             `json:"template_name"`
	TemplateHash     string             `json:"template_hash"`
	Context          RequestContextJSON `json:"context"`
	CostEstimate     float64            `json:"cost_estimate,omitempty"`
	KillswitchActive bool               `json:"killswitch_active,omitempty"`
}

// RuntimeCapsResp mirrors the resolved runtime caps.
type RuntimeCapsResp struct {
	AllowedModels  []string `json:"allowed_models"`
	MaxTokens      int      `json:"max_tokens"`
	MaxTemperature float64  `json:"max_temperature"`
}

// ConstraintsResp is the resolved operational envelope on approval.
type ConstraintsResp struct {
	BudgetPerTask           float64         `json:"budget_per_task"`
	BudgetPerDay            float64         `json:"budget_per_day"`
	NetworkScopes           []string        `json:"network_scopes"`
	AllowedTools            []string        `json:"allowed_tools"`
	AllowedConnectors       []string        `json:"allowed_connectors"`
	MaxParallelTasks        int             `json:"max_parallel_tasks"`
	Runtime                 RuntimeCapsResp `json:"runtime"`
	RequiresHumanActivation bool            `json:"requires_human_activation"`
	LockedFields            []string        `json:"locked_fields"`
}

// DecisionResp is the terminal decision returned to the caller. Policy
// rejections are 200 responses with approved=false; only infrastructure
// failures produce non-2xx statuses.
type DecisionResp struct {
	DecisionID  string           `json:"decision_id"`
	Approved    bool             `json:"approved"`
	Kind        string           `json:"kind"`
	Reason      string           `json:"reason,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	RiskTier    string           `json:"risk_tier"`
	Quarantine  bool             `json:"quarantine"`
	Constraints *ConstraintsResp `json:"constraints,omitempty"`
	RuleIDs     []string         `json:"rule_ids"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// --- Audit query endpoints ---

// AuditEventResp is one audit event row.
type AuditEventResp struct {
	DecisionID string    `json:"decision_id"`
	Sequence   uint64    `json:"sequence"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    string    `json:"payload"`
}

// EventListResp is the paginated event listing.
type EventListResp struct {
	Events   []AuditEventResp `json:"events"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DecisionTrailResp is the full ordered event trail of one decision.
type DecisionTrailResp struct {
	DecisionID string           `json:"decision_id"`
	Events     []AuditEventResp `json:"events"`
}

// ErrorResp is the uniform error body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
