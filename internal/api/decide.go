package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/arbiterhq/gatehouse/internal/constraints"
	"github.com/arbiterhq/gatehouse/internal/engine"
	"github.com/arbiterhq/gatehouse/internal/governor"
)

// handleDecide runs one creation request through the decision pipeline.
// A policy rejection is a successful 200 response with approved=false; the
// 503 path is reserved for decisions that could not be durably recorded.
func (d *Dependencies) handleDecide(w http.ResponseWriter, r *http.Request) {
	var body DecisionReq
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if body.Actor.ActorID == "" || body.Actor.Role == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: "actor.actor_id and actor.role are required"})
		return
	}
	if body.Config.AgentType == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: "config.agent_type is required"})
		return
	}
	if body.TemplateName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: "template_name is required"})
		return
	}

	req := toDecisionRequest(&body)

	// The authenticated caller pins the subsystem; the body may not claim
	// another subsystem's budget pool.
	if caller := callerFromContext(r.Context()); caller != nil && caller.Subsystem != "" {
		req.Actor.Subsystem = caller.Subsystem
	}

	result, err := d.Governor.EvaluateCreation(r.Context(), req)
	if err != nil {
		if errors.Is(err, governor.ErrGovernanceUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "governance_unavailable"})
			return
		}
		d.Logger.Error("decision pipeline failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Decision pipeline failed"})
		return
	}

	writeJSON(w, http.StatusOK, toDecisionResp(result))
}

func toDecisionRequest(body *DecisionReq) *engine.DecisionRequest {
	return &engine.DecisionRequest{
		RequestID: body.RequestID,
		Actor: engine.ActorContext{
			ActorID:   body.Actor.ActorID,
			Role:      body.Actor.Role,
			Subsystem: body.Actor.Subsystem,
		},
		Config: engine.AgentConfig{
			AgentType: body.Config.AgentType,
			Capabilities: engine.CapabilitySet{
				NetworkAccess: body.Config.Capabilities.NetworkAccess,
				AutonomyLevel: body.Config.Capabilities.AutonomyLevel,
				Tools:         body.Config.Capabilities.Tools,
				Connectors:    body.Config.Capabilities.Connectors,
			},
			ResourceLimits: engine.ResourceLimits{
				MaxParallelTasks:  body.Config.ResourceLimits.MaxParallelTasks,
				MaxMemoryMB:       body.Config.ResourceLimits.MaxMemoryMB,
				MaxRuntimeSeconds: body.Config.ResourceLimits.MaxRuntimeSeconds,
			},
			Runtime: engine.RuntimeParams{
				Model:       body.Config.Runtime.Model,
				MaxTokens:   body.Config.Runtime.MaxTokens,
				Temperature: body.Config.Runtime.Temperature,
			},
			Ethics: engine.EthicsFlags{
				HumanOverride: body.Config.Ethics.HumanOverride,
			},
			Metadata: body.Config.Metadata,
		},
		ConfigHash:   body.ConfigHash,
		TemplateName: body.TemplateName,
		TemplateHash: body.TemplateHash,
		Context: engine.RequestContext{
			CustomizedPaths: body.Context.CustomizedPaths,
		},
		CostEstimate:     body.CostEstimate,
		KillswitchActive: body.KillswitchActive,
	}
}

func toDecisionResp(result *governor.DecisionResult) DecisionResp {
	resp := DecisionResp{
		DecisionID:  result.DecisionID,
		Approved:    result.Approved,
		Kind:        result.Kind.String(),
		Reason:      string(result.Reason),
		Detail:      result.Detail,
		RiskTier:    result.RiskTier.String(),
		Quarantine:  result.Quarantine,
		RuleIDs:     result.RuleIDs,
		EvaluatedAt: result.EvaluatedAt,
	}
	if result.Constraints != nil {
		resp.Constraints = toConstraintsResp(result.Constraints)
	}
	return resp
}

func toConstraintsResp(c *constraints.Constraints) *ConstraintsResp {
	return &ConstraintsResp{
		BudgetPerTask:     c.BudgetPerTask,
		BudgetPerDay:      c.BudgetPerDay,
		NetworkScopes:     emptyIfNil(c.NetworkScopes),
		AllowedTools:      emptyIfNil(c.AllowedTools),
		AllowedConnectors: emptyIfNil(c.AllowedConnectors),
		MaxParallelTasks:  c.MaxParallelTasks,
		Runtime: RuntimeCapsResp{
			AllowedModels:  emptyIfNil(c.Runtime.AllowedModels),
			MaxTokens:      c.Runtime.MaxTokens,
			MaxTemperature: c.Runtime.MaxTemperature,
		},
		RequiresHumanActivation: c.RequiresHumanActivation,
		LockedFields:            emptyIfNil(c.LockedFields),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
