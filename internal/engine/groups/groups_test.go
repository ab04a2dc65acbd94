package groups

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/engine"
	"github.com/arbiterhq/gatehouse/internal/ledger"
)

const goodHash = "sha256:ababababababababababababababababababababababababababababababab01"

func baseRequest() *engine.DecisionRequest {
	return &engine.DecisionRequest{
		RequestID: "req-1",
		Actor: engine.ActorContext{
			ActorID:   "orchestrator-1",
			Role:      "orchestrator",
			Subsystem: "research",
		},
		Config: engine.AgentConfig{
			AgentType: "researcher",
			Capabilities: engine.CapabilitySet{
				NetworkAccess: "internal",
				AutonomyLevel: "supervised",
			},
			Ethics: engine.EthicsFlags{HumanOverride: engine.HumanOverrideAlwaysAllowed},
		},
		TemplateName: "researcher-base",
		TemplateHash: goodHash,
	}
}

func baseProfile() *catalog.AgentTypeProfile {
	return &catalog.AgentTypeProfile{
		AgentType:        "researcher",
		MaxNetworkAccess: "restricted",
		MaxAutonomy:      "scoped",
		BaseRiskTier:     "low",
		CreationCost:     2.5,
	}
}

// --- Group A ---

func TestAuthorization_Pass(t *testing.T) {
	g := NewAuthorization("orchestrator", false)
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest()})
	if !res.Passed {
		t.Fatalf("expected pass, got %s: %s", res.Reason, res.Detail)
	}
}

func TestAuthorization_WrongRole(t *testing.T) {
	req := baseRequest()
	req.Actor.Role = "worker"

	g := NewAuthorization("orchestrator", false)
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req})
	if res.Passed {
		t.Fatal("expected rejection")
	}
	if res.Reason != engine.ReasonUnauthorizedRole {
		t.Errorf("expected UNAUTHORIZED_ROLE, got %s", res.Reason)
	}
}

func TestAuthorization_Killswitch(t *testing.T) {
	g := NewAuthorization("orchestrator", true)
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest()})
	if res.Passed {
		t.Fatal("expected rejection")
	}
	if res.Reason != engine.ReasonKillswitchActive {
		t.Errorf("expected KILLSWITCH_ACTIVE, got %s", res.Reason)
	}
}

func TestAuthorization_RequestKillswitchFlag(t *testing.T) {
	req := baseRequest()
	req.KillswitchActive = true

	g := NewAuthorization("orchestrator", false)
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req})
	if res.Reason != engine.ReasonKillswitchActive {
		t.Errorf("expected KILLSWITCH_ACTIVE, got %s", res.Reason)
	}
}

func TestAuthorization_RoleFailureReportedFirst(t *testing.T) {
	req := baseRequest()
	req.Actor.Role = "worker"

	g := NewAuthorization("orchestrator", true)
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req})
	if res.Reason != engine.ReasonUnauthorizedRole {
		t.Errorf("role failure must win over killswitch, got %s", res.Reason)
	}
	if !strings.Contains(res.Detail, "kill-switch also active") {
		t.Errorf("detail should note the killswitch: %s", res.Detail)
	}
}

// --- Group B ---

func TestTemplateIntegrity(t *testing.T) {
	g := NewTemplateIntegrity([]string{"researcher-base"})

	tests := []struct {
		name     string
		mutate   func(*engine.DecisionRequest)
		template *catalog.TemplateDefinition
		wantPass bool
		wantCode engine.ReasonCode
	}{
		{
			name:     "allowlisted with well-formed hash",
			mutate:   func(*engine.DecisionRequest) {},
			wantPass: true,
		},
		{
			name:     "missing hash",
			mutate:   func(r *engine.DecisionRequest) { r.TemplateHash = "" },
			wantCode: engine.ReasonTemplateHashMissing,
		},
		{
			name:     "malformed hash",
			mutate:   func(r *engine.DecisionRequest) { r.TemplateHash = "sha256:zzzz" },
			wantCode: engine.ReasonTemplateHashMissing,
		},
		{
			name:     "uppercase hex rejected",
			mutate:   func(r *engine.DecisionRequest) { r.TemplateHash = "sha256:" + strings.Repeat("AB", 32) },
			wantCode: engine.ReasonTemplateHashMissing,
		},
		{
			name:     "not allowlisted",
			mutate:   func(r *engine.DecisionRequest) { r.TemplateName = "rogue-template" },
			wantCode: engine.ReasonTemplateNotInAllowlist,
		},
		{
			name:   "registered hash mismatch",
			mutate: func(*engine.DecisionRequest) {},
			template: &catalog.TemplateDefinition{
				Name:        "researcher-base",
				ContentHash: "sha256:" + strings.Repeat("cd", 32),
			},
			wantCode: engine.ReasonTemplateNotInAllowlist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)
			res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Template: tt.template})
			if res.Passed != tt.wantPass {
				t.Fatalf("passed=%v want %v (%s)", res.Passed, tt.wantPass, res.Detail)
			}
			if !tt.wantPass && res.Reason != tt.wantCode {
				t.Errorf("reason=%s want %s", res.Reason, tt.wantCode)
			}
		})
	}
}

// --- Group C ---

func TestConfigurationConstraints_Pass(t *testing.T) {
	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{
		Request: baseRequest(),
		Profile: baseProfile(),
	})
	if !res.Passed {
		t.Fatalf("expected pass: %s", res.Detail)
	}
}

func TestConfigurationConstraints_EthicsImmutable(t *testing.T) {
	req := baseRequest()
	req.Config.Ethics.HumanOverride = "disabled"

	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("expected CAPABILITY_ESCALATION_DENIED, got passed=%v reason=%s", res.Passed, res.Reason)
	}
}

func TestConfigurationConstraints_NoProfile(t *testing.T) {
	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("missing profile must fail closed, got passed=%v reason=%s", res.Passed, res.Reason)
	}
}

func TestConfigurationConstraints_NetworkCeiling(t *testing.T) {
	req := baseRequest()
	req.Config.Capabilities.NetworkAccess = "open"

	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("network escalation must be denied, got passed=%v", res.Passed)
	}
}

func TestConfigurationConstraints_AutonomyCeiling(t *testing.T) {
	req := baseRequest()
	req.Config.Capabilities.AutonomyLevel = "full"

	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("autonomy escalation must be denied, got passed=%v", res.Passed)
	}
}

func TestConfigurationConstraints_UnknownLevelExceedsAnyCeiling(t *testing.T) {
	req := baseRequest()
	req.Config.Capabilities.NetworkAccess = "interplanetary"

	g := NewConfigurationConstraints()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Passed {
		t.Fatal("unknown network level must fail closed")
	}
}

func TestConfigurationConstraints_MetadataSchema(t *testing.T) {
	cat, err := catalog.NewStaticCatalog([]*catalog.TemplateDefinition{{
		Name:        "researcher-base",
		ContentHash: goodHash,
		AgentType:   "researcher",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"corpus"},
			"properties": map[string]any{
				"corpus": map[string]any{"type": "string"},
			},
		},
	}}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	template, _ := cat.GetTemplate(context.Background(), "researcher-base")

	g := NewConfigurationConstraints()

	req := baseRequest()
	req.Config.Metadata = map[string]any{"corpus": "arxiv"}
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Template: template, Profile: baseProfile()})
	if !res.Passed {
		t.Fatalf("valid metadata should pass: %s", res.Detail)
	}

	req.Config.Metadata = map[string]any{"corpus": 42}
	res = g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Template: template, Profile: baseProfile()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("schema violation must be denied, got passed=%v reason=%s", res.Passed, res.Reason)
	}
}

// --- Group D ---

type stubLedger struct {
	err  error
	last *ledger.Reservation
}

func (s *stubLedger) Reserve(_ context.Context, pool, agentType string, cost float64) (*ledger.Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.last = &ledger.Reservation{ID: "res-1", Pool: pool, AgentType: agentType, Cost: cost}
	return s.last, nil
}
func (s *stubLedger) Commit(context.Context, *ledger.Reservation) error  { return nil }
func (s *stubLedger) Release(context.Context, *ledger.Reservation) error { return nil }

func TestBudgetPopulation_ReservePass(t *testing.T) {
	l := &stubLedger{}
	g := NewBudgetPopulation(l, "default")
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest(), Profile: baseProfile()})
	if !res.Passed {
		t.Fatalf("expected pass: %s", res.Detail)
	}
	if res.Reservation == nil {
		t.Fatal("passing reserve must carry the reservation")
	}
	if res.Reservation.Pool != "research" {
		t.Errorf("pool should come from the actor's subsystem, got %q", res.Reservation.Pool)
	}
	if res.Reservation.Cost != 2.5 {
		t.Errorf("zero cost estimate should fall back to profile creation cost, got %v", res.Reservation.Cost)
	}
}

func TestBudgetPopulation_ExplicitCostEstimate(t *testing.T) {
	req := baseRequest()
	req.CostEstimate = 7.0
	req.Actor.Subsystem = ""

	l := &stubLedger{}
	g := NewBudgetPopulation(l, "default")
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Reservation.Cost != 7.0 {
		t.Errorf("explicit cost estimate should win, got %v", res.Reservation.Cost)
	}
	if res.Reservation.Pool != "default" {
		t.Errorf("missing subsystem should use the default pool, got %q", res.Reservation.Pool)
	}
}

func TestBudgetPopulation_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want engine.ReasonCode
	}{
		{"budget insufficient", ledger.ErrBudgetInsufficient, engine.ReasonBudgetInsufficient},
		{"population limit", ledger.ErrPopulationLimit, engine.ReasonPopulationLimit},
		{"unknown pool", ledger.ErrUnknownPool, engine.ReasonBudgetInsufficient},
		{"unknown agent type", ledger.ErrUnknownAgentType, engine.ReasonPopulationLimit},
		{"ledger unavailable fails closed", errors.New("connection refused"), engine.ReasonBudgetInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewBudgetPopulation(&stubLedger{err: tt.err}, "default")
			res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest(), Profile: baseProfile()})
			if res.Passed {
				t.Fatal("expected rejection")
			}
			if res.Reason != tt.want {
				t.Errorf("reason=%s want %s", res.Reason, tt.want)
			}
		})
	}
}

// --- Group E ---

func TestRiskReview_GovernedCustomizationDenied(t *testing.T) {
	req := baseRequest()
	req.Context.CustomizedPaths = []string{"capabilities.network_access", "metadata.corpus"}

	g := NewRiskReview()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if res.Passed || res.Reason != engine.ReasonCapabilityEscalation {
		t.Fatalf("governed customization must be denied, got passed=%v reason=%s", res.Passed, res.Reason)
	}
	if !strings.Contains(res.Detail, "capabilities.network_access") {
		t.Errorf("detail should name the governed path: %s", res.Detail)
	}
	if strings.Contains(res.Detail, "metadata.corpus") {
		t.Errorf("ungoverned path must not be listed: %s", res.Detail)
	}
}

func TestRiskReview_UngovernedCustomizationPasses(t *testing.T) {
	req := baseRequest()
	req.Context.CustomizedPaths = []string{"metadata.corpus"}

	g := NewRiskReview()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: req, Profile: baseProfile()})
	if !res.Passed {
		t.Fatalf("ungoverned customization should pass: %s", res.Detail)
	}
}

func TestRiskReview_CriticalTypeNoted(t *testing.T) {
	profile := baseProfile()
	profile.Critical = true

	g := NewRiskReview()
	res := g.Evaluate(context.Background(), &engine.EvalInput{Request: baseRequest(), Profile: profile})
	if !res.Passed {
		t.Fatal("criticality alone must not gate the decision")
	}
	if !strings.Contains(res.Detail, "quarantine") {
		t.Errorf("critical type should be noted for quarantine: %q", res.Detail)
	}
}
