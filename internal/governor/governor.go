// Package governor orchestrates rule evaluation, risk classification,
// constraint resolution and audit emission into one synchronous decision
// pipeline.
package governor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiterhq/gatehouse/internal/audit"
	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/constraints"
	"github.com/arbiterhq/gatehouse/internal/engine"
	"github.com/arbiterhq/gatehouse/internal/ledger"
	"github.com/arbiterhq/gatehouse/internal/risk"
)

// ErrGovernanceUnavailable means the decision could not be safely recorded:
// both audit sinks failed. This is not a policy rejection — the caller must
// not create the agent and must not treat the request as evaluated.
var ErrGovernanceUnavailable = errors.New("governor: governance unavailable")

// Service runs the decision pipeline:
// Received → Evaluating → (Rejected | RiskClassified → ConstraintsResolved → Approved).
// Each call is independent; the only shared mutable state lives behind the
// ledger, and the only blocking I/O besides catalog lookups is the audit
// dual write.
type Service struct {
	catalog    catalog.Catalog
	evaluator  *engine.Evaluator
	classifier *risk.Classifier
	resolver   *constraints.Resolver
	emitter    *audit.Emitter
	ledger     ledger.Ledger
	logger     *zap.Logger
}

// Config wires a Service. Every dependency is explicit; the engine holds no
// global state so tests can run pipelines in parallel.
type Config struct {
	Catalog    catalog.Catalog
	Evaluator  *engine.Evaluator
	Classifier *risk.Classifier
	Resolver   *constraints.Resolver
	Emitter    *audit.Emitter
	Ledger     ledger.Ledger
	Logger     *zap.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	return &Service{
		catalog:    cfg.Catalog,
		evaluator:  cfg.Evaluator,
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		emitter:    cfg.Emitter,
		ledger:     cfg.Ledger,
		logger:     cfg.Logger,
	}
}

// EvaluateCreation runs one creation request to a terminal state. It returns
// an error only when the decision could not be safely recorded (wrapping
// ErrGovernanceUnavailable); every policy outcome, including rejection, is a
// nil-error DecisionResult.
func (s *Service) EvaluateCreation(ctx context.Context, req *engine.DecisionRequest) (*DecisionResult, error) {
	decisionID := req.RequestID
	if decisionID == "" {
		decisionID = uuid.New().String()
	}
	rec := audit.NewRecorder(decisionID)

	// Received
	if err := s.emitter.Emit(ctx, rec.Next(audit.EventRequested, map[string]any{
		"actor_id":      req.Actor.ActorID,
		"role":          req.Actor.Role,
		"subsystem":     req.Actor.Subsystem,
		"agent_type":    req.Config.AgentType,
		"template_name": req.TemplateName,
		"config_hash":   req.ConfigHash,
	})); err != nil {
		return nil, s.unavailable(decisionID, nil, err)
	}

	// Evaluating
	template, err := s.catalog.GetTemplate(ctx, req.TemplateName)
	if err != nil {
		s.logger.Warn("template catalog lookup failed",
			zap.String("decision_id", decisionID),
			zap.String("template", req.TemplateName),
			zap.Error(err),
		)
		// Continue with nil template; group B decides.
	}
	profile, err := s.catalog.GetProfile(ctx, req.Config.AgentType)
	if err != nil {
		s.logger.Warn("agent type profile lookup failed",
			zap.String("decision_id", decisionID),
			zap.String("agent_type", req.Config.AgentType),
			zap.Error(err),
		)
	}

	outcome := s.evaluator.Evaluate(ctx, &engine.EvalInput{
		Request:  req,
		Template: template,
		Profile:  profile,
	})

	if err := s.emitter.Emit(ctx, rec.Next(audit.EventEvaluated, map[string]any{
		"rejected":   outcome.Rejected,
		"reason":     string(outcome.Reason),
		"rules":      outcome.RuleIDs,
		"customized": outcome.Customized,
	})); err != nil {
		return nil, s.unavailable(decisionID, outcome.Reservation, err)
	}

	// Risk is classified on every path so rejection audit records are complete.
	assessment := s.classifier.Classify(outcome, profile)

	if outcome.Rejected {
		return s.reject(ctx, rec, req, outcome, assessment)
	}

	// RiskClassified → ConstraintsResolved
	resolved, err := s.resolver.Resolve(req)
	if err != nil {
		// A passing evaluation with no constraint defaults is a configuration
		// hole; fail closed rather than approve unconstrained.
		s.logger.Error("constraint resolution failed",
			zap.String("decision_id", decisionID),
			zap.Error(err),
		)
		outcome.Reason = engine.ReasonCapabilityEscalation
		outcome.Detail = fmt.Sprintf("constraints unresolvable: %v", err)
		outcome.Rejected = true
		return s.reject(ctx, rec, req, outcome, assessment)
	}

	if err := s.emitter.Emit(ctx, rec.Next(audit.EventConstraintsApplied, map[string]any{
		"locked_fields":             resolved.LockedFields,
		"budget_per_task":           resolved.BudgetPerTask,
		"budget_per_day":            resolved.BudgetPerDay,
		"max_parallel_tasks":        resolved.MaxParallelTasks,
		"requires_human_activation": resolved.RequiresHumanActivation,
	})); err != nil {
		return nil, s.unavailable(decisionID, outcome.Reservation, err)
	}

	// Approved
	if err := s.emitter.Emit(ctx, rec.Next(audit.EventApproved, map[string]any{
		"risk_tier":  assessment.Tier.String(),
		"quarantine": assessment.Quarantine,
		"kind":       engine.KindApproveWithConstraints.String(),
	})); err != nil {
		return nil, s.unavailable(decisionID, outcome.Reservation, err)
	}

	// The reservation becomes permanent only after the approval is recorded.
	if outcome.Reservation != nil {
		if err := s.ledger.Commit(ctx, outcome.Reservation); err != nil {
			s.logger.Error("reservation commit failed",
				zap.String("decision_id", decisionID),
				zap.String("reservation_id", outcome.Reservation.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("creation approved",
		zap.String("decision_id", decisionID),
		zap.String("agent_type", req.Config.AgentType),
		zap.String("risk_tier", assessment.Tier.String()),
		zap.Bool("quarantine", assessment.Quarantine),
	)

	return &DecisionResult{
		DecisionID:  decisionID,
		Approved:    true,
		Kind:        engine.KindApproveWithConstraints,
		RiskTier:    assessment.Tier,
		Quarantine:  assessment.Quarantine,
		Constraints: resolved,
		RuleIDs:     outcome.RuleIDs,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) reject(
	ctx context.Context,
	rec *audit.Recorder,
	req *engine.DecisionRequest,
	outcome *engine.Outcome,
	assessment risk.Assessment,
) (*DecisionResult, error) {
	decisionID := rec.DecisionID()

	// A reservation held by group D is returned when a later check rejects.
	if outcome.Reservation != nil {
		if err := s.ledger.Release(ctx, outcome.Reservation); err != nil {
			s.logger.Error("reservation release failed",
				zap.String("decision_id", decisionID),
				zap.String("reservation_id", outcome.Reservation.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.emitter.Emit(ctx, rec.Next(audit.EventRejected, map[string]any{
		"reason":     string(outcome.Reason),
		"detail":     outcome.Detail,
		"risk_tier":  assessment.Tier.String(),
		"quarantine": assessment.Quarantine,
	})); err != nil {
		return nil, s.unavailable(decisionID, nil, err)
	}

	s.logger.Info("creation rejected",
		zap.String("decision_id", decisionID),
		zap.String("agent_type", req.Config.AgentType),
		zap.String("reason", string(outcome.Reason)),
	)

	return &DecisionResult{
		DecisionID:  decisionID,
		Approved:    false,
		Kind:        engine.KindReject,
		Reason:      outcome.Reason,
		Detail:      outcome.Detail,
		RiskTier:    assessment.Tier,
		Quarantine:  assessment.Quarantine,
		RuleIDs:     outcome.RuleIDs,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

// unavailable releases any held reservation and wraps the fatal audit error.
func (s *Service) unavailable(decisionID string, res *ledger.Reservation, cause error) error {
	if res != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.ledger.Release(ctx, res); err != nil {
			s.logger.Error("reservation release after audit failure",
				zap.String("decision_id", decisionID),
				zap.String("reservation_id", res.ID),
				zap.Error(err),
			)
		}
	}
	s.logger.Error("decision could not be recorded",
		zap.String("decision_id", decisionID),
		zap.Error(cause),
	)
	return fmt.Errorf("EvaluateCreation: %w: %w", ErrGovernanceUnavailable, cause)
}
