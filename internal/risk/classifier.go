// Package risk derives a risk tier and quarantine flag from an evaluation
// outcome and static agent type metadata. Pure lookup plus boolean OR; no
// scoring models.
package risk

import (
	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/engine"
)

// Assessment is the classifier's output.
type Assessment struct {
	Tier       engine.RiskTier
	Quarantine bool
}

// Classifier maps evaluation outcomes to risk assessments.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify derives the assessment. Critical agent types always classify as
// critical with quarantine, regardless of every other signal. Any surviving
// customization elevates the tier to at least medium. An unknown agent type
// classifies high with quarantine; such requests are already rejected by the
// rules, this keeps their audit record conservative.
func (c *Classifier) Classify(out *engine.Outcome, profile *catalog.AgentTypeProfile) Assessment {
	if profile == nil {
		return Assessment{Tier: engine.RiskHigh, Quarantine: true}
	}

	if profile.Critical {
		return Assessment{Tier: engine.RiskCritical, Quarantine: true}
	}

	tier := engine.ParseRiskTier(profile.BaseRiskTier)
	if out.Customized && tier < engine.RiskMedium {
		tier = engine.RiskMedium
	}

	return Assessment{Tier: tier, Quarantine: false}
}
