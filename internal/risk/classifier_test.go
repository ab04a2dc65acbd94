package risk

import (
	"testing"

	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/engine"
)

func TestClassify_NilProfile(t *testing.T) {
	c := NewClassifier()
	got := c.Classify(&engine.Outcome{}, nil)
	if got.Tier != engine.RiskHigh || !got.Quarantine {
		t.Errorf("unknown agent type should classify high+quarantine, got %+v", got)
	}
}

func TestClassify_CriticalAlwaysWins(t *testing.T) {
	c := NewClassifier()
	profile := &catalog.AgentTypeProfile{AgentType: "treasury", BaseRiskTier: "low", Critical: true}

	got := c.Classify(&engine.Outcome{}, profile)
	if got.Tier != engine.RiskCritical || !got.Quarantine {
		t.Errorf("critical type should classify critical+quarantine, got %+v", got)
	}
}

func TestClassify_BaseTier(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		base       string
		customized bool
		want       engine.RiskTier
	}{
		{"low", false, engine.RiskLow},
		{"low", true, engine.RiskMedium},
		{"medium", false, engine.RiskMedium},
		{"high", true, engine.RiskHigh}, // already above the elevation floor
		{"bogus", false, engine.RiskLow},
	}

	for _, tt := range tests {
		profile := &catalog.AgentTypeProfile{AgentType: "researcher", BaseRiskTier: tt.base}
		got := c.Classify(&engine.Outcome{Customized: tt.customized}, profile)
		if got.Tier != tt.want {
			t.Errorf("base=%s customized=%v: tier=%s want %s", tt.base, tt.customized, got.Tier, tt.want)
		}
		if got.Quarantine {
			t.Errorf("base=%s: non-critical types never quarantine", tt.base)
		}
	}
}
