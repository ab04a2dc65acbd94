package groups

import (
	"context"
	"fmt"
	"strings"

	"github.com/arbiterhq/gatehouse/internal/engine"
)

const sha256Prefix = "sha256:"
const sha256HexLen = 64

// TemplateIntegrity is rule group B: the template content hash must be
// present and well-formed, and the template name must appear in the
// configured allowlist. A registered template whose catalog hash disagrees
// with the declared hash is treated as not-allowlisted.
type TemplateIntegrity struct {
	allowlist map[string]bool
}

// NewTemplateIntegrity creates group B with the configured template allowlist.
func NewTemplateIntegrity(allowlist []string) *TemplateIntegrity {
	m := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		m[name] = true
	}
	return &TemplateIntegrity{allowlist: m}
}

func (g *TemplateIntegrity) ID() string { return "template_integrity" }

func (g *TemplateIntegrity) Evaluate(_ context.Context, in *engine.EvalInput) engine.GroupResult {
	res := engine.GroupResult{RuleID: g.ID(), Passed: true}
	req := in.Request

	if req.TemplateHash == "" {
		res.Passed = false
		res.Reason = engine.ReasonTemplateHashMissing
		res.Detail = "template content hash is missing"
		return res
	}
	if !wellFormedHash(req.TemplateHash) {
		res.Passed = false
		res.Reason = engine.ReasonTemplateHashMissing
		res.Detail = fmt.Sprintf("template hash %q is not a well-formed sha256 digest", req.TemplateHash)
		return res
	}

	if req.TemplateName == "" || !g.allowlist[req.TemplateName] {
		res.Passed = false
		res.Reason = engine.ReasonTemplateNotInAllowlist
		res.Detail = fmt.Sprintf("template %q is not in the allowlist", req.TemplateName)
		return res
	}

	if in.Template != nil && in.Template.ContentHash != "" && in.Template.ContentHash != req.TemplateHash {
		res.Passed = false
		res.Reason = engine.ReasonTemplateNotInAllowlist
		res.Detail = fmt.Sprintf("declared hash does not match registered template %q", req.TemplateName)
	}

	return res
}

func wellFormedHash(h string) bool {
	if !strings.HasPrefix(h, sha256Prefix) {
		return false
	}
	hex := h[len(sha256Prefix):]
	if len(hex) != sha256HexLen {
		return false
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
