package guardrail

import (
	"context"
	"fmt"
	"strings"
)

// ConstraintRule maps a trigger phrase expected in a governing artifact to
// the phrases a candidate must then avoid. Rules are evaluated in order so
// violation lists are deterministic.
type ConstraintRule struct {
	// Category labels the constraint dimension, e.g. "connectivity".
	Category string

	// Trigger is the phrase in the governing artifact that activates the
	// rule.
	Trigger string

	// Forbidden are the canonical phrases the candidate may not contain
	// while the trigger is present.
	Forbidden []string
}

// AlignmentChecker detects contradictions between a governing artifact and a
// candidate. It runs twice per artifact lifecycle: pre-generation against the
// accumulated context (rejecting degenerate contexts before an oracle call is
// spent) and post-generation against the candidate (catching drift).
type AlignmentChecker struct {
	rules       []ConstraintRule
	equivalents map[string][]string
}

// AlignmentOption configures an AlignmentChecker.
type AlignmentOption func(*AlignmentChecker)

// WithRules appends constraint rules to the default table.
func WithRules(rules ...ConstraintRule) AlignmentOption {
	return func(c *AlignmentChecker) {
		c.rules = append(c.rules, rules...)
	}
}

// WithEquivalents registers extra phrasings that count as a canonical
// forbidden phrase.
func WithEquivalents(canonical string, phrases ...string) AlignmentOption {
	return func(c *AlignmentChecker) {
		c.equivalents[canonical] = append(c.equivalents[canonical], phrases...)
	}
}

// NewAlignmentChecker creates a checker with the default constraint table.
func NewAlignmentChecker(opts ...AlignmentOption) *AlignmentChecker {
	c := &AlignmentChecker{
		rules:       defaultRules(),
		equivalents: defaultEquivalents(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultRules covers the constraint dimensions a product vision commonly
// pins down: connectivity model, platform scope, user-segment complexity,
// and deployment model.
func defaultRules() []ConstraintRule {
	return []ConstraintRule{
		{
			Category: "connectivity",
			Trigger:  "offline-first",
			Forbidden: []string{
				"real-time", "always-online", "cloud-sync",
			},
		},
		{
			Category: "platform",
			Trigger:  "mobile-only",
			Forbidden: []string{
				"cloud dashboard", "web dashboard", "desktop app", "browser extension",
			},
		},
		{
			Category: "user-segment",
			Trigger:  "casual users",
			Forbidden: []string{
				"enterprise admins", "power users", "professional analysts",
			},
		},
		{
			Category: "deployment",
			Trigger:  "on-premise",
			Forbidden: []string{
				"saas", "cloud-hosted", "managed service",
			},
		},
		{
			Category: "tenancy",
			Trigger:  "single-tenant",
			Forbidden: []string{
				"multi-tenant", "shared infrastructure",
			},
		},
	}
}

// defaultEquivalents maps canonical forbidden phrases to alternate phrasings
// that match the same contradiction.
func defaultEquivalents() map[string][]string {
	return map[string][]string{
		"real-time":         {"realtime", "real time", "live sync", "live updates"},
		"always-online":     {"always online", "permanent connection"},
		"cloud-sync":        {"cloud sync", "cloud synchronization"},
		"cloud dashboard":   {"cloud-based dashboard", "web console", "admin console"},
		"web dashboard":     {"web-based dashboard", "browser dashboard"},
		"desktop app":       {"desktop application", "desktop client"},
		"enterprise admins": {"enterprise administrators", "corporate admins", "it administrators"},
		"power users":       {"power-users", "advanced users"},
		"saas":              {"software as a service", "saas offering"},
		"multi-tenant":      {"multitenant", "multi tenant"},
	}
}

// Name returns the guardrail identifier.
func (c *AlignmentChecker) Name() string {
	return "alignment"
}

// Check raises one violation for every (trigger, forbidden) pair where the
// trigger appears in any governing text and the forbidden phrase, or one of
// its equivalents, appears in the candidate. Violation text names the
// canonical forbidden phrase and the trigger it conflicts with.
func (c *AlignmentChecker) Check(_ context.Context, req *CheckRequest) (*Verdict, error) {
	v := passed(c.Name())
	if len(req.Governing) == 0 || req.CandidateText == "" {
		return v, nil
	}

	governing := strings.ToLower(strings.Join(req.Governing, "\n"))
	candidate := strings.ToLower(req.CandidateText)

	seen := make(map[string]bool)
	for _, rule := range c.rules {
		if !strings.Contains(governing, strings.ToLower(rule.Trigger)) {
			continue
		}
		for _, forbidden := range rule.Forbidden {
			if !c.matches(candidate, forbidden) {
				continue
			}
			violation := fmt.Sprintf("%s conflicts with %s", forbidden, rule.Trigger)
			if seen[violation] {
				continue
			}
			seen[violation] = true
			v.Violations = append(v.Violations, violation)
			v.SuggestedFixes = append(v.SuggestedFixes, fmt.Sprintf(
				"remove or rephrase %q; the governing artifact commits to %q (%s)",
				forbidden, rule.Trigger, rule.Category))
		}
	}

	v.Passed = len(v.Violations) == 0
	return v, nil
}

// matches reports whether the candidate contains the canonical phrase or any
// registered equivalent.
func (c *AlignmentChecker) matches(candidate, canonical string) bool {
	if strings.Contains(candidate, strings.ToLower(canonical)) {
		return true
	}
	for _, alt := range c.equivalents[canonical] {
		if strings.Contains(candidate, strings.ToLower(alt)) {
			return true
		}
	}
	return false
}
