package converge

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// DefaultThreshold is the quality score a candidate must reach to be
// accepted without review.
const DefaultThreshold = 0.80

var (
	digitRe     = regexp.MustCompile(`\d`)
	conditionRe = regexp.MustCompile(`[;\n]+`)
)

// measurableTerms signal that a condition states something checkable rather
// than aspirational.
var measurableTerms = []string{
	"given", "when", "then",
	"within", "at least", "at most", "no more than", "less than",
	"returns", "displays", "rejects", "fails", "succeeds",
	"must", "shall", "verify", "verified", "measured",
}

// Score computes the deterministic quality score of a candidate: 60% required
// field coverage, 40% verifiability of the candidate's conditions field. A
// schema without a verifiable field is scored on coverage alone. Two calls
// with the same candidate always return the same score.
func Score(def *schema.Definition, a *artifact.Artifact) float64 {
	coverage := requiredCoverage(def, a)

	name, ok := def.VerifiableField()
	if !ok {
		return coverage
	}

	conditions, _ := a.Field(name)
	return 0.6*coverage + 0.4*conditionScore(conditions)
}

// requiredCoverage is the fraction of required fields populated.
func requiredCoverage(def *schema.Definition, a *artifact.Artifact) float64 {
	required, filled := 0, 0
	for _, f := range def.Fields {
		if !f.Required {
			continue
		}
		required++
		if _, ok := a.Field(f.Name); ok {
			filled++
		}
	}
	if required == 0 {
		return 1
	}
	return float64(filled) / float64(required)
}

// conditionScore is the fraction of stated conditions that look verifiable: a
// condition counts when it carries a number, a given/when/then clause, or a
// measurable phrasing.
func conditionScore(conditions string) float64 {
	total, verifiable := 0, 0
	for _, c := range conditionRe.Split(conditions, -1) {
		c = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(c), "-* "))
		if c == "" {
			continue
		}
		total++
		if verifiableCondition(c) {
			verifiable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(verifiable) / float64(total)
}

func verifiableCondition(c string) bool {
	lc := strings.ToLower(c)
	if digitRe.MatchString(lc) {
		return true
	}
	for _, term := range measurableTerms {
		if strings.Contains(lc, term) {
			return true
		}
	}
	return false
}
