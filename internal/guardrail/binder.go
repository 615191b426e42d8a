package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Requirement is one hard requirement extracted from a reference document.
type Requirement struct {
	// Statement is the full requirement sentence.
	Statement string

	// Keys are the significant terms the candidate's verifiable
	// conditions must reference for the requirement to count as
	// satisfied.
	Keys []string
}

// RequirementBinder extracts hard requirements from reference documents and
// measures whether a candidate's verifiable conditions satisfy them. Unlike
// alignment violations, binder violations describe additions, never
// contradictions, so they are always refinable and never a pre-check reject.
type RequirementBinder struct {
	markers   []string
	stopwords map[string]struct{}
}

// satisfactionRatio is the share of a requirement's key terms that must
// appear in the candidate's conditions for the requirement to be satisfied.
const satisfactionRatio = 0.6

// NewRequirementBinder creates a binder with the default obligation markers.
func NewRequirementBinder() *RequirementBinder {
	stop := map[string]struct{}{}
	for _, w := range []string{
		"must", "shall", "required", "require", "requires", "should",
		"the", "a", "an", "and", "or", "of", "for", "to", "in", "on",
		"with", "from", "that", "this", "every", "each", "all", "any",
		"be", "is", "are", "was", "were", "will", "system", "product",
	} {
		stop[w] = struct{}{}
	}
	return &RequirementBinder{
		markers:   []string{"must", "shall", "required"},
		stopwords: stop,
	}
}

// Name returns the guardrail identifier.
func (b *RequirementBinder) Name() string {
	return "requirements"
}

var sentenceSplit = regexp.MustCompile(`[.;\n]+`)
var wordSplit = regexp.MustCompile(`[^a-z0-9_-]+`)

// Extract returns the hard requirements of a reference document: sentences
// containing an obligation marker as a whole word.
func (b *RequirementBinder) Extract(doc string) []Requirement {
	var reqs []Requirement
	for _, sentence := range sentenceSplit.Split(doc, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" || !b.hasMarker(sentence) {
			continue
		}
		reqs = append(reqs, Requirement{
			Statement: sentence,
			Keys:      b.keyTerms(sentence),
		})
	}
	return reqs
}

// hasMarker reports whether the sentence contains an obligation marker as a
// whole word, case-insensitively.
func (b *RequirementBinder) hasMarker(sentence string) bool {
	for _, word := range wordSplit.Split(strings.ToLower(sentence), -1) {
		for _, marker := range b.markers {
			if word == marker {
				return true
			}
		}
	}
	return false
}

// keyTerms extracts the significant words of a requirement: lowercased,
// longer than three characters, not a stopword or obligation marker.
func (b *RequirementBinder) keyTerms(sentence string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, word := range wordSplit.Split(strings.ToLower(sentence), -1) {
		if len(word) <= 3 {
			continue
		}
		if _, stop := b.stopwords[word]; stop {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		keys = append(keys, word)
	}
	return keys
}

// Check binds each requirement of every reference document against the
// candidate and reports the ones whose key terms are not sufficiently
// referenced by the candidate's verifiable conditions. Each violation carries
// a suggested concrete condition naming the missing terms.
func (b *RequirementBinder) Check(_ context.Context, req *CheckRequest) (*Verdict, error) {
	v := passed(b.Name())
	if len(req.ReferenceDocs) == 0 {
		return v, nil
	}

	conditions := strings.ToLower(req.Conditions)
	for _, doc := range req.ReferenceDocs {
		for _, r := range b.Extract(doc) {
			if len(r.Keys) == 0 {
				continue
			}
			missing := b.missingKeys(r, conditions)
			covered := len(r.Keys) - len(missing)
			if float64(covered) >= satisfactionRatio*float64(len(r.Keys)) {
				continue
			}
			v.Violations = append(v.Violations, fmt.Sprintf(
				"unsatisfied requirement: %q", r.Statement))
			v.SuggestedFixes = append(v.SuggestedFixes, fmt.Sprintf(
				"add a verifiable condition referencing %s", quoteList(missing)))
		}
	}

	v.Passed = len(v.Violations) == 0
	return v, nil
}

// missingKeys returns the key terms absent from the conditions text, in
// requirement order.
func (b *RequirementBinder) missingKeys(r Requirement, conditions string) []string {
	var missing []string
	for _, key := range r.Keys {
		if !strings.Contains(conditions, key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// quoteList renders terms as a readable quoted list.
func quoteList(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(quoted, ", ")
}
