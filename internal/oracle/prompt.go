package oracle

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// BuildGenerationPrompt renders the prompt for a full candidate draft. The
// prompt carries the schema, the accumulated state, the governing artifacts,
// and on refinement passes the previous iteration's guardrail feedback.
func BuildGenerationPrompt(gc *Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Draft a %s as a JSON object {\"fields\": {...}} using only these fields:\n", gc.Def.Type)
	writeSchema(&b, gc.Def)

	if gc.Prior != nil && gc.Prior.SetCount() > 0 {
		b.WriteString("\nConfirmed state (keep every confirmed value unless feedback demands otherwise):\n")
		b.WriteString(gc.Prior.Text(gc.Def.FieldNames()))
		b.WriteString("\n")
	}

	if len(gc.History) > 0 {
		b.WriteString("\nUser input so far:\n")
		for _, u := range gc.History {
			fmt.Fprintf(&b, "- %s\n", u)
		}
	}

	if len(gc.Governing) > 0 {
		b.WriteString("\nGoverning artifacts (the draft must not contradict these):\n")
		for _, g := range gc.Governing {
			b.WriteString(g)
			b.WriteString("\n")
		}
	}

	if len(gc.Feedback) > 0 {
		fmt.Fprintf(&b, "\nThis is refinement attempt %d. Previous draft failed these checks:\n", gc.Attempt)
		for _, verdict := range gc.Feedback {
			for i, violation := range verdict.Violations {
				fmt.Fprintf(&b, "- [%s] %s", verdict.Name, violation)
				if i < len(verdict.SuggestedFixes) {
					fmt.Fprintf(&b, " (fix: %s)", verdict.SuggestedFixes[i])
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\nRespond with the JSON object only.\n")
	return b.String()
}

// BuildExtractionPrompt renders the prompt asking which fields a new user
// utterance addresses. The response shape is {\"updates\": [{\"field\",
// \"value\", \"retract\"}]}; fields the utterance does not address must be
// omitted so the merge engine carries them forward.
func BuildExtractionPrompt(def *schema.Definition, prior *artifact.Artifact, rawText string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extract %s field updates from the user's message.\n", def.Type)
	b.WriteString("Fields:\n")
	writeSchema(&b, def)

	if prior != nil && prior.SetCount() > 0 {
		b.WriteString("\nCurrent confirmed values:\n")
		b.WriteString(prior.Text(def.FieldNames()))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nUser message:\n%s\n", rawText)
	b.WriteString("\nRespond with JSON {\"updates\": [{\"field\": ..., \"value\": ...}]} " +
		"listing only the fields this message addresses. " +
		"Use {\"field\": ..., \"retract\": true} only when the user explicitly withdraws a value.\n")
	return b.String()
}

// writeSchema lists the fields of a definition with their descriptions.
func writeSchema(b *strings.Builder, def *schema.Definition) {
	for _, f := range def.Fields {
		marker := "optional"
		if f.Required {
			marker = "required"
		}
		fmt.Fprintf(b, "- %s (%s): %s\n", f.Name, marker, f.Description)
	}
}
