package schema

import "github.com/fyrsmithlabs/draftd/internal/artifact"

// builtinDefinitions returns the default schemas for the three pipeline
// phases. Operators can override these with a YAML schema file.
func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Type: artifact.TypeVision,
			Fields: []FieldDef{
				{Name: "product_name", Required: true,
					Description: "Working name of the product",
					Question:    "What is the product called?"},
				{Name: "problem", Required: true,
					Description: "The problem the product solves",
					Question:    "What problem does the product solve?"},
				{Name: "target_users", Required: true,
					Description: "Who the product is for",
					Question:    "Who are the target users?"},
				{Name: "value_proposition", Required: true,
					Description: "Why users would choose this product",
					Question:    "What is the core value proposition?"},
				{Name: "platform", Required: true,
					Description: "Platform and connectivity boundaries",
					Question:    "Which platforms does the product target?"},
				{Name: "differentiators", Required: true,
					Description: "What sets the product apart",
					Question:    "What differentiates the product from alternatives?"},
				{Name: "success_metrics", Required: true,
					Description: "How success will be measured",
					Question:    "How will you measure success?"},
			},
		},
		{
			Type: artifact.TypeRoadmap,
			Fields: []FieldDef{
				{Name: "horizon", Required: true,
					Description: "Planning horizon for the roadmap",
					Question:    "What planning horizon should the roadmap cover?"},
				{Name: "milestones", Required: true,
					Description: "Ordered delivery milestones",
					Question:    "What are the major milestones, in order?"},
				{Name: "dependencies", Required: true,
					Description: "External or cross-milestone dependencies",
					Question:    "Which dependencies could block a milestone?"},
				{Name: "risks", Required: false,
					Description: "Known delivery risks"},
			},
		},
		{
			Type: artifact.TypeStory,
			Fields: []FieldDef{
				{Name: "title", Required: true,
					Description: "Short story title",
					Question:    "What is the story about, in one line?"},
				{Name: "persona", Required: true,
					Description: "The user the story serves",
					Question:    "As which user is this story told?"},
				{Name: "goal", Required: true,
					Description: "What the user wants to do",
					Question:    "What does the user want to accomplish?"},
				{Name: "benefit", Required: true,
					Description: "Why the user wants it",
					Question:    "What benefit does the user get?"},
				{Name: "acceptance_criteria", Required: true, Verifiable: true,
					Description: "Verifiable conditions that prove the story is done",
					Question:    "Which verifiable conditions prove the story is done?"},
				{Name: "notes", Required: false,
					Description: "Implementation notes or caveats"},
			},
		},
	}
}
