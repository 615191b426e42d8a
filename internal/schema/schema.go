// Package schema defines the structured shape of each artifact type: which
// fields exist, which are required, and the interview question to ask while a
// required field is still absent. Every other engine component consumes the
// registry; field iteration order is always schema order, never map order.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
)

// Errors for registry operations.
var (
	ErrUnknownType    = errors.New("unknown artifact type")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidSchema  = errors.New("invalid schema definition")
	ErrTypeRegistered = errors.New("artifact type already registered")
)

// FieldDef describes a single artifact field.
type FieldDef struct {
	// Name is the field identifier, unique within the artifact type.
	Name string `yaml:"name" json:"name"`

	// Description documents what the field captures.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Required marks the field as needed for completeness.
	Required bool `yaml:"required" json:"required"`

	// Question is surfaced as an open question while the field is absent.
	Question string `yaml:"question,omitempty" json:"question,omitempty"`

	// Verifiable marks the field holding the artifact's verifiable
	// conditions (acceptance criteria). Quality scoring and the
	// requirement binder inspect this field.
	Verifiable bool `yaml:"verifiable,omitempty" json:"verifiable,omitempty"`
}

// Definition is the schema for one artifact type.
type Definition struct {
	Type   artifact.Type `yaml:"type" json:"type"`
	Fields []FieldDef    `yaml:"fields" json:"fields"`
}

// FieldNames returns all field names in schema order.
func (d *Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the definition of a named field.
func (d *Definition) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// VerifiableField returns the name of the field marked Verifiable, if any.
func (d *Definition) VerifiableField() (string, bool) {
	for _, f := range d.Fields {
		if f.Verifiable {
			return f.Name, true
		}
	}
	return "", false
}

// validate checks structural soundness of a definition.
func (d *Definition) validate() error {
	if d.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidSchema)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidSchema, d.Type)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed field", ErrInvalidSchema, d.Type)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s declares field %q twice", ErrInvalidSchema, d.Type, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Registry holds artifact schemas keyed by type.
type Registry struct {
	mu   sync.RWMutex
	defs map[artifact.Type]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[artifact.Type]*Definition)}
}

// Default returns a registry preloaded with the built-in vision, roadmap,
// and story schemas.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range builtinDefinitions() {
		// Built-ins are statically valid.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. Registering an already-known type is an error;
// overrides go through LoadYAML before first use.
func (r *Registry) Register(d *Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[d.Type]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, d.Type)
	}
	r.defs[d.Type] = d
	return nil
}

// Get returns the definition for an artifact type.
func (r *Registry) Get(t artifact.Type) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return d, nil
}

// Types returns the registered artifact types, sorted.
func (r *Registry) Types() []artifact.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]artifact.Type, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// LoadYAML replaces or adds definitions from a YAML document containing a
// list of definitions. Used for operator-supplied schema overrides.
func (r *Registry) LoadYAML(data []byte) error {
	var defs []*Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("parsing schema yaml: %w", err)
	}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range defs {
		r.defs[d.Type] = d
	}
	return nil
}

// Validate checks an artifact against its schema. Fields unknown to the
// schema are rejected; absent required fields are not an error here (they are
// open questions, not violations).
func (r *Registry) Validate(a *artifact.Artifact) error {
	d, err := r.Get(a.Type)
	if err != nil {
		return err
	}
	for name := range a.Fields {
		if _, ok := d.Field(name); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, a.Type, name)
		}
	}
	return nil
}

// OpenQuestions returns the interview questions for the required fields still
// absent, in schema order. Questions for filled fields are removed, never
// reworded.
func (r *Registry) OpenQuestions(a *artifact.Artifact) []string {
	d, err := r.Get(a.Type)
	if err != nil {
		return nil
	}
	questions := []string{}
	for _, f := range d.Fields {
		if !f.Required {
			continue
		}
		if _, ok := a.Field(f.Name); ok {
			continue
		}
		q := f.Question
		if q == "" {
			q = fmt.Sprintf("What is the %s?", f.Name)
		}
		questions = append(questions, q)
	}
	return questions
}

// IsComplete reports whether all required fields are populated.
func (r *Registry) IsComplete(a *artifact.Artifact) bool {
	d, err := r.Get(a.Type)
	if err != nil {
		return false
	}
	for _, f := range d.Fields {
		if !f.Required {
			continue
		}
		if _, ok := a.Field(f.Name); !ok {
			return false
		}
	}
	return true
}

// Refresh recomputes the derived attributes of an artifact (open questions
// and completeness) from the current field values.
func (r *Registry) Refresh(a *artifact.Artifact) {
	a.OpenQuestions = r.OpenQuestions(a)
	a.IsComplete = r.IsComplete(a)
}
