package render

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"text/template"
)

// Renderer resolves a template id and a variable map into content.
type Renderer interface {
	Render(ctx context.Context, templateID string, vars map[string]any) (Output, error)
}

// Template is a named subject/body pair.
// Subject is optional; channels without a subject line ignore it.
type Template struct {
	ID       string   `yaml:"id"`
	Subject  string   `yaml:"subject"`
	Body     string   `yaml:"body"`
	HTML     bool     `yaml:"html"`
	Required []string `yaml:"required"`
}

// Definitions is the on-disk shape of a templates file.
type Definitions struct {
	Templates []Template `yaml:"templates"`
}

// Output is rendered content.
type Output struct {
	Subject string
	Body    string
	HTML    bool
}

type compiled struct {
	def     Template
	subject *template.Template
	body    *template.Template
}

// Store compiles and renders named templates.
// Missing map keys are rendering errors, not "<no value>".
type Store struct {
	mu        sync.RWMutex
	templates map[string]compiled
}

// NewStore creates a store seeded with the given templates.
func NewStore(defs ...Template) (*Store, error) {
	s := &Store{templates: make(map[string]compiled, len(defs))}
	for _, d := range defs {
		if err := s.Register(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds or replaces a template definition.
func (s *Store) Register(def Template) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("%w: template id is required", ErrInvalidTemplate)
	}
	if strings.TrimSpace(def.Body) == "" {
		return fmt.Errorf("%w: template %s has an empty body", ErrInvalidTemplate, def.ID)
	}

	body, err := parse(def.ID+".body", def.Body)
	if err != nil {
		return err
	}
	c := compiled{def: def, body: body}
	if def.Subject != "" {
		if c.subject, err = parse(def.ID+".subject", def.Subject); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[def.ID] = c
	return nil
}

// Has reports whether a template is registered.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[id]
	return ok
}

// IDs returns the registered template ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Render executes the subject and body of templateID against vars.
func (s *Store) Render(_ context.Context, templateID string, vars map[string]any) (Output, error) {
	s.mu.RLock()
	c, ok := s.templates[templateID]
	s.mu.RUnlock()
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}

	if missing := missingVariables(c.def.Required, vars); len(missing) > 0 {
		return Output{}, fmt.Errorf("%w: template %s requires %s", ErrMissingVariable, templateID, strings.Join(missing, ", "))
	}
	if vars == nil {
		vars = map[string]any{}
	}

	out := Output{HTML: c.def.HTML}
	var err error
	if c.subject != nil {
		if out.Subject, err = execute(c.subject, vars); err != nil {
			return Output{}, err
		}
	}
	if out.Body, err = execute(c.body, vars); err != nil {
		return Output{}, err
	}
	return out, nil
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, vars map[string]any) (string, error) {
	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("%w: %w", ErrMissingVariable, err)
		}
		return "", fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return out.String(), nil
}

func missingVariables(required []string, vars map[string]any) []string {
	var missing []string
	for _, name := range required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
