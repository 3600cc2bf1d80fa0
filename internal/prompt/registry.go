// Package prompt holds the fixed prompt templates sent to the model and renders them.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Operation names a fixed prompt template.
type Operation string

const (
	OpExtractMetadata Operation = "extract-metadata"
	OpSummarize       Operation = "summarize"
	OpIdentifyIssues  Operation = "identify-issues"
	OpPriceContext    Operation = "price-context"
	OpRewriteClause   Operation = "rewrite-clause"
	OpRightsAdvice    Operation = "rights-advice"
)

// Shape is the form the model is asked to answer in.
type Shape string

const (
	ShapeText   Shape = "text"
	ShapeObject Shape = "object"
	ShapeArray  Shape = "array"
)

var (
	ErrUnknownOperation = errors.New("unknown prompt operation")
	ErrMissingArgument  = errors.New("missing prompt argument")
)

// Operations lists every operation the registry must define.
var Operations = []Operation{
	OpExtractMetadata,
	OpSummarize,
	OpIdentifyIssues,
	OpPriceContext,
	OpRewriteClause,
	OpRightsAdvice,
}

//go:embed templates.yaml
var defaultTemplates []byte

// Template is one prompt definition.
type Template struct {
	Operation Operation      `yaml:"operation"`
	Shape     Shape          `yaml:"shape"`
	Args      []string       `yaml:"args"`
	Truncate  map[string]int `yaml:"truncate"`
	Body      string         `yaml:"body"`

	tmpl *template.Template
}

type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// Registry renders prompts by operation. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	templates map[Operation]*Template
}

// New builds a Registry from the embedded template definitions.
func New() (*Registry, error) {
	return Parse(defaultTemplates)
}

// MustNew is like New but panics if the embedded templates are invalid.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Parse builds a Registry from a YAML document. Every operation in Operations
// must be defined exactly once.
func Parse(data []byte) (*Registry, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}

	r := &Registry{templates: make(map[Operation]*Template, len(f.Templates))}
	for _, t := range f.Templates {
		if _, dup := r.templates[t.Operation]; dup {
			return nil, fmt.Errorf("prompt template %q defined twice", t.Operation)
		}
		switch t.Shape {
		case ShapeText, ShapeObject, ShapeArray:
		default:
			return nil, fmt.Errorf("prompt template %q: invalid shape %q", t.Operation, t.Shape)
		}
		tmpl, err := template.New(string(t.Operation)).Option("missingkey=error").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("prompt template %q: %w", t.Operation, err)
		}
		t.tmpl = tmpl
		r.templates[t.Operation] = t
	}

	for _, op := range Operations {
		if _, ok := r.templates[op]; !ok {
			return nil, fmt.Errorf("prompt template %q: %w", op, ErrUnknownOperation)
		}
	}
	return r, nil
}

// Render fills the template for op with args. Every argument the template
// declares must be present. String arguments with a truncation limit are cut
// to their leading characters before substitution.
func (r *Registry) Render(op Operation, args map[string]any) (string, error) {
	t, ok := r.templates[op]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	var missing []string
	data := make(map[string]any, len(t.Args))
	for _, name := range t.Args {
		v, ok := args[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if limit, ok := t.Truncate[name]; ok {
			if s, isString := v.(string); isString {
				v = truncateRunes(s, limit)
			}
		}
		data[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w for %q: %s", ErrMissingArgument, op, strings.Join(missing, ", "))
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %q: %w", op, err)
	}
	return b.String(), nil
}

// Shape returns the answer shape declared for op.
func (r *Registry) Shape(op Operation) (Shape, error) {
	t, ok := r.templates[op]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return t.Shape, nil
}

// truncateRunes returns the leading n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
