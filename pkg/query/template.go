// Package query compiles and executes the parameterized query templates
// that turn a question class into concrete triple patterns against a
// knowledge graph.
package query

import (
	"fmt"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// Binding kinds for literal inputs. Any other kind names the entity kind
// the binding is expected to reference.
const (
	BindingRef    = "ref"
	BindingString = "string"
	BindingNumber = "number"
	BindingBool   = "bool"
	BindingDate   = "date"
)

// BindingSpec declares one caller-supplied input of a template. Kind
// selects how the raw value is interpreted: "string", "number", "bool"
// and "date" produce literals, everything else binds an entity reference.
// A concrete entity kind such as "client" additionally tells retrieval
// which scanned entities qualify; "ref" or an empty kind accepts any.
type BindingSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// PatternSpec is one triple pattern in source form. Subject and object
// accept "*", "$variable", "<Entity_ID>", "text^^kind" and plain string
// literals. The predicate is always a concrete name.
type PatternSpec struct {
	Subject   string `yaml:"subject" json:"subject"`
	Predicate string `yaml:"predicate" json:"predicate"`
	Object    string `yaml:"object" json:"object"`
}

// Template is a named, parameterized graph query. Patterns sharing a
// variable are joined; a row must satisfy every pattern to survive.
// Required lists the predicates an answer cannot do without, which the
// reasoning stage checks before any text is generated.
type Template struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string      `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Bindings    []BindingSpec `yaml:"bindings,omitempty" json:"bindings,omitempty"`
	Patterns    []PatternSpec `yaml:"patterns" json:"patterns"`
	Required    []string      `yaml:"required,omitempty" json:"required,omitempty"`
}

type termKind int

const (
	termWildcard termKind = iota
	termVariable
	termValue
)

// term is one position of a compiled pattern. Exactly one of variable
// and value is meaningful, selected by kind.
type term struct {
	kind     termKind
	variable string
	value    kg.Value
}

// parseTerm reads the template pattern term syntax:
//
//	*            matches anything
//	$name        binds or tests the variable "name"
//	<Entity_ID>  a concrete entity reference
//	text^^kind   a typed literal (number, bool, date)
//	text         a plain string literal
func parseTerm(s string) (term, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return term{}, fmt.Errorf("empty term")
	case s == "*":
		return term{kind: termWildcard}, nil
	case strings.HasPrefix(s, "$"):
		name := s[1:]
		if name == "" {
			return term{}, fmt.Errorf("empty variable name")
		}
		return term{kind: termVariable, variable: name}, nil
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		id := s[1 : len(s)-1]
		if id == "" {
			return term{}, fmt.Errorf("empty entity reference")
		}
		return term{kind: termValue, value: kg.Ref(id)}, nil
	}

	if text, kindName, ok := strings.Cut(s, "^^"); ok {
		switch kg.ValueKind(kindName) {
		case kg.ValueNumber:
			return term{kind: termValue, value: kg.Number(text)}, nil
		case kg.ValueBool:
			return term{kind: termValue, value: kg.Value{Kind: kg.ValueBool, Text: text}}, nil
		case kg.ValueDate:
			return term{kind: termValue, value: kg.Date(text)}, nil
		default:
			return term{}, fmt.Errorf("unknown literal kind %q", kindName)
		}
	}
	return term{kind: termValue, value: kg.String(s)}, nil
}

func convertBinding(spec BindingSpec, raw string) (kg.Value, error) {
	switch spec.Kind {
	case BindingString:
		return kg.String(raw), nil
	case BindingNumber:
		return kg.Number(raw), nil
	case BindingBool:
		if raw != "true" && raw != "false" {
			return kg.Value{}, fmt.Errorf("invalid bool %q for binding $%s", raw, spec.Name)
		}
		return kg.Value{Kind: kg.ValueBool, Text: raw}, nil
	case BindingDate:
		return kg.Date(raw), nil
	default:
		return kg.Ref(raw), nil
	}
}

type compiledPattern struct {
	subject   term
	predicate string
	object    term
}

// compiledTemplate carries the parsed pattern terms next to the template
// they came from.
type compiledTemplate struct {
	src      Template
	bindings []BindingSpec
	patterns []compiledPattern
}

func compileTemplate(t Template) (*compiledTemplate, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("template name must not be empty")
	}
	if len(t.Patterns) == 0 {
		return nil, fmt.Errorf("template %q has no patterns", t.Name)
	}

	declared := make(map[string]struct{}, len(t.Bindings))
	for _, b := range t.Bindings {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("template %q declares a binding without a name", t.Name)
		}
		if _, ok := declared[b.Name]; ok {
			return nil, fmt.Errorf("template %q declares binding $%s twice", t.Name, b.Name)
		}
		declared[b.Name] = struct{}{}
	}

	used := make(map[string]struct{})
	patterns := make([]compiledPattern, 0, len(t.Patterns))
	for i, p := range t.Patterns {
		subject, err := parseTerm(p.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %q pattern %d subject: %w", t.Name, i+1, err)
		}
		if subject.kind == termValue && !subject.value.IsRef() {
			return nil, fmt.Errorf("template %q pattern %d subject must be a reference, variable, or wildcard", t.Name, i+1)
		}

		predicate := strings.TrimSpace(p.Predicate)
		if predicate == "" || strings.ContainsAny(predicate, "*$<>") {
			return nil, fmt.Errorf("template %q pattern %d predicate must be a concrete name", t.Name, i+1)
		}

		object, err := parseTerm(p.Object)
		if err != nil {
			return nil, fmt.Errorf("template %q pattern %d object: %w", t.Name, i+1, err)
		}

		if subject.kind == termVariable {
			used[subject.variable] = struct{}{}
		}
		if object.kind == termVariable {
			used[object.variable] = struct{}{}
		}
		patterns = append(patterns, compiledPattern{subject: subject, predicate: predicate, object: object})
	}

	for _, b := range t.Bindings {
		if _, ok := used[b.Name]; !ok {
			return nil, fmt.Errorf("template %q binding $%s is never used by a pattern", t.Name, b.Name)
		}
	}

	return &compiledTemplate{src: t, bindings: t.Bindings, patterns: patterns}, nil
}
