package query

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// RegistryFile is the on-disk shape of a template registry. Multivalued
// lists the predicates that legitimately hold several values at once, so
// the reasoning stage treats their fact groups as sets instead of
// conflicts.
type RegistryFile struct {
	Multivalued []string   `yaml:"multivalued,omitempty" json:"multivalued,omitempty"`
	Templates   []Template `yaml:"templates" json:"templates"`
}

// Registry holds the compiled templates available to the engine. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	order       []string
	templates   map[string]*compiledTemplate
	multivalued map[string]struct{}
}

// NewRegistry compiles every template in the file and rejects duplicates
// and malformed patterns up front, so a bad registry is caught at startup
// rather than on the first query.
func NewRegistry(file RegistryFile) (*Registry, error) {
	r := &Registry{
		templates:   make(map[string]*compiledTemplate, len(file.Templates)),
		multivalued: make(map[string]struct{}, len(file.Multivalued)),
	}
	for _, t := range file.Templates {
		compiled, err := compileTemplate(t)
		if err != nil {
			return nil, fmt.Errorf("failed to build template registry: %w", err)
		}
		if _, ok := r.templates[t.Name]; ok {
			return nil, fmt.Errorf("failed to build template registry: duplicate template %q", t.Name)
		}
		r.templates[t.Name] = compiled
		r.order = append(r.order, t.Name)
	}
	for _, p := range file.Multivalued {
		if p == "" {
			continue
		}
		r.multivalued[p] = struct{}{}
	}
	return r, nil
}

// LoadRegistry parses a YAML registry from r.
func LoadRegistry(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read template registry: %w", err)
	}
	var file RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template registry: %w", err)
	}
	return NewRegistry(file)
}

// LoadRegistryFile parses a YAML registry from the file at path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template registry: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// DefaultRegistry returns the built-in templates used when no registry
// file is configured. It mirrors config/templates.yaml.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultRegistryFile())
	if err != nil {
		panic(fmt.Sprintf("built-in template registry is invalid: %v", err))
	}
	return r
}

// Template returns the source form of a registered template.
func (r *Registry) Template(name string) (Template, bool) {
	t, ok := r.templates[name]
	if !ok {
		return Template{}, false
	}
	return t.src, true
}

// Templates returns all registered templates in declaration order.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.templates[name].src)
	}
	return out
}

// IsMultivalued reports whether a predicate is declared to hold several
// values at once.
func (r *Registry) IsMultivalued(predicate string) bool {
	_, ok := r.multivalued[predicate]
	return ok
}

// Multivalued returns the declared multivalued predicates, sorted.
func (r *Registry) Multivalued() []string {
	out := make([]string, 0, len(r.multivalued))
	for p := range r.multivalued {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) compiled(name string) (*compiledTemplate, bool) {
	t, ok := r.templates[name]
	return t, ok
}

func defaultRegistryFile() RegistryFile {
	return RegistryFile{
		Multivalued: []string{"hasAccount", "hasTransaction", "isCompliantWith", "violatesRule"},
		Templates: []Template{
			{
				Name:        "client_kyc_exposure",
				Description: "KYC status of a client next to the transaction amounts moved through their accounts.",
				Keywords:    []string{"kyc", "status", "exposure", "amount", "transaction", "verified"},
				Bindings:    []BindingSpec{{Name: "client", Kind: "client"}},
				Patterns: []PatternSpec{
					{Subject: "$client", Predicate: "kycStatus", Object: "$kyc"},
					{Subject: "$client", Predicate: "hasAccount", Object: "$account"},
					{Subject: "$account", Predicate: "hasTransaction", Object: "$tx"},
					{Subject: "$tx", Predicate: "amount", Object: "$amount"},
				},
				Required: []string{"kycStatus", "amount"},
			},
			{
				Name:        "client_profile",
				Description: "Identity and risk profile of a client.",
				Keywords:    []string{"profile", "risk", "level", "who", "name"},
				Bindings:    []BindingSpec{{Name: "client", Kind: "client"}},
				Patterns: []PatternSpec{
					{Subject: "$client", Predicate: "name", Object: "$name"},
					{Subject: "$client", Predicate: "riskLevel", Object: "$risk"},
				},
				Required: []string{"name", "riskLevel"},
			},
			{
				Name:        "client_transactions",
				Description: "Every transaction reachable from a client's accounts.",
				Keywords:    []string{"transactions", "history", "account", "activity", "payments"},
				Bindings:    []BindingSpec{{Name: "client", Kind: "client"}},
				Patterns: []PatternSpec{
					{Subject: "$client", Predicate: "hasAccount", Object: "$account"},
					{Subject: "$account", Predicate: "accountType", Object: "$atype"},
					{Subject: "$account", Predicate: "hasTransaction", Object: "$tx"},
					{Subject: "$tx", Predicate: "amount", Object: "$amount"},
					{Subject: "$tx", Predicate: "date", Object: "$date"},
					{Subject: "$tx", Predicate: "status", Object: "$status"},
				},
				Required: []string{"amount", "date"},
			},
			{
				Name:        "transaction_compliance",
				Description: "Compliance flag of a transaction and the rules it satisfies.",
				Keywords:    []string{"compliant", "compliance", "satisfies", "check", "rule"},
				Bindings:    []BindingSpec{{Name: "transaction", Kind: "transaction"}},
				Patterns: []PatternSpec{
					{Subject: "$transaction", Predicate: "amount", Object: "$amount"},
					{Subject: "$transaction", Predicate: "isCompliant", Object: "$flag"},
					{Subject: "$transaction", Predicate: "isCompliantWith", Object: "$rule"},
					{Subject: "$rule", Predicate: "name", Object: "$ruleName"},
				},
				Required: []string{"isCompliant"},
			},
			{
				Name:        "client_violations",
				Description: "Rules violated by transactions on a client's accounts.",
				Keywords:    []string{"violation", "violations", "violated", "breach", "aml", "flagged"},
				Bindings:    []BindingSpec{{Name: "client", Kind: "client"}},
				Patterns: []PatternSpec{
					{Subject: "$client", Predicate: "hasAccount", Object: "$account"},
					{Subject: "$account", Predicate: "hasTransaction", Object: "$tx"},
					{Subject: "$tx", Predicate: "violatesRule", Object: "$rule"},
					{Subject: "$rule", Predicate: "name", Object: "$ruleName"},
					{Subject: "$tx", Predicate: "amount", Object: "$amount"},
				},
				Required: []string{"violatesRule"},
			},
			{
				Name:        "rule_status",
				Description: "Name and enforcement status of a compliance rule.",
				Keywords:    []string{"rule", "active", "enforcement", "threshold"},
				Bindings:    []BindingSpec{{Name: "rule", Kind: "rule"}},
				Patterns: []PatternSpec{
					{Subject: "$rule", Predicate: "name", Object: "$name"},
					{Subject: "$rule", Predicate: "status", Object: "$status"},
				},
				Required: []string{"name", "status"},
			},
		},
	}
}
