package query

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const registryYAML = `
multivalued:
  - hasAccount
  - hasTransaction

templates:
  - name: client_profile
    description: Identity and risk profile of a client.
    keywords: [profile, risk]
    bindings:
      - name: client
        kind: client
    patterns:
      - subject: $client
        predicate: name
        object: $name
      - subject: $client
        predicate: riskLevel
        object: $risk
    required: [name, riskLevel]

  - name: rule_status
    keywords: [rule, active]
    bindings:
      - name: rule
        kind: rule
    patterns:
      - subject: $rule
        predicate: status
        object: $status
`

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry(strings.NewReader(registryYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := make([]string, 0)
	for _, template := range r.Templates() {
		names = append(names, template.Name)
	}
	want := []string{"client_profile", "rule_status"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected templates: got %v, want %v", names, want)
	}

	template, ok := r.Template("client_profile")
	if !ok {
		t.Fatal("expected client_profile to be registered")
	}
	if !reflect.DeepEqual(template.Required, []string{"name", "riskLevel"}) {
		t.Fatalf("unexpected required predicates: %v", template.Required)
	}
	if len(template.Patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(template.Patterns))
	}

	if !r.IsMultivalued("hasAccount") {
		t.Fatal("expected hasAccount to be multivalued")
	}
	if r.IsMultivalued("kycStatus") {
		t.Fatal("expected kycStatus to be single-valued")
	}
}

func TestLoadRegistry_RejectsDuplicates(t *testing.T) {
	input := `
templates:
  - name: a
    patterns:
      - {subject: "*", predicate: name, object: "*"}
  - name: a
    patterns:
      - {subject: "*", predicate: name, object: "*"}
`
	_, err := LoadRegistry(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "duplicate template") {
		t.Fatalf("expected duplicate template error, got %v", err)
	}
}

func TestLoadRegistry_RejectsInvalidYAML(t *testing.T) {
	if _, err := LoadRegistry(strings.NewReader("templates: [")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	templates := r.Templates()
	if len(templates) != 6 {
		t.Fatalf("expected 6 built-in templates, got %d", len(templates))
	}
	for _, template := range templates {
		if len(template.Keywords) == 0 {
			t.Errorf("template %s has no keywords", template.Name)
		}
		if len(template.Required) == 0 {
			t.Errorf("template %s has no required predicates", template.Name)
		}
	}

	if _, ok := r.Template("client_kyc_exposure"); !ok {
		t.Fatal("expected client_kyc_exposure to be registered")
	}
	want := []string{"hasAccount", "hasTransaction", "isCompliantWith", "violatesRule"}
	if !reflect.DeepEqual(r.Multivalued(), want) {
		t.Fatalf("unexpected multivalued predicates: %v", r.Multivalued())
	}
}

// Deployments without TEMPLATES_PATH run the compiled-in templates, so
// the shipped registry file must not drift from them.
func TestDefaultRegistryMatchesShippedFile(t *testing.T) {
	r, err := LoadRegistryFile(filepath.Join("..", "..", "config", "templates.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DefaultRegistry()
	if !reflect.DeepEqual(r.Templates(), want.Templates()) {
		t.Fatal("config/templates.yaml has diverged from the built-in templates")
	}
	if !reflect.DeepEqual(r.Multivalued(), want.Multivalued()) {
		t.Fatal("config/templates.yaml has diverged from the built-in multivalued list")
	}
}
