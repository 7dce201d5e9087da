package query

import (
	"strings"
	"testing"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  term
	}{
		{
			name:  "wildcard",
			input: "*",
			want:  term{kind: termWildcard},
		},
		{
			name:  "variable",
			input: "$client",
			want:  term{kind: termVariable, variable: "client"},
		},
		{
			name:  "entity reference",
			input: "<Client_A>",
			want:  term{kind: termValue, value: kg.Ref("Client_A")},
		},
		{
			name:  "plain string",
			input: "verified",
			want:  term{kind: termValue, value: kg.String("verified")},
		},
		{
			name:  "number literal",
			input: "9500.00^^number",
			want:  term{kind: termValue, value: kg.Number("9500.00")},
		},
		{
			name:  "bool literal",
			input: "true^^bool",
			want:  term{kind: termValue, value: kg.Bool(true)},
		},
		{
			name:  "date literal",
			input: "2024-05-10^^date",
			want:  term{kind: termValue, value: kg.Date("2024-05-10")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTerm(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected term: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTerm_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "empty variable", input: "$"},
		{name: "empty reference", input: "<>"},
		{name: "unknown literal kind", input: "1.0^^float"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTerm(tt.input); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestCompileTemplate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template Template
		wantErr  string
	}{
		{
			name:     "empty name",
			template: Template{Patterns: []PatternSpec{{Subject: "*", Predicate: "name", Object: "*"}}},
			wantErr:  "name must not be empty",
		},
		{
			name:     "no patterns",
			template: Template{Name: "empty"},
			wantErr:  "has no patterns",
		},
		{
			name: "duplicate binding",
			template: Template{
				Name:     "dup",
				Bindings: []BindingSpec{{Name: "client"}, {Name: "client"}},
				Patterns: []PatternSpec{{Subject: "$client", Predicate: "name", Object: "*"}},
			},
			wantErr: "binding $client twice",
		},
		{
			name: "unused binding",
			template: Template{
				Name:     "unused",
				Bindings: []BindingSpec{{Name: "client"}},
				Patterns: []PatternSpec{{Subject: "*", Predicate: "name", Object: "*"}},
			},
			wantErr: "never used",
		},
		{
			name: "variable predicate",
			template: Template{
				Name:     "varpred",
				Patterns: []PatternSpec{{Subject: "*", Predicate: "$p", Object: "*"}},
			},
			wantErr: "predicate must be a concrete name",
		},
		{
			name: "literal subject",
			template: Template{
				Name:     "litsub",
				Patterns: []PatternSpec{{Subject: "verified", Predicate: "name", Object: "*"}},
			},
			wantErr: "subject must be a reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileTemplate(tt.template)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompileTemplate_Valid(t *testing.T) {
	template := Template{
		Name:     "client_profile",
		Bindings: []BindingSpec{{Name: "client", Kind: "client"}},
		Patterns: []PatternSpec{
			{Subject: "$client", Predicate: "name", Object: "$name"},
			{Subject: "$client", Predicate: "riskLevel", Object: "*"},
			{Subject: "<Client_A>", Predicate: "kycStatus", Object: "verified"},
		},
	}

	compiled, err := compileTemplate(template)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compiled.patterns) != 3 {
		t.Fatalf("expected 3 compiled patterns, got %d", len(compiled.patterns))
	}
	if compiled.patterns[0].subject.variable != "client" {
		t.Fatalf("unexpected subject term: %+v", compiled.patterns[0].subject)
	}
}
