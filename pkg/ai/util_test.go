package ai

import (
	"reflect"
	"strings"
	"testing"
)

type verdictPayload struct {
	Compliant bool     `json:"compliant"`
	Rules     []string `json:"rules"`
	Rationale string   `json:"rationale,omitempty"`
}

func TestUnmarshalFlexible_VerdictVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  verdictPayload
	}{
		{
			name:  "valid json object",
			input: `{"compliant":true,"rules":["Rule_KYC"]}`,
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{compliant: false, rules: ['Rule_AML']}`,
			want:  verdictPayload{Compliant: false, Rules: []string{"Rule_AML"}},
		},
		{
			name:  "trailing comma",
			input: `{"compliant":true,"rules":["Rule_KYC"],}`,
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
		{
			name:  "missing closing brace",
			input: `{"compliant":true,"rules":["Rule_KYC"]`,
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
		{
			name:  "stringified invalid json",
			input: `"{compliant: true, rules: ['Rule_KYC']}"`,
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
		{
			name:  "doubled leading brace",
			input: "{\n{\n  \"compliant\": true,\n  \"rules\": [\"Rule_KYC\"]\n}\n",
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
		{
			name:  "doubled leading brace single line",
			input: `{ { "compliant": true, "rules": ["Rule_KYC"] }`,
			want:  verdictPayload{Compliant: true, Rules: []string{"Rule_KYC"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got verdictPayload
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	input := `"{ \"compliant\": false, \"rules\": [\"Rule_AML\", \"Rule_KYC\"], \"rationale\": \"Transaction T002 exceeds the reporting threshold [F2].\" }"`

	var got verdictPayload
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	want := verdictPayload{
		Compliant: false,
		Rules:     []string{"Rule_AML", "Rule_KYC"},
		Rationale: "Transaction T002 exceeds the reporting threshold [F2].",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	input := `[{rules:['Rule_KYC']},{rules:['Rule_AML'],}]`

	var got []verdictPayload
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Rules[0] != "Rule_KYC" || got[1].Rules[0] != "Rule_AML" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want two verdicts", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got verdictPayload
	if err := UnmarshalFlexible("the transaction looks fine to me", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(verdictPayload{})
	if schema == nil {
		t.Fatalf("GenerateSchema() returned nil")
	}

	ptrSchema := GenerateSchema(&verdictPayload{})
	if ptrSchema == nil {
		t.Fatalf("GenerateSchema() returned nil for pointer type")
	}
}

func TestTrimDoubledBrace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single brace untouched", input: `{"a":1}`, want: `{"a":1}`},
		{name: "doubled brace trimmed", input: `{ {"a":1}`, want: `{"a":1}`},
		{name: "non object untouched", input: `[1,2]`, want: `[1,2]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := trimDoubledBrace(tc.input); strings.TrimSpace(got) != tc.want {
				t.Fatalf("trimDoubledBrace(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
