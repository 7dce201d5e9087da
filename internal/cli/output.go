package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printAnswer renders an answer for the terminal: status and template,
// the generated or refusal text, then the evidence numbered in [F1]
// order so references inside the text can be followed.
func printAnswer(w io.Writer, ans *reason.Answer) {
	fmt.Fprintf(w, "Status:   %s\n", ans.Status)
	if ans.Template != "" {
		fmt.Fprintf(w, "Template: %s\n", ans.Template)
	}
	if len(ans.Bindings) > 0 {
		fmt.Fprintf(w, "Bindings: %s\n", renderBindings(ans.Bindings))
	}

	fmt.Fprintf(w, "\n%s\n", ans.Text)

	if len(ans.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing predicates: %s\n", strings.Join(ans.Missing, ", "))
	}
	if len(ans.Conflicts) > 0 {
		fmt.Fprintln(w, "\nConflicting facts:")
		for _, conflict := range ans.Conflicts {
			for _, f := range conflict.Facts {
				fmt.Fprintf(w, "  %s\n", renderFact(f))
			}
		}
	}
	if len(ans.Evidence) > 0 {
		fmt.Fprintln(w, "\nEvidence:")
		for i, f := range ans.Evidence {
			fmt.Fprintf(w, "  [F%d] %s\n", i+1, renderFact(f))
		}
	}
	if ans.Status == reason.StatusAnswerable {
		fmt.Fprintf(w, "\nTokens: %d in, %d out. Retrieval %dms, generation %dms.\n",
			ans.Metrics.InputTokens, ans.Metrics.OutputTokens, ans.RetrievalMs, ans.GenerationMs)
	}
}

func printVerdict(w io.Writer, verdict *reason.Verdict) {
	status := "NON-COMPLIANT"
	if verdict.Compliant {
		status = "COMPLIANT"
	}
	fmt.Fprintf(w, "\nVerdict: %s\n", status)
	if len(verdict.Rules) > 0 {
		fmt.Fprintf(w, "Rules:   %s\n", strings.Join(verdict.Rules, ", "))
	}
}

func renderFact(f kg.Fact) string {
	return fmt.Sprintf("%s %s: %s (source: %s)",
		f.Subject, f.Predicate, f.Value.Text, strings.Join(f.Sources, ", "))
}

func renderBindings(bindings map[string]string) string {
	parts := make([]string, 0, len(bindings))
	for _, name := range slices.Sorted(maps.Keys(bindings)) {
		parts = append(parts, name+"="+bindings[name])
	}
	return strings.Join(parts, " ")
}
