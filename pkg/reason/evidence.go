package reason

import (
	"fmt"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// maxEvidenceFacts bounds the evidence block injected into a prompt.
const maxEvidenceFacts = 64

// renderEvidence formats facts as the numbered block the answer prompt
// expects. References in generated text point back at these numbers.
func renderEvidence(facts []kg.Fact) string {
	var b strings.Builder
	for i, f := range facts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[F%d] %s %s: %s (source: %s)",
			i+1, f.Subject, f.Predicate, f.Value.Text, strings.Join(f.Sources, ", "))
	}
	return b.String()
}

// renderConflicts itemizes conflicting facts with their sources for the
// INCONCLUSIVE answer text.
func renderConflicts(conflicts []Conflict) string {
	var b strings.Builder
	for _, c := range conflicts {
		fmt.Fprintf(&b, "\n- %s %s:", c.Subject, c.Predicate)
		for i, f := range c.Facts {
			if i > 0 {
				b.WriteString(" vs")
			}
			fmt.Fprintf(&b, " %q (source: %s)", f.Value.Text, strings.Join(f.Sources, ", "))
		}
	}
	return b.String()
}

func capEvidence(facts []kg.Fact) []kg.Fact {
	if len(facts) <= maxEvidenceFacts {
		return facts
	}
	return facts[:maxEvidenceFacts]
}
