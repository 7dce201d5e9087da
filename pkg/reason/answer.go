package reason

import (
	"fmt"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Answer is the auditable result of one Ask. Status is always set;
// Text holds the generated answer for ANSWERABLE questions and a fixed
// refusal otherwise. Evidence, Conflicts, and Missing document why.
type Answer struct {
	ID       string         `json:"id"`
	Question string         `json:"question"`
	Status   Classification `json:"status"`
	Text     string         `json:"text"`

	Evidence  []kg.Fact  `json:"evidence,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Missing   []string   `json:"missing,omitempty"`

	Template string            `json:"template,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`

	Metrics      ai.ModelMetrics `json:"metrics"`
	RetrievalMs  int64           `json:"retrieval_ms"`
	GenerationMs int64           `json:"generation_ms"`
}

func newAnswerID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate answer id: %w", err)
	}
	return "ans_" + id, nil
}
