package reason

import (
	"fmt"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// GenerationError reports that answer generation failed after the
// evidentiary gate had already passed. Evidence carries the fact set
// that was about to be sent, so the caller can retry via
// Controller.Complete without re-querying the graph.
type GenerationError struct {
	Evidence []kg.Fact
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate answer: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
