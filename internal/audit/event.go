// Package audit records every answered question for compliance review.
//
// Events capture the full evidentiary context of an answer: the facts
// shown to the model, the conflicts or gaps that blocked generation, and
// the model metrics. The canonical store is a JSON Lines file; events
// also flow through the audit queue into Postgres for querying.
package audit

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	AnswerID string                `json:"answer_id,omitempty"`
	Question string                `json:"question"`
	Status   reason.Classification `json:"status"`
	Answer   string                `json:"answer,omitempty"`

	Template string            `json:"template,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`

	Evidence  []kg.Fact         `json:"evidence,omitempty"`
	Conflicts []reason.Conflict `json:"conflicts,omitempty"`
	Missing   []string          `json:"missing,omitempty"`

	Metrics      ai.ModelMetrics `json:"metrics"`
	RetrievalMs  int64           `json:"retrieval_ms"`
	GenerationMs int64           `json:"generation_ms"`

	Trace *query.QueryTraceSnapshot `json:"trace,omitempty"`
}

// NewEvent snapshots an answer into an audit event. The caller may
// attach a retrieval trace afterwards.
func NewEvent(ans *reason.Answer) (*Event, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit event id: %w", err)
	}

	return &Event{
		ID:        "evt_" + id,
		Timestamp: time.Now().UTC(),

		AnswerID: ans.ID,
		Question: ans.Question,
		Status:   ans.Status,
		Answer:   ans.Text,

		Template: ans.Template,
		Bindings: ans.Bindings,

		Evidence:  ans.Evidence,
		Conflicts: ans.Conflicts,
		Missing:   ans.Missing,

		Metrics:      ans.Metrics,
		RetrievalMs:  ans.RetrievalMs,
		GenerationMs: ans.GenerationMs,
	}, nil
}
