// Package retrieve maps natural-language questions onto registered query
// templates and collects the matching evidence from the knowledge graph.
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
)

// Retrieval is the evidence one template contributed for a question.
// Facts are grouped by subject in first-seen order and already deduped
// against higher-ranked retrievals.
type Retrieval struct {
	Template string            `json:"template"`
	Bindings map[string]string `json:"bindings,omitempty"`
	Facts    []kg.Fact         `json:"facts"`
	Score    int               `json:"score"`
}

// Retriever classifies questions against the template registry and runs
// the templates that match. The alias index is built once at
// construction, so the graph must be complete before a retriever is
// created.
type Retriever struct {
	engine  *query.Engine
	aliases []aliasEntry
}

type NewRetrieverParams struct {
	Engine *query.Engine
}

func NewRetriever(params NewRetrieverParams) *Retriever {
	return &Retriever{
		engine:  params.Engine,
		aliases: buildAliasIndex(params.Engine.Graph()),
	}
}

type retrieveConfig struct {
	tracer query.Tracer
}

type RetrieveOption func(*retrieveConfig)

// WithTracer attaches a tracer for a single retrieval.
func WithTracer(t query.Tracer) RetrieveOption {
	return func(c *retrieveConfig) {
		c.tracer = t
	}
}

// Retrieve scores every registered template against the question, fills
// template bindings from entity mentions, and runs each template that
// scored and could be filled. Results are ordered by score with registry
// order breaking ties; a retrieval with no facts still appears, so
// callers can tell "nothing found" apart from "question not understood".
// A question no template matches yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts ...RetrieveOption) ([]Retrieval, error) {
	cfg := retrieveConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	padded := " " + normalizeText(question) + " "
	hits := scanEntities(r.aliases, question)

	type candidate struct {
		template query.Template
		bindings map[string]string
		score    int
	}

	var considered []string
	var candidates []candidate
	for _, template := range r.engine.Registry().Templates() {
		score := 0
		for _, keyword := range template.Keywords {
			normalized := normalizeText(keyword)
			if normalized == "" {
				continue
			}
			if strings.Contains(padded, " "+normalized+" ") {
				score++
			}
		}
		if score == 0 {
			continue
		}
		considered = append(considered, template.Name)

		bindings, ok := fillBindings(template, hits)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{template: template, bindings: bindings, score: score})
	}
	query.RecordConsideredTemplates(cfg.tracer, considered...)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[factIdentity]*kg.Fact)
	retrievals := make([]Retrieval, 0, len(candidates))
	for _, c := range candidates {
		facts, err := r.engine.Run(ctx, c.template.Name, c.bindings, query.WithTracer(cfg.tracer))
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve with template %s: %w", c.template.Name, err)
		}
		retrievals = append(retrievals, Retrieval{
			Template: c.template.Name,
			Bindings: c.bindings,
			Facts:    dedupeFacts(seen, facts),
			Score:    c.score,
		})
	}
	return retrievals, nil
}

// fillBindings resolves each declared binding from the scanned entity
// mentions. Literal bindings cannot be resolved from free text, so a
// template declaring one is skipped. An entity mention fills at most one
// binding.
func fillBindings(template query.Template, hits []entityHit) (map[string]string, bool) {
	if len(template.Bindings) == 0 {
		return nil, true
	}

	bindings := make(map[string]string, len(template.Bindings))
	taken := make(map[string]struct{}, len(template.Bindings))
	for _, spec := range template.Bindings {
		switch spec.Kind {
		case query.BindingString, query.BindingNumber, query.BindingBool, query.BindingDate:
			return nil, false
		}

		found := false
		for _, hit := range hits {
			if _, used := taken[hit.id]; used {
				continue
			}
			if spec.Kind != "" && spec.Kind != query.BindingRef && hit.kind != spec.Kind {
				continue
			}
			bindings[spec.Name] = hit.id
			taken[hit.id] = struct{}{}
			found = true
			break
		}
		if !found {
			return nil, false
		}
	}
	return bindings, true
}

type factIdentity struct {
	subject   string
	predicate string
	value     kg.Value
}

// dedupeFacts drops facts already claimed by a higher-ranked retrieval,
// folding the dropped copy's sources into the kept one.
func dedupeFacts(seen map[factIdentity]*kg.Fact, facts []kg.Fact) []kg.Fact {
	out := make([]kg.Fact, 0, len(facts))
	for _, f := range facts {
		id := factIdentity{subject: f.Subject, predicate: f.Predicate, value: f.Value}
		if kept, dup := seen[id]; dup {
			kept.Sources = mergeSources(kept.Sources, f.Sources)
			continue
		}
		out = append(out, f)
		seen[id] = &out[len(out)-1]
	}
	return out
}

func mergeSources(into, from []string) []string {
	for _, s := range from {
		found := false
		for _, existing := range into {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			into = append(into, s)
		}
	}
	return into
}
