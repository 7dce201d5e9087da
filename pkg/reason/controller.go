// Package reason holds the evidentiary policy core: every question is
// classified as ANSWERABLE, UNKNOWN, or INCONCLUSIVE against the
// retrieved facts before the completion model is ever invoked, so an
// answer can never rest on missing or conflicting evidence.
package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/retrieve"
)

const (
	// UnknownText is returned verbatim when required evidence is absent.
	UnknownText = "The requested information is not available in the knowledge graph."
	// InconclusiveText prefixes the conflict listing when evidence disagrees.
	InconclusiveText = "The evidence is inconclusive: conflicting facts were found."

	defaultGenerationRetries = 3
)

// Controller runs questions through retrieval, classification, and,
// only for ANSWERABLE fact sets, a single guarded generation call.
//
// A Controller should be created using NewController. It holds no
// per-question state; concurrent Asks against a frozen graph are safe.
type Controller struct {
	retriever *retrieve.Retriever
	client    ai.CompletionClient
	registry  *query.Registry
	tracer    query.Tracer
	retries   int
}

// NewControllerParams defines the configuration for creating a Controller.
//
// Retries caps generation attempts per question; values below 1 fall
// back to 3. Tracer, when set, observes retrieval for every Ask.
type NewControllerParams struct {
	Retriever *retrieve.Retriever
	Client    ai.CompletionClient
	Registry  *query.Registry
	Tracer    query.Tracer
	Retries   int
}

// NewController creates a Controller wired to the given retriever,
// completion client, and template registry.
func NewController(params NewControllerParams) *Controller {
	retries := params.Retries
	if retries < 1 {
		retries = defaultGenerationRetries
	}

	return &Controller{
		retriever: params.Retriever,
		client:    params.Client,
		registry:  params.Registry,
		tracer:    params.Tracer,
		retries:   retries,
	}
}

type askConfig struct {
	maxTokens   int
	temperature float64
	timeout     time.Duration
	tracer      query.Tracer
}

// AskOption configures a single Ask, Complete, or CheckCompliance call.
type AskOption func(*askConfig)

// WithMaxTokens caps the completion tokens of the generation call.
func WithMaxTokens(maxTokens int) AskOption {
	return func(cfg *askConfig) {
		cfg.maxTokens = maxTokens
	}
}

// WithTemperature overrides the sampling temperature of the generation call.
func WithTemperature(temperature float64) AskOption {
	return func(cfg *askConfig) {
		cfg.temperature = temperature
	}
}

// WithTimeout bounds the generation call. Retrieval and classification
// run against the in-memory graph and are not affected; the graph is
// read-only during Ask, so a timed-out call leaves nothing to roll back.
func WithTimeout(timeout time.Duration) AskOption {
	return func(cfg *askConfig) {
		cfg.timeout = timeout
	}
}

// WithTracer observes retrieval for this call in addition to any tracer
// the Controller was constructed with.
func WithTracer(tracer query.Tracer) AskOption {
	return func(cfg *askConfig) {
		cfg.tracer = tracer
	}
}

// Ask answers a free-form question from the knowledge graph. The
// retrieved fact set is classified first: UNKNOWN and INCONCLUSIVE
// questions return fixed texts and never reach the completion client.
// Only an ANSWERABLE set is rendered into an evidence block and sent,
// exactly once per attempt, to the model.
//
// Completion failures return a *GenerationError carrying the evidence
// so the caller can retry via Complete without re-querying the graph.
func (c *Controller) Ask(
	ctx context.Context,
	question string,
	opts ...AskOption,
) (*Answer, error) {
	cfg := askConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	ans, facts, err := c.evaluate(ctx, question, cfg)
	if err != nil {
		return nil, err
	}
	if ans.Status != StatusAnswerable {
		return ans, nil
	}

	evidence := capEvidence(facts)
	ans.Evidence = evidence

	prompt := fmt.Sprintf(ai.AnswerPrompt, renderEvidence(evidence), question)
	generateOpts := append(
		[]ai.GenerateOption{ai.WithSystemPrompts(ai.AnswerSystemPrompt)},
		cfg.generateOptions()...,
	)

	text, metrics, generationMs, err := c.generate(ctx, cfg, evidence, func(ctx context.Context) (string, error) {
		return c.client.GenerateCompletion(ctx, prompt, generateOpts...)
	})
	ans.GenerationMs = generationMs
	if err != nil {
		return nil, err
	}

	ans.Metrics = metrics
	ans.Text = util.NormalizeFactRefs(strings.TrimSpace(text), len(evidence))

	logger.Debug("[Reason] answered question",
		"answer", ans.ID,
		"template", ans.Template,
		"evidence", len(evidence),
		"generation_ms", ans.GenerationMs,
	)

	return ans, nil
}

// Complete regenerates an answer from a previously returned evidence
// set, skipping retrieval and classification. It serves retries after a
// *GenerationError, where the graph has already been consulted.
//
// An empty evidence set yields the fixed UNKNOWN answer; the evidentiary
// gate holds on this path too.
func (c *Controller) Complete(
	ctx context.Context,
	question string,
	evidence []kg.Fact,
	opts ...AskOption,
) (*Answer, error) {
	cfg := askConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	id, err := newAnswerID()
	if err != nil {
		return nil, err
	}
	ans := &Answer{ID: id, Question: question}

	if len(evidence) == 0 {
		ans.Status = StatusUnknown
		ans.Text = UnknownText
		return ans, nil
	}

	evidence = capEvidence(evidence)
	ans.Status = StatusAnswerable
	ans.Evidence = evidence

	prompt := fmt.Sprintf(ai.AnswerPrompt, renderEvidence(evidence), question)
	generateOpts := append(
		[]ai.GenerateOption{ai.WithSystemPrompts(ai.AnswerSystemPrompt)},
		cfg.generateOptions()...,
	)

	text, metrics, generationMs, err := c.generate(ctx, cfg, evidence, func(ctx context.Context) (string, error) {
		return c.client.GenerateCompletion(ctx, prompt, generateOpts...)
	})
	ans.GenerationMs = generationMs
	if err != nil {
		return nil, err
	}

	ans.Metrics = metrics
	ans.Text = util.NormalizeFactRefs(strings.TrimSpace(text), len(evidence))

	return ans, nil
}

// Verdict is a schema-constrained compliance assessment.
type Verdict struct {
	Compliant bool     `json:"compliant" jsonschema_description:"Whether the subject of the question complies with the rules in the evidence."`
	Rules     []string `json:"rules" jsonschema_description:"Entity ids of the compliance rules the decision rests on."`
	Rationale string   `json:"rationale" jsonschema_description:"Reasoning for the verdict with [F1] style references into the evidence."`
}

// CheckCompliance answers a compliance question with a structured
// verdict instead of free text. The evidentiary gate is identical to
// Ask: only an ANSWERABLE fact set reaches the model, and the verdict
// is nil for UNKNOWN and INCONCLUSIVE answers.
func (c *Controller) CheckCompliance(
	ctx context.Context,
	question string,
	opts ...AskOption,
) (*Answer, *Verdict, error) {
	cfg := askConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	ans, facts, err := c.evaluate(ctx, question, cfg)
	if err != nil {
		return nil, nil, err
	}
	if ans.Status != StatusAnswerable {
		return ans, nil, nil
	}

	evidence := capEvidence(facts)
	ans.Evidence = evidence

	prompt := fmt.Sprintf(ai.VerdictPrompt, renderEvidence(evidence), question)
	generateOpts := cfg.generateOptions()

	var verdict Verdict
	_, metrics, generationMs, err := c.generate(ctx, cfg, evidence, func(ctx context.Context) (string, error) {
		verdict = Verdict{}
		err := c.client.GenerateCompletionWithFormat(
			ctx,
			ai.VerdictSchemaName,
			ai.VerdictSchemaDescription,
			prompt,
			&verdict,
			generateOpts...,
		)
		return "", err
	})
	ans.GenerationMs = generationMs
	if err != nil {
		return nil, nil, err
	}

	verdict.Rationale = util.NormalizeFactRefs(strings.TrimSpace(verdict.Rationale), len(evidence))
	ans.Metrics = metrics
	ans.Text = verdict.Rationale

	return ans, &verdict, nil
}

// evaluate retrieves and classifies, filling everything on the Answer
// except the generated text. The returned facts are the deduplicated
// union across all matched templates, in retrieval order.
func (c *Controller) evaluate(
	ctx context.Context,
	question string,
	cfg askConfig,
) (*Answer, []kg.Fact, error) {
	id, err := newAnswerID()
	if err != nil {
		return nil, nil, err
	}
	ans := &Answer{ID: id, Question: question}

	retrieveOpts := []retrieve.RetrieveOption{}
	if tracer := c.mergedTracer(cfg); tracer != nil {
		retrieveOpts = append(retrieveOpts, retrieve.WithTracer(tracer))
	}

	retrievalStart := time.Now()
	retrievals, err := c.retriever.Retrieve(ctx, question, retrieveOpts...)
	if err != nil {
		return nil, nil, err
	}
	ans.RetrievalMs = time.Since(retrievalStart).Milliseconds()

	var (
		facts    []kg.Fact
		required []string
	)
	if len(retrievals) > 0 {
		primary := retrievals[0]
		ans.Template = primary.Template
		ans.Bindings = primary.Bindings
		if tmpl, ok := c.registry.Template(primary.Template); ok {
			required = tmpl.Required
		}
		for _, r := range retrievals {
			facts = append(facts, r.Facts...)
		}
	}

	eval := Classify(required, facts, c.registry.IsMultivalued)
	ans.Status = eval.Status
	ans.Missing = eval.Missing
	ans.Conflicts = eval.Conflicts

	switch eval.Status {
	case StatusUnknown:
		ans.Text = UnknownText
	case StatusInconclusive:
		ans.Text = InconclusiveText + renderConflicts(eval.Conflicts)
	}

	logger.Debug("[Reason] classified question",
		"answer", ans.ID,
		"status", string(eval.Status),
		"template", ans.Template,
		"facts", len(facts),
	)

	return ans, facts, nil
}

// generate runs one guarded generation with bounded retries, resetting
// client metrics first so the returned metrics cover this call only.
func (c *Controller) generate(
	ctx context.Context,
	cfg askConfig,
	evidence []kg.Fact,
	fn func(ctx context.Context) (string, error),
) (string, ai.ModelMetrics, int64, error) {
	genCtx := ctx
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	c.client.ResetMetrics()

	start := time.Now()
	text, err := util.RetryWithContext(genCtx, c.retries, fn)
	generationMs := time.Since(start).Milliseconds()
	if err != nil {
		return "", ai.ModelMetrics{}, generationMs, &GenerationError{Evidence: evidence, Err: err}
	}

	metrics := c.client.GetMetrics()
	metrics.WallClockMs = generationMs

	return text, metrics, generationMs, nil
}

func (c *Controller) mergedTracer(cfg askConfig) query.Tracer {
	switch {
	case c.tracer != nil && cfg.tracer != nil:
		return query.MultiTracer{c.tracer, cfg.tracer}
	case c.tracer != nil:
		return c.tracer
	case cfg.tracer != nil:
		return cfg.tracer
	}
	return nil
}

func (cfg askConfig) generateOptions() []ai.GenerateOption {
	opts := []ai.GenerateOption{}
	if cfg.temperature > 0 {
		opts = append(opts, ai.WithTemperature(cfg.temperature))
	}
	if cfg.maxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(cfg.maxTokens))
	}
	return opts
}
