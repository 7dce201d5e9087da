package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// Engine executes registered templates against a knowledge graph.
type Engine struct {
	graph    *kg.Graph
	registry *Registry
	tracer   Tracer
}

type NewEngineParams struct {
	Graph    *kg.Graph
	Registry *Registry
	Tracer   Tracer
}

// NewEngine creates an engine bound to a graph and a template registry.
// The optional tracer receives events from every run; per-run tracers
// can be attached with WithTracer.
func NewEngine(params NewEngineParams) *Engine {
	return &Engine{
		graph:    params.Graph,
		registry: params.Registry,
		tracer:   params.Tracer,
	}
}

// Graph returns the knowledge graph the engine runs against.
func (e *Engine) Graph() *kg.Graph {
	return e.graph
}

// Registry returns the template registry the engine runs against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

type runConfig struct {
	tracer Tracer
}

type RunOption func(*runConfig)

// WithTracer attaches an additional tracer for a single run.
func WithTracer(t Tracer) RunOption {
	return func(c *runConfig) {
		c.tracer = t
	}
}

// Run executes the named template with the given bindings and returns
// the matched facts grouped by subject in first-seen order. Patterns are
// joined on shared variables; a row must satisfy every pattern to
// contribute facts, so partially matched rows never leak into the
// result. An empty result means the graph holds no matching rows, which
// is distinct from the template being unknown.
func (e *Engine) Run(ctx context.Context, name string, bindings map[string]string, opts ...RunOption) ([]kg.Fact, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	tracer := MultiTracer{e.tracer, cfg.tracer}

	t, ok := e.registry.compiled(name)
	if !ok {
		return nil, &UnknownTemplateError{Name: name}
	}
	RecordUsedTemplates(tracer, name)

	initial := make(bindingEnv, len(t.bindings))
	resolved := make(map[string]string, len(t.bindings))
	for _, spec := range t.bindings {
		raw, ok := bindings[spec.Name]
		if !ok || raw == "" {
			return nil, &MissingBindingError{Template: name, Binding: spec.Name}
		}
		value, err := convertBinding(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to run template %s: %w", name, err)
		}
		initial[spec.Name] = value
		resolved[spec.Name] = raw
	}
	for supplied := range bindings {
		if _, ok := initial[supplied]; !ok {
			return nil, fmt.Errorf("failed to run template %s: unknown binding %q", name, supplied)
		}
	}
	RecordResolvedBindings(tracer, resolved)

	envs := []bindingEnv{initial}
	for i, p := range t.patterns {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to run template %s: %w", name, err)
		}

		next := make([]bindingEnv, 0, len(envs))
		seen := make(map[string]struct{})
		matched := 0
		for _, env := range envs {
			pat, ok := substitute(p, env)
			if !ok {
				continue
			}
			for r := range e.graph.Match(pat) {
				matched++
				extended, ok := extend(env, p, r)
				if !ok {
					continue
				}
				key := envKey(extended)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				next = append(next, extended)
			}
		}
		RecordMatchedPattern(tracer, name, i, matched)

		envs = next
		if len(envs) == 0 {
			return nil, nil
		}
	}

	return e.collect(t, envs, tracer), nil
}

// collect re-walks the template patterns under each surviving row and
// gathers the underlying relations. Walking the graph again keeps the
// result free of facts that belonged only to rows a later pattern
// eliminated.
func (e *Engine) collect(t *compiledTemplate, envs []bindingEnv, tracer Tracer) []kg.Fact {
	type factKey struct {
		subject   string
		predicate string
		object    kg.Value
	}

	var rels []kg.Relation
	index := make(map[factKey]struct{})
	for _, env := range envs {
		for _, p := range t.patterns {
			pat, ok := substitute(p, env)
			if !ok {
				continue
			}
			for r := range e.graph.Match(pat) {
				key := factKey{r.Subject, r.Predicate, r.Object}
				if _, dup := index[key]; dup {
					continue
				}
				index[key] = struct{}{}
				rels = append(rels, r)
			}
		}
	}

	rank := make(map[string]int, len(rels))
	for _, r := range rels {
		if cur, ok := rank[r.Subject]; !ok || r.Seq < cur {
			rank[r.Subject] = r.Seq
		}
	}
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].Subject != rels[j].Subject {
			return rank[rels[i].Subject] < rank[rels[j].Subject]
		}
		return rels[i].Seq < rels[j].Seq
	})

	facts := make([]kg.Fact, 0, len(rels))
	for _, r := range rels {
		facts = append(facts, r.Fact())
	}

	subjects := make([]string, 0, len(rank))
	for subject := range rank {
		subjects = append(subjects, subject)
	}
	RecordTouchedSubjects(tracer, subjects...)

	return facts
}

// bindingEnv maps variable names to the values a partial join row has
// committed to. Extending copies, so rows never share bindings.
type bindingEnv map[string]kg.Value

func (e bindingEnv) extended(name string, v kg.Value) bindingEnv {
	next := make(bindingEnv, len(e)+1)
	for k, val := range e {
		next[k] = val
	}
	next[name] = v
	return next
}

func envKey(e bindingEnv) string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v := e[name]
		b.WriteString(name)
		b.WriteByte(0)
		b.WriteString(string(v.Kind))
		b.WriteByte(0)
		b.WriteString(v.Text)
		b.WriteByte(0x1f)
	}
	return b.String()
}

// substitute turns a compiled pattern into a concrete match pattern under
// the given bindings. It reports false when a bound value cannot occupy
// the pattern position at all, such as a literal in subject place.
func substitute(p compiledPattern, env bindingEnv) (kg.Pattern, bool) {
	pat := kg.Pattern{Predicate: kg.Term(p.predicate)}

	switch p.subject.kind {
	case termWildcard:
	case termValue:
		pat.Subject = kg.Term(p.subject.value.Text)
	case termVariable:
		if v, ok := env[p.subject.variable]; ok {
			if !v.IsRef() {
				return kg.Pattern{}, false
			}
			pat.Subject = kg.Term(v.Text)
		}
	}

	switch p.object.kind {
	case termWildcard:
	case termValue:
		pat.Object = kg.Obj(p.object.value)
	case termVariable:
		if v, ok := env[p.object.variable]; ok {
			pat.Object = kg.Obj(v)
		}
	}

	return pat, true
}

// extend binds the pattern's unbound variables from a matched relation.
// It reports false when the relation disagrees with a binding that was
// committed earlier in the same pattern.
func extend(env bindingEnv, p compiledPattern, r kg.Relation) (bindingEnv, bool) {
	next := env
	if p.subject.kind == termVariable {
		if bound, ok := next[p.subject.variable]; ok {
			if bound != kg.Ref(r.Subject) {
				return nil, false
			}
		} else {
			next = next.extended(p.subject.variable, kg.Ref(r.Subject))
		}
	}
	if p.object.kind == termVariable {
		if bound, ok := next[p.object.variable]; ok {
			if bound != r.Object {
				return nil, false
			}
		} else {
			next = next.extended(p.object.variable, r.Object)
		}
	}
	return next, true
}
