package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventConsideredTemplates TraceEventKind = "considered_templates"
	TraceEventUsedTemplates       TraceEventKind = "used_templates"
	TraceEventResolvedBindings    TraceEventKind = "resolved_bindings"
	TraceEventMatchedPattern      TraceEventKind = "matched_pattern"
	TraceEventTouchedSubjects     TraceEventKind = "touched_subjects"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	TemplateNames []string
	TemplateName  string
	Bindings      map[string]string
	PatternIndex  int
	MatchCount    int
	SubjectIDs    []string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordConsideredTemplates(t Tracer, names ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredTemplates, TemplateNames: names})
}

func RecordUsedTemplates(t Tracer, names ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedTemplates, TemplateNames: names})
}

func RecordResolvedBindings(t Tracer, bindings map[string]string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventResolvedBindings, Bindings: bindings})
}

func RecordMatchedPattern(t Tracer, template string, index, matches int) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventMatchedPattern, TemplateName: template, PatternIndex: index, MatchCount: matches})
}

func RecordTouchedSubjects(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventTouchedSubjects, SubjectIDs: ids})
}

// QueryTrace collects information about which templates, bindings, and
// subjects a query run touched.
//
// This is primarily used to attach query metadata to audit events and
// debug output.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	consideredTemplates map[string]struct{}
	usedTemplates       map[string]struct{}
	bindings            map[string]string
	touchedSubjects     map[string]struct{}
	patternsExecuted    int
	relationsMatched    int
}

type QueryTraceSnapshot struct {
	ConsideredTemplates []string          `json:"considered_templates,omitempty"`
	UsedTemplates       []string          `json:"used_templates,omitempty"`
	Bindings            map[string]string `json:"bindings,omitempty"`
	TouchedSubjects     []string          `json:"touched_subjects,omitempty"`
	PatternsExecuted    int               `json:"patterns_executed,omitempty"`
	RelationsMatched    int               `json:"relations_matched,omitempty"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		consideredTemplates: make(map[string]struct{}),
		usedTemplates:       make(map[string]struct{}),
		bindings:            make(map[string]string),
		touchedSubjects:     make(map[string]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventConsideredTemplates:
		for _, name := range event.TemplateNames {
			if name == "" {
				continue
			}
			t.consideredTemplates[name] = struct{}{}
		}
	case TraceEventUsedTemplates:
		for _, name := range event.TemplateNames {
			if name == "" {
				continue
			}
			t.usedTemplates[name] = struct{}{}
		}
	case TraceEventResolvedBindings:
		for name, value := range event.Bindings {
			if name == "" {
				continue
			}
			t.bindings[name] = value
		}
	case TraceEventMatchedPattern:
		t.patternsExecuted++
		t.relationsMatched += event.MatchCount
	case TraceEventTouchedSubjects:
		for _, id := range event.SubjectIDs {
			if id == "" {
				continue
			}
			t.touchedSubjects[id] = struct{}{}
		}
	default:
		return
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QueryTraceSnapshot{
		ConsideredTemplates: make([]string, 0, len(t.consideredTemplates)),
		UsedTemplates:       make([]string, 0, len(t.usedTemplates)),
		TouchedSubjects:     make([]string, 0, len(t.touchedSubjects)),
		PatternsExecuted:    t.patternsExecuted,
		RelationsMatched:    t.relationsMatched,
	}

	for name := range t.consideredTemplates {
		s.ConsideredTemplates = append(s.ConsideredTemplates, name)
	}
	for name := range t.usedTemplates {
		s.UsedTemplates = append(s.UsedTemplates, name)
	}
	for id := range t.touchedSubjects {
		s.TouchedSubjects = append(s.TouchedSubjects, id)
	}
	if len(t.bindings) > 0 {
		s.Bindings = make(map[string]string, len(t.bindings))
		for name, value := range t.bindings {
			s.Bindings[name] = value
		}
	}

	sort.Strings(s.ConsideredTemplates)
	sort.Strings(s.UsedTemplates)
	sort.Strings(s.TouchedSubjects)

	return s
}
