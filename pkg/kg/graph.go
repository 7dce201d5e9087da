package kg

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"sync"
)

// KindPredicate is the reserved predicate carrying entity kinds in the
// triple space. AddEntity emits it, AddRelation rejects it.
const KindPredicate = "type"

type relKey struct {
	subject   string
	predicate string
	object    Value
}

// Graph is the aggregate owning all entities and relations.
//
// The intended lifecycle is build-then-freeze: construct or load the graph
// first, call Freeze, then serve concurrent reads. Mutation is guarded by
// a write lock regardless, so a single writer is also safe while readers
// are active.
type Graph struct {
	mu        sync.RWMutex
	frozen    bool
	entities  map[string]Entity
	order     []string
	relations []Relation
	index     map[relKey]int
	seq       int
}

// GraphStats summarizes the content of a graph.
type GraphStats struct {
	Entities  int            `json:"entities"`
	Relations int            `json:"relations"`
	Kinds     map[string]int `json:"kinds"`
	Frozen    bool           `json:"frozen"`
}

// NewGraph creates an empty, unfrozen graph.
func NewGraph() *Graph {
	return &Graph{
		entities: make(map[string]Entity),
		index:    make(map[relKey]int),
	}
}

// AddEntity registers an entity and its attributes. Registering an id
// again with the same kind merges the attributes additively; a different
// kind fails with a DuplicateEntityError. Attributes never overwrite
// earlier values, repeated names accumulate as additional relations.
func (g *Graph) AddEntity(kind, id string, attrs map[string]Value) error {
	return g.AddEntityFrom("", kind, id, attrs)
}

// AddEntityFrom is AddEntity with a provenance label attached to the
// emitted relations.
func (g *Graph) AddEntityFrom(source, kind, id string, attrs map[string]Value) error {
	if err := validateName(id); err != nil {
		return fmt.Errorf("failed to add entity: invalid id: %w", err)
	}
	if err := validateName(kind); err != nil {
		return fmt.Errorf("failed to add entity %s: invalid kind: %w", id, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}

	if existing, ok := g.entities[id]; ok && existing.Kind != kind {
		return &DuplicateEntityError{ID: id, Kind: kind, Existing: existing.Kind}
	}

	names := sortedKeys(attrs)
	for _, name := range names {
		if name == KindPredicate {
			return fmt.Errorf("failed to add entity %s: %w", id, ErrReservedPredicate)
		}
		if err := validateName(name); err != nil {
			return fmt.Errorf("failed to add entity %s: invalid attribute: %w", id, err)
		}
		value := attrs[name]
		if !value.valid() {
			return fmt.Errorf("failed to add entity %s: invalid value for attribute %s", id, name)
		}
		if value.IsRef() && value.Text != id {
			if _, ok := g.entities[value.Text]; !ok {
				return &UnknownEntityError{ID: value.Text}
			}
		}
	}

	if _, ok := g.entities[id]; !ok {
		g.entities[id] = Entity{ID: id, Kind: kind}
		g.order = append(g.order, id)
		g.insertRelation(source, id, KindPredicate, String(kind))
	}
	for _, name := range names {
		g.insertRelation(source, id, name, attrs[name])
	}

	return nil
}

// AddRelation records a relation. The subject must exist, as must any
// entity the object references. Re-adding an identical triple is a no-op.
func (g *Graph) AddRelation(subject, predicate string, object Value) error {
	return g.AddRelationFrom("", subject, predicate, object)
}

// AddRelationFrom is AddRelation with a provenance label. Re-adding an
// identical triple under a new label extends the triple's source set
// without duplicating the relation.
func (g *Graph) AddRelationFrom(source, subject, predicate string, object Value) error {
	if err := validateName(predicate); err != nil {
		return fmt.Errorf("failed to add relation: invalid predicate: %w", err)
	}
	if predicate == KindPredicate {
		return fmt.Errorf("failed to add relation %s: %w", subject, ErrReservedPredicate)
	}
	if !object.valid() {
		return fmt.Errorf("failed to add relation %s %s: invalid object value", subject, predicate)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}
	if _, ok := g.entities[subject]; !ok {
		return &UnknownEntityError{ID: subject}
	}
	if object.IsRef() {
		if _, ok := g.entities[object.Text]; !ok {
			return &UnknownEntityError{ID: object.Text}
		}
	}

	g.insertRelation(source, subject, predicate, object)
	return nil
}

func (g *Graph) insertRelation(source, subject, predicate string, object Value) {
	key := relKey{subject: subject, predicate: predicate, object: object}
	if i, ok := g.index[key]; ok {
		if source != "" && !slices.Contains(g.relations[i].Sources, source) {
			g.relations[i].Sources = append(g.relations[i].Sources, source)
		}
		return
	}

	g.seq++
	rel := Relation{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Seq:       g.seq,
	}
	if source != "" {
		rel.Sources = []string{source}
	}
	g.index[key] = len(g.relations)
	g.relations = append(g.relations, rel)
}

// Match returns a lazy sequence of relations matching the pattern, in
// insertion order. The sequence is restartable: every pass re-reads the
// graph under a read lock and yields fresh copies.
func (g *Graph) Match(p Pattern) iter.Seq[Relation] {
	return func(yield func(Relation) bool) {
		g.mu.RLock()
		defer g.mu.RUnlock()

		for i := range g.relations {
			if !p.matches(&g.relations[i]) {
				continue
			}
			if !yield(g.relations[i].clone()) {
				return
			}
		}
	}
}

// Freeze makes the graph read-only. Subsequent mutation fails with
// ErrFrozen. Freezing twice is harmless.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether Freeze was called.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Lookup returns the entity registered under id.
func (g *Graph) Lookup(id string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[id]
	return e, ok
}

// Entities returns all entities in registration order.
func (g *Graph) Entities() []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out
}

// Stats counts entities per kind and relations.
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := GraphStats{
		Entities:  len(g.entities),
		Relations: len(g.relations),
		Kinds:     make(map[string]int),
		Frozen:    g.frozen,
	}
	for _, e := range g.entities {
		stats.Kinds[e.Kind]++
	}
	return stats
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if strings.ContainsAny(name, " \t\r\n<>\"") {
		return fmt.Errorf("name %q contains reserved characters", name)
	}
	return nil
}
