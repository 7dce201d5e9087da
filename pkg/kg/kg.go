// Package kg implements the knowledge graph backing the reasoning agent:
// a typed, append-only triple store with deterministic pattern matching
// and a diffable text serialization.
package kg

import "slices"

// Entity is a node in the knowledge graph: a client, an account, a
// transaction, a compliance rule, or any other kind callers register.
//
// An id can only ever be registered under a single kind. Attributes are
// not stored on the entity itself; they are materialized as relations so
// that pattern matching sees one uniform triple space.
type Entity struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Relation is a directed, labeled edge from a subject entity to another
// entity or to a literal value.
//
// Relations are append-only. The same (subject, predicate, object) triple
// is stored once; re-adding it merges the provenance labels instead of
// duplicating the edge. Several relations sharing subject and predicate
// with different objects are all kept and form a multi-valued fact set.
type Relation struct {
	Subject   string   `json:"subject"`
	Predicate string   `json:"predicate"`
	Object    Value    `json:"object"`
	Sources   []string `json:"sources,omitempty"`
	Seq       int      `json:"seq"`
}

// Fact converts the relation into its evidence form.
func (r Relation) Fact() Fact {
	return Fact{
		Subject:   r.Subject,
		Predicate: r.Predicate,
		Value:     r.Object,
		Sources:   slices.Clone(r.Sources),
	}
}

func (r Relation) clone() Relation {
	r.Sources = slices.Clone(r.Sources)
	return r
}

// Fact is the externally visible unit of evidence: an immutable snapshot
// of a relation together with the sources that asserted it. Mutating the
// graph after retrieval never changes a Fact that was already handed out.
type Fact struct {
	Subject   string   `json:"subject"`
	Predicate string   `json:"predicate"`
	Value     Value    `json:"value"`
	Sources   []string `json:"sources,omitempty"`
}

// Pattern selects relations. Nil fields act as wildcards.
type Pattern struct {
	Subject   *string
	Predicate *string
	Object    *Value
}

// Term wraps a subject or predicate name for use in a Pattern.
func Term(name string) *string {
	return &name
}

// Obj wraps a value for use in a Pattern's object position.
func Obj(v Value) *Value {
	return &v
}

func (p Pattern) matches(r *Relation) bool {
	if p.Subject != nil && *p.Subject != r.Subject {
		return false
	}
	if p.Predicate != nil && *p.Predicate != r.Predicate {
		return false
	}
	if p.Object != nil && *p.Object != r.Object {
		return false
	}
	return true
}
