package kg

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func collect(t *testing.T, g *Graph, p Pattern) []Relation {
	t.Helper()
	var out []Relation
	for r := range g.Match(p) {
		out = append(out, r)
	}
	return out
}

func tripleStrings(rels []Relation) []string {
	var out []string
	for _, r := range rels {
		out = append(out, fmt.Sprintf("%s %s %s", r.Subject, r.Predicate, r.Object.Text))
	}
	return out
}

func TestAddEntity_KindMismatch(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.AddEntity("account", "Client_A", nil)
	var dup *DuplicateEntityError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateEntityError, got %v", err)
	}
	if dup.ID != "Client_A" || dup.Existing != "client" || dup.Kind != "account" {
		t.Fatalf("unexpected error fields: %+v", dup)
	}
}

func TestAddEntity_SameKindMergesAttributes(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", map[string]Value{"name": String("Client A")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEntity("client", "Client_A", map[string]Value{"riskLevel": String("low")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := tripleStrings(collect(t, g, Pattern{Subject: Term("Client_A")}))
	want := []string{
		"Client_A type client",
		"Client_A name Client A",
		"Client_A riskLevel low",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected relations: got %v, want %v", got, want)
	}
}

func TestAddEntity_AttributesAccumulate(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", map[string]Value{"kycStatus": String("verified")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEntity("client", "Client_A", map[string]Value{"kycStatus": String("pending")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rels := collect(t, g, Pattern{Subject: Term("Client_A"), Predicate: Term("kycStatus")})
	if len(rels) != 2 {
		t.Fatalf("expected both attribute values to be kept, got %d relations", len(rels))
	}
}

func TestAddRelation_UnknownSubject(t *testing.T) {
	g := NewGraph()

	err := g.AddRelation("Client_A", "hasAccount", String("x"))
	var unknown *UnknownEntityError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEntityError, got %v", err)
	}
	if unknown.ID != "Client_A" {
		t.Fatalf("unexpected entity id: %q", unknown.ID)
	}
}

func TestAddRelation_UnknownRefObject(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.AddRelation("Client_A", "hasAccount", Ref("Account_A9"))
	var unknown *UnknownEntityError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEntityError, got %v", err)
	}
	if unknown.ID != "Account_A9" {
		t.Fatalf("unexpected entity id: %q", unknown.ID)
	}
}

func TestAddRelation_ReservedPredicate(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.AddRelation("Client_A", "type", String("account"))
	if !errors.Is(err, ErrReservedPredicate) {
		t.Fatalf("expected ErrReservedPredicate, got %v", err)
	}
}

func TestAddRelationFrom_MergesSources(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := g.AddRelationFrom("crm_export", "Client_A", "kycStatus", String("verified")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddRelationFrom("kyc_snapshot", "Client_A", "kycStatus", String("verified")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rels := collect(t, g, Pattern{Predicate: Term("kycStatus")})
	if len(rels) != 1 {
		t.Fatalf("expected the duplicate triple to merge, got %d relations", len(rels))
	}
	wantSources := []string{"crm_export", "kyc_snapshot"}
	if !reflect.DeepEqual(rels[0].Sources, wantSources) {
		t.Fatalf("unexpected sources: got %v, want %v", rels[0].Sources, wantSources)
	}
}

func TestMatch_Patterns(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", map[string]Value{"kycStatus": String("verified")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEntity("account", "Account_A1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddRelation("Client_A", "hasAccount", Ref("Account_A1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		pattern Pattern
		want    []string
	}{
		{
			name:    "all wildcards",
			pattern: Pattern{},
			want: []string{
				"Client_A type client",
				"Client_A kycStatus verified",
				"Account_A1 type account",
				"Client_A hasAccount Account_A1",
			},
		},
		{
			name:    "by subject",
			pattern: Pattern{Subject: Term("Client_A")},
			want: []string{
				"Client_A type client",
				"Client_A kycStatus verified",
				"Client_A hasAccount Account_A1",
			},
		},
		{
			name:    "by predicate",
			pattern: Pattern{Predicate: Term("kycStatus")},
			want:    []string{"Client_A kycStatus verified"},
		},
		{
			name:    "by object",
			pattern: Pattern{Object: Obj(Ref("Account_A1"))},
			want:    []string{"Client_A hasAccount Account_A1"},
		},
		{
			name:    "subject and predicate",
			pattern: Pattern{Subject: Term("Client_A"), Predicate: Term("hasAccount")},
			want:    []string{"Client_A hasAccount Account_A1"},
		},
		{
			name:    "literal object distinguishes kind",
			pattern: Pattern{Object: Obj(String("Account_A1"))},
			want:    nil,
		},
		{
			name:    "no match",
			pattern: Pattern{Predicate: Term("amount")},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tripleStrings(collect(t, g, tt.pattern))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected matches: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_RestartableAndOrdered(t *testing.T) {
	g := NewGraph()
	if err := Seed(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := g.Match(Pattern{})

	first := make([]Relation, 0)
	for r := range seq {
		first = append(first, r)
	}
	second := make([]Relation, 0)
	for r := range seq {
		second = append(second, r)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical results on re-iteration")
	}
	for i := 1; i < len(first); i++ {
		if first[i].Seq <= first[i-1].Seq {
			t.Fatalf("expected insertion order, got seq %d after %d", first[i].Seq, first[i-1].Seq)
		}
	}

	// An abandoned pass must not affect later ones.
	for range seq {
		break
	}
	third := 0
	for range seq {
		third++
	}
	if third != len(first) {
		t.Fatalf("expected %d relations after early stop, got %d", len(first), third)
	}
}

func TestMatch_YieldsCopies(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddRelationFrom("seed", "Client_A", "kycStatus", String("verified")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rels := collect(t, g, Pattern{Predicate: Term("kycStatus")})
	rels[0].Sources[0] = "tampered"

	again := collect(t, g, Pattern{Predicate: Term("kycStatus")})
	if again[0].Sources[0] != "seed" {
		t.Fatal("mutating a returned relation must not change the graph")
	}
}

func TestFreeze(t *testing.T) {
	g := NewGraph()
	if err := g.AddEntity("client", "Client_A", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.Freeze()
	g.Freeze() // idempotent

	if !g.Frozen() {
		t.Fatal("expected graph to report frozen")
	}
	if err := g.AddEntity("client", "Client_B", nil); !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	if err := g.AddRelation("Client_A", "kycStatus", String("verified")); !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	if got := len(collect(t, g, Pattern{})); got != 1 {
		t.Fatalf("expected reads to keep working, got %d relations", got)
	}
}

func TestSeed_StatsAndIdempotence(t *testing.T) {
	g := NewGraph()
	if err := Seed(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Seed(g); err != nil {
		t.Fatalf("unexpected error on second seed: %v", err)
	}

	stats := g.Stats()
	if stats.Entities != 8 {
		t.Fatalf("expected 8 entities, got %d", stats.Entities)
	}
	if stats.Relations != 43 {
		t.Fatalf("expected 43 relations, got %d", stats.Relations)
	}
	wantKinds := map[string]int{"client": 1, "account": 2, "rule": 2, "transaction": 3}
	if !reflect.DeepEqual(stats.Kinds, wantKinds) {
		t.Fatalf("unexpected kind counts: got %v, want %v", stats.Kinds, wantKinds)
	}
}

func TestConcurrentReads(t *testing.T) {
	g := NewGraph()
	if err := Seed(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Freeze()

	want := len(collect(t, g, Pattern{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count := 0
			for range g.Match(Pattern{}) {
				count++
			}
			if count != want {
				t.Errorf("expected %d relations, got %d", want, count)
			}
		}()
	}
	wg.Wait()
}
