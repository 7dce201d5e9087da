package pgx

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

func buildGraph(t *testing.T) *kg.Graph {
	t.Helper()

	g := kg.NewGraph()
	if err := g.AddEntityFrom("seed", "client", "Client_A", map[string]kg.Value{
		"name":      kg.String("Client A"),
		"kycStatus": kg.String("verified"),
	}); err != nil {
		t.Fatalf("failed to add client: %v", err)
	}
	if err := g.AddEntityFrom("seed", "account", "Account_A1", map[string]kg.Value{
		"accountType": kg.String("checking"),
	}); err != nil {
		t.Fatalf("failed to add account: %v", err)
	}
	if err := g.AddRelationFrom("seed", "Client_A", "hasAccount", kg.Ref("Account_A1")); err != nil {
		t.Fatalf("failed to add relation: %v", err)
	}
	// Second provenance label on an existing triple extends its source set.
	if err := g.AddRelationFrom("import", "Client_A", "hasAccount", kg.Ref("Account_A1")); err != nil {
		t.Fatalf("failed to re-add relation: %v", err)
	}
	if err := g.AddRelationFrom("seed", "Account_A1", "balance", kg.Number("1250.00")); err != nil {
		t.Fatalf("failed to add literal relation: %v", err)
	}
	return g
}

func TestCollectTriples_OrderAndShape(t *testing.T) {
	g := buildGraph(t)

	rows := collectTriples(g)
	if len(rows) != 7 {
		t.Fatalf("rows = %d, want 7", len(rows))
	}

	first := rows[0]
	want := tripleRow{
		Seq:        1,
		Subject:    "Client_A",
		Predicate:  "type",
		ObjectKind: "string",
		ObjectText: "client",
		Sources:    []string{"seed"},
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("first row = %+v, want %+v", first, want)
	}

	for i := 1; i < len(rows); i++ {
		if rows[i].Seq <= rows[i-1].Seq {
			t.Fatalf("rows not in insertion order at %d: %+v", i, rows[i])
		}
	}

	for _, row := range rows {
		if row.Sources == nil {
			t.Fatalf("row %+v has nil sources, want non-nil slice", row)
		}
	}

	var merged *tripleRow
	for i := range rows {
		if rows[i].Predicate == "hasAccount" {
			merged = &rows[i]
		}
	}
	if merged == nil {
		t.Fatalf("hasAccount row missing")
	}
	if !reflect.DeepEqual(merged.Sources, []string{"seed", "import"}) {
		t.Fatalf("merged sources = %v, want [seed import]", merged.Sources)
	}
}

func TestReplayTriple_RoundTrip(t *testing.T) {
	g := buildGraph(t)

	replayed := kg.NewGraph()
	for _, row := range collectTriples(g) {
		if err := replayTriple(replayed, row); err != nil {
			t.Fatalf("replay failed for %+v: %v", row, err)
		}
	}

	var original, restored bytes.Buffer
	if err := g.Dump(&original); err != nil {
		t.Fatalf("failed to dump original: %v", err)
	}
	if err := replayed.Dump(&restored); err != nil {
		t.Fatalf("failed to dump replayed: %v", err)
	}
	if original.String() != restored.String() {
		t.Fatalf("round trip diverged:\noriginal:\n%s\nrestored:\n%s", original.String(), restored.String())
	}

	if !reflect.DeepEqual(collectTriples(g), collectTriples(replayed)) {
		t.Fatalf("triple rows diverged after round trip")
	}
}

func TestReplayTriple_UnsourcedRows(t *testing.T) {
	g := kg.NewGraph()
	rows := []tripleRow{
		{Seq: 1, Subject: "Rule_KYC", Predicate: "type", ObjectKind: "string", ObjectText: "rule", Sources: []string{}},
		{Seq: 2, Subject: "Rule_KYC", Predicate: "status", ObjectKind: "string", ObjectText: "active", Sources: []string{}},
	}
	for _, row := range rows {
		if err := replayTriple(g, row); err != nil {
			t.Fatalf("replay failed for %+v: %v", row, err)
		}
	}

	for r := range g.Match(kg.Pattern{}) {
		if r.Sources != nil {
			t.Fatalf("relation %+v has sources, want none", r)
		}
	}
}

func TestReplayTriple_RejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		rows []tripleRow
	}{
		{
			name: "entity kind is not a string literal",
			rows: []tripleRow{
				{Seq: 1, Subject: "Client_A", Predicate: "type", ObjectKind: "ref", ObjectText: "client"},
			},
		},
		{
			name: "relation before its subject",
			rows: []tripleRow{
				{Seq: 1, Subject: "Client_A", Predicate: "kycStatus", ObjectKind: "string", ObjectText: "verified"},
			},
		},
		{
			name: "unknown object kind",
			rows: []tripleRow{
				{Seq: 1, Subject: "Client_A", Predicate: "type", ObjectKind: "string", ObjectText: "client"},
				{Seq: 2, Subject: "Client_A", Predicate: "riskLevel", ObjectKind: "decimal", ObjectText: "3"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := kg.NewGraph()
			var err error
			for _, row := range tt.rows {
				if err = replayTriple(g, row); err != nil {
					break
				}
			}
			if err == nil {
				t.Fatalf("expected replay error, got none")
			}
		})
	}
}
