package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

func TestBuild_SeedSource(t *testing.T) {
	t.Setenv("GRAPH_SOURCE", "seed")
	t.Setenv("TEMPLATES_PATH", "")

	p, err := Build(context.Background(), BuildParams{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !p.Graph.Frozen() {
		t.Fatalf("graph not frozen after build")
	}
	stats := p.Graph.Stats()
	if stats.Entities != 8 || stats.Relations != 43 {
		t.Fatalf("stats = %+v, want 8 entities and 43 relations", stats)
	}
	if p.Registry == nil || p.Retriever == nil || p.Controller == nil {
		t.Fatalf("pipeline incomplete: %+v", p)
	}
}

func TestBuild_FileSource(t *testing.T) {
	g := kg.NewGraph()
	if err := kg.Seed(g); err != nil {
		t.Fatalf("failed to seed graph: %v", err)
	}
	path := filepath.Join(t.TempDir(), "snapshot.nt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}
	if err := g.Dump(f); err != nil {
		t.Fatalf("failed to dump snapshot: %v", err)
	}
	f.Close()

	t.Setenv("GRAPH_SOURCE", "file")
	t.Setenv("GRAPH_PATH", path)
	t.Setenv("TEMPLATES_PATH", "")

	p, err := Build(context.Background(), BuildParams{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	stats := p.Graph.Stats()
	if stats.Entities != 8 || stats.Relations != 43 {
		t.Fatalf("stats = %+v, want the full snapshot", stats)
	}

	// Loaded facts carry the snapshot file name as provenance.
	for r := range p.Graph.Match(kg.Pattern{}) {
		if len(r.Sources) != 1 || r.Sources[0] != "snapshot.nt" {
			t.Fatalf("relation %+v sources = %v, want [snapshot.nt]", r, r.Sources)
		}
		break
	}
}

func TestBuild_FileSourceRequiresPath(t *testing.T) {
	t.Setenv("GRAPH_SOURCE", "file")
	t.Setenv("GRAPH_PATH", "")

	_, err := Build(context.Background(), BuildParams{})
	if err == nil || !strings.Contains(err.Error(), "GRAPH_PATH") {
		t.Fatalf("error = %v, want GRAPH_PATH mentioned", err)
	}
}

func TestBuild_UnknownSource(t *testing.T) {
	t.Setenv("GRAPH_SOURCE", "consul")

	_, err := Build(context.Background(), BuildParams{})
	if err == nil || !strings.Contains(err.Error(), "unknown graph source") {
		t.Fatalf("error = %v, want unknown source", err)
	}
}

func TestHandle_Swap(t *testing.T) {
	first := &Pipeline{}
	second := &Pipeline{}

	h := NewHandle(first)
	if h.Load() != first {
		t.Fatalf("Load() did not return the stored pipeline")
	}
	h.Store(second)
	if h.Load() != second {
		t.Fatalf("Load() did not observe the swap")
	}
}
