// Package bootstrap assembles the reasoning stack: graph, template
// registry, retriever, and controller. The stack is built as one unit
// so that a reload swaps everything that depends on the graph at once.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuchaVshortah/financial-kg-agent/internal/storage"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	kgpgx "github.com/tuchaVshortah/financial-kg-agent/pkg/kg/pgx"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/retrieve"
)

// Pipeline is one immutable assembly of the reasoning stack, built over
// a frozen graph.
type Pipeline struct {
	Graph      *kg.Graph
	Registry   *query.Registry
	Engine     *query.Engine
	Retriever  *retrieve.Retriever
	Controller *reason.Controller
}

// Handle publishes the active pipeline. A request keeps the pipeline it
// started with; a concurrent reload swaps the pointer underneath
// without disturbing in-flight asks.
type Handle struct {
	p atomic.Pointer[Pipeline]
}

func NewHandle(p *Pipeline) *Handle {
	h := &Handle{}
	h.p.Store(p)
	return h
}

func (h *Handle) Load() *Pipeline {
	return h.p.Load()
}

func (h *Handle) Store(p *Pipeline) {
	h.p.Store(p)
}

// BuildParams carries the external clients Build may need. S3 is only
// required for GRAPH_SOURCE=s3, DB only for GRAPH_SOURCE=postgres.
type BuildParams struct {
	Client ai.CompletionClient
	S3     *awss3.Client
	DB     *pgxpool.Pool
	Tracer query.Tracer
}

// BuildGraph loads and freezes the graph from the source configured by
// GRAPH_SOURCE: seed, file, s3, or postgres.
func BuildGraph(ctx context.Context, params BuildParams) (*kg.Graph, error) {
	g := kg.NewGraph()
	source := util.GetEnvString("GRAPH_SOURCE", "seed")
	switch source {
	case "seed":
		if err := kg.Seed(g); err != nil {
			return nil, fmt.Errorf("failed to seed graph: %w", err)
		}
	case "file":
		path := util.GetEnv("GRAPH_PATH")
		if path == "" {
			return nil, fmt.Errorf("GRAPH_SOURCE=file requires GRAPH_PATH")
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open graph file: %w", err)
		}
		err = g.Load(f, filepath.Base(path))
		f.Close()
		if err != nil {
			return nil, err
		}
	case "s3":
		if params.S3 == nil {
			return nil, fmt.Errorf("GRAPH_SOURCE=s3 requires an S3 client")
		}
		key := util.GetEnvString("GRAPH_S3_KEY", "graphs/latest.nt")
		if err := storage.PullGraph(ctx, params.S3, key, g); err != nil {
			return nil, err
		}
	case "postgres":
		if params.DB == nil {
			return nil, fmt.Errorf("GRAPH_SOURCE=postgres requires a database pool")
		}
		if err := kgpgx.NewStore(params.DB).LoadGraph(ctx, g); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown graph source %q", source)
	}
	g.Freeze()
	return g, nil
}

// Build loads the graph via BuildGraph and assembles the stack on top.
// The registry comes from TEMPLATES_PATH when set, otherwise the
// compiled-in templates.
func Build(ctx context.Context, params BuildParams) (*Pipeline, error) {
	registry, err := LoadRegistry()
	if err != nil {
		return nil, err
	}

	g, err := BuildGraph(ctx, params)
	if err != nil {
		return nil, err
	}

	engine := query.NewEngine(query.NewEngineParams{
		Graph:    g,
		Registry: registry,
		Tracer:   params.Tracer,
	})
	retriever := retrieve.NewRetriever(retrieve.NewRetrieverParams{Engine: engine})
	controller := reason.NewController(reason.NewControllerParams{
		Retriever: retriever,
		Client:    params.Client,
		Registry:  registry,
		Tracer:    params.Tracer,
		Retries:   int(util.GetEnvNumeric("AI_RETRY_COUNT", 3)),
	})

	stats := g.Stats()
	logger.Info("[Bootstrap] Pipeline ready",
		"source", util.GetEnvString("GRAPH_SOURCE", "seed"),
		"entities", stats.Entities,
		"relations", stats.Relations,
		"templates", len(registry.Templates()),
	)

	return &Pipeline{
		Graph:      g,
		Registry:   registry,
		Engine:     engine,
		Retriever:  retriever,
		Controller: controller,
	}, nil
}

// LoadRegistry reads the template registry from TEMPLATES_PATH, or
// falls back to the compiled-in templates when the variable is unset.
func LoadRegistry() (*query.Registry, error) {
	path := util.GetEnv("TEMPLATES_PATH")
	if path == "" {
		return query.DefaultRegistry(), nil
	}
	registry, err := query.LoadRegistryFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", path, err)
	}
	return registry, nil
}
