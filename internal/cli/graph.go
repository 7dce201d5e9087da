package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/internal/storage"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	kgpgx "github.com/tuchaVshortah/financial-kg-agent/pkg/kg/pgx"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/leaselock"
)

// NewGraphCommand creates the graph command family.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and move knowledge graphs",
	}

	cmd.AddCommand(NewGraphStatsCommand(rootOpts))
	cmd.AddCommand(NewGraphDumpCommand(rootOpts))
	cmd.AddCommand(NewGraphLoadCommand(rootOpts))
	cmd.AddCommand(NewGraphPushCommand(rootOpts))
	cmd.AddCommand(NewGraphPullCommand(rootOpts))

	return cmd
}

// NewGraphStatsCommand creates the graph stats command.
func NewGraphStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Show entity and relation counts for the configured graph source",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			g, cleanup, err := buildGraph(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if rootOpts.JSON {
				return printJSON(cmd.OutOrStdout(), g.Stats())
			}
			printStats(cmd.OutOrStdout(), g.Stats())
			return nil
		},
	}
	return cmd
}

// GraphDumpOptions holds flags for the graph dump command.
type GraphDumpOptions struct {
	*RootOptions
	Out string
}

// NewGraphDumpCommand creates the graph dump command.
func NewGraphDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphDumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the configured graph as sorted triples",
		Long: `Load the graph from the configured source and write it out in the
line-per-triple text form. Without --out the dump goes to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphDump(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "write the dump to this file instead of stdout")

	return cmd
}

func runGraphDump(opts *GraphDumpOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	g, cleanup, err := buildGraph(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.Out == "" {
		return g.Dump(cmd.OutOrStdout())
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Out, err)
	}
	if err := g.Dump(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	stats := g.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entities and %d relations to %s\n",
		stats.Entities, stats.Relations, opts.Out)
	return nil
}

// NewGraphLoadCommand creates the graph load command.
func NewGraphLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Parse a triple dump and report its stats",
		Long: `Read a triple dump from a file, replay it into a fresh graph and
print the resulting stats. A dump that does not parse or violates the
duplicate rules fails here, before it reaches a server.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			g := kg.NewGraph()
			if err := g.Load(f, filepath.Base(path)); err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			g.Freeze()

			if rootOpts.JSON {
				return printJSON(cmd.OutOrStdout(), g.Stats())
			}
			printStats(cmd.OutOrStdout(), g.Stats())
			return nil
		},
	}
	return cmd
}

// GraphPushOptions holds flags for the graph push command.
type GraphPushOptions struct {
	*RootOptions
	To  string
	Key string
}

// NewGraphPushCommand creates the graph push command.
func NewGraphPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphPushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Write the configured graph to a durable store",
		Long: `Load the graph from the configured source and write it to S3 or
Postgres. A Postgres push runs under the shared graph lock, so it never
interleaves with a server reload or another push.

Example:
  GRAPH_SOURCE=file GRAPH_PATH=./graph.nt agent graph push --to postgres
  agent graph push --to s3 --key graphs/2024-06-01.nt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphPush(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "target store: s3 or postgres (required)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "object key for --to s3 (default GRAPH_S3_KEY or graphs/latest.nt)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runGraphPush(opts *GraphPushOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	g, cleanup, err := buildGraph(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := g.Stats()

	switch opts.To {
	case "s3":
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return err
		}
		key := opts.Key
		if key == "" {
			key = util.GetEnvString("GRAPH_S3_KEY", "graphs/latest.nt")
		}
		if err := storage.PushGraph(ctx, client, key, g); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d entities and %d relations to s3 key %s\n",
			stats.Entities, stats.Relations, key)
		return nil

	case "postgres":
		conn, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		err = leaselock.New(conn).WithLease(ctx, leaselock.GraphKey, leaselock.Options{}, func(ctx context.Context) error {
			return kgpgx.NewStore(conn).SaveGraph(ctx, g)
		})
		if errors.Is(err, leaselock.ErrBusy) {
			return errors.New("another writer holds the graph lock, try again")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d entities and %d relations to postgres\n",
			stats.Entities, stats.Relations)
		return nil

	default:
		return fmt.Errorf("unknown push target %q: must be s3 or postgres", opts.To)
	}
}

// GraphPullOptions holds flags for the graph pull command.
type GraphPullOptions struct {
	*RootOptions
	From string
	Out  string
	Key  string
}

// NewGraphPullCommand creates the graph pull command.
func NewGraphPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphPullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch a stored graph and write it as a triple dump",
		Long: `Fetch the graph from S3 or Postgres, ignoring GRAPH_SOURCE, and
write it out in the line-per-triple text form. Without --out the dump
goes to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphPull(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "source store: s3 or postgres (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write the dump to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Key, "key", "", "object key for --from s3 (default GRAPH_S3_KEY or graphs/latest.nt)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runGraphPull(opts *GraphPullOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	g := kg.NewGraph()

	switch opts.From {
	case "s3":
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return err
		}
		key := opts.Key
		if key == "" {
			key = util.GetEnvString("GRAPH_S3_KEY", "graphs/latest.nt")
		}
		if err := storage.PullGraph(ctx, client, key, g); err != nil {
			return err
		}

	case "postgres":
		conn, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := kgpgx.NewStore(conn).LoadGraph(ctx, g); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown pull source %q: must be s3 or postgres", opts.From)
	}

	g.Freeze()

	if opts.Out == "" {
		return g.Dump(cmd.OutOrStdout())
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Out, err)
	}
	if err := g.Dump(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	stats := g.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entities and %d relations to %s\n",
		stats.Entities, stats.Relations, opts.Out)
	return nil
}

func printStats(w io.Writer, stats kg.GraphStats) {
	fmt.Fprintf(w, "Entities:  %d\n", stats.Entities)
	fmt.Fprintf(w, "Relations: %d\n", stats.Relations)
	fmt.Fprintf(w, "Frozen:    %t\n", stats.Frozen)
	if len(stats.Kinds) > 0 {
		parts := make([]string, 0, len(stats.Kinds))
		for _, kind := range slices.Sorted(maps.Keys(stats.Kinds)) {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, stats.Kinds[kind]))
		}
		fmt.Fprintf(w, "Kinds:     %s\n", strings.Join(parts, " "))
	}
}
