package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

// demoScenario is one canned question exercised by the demo command.
// Verdict scenarios go through the structured compliance path.
type demoScenario struct {
	name     string
	question string
	verdict  bool
}

var demoScenarios = []demoScenario{
	{name: "kyc", question: "What is the KYC status of Client A and the transaction amounts?"},
	{name: "profile", question: "What is the risk profile of Client A?"},
	{name: "transactions", question: "Show the recent account activity and payments for Client A"},
	{name: "violations", question: "What violations were flagged for Client A?"},
	{name: "compliance", question: "Is transaction T001 compliant with the KYC rule?", verdict: true},
	{name: "unknown", question: "What will the weather be tomorrow?"},
}

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Scenario string
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the canned demo scenarios against the seeded graph",
		Long: `Run a set of canned questions covering the main behaviors: an
answerable KYC question, profile and transaction lookups, a rule
violation query, a structured compliance verdict, and a question the
graph cannot answer. Scenarios run concurrently; output keeps the
scenario order.

Scenarios: ` + strings.Join(scenarioNames(), ", "),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "run a single scenario by name (default all)")

	return cmd
}

type demoResult struct {
	answer  *reason.Answer
	verdict *reason.Verdict
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	scenarios, err := selectScenarios(opts.Scenario)
	if err != nil {
		return err
	}

	pipeline, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	results := make([]demoResult, len(scenarios))
	for i, sc := range scenarios {
		g.Go(func() error {
			if sc.verdict {
				ans, verdict, err := pipeline.Controller.CheckCompliance(gctx, sc.question)
				if err != nil {
					return fmt.Errorf("scenario %s: %w", sc.name, err)
				}
				results[i] = demoResult{answer: ans, verdict: verdict}
				return nil
			}
			ans, err := pipeline.Controller.Ask(gctx, sc.question)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.name, err)
			}
			results[i] = demoResult{answer: ans}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, sc := range scenarios {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "--- %s ---\n", sc.name)
		fmt.Fprintf(out, "Q: %s\n", sc.question)

		if opts.JSON {
			if err := printJSON(out, results[i].answer); err != nil {
				return err
			}
			continue
		}
		printAnswer(out, results[i].answer)
		if results[i].verdict != nil {
			printVerdict(out, results[i].verdict)
		}
	}
	return nil
}

func selectScenarios(name string) ([]demoScenario, error) {
	if name == "" {
		return demoScenarios, nil
	}
	for _, sc := range demoScenarios {
		if sc.name == name {
			return []demoScenario{sc}, nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q: must be one of %s", name, strings.Join(scenarioNames(), ", "))
}

func scenarioNames() []string {
	names := make([]string, 0, len(demoScenarios))
	for _, sc := range demoScenarios {
		names = append(names, sc.name)
	}
	return names
}
