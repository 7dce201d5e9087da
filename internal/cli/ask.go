package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	MaxTokens   int
	Temperature float64
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge graph",
		Long: `Answer a single question against the configured graph source.

The question is matched to query templates, the retrieved facts are
classified, and the completion model is only called when the fact set
is answerable. UNKNOWN and INCONCLUSIVE questions come back as fixed
refusals without a model call.

Example:
  agent ask "What is the KYC status of Client A?"
  agent ask --temperature 0.2 "Which rules did Client A violate?"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.MaxTokens, "max-tokens", 0, "cap on generated tokens (0 uses the model default)")
	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0, "sampling temperature (0 uses the model default)")

	return cmd
}

func runAsk(opts *AskOptions, cmd *cobra.Command, question string) error {
	ctx := cmd.Context()

	pipeline, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ans, err := pipeline.Controller.Ask(ctx, question, askOptions(opts)...)
	if err != nil {
		var genErr *reason.GenerationError
		if errors.As(err, &genErr) {
			return fmt.Errorf("%d evidence facts were ready but generation failed: %w", len(genErr.Evidence), genErr.Err)
		}
		return err
	}

	if opts.JSON {
		return printJSON(cmd.OutOrStdout(), ans)
	}
	printAnswer(cmd.OutOrStdout(), ans)
	return nil
}

func askOptions(opts *AskOptions) []reason.AskOption {
	askOpts := []reason.AskOption{}
	if opts.MaxTokens > 0 {
		askOpts = append(askOpts, reason.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		askOpts = append(askOpts, reason.WithTemperature(opts.Temperature))
	}
	return askOpts
}
