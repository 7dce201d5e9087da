package cli

import (
	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <question>",
		Short: "Answer a compliance question with a structured verdict",
		Long: `Answer a compliance question with a schema-constrained verdict
instead of free text.

The evidentiary gate is the same as for ask: the verdict is only
produced when the retrieved fact set is answerable, and the rationale
references the evidence with [F1] style markers.

Example:
  agent check "Is transaction T001 compliant with the KYC rule?"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.MaxTokens, "max-tokens", 0, "cap on generated tokens (0 uses the model default)")
	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0, "sampling temperature (0 uses the model default)")

	return cmd
}

func runCheck(opts *AskOptions, cmd *cobra.Command, question string) error {
	ctx := cmd.Context()

	pipeline, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ans, verdict, err := pipeline.Controller.CheckCompliance(ctx, question, askOptions(opts)...)
	if err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(cmd.OutOrStdout(), struct {
			Answer  *reason.Answer  `json:"answer"`
			Verdict *reason.Verdict `json:"verdict,omitempty"`
		}{ans, verdict})
	}

	printAnswer(cmd.OutOrStdout(), ans)
	if verdict != nil {
		printVerdict(cmd.OutOrStdout(), verdict)
	}
	return nil
}
