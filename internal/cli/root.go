package cli

import (
	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger/console"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Debug bool
	JSON  bool
}

// NewRootCommand creates the root command for the agent CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Financial knowledge graph agent",
		Long: `Answer questions about clients, accounts, transactions and compliance
rules from a knowledge graph. Questions are matched to query templates,
the retrieved facts are classified, and only answerable fact sets are
handed to the completion model.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()

			debug := opts.Debug || util.GetEnvBool("DEBUG", false)
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug: debug,
			}))
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	// Add subcommands
	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewTemplatesCommand(opts))

	return cmd
}
