package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/internal/audit"
	"github.com/tuchaVshortah/financial-kg-agent/internal/storage"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
)

// NewAuditCommand creates the audit command family.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Summarize and archive the audit log",
	}

	cmd.AddCommand(NewAuditSummaryCommand(rootOpts))
	cmd.AddCommand(NewAuditArchiveCommand(rootOpts))

	return cmd
}

// AuditOptions holds flags shared by the audit subcommands.
type AuditOptions struct {
	*RootOptions
	Log string
	Key string
}

// NewAuditSummaryCommand creates the audit summary command.
func NewAuditSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "summary",
		Short:         "Aggregate the audit log by status and token usage",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.Log
			if path == "" {
				path = util.GetEnvString("AUDIT_LOG_PATH", "audit.log")
			}

			events, err := audit.ReadLogFile(path)
			if err != nil {
				return err
			}
			summary := audit.Summarize(events)

			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), summary)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Events:      %d\n", summary.Events)
			fmt.Fprintf(w, "Model calls: %d\n", summary.ModelCalls)
			fmt.Fprintf(w, "Tokens:      %d in, %d out, %d total\n",
				summary.InputTokens, summary.OutputTokens, summary.TotalTokens)
			if len(summary.ByStatus) > 0 {
				fmt.Fprintln(w, "By status:")
				for _, status := range slices.Sorted(maps.Keys(summary.ByStatus)) {
					fmt.Fprintf(w, "  %s: %d\n", status, summary.ByStatus[status])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Log, "log", "", "audit log path (default AUDIT_LOG_PATH or audit.log)")

	return cmd
}

// NewAuditArchiveCommand creates the audit archive command.
func NewAuditArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Upload the audit log to S3",
		Long: `Validate the audit log and upload it to the configured S3 bucket.
The default key is audit/<utc-timestamp>.jsonl, so repeated archives
never overwrite each other.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditArchive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Log, "log", "", "audit log path (default AUDIT_LOG_PATH or audit.log)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "object key (default audit/<utc-timestamp>.jsonl)")

	return cmd
}

func runAuditArchive(opts *AuditOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	path := opts.Log
	if path == "" {
		path = util.GetEnvString("AUDIT_LOG_PATH", "audit.log")
	}

	// Parse before uploading so a corrupt log is caught here.
	events, err := audit.ReadLogFile(path)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("audit log %s has no events", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	key := opts.Key
	if key == "" {
		key = "audit/" + time.Now().UTC().Format("20060102T150405Z") + ".jsonl"
	}

	client, err := storage.NewS3Client(ctx)
	if err != nil {
		return err
	}
	if err := storage.PutObject(ctx, client, key, "application/x-ndjson", data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Archived %d events to s3 key %s\n", len(events), key)
	return nil
}
