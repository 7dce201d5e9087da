package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuchaVshortah/financial-kg-agent/internal/bootstrap"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
)

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "templates",
		Short:         "List the query templates questions are matched against",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := bootstrap.LoadRegistry()
			if err != nil {
				return err
			}

			templates := registry.Templates()
			if rootOpts.JSON {
				return printJSON(cmd.OutOrStdout(), struct {
					Templates   []query.Template `json:"templates"`
					Multivalued []string         `json:"multivalued,omitempty"`
				}{templates, registry.Multivalued()})
			}

			w := cmd.OutOrStdout()
			for i, t := range templates {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s\n", t.Name)
				if t.Description != "" {
					fmt.Fprintf(w, "  %s\n", t.Description)
				}
				if len(t.Keywords) > 0 {
					fmt.Fprintf(w, "  keywords: %s\n", strings.Join(t.Keywords, ", "))
				}
				if len(t.Bindings) > 0 {
					slots := make([]string, 0, len(t.Bindings))
					for _, b := range t.Bindings {
						if b.Kind != "" {
							slots = append(slots, b.Name+":"+b.Kind)
							continue
						}
						slots = append(slots, b.Name)
					}
					fmt.Fprintf(w, "  slots:    %s\n", strings.Join(slots, ", "))
				}
				if len(t.Required) > 0 {
					fmt.Fprintf(w, "  required: %s\n", strings.Join(t.Required, ", "))
				}
			}
			if multivalued := registry.Multivalued(); len(multivalued) > 0 {
				fmt.Fprintf(w, "\nMultivalued predicates: %s\n", strings.Join(multivalued, ", "))
			}
			return nil
		},
	}
	return cmd
}
