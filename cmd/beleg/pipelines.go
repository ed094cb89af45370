package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/pipeline"
)

func pipelinesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List the registered automation pipelines",
		RunE: func(_ *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tSTEPS")
			for _, p := range pipeline.Registry() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Trigger, len(p.Steps))
				if verbose {
					for _, s := range p.Steps {
						fmt.Fprintf(w, "  %d. %s\t(%s)\t\t\n", s.Order, s.Name, s.Component)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show individual steps")
	return cmd
}
