package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/pattern"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage learned partner patterns",
	}
	cmd.AddCommand(listPatternsCmd())
	cmd.AddCommand(addPatternCmd())
	return cmd
}

func listPatternsCmd() *cobra.Command {
	var partnerID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned patterns and aliases per partner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			var partners []model.Partner
			if partnerID != "" {
				p, err := db.GetPartner(ctx, partnerID)
				if err != nil {
					return err
				}
				partners = []model.Partner{*p}
			} else {
				partners, err = db.GetAllPartners(ctx)
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "PARTNER\tKIND\tPATTERN\tCONFIDENCE")
			rows := 0
			for i := range partners {
				p := &partners[i]
				for j := range p.LearnedPatterns {
					lp := &p.LearnedPatterns[j]
					fmt.Fprintf(w, "%s\tlearned\t%s\t%d\n",
						p.Name, lp.Pattern, pattern.EffectiveConfidence(*lp, p.ManualRemovals))
					rows++
				}
				for _, alias := range p.Aliases {
					fmt.Fprintf(w, "%s\talias\t%s\t-\n", p.Name, alias)
					rows++
				}
			}
			if rows == 0 {
				fmt.Println("No patterns learned yet")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&partnerID, "partner", "", "limit to one partner ID")
	return cmd
}

func addPatternCmd() *cobra.Command {
	var (
		partnerID string
		alias     bool
	)
	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a glob pattern or alias to a partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			glob := strings.ToLower(strings.TrimSpace(args[0]))
			if glob == "" {
				return fmt.Errorf("pattern must not be empty")
			}
			if _, err := pattern.Compile(glob); err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := db.GetPartner(ctx, partnerID)
			if err != nil {
				return err
			}

			if alias {
				p.Aliases = append(p.Aliases, glob)
			} else {
				p.LearnedPatterns = pattern.Learn(p.LearnedPatterns, glob, "", time.Now())
			}
			if err := db.SavePartner(ctx, p); err != nil {
				return err
			}
			fmt.Printf("Added %q to %s\n", glob, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&partnerID, "partner", "", "partner ID (required)")
	cmd.Flags().BoolVar(&alias, "alias", false, "add as alias instead of a learned pattern")
	_ = cmd.MarkFlagRequired("partner")
	return cmd
}
