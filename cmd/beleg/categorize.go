package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/resolver"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Assign no-receipt categories to uncategorized transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			categories, err := db.GetAllCategories(ctx)
			if err != nil {
				return err
			}
			txns, err := db.GetUncategorizedTransactions(ctx)
			if err != nil {
				return err
			}

			r := resolver.NewCategoryResolver(db, getThresholds())
			applied := 0
			for i := range txns {
				res, err := r.Resolve(ctx, txns[i], categories)
				if err != nil {
					return err
				}
				if res.BestMatch != nil {
					if err := r.Apply(ctx, &txns[i], res); err != nil {
						return err
					}
					applied++
				}
			}

			fmt.Printf("Categorized %d transactions\n", applied)
			return nil
		},
	}
	return cmd
}
