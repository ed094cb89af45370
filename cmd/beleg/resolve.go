package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/resolver"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve partners for unresolved transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			partners, err := db.GetAllPartners(ctx)
			if err != nil {
				return err
			}
			txns, err := db.GetUnresolvedTransactions(ctx)
			if err != nil {
				return err
			}

			r := resolver.NewPartnerResolver(db, nil, getThresholds())
			applied := 0
			suggested := 0
			for i := range txns {
				res, err := r.Resolve(ctx, txns[i], partners)
				if err != nil {
					return err
				}
				if res.BestMatch != nil {
					if err := r.Apply(ctx, &txns[i], res); err != nil {
						return err
					}
					applied++
				}
				suggested += len(res.Suggestions)
			}

			fmt.Printf("Resolved %d of %d transactions (%d suggestions)\n",
				applied, len(txns), suggested)
			return nil
		},
	}
	cmd.AddCommand(correctCmd())
	return cmd
}

func correctCmd() *cobra.Command {
	var transactionID, partnerID string
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Manually assign a partner, teaching the matcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			r := resolver.NewPartnerResolver(db, nil, getThresholds())
			if err := r.RecordCorrection(cmd.Context(), transactionID, partnerID); err != nil {
				return err
			}
			fmt.Println("Correction recorded")
			return nil
		},
	}
	cmd.Flags().StringVar(&transactionID, "transaction", "", "transaction ID (required)")
	cmd.Flags().StringVar(&partnerID, "partner", "", "partner ID (required)")
	_ = cmd.MarkFlagRequired("transaction")
	_ = cmd.MarkFlagRequired("partner")
	return cmd
}
