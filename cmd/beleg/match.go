package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/match"
	"github.com/beleghq/beleg/internal/notify"
)

func matchCmd() *cobra.Command {
	var partnerID string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a partner's documents against its unfiled transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			events := notify.NewEmitter(0)
			engine := match.NewEngine(db, nil, events, getThresholds())
			result, err := engine.RunForPartner(ctx, partnerID)
			if err != nil {
				return err
			}

			fmt.Printf("Scored %d pairs: %d auto-matched, %d AI-matched, %d suggestions\n",
				result.Scored, result.AutoMatched, result.AIMatched, result.Suggested)
			return nil
		},
	}
	cmd.Flags().StringVar(&partnerID, "partner", "", "partner ID to match (required)")
	_ = cmd.MarkFlagRequired("partner")
	return cmd
}
