package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beleghq/beleg/internal/agent"
	"github.com/beleghq/beleg/internal/common"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agentic document search sessions",
	}
	cmd.AddCommand(agentStartCmd())
	cmd.AddCommand(agentCancelCmd())
	cmd.AddCommand(agentStatusCmd())
	return cmd
}

func agentStartCmd() *cobra.Command {
	var transactionID string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a search session and run a local-file iteration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			runner := agent.NewRunner(db, nil, getThresholds())
			session, err := runner.Start(ctx, transactionID)
			if err != nil {
				return err
			}

			// Email strategies need a configured provider; the local
			// file strategy always works.
			candidates, err := runner.RunIteration(ctx, session, &agent.LocalFileStrategy{Storage: db})
			if err != nil {
				return err
			}

			fmt.Printf("Session %s: iteration %d found %d candidates\n",
				session.ID, session.Iteration, len(candidates))
			for _, c := range candidates {
				fmt.Printf("  [%s] %s (%s)\n", c.Provider, c.FileName, c.SourceID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transactionID, "transaction", "", "transaction ID (required)")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}

func agentCancelCmd() *cobra.Command {
	var transactionID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active session for a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := db.GetActiveSession(ctx, transactionID)
			if err != nil {
				return err
			}
			if session == nil {
				return common.ErrNotFound
			}

			runner := agent.NewRunner(db, nil, getThresholds())
			if err := runner.Cancel(ctx, session); err != nil {
				return err
			}
			fmt.Printf("Session %s cancelled\n", session.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&transactionID, "transaction", "", "transaction ID (required)")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}

func agentStatusCmd() *cobra.Command {
	var transactionID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show search history for a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := db.GetSearchEntries(ctx, transactionID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No searches recorded")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s (%s)\n", e.ID, e.StartedAt.Format("2006-01-02 15:04"))
				for _, a := range e.Attempts {
					status := fmt.Sprintf("%d candidates", a.CandidatesFound)
					if a.Err != "" {
						status = "failed: " + a.Err
					}
					fmt.Printf("  %-18s %q -> %s\n", a.Strategy, a.Query, status)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transactionID, "transaction", "", "transaction ID (required)")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}
