package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Database schema is up to date")
			return nil
		},
	}
}
