package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version the application
// expects.
const ExpectedSchemaVersion = 1

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					date DATETIME NOT NULL,
					amount INTEGER NOT NULL,
					currency TEXT NOT NULL DEFAULT 'EUR',
					free_text TEXT,
					counterparty_name TEXT,
					counterparty_iban TEXT,
					reference TEXT,
					partner_id TEXT,
					partner_confidence INTEGER DEFAULT 0,
					partner_match_source TEXT,
					category_id TEXT,
					document_ids TEXT DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_partner ON transactions(partner_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS partners (
					id TEXT PRIMARY KEY,
					type TEXT NOT NULL,
					name TEXT NOT NULL,
					vat_id TEXT,
					website TEXT,
					aliases TEXT DEFAULT '[]',
					ibans TEXT DEFAULT '[]',
					learned_patterns TEXT DEFAULT '[]',
					file_source_patterns TEXT DEFAULT '[]',
					manual_removals TEXT DEFAULT '[]'
				)`,
				`CREATE INDEX idx_partners_name ON partners(name)`,

				`CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					file_name TEXT NOT NULL,
					mime_type TEXT,
					source_type TEXT,
					extracted_amount INTEGER DEFAULT 0,
					extracted_date DATETIME,
					extracted_partner_name TEXT,
					partner_id TEXT,
					transaction_ids TEXT DEFAULT '[]',
					is_not_invoice INTEGER DEFAULT 0
				)`,
				`CREATE INDEX idx_documents_partner ON documents(partner_id)`,
				`CREATE INDEX idx_documents_file_name ON documents(file_name)`,

				`CREATE TABLE IF NOT EXISTS connections (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL,
					document_id TEXT NOT NULL,
					type TEXT NOT NULL,
					match_confidence INTEGER DEFAULT 0,
					match_reasons TEXT DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(transaction_id, document_id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id),
					FOREIGN KEY (document_id) REFERENCES documents(id)
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					learned_patterns TEXT DEFAULT '[]',
					manual_removals TEXT DEFAULT '[]',
					matched_partner_ids TEXT DEFAULT '[]'
				)`,

				`CREATE TABLE IF NOT EXISTS agent_sessions (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL,
					status TEXT NOT NULL,
					iteration INTEGER DEFAULT 0,
					max_iterations INTEGER DEFAULT 3,
					searches_performed TEXT DEFAULT '[]',
					nominated_candidates TEXT DEFAULT '[]',
					files_connected TEXT DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_agent_sessions_transaction ON agent_sessions(transaction_id)`,

				`CREATE TABLE IF NOT EXISTS search_entries (
					id TEXT PRIMARY KEY,
					session_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					attempts TEXT DEFAULT '[]',
					started_at DATETIME,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_search_entries_transaction ON search_entries(transaction_id)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("migration query failed: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		slog.Info("Applying migration", "version", m.Version, "description", m.Description)
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
	}
	return nil
}
