package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// SaveSession inserts or updates an agent search session.
func (s *SQLiteStorage) SaveSession(ctx context.Context, session *model.AgentSearchSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(session); err != nil {
		return err
	}

	searches, err := toJSON(session.SearchesPerformed)
	if err != nil {
		return err
	}
	nominated, err := toJSON(session.NominatedCandidates)
	if err != nil {
		return err
	}
	files, err := toJSON(session.FilesConnected)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (
			id, transaction_id, status, iteration, max_iterations,
			searches_performed, nominated_candidates, files_connected,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			iteration = excluded.iteration,
			searches_performed = excluded.searches_performed,
			nominated_candidates = excluded.nominated_candidates,
			files_connected = excluded.files_connected,
			updated_at = excluded.updated_at
	`, session.ID, session.TransactionID, string(session.Status),
		session.Iteration, session.MaxIterations, searches, nominated,
		files, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

const sessionSelect = `
	SELECT id, transaction_id, status, iteration, max_iterations,
		COALESCE(searches_performed, '[]'), COALESCE(nominated_candidates, '[]'),
		COALESCE(files_connected, '[]'), created_at, updated_at
	FROM agent_sessions`

// GetSession loads one session by ID.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.AgentSearchSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return scanSession(s.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id))
}

// GetActiveSession returns the transaction's active session, or nil when
// none exists.
func (s *SQLiteStorage) GetActiveSession(ctx context.Context, transactionID string) (*model.AgentSearchSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	session, err := scanSession(s.db.QueryRowContext(ctx,
		sessionSelect+` WHERE transaction_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		transactionID, string(model.SessionActive)))
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

func scanSession(row rowScanner) (*model.AgentSearchSession, error) {
	var sess model.AgentSearchSession
	var status, searches, nominated, files string
	err := row.Scan(&sess.ID, &sess.TransactionID, &status, &sess.Iteration,
		&sess.MaxIterations, &searches, &nominated, &files,
		&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.Status = model.SessionStatus(status)
	for _, col := range []struct {
		dest any
		raw  string
	}{
		{&sess.SearchesPerformed, searches},
		{&sess.NominatedCandidates, nominated},
		{&sess.FilesConnected, files},
	} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}

// SaveSearchEntry appends an audit record. Entries are never updated.
func (s *SQLiteStorage) SaveSearchEntry(ctx context.Context, entry *model.SearchEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil || entry.ID == "" {
		return common.NewValidationError("entry.id", "must not be empty")
	}

	attempts, err := toJSON(entry.Attempts)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_entries (id, session_id, transaction_id, attempts, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.SessionID, entry.TransactionID, attempts,
		entry.StartedAt, entry.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save search entry: %w", err)
	}
	return nil
}

// GetSearchEntries returns all audit records for a transaction.
func (s *SQLiteStorage) GetSearchEntries(ctx context.Context, transactionID string) ([]model.SearchEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, transaction_id, COALESCE(attempts, '[]'), started_at, completed_at
		FROM search_entries WHERE transaction_id = ? ORDER BY started_at, id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SearchEntry
	for rows.Next() {
		var e model.SearchEntry
		var attempts string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TransactionID, &attempts,
			&e.StartedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search entry: %w", err)
		}
		if err := fromJSON(attempts, &e.Attempts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
