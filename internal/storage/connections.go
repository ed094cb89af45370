package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// Connect creates a transaction-document edge as a single unit of work:
// the connection row and both ID sets commit together or not at all, so
// referential symmetry holds structurally. Connecting an existing pair
// returns ErrDuplicateEntry without touching either side.
func (s *SQLiteStorage) Connect(ctx context.Context, conn *model.Connection) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateConnection(conn); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.connectTx(ctx, tx, conn)
	})
}

func (s *SQLiteStorage) connectTx(ctx context.Context, tx *sql.Tx, conn *model.Connection) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM connections WHERE transaction_id = ? AND document_id = ?)
	`, conn.TransactionID, conn.DocumentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing connection: %w", err)
	}
	if exists {
		return common.ErrDuplicateEntry
	}

	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	reasons, err := toJSON(conn.MatchReasons)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO connections (id, transaction_id, document_id, type, match_confidence, match_reasons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conn.ID, conn.TransactionID, conn.DocumentID, string(conn.Type),
		conn.MatchConfidence, reasons, conn.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}

	if err := appendIDTx(ctx, tx,
		"transactions", "document_ids", conn.TransactionID, conn.DocumentID); err != nil {
		return err
	}
	return appendIDTx(ctx, tx,
		"documents", "transaction_ids", conn.DocumentID, conn.TransactionID)
}

// appendIDTx adds value to the JSON ID set column of one row.
func appendIDTx(ctx context.Context, tx *sql.Tx, table, column, rowID, value string) error {
	var raw string
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(%s, '[]') FROM %s WHERE id = ?`, column, table),
		rowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}

	var ids []string
	if err := fromJSON(raw, &ids); err != nil {
		return err
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	updated, err := toJSON(ids)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, table, column), updated, rowID)
	if err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", table, column, err)
	}
	return nil
}

// removeIDTx removes value from the JSON ID set column of one row.
func removeIDTx(ctx context.Context, tx *sql.Tx, table, column, rowID, value string) error {
	var raw string
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(%s, '[]') FROM %s WHERE id = ?`, column, table),
		rowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}

	var ids []string
	if err := fromJSON(raw, &ids); err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != value {
			kept = append(kept, id)
		}
	}
	updated, err := toJSON(kept)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, table, column), updated, rowID)
	if err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", table, column, err)
	}
	return nil
}

// ConnectBatch persists connections in chunks. Each chunk commits
// atomically; a chunk failure leaves prior chunks committed and reports
// the processed count through PartialBatchError. Duplicate pairs inside
// a batch are skipped, not failed.
func (s *SQLiteStorage) ConnectBatch(ctx context.Context, conns []model.Connection, chunkSize int) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if chunkSize <= 0 {
		chunkSize = 25
	}

	processed := 0
	for start := 0; start < len(conns); start += chunkSize {
		end := start + chunkSize
		if end > len(conns) {
			end = len(conns)
		}
		chunk := conns[start:end]

		applied := 0
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			for i := range chunk {
				if err := validateConnection(&chunk[i]); err != nil {
					return err
				}
				err := s.connectTx(ctx, tx, &chunk[i])
				if errors.Is(err, common.ErrDuplicateEntry) {
					continue
				}
				if err != nil {
					return err
				}
				applied++
			}
			return nil
		})
		if err != nil {
			return processed, &common.PartialBatchError{Processed: processed, Err: err}
		}
		processed += applied
	}
	return processed, nil
}

// Disconnect removes an edge, again as one unit of work. The removal is
// symmetric by construction.
func (s *SQLiteStorage) Disconnect(ctx context.Context, transactionID, documentID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM connections WHERE transaction_id = ? AND document_id = ?
		`, transactionID, documentID)
		if err != nil {
			return fmt.Errorf("failed to delete connection: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrNotFound
		}

		if err := removeIDTx(ctx, tx, "transactions", "document_ids", transactionID, documentID); err != nil {
			return err
		}
		return removeIDTx(ctx, tx, "documents", "transaction_ids", documentID, transactionID)
	})
}

// GetConnections returns all connections of one transaction.
func (s *SQLiteStorage) GetConnections(ctx context.Context, transactionID string) ([]model.Connection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, document_id, type, match_confidence,
			COALESCE(match_reasons, '[]'), created_at
		FROM connections WHERE transaction_id = ? ORDER BY created_at, id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Connection
	for rows.Next() {
		var c model.Connection
		var cType, reasons string
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.DocumentID, &cType,
			&c.MatchConfidence, &reasons, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		c.Type = model.ConnectionType(cType)
		if err := fromJSON(reasons, &c.MatchReasons); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
