package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// SaveTransaction inserts or updates a transaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	docIDs, err := toJSON(txn.DocumentIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, date, amount, currency, free_text, counterparty_name,
			counterparty_iban, reference, partner_id, partner_confidence,
			partner_match_source, category_id, document_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_id = excluded.partner_id,
			partner_confidence = excluded.partner_confidence,
			partner_match_source = excluded.partner_match_source,
			category_id = excluded.category_id,
			document_ids = excluded.document_ids
	`,
		txn.ID, txn.Date, txn.Amount, txn.Currency, txn.FreeText,
		txn.CounterpartyName, txn.CounterpartyIBAN, txn.Reference,
		nullable(txn.PartnerID), txn.PartnerConfidence,
		nullable(string(txn.PartnerMatchSource)), nullable(txn.CategoryID), docIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetTransaction loads one transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, amount, currency, COALESCE(free_text, ''),
			COALESCE(counterparty_name, ''), COALESCE(counterparty_iban, ''),
			COALESCE(reference, ''), COALESCE(partner_id, ''),
			partner_confidence, COALESCE(partner_match_source, ''),
			COALESCE(category_id, ''), COALESCE(document_ids, '[]')
		FROM transactions WHERE id = ?
	`, id)
	return scanTransaction(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var source, docIDs string
	err := row.Scan(
		&txn.ID, &txn.Date, &txn.Amount, &txn.Currency, &txn.FreeText,
		&txn.CounterpartyName, &txn.CounterpartyIBAN, &txn.Reference,
		&txn.PartnerID, &txn.PartnerConfidence, &source,
		&txn.CategoryID, &docIDs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.PartnerMatchSource = model.MatchSource(source)
	if err := fromJSON(docIDs, &txn.DocumentIDs); err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetUnresolvedTransactions returns transactions without a partner.
func (s *SQLiteStorage) GetUnresolvedTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		WHERE partner_id IS NULL OR partner_id = ''
		ORDER BY date, id`)
}

// GetUnfiledTransactions returns the partner's transactions lacking both
// a document connection and a category assignment.
func (s *SQLiteStorage) GetUnfiledTransactions(ctx context.Context, partnerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		WHERE partner_id = ?
		AND (document_ids IS NULL OR document_ids = '[]')
		AND (category_id IS NULL OR category_id = '')
		ORDER BY date, id`, partnerID)
}

// GetUncategorizedTransactions returns transactions lacking both a
// document connection and a category, regardless of partner state.
func (s *SQLiteStorage) GetUncategorizedTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		WHERE (document_ids IS NULL OR document_ids = '[]')
		AND (category_id IS NULL OR category_id = '')
		ORDER BY date, id`)
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, where string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, amount, currency, COALESCE(free_text, ''),
			COALESCE(counterparty_name, ''), COALESCE(counterparty_iban, ''),
			COALESCE(reference, ''), COALESCE(partner_id, ''),
			partner_confidence, COALESCE(partner_match_source, ''),
			COALESCE(category_id, ''), COALESCE(document_ids, '[]')
		FROM transactions `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	return out, rows.Err()
}

// UpdateTransactionPartner sets the partner resolution fields.
// Last-writer-wins: a manual correction landing after an automated match
// simply overwrites it.
func (s *SQLiteStorage) UpdateTransactionPartner(ctx context.Context, id, partnerID string, confidence int, source model.MatchSource) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET partner_id = ?, partner_confidence = ?, partner_match_source = ?
		WHERE id = ?
	`, partnerID, confidence, string(source), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction partner: %w", err)
	}
	return requireRow(res)
}

// UpdateTransactionCategory sets the category resolution fields.
func (s *SQLiteStorage) UpdateTransactionCategory(ctx context.Context, id, categoryID string, _ int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET category_id = ? WHERE id = ?
	`, categoryID, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
