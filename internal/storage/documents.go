package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// SaveDocument inserts or updates a document.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	txnIDs, err := toJSON(doc.TransactionIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, file_name, mime_type, source_type, extracted_amount,
			extracted_date, extracted_partner_name, partner_id,
			transaction_ids, is_not_invoice
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			extracted_amount = excluded.extracted_amount,
			extracted_date = excluded.extracted_date,
			extracted_partner_name = excluded.extracted_partner_name,
			partner_id = excluded.partner_id,
			transaction_ids = excluded.transaction_ids,
			is_not_invoice = excluded.is_not_invoice
	`,
		doc.ID, doc.FileName, doc.MimeType, doc.SourceType,
		doc.ExtractedAmount, doc.ExtractedDate, doc.ExtractedPartnerName,
		nullable(doc.PartnerID), txnIDs, doc.IsNotInvoice,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument loads one document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE id = ?`, id)
	return scanDocument(row)
}

const documentSelect = `
	SELECT id, file_name, COALESCE(mime_type, ''), COALESCE(source_type, ''),
		extracted_amount, COALESCE(extracted_date, '0001-01-01 00:00:00'),
		COALESCE(extracted_partner_name, ''), COALESCE(partner_id, ''),
		COALESCE(transaction_ids, '[]'), is_not_invoice
	FROM documents`

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	var txnIDs string
	err := row.Scan(&d.ID, &d.FileName, &d.MimeType, &d.SourceType,
		&d.ExtractedAmount, &d.ExtractedDate, &d.ExtractedPartnerName,
		&d.PartnerID, &txnIDs, &d.IsNotInvoice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if err := fromJSON(txnIDs, &d.TransactionIDs); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetCandidateDocuments returns the partner's documents eligible for
// matching: not flagged as non-invoices and not yet connected anywhere.
func (s *SQLiteStorage) GetCandidateDocuments(ctx context.Context, partnerID string) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(partnerID, "partnerID"); err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx, `
		WHERE partner_id = ?
		AND is_not_invoice = 0
		AND (transaction_ids IS NULL OR transaction_ids = '[]')
		ORDER BY extracted_date, id`, partnerID)
}

// FindDocumentsByName globs unconnected document filenames.
func (s *SQLiteStorage) FindDocumentsByName(ctx context.Context, glob string) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(glob, "glob"); err != nil {
		return nil, err
	}
	like := strings.ReplaceAll(glob, "*", "%")
	return s.queryDocuments(ctx, `
		WHERE file_name LIKE ?
		AND is_not_invoice = 0
		ORDER BY file_name, id`, like)
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, where string, args ...any) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
