package storage

import (
	"context"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return common.NewValidationError("ctx", "must not be nil")
	}
	return nil
}

func validateString(s, paramName string) error {
	if s == "" {
		return common.NewValidationError(paramName, "must not be empty")
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return common.NewValidationError("transaction", "must not be nil")
	}
	if txn.ID == "" {
		return common.NewValidationError("transaction.id", "must not be empty")
	}
	if txn.Date.IsZero() {
		return common.NewValidationError("transaction.date", "must not be zero")
	}
	return nil
}

func validatePartner(partner *model.Partner) error {
	if partner == nil {
		return common.NewValidationError("partner", "must not be nil")
	}
	if partner.ID == "" {
		return common.NewValidationError("partner.id", "must not be empty")
	}
	if partner.Name == "" {
		return common.NewValidationError("partner.name", "must not be empty")
	}
	for _, lp := range partner.LearnedPatterns {
		if lp.Confidence < 0 || lp.Confidence > 100 {
			return common.NewValidationError("partner.learned_patterns", "confidence out of range")
		}
	}
	if len(partner.ManualRemovals) > model.ManualRemovalCap {
		return common.NewValidationError("partner.manual_removals", "exceeds cap")
	}
	return nil
}

func validateDocument(doc *model.Document) error {
	if doc == nil {
		return common.NewValidationError("document", "must not be nil")
	}
	if doc.ID == "" {
		return common.NewValidationError("document.id", "must not be empty")
	}
	if doc.FileName == "" {
		return common.NewValidationError("document.file_name", "must not be empty")
	}
	return nil
}

func validateConnection(conn *model.Connection) error {
	if conn == nil {
		return common.NewValidationError("connection", "must not be nil")
	}
	if conn.ID == "" {
		return common.NewValidationError("connection.id", "must not be empty")
	}
	if conn.TransactionID == "" {
		return common.NewValidationError("connection.transaction_id", "must not be empty")
	}
	if conn.DocumentID == "" {
		return common.NewValidationError("connection.document_id", "must not be empty")
	}
	switch conn.Type {
	case model.ConnectionManual, model.ConnectionAutoMatched, model.ConnectionAIMatched:
	default:
		return common.NewValidationError("connection.type", "unknown connection type")
	}
	return nil
}

func validateCategory(category *model.Category) error {
	if category == nil {
		return common.NewValidationError("category", "must not be nil")
	}
	if category.ID == "" {
		return common.NewValidationError("category.id", "must not be empty")
	}
	if category.Name == "" {
		return common.NewValidationError("category.name", "must not be empty")
	}
	return nil
}

func validateSession(session *model.AgentSearchSession) error {
	if session == nil {
		return common.NewValidationError("session", "must not be nil")
	}
	if session.ID == "" {
		return common.NewValidationError("session.id", "must not be empty")
	}
	if session.TransactionID == "" {
		return common.NewValidationError("session.transaction_id", "must not be empty")
	}
	return nil
}
