// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// MatchSource indicates which matcher produced a partner resolution.
type MatchSource string

// Match source constants, ordered by matcher priority.
const (
	SourceIBAN           MatchSource = "iban"
	SourcePattern        MatchSource = "pattern"
	SourceVAT            MatchSource = "vat"
	SourceWebsite        MatchSource = "website"
	SourceAlias          MatchSource = "alias"
	SourceFuzzy          MatchSource = "fuzzy"
	SourceAI             MatchSource = "ai"
	SourcePartnerHistory MatchSource = "partner_history"
	SourceManual         MatchSource = "manual"
)

// Transaction represents a single imported financial transaction.
// The imported fields are immutable; only the resolution fields below
// them are ever updated after import.
type Transaction struct {
	Date               time.Time
	ID                 string
	Currency           string
	FreeText           string // Raw bank description
	CounterpartyName   string
	CounterpartyIBAN   string
	Reference          string
	Amount             int64 // Minor units, signed

	// Resolution state.
	PartnerID          string
	PartnerMatchSource MatchSource
	PartnerConfidence  int
	DocumentIDs        []string
	CategoryID         string
}

// IsComplete reports whether the transaction is fully resolved:
// it has a partner and either a document or a no-receipt category.
func (t *Transaction) IsComplete() bool {
	return t.PartnerID != "" && (len(t.DocumentIDs) > 0 || t.CategoryID != "")
}

// SearchText returns the combined free-text fields used for pattern and
// name matching, lowercased.
func (t *Transaction) SearchText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{t.FreeText, t.CounterpartyName, t.Reference} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// HasDocument reports whether the transaction is already connected to the
// given document.
func (t *Transaction) HasDocument(documentID string) bool {
	for _, id := range t.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}
