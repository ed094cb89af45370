// Package match implements the document-to-transaction scorer and the
// greedy assignment engine that turns scores into connections.
package match

import (
	"math"
	"time"

	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/pattern"
)

// Band ceilings. Each band is capped individually; the total can never
// exceed 100.
const (
	amountBandMax  = 40
	dateBandMax    = 25
	partnerBand    = 20
	sourceBand     = 10
	receiptBand    = 5
)

// Score is the result of scoring one document against one transaction.
type Score struct {
	Reasons []string
	Total   int
}

// ScoreDocument computes the additive compatibility score between a
// candidate document and a transaction. Purely deterministic; partner may
// be nil when no partner context is available.
func ScoreDocument(doc model.Document, txn model.Transaction, partner *model.Partner) Score {
	var s Score

	if pts, reason := amountBand(doc, txn); pts > 0 {
		s.Total += pts
		s.Reasons = append(s.Reasons, reason)
	}
	if pts, reason := dateBand(doc, txn); pts > 0 {
		s.Total += pts
		s.Reasons = append(s.Reasons, reason)
	}
	if doc.PartnerID != "" && doc.PartnerID == txn.PartnerID {
		s.Total += partnerBand
		s.Reasons = append(s.Reasons, "same_partner")
	}
	if partner != nil && pattern.MatchFileSource(partner.FileSourcePatterns, doc.FileName) >= 0 {
		s.Total += sourceBand
		s.Reasons = append(s.Reasons, "file_source_pattern")
	}
	if doc.LikelyReceipt() {
		s.Total += receiptBand
		s.Reasons = append(s.Reasons, "likely_receipt")
	}

	return s
}

// amountBand scores amount proximity on relative error. Transaction
// amounts are signed; extracted invoice amounts are positive, so both
// sides compare by magnitude.
func amountBand(doc model.Document, txn model.Transaction) (int, string) {
	if doc.ExtractedAmount == 0 || txn.Amount == 0 {
		return 0, ""
	}
	txnAbs := txn.Amount
	if txnAbs < 0 {
		txnAbs = -txnAbs
	}
	docAbs := doc.ExtractedAmount
	if docAbs < 0 {
		docAbs = -docAbs
	}
	if txnAbs == docAbs {
		return amountBandMax, "amount_exact"
	}
	diff := math.Abs(float64(txnAbs-docAbs)) / float64(txnAbs)
	switch {
	case diff <= 0.01:
		return 38, "amount_within_1pct"
	case diff <= 0.05:
		return 30, "amount_within_5pct"
	case diff <= 0.10:
		return 20, "amount_within_10pct"
	}
	return 0, ""
}

// dateBand scores calendar-day distance, symmetric in either direction.
func dateBand(doc model.Document, txn model.Transaction) (int, string) {
	if doc.ExtractedDate.IsZero() || txn.Date.IsZero() {
		return 0, ""
	}
	d := doc.ExtractedDate.Truncate(24 * time.Hour)
	t := txn.Date.Truncate(24 * time.Hour)
	days := int(math.Abs(d.Sub(t).Hours()) / 24)
	switch {
	case days == 0:
		return dateBandMax, "date_same_day"
	case days <= 3:
		return 22, "date_within_3_days"
	case days <= 7:
		return 15, "date_within_7_days"
	case days <= 14:
		return 8, "date_within_14_days"
	case days <= 30:
		return 3, "date_within_30_days"
	}
	return 0, ""
}
