package model

import (
	"strings"
	"time"
)

// Document represents an uploaded or fetched receipt/invoice with fields
// extracted by the external extraction service.
type Document struct {
	ExtractedDate        time.Time
	ID                   string
	FileName             string
	MimeType             string
	SourceType           string // upload, email_attachment, email_link
	ExtractedPartnerName string
	PartnerID            string
	TransactionIDs       []string
	ExtractedAmount      int64 // Minor units, always positive
	IsNotInvoice         bool
}

// IsCandidate reports whether the document may participate in matching.
// Documents flagged not-an-invoice or already connected anywhere are
// excluded up front.
func (d *Document) IsCandidate() bool {
	return !d.IsNotInvoice && len(d.TransactionIDs) == 0
}

// LikelyReceipt reports whether the mime type suggests a scanned or
// exported receipt.
func (d *Document) LikelyReceipt() bool {
	return d.MimeType == "application/pdf" || strings.HasPrefix(d.MimeType, "image/")
}

// HasTransaction reports whether the document is already connected to the
// given transaction.
func (d *Document) HasTransaction(transactionID string) bool {
	for _, id := range d.TransactionIDs {
		if id == transactionID {
			return true
		}
	}
	return false
}
