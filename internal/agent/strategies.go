// Package agent implements the bounded agentic search workflow that
// widens the hunt for a missing document across local files and email
// when automated matching finds nothing.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/service"
)

// Strategy type identifiers, in widening order.
const (
	StrategyLocalFiles      = "local_files"
	StrategyEmailAttachment = "email_attachment"
	StrategyEmailLink       = "email_link"
)

// Candidate is the uniform shape of one search hit, regardless of which
// provider produced it.
type Candidate struct {
	Provider string
	SourceID string
	FileName string
}

// Strategy is one precision-search source.
type Strategy interface {
	Type() string
	Search(ctx context.Context, txn model.Transaction) ([]Candidate, error)
}

// EmailMessage is a provider hit carrying an attachment.
type EmailMessage struct {
	SentAt       time.Time
	MessageID    string
	AttachmentID string
	FileName     string
	Subject      string
}

// EmailLink is an invoice-download link extracted from an email body.
type EmailLink struct {
	MessageID   string
	URL         string
	Description string
}

// EmailProvider is the boundary to a mailbox search service.
type EmailProvider interface {
	SearchAttachments(ctx context.Context, query string) ([]EmailMessage, error)
	SearchInvoiceLinks(ctx context.Context, query string) ([]EmailLink, error)
}

// buildQuery derives the provider-facing search query from a transaction.
func buildQuery(txn model.Transaction) string {
	parts := make([]string, 0, 3)
	if txn.CounterpartyName != "" {
		parts = append(parts, txn.CounterpartyName)
	} else if txn.FreeText != "" {
		parts = append(parts, txn.FreeText)
	}
	amount := txn.Amount
	if amount < 0 {
		amount = -amount
	}
	parts = append(parts, fmt.Sprintf("%d.%02d", amount/100, amount%100))
	if !txn.Date.IsZero() {
		parts = append(parts, txn.Date.Format("2006-01"))
	}
	return strings.Join(parts, " ")
}

// LocalFileStrategy searches already-uploaded documents by filename glob.
type LocalFileStrategy struct {
	Storage service.Storage
}

// Type implements Strategy.
func (s *LocalFileStrategy) Type() string { return StrategyLocalFiles }

// Search implements Strategy. It globs unconnected document filenames for
// the counterparty tokens.
func (s *LocalFileStrategy) Search(ctx context.Context, txn model.Transaction) ([]Candidate, error) {
	name := txn.CounterpartyName
	if name == "" {
		name = txn.FreeText
	}
	tokens := strings.Fields(strings.ToLower(name))
	if len(tokens) == 0 {
		return nil, nil
	}

	docs, err := s.Storage.FindDocumentsByName(ctx, "*"+tokens[0]+"*")
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(docs))
	for _, d := range docs {
		if !d.IsCandidate() {
			continue
		}
		out = append(out, Candidate{
			Provider: StrategyLocalFiles,
			SourceID: d.ID,
			FileName: d.FileName,
		})
	}
	return out, nil
}

// EmailAttachmentStrategy searches mailbox attachments.
type EmailAttachmentStrategy struct {
	Provider EmailProvider
}

// Type implements Strategy.
func (s *EmailAttachmentStrategy) Type() string { return StrategyEmailAttachment }

// Search implements Strategy.
func (s *EmailAttachmentStrategy) Search(ctx context.Context, txn model.Transaction) ([]Candidate, error) {
	msgs, err := s.Provider.SearchAttachments(ctx, buildQuery(txn))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Candidate{
			Provider: StrategyEmailAttachment,
			SourceID: m.MessageID + "/" + m.AttachmentID,
			FileName: m.FileName,
		})
	}
	return out, nil
}

// EmailLinkStrategy extracts invoice-download links from email bodies.
type EmailLinkStrategy struct {
	Provider EmailProvider
}

// Type implements Strategy.
func (s *EmailLinkStrategy) Type() string { return StrategyEmailLink }

// Search implements Strategy.
func (s *EmailLinkStrategy) Search(ctx context.Context, txn model.Transaction) ([]Candidate, error) {
	links, err := s.Provider.SearchInvoiceLinks(ctx, buildQuery(txn))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(links))
	for _, l := range links {
		out = append(out, Candidate{
			Provider: StrategyEmailLink,
			SourceID: l.MessageID,
			FileName: l.URL,
		})
	}
	return out, nil
}
