package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/service"
)

// Matcher escalates unmatched document-transaction pairs to the external
// reasoning service. It is strictly best-effort: any failure, timeout or
// garbage response degrades to zero matches.
type Matcher struct {
	client  CompletionClient
	timeout time.Duration
	retry   service.RetryOptions
}

// NewMatcher creates a matcher around a completion client. A nil client
// yields a matcher that always returns no matches.
func NewMatcher(client CompletionClient, timeout time.Duration) *Matcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Matcher{
		client:  client,
		timeout: timeout,
		retry: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: time.Second,
		},
	}
}

// MatchPairs asks the reasoning service for high-confidence matches among
// the remaining unmatched documents and transactions. Returned matches
// reference only identifiers present in the inputs; everything else has
// been dropped.
func (m *Matcher) MatchPairs(ctx context.Context, docs []DocumentSummary, txns []TransactionSummary, note string) []PairMatch {
	if m.client == nil || len(docs) == 0 || len(txns) == 0 {
		return nil
	}

	prompt, err := buildPairPrompt(docs, txns, note)
	if err != nil {
		slog.Warn("Failed to build match prompt", "error", err)
		return nil
	}

	content, err := m.complete(ctx, prompt)
	if err != nil {
		slog.Warn("AI match call failed, continuing without AI matches", "error", err)
		return nil
	}

	docIDs := make(map[string]bool, len(docs))
	for _, d := range docs {
		docIDs[d.ID] = true
	}
	txnIDs := make(map[string]bool, len(txns))
	for _, t := range txns {
		txnIDs[t.ID] = true
	}

	matches := parsePairMatches(content, docIDs, txnIDs)
	slog.Debug("AI match pass complete",
		"documents", len(docs),
		"transactions", len(txns),
		"matches", len(matches))
	return matches
}

// LookupCompany asks the reasoning service to identify the counterparty
// behind a transaction's free text. Returns nil when the service fails or
// does not recognize a real company.
func (m *Matcher) LookupCompany(ctx context.Context, freeText string) *CompanyInfo {
	if m.client == nil || strings.TrimSpace(freeText) == "" {
		return nil
	}

	content, err := m.complete(ctx, buildCompanyPrompt(freeText))
	if err != nil {
		slog.Warn("Company lookup failed", "error", err)
		return nil
	}
	return parseCompany(content)
}

func (m *Matcher) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var content string
	err := common.WithRetry(ctx, func() error {
		var callErr error
		content, callErr = m.client.Complete(ctx, prompt)
		if callErr != nil {
			return &common.ExternalServiceError{Service: "reasoning", Err: callErr}
		}
		return nil
	}, m.retry)
	return content, err
}

func buildPairPrompt(docs []DocumentSummary, txns []TransactionSummary, note string) (string, error) {
	docJSON, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal documents: %w", err)
	}
	txnJSON, err := json.Marshal(txns)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transactions: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are matching invoices to bank transactions. Amounts are integer minor units; ")
	b.WriteString("invoice amounts are positive while transaction amounts may be negative.\n\n")
	if note != "" {
		b.WriteString("Context: ")
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	b.WriteString("Documents:\n")
	b.Write(docJSON)
	b.WriteString("\n\nTransactions:\n")
	b.Write(txnJSON)
	b.WriteString("\n\nReturn ONLY a JSON array of matches you are highly confident about, no prose:\n")
	b.WriteString(`[{"document_id": "...", "transaction_id": "...", "reasoning": "..."}]` + "\n")
	b.WriteString("Return [] if nothing matches confidently.")
	return b.String(), nil
}

func buildCompanyPrompt(freeText string) string {
	var b strings.Builder
	b.WriteString("Identify the company behind this bank transaction description:\n\n")
	b.WriteString(freeText)
	b.WriteString("\n\nReturn ONLY strict JSON, no prose:\n")
	b.WriteString(`{"is_known": true, "name": "...", "website": "...", "vat_id": "..."}` + "\n")
	b.WriteString(`Set "is_known" to false if this is not a recognizable real company.`)
	return b.String()
}
