// Package llm implements the AI fallback matcher: a best-effort bridge to
// an external natural-language reasoning service. Only structured
// summaries ever cross this boundary, and every identifier coming back is
// validated before it is trusted.
package llm

import "context"

// CompletionClient is the minimal boundary to the external reasoning
// service. Implementations wrap whatever provider the deployment uses.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DocumentSummary is the reduced document view sent to the reasoning
// service. Raw files never leave the process.
type DocumentSummary struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	Date        string `json:"date"`
	PartnerName string `json:"partner_name,omitempty"`
	Amount      int64  `json:"amount"`
}

// TransactionSummary is the reduced transaction view sent to the
// reasoning service.
type TransactionSummary struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	FreeText     string `json:"free_text"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       int64  `json:"amount"`
}

// PairMatch is one validated document-transaction match returned by the
// reasoning service.
type PairMatch struct {
	DocumentID    string
	TransactionID string
	Reasoning     string
}

// CompanyInfo is the result of a company-identity lookup.
type CompanyInfo struct {
	Name    string
	Website string
	VATID   string
}
