package llm

import (
	"encoding/json"
	"strings"
)

// extractJSON strips markdown code fences and surrounding prose from a
// model response, returning the innermost JSON payload. Models regularly
// wrap JSON in ```json fences despite instructions not to.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		content = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(content, "[{")
	if start < 0 {
		return ""
	}
	var end int
	if content[start] == '[' {
		end = strings.LastIndexByte(content, ']')
	} else {
		end = strings.LastIndexByte(content, '}')
	}
	if end <= start {
		return ""
	}
	return content[start : end+1]
}

type pairMatchJSON struct {
	DocumentID    string `json:"document_id"`
	TransactionID string `json:"transaction_id"`
	Reasoning     string `json:"reasoning"`
}

// parsePairMatches decodes a response strictly and keeps only matches
// whose identifiers exist in the input sets. Malformed or unknown entries
// are dropped, never surfaced as errors.
func parsePairMatches(content string, docIDs, txnIDs map[string]bool) []PairMatch {
	payload := extractJSON(content)
	if payload == "" {
		return nil
	}

	var raw []pairMatchJSON
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		// Some models wrap the array in an envelope object.
		var envelope struct {
			Matches []pairMatchJSON `json:"matches"`
		}
		dec = json.NewDecoder(strings.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&envelope); err != nil {
			return nil
		}
		raw = envelope.Matches
	}

	seenDoc := make(map[string]bool)
	seenTxn := make(map[string]bool)
	var matches []PairMatch
	for _, m := range raw {
		if !docIDs[m.DocumentID] || !txnIDs[m.TransactionID] {
			continue
		}
		if seenDoc[m.DocumentID] || seenTxn[m.TransactionID] {
			continue
		}
		seenDoc[m.DocumentID] = true
		seenTxn[m.TransactionID] = true
		matches = append(matches, PairMatch{
			DocumentID:    m.DocumentID,
			TransactionID: m.TransactionID,
			Reasoning:     m.Reasoning,
		})
	}
	return matches
}

type companyJSON struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	VATID   string `json:"vat_id"`
	IsKnown bool   `json:"is_known"`
}

// parseCompany decodes a company-lookup response. Returns nil when the
// model could not identify a real company.
func parseCompany(content string) *CompanyInfo {
	payload := extractJSON(content)
	if payload == "" {
		return nil
	}

	var raw companyJSON
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	if !raw.IsKnown || raw.Name == "" {
		return nil
	}
	return &CompanyInfo{Name: raw.Name, Website: raw.Website, VATID: raw.VATID}
}
