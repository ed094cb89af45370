package model

import "time"

// PartnerType indicates whether a partner is shared across tenants or
// private to the owning user.
type PartnerType string

const (
	// PartnerTypeGlobal is a crowdsourced, read-mostly partner.
	PartnerTypeGlobal PartnerType = "global"
	// PartnerTypePrivate is a user-created partner.
	PartnerTypePrivate PartnerType = "private"
)

// ManualRemovalCap bounds the negative-signal ring buffer per partner.
const ManualRemovalCap = 50

// LearnedPattern is a glob-style text rule learned from past manual
// assignments.
type LearnedPattern struct {
	CreatedAt            time.Time `json:"created_at"`
	Pattern              string    `json:"pattern"`
	SourceTransactionIDs []string  `json:"source_transaction_ids"`
	Confidence           int       `json:"confidence"`
}

// FileSourcePattern matches document filenames from a given source
// (upload, email attachment, download link) to a partner.
type FileSourcePattern struct {
	SourceType string `json:"source_type"`
	Pattern    string `json:"pattern"`
	Confidence int    `json:"confidence"`
	UseCount   int    `json:"use_count"`
}

// ManualRemoval records a transaction the user explicitly unlinked from a
// partner. Used as a negative training signal.
type ManualRemoval struct {
	RemovedAt     time.Time `json:"removed_at"`
	TransactionID string    `json:"transaction_id"`
	FreeText      string    `json:"free_text"`
}

// Partner represents a transaction counterparty.
type Partner struct {
	ID                 string
	Type               PartnerType
	Name               string
	VATID              string
	Website            string
	Aliases            []string
	IBANs              []string
	LearnedPatterns    []LearnedPattern
	FileSourcePatterns []FileSourcePattern
	ManualRemovals     []ManualRemoval
}

// HasIBAN reports whether the partner owns the given IBAN.
func (p *Partner) HasIBAN(iban string) bool {
	for _, i := range p.IBANs {
		if i == iban {
			return true
		}
	}
	return false
}

// RecordRemoval appends a manual removal, evicting the oldest entry once
// the ring buffer reaches ManualRemovalCap.
func (p *Partner) RecordRemoval(r ManualRemoval) {
	p.ManualRemovals = append(p.ManualRemovals, r)
	if len(p.ManualRemovals) > ManualRemovalCap {
		p.ManualRemovals = p.ManualRemovals[len(p.ManualRemovals)-ManualRemovalCap:]
	}
}
