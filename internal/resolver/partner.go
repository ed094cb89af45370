// Package resolver implements the ordered matcher cascades that attach
// partners and no-receipt categories to imported transactions.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/llm"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/pattern"
	"github.com/beleghq/beleg/internal/service"
)

// maxSuggestions caps the candidates surfaced for human review.
const maxSuggestions = 3

// Candidate is one partner match produced by the cascade.
type Candidate struct {
	PartnerID   string
	PartnerType model.PartnerType
	Source      model.MatchSource
	Confidence  int

	// patternIdx points at the winning learned pattern for
	// pattern-sourced candidates, -1 otherwise.
	patternIdx int
}

// Result is the outcome of one resolution run.
type Result struct {
	BestMatch   *Candidate
	Suggestions []Candidate
}

// PartnerResolver runs the ordered matcher cascade against a transaction.
type PartnerResolver struct {
	storage service.Storage
	ai      *llm.Matcher
	cfg     config.Thresholds
}

// NewPartnerResolver creates a resolver. The AI matcher may be nil, in
// which case the company-lookup stage is skipped.
func NewPartnerResolver(storage service.Storage, ai *llm.Matcher, cfg config.Thresholds) *PartnerResolver {
	return &PartnerResolver{storage: storage, ai: ai, cfg: cfg}
}

// Resolve runs matchers in fixed priority order. The best match is the
// first candidate reaching the auto-apply threshold; lower-confidence
// hits from every matcher are still collected as suggestions. Only the
// final AI stage has side effects (it may create a private partner).
func (r *PartnerResolver) Resolve(ctx context.Context, txn model.Transaction, partners []model.Partner) (Result, error) {
	if txn.ID == "" {
		return Result{}, common.NewValidationError("transaction.id", "must not be empty")
	}

	text := txn.SearchText()
	var candidates []Candidate

	stages := []func(model.Transaction, string, []model.Partner) []Candidate{
		matchIBAN,
		matchLearnedPatterns,
		matchVAT,
		matchWebsite,
		matchAliases,
		matchFuzzyName,
	}
	for _, stage := range stages {
		candidates = append(candidates, stage(txn, text, partners)...)
	}

	var best *Candidate
	for i := range candidates {
		if candidates[i].Confidence >= r.cfg.PartnerAutoApply {
			best = &candidates[i]
			break
		}
	}

	if best == nil && len(candidates) == 0 {
		if c, err := r.lookupCompany(ctx, txn); err != nil {
			return Result{}, err
		} else if c != nil {
			best = c
		}
	}

	return Result{BestMatch: best, Suggestions: suggest(candidates, best)}, nil
}

// suggest returns the top candidates by confidence, ties broken by
// matcher priority order, excluding the winning partner.
func suggest(candidates []Candidate, best *Candidate) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	seen := make(map[string]bool)
	// Stable sort keeps stage order for equal confidence.
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	for _, c := range sorted {
		if best != nil && c.PartnerID == best.PartnerID {
			continue
		}
		if seen[c.PartnerID] {
			continue
		}
		seen[c.PartnerID] = true
		ranked = append(ranked, c)
		if len(ranked) == maxSuggestions {
			break
		}
	}
	return ranked
}

// lookupCompany is the last-resort stage: ask the reasoning service to
// identify the counterparty and seed a private partner from the result.
func (r *PartnerResolver) lookupCompany(ctx context.Context, txn model.Transaction) (*Candidate, error) {
	if r.ai == nil || !resemblesCompanyName(txn.SearchText()) {
		return nil, nil
	}

	info := r.ai.LookupCompany(ctx, txn.SearchText())
	if info == nil {
		return nil, nil
	}

	partner := &model.Partner{
		ID:      uuid.NewString(),
		Type:    model.PartnerTypePrivate,
		Name:    info.Name,
		Website: info.Website,
		VATID:   info.VATID,
	}
	if err := r.storage.SavePartner(ctx, partner); err != nil {
		return nil, fmt.Errorf("failed to save AI-created partner: %w", err)
	}

	slog.Info("Created partner from company lookup",
		"partner", partner.Name,
		"transaction", txn.ID)

	// Fixed just at the auto-apply floor: applied, but marked as the
	// least certain automated source.
	return &Candidate{
		PartnerID:   partner.ID,
		PartnerType: partner.Type,
		Source:      model.SourceAI,
		Confidence:  r.cfg.PartnerAutoApply,
		patternIdx:  -1,
	}, nil
}

// Apply persists an auto-apply resolution onto the transaction and closes
// the learning loop for pattern-shaped sources.
func (r *PartnerResolver) Apply(ctx context.Context, txn *model.Transaction, res Result) error {
	best := res.BestMatch
	if best == nil || best.Confidence < r.cfg.PartnerAutoApply {
		return nil
	}

	if err := r.storage.UpdateTransactionPartner(ctx, txn.ID, best.PartnerID, best.Confidence, best.Source); err != nil {
		return fmt.Errorf("failed to update transaction partner: %w", err)
	}
	txn.PartnerID = best.PartnerID
	txn.PartnerConfidence = best.Confidence
	txn.PartnerMatchSource = best.Source

	switch best.Source {
	case model.SourcePattern, model.SourceAlias, model.SourceFuzzy:
		return r.recordLearning(ctx, txn, best)
	}
	return nil
}

func (r *PartnerResolver) recordLearning(ctx context.Context, txn *model.Transaction, best *Candidate) error {
	partner, err := r.storage.GetPartner(ctx, best.PartnerID)
	if err != nil {
		return fmt.Errorf("failed to load partner for learning: %w", err)
	}

	if best.Source == model.SourcePattern && best.patternIdx >= 0 && best.patternIdx < len(partner.LearnedPatterns) {
		pattern.RecordUsage(&partner.LearnedPatterns[best.patternIdx], txn.ID)
	} else {
		partner.LearnedPatterns = pattern.Learn(partner.LearnedPatterns, pattern.Derive(txn.FreeText), txn.ID, time.Now())
	}

	return r.storage.SavePartner(ctx, partner)
}

// RecordCorrection applies a manual partner assignment. The correction
// always wins over automated confidence, teaches the new partner a
// pattern, and records a negative signal on any displaced automated
// partner.
func (r *PartnerResolver) RecordCorrection(ctx context.Context, transactionID, partnerID string) error {
	txn, err := r.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	newPartner, err := r.storage.GetPartner(ctx, partnerID)
	if err != nil {
		return err
	}

	if txn.PartnerID != "" && txn.PartnerID != partnerID && txn.PartnerMatchSource != model.SourceManual {
		if old, getErr := r.storage.GetPartner(ctx, txn.PartnerID); getErr == nil {
			old.RecordRemoval(model.ManualRemoval{
				TransactionID: txn.ID,
				FreeText:      txn.SearchText(),
				RemovedAt:     time.Now(),
			})
			if saveErr := r.storage.SavePartner(ctx, old); saveErr != nil {
				slog.Warn("Failed to save removal signal", "partner", old.ID, "error", saveErr)
			}
		}
	}

	newPartner.LearnedPatterns = pattern.Learn(newPartner.LearnedPatterns, pattern.Derive(txn.FreeText), txn.ID, time.Now())
	if err := r.storage.SavePartner(ctx, newPartner); err != nil {
		return fmt.Errorf("failed to save corrected partner: %w", err)
	}

	return r.storage.UpdateTransactionPartner(ctx, txn.ID, partnerID, 100, model.SourceManual)
}
