package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/pattern"
	"github.com/beleghq/beleg/internal/service"
)

// confidencePartnerHistory applies when the transaction's partner was
// previously mapped to the category.
const confidencePartnerHistory = 90

// CategoryCandidate is one no-receipt category match.
type CategoryCandidate struct {
	CategoryID string
	Source     model.MatchSource
	Confidence int
	patternIdx int
}

// CategoryResult is the outcome of one categorization run.
type CategoryResult struct {
	BestMatch   *CategoryCandidate
	Suggestions []CategoryCandidate
}

// CategoryResolver mirrors the partner cascade for no-receipt categories.
// There is no AI fallback tier: an unmatched transaction simply stays
// uncategorized.
type CategoryResolver struct {
	storage service.Storage
	cfg     config.Thresholds
}

// NewCategoryResolver creates a category resolver.
func NewCategoryResolver(storage service.Storage, cfg config.Thresholds) *CategoryResolver {
	return &CategoryResolver{storage: storage, cfg: cfg}
}

// Resolve runs the pattern stage and then the partner-history stage.
func (r *CategoryResolver) Resolve(_ context.Context, txn model.Transaction, categories []model.Category) (CategoryResult, error) {
	if txn.ID == "" {
		return CategoryResult{}, common.NewValidationError("transaction.id", "must not be empty")
	}

	text := txn.SearchText()
	var candidates []CategoryCandidate

	for i := range categories {
		c := &categories[i]
		if idx, conf := pattern.BestMatch(c.LearnedPatterns, c.ManualRemovals, text); idx >= 0 {
			candidates = append(candidates, CategoryCandidate{
				CategoryID: c.ID,
				Source:     model.SourcePattern,
				Confidence: conf,
				patternIdx: idx,
			})
		}
	}

	if txn.PartnerID != "" {
		for i := range categories {
			if categories[i].HasPartner(txn.PartnerID) {
				candidates = append(candidates, CategoryCandidate{
					CategoryID: categories[i].ID,
					Source:     model.SourcePartnerHistory,
					Confidence: confidencePartnerHistory,
					patternIdx: -1,
				})
			}
		}
	}

	var best *CategoryCandidate
	for i := range candidates {
		if candidates[i].Confidence >= r.cfg.PartnerAutoApply {
			best = &candidates[i]
			break
		}
	}

	var suggestions []CategoryCandidate
	sorted := make([]CategoryCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	seen := make(map[string]bool)
	for _, c := range sorted {
		if c.Confidence < r.cfg.CategorySuggestion {
			continue
		}
		if best != nil && c.CategoryID == best.CategoryID {
			continue
		}
		if seen[c.CategoryID] {
			continue
		}
		seen[c.CategoryID] = true
		suggestions = append(suggestions, c)
		if len(suggestions) == maxSuggestions {
			break
		}
	}

	return CategoryResult{BestMatch: best, Suggestions: suggestions}, nil
}

// Apply persists an auto-apply categorization.
func (r *CategoryResolver) Apply(ctx context.Context, txn *model.Transaction, res CategoryResult) error {
	best := res.BestMatch
	if best == nil || best.Confidence < r.cfg.PartnerAutoApply {
		return nil
	}
	if err := r.storage.UpdateTransactionCategory(ctx, txn.ID, best.CategoryID, best.Confidence); err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	txn.CategoryID = best.CategoryID
	return nil
}

// RecordCorrection applies a manual category assignment, teaching the new
// category a pattern and the partner-history mapping, and recording a
// negative signal on any displaced category.
func (r *CategoryResolver) RecordCorrection(ctx context.Context, transactionID, categoryID string) error {
	txn, err := r.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	category, err := r.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}

	if txn.CategoryID != "" && txn.CategoryID != categoryID {
		if old, getErr := r.storage.GetCategory(ctx, txn.CategoryID); getErr == nil {
			old.RecordRemoval(model.ManualRemoval{
				TransactionID: txn.ID,
				FreeText:      txn.SearchText(),
				RemovedAt:     time.Now(),
			})
			if saveErr := r.storage.SaveCategory(ctx, old); saveErr != nil {
				slog.Warn("Failed to save removal signal", "category", old.ID, "error", saveErr)
			}
		}
	}

	category.LearnedPatterns = pattern.Learn(category.LearnedPatterns, pattern.Derive(txn.FreeText), txn.ID, time.Now())
	if txn.PartnerID != "" && !category.HasPartner(txn.PartnerID) {
		category.MatchedPartnerIDs = append(category.MatchedPartnerIDs, txn.PartnerID)
	}
	if err := r.storage.SaveCategory(ctx, category); err != nil {
		return fmt.Errorf("failed to save corrected category: %w", err)
	}

	return r.storage.UpdateTransactionCategory(ctx, txn.ID, categoryID, 100)
}
