package pattern

import (
	"time"

	"github.com/beleghq/beleg/internal/model"
)

// Confidence bounds for learned patterns.
const (
	learnedConfidence = 80
	minConfidence     = 50
	maxConfidence     = 100

	// removalPenalty is subtracted per manual removal whose text the
	// pattern still matches.
	removalPenalty = 15
)

// Learn appends a pattern learned from a corrected transaction. If the
// identical pattern already exists, the transaction is recorded as a
// usage and the confidence nudged up instead.
func Learn(patterns []model.LearnedPattern, glob, transactionID string, now time.Time) []model.LearnedPattern {
	if glob == "" {
		return patterns
	}
	for i := range patterns {
		if patterns[i].Pattern == glob {
			RecordUsage(&patterns[i], transactionID)
			return patterns
		}
	}
	return append(patterns, model.LearnedPattern{
		Pattern:              glob,
		Confidence:           learnedConfidence,
		SourceTransactionIDs: []string{transactionID},
		CreatedAt:            now,
	})
}

// RecordUsage appends the transaction to the pattern's provenance and
// bumps confidence toward the ceiling. Repeated confirmation is the only
// way a learned pattern reaches the auto-apply band.
func RecordUsage(lp *model.LearnedPattern, transactionID string) {
	for _, id := range lp.SourceTransactionIDs {
		if id == transactionID {
			return
		}
	}
	lp.SourceTransactionIDs = append(lp.SourceTransactionIDs, transactionID)
	if lp.Confidence < maxConfidence {
		lp.Confidence += 2
		if lp.Confidence > maxConfidence {
			lp.Confidence = maxConfidence
		}
	}
}

// EffectiveConfidence tempers a pattern's stored confidence by the
// partner's recent manual removals: every removal whose free text the
// pattern still matches counts as one recorded disagreement.
func EffectiveConfidence(lp model.LearnedPattern, removals []model.ManualRemoval) int {
	conf := lp.Confidence
	if conf > maxConfidence {
		conf = maxConfidence
	}
	for _, r := range removals {
		if Match(lp.Pattern, r.FreeText) {
			conf -= removalPenalty
		}
	}
	if conf < 0 {
		return 0
	}
	return conf
}

// BestMatch returns the index and effective confidence of the strongest
// learned pattern matching the text, or -1 when none match above the
// minimum confidence floor.
func BestMatch(patterns []model.LearnedPattern, removals []model.ManualRemoval, text string) (int, int) {
	best := -1
	bestConf := 0
	for i, lp := range patterns {
		if !Match(lp.Pattern, text) {
			continue
		}
		conf := EffectiveConfidence(lp, removals)
		if conf < minConfidence {
			continue
		}
		if conf > bestConf {
			best = i
			bestConf = conf
		}
	}
	return best, bestConf
}

// MatchFileSource returns the index of the first file-source pattern
// matching the filename, or -1.
func MatchFileSource(patterns []model.FileSourcePattern, fileName string) int {
	for i, fp := range patterns {
		if Match(fp.Pattern, fileName) {
			return i
		}
	}
	return -1
}
