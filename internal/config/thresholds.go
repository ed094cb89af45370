// Package config holds the injectable tuning knobs for the matching engine.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Thresholds collects every confidence and bound the matching pipelines
// consult. Components receive it by value; tests override individual
// fields as needed instead of patching globals.
type Thresholds struct {
	// PartnerAutoApply is the minimum confidence at which a partner
	// resolution is persisted without human confirmation.
	PartnerAutoApply int
	// ConnectionAutoApply is the minimum document-transaction score at
	// which a connection is created automatically.
	ConnectionAutoApply int
	// Suggestion is the minimum score at which a pair is surfaced for
	// human review at all.
	Suggestion int
	// CategorySuggestion is the review floor for category matches.
	CategorySuggestion int
	// AIMatchConfidence is the fixed confidence recorded on ai_matched
	// connections.
	AIMatchConfidence int
	// AIMinPairs gates the AI fallback: both unmatched sides must have
	// at least this many entries.
	AIMinPairs int
	// MaxSearchIterations bounds agentic search sessions.
	MaxSearchIterations int
	// ConnectChunkSize bounds each atomic multi-record write.
	ConnectChunkSize int
	// ExternalTimeout caps any single reasoning or search provider call.
	ExternalTimeout time.Duration
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PartnerAutoApply:    89,
		ConnectionAutoApply: 85,
		Suggestion:          50,
		CategorySuggestion:  60,
		AIMatchConfidence:   90,
		AIMinPairs:          2,
		MaxSearchIterations: 3,
		ConnectChunkSize:    25,
		ExternalTimeout:     30 * time.Second,
	}
}

// FromViper overlays configured values onto the defaults. Unset keys keep
// their default.
func FromViper(v *viper.Viper) Thresholds {
	t := DefaultThresholds()
	if v == nil {
		return t
	}
	if v.IsSet("thresholds.partner_auto_apply") {
		t.PartnerAutoApply = v.GetInt("thresholds.partner_auto_apply")
	}
	if v.IsSet("thresholds.connection_auto_apply") {
		t.ConnectionAutoApply = v.GetInt("thresholds.connection_auto_apply")
	}
	if v.IsSet("thresholds.suggestion") {
		t.Suggestion = v.GetInt("thresholds.suggestion")
	}
	if v.IsSet("thresholds.category_suggestion") {
		t.CategorySuggestion = v.GetInt("thresholds.category_suggestion")
	}
	if v.IsSet("thresholds.ai_match_confidence") {
		t.AIMatchConfidence = v.GetInt("thresholds.ai_match_confidence")
	}
	if v.IsSet("thresholds.ai_min_pairs") {
		t.AIMinPairs = v.GetInt("thresholds.ai_min_pairs")
	}
	if v.IsSet("thresholds.max_search_iterations") {
		t.MaxSearchIterations = v.GetInt("thresholds.max_search_iterations")
	}
	if v.IsSet("thresholds.connect_chunk_size") {
		t.ConnectChunkSize = v.GetInt("thresholds.connect_chunk_size")
	}
	if v.IsSet("thresholds.external_timeout") {
		t.ExternalTimeout = v.GetDuration("thresholds.external_timeout")
	}
	return t
}
