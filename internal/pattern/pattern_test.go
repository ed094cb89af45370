package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beleghq/beleg/internal/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		glob string
		text string
		want bool
	}{
		{
			name: "literal match is case insensitive",
			glob: "acme gmbh",
			text: "ACME GmbH",
			want: true,
		},
		{
			name: "wildcard swallows volatile suffix",
			glob: "acme*invoice*",
			text: "acme corp invoice 2024-001",
			want: true,
		},
		{
			name: "leading wildcard",
			glob: "*hosting*",
			text: "aws hosting fee 03/2024",
			want: true,
		},
		{
			name: "anchored at both ends",
			glob: "acme",
			text: "acme corp",
			want: false,
		},
		{
			name: "regex metacharacters are literal",
			glob: "a.c",
			text: "abc",
			want: false,
		},
		{
			name: "empty glob never matches",
			glob: "",
			text: "anything",
			want: false,
		},
		{
			name: "bare wildcard matches everything",
			glob: "*",
			text: "anything at all",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.glob, tt.text))
		})
	}
}

func TestCompileCaching(t *testing.T) {
	first, err := Compile("acme*")
	require.NoError(t, err)
	second, err := Compile("acme*")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		freeText string
		want     string
	}{
		{
			name:     "drops references and dates",
			freeText: "ACME GmbH Rechnung 2024-00153 vom 12.03.2024",
			want:     "*acme*gmbh*rechnung*vom*",
		},
		{
			name:     "drops short fragments",
			freeText: "DB Bahn AG",
			want:     "*bahn*",
		},
		{
			name:     "leading volatile token",
			freeText: "12.03.2024 ACME GmbH Rechnung 2024-00153",
			want:     "*acme*gmbh*rechnung*",
		},
		{
			name:     "empty input",
			freeText: "   ",
			want:     "",
		},
		{
			name:     "all volatile tokens",
			freeText: "12345 678-90 11",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.freeText))
		})
	}
}

func TestDeriveMatchesSourceText(t *testing.T) {
	texts := []string{
		"12.03.2024 ACME GmbH Rechnung 2024-00153",
		"ACME GmbH Rechnung 2024-00153 vom 12.03.2024",
		"DB Bahn AG",
	}
	for _, text := range texts {
		glob := Derive(text)
		require.NotEmpty(t, glob)
		assert.True(t, Match(glob, strings.ToLower(text)), "glob %q vs %q", glob, text)
	}

	// A glob learned from one transaction recognizes the next one from
	// the same counterparty.
	glob := Derive("12.03.2024 ACME GmbH Rechnung 2024-00153")
	assert.True(t, Match(glob, "14.04.2024 acme gmbh rechnung 2024-00201"))
}

func TestLearn(t *testing.T) {
	now := time.Now()

	t.Run("new pattern starts at base confidence", func(t *testing.T) {
		patterns := Learn(nil, "acme*", "txn-1", now)
		require.Len(t, patterns, 1)
		assert.Equal(t, "acme*", patterns[0].Pattern)
		assert.Equal(t, learnedConfidence, patterns[0].Confidence)
		assert.Equal(t, []string{"txn-1"}, patterns[0].SourceTransactionIDs)
	})

	t.Run("relearning same pattern records usage", func(t *testing.T) {
		patterns := Learn(nil, "acme*", "txn-1", now)
		patterns = Learn(patterns, "acme*", "txn-2", now)
		require.Len(t, patterns, 1)
		assert.Equal(t, learnedConfidence+2, patterns[0].Confidence)
		assert.Len(t, patterns[0].SourceTransactionIDs, 2)
	})

	t.Run("duplicate transaction does not double count", func(t *testing.T) {
		patterns := Learn(nil, "acme*", "txn-1", now)
		patterns = Learn(patterns, "acme*", "txn-1", now)
		require.Len(t, patterns, 1)
		assert.Equal(t, learnedConfidence, patterns[0].Confidence)
		assert.Len(t, patterns[0].SourceTransactionIDs, 1)
	})

	t.Run("empty glob is ignored", func(t *testing.T) {
		patterns := Learn(nil, "", "txn-1", now)
		assert.Empty(t, patterns)
	})
}

func TestRecordUsageCapsAtCeiling(t *testing.T) {
	lp := model.LearnedPattern{Pattern: "acme*", Confidence: 99}
	RecordUsage(&lp, "txn-a")
	assert.Equal(t, 100, lp.Confidence)
	RecordUsage(&lp, "txn-b")
	assert.Equal(t, 100, lp.Confidence)
}

func TestEffectiveConfidence(t *testing.T) {
	lp := model.LearnedPattern{Pattern: "acme*", Confidence: 80}

	tests := []struct {
		name     string
		removals []model.ManualRemoval
		want     int
	}{
		{
			name: "no removals",
			want: 80,
		},
		{
			name: "matching removal subtracts penalty",
			removals: []model.ManualRemoval{
				{FreeText: "acme corp payment"},
			},
			want: 65,
		},
		{
			name: "non-matching removal is ignored",
			removals: []model.ManualRemoval{
				{FreeText: "globex invoice"},
			},
			want: 80,
		},
		{
			name: "confidence floors at zero",
			removals: []model.ManualRemoval{
				{FreeText: "acme one"},
				{FreeText: "acme two"},
				{FreeText: "acme three"},
				{FreeText: "acme four"},
				{FreeText: "acme five"},
				{FreeText: "acme six"},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveConfidence(lp, tt.removals))
		})
	}
}

func TestBestMatch(t *testing.T) {
	patterns := []model.LearnedPattern{
		{Pattern: "acme*", Confidence: 80},
		{Pattern: "acme*invoice*", Confidence: 90},
		{Pattern: "globex*", Confidence: 95},
	}

	t.Run("strongest matching pattern wins", func(t *testing.T) {
		idx, conf := BestMatch(patterns, nil, "acme invoice 42")
		assert.Equal(t, 1, idx)
		assert.Equal(t, 90, conf)
	})

	t.Run("no match", func(t *testing.T) {
		idx, conf := BestMatch(patterns, nil, "initech consulting")
		assert.Equal(t, -1, idx)
		assert.Zero(t, conf)
	})

	t.Run("damped below floor is skipped", func(t *testing.T) {
		removals := []model.ManualRemoval{
			{FreeText: "acme invoice 1"},
			{FreeText: "acme invoice 2"},
			{FreeText: "acme invoice 3"},
		}
		// Both acme patterns drop by 45; 80-45=35 and 90-45=45 are
		// under the floor of 50.
		idx, conf := BestMatch(patterns, removals, "acme invoice 42")
		assert.Equal(t, -1, idx)
		assert.Zero(t, conf)
	})
}

func TestMatchFileSource(t *testing.T) {
	patterns := []model.FileSourcePattern{
		{Pattern: "*hetzner*"},
		{Pattern: "invoice-*.pdf"},
	}

	assert.Equal(t, 0, MatchFileSource(patterns, "2024_hetzner_cloud.pdf"))
	assert.Equal(t, 1, MatchFileSource(patterns, "invoice-0042.pdf"))
	assert.Equal(t, -1, MatchFileSource(patterns, "scan001.jpg"))
}
