package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/model"
)

func TestCategoryResolverResolve(t *testing.T) {
	cfg := config.DefaultThresholds()
	r := NewCategoryResolver(nil, cfg)

	categories := []model.Category{
		{
			ID:   "cat-fees",
			Name: "Bank fees",
			LearnedPatterns: []model.LearnedPattern{
				{Pattern: "*kontoführung*", Confidence: 92},
			},
		},
		{
			ID:                "cat-telecom",
			Name:              "Telecommunication",
			MatchedPartnerIDs: []string{"p-telco"},
		},
		{
			ID:   "cat-interest",
			Name: "Interest",
			LearnedPatterns: []model.LearnedPattern{
				{Pattern: "*zinsen*", Confidence: 70},
			},
		},
	}

	t.Run("pattern above threshold auto-applies", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), model.Transaction{
			ID:       "txn-1",
			FreeText: "Entgelt Kontoführung März",
		}, categories)
		require.NoError(t, err)
		require.NotNil(t, res.BestMatch)
		assert.Equal(t, "cat-fees", res.BestMatch.CategoryID)
		assert.Equal(t, 92, res.BestMatch.Confidence)
	})

	t.Run("partner history resolves without text signal", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), model.Transaction{
			ID:        "txn-2",
			FreeText:  "DIRECT DEBIT 88213",
			PartnerID: "p-telco",
		}, categories)
		require.NoError(t, err)
		require.NotNil(t, res.BestMatch)
		assert.Equal(t, "cat-telecom", res.BestMatch.CategoryID)
		assert.Equal(t, confidencePartnerHistory, res.BestMatch.Confidence)
		assert.Equal(t, model.SourcePartnerHistory, res.BestMatch.Source)
	})

	t.Run("pattern match keeps the pattern source", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), model.Transaction{
			ID:       "txn-2b",
			FreeText: "Entgelt Kontoführung April",
		}, categories)
		require.NoError(t, err)
		require.NotNil(t, res.BestMatch)
		assert.Equal(t, model.SourcePattern, res.BestMatch.Source)
	})

	t.Run("weak pattern becomes a suggestion", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), model.Transaction{
			ID:       "txn-3",
			FreeText: "Zinsen Q1",
		}, categories)
		require.NoError(t, err)
		assert.Nil(t, res.BestMatch)
		require.Len(t, res.Suggestions, 1)
		assert.Equal(t, "cat-interest", res.Suggestions[0].CategoryID)
		assert.Equal(t, 70, res.Suggestions[0].Confidence)
	})

	t.Run("no signal at all", func(t *testing.T) {
		res, err := r.Resolve(context.Background(), model.Transaction{
			ID:       "txn-4",
			FreeText: "TRANSFER 991",
		}, categories)
		require.NoError(t, err)
		assert.Nil(t, res.BestMatch)
		assert.Empty(t, res.Suggestions)
	})
}

func TestCategoryResolverApply(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	r := NewCategoryResolver(db, config.DefaultThresholds())

	require.NoError(t, db.SaveCategory(ctx, &model.Category{ID: "cat-1", Name: "Bank fees"}))
	txn := model.Transaction{ID: "txn-1", Date: time.Now(), FreeText: "fee", Amount: -500, Currency: "EUR"}
	require.NoError(t, db.SaveTransaction(ctx, &txn))

	res := CategoryResult{BestMatch: &CategoryCandidate{CategoryID: "cat-1", Confidence: 92}}
	require.NoError(t, r.Apply(ctx, &txn, res))

	stored, err := db.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", stored.CategoryID)
	assert.Equal(t, "cat-1", txn.CategoryID)
}

func TestCategoryResolverRecordCorrection(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	r := NewCategoryResolver(db, config.DefaultThresholds())

	require.NoError(t, db.SaveCategory(ctx, &model.Category{ID: "cat-old", Name: "Wrong"}))
	require.NoError(t, db.SaveCategory(ctx, &model.Category{ID: "cat-new", Name: "Right"}))

	txn := model.Transaction{
		ID:         "txn-1",
		Date:       time.Now(),
		FreeText:   "Mobilfunk Rechnung acme telecom",
		Amount:     -2999,
		Currency:   "EUR",
		PartnerID:  "p-telco",
		CategoryID: "cat-old",
	}
	require.NoError(t, db.SaveTransaction(ctx, &txn))

	require.NoError(t, r.RecordCorrection(ctx, "txn-1", "cat-new"))

	stored, err := db.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-new", stored.CategoryID)

	corrected, err := db.GetCategory(ctx, "cat-new")
	require.NoError(t, err)
	require.Len(t, corrected.LearnedPatterns, 1)
	assert.Equal(t, []string{"p-telco"}, corrected.MatchedPartnerIDs)

	displaced, err := db.GetCategory(ctx, "cat-old")
	require.NoError(t, err)
	require.Len(t, displaced.ManualRemovals, 1)
	assert.Equal(t, "txn-1", displaced.ManualRemovals[0].TransactionID)
}
