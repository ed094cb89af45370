package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/storage"
)

func testStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPartnerResolverResolve(t *testing.T) {
	cfg := config.DefaultThresholds()
	r := NewPartnerResolver(nil, nil, cfg)

	tests := []struct {
		name           string
		txn            model.Transaction
		partners       []model.Partner
		wantBestID     string
		wantSource     model.MatchSource
		wantConfidence int
	}{
		{
			name: "iban exact match",
			txn: model.Transaction{
				ID:               "txn-1",
				CounterpartyIBAN: "DE02120300000000202051",
				FreeText:         "payment ref 8842",
			},
			partners: []model.Partner{
				{ID: "p-1", Name: "Hosting Partner", IBANs: []string{"DE02120300000000202051"}},
			},
			wantBestID:     "p-1",
			wantSource:     model.SourceIBAN,
			wantConfidence: 100,
		},
		{
			name: "learned pattern match",
			txn: model.Transaction{
				ID:       "txn-2",
				FreeText: "ACME Invoice 2024-001",
			},
			partners: []model.Partner{
				{
					ID:   "p-2",
					Name: "Unrelated Industries",
					LearnedPatterns: []model.LearnedPattern{
						{Pattern: "acme*invoice*", Confidence: 92},
					},
				},
			},
			wantBestID:     "p-2",
			wantSource:     model.SourcePattern,
			wantConfidence: 92,
		},
		{
			name: "vat id in free text",
			txn: model.Transaction{
				ID:       "txn-3",
				FreeText: "DIRECT DEBIT DE 8123 4567 89",
			},
			partners: []model.Partner{
				{ID: "p-3", Name: "Telco Provider", VATID: "DE812345678"},
			},
			wantBestID:     "p-3",
			wantSource:     model.SourceVAT,
			wantConfidence: 95,
		},
		{
			name: "website domain in free text",
			txn: model.Transaction{
				ID:       "txn-4",
				FreeText: "card purchase shop.example.io checkout",
			},
			partners: []model.Partner{
				{ID: "p-4", Name: "Webshop", Website: "https://www.shop.example.io/store"},
			},
			wantBestID:     "p-4",
			wantSource:     model.SourceWebsite,
			wantConfidence: 90,
		},
		{
			name: "alias glob match",
			txn: model.Transaction{
				ID:       "txn-5",
				FreeText: "AMZN Mktp DE 4X7YQ",
			},
			partners: []model.Partner{
				{ID: "p-5", Name: "Marketplace Seller", Aliases: []string{"amzn*"}},
			},
			wantBestID:     "p-5",
			wantSource:     model.SourceAlias,
			wantConfidence: 90,
		},
		{
			name: "fuzzy name via free text substring",
			txn: model.Transaction{
				ID:               "txn-6",
				FreeText:         "SEPA Globex Corporation monthly fee",
				CounterpartyName: "Globex Corporation",
			},
			partners: []model.Partner{
				{ID: "p-6", Name: "Globex Corporation"},
			},
			wantBestID:     "p-6",
			wantSource:     model.SourceFuzzy,
			wantConfidence: 90,
		},
		{
			name: "iban outranks alias at equal certainty",
			txn: model.Transaction{
				ID:               "txn-7",
				CounterpartyIBAN: "DE02100100100006820101",
				FreeText:         "AMZN order",
			},
			partners: []model.Partner{
				{ID: "p-7a", Name: "Card Issuer", IBANs: []string{"DE02100100100006820101"}},
				{ID: "p-7b", Name: "Marketplace", Aliases: []string{"amzn*"}},
			},
			wantBestID:     "p-7a",
			wantSource:     model.SourceIBAN,
			wantConfidence: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.txn, tt.partners)
			require.NoError(t, err)
			require.NotNil(t, res.BestMatch)
			assert.Equal(t, tt.wantBestID, res.BestMatch.PartnerID)
			assert.Equal(t, tt.wantSource, res.BestMatch.Source)
			assert.Equal(t, tt.wantConfidence, res.BestMatch.Confidence)
		})
	}
}

func TestPartnerResolverResolveNoMatch(t *testing.T) {
	r := NewPartnerResolver(nil, nil, config.DefaultThresholds())

	res, err := r.Resolve(context.Background(), model.Transaction{
		ID:       "txn-1",
		FreeText: "WITHDRAWAL 20240312 0931",
	}, []model.Partner{
		{ID: "p-1", Name: "Completely Different Partner"},
	})
	require.NoError(t, err)
	assert.Nil(t, res.BestMatch)
	assert.Empty(t, res.Suggestions)
}

func TestPartnerResolverResolveValidation(t *testing.T) {
	r := NewPartnerResolver(nil, nil, config.DefaultThresholds())

	_, err := r.Resolve(context.Background(), model.Transaction{}, nil)
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPartnerResolverSuggestions(t *testing.T) {
	r := NewPartnerResolver(nil, nil, config.DefaultThresholds())

	// Four fuzzy candidates below auto-apply plus one IBAN winner.
	txn := model.Transaction{
		ID:               "txn-1",
		CounterpartyIBAN: "DE02120300000000202051",
		CounterpartyName: "Mueller Bakery",
	}
	partners := []model.Partner{
		{ID: "p-win", Name: "Actual Partner", IBANs: []string{"DE02120300000000202051"}},
		{ID: "p-a", Name: "Mueller Bakery GmbH"},
		{ID: "p-b", Name: "Mueller Bakeries"},
		{ID: "p-c", Name: "Mueller Bakery"},
		{ID: "p-d", Name: "Miller Bakery"},
	}

	res, err := r.Resolve(context.Background(), txn, partners)
	require.NoError(t, err)
	require.NotNil(t, res.BestMatch)
	assert.Equal(t, "p-win", res.BestMatch.PartnerID)

	assert.LessOrEqual(t, len(res.Suggestions), 3)
	for _, s := range res.Suggestions {
		assert.NotEqual(t, "p-win", s.PartnerID)
	}
	// Exact name match ranks first among the suggestions.
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "p-c", res.Suggestions[0].PartnerID)
}

func TestPartnerResolverApply(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	cfg := config.DefaultThresholds()
	r := NewPartnerResolver(db, nil, cfg)

	partner := &model.Partner{ID: "p-1", Type: model.PartnerTypePrivate, Name: "Acme GmbH"}
	require.NoError(t, db.SavePartner(ctx, partner))
	txn := model.Transaction{ID: "txn-1", Date: time.Now(), FreeText: "Acme GmbH invoice 4711", Amount: -12999, Currency: "EUR"}
	require.NoError(t, db.SaveTransaction(ctx, &txn))

	t.Run("below threshold is a no-op", func(t *testing.T) {
		res := Result{BestMatch: &Candidate{PartnerID: "p-1", Source: model.SourceFuzzy, Confidence: 70}}
		require.NoError(t, r.Apply(ctx, &txn, res))
		stored, err := db.GetTransaction(ctx, "txn-1")
		require.NoError(t, err)
		assert.Empty(t, stored.PartnerID)
	})

	t.Run("auto-apply persists and learns", func(t *testing.T) {
		res := Result{BestMatch: &Candidate{PartnerID: "p-1", Source: model.SourceFuzzy, Confidence: 90, patternIdx: -1}}
		require.NoError(t, r.Apply(ctx, &txn, res))

		stored, err := db.GetTransaction(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "p-1", stored.PartnerID)
		assert.Equal(t, model.SourceFuzzy, stored.PartnerMatchSource)
		assert.Equal(t, 90, stored.PartnerConfidence)

		learned, err := db.GetPartner(ctx, "p-1")
		require.NoError(t, err)
		require.Len(t, learned.LearnedPatterns, 1)
		assert.Equal(t, "*acme*gmbh*invoice*", learned.LearnedPatterns[0].Pattern)
	})
}

func TestPartnerResolverRecordCorrection(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	r := NewPartnerResolver(db, nil, config.DefaultThresholds())

	oldPartner := &model.Partner{ID: "p-old", Type: model.PartnerTypePrivate, Name: "Wrong Partner"}
	newPartner := &model.Partner{ID: "p-new", Type: model.PartnerTypePrivate, Name: "Right Partner"}
	require.NoError(t, db.SavePartner(ctx, oldPartner))
	require.NoError(t, db.SavePartner(ctx, newPartner))

	txn := model.Transaction{
		ID:                 "txn-1",
		Date:               time.Now(),
		FreeText:           "Subscription renewal acme services",
		Amount:             -4900,
		Currency:           "EUR",
		PartnerID:          "p-old",
		PartnerMatchSource: model.SourceFuzzy,
		PartnerConfidence:  90,
	}
	require.NoError(t, db.SaveTransaction(ctx, &txn))

	require.NoError(t, r.RecordCorrection(ctx, "txn-1", "p-new"))

	stored, err := db.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "p-new", stored.PartnerID)
	assert.Equal(t, model.SourceManual, stored.PartnerMatchSource)
	assert.Equal(t, 100, stored.PartnerConfidence)

	// The corrected partner learned a pattern from the free text.
	corrected, err := db.GetPartner(ctx, "p-new")
	require.NoError(t, err)
	require.Len(t, corrected.LearnedPatterns, 1)
	assert.Contains(t, corrected.LearnedPatterns[0].SourceTransactionIDs, "txn-1")

	// The displaced automated partner carries a negative signal.
	displaced, err := db.GetPartner(ctx, "p-old")
	require.NoError(t, err)
	require.Len(t, displaced.ManualRemovals, 1)
	assert.Equal(t, "txn-1", displaced.ManualRemovals[0].TransactionID)
}

func TestPartnerResolverCorrectionKeepsManualAssignments(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	r := NewPartnerResolver(db, nil, config.DefaultThresholds())

	first := &model.Partner{ID: "p-1", Type: model.PartnerTypePrivate, Name: "First Choice"}
	second := &model.Partner{ID: "p-2", Type: model.PartnerTypePrivate, Name: "Second Choice"}
	require.NoError(t, db.SavePartner(ctx, first))
	require.NoError(t, db.SavePartner(ctx, second))

	txn := model.Transaction{
		ID:                 "txn-1",
		Date:               time.Now(),
		FreeText:           "consulting retainer",
		Amount:             -100000,
		Currency:           "EUR",
		PartnerID:          "p-1",
		PartnerMatchSource: model.SourceManual,
		PartnerConfidence:  100,
	}
	require.NoError(t, db.SaveTransaction(ctx, &txn))

	require.NoError(t, r.RecordCorrection(ctx, "txn-1", "p-2"))

	// A manual assignment is not a machine mistake, so no removal is
	// recorded against the previous partner.
	prev, err := db.GetPartner(ctx, "p-1")
	require.NoError(t, err)
	assert.Empty(t, prev.ManualRemovals)
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/shop", "example.com"},
		{"http://example.io", "example.io"},
		{"Example.ORG", "example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDomain(tt.in))
	}
}

func TestResemblesCompanyName(t *testing.T) {
	assert.True(t, resemblesCompanyName("acme gmbh 4711"))
	assert.False(t, resemblesCompanyName("20240312 0931 88"))
	assert.False(t, resemblesCompanyName(""))
}
