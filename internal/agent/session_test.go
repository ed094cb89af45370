package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/storage"
)

type fakeStrategy struct {
	name       string
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeStrategy) Type() string { return f.name }

func (f *fakeStrategy) Search(_ context.Context, _ model.Transaction) ([]Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeFetcher struct {
	err  error
	docs int
}

func (f *fakeFetcher) Fetch(_ context.Context, nom model.NominatedCandidate) (*model.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs++
	return &model.Document{
		ID:         fmt.Sprintf("fetched-%d", f.docs),
		FileName:   nom.FileName,
		MimeType:   "application/pdf",
		SourceType: nom.Provider,
	}, nil
}

func testStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedTransaction(t *testing.T, db *storage.SQLiteStorage, id string) {
	t.Helper()
	require.NoError(t, db.SaveTransaction(context.Background(), &model.Transaction{
		ID:               id,
		Date:             time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC),
		Amount:           -4990,
		Currency:         "EUR",
		FreeText:         "acme hosting",
		CounterpartyName: "Acme GmbH",
	}))
}

func TestRunnerStart(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, nil, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, "txn-1", session.TransactionID)
	assert.Zero(t, session.Iteration)
	assert.Equal(t, 3, session.MaxIterations)

	t.Run("second active session is rejected", func(t *testing.T) {
		_, err := r.Start(ctx, "txn-1")
		assert.ErrorIs(t, err, common.ErrSessionExists)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := r.Start(ctx, "txn-missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("new session allowed after cancellation", func(t *testing.T) {
		require.NoError(t, r.Cancel(ctx, session))
		fresh, err := r.Start(ctx, "txn-1")
		require.NoError(t, err)
		assert.NotEqual(t, session.ID, fresh.ID)
	})
}

func TestRunnerRunIteration(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, nil, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	hit := &fakeStrategy{name: StrategyLocalFiles, candidates: []Candidate{
		{Provider: StrategyLocalFiles, SourceID: "doc-1", FileName: "acme.pdf"},
	}}
	broken := &fakeStrategy{name: StrategyEmailAttachment, err: errors.New("mailbox unavailable")}

	found, err := r.RunIteration(ctx, session, hit, broken)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "doc-1", found[0].SourceID)
	assert.Equal(t, 1, session.Iteration)
	assert.Len(t, session.SearchesPerformed, 2)

	// Both attempts land in the audit log, including the failed one.
	entries, err := db.GetSearchEntries(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Attempts, 2)
	assert.Equal(t, StrategyLocalFiles, entries[0].Attempts[0].Strategy)
	assert.Equal(t, 1, entries[0].Attempts[0].CandidatesFound)
	assert.Equal(t, "mailbox unavailable", entries[0].Attempts[1].Err)
	assert.Equal(t, session.ID, entries[0].SessionID)
}

func TestRunnerIterationBound(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, nil, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	empty := &fakeStrategy{name: StrategyLocalFiles}
	for i := 1; i <= 3; i++ {
		_, err := r.RunIteration(ctx, session, empty)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, i, session.Iteration)
		assert.Equal(t, model.SessionActive, session.Status)
	}

	// Forcing a fourth iteration exhausts the session without running
	// any more searches.
	_, err = r.RunIteration(ctx, session, empty)
	assert.ErrorIs(t, err, common.ErrSessionTerminated)
	assert.Equal(t, model.SessionMaxIterations, session.Status)
	assert.Equal(t, 3, session.Iteration)
	assert.Equal(t, 3, empty.calls)

	// The stored session reflects the terminal state.
	stored, err := db.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionMaxIterations, stored.Status)
}

func TestRunnerLastIterationFindsStillExecute(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, &fakeFetcher{}, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	empty := &fakeStrategy{name: StrategyEmailAttachment}
	for i := 0; i < 2; i++ {
		_, err := r.RunIteration(ctx, session, empty)
		require.NoError(t, err)
	}

	hit := &fakeStrategy{name: StrategyLocalFiles, candidates: []Candidate{
		{Provider: StrategyLocalFiles, SourceID: "doc-late", FileName: "acme_march.pdf"},
	}}
	found, err := r.RunIteration(ctx, session, hit)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 3, session.Iteration)

	// A candidate surfaced by the final search can still be nominated
	// and executed.
	require.NoError(t, r.Nominate(ctx, session, found[0], "amount matches invoice total"))
	connected, err := r.ExecuteNominations(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, connected)
	assert.Equal(t, model.SessionCompleted, session.Status)
}

func TestRunnerExecuteNominations(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	fetcher := &fakeFetcher{}
	r := NewRunner(db, fetcher, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	candidate := Candidate{Provider: StrategyEmailAttachment, SourceID: "msg-1/att-1", FileName: "invoice.pdf"}
	require.NoError(t, r.Nominate(ctx, session, candidate, "amount matches invoice total"))
	require.Len(t, session.NominatedCandidates, 1)

	connected, err := r.ExecuteNominations(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, connected)
	assert.Equal(t, model.SessionCompleted, session.Status)
	assert.Equal(t, []string{"fetched-1"}, session.FilesConnected)

	txn, err := db.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fetched-1"}, txn.DocumentIDs)

	conns, err := db.GetConnections(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, model.ConnectionAIMatched, conns[0].Type)
	assert.Equal(t, []string{"agent_search: amount matches invoice total"}, conns[0].MatchReasons)

	t.Run("terminal session refuses further work", func(t *testing.T) {
		_, err := r.ExecuteNominations(ctx, session)
		assert.ErrorIs(t, err, common.ErrSessionTerminated)
		err = r.Nominate(ctx, session, candidate, "again")
		assert.ErrorIs(t, err, common.ErrSessionTerminated)
	})
}

func TestRunnerExecuteNominationsFetchFailure(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, &fakeFetcher{err: errors.New("download failed")}, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)
	require.NoError(t, r.Nominate(ctx, session, Candidate{SourceID: "x", FileName: "a.pdf"}, "r"))

	connected, err := r.ExecuteNominations(ctx, session)
	require.NoError(t, err)
	assert.Zero(t, connected)
	// Nothing connected, so the session stays active.
	assert.Equal(t, model.SessionActive, session.Status)
}

func TestRunnerExecuteNominationsNoFetcher(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, nil, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	_, err = r.ExecuteNominations(ctx, session)
	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRunnerCancel(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)
	seedTransaction(t, db, "txn-1")
	r := NewRunner(db, nil, config.DefaultThresholds())

	session, err := r.Start(ctx, "txn-1")
	require.NoError(t, err)

	require.NoError(t, r.Cancel(ctx, session))
	assert.Equal(t, model.SessionCancelled, session.Status)

	assert.ErrorIs(t, r.Cancel(ctx, session), common.ErrSessionTerminated)

	_, err = r.RunIteration(ctx, session, &fakeStrategy{name: StrategyLocalFiles})
	assert.ErrorIs(t, err, common.ErrSessionTerminated)
}

func TestBuildQuery(t *testing.T) {
	txn := model.Transaction{
		CounterpartyName: "Acme GmbH",
		Amount:           -4990,
		Date:             time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Acme GmbH 49.90 2024-03", buildQuery(txn))

	bare := model.Transaction{FreeText: "card purchase", Amount: 100}
	assert.Equal(t, "card purchase 1.00", buildQuery(bare))
}

func TestLocalFileStrategy(t *testing.T) {
	ctx := context.Background()
	db := testStorage(t)

	require.NoError(t, db.SaveDocument(ctx, &model.Document{
		ID: "doc-1", FileName: "acme_invoice_march.pdf",
	}))
	require.NoError(t, db.SaveDocument(ctx, &model.Document{
		ID: "doc-2", FileName: "acme_receipt.pdf", TransactionIDs: []string{"txn-x"},
	}))
	require.NoError(t, db.SaveDocument(ctx, &model.Document{
		ID: "doc-3", FileName: "unrelated.pdf",
	}))

	s := &LocalFileStrategy{Storage: db}
	found, err := s.Search(ctx, model.Transaction{CounterpartyName: "Acme GmbH"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "doc-1", found[0].SourceID)
	assert.Equal(t, StrategyLocalFiles, found[0].Provider)
}
