package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/service"
)

// Fetcher downloads a nominated candidate and materializes it as a
// document, running extraction along the way.
type Fetcher interface {
	Fetch(ctx context.Context, candidate model.NominatedCandidate) (*model.Document, error)
}

// Runner drives agentic search sessions through their state machine.
type Runner struct {
	storage service.Storage
	fetcher Fetcher
	cfg     config.Thresholds
}

// NewRunner creates a session runner.
func NewRunner(storage service.Storage, fetcher Fetcher, cfg config.Thresholds) *Runner {
	return &Runner{storage: storage, fetcher: fetcher, cfg: cfg}
}

// Start creates a new active session for the transaction. At most one
// active session may exist per transaction.
func (r *Runner) Start(ctx context.Context, transactionID string) (*model.AgentSearchSession, error) {
	if _, err := r.storage.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	if existing, err := r.storage.GetActiveSession(ctx, transactionID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, common.ErrSessionExists
	}

	now := time.Now()
	session := &model.AgentSearchSession{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Status:        model.SessionActive,
		MaxIterations: r.cfg.MaxSearchIterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// RunIteration executes one search iteration with the given strategies.
// Every strategy run is recorded in the session log and in an append-only
// search entry, whether or not it found anything. Strategy failures
// degrade to zero candidates.
func (r *Runner) RunIteration(ctx context.Context, session *model.AgentSearchSession, strategies ...Strategy) ([]Candidate, error) {
	if session.Terminal() {
		return nil, common.ErrSessionTerminated
	}
	if session.Iteration >= session.MaxIterations {
		session.Status = model.SessionMaxIterations
		session.UpdatedAt = time.Now()
		if err := r.storage.SaveSession(ctx, session); err != nil {
			return nil, err
		}
		return nil, common.ErrSessionTerminated
	}

	txn, err := r.storage.GetTransaction(ctx, session.TransactionID)
	if err != nil {
		return nil, err
	}

	session.Iteration++
	entry := model.SearchEntry{
		ID:            uuid.NewString(),
		SessionID:     session.ID,
		TransactionID: session.TransactionID,
		StartedAt:     time.Now(),
	}

	var found []Candidate
	for _, strategy := range strategies {
		query := buildQuery(*txn)
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.ExternalTimeout)
		candidates, searchErr := strategy.Search(callCtx, *txn)
		cancel()

		attempt := model.SearchAttempt{
			Strategy:        strategy.Type(),
			Query:           query,
			CandidatesFound: len(candidates),
			ExternalCalls:   1,
		}
		if searchErr != nil {
			attempt.Err = searchErr.Error()
			slog.Warn("Search strategy failed",
				"strategy", strategy.Type(),
				"transaction", session.TransactionID,
				"error", searchErr)
		}
		entry.Attempts = append(entry.Attempts, attempt)

		session.SearchesPerformed = append(session.SearchesPerformed, model.SearchRecord{
			Type:            strategy.Type(),
			Query:           query,
			CandidatesFound: len(candidates),
			At:              time.Now(),
		})
		found = append(found, candidates...)
	}

	entry.CompletedAt = time.Now()
	if err := r.storage.SaveSearchEntry(ctx, &entry); err != nil {
		slog.Warn("Failed to persist search entry", "session", session.ID, "error", err)
	}

	session.UpdatedAt = time.Now()
	if err := r.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return found, nil
}

// Nominate marks a candidate as a probable match with a stated reason,
// making it eligible for execution.
func (r *Runner) Nominate(ctx context.Context, session *model.AgentSearchSession, candidate Candidate, reason string) error {
	if session.Terminal() {
		return common.ErrSessionTerminated
	}
	session.NominatedCandidates = append(session.NominatedCandidates, model.NominatedCandidate{
		Provider:    candidate.Provider,
		SourceID:    candidate.SourceID,
		FileName:    candidate.FileName,
		Reason:      reason,
		NominatedAt: time.Now(),
	})
	session.UpdatedAt = time.Now()
	return r.storage.SaveSession(ctx, session)
}

// ExecuteNominations downloads each nominated candidate and connects the
// resulting documents to the transaction. At least one successful
// connection completes the session.
func (r *Runner) ExecuteNominations(ctx context.Context, session *model.AgentSearchSession) (int, error) {
	if session.Terminal() {
		return 0, common.ErrSessionTerminated
	}
	if r.fetcher == nil {
		return 0, common.NewValidationError("fetcher", "not configured")
	}

	connected := 0
	for _, nom := range session.NominatedCandidates {
		doc, err := r.fetcher.Fetch(ctx, nom)
		if err != nil {
			slog.Warn("Failed to fetch nominated candidate",
				"source", nom.SourceID,
				"error", err)
			continue
		}
		if err := r.storage.SaveDocument(ctx, doc); err != nil {
			slog.Warn("Failed to save fetched document", "document", doc.ID, "error", err)
			continue
		}
		conn := &model.Connection{
			ID:              uuid.NewString(),
			TransactionID:   session.TransactionID,
			DocumentID:      doc.ID,
			Type:            model.ConnectionAIMatched,
			MatchConfidence: r.cfg.AIMatchConfidence,
			MatchReasons:    []string{"agent_search: " + nom.Reason},
			CreatedAt:       time.Now(),
		}
		if err := r.storage.Connect(ctx, conn); err != nil {
			slog.Warn("Failed to connect fetched document", "document", doc.ID, "error", err)
			continue
		}
		session.FilesConnected = append(session.FilesConnected, doc.ID)
		connected++
	}

	if connected > 0 {
		session.Status = model.SessionCompleted
	}
	session.UpdatedAt = time.Now()
	if err := r.storage.SaveSession(ctx, session); err != nil {
		return connected, err
	}
	return connected, nil
}

// Cancel forces the session out of the active state. This is the only
// externally-triggered transition.
func (r *Runner) Cancel(ctx context.Context, session *model.AgentSearchSession) error {
	if session.Terminal() {
		return common.ErrSessionTerminated
	}
	session.Status = model.SessionCancelled
	session.UpdatedAt = time.Now()
	return r.storage.SaveSession(ctx, session)
}
