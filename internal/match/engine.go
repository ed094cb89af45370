package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/llm"
	"github.com/beleghq/beleg/internal/model"
	"github.com/beleghq/beleg/internal/notify"
	"github.com/beleghq/beleg/internal/service"
)

// Engine pairs a partner's candidate documents with its unfiled
// transactions: parallel scoring, sequential greedy assignment, chunked
// persistence, then an optional AI pass over the leftovers.
type Engine struct {
	storage service.Storage
	ai      *llm.Matcher
	events  *notify.Emitter
	cfg     config.Thresholds
}

// Result summarizes one matching run.
type Result struct {
	PartnerID   string
	Scored      int
	AutoMatched int
	AIMatched   int
	Suggested   int
}

// NewEngine creates a matching engine. The AI matcher and emitter may be
// nil; both are optional tiers.
func NewEngine(storage service.Storage, ai *llm.Matcher, events *notify.Emitter, cfg config.Thresholds) *Engine {
	return &Engine{storage: storage, ai: ai, events: events, cfg: cfg}
}

type scoredPair struct {
	docIdx int
	txnIdx int
	score  Score
}

// RunForPartner matches one partner's document pool against its unfiled
// transactions.
func (e *Engine) RunForPartner(ctx context.Context, partnerID string) (*Result, error) {
	if partnerID == "" {
		return nil, common.NewValidationError("partnerID", "must not be empty")
	}

	partner, err := e.storage.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	docs, err := e.storage.GetCandidateDocuments(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate documents: %w", err)
	}
	txns, err := e.storage.GetUnfiledTransactions(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unfiled transactions: %w", err)
	}

	result := &Result{PartnerID: partnerID}
	if len(docs) == 0 || len(txns) == 0 {
		return result, nil
	}

	pairs := e.scoreAll(ctx, partner, docs, txns)
	result.Scored = len(pairs)

	conns, suggested, usedDoc, usedTxn := e.assign(pairs, docs, txns)
	result.Suggested = suggested

	if len(conns) > 0 {
		processed, batchErr := e.storage.ConnectBatch(ctx, conns, e.cfg.ConnectChunkSize)
		result.AutoMatched = processed
		if batchErr != nil {
			var partial *common.PartialBatchError
			if errors.As(batchErr, &partial) {
				slog.Error("Connection batch partially applied",
					"partner", partnerID,
					"processed", partial.Processed,
					"error", batchErr)
			}
			e.notifyBatch(result)
			return result, batchErr
		}
	}

	aiMatched := e.runAIFallback(ctx, partner, docs, txns, usedDoc, usedTxn)
	result.AIMatched = aiMatched

	e.notifyBatch(result)
	return result, nil
}

// scoreAll computes the full cross-product concurrently. Scoring is a
// pure function of two read-only records, so the only coordination needed
// is the result slot index.
func (e *Engine) scoreAll(ctx context.Context, partner *model.Partner, docs []model.Document, txns []model.Transaction) []scoredPair {
	pairs := make([]scoredPair, len(docs)*len(txns))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for di := range docs {
		for ti := range txns {
			di, ti := di, ti
			g.Go(func() error {
				pairs[di*len(txns)+ti] = scoredPair{
					docIdx: di,
					txnIdx: ti,
					score:  ScoreDocument(docs[di], txns[ti], partner),
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	// Pairs below the suggestion floor are discarded before sorting.
	kept := pairs[:0]
	for _, p := range pairs {
		if p.score.Total >= e.cfg.Suggestion {
			kept = append(kept, p)
		}
	}
	return kept
}

// assign performs the greedy maximum-score pass. This is intentionally
// not a max-weight matching solver; ties are broken by stable input
// order. The consumption step is sequential because it maintains the
// used sets.
func (e *Engine) assign(pairs []scoredPair, docs []model.Document, txns []model.Transaction) ([]model.Connection, int, map[int]bool, map[int]bool) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score.Total > pairs[j].score.Total
	})

	usedDoc := make(map[int]bool)
	usedTxn := make(map[int]bool)
	var conns []model.Connection
	suggested := 0

	for _, p := range pairs {
		if usedDoc[p.docIdx] || usedTxn[p.txnIdx] {
			continue
		}
		if p.score.Total < e.cfg.ConnectionAutoApply {
			// Surfaced for review only; neither side is consumed.
			suggested++
			continue
		}
		conns = append(conns, model.Connection{
			ID:              uuid.NewString(),
			TransactionID:   txns[p.txnIdx].ID,
			DocumentID:      docs[p.docIdx].ID,
			Type:            model.ConnectionAutoMatched,
			MatchConfidence: p.score.Total,
			MatchReasons:    p.score.Reasons,
			CreatedAt:       time.Now(),
		})
		usedDoc[p.docIdx] = true
		usedTxn[p.txnIdx] = true
	}

	return conns, suggested, usedDoc, usedTxn
}

// runAIFallback escalates the leftovers to the reasoning service when
// both sides retain enough unmatched entries to make the call worthwhile.
func (e *Engine) runAIFallback(ctx context.Context, partner *model.Partner, docs []model.Document, txns []model.Transaction, usedDoc, usedTxn map[int]bool) int {
	if e.ai == nil {
		return 0
	}

	var docSummaries []llm.DocumentSummary
	docByID := make(map[string]bool)
	for i, d := range docs {
		if usedDoc[i] {
			continue
		}
		docSummaries = append(docSummaries, llm.DocumentSummary{
			ID:          d.ID,
			FileName:    d.FileName,
			Amount:      d.ExtractedAmount,
			Date:        d.ExtractedDate.Format("2006-01-02"),
			PartnerName: d.ExtractedPartnerName,
		})
		docByID[d.ID] = true
	}

	var txnSummaries []llm.TransactionSummary
	txnByID := make(map[string]bool)
	for i, t := range txns {
		if usedTxn[i] {
			continue
		}
		txnSummaries = append(txnSummaries, llm.TransactionSummary{
			ID:           t.ID,
			Amount:       t.Amount,
			Date:         t.Date.Format("2006-01-02"),
			FreeText:     t.FreeText,
			Counterparty: t.CounterpartyName,
		})
		txnByID[t.ID] = true
	}

	if len(docSummaries) < e.cfg.AIMinPairs || len(txnSummaries) < e.cfg.AIMinPairs {
		return 0
	}

	note := "All documents and transactions belong to partner " + strconv.Quote(partner.Name) + "."
	matches := e.ai.MatchPairs(ctx, docSummaries, txnSummaries, note)
	if len(matches) == 0 {
		return 0
	}

	conns := make([]model.Connection, 0, len(matches))
	for _, m := range matches {
		conns = append(conns, model.Connection{
			ID:              uuid.NewString(),
			TransactionID:   m.TransactionID,
			DocumentID:      m.DocumentID,
			Type:            model.ConnectionAIMatched,
			MatchConfidence: e.cfg.AIMatchConfidence,
			MatchReasons:    []string{"ai: " + m.Reasoning},
			CreatedAt:       time.Now(),
		})
	}

	processed, err := e.storage.ConnectBatch(ctx, conns, e.cfg.ConnectChunkSize)
	if err != nil {
		slog.Error("Failed to persist AI matches", "partner", partner.ID, "error", err)
	}
	return processed
}

func (e *Engine) notifyBatch(result *Result) {
	if result.AutoMatched+result.AIMatched == 0 {
		return
	}
	e.events.Emit(notify.Event{
		PartnerID:   result.PartnerID,
		AutoMatched: result.AutoMatched,
		AIMatched:   result.AIMatched,
		Suggested:   result.Suggested,
	})
}
