package model

import "time"

// SessionStatus is the lifecycle state of an agentic search session.
type SessionStatus string

// Session status constants. Every status other than active is terminal.
const (
	SessionActive        SessionStatus = "active"
	SessionCompleted     SessionStatus = "completed"
	SessionMaxIterations SessionStatus = "max_iterations_reached"
	SessionCancelled     SessionStatus = "user_cancelled"
)

// MaxSearchIterations bounds the agentic search loop.
const MaxSearchIterations = 3

// SearchAttempt records one strategy run inside a search entry.
type SearchAttempt struct {
	Strategy           string `json:"strategy"`
	Query              string `json:"query"`
	CandidatesFound    int    `json:"candidates_found"`
	CandidatesMatched  int    `json:"candidates_matched"`
	ExternalCalls      int    `json:"external_calls"`
	Err                string `json:"error,omitempty"`
}

// SearchEntry is an append-only audit record of one precision-search run
// against a transaction. Never mutated after CompletedAt is set.
type SearchEntry struct {
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at"`
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	TransactionID string          `json:"transaction_id"`
	Attempts      []SearchAttempt `json:"attempts"`
}

// SearchRecord is one entry in a session's searchesPerformed log.
type SearchRecord struct {
	At              time.Time `json:"at"`
	Type            string    `json:"type"`
	Query           string    `json:"query"`
	CandidatesFound int       `json:"candidates_found"`
}

// NominatedCandidate is a search result marked as a probable match,
// eligible for download and connection.
type NominatedCandidate struct {
	NominatedAt time.Time `json:"nominated_at"`
	Provider    string    `json:"provider"`
	SourceID    string    `json:"source_id"`
	FileName    string    `json:"file_name"`
	Reason      string    `json:"reason"`
}

// AgentSearchSession is the per-transaction state of one bounded agentic
// search workflow. At most one active session exists per transaction and
// a session is never reused across transactions.
type AgentSearchSession struct {
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ID                  string
	TransactionID       string
	Status              SessionStatus
	SearchesPerformed   []SearchRecord
	NominatedCandidates []NominatedCandidate
	FilesConnected      []string
	Iteration           int
	MaxIterations       int
}

// Terminal reports whether the session has left the active state.
func (s *AgentSearchSession) Terminal() bool {
	return s.Status != SessionActive
}
