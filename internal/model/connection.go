package model

import "time"

// ConnectionType indicates how a transaction-document edge was created.
type ConnectionType string

const (
	// ConnectionManual is a user-created connection.
	ConnectionManual ConnectionType = "manual"
	// ConnectionAutoMatched was created by the deterministic assignment engine.
	ConnectionAutoMatched ConnectionType = "auto_matched"
	// ConnectionAIMatched was created by the AI fallback matcher.
	ConnectionAIMatched ConnectionType = "ai_matched"
)

// Connection is an explicit edge between one transaction and one document.
// Connections are the only place per-pair match signals are persisted.
type Connection struct {
	CreatedAt       time.Time
	ID              string
	TransactionID   string
	DocumentID      string
	Type            ConnectionType
	MatchReasons    []string
	MatchConfidence int
}
