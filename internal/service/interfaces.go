// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/beleghq/beleg/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetUnresolvedTransactions(ctx context.Context) ([]model.Transaction, error)
	GetUnfiledTransactions(ctx context.Context, partnerID string) ([]model.Transaction, error)
	GetUncategorizedTransactions(ctx context.Context) ([]model.Transaction, error)
	UpdateTransactionPartner(ctx context.Context, id, partnerID string, confidence int, source model.MatchSource) error
	UpdateTransactionCategory(ctx context.Context, id, categoryID string, confidence int) error

	// Partner operations
	GetPartner(ctx context.Context, id string) (*model.Partner, error)
	SavePartner(ctx context.Context, partner *model.Partner) error
	GetAllPartners(ctx context.Context) ([]model.Partner, error)

	// Document operations
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetCandidateDocuments(ctx context.Context, partnerID string) ([]model.Document, error)
	FindDocumentsByName(ctx context.Context, glob string) ([]model.Document, error)

	// Connection operations
	Connect(ctx context.Context, conn *model.Connection) error
	ConnectBatch(ctx context.Context, conns []model.Connection, chunkSize int) (int, error)
	Disconnect(ctx context.Context, transactionID, documentID string) error
	GetConnections(ctx context.Context, transactionID string) ([]model.Connection, error)

	// Category operations
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	SaveCategory(ctx context.Context, category *model.Category) error
	GetAllCategories(ctx context.Context) ([]model.Category, error)

	// Agent search sessions
	SaveSession(ctx context.Context, session *model.AgentSearchSession) error
	GetSession(ctx context.Context, id string) (*model.AgentSearchSession, error)
	GetActiveSession(ctx context.Context, transactionID string) (*model.AgentSearchSession, error)
	SaveSearchEntry(ctx context.Context, entry *model.SearchEntry) error
	GetSearchEntries(ctx context.Context, transactionID string) ([]model.SearchEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for external calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
