package store

import (
	"context"
	"time"

	"github.com/abhisek/codecoach/internal/problem"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	After   int64  // sequence > After
	Purpose string // exact purpose match when set
}

// ProblemRepo persists problem records.
type ProblemRepo interface {
	// List returns every problem ordered by Order, ties by insertion.
	List(ctx context.Context) ([]problem.Problem, error)

	// Get returns one problem or problem.ErrNotFound.
	Get(ctx context.Context, id string) (*problem.Problem, error)

	// Create stores a new problem with Order equal to the current count
	// and returns it with its assigned identifier.
	Create(ctx context.Context, in problem.CreateInput) (*problem.Problem, error)

	// Update applies a partial update. Returns problem.ErrNotFound when
	// the identifier is unknown.
	Update(ctx context.Context, id string, patch problem.Patch) error

	// Delete removes a problem. Returns problem.ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// Reorder applies every rank update atomically. If any identifier is
	// unknown nothing is applied and problem.ErrNotFound is returned.
	Reorder(ctx context.Context, updates []problem.RankUpdate) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStat aggregates token usage for one purpose and model pair.
type LLMUsageStat struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	// LLMUsageByRoute aggregates usage per purpose and model pair.
	LLMUsageByRoute(ctx context.Context) ([]LLMUsageStat, error)
}

// BlobRepo stores opaque blobs under fixed names. It backs the client's
// durable state.
type BlobRepo interface {
	// Load returns the blob stored under name, or nil if there is none.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save overwrites the blob stored under name.
	Save(ctx context.Context, name string, data []byte) error
}
